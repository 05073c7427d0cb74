package canary

import "fmt"

// event triggers a status transition.
type event string

const (
	eventStart    event = "start"
	eventPause    event = "pause"
	eventResume   event = "resume"
	eventComplete event = "complete"
	eventRollback event = "rollback"
	eventFail     event = "fail"
)

// transitions is the deployment lifecycle. Everything not listed is
// rejected; terminal statuses have no outgoing edges.
var transitions = map[Status]map[event]Status{
	StatusPending: {
		eventStart:    StatusInProgress,
		eventRollback: StatusRolledBack,
		eventFail:     StatusFailed,
	},
	StatusInProgress: {
		eventPause:    StatusPaused,
		eventComplete: StatusCompleted,
		eventRollback: StatusRolledBack,
		eventFail:     StatusFailed,
	},
	StatusPaused: {
		eventResume:   StatusInProgress,
		eventRollback: StatusRolledBack,
		eventFail:     StatusFailed,
	},
}

// next returns the status ev leads to from from.
func next(from Status, ev event) (Status, error) {
	if to, ok := transitions[from][ev]; ok {
		return to, nil
	}
	return from, fmt.Errorf("%w: cannot %s a deployment that is %s", ErrInvalidTransition, ev, from)
}
