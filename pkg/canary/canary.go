package canary

import (
	"slices"
	"time"
)

// Status is a deployment's lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusPaused     Status = "paused"
	StatusCompleted  Status = "completed"
	StatusRolledBack Status = "rolled_back"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusRolledBack || s == StatusFailed
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusPaused, StatusCompleted, StatusRolledBack, StatusFailed:
		return true
	}
	return false
}

// Stage is one step of a rollout. DurationSeconds is how long the stage
// must run before it may be advanced; zero means "as soon as MinRequests is
// reached".
type Stage struct {
	Percentage      int     `json:"percentage"`
	DurationSeconds int     `json:"durationSeconds"`
	MinRequests     int     `json:"minRequests"`
	MaxErrorRate    float64 `json:"maxErrorRate"`
}

// Metrics are cumulative over the whole deployment. Latency estimates are
// exponential moving averages, not true percentiles.
type Metrics struct {
	TotalRequests              int64   `json:"totalRequests"`
	CanaryRequests             int64   `json:"canaryRequests"`
	CanaryErrors               int64   `json:"canaryErrors"`
	CanaryLatencyP95Estimate   float64 `json:"canaryLatencyP95Estimate"`
	BaselineRequests           int64   `json:"baselineRequests"`
	BaselineErrors             int64   `json:"baselineErrors"`
	BaselineLatencyP95Estimate float64 `json:"baselineLatencyP95Estimate"`
}

// CanaryErrorRate returns CanaryErrors/CanaryRequests, or 0 without traffic.
func (m Metrics) CanaryErrorRate() float64 {
	if m.CanaryRequests == 0 {
		return 0
	}
	return float64(m.CanaryErrors) / float64(m.CanaryRequests)
}

// BaselineErrorRate returns BaselineErrors/BaselineRequests, or 0.
func (m Metrics) BaselineErrorRate() float64 {
	if m.BaselineRequests == 0 {
		return 0
	}
	return float64(m.BaselineErrors) / float64(m.BaselineRequests)
}

// Deployment is one canary rollout of Version.
type Deployment struct {
	ID                string     `json:"id"`
	Version           string     `json:"version"`
	PreviousVersion   string     `json:"previousVersion,omitempty"`
	Status            Status     `json:"status"`
	Stages            []Stage    `json:"stages"`
	CurrentStageIndex int        `json:"currentStageIndex"`
	CurrentPercentage int        `json:"currentPercentage"`
	Metrics           Metrics    `json:"metrics"`
	RollbackReason    string     `json:"rollbackReason,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	StageStartedAt    time.Time  `json:"stageStartedAt"`
	PausedAt          *time.Time `json:"pausedAt,omitempty"`
	FinishedAt        *time.Time `json:"finishedAt,omitempty"`
}

// Stage returns the active stage.
func (d *Deployment) Stage() Stage {
	return d.Stages[d.CurrentStageIndex]
}

// Clone returns a deep copy of d.
func (d *Deployment) Clone() *Deployment {
	if d == nil {
		return nil
	}
	c := *d
	c.Stages = slices.Clone(d.Stages)
	c.PausedAt = cloneTime(d.PausedAt)
	c.FinishedAt = cloneTime(d.FinishedAt)
	return &c
}

// valid reports whether a persisted deployment is internally consistent.
func (d *Deployment) valid() bool {
	return d != nil &&
		d.ID != "" &&
		d.Status.Valid() &&
		validateStages(d.Stages) == nil &&
		d.CurrentStageIndex >= 0 && d.CurrentStageIndex < len(d.Stages) &&
		d.CurrentPercentage == d.Stages[d.CurrentStageIndex].Percentage
}

// State is the persisted form of the controller (deploy-state.json).
// History is newest first.
type State struct {
	Current     *Deployment   `json:"current"`
	History     []*Deployment `json:"history"`
	LastUpdated time.Time     `json:"lastUpdated"`
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	c := State{Current: s.Current.Clone(), LastUpdated: s.LastUpdated}
	if s.History != nil {
		c.History = make([]*Deployment, len(s.History))
		for i, d := range s.History {
			c.History[i] = d.Clone()
		}
	}
	return c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
