package canary

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/togetheros/rollout/pkg/alert"
	"github.com/togetheros/rollout/pkg/bucket"
	"github.com/togetheros/rollout/pkg/logger"
)

const (
	// LatencyEMAAlpha weights the newest sample in the latency estimate.
	LatencyEMAAlpha = 0.05

	// rollbackCheckEvery is how many canary requests pass between error
	// rate checks.
	rollbackCheckEvery = 10

	reasonSuperseded = "Superseded"
)

// Controller owns the current canary deployment. It is safe for concurrent
// use; every request outcome is serialized through one lock so counters and
// the rollback decision never race.
type Controller struct {
	mu    sync.RWMutex
	state State
	// dirty marks metric updates not yet handed to the store.
	dirty bool
	seq   uint64

	saveMu   sync.Mutex
	savedSeq uint64

	// bgN counts in-flight background applies; Flush waits on bgIdle
	// while new ones may still be started.
	bgMu   sync.Mutex
	bgIdle *sync.Cond
	bgN    int

	store         Store
	alerts        alert.Notifier
	logger        *slog.Logger
	now           func() time.Time
	newID         func() string
	historyLimit  int
	defaultStages []Stage
	onComplete    []func(ctx context.Context, d *Deployment)
}

// effects are the side effects of a state change, applied after the lock is
// released.
type effects struct {
	snapshot  *State
	seq       uint64
	alerts    []alert.Alert
	completed *Deployment
}

// NewController loads persisted state from store. Unreadable or
// inconsistent state is logged and replaced by "no current deployment".
func NewController(ctx context.Context, store Store, opts ...Option) *Controller {
	c := &Controller{
		store:         store,
		alerts:        alert.Nop,
		logger:        slog.Default(),
		now:           time.Now,
		newID:         uuid.NewString,
		historyLimit:  DefaultHistoryLimit,
		defaultStages: DefaultStages(),
	}
	c.bgIdle = sync.NewCond(&c.bgMu)
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(logger.Component("canary"))

	s, err := store.Load(ctx)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to load deployment state, starting empty", logger.Error(err))
		s = State{}
	}
	c.state = c.sanitize(ctx, s)
	return c
}

func (c *Controller) sanitize(ctx context.Context, s State) State {
	s.History = slices.DeleteFunc(s.History, func(d *Deployment) bool { return d == nil })
	if cur := s.Current; cur != nil {
		switch {
		case !cur.valid():
			c.logger.WarnContext(ctx, "discarding inconsistent persisted deployment",
				logger.DeploymentID(cur.ID), logger.Version(cur.Version))
			s.Current = nil
		case cur.Status.Terminal():
			s.History = append([]*Deployment{cur}, s.History...)
			s.Current = nil
		}
	}
	if len(s.History) > c.historyLimit {
		s.History = s.History[:c.historyLimit]
	}
	return s
}

// Start begins a canary rollout of version. A nil stages uses the default
// table. Any unfinished deployment is rolled back as superseded first.
func (c *Controller) Start(ctx context.Context, version string, stages []Stage) (*Deployment, error) {
	if version == "" {
		return nil, ErrEmptyVersion
	}
	if stages == nil {
		stages = c.defaultStages
	}
	if err := validateStages(stages); err != nil {
		return nil, err
	}

	c.mu.Lock()
	var eff effects
	if cur := c.state.Current; cur != nil && !cur.Status.Terminal() {
		old := c.finishLocked(eventRollback, reasonSuperseded)
		eff.alerts = append(eff.alerts, c.deploymentAlert(alert.SeverityMedium,
			"Canary deployment superseded",
			fmt.Sprintf("Deployment of %s was superseded by %s", old.Version, version), old))
	}

	now := c.now()
	d := &Deployment{
		ID:                c.newID(),
		Version:           version,
		PreviousVersion:   c.lastCompletedVersionLocked(),
		Status:            StatusPending,
		Stages:            slices.Clone(stages),
		CurrentPercentage: stages[0].Percentage,
		CreatedAt:         now,
		StageStartedAt:    now,
	}
	d.Status, _ = next(d.Status, eventStart)
	c.state.Current = d

	eff.alerts = append(eff.alerts, c.deploymentAlert(alert.SeverityLow,
		"Canary deployment started",
		fmt.Sprintf("Rolling out %s to %d%% of traffic", version, d.CurrentPercentage), d))
	c.snapshotLocked(&eff)
	out := d.Clone()
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "canary deployment started",
		logger.DeploymentID(out.ID), logger.Version(out.Version),
		slog.Int("percentage", out.CurrentPercentage))
	c.apply(ctx, eff)
	return out, nil
}

// ShouldRouteToCanary reports whether identifier is served by the canary.
// The deployment id namespaces the bucket, so canary assignment is
// independent of flag assignment.
func (c *Controller) ShouldRouteToCanary(identifier string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cur := c.state.Current
	if cur == nil || cur.Status != StatusInProgress {
		return false
	}
	return bucket.Included(cur.ID, identifier, cur.CurrentPercentage)
}

// RecordRequest accounts one finished request against the current
// deployment. Every tenth canary request checks the stage's error budget
// and rolls back on breach. Requests outside an in-progress deployment are
// ignored.
func (c *Controller) RecordRequest(ctx context.Context, isCanary bool, latencyMs float64, isError bool) {
	c.mu.Lock()
	cur := c.state.Current
	if cur == nil || cur.Status != StatusInProgress {
		c.mu.Unlock()
		return
	}

	m := &cur.Metrics
	m.TotalRequests++
	if isCanary {
		m.CanaryRequests++
		if isError {
			m.CanaryErrors++
		}
		m.CanaryLatencyP95Estimate = ema(m.CanaryLatencyP95Estimate, latencyMs, m.CanaryRequests)
	} else {
		m.BaselineRequests++
		if isError {
			m.BaselineErrors++
		}
		m.BaselineLatencyP95Estimate = ema(m.BaselineLatencyP95Estimate, latencyMs, m.BaselineRequests)
	}
	c.dirty = true

	var eff effects
	if isCanary && m.CanaryRequests%rollbackCheckEvery == 0 {
		stage := cur.Stage()
		rate := m.CanaryErrorRate()
		if m.CanaryRequests >= int64(stage.MinRequests) && rate > stage.MaxErrorRate {
			reason := fmt.Sprintf("Error rate %.2f%% exceeds %.2f%% threshold at stage %d (%d%% traffic)",
				rate*100, stage.MaxErrorRate*100, cur.CurrentStageIndex+1, cur.CurrentPercentage)
			c.rollbackLocked(&eff, reason)
		}
	}
	c.mu.Unlock()

	if eff.snapshot != nil {
		c.background(func() { c.apply(context.WithoutCancel(ctx), eff) })
	}
}

func (c *Controller) background(fn func()) {
	c.bgMu.Lock()
	c.bgN++
	c.bgMu.Unlock()
	go func() {
		defer func() {
			c.bgMu.Lock()
			c.bgN--
			if c.bgN == 0 {
				c.bgIdle.Broadcast()
			}
			c.bgMu.Unlock()
		}()
		fn()
	}()
}

func (c *Controller) waitBackground() {
	c.bgMu.Lock()
	for c.bgN > 0 {
		c.bgIdle.Wait()
	}
	c.bgMu.Unlock()
}

// AdvanceStage moves to the next stage, or completes the deployment from the
// last stage. It fails with ErrNoActiveDeployment or ErrInvalidTransition
// and changes nothing unless the deployment is in progress.
func (c *Controller) AdvanceStage(ctx context.Context) (*Deployment, error) {
	c.mu.Lock()
	cur := c.state.Current
	if cur == nil {
		c.mu.Unlock()
		return nil, ErrNoActiveDeployment
	}
	if cur.Status != StatusInProgress {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: cannot advance a deployment that is %s", ErrInvalidTransition, cur.Status)
	}
	var eff effects
	out := c.advanceLocked(&eff)
	c.mu.Unlock()

	c.apply(ctx, eff)
	return out, nil
}

// AdvanceIfDue advances the current stage once its duration has elapsed and
// it has seen MinRequests canary requests within its error budget. It
// reports whether it advanced.
func (c *Controller) AdvanceIfDue(ctx context.Context) (*Deployment, bool) {
	c.mu.Lock()
	cur := c.state.Current
	if cur == nil || cur.Status != StatusInProgress {
		c.mu.Unlock()
		return nil, false
	}
	stage := cur.Stage()
	elapsed := c.now().Sub(cur.StageStartedAt)
	if elapsed < time.Duration(stage.DurationSeconds)*time.Second ||
		cur.Metrics.CanaryRequests < int64(stage.MinRequests) ||
		cur.Metrics.CanaryErrorRate() > stage.MaxErrorRate {
		c.mu.Unlock()
		return nil, false
	}
	var eff effects
	out := c.advanceLocked(&eff)
	c.mu.Unlock()

	c.apply(ctx, eff)
	return out, true
}

func (c *Controller) advanceLocked(eff *effects) *Deployment {
	cur := c.state.Current
	if cur.CurrentStageIndex < len(cur.Stages)-1 {
		cur.CurrentStageIndex++
		cur.CurrentPercentage = cur.Stages[cur.CurrentStageIndex].Percentage
		cur.StageStartedAt = c.now()
		eff.alerts = append(eff.alerts, c.deploymentAlert(alert.SeverityLow,
			"Canary deployment advanced",
			fmt.Sprintf("%s now serves %d%% of traffic", cur.Version, cur.CurrentPercentage), cur))
		c.snapshotLocked(eff)
		return cur.Clone()
	}

	done := c.finishLocked(eventComplete, "")
	eff.completed = done.Clone()
	eff.alerts = append(eff.alerts, c.deploymentAlert(alert.SeverityLow,
		"Canary deployment completed",
		fmt.Sprintf("%s is fully rolled out", done.Version), done))
	c.snapshotLocked(eff)
	return done.Clone()
}

// Rollback ends the current deployment as rolled back and raises a
// critical alert.
func (c *Controller) Rollback(ctx context.Context, reason string) (*Deployment, error) {
	c.mu.Lock()
	cur := c.state.Current
	if cur == nil {
		c.mu.Unlock()
		return nil, ErrNoActiveDeployment
	}
	if _, err := next(cur.Status, eventRollback); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	var eff effects
	out := c.rollbackLocked(&eff, reason)
	c.mu.Unlock()

	c.apply(ctx, eff)
	return out, nil
}

func (c *Controller) rollbackLocked(eff *effects, reason string) *Deployment {
	if reason == "" {
		reason = "Manual rollback"
	}
	d := c.finishLocked(eventRollback, reason)
	eff.alerts = append(eff.alerts, c.deploymentAlert(alert.SeverityCritical,
		"Canary deployment rolled back",
		fmt.Sprintf("%s rolled back: %s", d.Version, reason), d))
	c.snapshotLocked(eff)
	return d.Clone()
}

// Fail ends the current deployment as failed, for errors outside the
// controller's own checks (a broken build, a failed health gate).
func (c *Controller) Fail(ctx context.Context, reason string) (*Deployment, error) {
	c.mu.Lock()
	cur := c.state.Current
	if cur == nil {
		c.mu.Unlock()
		return nil, ErrNoActiveDeployment
	}
	if _, err := next(cur.Status, eventFail); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	var eff effects
	d := c.finishLocked(eventFail, reason)
	eff.alerts = append(eff.alerts, c.deploymentAlert(alert.SeverityHigh,
		"Canary deployment failed",
		fmt.Sprintf("%s failed: %s", d.Version, reason), d))
	c.snapshotLocked(&eff)
	out := d.Clone()
	c.mu.Unlock()

	c.apply(ctx, eff)
	return out, nil
}

// Pause stops canary routing without ending the deployment. Time spent
// paused does not count toward the stage duration.
func (c *Controller) Pause(ctx context.Context) (*Deployment, error) {
	return c.fire(ctx, eventPause, func(d *Deployment, now time.Time) {
		d.PausedAt = &now
	})
}

// Resume continues a paused deployment.
func (c *Controller) Resume(ctx context.Context) (*Deployment, error) {
	return c.fire(ctx, eventResume, func(d *Deployment, now time.Time) {
		if d.PausedAt != nil {
			d.StageStartedAt = d.StageStartedAt.Add(now.Sub(*d.PausedAt))
			d.PausedAt = nil
		}
	})
}

func (c *Controller) fire(ctx context.Context, ev event, mutate func(d *Deployment, now time.Time)) (*Deployment, error) {
	c.mu.Lock()
	cur := c.state.Current
	if cur == nil {
		c.mu.Unlock()
		return nil, ErrNoActiveDeployment
	}
	to, err := next(cur.Status, ev)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	cur.Status = to
	mutate(cur, c.now())
	var eff effects
	c.snapshotLocked(&eff)
	out := cur.Clone()
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "canary deployment status changed",
		logger.DeploymentID(out.ID), logger.Version(out.Version), slog.String("status", string(to)))
	c.apply(ctx, eff)
	return out, nil
}

// finishLocked moves the current deployment to a terminal status and into
// history. The caller has checked that ev is legal.
func (c *Controller) finishLocked(ev event, reason string) *Deployment {
	cur := c.state.Current
	cur.Status, _ = next(cur.Status, ev)
	if reason != "" {
		cur.RollbackReason = reason
	}
	now := c.now()
	cur.FinishedAt = &now
	cur.PausedAt = nil

	c.state.History = append([]*Deployment{cur}, c.state.History...)
	if len(c.state.History) > c.historyLimit {
		c.state.History = c.state.History[:c.historyLimit]
	}
	c.state.Current = nil
	return cur
}

func (c *Controller) lastCompletedVersionLocked() string {
	for _, d := range c.state.History {
		if d.Status == StatusCompleted {
			return d.Version
		}
	}
	return ""
}

// snapshotLocked captures the state for persistence.
func (c *Controller) snapshotLocked(eff *effects) {
	c.state.LastUpdated = c.now()
	s := c.state.Clone()
	c.seq++
	eff.snapshot = &s
	eff.seq = c.seq
	c.dirty = false
}

// apply persists the snapshot, then sends alerts and runs completion hooks.
// Persistence is best effort: a failure is logged and retried by Flush.
func (c *Controller) apply(ctx context.Context, eff effects) {
	if eff.snapshot != nil {
		if err := c.save(ctx, *eff.snapshot, eff.seq); err != nil {
			c.logger.ErrorContext(ctx, "failed to persist deployment state", logger.Error(err))
			c.mu.Lock()
			c.dirty = true
			c.mu.Unlock()
		}
	}
	for _, a := range eff.alerts {
		if a.Severity >= alert.SeverityHigh {
			c.logger.WarnContext(ctx, a.Title, slog.String("message", a.Message))
		}
		c.alerts.Notify(ctx, a)
	}
	if eff.completed != nil {
		c.logger.InfoContext(ctx, "canary deployment completed",
			logger.DeploymentID(eff.completed.ID), logger.Version(eff.completed.Version))
		for _, fn := range c.onComplete {
			fn(ctx, eff.completed.Clone())
		}
	}
}

// save writes s unless a newer snapshot has already been written.
func (c *Controller) save(ctx context.Context, s State, seq uint64) error {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()
	if seq <= c.savedSeq {
		return nil
	}
	if err := c.store.Save(ctx, s); err != nil {
		return err
	}
	c.savedSeq = seq
	return nil
}

// Flush waits for background persistence and writes any metric updates not
// yet stored.
func (c *Controller) Flush(ctx context.Context) error {
	c.waitBackground()

	c.mu.Lock()
	if !c.dirty {
		c.mu.Unlock()
		return nil
	}
	var eff effects
	c.snapshotLocked(&eff)
	c.mu.Unlock()

	if err := c.save(ctx, *eff.snapshot, eff.seq); err != nil {
		c.mu.Lock()
		c.dirty = true
		c.mu.Unlock()
		return err
	}
	return nil
}

// Current returns a copy of the unfinished deployment, if any.
func (c *Controller) Current() (*Deployment, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state.Current == nil {
		return nil, false
	}
	return c.state.Current.Clone(), true
}

// History returns copies of finished deployments, newest first.
func (c *Controller) History() []*Deployment {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Deployment, len(c.state.History))
	for i, d := range c.state.History {
		out[i] = d.Clone()
	}
	return out
}

// Status returns the current deployment's status, or "" when there is none.
func (c *Controller) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state.Current == nil {
		return ""
	}
	return c.state.Current.Status
}

// CurrentPercentage returns the traffic share of the canary, or 0.
func (c *Controller) CurrentPercentage() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state.Current == nil {
		return 0
	}
	return c.state.Current.CurrentPercentage
}

func (c *Controller) deploymentAlert(sev alert.Severity, title, message string, d *Deployment) alert.Alert {
	return alert.Alert{
		Severity: sev,
		Title:    title,
		Message:  message,
		Time:     c.now(),
		Metadata: map[string]any{
			"deployment_id":    d.ID,
			"version":          d.Version,
			"previous_version": d.PreviousVersion,
			"stage":            d.CurrentStageIndex + 1,
			"percentage":       d.CurrentPercentage,
			"canary_requests":  d.Metrics.CanaryRequests,
			"canary_errors":    d.Metrics.CanaryErrors,
		},
	}
}

// ema folds sample into estimate. The first sample seeds the estimate so it
// does not start from zero.
func ema(estimate, sample float64, n int64) float64 {
	if n <= 1 {
		return sample
	}
	return estimate*(1-LatencyEMAAlpha) + sample*LatencyEMAAlpha
}
