package adminapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/togetheros/rollout"
	"github.com/togetheros/rollout/pkg/canary"
	"github.com/togetheros/rollout/pkg/environment"
	"github.com/togetheros/rollout/pkg/feature"
	"github.com/togetheros/rollout/pkg/logger"
)

// API serves administrative operations over a ControlPlane.
type API struct {
	cp     *rollout.ControlPlane
	logger *slog.Logger
}

// New returns an API over cp.
func New(cp *rollout.ControlPlane, log *slog.Logger) *API {
	if log == nil {
		log = slog.Default()
	}
	return &API{cp: cp, logger: log.With(logger.Component("adminapi"))}
}

// Routes returns the admin router, meant to be mounted under a prefix such
// as /admin.
func (a *API) Routes() http.Handler {
	r := chi.NewRouter()

	r.Route("/flags", func(r chi.Router) {
		r.Get("/", Wrap(a.logger, a.listFlags, BindQuery))
		r.Post("/evaluate", Wrap(a.logger, a.evaluate, BindJSON))
		r.Post("/refresh", Wrap(a.logger, a.refreshFlags))
		r.Get("/{name}", Wrap(a.logger, a.getFlag, BindPath))
		r.Put("/{name}", Wrap(a.logger, a.putFlag, BindJSON, BindPath))
		r.Put("/{name}/rollout", Wrap(a.logger, a.setRollout, BindJSON, BindPath))
		r.Delete("/{name}", Wrap(a.logger, a.deleteFlag, BindPath))
	})

	r.Route("/deployments", func(r chi.Router) {
		r.Get("/", Wrap(a.logger, a.history))
		r.Post("/", Wrap(a.logger, a.startDeployment, BindJSON))
		r.Get("/current", Wrap(a.logger, a.currentDeployment))
		r.Post("/current/advance", Wrap(a.logger, a.advance))
		r.Post("/current/pause", Wrap(a.logger, a.pause))
		r.Post("/current/resume", Wrap(a.logger, a.resume))
		r.Post("/current/rollback", Wrap(a.logger, a.rollback, BindOptionalJSON))
		r.Post("/current/fail", Wrap(a.logger, a.fail, BindOptionalJSON))
	})

	r.Route("/routes", func(r chi.Router) {
		r.Get("/", Wrap(a.logger, a.routes, BindQuery))
		r.Post("/reset", Wrap(a.logger, a.resetBaselines, BindOptionalJSON))
	})
	return r
}

type empty struct{}

type listFlagsRequest struct {
	Tags []string `query:"tag"`
}

func (a *API) listFlags(ctx context.Context, req listFlagsRequest) Response {
	return JSON(a.cp.Flags().ListFlags(ctx, req.Tags...))
}

type flagRequest struct {
	Name string `path:"name"`
}

func (a *API) getFlag(ctx context.Context, req flagRequest) Response {
	f, err := a.cp.Flags().GetFlag(ctx, req.Name)
	if err != nil {
		return Error(err)
	}
	return JSON(f)
}

type putFlagRequest struct {
	Name              string         `json:"-" path:"name"`
	Description       string         `json:"description"`
	Enabled           bool           `json:"enabled"`
	RolloutPercentage int            `json:"rolloutPercentage"`
	Rules             []feature.Rule `json:"rules"`
	Tags              []string       `json:"tags"`
}

func (a *API) putFlag(ctx context.Context, req putFlagRequest) Response {
	flag := &feature.Flag{
		Name:              req.Name,
		Description:       req.Description,
		Enabled:           req.Enabled,
		RolloutPercentage: req.RolloutPercentage,
		Rules:             req.Rules,
		Tags:              req.Tags,
	}
	if err := a.cp.Flags().SetFlag(ctx, flag); err != nil {
		return Error(err)
	}
	return a.getFlag(ctx, flagRequest{Name: req.Name})
}

type rolloutRequest struct {
	Name       string `json:"-" path:"name"`
	Percentage int    `json:"percentage"`
}

func (a *API) setRollout(ctx context.Context, req rolloutRequest) Response {
	if err := a.cp.Flags().UpdateRolloutPercentage(ctx, req.Name, req.Percentage); err != nil {
		return Error(err)
	}
	return a.getFlag(ctx, flagRequest{Name: req.Name})
}

func (a *API) deleteFlag(ctx context.Context, req flagRequest) Response {
	if err := a.cp.Flags().DeleteFlag(ctx, req.Name); err != nil {
		return Error(err)
	}
	return NoContent()
}

type evaluateRequest struct {
	UserID      string   `json:"userId"`
	SessionID   string   `json:"sessionId"`
	GroupIDs    []string `json:"groupIds"`
	Environment string   `json:"environment"`
}

func (a *API) evaluate(ctx context.Context, req evaluateRequest) Response {
	rc := feature.RequestContext{
		UserID:      req.UserID,
		SessionID:   req.SessionID,
		GroupIDs:    req.GroupIDs,
		Environment: environment.Parse(req.Environment),
	}
	return JSON(map[string]any{
		"identifier": rc.Identifier(),
		"flags":      a.cp.Flags().EvaluateAll(ctx, rc),
		"canary":     a.cp.RouteToCanary(rc),
	})
}

func (a *API) refreshFlags(ctx context.Context, _ empty) Response {
	if err := a.cp.Flags().Refresh(ctx); err != nil {
		return Error(err)
	}
	return JSON(map[string]int64{"version": a.cp.Flags().Version()})
}

func (a *API) history(_ context.Context, _ empty) Response {
	return JSON(a.cp.Canary().History())
}

func (a *API) currentDeployment(_ context.Context, _ empty) Response {
	d, ok := a.cp.Canary().Current()
	if !ok {
		return Error(canary.ErrNoActiveDeployment)
	}
	return JSON(d)
}

type startRequest struct {
	Version string         `json:"version"`
	Stages  []canary.Stage `json:"stages"`
}

func (a *API) startDeployment(ctx context.Context, req startRequest) Response {
	d, err := a.cp.Canary().Start(ctx, req.Version, req.Stages)
	if err != nil {
		return Error(err)
	}
	return Created(d)
}

func (a *API) advance(ctx context.Context, _ empty) Response {
	return deployment(a.cp.Canary().AdvanceStage(ctx))
}

func (a *API) pause(ctx context.Context, _ empty) Response {
	return deployment(a.cp.Canary().Pause(ctx))
}

func (a *API) resume(ctx context.Context, _ empty) Response {
	return deployment(a.cp.Canary().Resume(ctx))
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (a *API) rollback(ctx context.Context, req reasonRequest) Response {
	return deployment(a.cp.Canary().Rollback(ctx, req.Reason))
}

func (a *API) fail(ctx context.Context, req reasonRequest) Response {
	return deployment(a.cp.Canary().Fail(ctx, req.Reason))
}

func deployment(d *canary.Deployment, err error) Response {
	if err != nil {
		return Error(err)
	}
	return JSON(d)
}

type routesRequest struct {
	Route string `query:"route"`
}

func (a *API) routes(_ context.Context, req routesRequest) Response {
	if req.Route == "" {
		return JSON(a.cp.Detector().All())
	}
	s, ok := a.cp.Detector().Stats(req.Route)
	if !ok {
		return jsonResponse{status: http.StatusNotFound, body: Envelope{Error: &ErrorDetail{
			Code: "route_not_found", Message: "no samples recorded for " + req.Route,
		}}}
	}
	return JSON(s)
}

type resetRequest struct {
	Route string `json:"route"`
}

func (a *API) resetBaselines(_ context.Context, req resetRequest) Response {
	if req.Route == "" {
		a.cp.Detector().ResetAllBaselines()
	} else {
		a.cp.Detector().ResetBaseline(req.Route)
	}
	return NoContent()
}
