package adminapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/togetheros/rollout"
	"github.com/togetheros/rollout/pkg/adminapi"
	"github.com/togetheros/rollout/pkg/canary"
	"github.com/togetheros/rollout/pkg/environment"
	"github.com/togetheros/rollout/pkg/feature"
	"github.com/togetheros/rollout/pkg/logger"
	"github.com/togetheros/rollout/pkg/regression"
)

type envelope struct {
	Data  json.RawMessage       `json:"data"`
	Error *adminapi.ErrorDetail `json:"error"`
}

func newAPI(t *testing.T) (http.Handler, *rollout.ControlPlane) {
	t.Helper()
	provider, err := feature.NewMemoryProvider()
	require.NoError(t, err)
	cp := rollout.New(context.Background(), provider, canary.NewMemoryStore(), rollout.WithLogger(logger.Discard()))
	return adminapi.New(cp, logger.Discard()).Routes(), cp
}

func do(t *testing.T, h http.Handler, method, path, body string) (int, envelope) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec.Code, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestFlags(t *testing.T) {
	t.Parallel()
	h, _ := newAPI(t)

	code, env := do(t, h, http.MethodPut, "/flags/new-feed",
		`{"enabled":true,"rolloutPercentage":150,"tags":["feed"],"rules":[{"kind":"group","value":"beta"}]}`)
	require.Equal(t, http.StatusOK, code)
	f := decode[feature.Flag](t, env.Data)
	assert.Equal(t, "new-feed", f.Name)
	assert.Equal(t, 100, f.RolloutPercentage)
	assert.False(t, f.CreatedAt.IsZero())

	code, _ = do(t, h, http.MethodPut, "/flags/dark-mode", `{"enabled":false}`)
	require.Equal(t, http.StatusOK, code)

	code, env = do(t, h, http.MethodPut, "/flags/new-feed/rollout", `{"percentage":30}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 30, decode[feature.Flag](t, env.Data).RolloutPercentage)

	code, env = do(t, h, http.MethodGet, "/flags/?tag=feed", "")
	require.Equal(t, http.StatusOK, code)
	list := decode[[]feature.Flag](t, env.Data)
	require.Len(t, list, 1)
	assert.Equal(t, "new-feed", list[0].Name)

	code, env = do(t, h, http.MethodPost, "/flags/evaluate", `{"userId":"u1","groupIds":["beta"]}`)
	require.Equal(t, http.StatusOK, code)
	eval := decode[struct {
		Identifier string                    `json:"identifier"`
		Flags      map[string]feature.Result `json:"flags"`
		Canary     bool                      `json:"canary"`
	}](t, env.Data)
	assert.Equal(t, "u1", eval.Identifier)
	assert.Equal(t, feature.Result{Enabled: true, Reason: feature.ReasonRule}, eval.Flags["new-feed"])
	assert.Equal(t, feature.Result{Enabled: false, Reason: feature.ReasonDisabled}, eval.Flags["dark-mode"])
	assert.False(t, eval.Canary)

	code, _ = do(t, h, http.MethodDelete, "/flags/dark-mode", "")
	assert.Equal(t, http.StatusNoContent, code)

	code, env = do(t, h, http.MethodDelete, "/flags/dark-mode", "")
	assert.Equal(t, http.StatusNotFound, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "flag_not_found", env.Error.Code)

	code, env = do(t, h, http.MethodPost, "/flags/refresh", "")
	assert.Equal(t, http.StatusOK, code)
}

func TestFlags_EvaluateExplicitEnvironment(t *testing.T) {
	t.Parallel()
	routes, _ := newAPI(t)
	h := environment.Middleware(environment.Staging)(routes)

	code, _ := do(t, h, http.MethodPut, "/flags/prod-only",
		`{"enabled":true,"rules":[{"kind":"environment","value":"production"}]}`)
	require.Equal(t, http.StatusOK, code)

	type evaluation struct {
		Flags map[string]feature.Result `json:"flags"`
	}

	code, env := do(t, h, http.MethodPost, "/flags/evaluate", `{"userId":"u1"}`)
	require.Equal(t, http.StatusOK, code)
	assert.False(t, decode[evaluation](t, env.Data).Flags["prod-only"].Enabled, "server environment applies")

	code, env = do(t, h, http.MethodPost, "/flags/evaluate", `{"userId":"u1","environment":"prod"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, feature.Result{Enabled: true, Reason: feature.ReasonRule}, decode[evaluation](t, env.Data).Flags["prod-only"])
}

func TestFlags_BadRequests(t *testing.T) {
	t.Parallel()
	h, _ := newAPI(t)

	tests := []struct {
		name   string
		path   string
		body   string
		ctype  string
		status int
		code   string
	}{
		{"unknown field", "/flags/x", `{"enabled":true,"bogus":1}`, "application/json", http.StatusBadRequest, "invalid_request"},
		{"trailing data", "/flags/x", `{"enabled":true} {}`, "application/json", http.StatusBadRequest, "invalid_request"},
		{"empty body", "/flags/x", ``, "application/json", http.StatusBadRequest, "invalid_request"},
		{"wrong media type", "/flags/x", `enabled=true`, "application/x-www-form-urlencoded", http.StatusUnsupportedMediaType, "unsupported_media_type"},
		{"invalid rule", "/flags/x", `{"rules":[{"kind":"planet","value":"mars"}]}`, "application/json", http.StatusBadRequest, "invalid_request"},
		{"missing flag rollout", "/flags/nope/rollout", `{"percentage":10}`, "application/json", http.StatusNotFound, "flag_not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodPut, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.ctype)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			var env envelope
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
}

func TestDeployments(t *testing.T) {
	t.Parallel()
	h, _ := newAPI(t)

	code, env := do(t, h, http.MethodGet, "/deployments/current", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "no_active_deployment", env.Error.Code)

	code, env = do(t, h, http.MethodPost, "/deployments/", `{"version":""}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = do(t, h, http.MethodPost, "/deployments/", `{"version":"v2.0.0"}`)
	require.Equal(t, http.StatusCreated, code)
	d := decode[canary.Deployment](t, env.Data)
	assert.Equal(t, canary.StatusInProgress, d.Status)
	assert.Equal(t, 10, d.CurrentPercentage)

	code, env = do(t, h, http.MethodPost, "/deployments/current/advance", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 50, decode[canary.Deployment](t, env.Data).CurrentPercentage)

	code, _ = do(t, h, http.MethodPost, "/deployments/current/pause", "")
	require.Equal(t, http.StatusOK, code)

	code, env = do(t, h, http.MethodPost, "/deployments/current/advance", "")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "invalid_transition", env.Error.Code)

	code, _ = do(t, h, http.MethodPost, "/deployments/current/resume", "")
	require.Equal(t, http.StatusOK, code)

	code, env = do(t, h, http.MethodPost, "/deployments/current/rollback", "")
	require.Equal(t, http.StatusOK, code)
	d = decode[canary.Deployment](t, env.Data)
	assert.Equal(t, canary.StatusRolledBack, d.Status)
	assert.Equal(t, "Manual rollback", d.RollbackReason)

	code, env = do(t, h, http.MethodGet, "/deployments/", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]canary.Deployment](t, env.Data), 1)

	code, _ = do(t, h, http.MethodPost, "/deployments/current/fail", `{"reason":"smoke tests"}`)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestRoutes(t *testing.T) {
	t.Parallel()
	h, cp := newAPI(t)
	ctx := context.Background()
	for range 10 {
		cp.RecordOutcome(ctx, rollout.Outcome{Route: "/api/feed", LatencyMs: 100})
	}

	code, env := do(t, h, http.MethodGet, "/routes/?route=/api/feed", "")
	require.Equal(t, http.StatusOK, code)
	s := decode[regression.Stats](t, env.Data)
	require.NotNil(t, s.Baseline)
	assert.Equal(t, 100.0, s.Baseline.P95)

	code, env = do(t, h, http.MethodGet, "/routes/?route=/missing", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "route_not_found", env.Error.Code)

	code, _ = do(t, h, http.MethodPost, "/routes/reset", `{"route":"/api/feed"}`)
	require.Equal(t, http.StatusNoContent, code)
	code, env = do(t, h, http.MethodGet, "/routes/", "")
	require.Equal(t, http.StatusOK, code)
	all := decode[[]regression.Stats](t, env.Data)
	require.Len(t, all, 1)
	assert.Nil(t, all[0].Baseline)

	code, _ = do(t, h, http.MethodPost, "/routes/reset", "")
	assert.Equal(t, http.StatusNoContent, code)
}
