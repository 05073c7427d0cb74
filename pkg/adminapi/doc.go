// Package adminapi is the operator-facing HTTP API of the control plane:
// flag administration, canary deployment control and route statistics.
//
// Handlers are typed: each takes a request struct filled by binders
// (BindJSON, BindPath, BindQuery) and returns a Response. Errors are mapped
// to status codes by their sentinel, so feature.ErrFlagNotFound becomes 404
// and canary.ErrInvalidTransition becomes 409.
//
//	r := chi.NewRouter()
//	r.Mount("/admin", adminapi.New(cp, log).Routes())
//
// Routes:
//
//	GET    /flags?tag=...                list flags
//	POST   /flags/evaluate               evaluate every flag for a caller
//	POST   /flags/refresh                reload from the store
//	GET    /flags/{name}                 read a flag
//	PUT    /flags/{name}                 create or replace a flag
//	PUT    /flags/{name}/rollout         change the rollout percentage
//	DELETE /flags/{name}                 delete a flag
//	GET    /deployments                  finished deployments, newest first
//	POST   /deployments                  start a canary deployment
//	GET    /deployments/current          the unfinished deployment
//	POST   /deployments/current/advance  advance one stage
//	POST   /deployments/current/pause    pause
//	POST   /deployments/current/resume   resume
//	POST   /deployments/current/rollback roll back, optional {"reason"}
//	POST   /deployments/current/fail     mark failed, optional {"reason"}
//	GET    /routes?route=...             latency statistics
//	POST   /routes/reset                 reset one or all baselines
package adminapi
