// Package httpserver runs the control plane's operational HTTP surface
// (metrics and health checks) with graceful shutdown.
//
// Run blocks until its context is cancelled or Shutdown is called. Shutdown
// drains in-flight requests, then runs OnShutdown hooks in order so
// components can persist their state before the process exits:
//
//	srv := httpserver.NewFromConfig(cfg,
//		httpserver.WithLogger(log),
//		httpserver.OnShutdown(controller.Flush),
//		httpserver.OnShutdown(dispatcher.Close),
//	)
//	if err := srv.Run(ctx, router); err != nil {
//		return err
//	}
//
// LivenessHandler and ReadinessHandler implement the usual /healthz and
// /readyz checks.
package httpserver
