// Package logger builds *slog.Logger instances for the control plane.
//
// New takes functional options for format, level, output, static attributes
// and context extractors. The resulting handler is wrapped in a
// LogHandlerDecorator that runs every registered ContextExtractor on each
// record, so request-scoped values reach the log without manual plumbing.
//
//	log := logger.New(
//		logger.WithEnvironment(os.Getenv("APP_ENV"), "controlplane"),
//		logger.WithContextExtractors(environment.LoggerExtractor()),
//	)
//	log.InfoContext(ctx, "deployment started",
//		logger.DeploymentID(id),
//		logger.Version("v2.4.0"),
//	)
//
// Attribute helpers in attr.go keep key names consistent across packages.
// Error returns an empty attribute for a nil error so it can be passed
// unconditionally.
package logger
