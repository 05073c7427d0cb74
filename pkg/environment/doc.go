// Package environment propagates the current deployment environment
// (development, staging, production or a custom name) through context.Context.
//
// Feature-flag environment rules compare against the value found here first,
// falling back to the evaluator's configured default.
//
//	ctx = environment.WithContext(ctx, environment.Parse(os.Getenv("APP_ENV")))
//	env := environment.FromContext(ctx)
//
// Middleware sets the environment on every HTTP request and LoggerExtractor
// injects it into slog records built by the logger package.
package environment
