// Package alert delivers control plane alerts.
//
// Producers (the canary controller, the regression detector) hold a
// Notifier and call Notify, which never blocks on I/O. The Dispatcher
// filters by minimum severity and hands each alert to a Sink on a
// background goroutine; failures are logged and never reach the producer.
//
// Sinks:
//
//   - MultiSink tries every child sink and logs each failure.
//   - LogSink writes the alert to slog.
//   - WebhookSink posts Discord, Slack or generic JSON with retries, a
//     circuit breaker and an optional HMAC-SHA256 signature header.
//
// NewFromConfig wires all of these from environment configuration.
package alert
