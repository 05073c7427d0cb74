package alert

import (
	"log/slog"
	"time"
)

// Config holds alert routing settings.
type Config struct {
	MinSeverity       Severity      `env:"ALERT_MIN_SEVERITY" envDefault:"low"`
	DiscordWebhookURL string        `env:"ALERT_DISCORD_WEBHOOK_URL"`
	SlackWebhookURL   string        `env:"ALERT_SLACK_WEBHOOK_URL"`
	GenericWebhookURL string        `env:"ALERT_GENERIC_WEBHOOK_URL"`
	WebhookSecret     string        `env:"ALERT_WEBHOOK_SECRET"`
	Timeout           time.Duration `env:"ALERT_TIMEOUT" envDefault:"5s"`
	Retries           int           `env:"ALERT_RETRIES" envDefault:"2"`
	LogAlerts         bool          `env:"ALERT_LOG" envDefault:"true"`
}

// NewFromConfig builds a Dispatcher fanning out to every configured
// destination.
func NewFromConfig(cfg Config, log *slog.Logger) (*Dispatcher, error) {
	if log == nil {
		log = slog.Default()
	}

	var sinks []Sink
	if cfg.LogAlerts {
		sinks = append(sinks, NewLogSink(log))
	}
	for _, hook := range []struct {
		url    string
		format Format
	}{
		{cfg.DiscordWebhookURL, FormatDiscord},
		{cfg.SlackWebhookURL, FormatSlack},
		{cfg.GenericWebhookURL, FormatGeneric},
	} {
		if hook.url == "" {
			continue
		}
		opts := []WebhookOption{
			WithFormat(hook.format),
			WithTimeout(cfg.Timeout),
			WithRetries(cfg.Retries, nil),
			WithCircuitBreaker(5, 30*time.Second),
		}
		if hook.format == FormatGeneric && cfg.WebhookSecret != "" {
			opts = append(opts, WithSecret(cfg.WebhookSecret))
		}
		s, err := NewWebhookSink(hook.url, opts...)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}

	minSeverity := cfg.MinSeverity
	if minSeverity == 0 {
		minSeverity = SeverityLow
	}
	return NewDispatcher(NewMultiSink(log, sinks...),
		WithMinSeverity(minSeverity),
		WithDispatcherLogger(log),
	), nil
}
