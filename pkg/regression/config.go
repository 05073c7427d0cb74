package regression

import "time"

// Config holds detector thresholds.
type Config struct {
	WindowSize        int           `env:"REGRESSION_WINDOW_SIZE" envDefault:"100"`
	MinimumSamples    int           `env:"REGRESSION_MIN_SAMPLES" envDefault:"10"`
	WarningThreshold  float64       `env:"REGRESSION_WARNING_THRESHOLD" envDefault:"1.3"`
	CriticalThreshold float64       `env:"REGRESSION_CRITICAL_THRESHOLD" envDefault:"1.5"`
	AlertCooldown     time.Duration `env:"REGRESSION_ALERT_COOLDOWN" envDefault:"5m"`
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		WindowSize:        100,
		MinimumSamples:    10,
		WarningThreshold:  1.3,
		CriticalThreshold: 1.5,
		AlertCooldown:     5 * time.Minute,
	}
}

// withDefaults fills zero or nonsensical fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.WindowSize <= 0 {
		c.WindowSize = d.WindowSize
	}
	if c.MinimumSamples <= 0 {
		c.MinimumSamples = d.MinimumSamples
	}
	c.MinimumSamples = min(c.MinimumSamples, c.WindowSize)
	if c.WarningThreshold <= 0 {
		c.WarningThreshold = d.WarningThreshold
	}
	if c.CriticalThreshold <= 0 {
		c.CriticalThreshold = d.CriticalThreshold
	}
	if c.CriticalThreshold < c.WarningThreshold {
		c.CriticalThreshold = c.WarningThreshold
	}
	if c.AlertCooldown <= 0 {
		c.AlertCooldown = d.AlertCooldown
	}
	return c
}
