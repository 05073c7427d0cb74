package canary

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds canary settings. The four stage lists are parallel: entry i
// of each describes stage i.
type Config struct {
	Backend              string        `env:"CANARY_BACKEND" envDefault:"file"`
	StateFile            string        `env:"DEPLOY_STATE_FILE" envDefault:"deploy-state.json"`
	RedisKey             string        `env:"CANARY_REDIS_KEY" envDefault:"togetheros:deploy-state"`
	HistoryLimit         int           `env:"CANARY_HISTORY_LIMIT" envDefault:"10"`
	StagePercentages     []int         `env:"CANARY_STAGE_PERCENTAGES" envDefault:"10,50,100" envSeparator:","`
	StageMaxErrorRates   []float64     `env:"CANARY_STAGE_MAX_ERROR_RATES" envDefault:"0.05,0.03,0.02" envSeparator:","`
	StageMinRequests     []int         `env:"CANARY_STAGE_MIN_REQUESTS" envDefault:"100,500,1000" envSeparator:","`
	StageDurations       []int         `env:"CANARY_STAGE_DURATIONS" envDefault:"300,600,0" envSeparator:","`
	AutoAdvance          bool          `env:"CANARY_AUTO_ADVANCE" envDefault:"false"`
	AdvanceCheckInterval time.Duration `env:"CANARY_ADVANCE_CHECK_INTERVAL" envDefault:"15s"`
}

// Stages assembles the stage table from the parallel lists.
func (c Config) Stages() ([]Stage, error) {
	n := len(c.StagePercentages)
	if len(c.StageMaxErrorRates) != n || len(c.StageMinRequests) != n || len(c.StageDurations) != n {
		return nil, fmt.Errorf("%w: stage lists differ in length (%d percentages, %d error rates, %d min requests, %d durations)",
			ErrInvalidStages, n, len(c.StageMaxErrorRates), len(c.StageMinRequests), len(c.StageDurations))
	}
	stages := make([]Stage, n)
	for i := range n {
		stages[i] = Stage{
			Percentage:      c.StagePercentages[i],
			MaxErrorRate:    c.StageMaxErrorRates[i],
			MinRequests:     c.StageMinRequests[i],
			DurationSeconds: c.StageDurations[i],
		}
	}
	if err := validateStages(stages); err != nil {
		return nil, err
	}
	return stages, nil
}

// NewStore builds the store selected by cfg.Backend. rdb may be nil unless
// the backend is "redis".
func NewStore(cfg Config, rdb redis.UniversalClient, log *slog.Logger) (Store, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryStore(), nil
	case "file", "":
		return NewFileStore(cfg.StateFile, log), nil
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("%w: redis backend requires a redis client", ErrUnknownBackend)
		}
		return NewRedisStore(rdb, cfg.RedisKey, log), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}
