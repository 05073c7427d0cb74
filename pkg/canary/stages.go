package canary

import (
	"errors"
	"fmt"
)

// DefaultStages is the standard 10% → 50% → 100% rollout.
func DefaultStages() []Stage {
	return []Stage{
		{Percentage: 10, DurationSeconds: 300, MinRequests: 100, MaxErrorRate: 0.05},
		{Percentage: 50, DurationSeconds: 600, MinRequests: 500, MaxErrorRate: 0.03},
		{Percentage: 100, DurationSeconds: 0, MinRequests: 1000, MaxErrorRate: 0.02},
	}
}

// validateStages checks that stages is non-empty, every field is in range,
// and percentages never decrease.
func validateStages(stages []Stage) error {
	if len(stages) == 0 {
		return errors.Join(ErrInvalidStages, errors.New("at least one stage is required"))
	}
	for i, s := range stages {
		switch {
		case s.Percentage < 0 || s.Percentage > 100:
			return fmt.Errorf("%w: stage %d percentage %d outside [0,100]", ErrInvalidStages, i, s.Percentage)
		case s.MaxErrorRate < 0 || s.MaxErrorRate > 1:
			return fmt.Errorf("%w: stage %d max error rate %v outside [0,1]", ErrInvalidStages, i, s.MaxErrorRate)
		case s.MinRequests < 0:
			return fmt.Errorf("%w: stage %d min requests is negative", ErrInvalidStages, i)
		case s.DurationSeconds < 0:
			return fmt.Errorf("%w: stage %d duration is negative", ErrInvalidStages, i)
		case i > 0 && s.Percentage < stages[i-1].Percentage:
			return fmt.Errorf("%w: stage %d percentage decreases", ErrInvalidStages, i)
		}
	}
	return nil
}

// ValidateStages exposes stage validation to callers building tables by hand.
func ValidateStages(stages []Stage) error {
	return validateStages(stages)
}
