package regression

import "time"

// Level classifies a detected regression.
type Level string

const (
	LevelWarning  Level = "warning"
	LevelCritical Level = "critical"
)

// Baseline is the frozen latency reference for a route.
type Baseline struct {
	P50           float64   `json:"p50"`
	P95           float64   `json:"p95"`
	P99           float64   `json:"p99"`
	EstablishedAt time.Time `json:"establishedAt"`
}

// Stats describes one route at a point in time. Percentiles are computed
// over the current window.
type Stats struct {
	Route         string    `json:"route"`
	Samples       int       `json:"samples"`
	Mean          float64   `json:"mean"`
	StdDev        float64   `json:"stdDev"`
	P50           float64   `json:"p50"`
	P95           float64   `json:"p95"`
	P99           float64   `json:"p99"`
	Baseline      *Baseline `json:"baseline,omitempty"`
	TotalRequests int64     `json:"totalRequests"`
	ErrorCount    int64     `json:"errorCount"`
	LastAlertAt   time.Time `json:"lastAlertAt,omitzero"`
	LastAlert     Level     `json:"lastAlert,omitempty"`
}

// ErrorRate returns ErrorCount/TotalRequests, or 0.
func (s Stats) ErrorRate() float64 {
	if s.TotalRequests == 0 {
		return 0
	}
	return float64(s.ErrorCount) / float64(s.TotalRequests)
}

// Ratio returns P95/Baseline.P95, or 0 without a baseline.
func (s Stats) Ratio() float64 {
	if s.Baseline == nil || s.Baseline.P95 == 0 {
		return 0
	}
	return s.P95 / s.Baseline.P95
}
