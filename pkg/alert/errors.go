package alert

import "errors"

var (
	ErrInvalidSeverity  = errors.New("invalid alert severity")
	ErrDeliveryFailed   = errors.New("alert delivery failed")
	ErrPermanentFailure = errors.New("permanent alert delivery failure")
	ErrCircuitOpen      = errors.New("alert circuit breaker is open")
	ErrInvalidURL       = errors.New("invalid alert webhook URL")
	ErrInvalidFormat    = errors.New("invalid alert webhook format")
)
