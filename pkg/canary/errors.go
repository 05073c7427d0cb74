package canary

import "errors"

var (
	// ErrNoActiveDeployment is returned when an operation needs a current deployment.
	ErrNoActiveDeployment = errors.New("no active deployment")

	// ErrInvalidStages indicates an unusable stage table.
	ErrInvalidStages = errors.New("invalid canary stages")

	// ErrInvalidTransition is returned when the current status does not allow the operation.
	ErrInvalidTransition = errors.New("invalid deployment status transition")

	// ErrEmptyVersion is returned by Start without a version.
	ErrEmptyVersion = errors.New("deployment version is required")

	// ErrLoadFailed and ErrSaveFailed wrap store failures.
	ErrLoadFailed = errors.New("deployment state load failed")
	ErrSaveFailed = errors.New("deployment state save failed")

	// ErrUnknownBackend indicates an unsupported CANARY_BACKEND value.
	ErrUnknownBackend = errors.New("unknown deployment state backend")
)
