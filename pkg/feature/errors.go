package feature

import "errors"

var (
	// ErrFlagNotFound indicates that the requested feature flag was not found.
	ErrFlagNotFound = errors.New("feature flag not found")

	// ErrInvalidFlag indicates that the provided flag parameters are invalid.
	ErrInvalidFlag = errors.New("invalid feature flag parameters")

	// ErrLoadFailed indicates the provider could not produce a document.
	ErrLoadFailed = errors.New("feature flags load failed")

	// ErrSaveFailed indicates the provider could not persist a document.
	ErrSaveFailed = errors.New("feature flags save failed")

	// ErrUnknownBackend indicates an unsupported FLAGS_BACKEND value.
	ErrUnknownBackend = errors.New("unknown feature flag backend")
)
