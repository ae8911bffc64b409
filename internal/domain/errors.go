package domain

import "errors"

var (
	// ErrInvalidContent is returned for empty or whitespace-only message text
	ErrInvalidContent = errors.New("message content is required")

	// ErrInvalidRole is returned when a message role cannot be persisted
	ErrInvalidRole = errors.New("invalid message role")

	// ErrSessionNotFound is returned when a session id does not resolve
	ErrSessionNotFound = errors.New("session not found")

	// ErrTurnInProgress is returned when a turn is already awaiting the provider for a session
	ErrTurnInProgress = errors.New("a reply is already being generated for this session")

	// ErrProviderUnavailable means no completion provider is configured
	ErrProviderUnavailable = errors.New("completion provider not configured")

	// ErrProviderTimeout means the provider exceeded the bounded wait
	ErrProviderTimeout = errors.New("completion provider timed out")

	// ErrProviderError means the provider answered with a failure or an unusable payload
	ErrProviderError = errors.New("completion provider failed")

	// ErrUnauthenticated is returned when a request carries no valid identity
	ErrUnauthenticated = errors.New("authentication required")

	// ErrStorageUnavailable wraps persistence layer faults
	ErrStorageUnavailable = errors.New("storage unavailable")
)
