package domain

import "errors"

var (
	// ErrInvalidConfig rejects a session configuration before any state is created.
	ErrInvalidConfig = errors.New("invalid session configuration")
	// ErrSessionNotFound is returned for an unknown session identifier.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionCompleted rejects mutations of a completed session.
	ErrSessionCompleted = errors.New("session already completed")
	// ErrStaleQuestion rejects a submission whose index is not the current one.
	ErrStaleQuestion = errors.New("stale question index")
	// ErrInsufficientContent means the bank holds fewer questions than requested.
	ErrInsufficientContent = errors.New("not enough questions available")
	// ErrBankUnavailable wraps question bank transport/storage failures.
	ErrBankUnavailable = errors.New("question bank unavailable")
)
