package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound          = errors.New("entity not found")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrUnknownTaskKind   = errors.New("unknown task kind")
	ErrAlreadyTerminal   = errors.New("task already in a terminal state")
	ErrTaskCanceled      = errors.New("task canceled")
	ErrQueueFull         = errors.New("worker queue full")
	ErrSessionNotFound   = errors.New("chat session not found or inactive")
	ErrGenerationTimeout = errors.New("answer generation timed out")
	ErrConnectionClosed  = errors.New("connection closed")
	ErrStoreUnavailable  = errors.New("all storage backends unavailable")
)
