package domain

import "errors"

var (
	// ErrInvalidIOC rejects a value that fails validation for its declared
	// type, before any provider is contacted.
	ErrInvalidIOC = errors.New("invalid ioc")

	// ErrEmptyHistory marks temporal reads against an IOC with no stored
	// assessments.
	ErrEmptyHistory = errors.New("no assessment history")

	// ErrStoreUnavailable wraps failures of the history store.
	ErrStoreUnavailable = errors.New("assessment store unavailable")
)
