package repository

import (
	"errors"
	"fmt"
)

// Sentinel kinds for audit store errors.
var (
	// ErrPersistence marks any storage-layer I/O failure.
	ErrPersistence = errors.New("persistence error")
	// ErrNotInitialized is returned when the store is used before Init.
	ErrNotInitialized = errors.New("audit store not initialized")
	// ErrUnsupportedDriver is returned by Open for unknown drivers.
	ErrUnsupportedDriver = errors.New("unsupported audit store driver")
	// ErrMissingDSN is returned when a PostgreSQL store is opened without a DSN.
	ErrMissingDSN = errors.New("postgres dsn is required")
)

// PersistenceError wraps a storage failure with the operation that hit it.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrPersistence, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Is lets callers match with errors.Is(err, ErrPersistence).
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

func persistErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}
