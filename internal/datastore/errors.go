package datastore

import (
	"errors"
	"fmt"

	"geotourist/internal/datastore/retry"
)

var (
	// ErrRetriesExhausted matches every RetriesExhaustedError.
	ErrRetriesExhausted = errors.New("datastore: retries exhausted")
	// ErrNilPool indicates a missing connection pool.
	ErrNilPool = errors.New("datastore: nil pool")
)

// RetriesExhaustedError reports an operation that hit the attempt cap.
type RetriesExhaustedError struct {
	Op       string
	Attempts int
	Class    retry.Class
	Err      error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("datastore: %s did not succeed after %d attempts (last failure %s): %v", e.Op, e.Attempts, e.Class, e.Err)
}

func (e *RetriesExhaustedError) Unwrap() []error {
	return []error{ErrRetriesExhausted, e.Err}
}
