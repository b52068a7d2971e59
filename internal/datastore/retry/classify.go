// Package retry classifies store failures and decides how each attempt of a
// transactional statement should proceed.
package retry

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// Class is the closed set of failure classifications.
type Class int

const (
	ClassNone Class = iota
	ClassTransientNodeFailure
	ClassSerializationConflict
	ClassUniqueViolation
	ClassUnclassifiedStore
	ClassNotStore
)

func (c Class) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassTransientNodeFailure:
		return "transient"
	case ClassSerializationConflict:
		return "serialization"
	case ClassUniqueViolation:
		return "unique_violation"
	case ClassUnclassifiedStore:
		return "unclassified_store"
	default:
		return "not_store"
	}
}

const (
	sqlstateSerializationFailure = "40001"
	sqlstateDeadlockDetected     = "40P01"
	sqlstateCompletionUnknown    = "40003"
	sqlstateUniqueViolation      = "23505"
)

// Classify maps an error to a Class. Transient failures are checked first,
// then serialization conflicts, unique violations and remaining store errors.
// Anything that did not come from the store is ClassNotStore.
func Classify(err error) Class {
	if err == nil {
		return ClassNone
	}
	if isTransient(err) {
		return ClassTransientNodeFailure
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return ClassNotStore
	}
	switch pgErr.Code {
	case sqlstateSerializationFailure, sqlstateDeadlockDetected:
		return ClassSerializationConflict
	case sqlstateUniqueViolation:
		return ClassUniqueViolation
	default:
		return ClassUnclassifiedStore
	}
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		code := pgErr.Code
		switch {
		case strings.HasPrefix(code, "08"):
			return true
		case code == "57P01", code == "57P02", code == "57P03":
			return true
		case code == sqlstateCompletionUnknown:
			return true
		}
		return false
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
