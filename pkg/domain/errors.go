package domain

import (
	"errors"
	"fmt"
)

// Error kinds shared by the store, the cache, the coordinator and the handlers.
var (
	// ErrValidation indicates malformed input detected before any I/O.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates the referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrRateLimited indicates the admission gate rejected the request.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrTimeout indicates the request exceeded its deadline.
	ErrTimeout = errors.New("request timed out")
	// ErrShuttingDown indicates the server no longer accepts work.
	ErrShuttingDown = errors.New("server is shutting down")
	// ErrNotInitialized indicates a component was used before Initialize completed.
	ErrNotInitialized = errors.New("not initialized")
	// ErrInternal is the generic shape unexpected failures are rewritten into.
	ErrInternal = errors.New("internal error")
)

// Error is a domain error carrying its kind, the failing operation and a
// caller-actionable message.
type Error struct {
	Kind    error
	Op      string
	Message string
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Message != "":
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return e.Kind.Error()
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// Errorf builds a domain error of the given kind.
func Errorf(kind error, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// StorageError wraps an engine failure (disk, lock, permission) with the
// operation that hit it. The original error stays reachable through Unwrap.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// WrapStorage returns nil for a nil err, otherwise a *StorageError.
func WrapStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// IsCallerError reports whether err belongs to the caller-actionable kinds
// (validation, not-found, capacity, timeout, shutdown) that are returned as-is.
func IsCallerError(err error) bool {
	for _, kind := range []error{ErrValidation, ErrNotFound, ErrRateLimited, ErrTimeout, ErrShuttingDown, ErrNotInitialized} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// IsStorageError reports whether err carries an engine failure.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
