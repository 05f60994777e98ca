package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/felixgeelhaar/waypoint/pkg/domain"
)

// CLIError is an error shown to the operator with a suggested next step.
type CLIError struct {
	Message string
	Hint    string
	Err     error
	Code    int
}

func (e *CLIError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *CLIError) Unwrap() error { return e.Err }

// NewCLIError returns a CLIError that exits with status 1.
func NewCLIError(msg, hint string, err error) *CLIError {
	return &CLIError{Message: msg, Hint: hint, Err: err, Code: 1}
}

// MapError attaches hints to the store and domain errors an operator can act
// on. Anything else is returned unchanged.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		return err
	}

	var storageErr *domain.StorageError
	switch {
	case errors.As(err, &storageErr):
		return NewCLIError(fmt.Sprintf("database %s failed", storageErr.Op),
			"Check that the data directory is writable and not opened by another server", err)
	case errors.Is(err, domain.ErrValidation):
		return NewCLIError("invalid configuration or input",
			"Run 'waypoint config show' to inspect the effective settings", err)
	case errors.Is(err, domain.ErrNotFound):
		return NewCLIError("not found", "Run 'waypoint stats' to see what the database holds", err)
	case errors.Is(err, domain.ErrNotInitialized):
		return NewCLIError("database is not open",
			"Retry the command; the store was closed or failed to open", err)
	}
	return err
}

// Report writes err, and its hint when it has one, to w.
func Report(w io.Writer, err error) {
	err = MapError(err)
	if err == nil {
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
	var cliErr *CLIError
	if errors.As(err, &cliErr) && cliErr.Hint != "" {
		fmt.Fprintf(w, "Hint: %s\n", cliErr.Hint)
	}
}

// ExitCode is the process status for err: 0 for nil, the CLIError code when
// err maps to one, 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var cliErr *CLIError
	if errors.As(MapError(err), &cliErr) && cliErr.Code != 0 {
		return cliErr.Code
	}
	return 1
}
