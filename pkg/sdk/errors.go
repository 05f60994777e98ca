package sdk

import (
	"errors"
	"fmt"

	"github.com/felixgeelhaar/mcp-go/protocol"
)

// JSON-RPC error codes the Waypoint server answers with.
const (
	CodeInvalidArguments = protocol.CodeInvalidParams
	CodeNotFound         = protocol.CodeNotFound
	CodeRateLimited      = protocol.CodeRateLimited
	CodeUnavailable      = -32004
)

// Errors matched with errors.Is against a ToolError or ResourceError.
var (
	// ErrNoContent is returned when a tool result carries no content items.
	ErrNoContent = errors.New("waypoint: empty tool result")
	// ErrNotFound covers unknown tools, tasks, members and resource URIs.
	ErrNotFound = errors.New("waypoint: not found")
	// ErrInvalidArguments means the server rejected the request shape or a
	// task field, e.g. a bad status or a path that already exists.
	ErrInvalidArguments = errors.New("waypoint: invalid arguments")
	// ErrRateLimited means the server's admission window is full. The client
	// retries these.
	ErrRateLimited = errors.New("waypoint: rate limited")
	// ErrUnavailable means the server is draining or the request ran past
	// its deadline.
	ErrUnavailable = errors.New("waypoint: server unavailable")
)

func sentinelFor(code int) error {
	switch code {
	case CodeNotFound:
		return ErrNotFound
	case CodeInvalidArguments:
		return ErrInvalidArguments
	case CodeRateLimited:
		return ErrRateLimited
	case CodeUnavailable:
		return ErrUnavailable
	}
	return nil
}

// ToolError is a failed tool call. Code is the JSON-RPC error code, or 0
// when the tool itself reported the failure in an error result.
type ToolError struct {
	Tool    string
	Code    int
	Message string
}

func (e *ToolError) Error() string {
	if e.Code == 0 {
		return fmt.Sprintf("waypoint: %s: %s", e.Tool, e.Message)
	}
	return fmt.Sprintf("waypoint: %s: %s (code %d)", e.Tool, e.Message, e.Code)
}

// Is reports whether target is the sentinel for e.Code.
func (e *ToolError) Is(target error) bool {
	s := sentinelFor(e.Code)
	return s != nil && s == target
}

// ResourceError is a failed resource read.
type ResourceError struct {
	URI     string
	Code    int
	Message string
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("waypoint: read %s: %s (code %d)", e.URI, e.Message, e.Code)
}

// Is reports whether target is the sentinel for e.Code.
func (e *ResourceError) Is(target error) bool {
	s := sentinelFor(e.Code)
	return s != nil && s == target
}

// toolError converts a JSON-RPC error from a tools/call into a ToolError.
// Transport failures are wrapped unchanged.
func toolError(tool string, err error) error {
	var perr *protocol.Error
	if errors.As(err, &perr) {
		return &ToolError{Tool: tool, Code: perr.Code, Message: perr.Message}
	}
	return fmt.Errorf("call %s: %w", tool, err)
}

func resourceError(uri string, err error) error {
	var perr *protocol.Error
	if errors.As(err, &perr) {
		return &ResourceError{URI: uri, Code: perr.Code, Message: perr.Message}
	}
	return fmt.Errorf("read resource %s: %w", uri, err)
}

// retryable lets transport failures and rate limiting through to another
// attempt. Any other answer from the server is final.
func retryable(err error) bool {
	var perr *protocol.Error
	if errors.As(err, &perr) {
		return perr.Code == CodeRateLimited
	}
	return true
}
