package task

import (
	"encoding/json"
	"fmt"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusBlocked    Status = "blocked"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// AllStatuses returns all valid task statuses.
func AllStatuses() []Status {
	return []Status{
		StatusPending,
		StatusInProgress,
		StatusBlocked,
		StatusCompleted,
		StatusCancelled,
	}
}

// IsValid returns true if the status is a recognized value.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusBlocked, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal returns true for statuses no further work is expected in.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func (s Status) String() string {
	return string(s)
}

// UnmarshalJSON accepts the underscore spelling used by older clients.
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("task status must be a string: %w", err)
	}
	if raw == "in_progress" {
		raw = string(StatusInProgress)
	}
	*s = Status(raw)
	return nil
}
