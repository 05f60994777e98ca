package sdk

import (
	"github.com/felixgeelhaar/waypoint/pkg/domain/task"
	"github.com/felixgeelhaar/waypoint/pkg/domain/team"
)

// TaskList is returned by the multi-task queries.
type TaskList struct {
	Tasks []task.Task `json:"tasks"`
	Count int         `json:"count"`
}

// DeleteResult reports which paths were removed.
type DeleteResult struct {
	Deleted  []string `json:"deleted"`
	NotFound []string `json:"notFound"`
}

// RepairResult reports orphaned parent links found and cleared.
type RepairResult struct {
	Fixed  int      `json:"fixed"`
	Issues []string `json:"issues"`
}

// NewMember is one entry of a bulk member add.
type NewMember struct {
	UserID string    `json:"userId"`
	Role   team.Role `json:"role"`
}

// BulkAddResult is returned when several members are added at once.
type BulkAddResult struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Created []team.Member `json:"created"`
}

// RemoveResult is returned by member removal.
type RemoveResult struct {
	Success      bool     `json:"success"`
	Message      string   `json:"message"`
	DeletedCount int      `json:"deletedCount"`
	NotFoundIDs  []string `json:"notFoundIds"`
}

// MemberList is the membership of one project.
type MemberList struct {
	ProjectPath string        `json:"projectPath"`
	Members     []team.Member `json:"members"`
	Count       int           `json:"count"`
}

// SchemaInfo is the content of the waypoint://schema resource.
type SchemaInfo struct {
	SchemaVersion string       `json:"schema_version"`
	ServerVersion string       `json:"server_version"`
	Tools         []ToolSchema `json:"tools"`
}

// ToolSchema describes one tool's input.
type ToolSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema,omitempty"`
}
