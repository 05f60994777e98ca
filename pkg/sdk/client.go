package sdk

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
	"github.com/felixgeelhaar/mcp-go/client"

	"github.com/felixgeelhaar/waypoint/pkg/domain/task"
	"github.com/felixgeelhaar/waypoint/pkg/domain/team"
)

// Resource addresses served by Waypoint.
const (
	SchemaURI        = "waypoint://schema"
	TaskListURI      = "tasklist://current"
	TemplatesURI     = "templates://current"
	VisualizationURI = "visualizations://current"
)

// Client is a typed Go client for the Waypoint MCP server.
type Client struct {
	mcp      *client.Client
	retryCfg retry.Config
	timeout  time.Duration
}

// NewClient creates a new SDK client wrapping the given MCP transport.
func NewClient(transport client.Transport, opts ...Option) *Client {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	return &Client{
		mcp:     client.New(transport, client.WithTimeout(o.timeout)),
		timeout: o.timeout,
		retryCfg: retry.Config{
			MaxAttempts:   o.maxAttempts,
			InitialDelay:  o.initialDelay,
			BackoffPolicy: retry.BackoffExponential,
			IsRetryable:   retryable,
		},
	}
}

// Initialize performs the MCP initialize handshake.
func (c *Client) Initialize(ctx context.Context) (*client.ServerInfo, error) {
	return c.mcp.Initialize(ctx)
}

// Close closes the underlying transport.
func (c *Client) Close() error {
	return c.mcp.Close()
}

// call invokes a tool with retry.
func (c *Client) call(ctx context.Context, tool string, args any) (*client.ToolResult, error) {
	m, err := toArgs(args)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", tool, err)
	}
	r := retry.New[*client.ToolResult](c.retryCfg)
	result, err := r.Do(ctx, func(ctx context.Context) (*client.ToolResult, error) {
		return c.mcp.CallTool(ctx, tool, m)
	})
	if err != nil {
		return nil, toolError(tool, err)
	}
	if result.IsError {
		msg := ""
		if len(result.Content) > 0 {
			msg = result.Content[0].Text
		}
		return nil, &ToolError{Tool: tool, Message: msg}
	}
	return result, nil
}

// toArgs turns a typed request into the argument map sent on the wire.
func toArgs(v any) (map[string]any, error) {
	switch a := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return a, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode arguments: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("encode arguments: %w", err)
	}
	return m, nil
}

// unmarshalText extracts Content[0].Text from a tool result and unmarshals it as JSON.
func unmarshalText[T any](result *client.ToolResult) (*T, error) {
	text, err := textResult(result)
	if err != nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	return &v, nil
}

// textResult extracts Content[0].Text from a tool result.
func textResult(result *client.ToolResult) (string, error) {
	if len(result.Content) == 0 {
		return "", ErrNoContent
	}
	return result.Content[0].Text, nil
}

func callTyped[T any](ctx context.Context, c *Client, tool string, args any) (*T, error) {
	res, err := c.call(ctx, tool, args)
	if err != nil {
		return nil, err
	}
	return unmarshalText[T](res)
}

// --- Schema ---

// GetSchema reads the waypoint://schema resource from the server.
func (c *Client) GetSchema(ctx context.Context) (*SchemaInfo, error) {
	text, err := c.ReadResource(ctx, SchemaURI)
	if err != nil {
		return nil, err
	}
	var info SchemaInfo
	if err := json.Unmarshal([]byte(text), &info); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}
	return &info, nil
}

// Compatible checks if the server schema is compatible with this SDK version.
// Returns nil if compatible, error with details if not.
func (c *Client) Compatible(ctx context.Context) error {
	info, err := c.GetSchema(ctx)
	if err != nil {
		return fmt.Errorf("check compatibility: %w", err)
	}
	serverMajor := majorVersion(info.SchemaVersion)
	if serverMajor != SupportedSchemaMajor {
		return fmt.Errorf("incompatible schema: server=%s (major %s), sdk supports major %s",
			info.SchemaVersion, serverMajor, SupportedSchemaMajor)
	}
	return nil
}

// majorVersion extracts the major version from a semver string.
func majorVersion(v string) string {
	for i, ch := range v {
		if ch == '.' {
			return v[:i]
		}
	}
	return v
}

// ReadResource returns the text of any resource, e.g. "task://demo/api" or
// VisualizationURI.
func (c *Client) ReadResource(ctx context.Context, uri string) (string, error) {
	rc, err := c.mcp.ReadResource(ctx, uri)
	if err != nil {
		return "", resourceError(uri, err)
	}
	return rc.Text, nil
}

// --- Tasks ---

// CreateTask creates a task; a ParentPath appends it to the parent's subtasks.
func (c *Client) CreateTask(ctx context.Context, in task.CreateInput) (*task.Task, error) {
	return callTyped[task.Task](ctx, c, "create_task", in)
}

// UpdateTask merges u over the task at path.
func (c *Client) UpdateTask(ctx context.Context, path string, u task.UpdateInput) (*task.Task, error) {
	args, err := toArgs(u)
	if err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]any{}
	}
	args["path"] = path
	return callTyped[task.Task](ctx, c, "update_task", args)
}

// SetStatus is UpdateTask with only a status change.
func (c *Client) SetStatus(ctx context.Context, path string, status task.Status) (*task.Task, error) {
	return c.UpdateTask(ctx, path, task.UpdateInput{Status: &status})
}

// GetTask returns one task.
func (c *Client) GetTask(ctx context.Context, path string) (*task.Task, error) {
	return callTyped[task.Task](ctx, c, "get_task", map[string]any{"path": path})
}

// GetTasks returns the tasks that exist among paths.
func (c *Client) GetTasks(ctx context.Context, paths ...string) (*TaskList, error) {
	return callTyped[TaskList](ctx, c, "get_tasks", map[string]any{"paths": paths})
}

// GetTasksByPattern matches paths against a glob such as "demo/*".
func (c *Client) GetTasksByPattern(ctx context.Context, pattern string) (*TaskList, error) {
	return callTyped[TaskList](ctx, c, "get_tasks_by_pattern", map[string]any{"pattern": pattern})
}

// GetTasksByStatus returns every task in status.
func (c *Client) GetTasksByStatus(ctx context.Context, status task.Status) (*TaskList, error) {
	return callTyped[TaskList](ctx, c, "get_tasks_by_status", map[string]any{"status": string(status)})
}

// GetSubtasks returns the direct children of parentPath.
func (c *Client) GetSubtasks(ctx context.Context, parentPath string) (*TaskList, error) {
	return callTyped[TaskList](ctx, c, "get_subtasks", map[string]any{"parentPath": parentPath})
}

// GetDependents returns the tasks that depend on path.
func (c *Client) GetDependents(ctx context.Context, path string) (*TaskList, error) {
	return callTyped[TaskList](ctx, c, "get_dependents", map[string]any{"path": path})
}

// DeleteTasks removes paths and unlinks them from surviving parents.
func (c *Client) DeleteTasks(ctx context.Context, paths ...string) (*DeleteResult, error) {
	return callTyped[DeleteResult](ctx, c, "delete_tasks", map[string]any{"paths": paths})
}

// RepairRelationships clears parent links to missing tasks, or only reports
// them when dryRun is set.
func (c *Client) RepairRelationships(ctx context.Context, dryRun bool) (*RepairResult, error) {
	return callTyped[RepairResult](ctx, c, "repair_relationships", map[string]any{"dryRun": dryRun})
}

// --- Members ---

// AddMember adds one user to a project.
func (c *Client) AddMember(ctx context.Context, projectPath, userID string, role team.Role) (*team.Member, error) {
	return callTyped[team.Member](ctx, c, "project_member_add", map[string]any{
		"projectPath": projectPath,
		"userId":      userID,
		"role":        string(role),
	})
}

// AddMembers adds several users to a project in one batch.
func (c *Client) AddMembers(ctx context.Context, projectPath string, members []NewMember) (*BulkAddResult, error) {
	return callTyped[BulkAddResult](ctx, c, "project_member_add", map[string]any{
		"projectPath": projectPath,
		"members":     members,
	})
}

// RemoveMembers removes members by id.
func (c *Client) RemoveMembers(ctx context.Context, ids ...string) (*RemoveResult, error) {
	args := map[string]any{"memberIds": ids}
	if len(ids) == 1 {
		args = map[string]any{"memberId": ids[0]}
	}
	return callTyped[RemoveResult](ctx, c, "project_member_remove", args)
}

// ListMembers returns the members of a project ordered by join time.
func (c *Client) ListMembers(ctx context.Context, projectPath string) (*MemberList, error) {
	return callTyped[MemberList](ctx, c, "project_member_list", map[string]any{"projectPath": projectPath})
}
