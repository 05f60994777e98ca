package application

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/felixgeelhaar/waypoint/pkg/domain"
	"github.com/felixgeelhaar/waypoint/pkg/server"
)

type tool struct {
	name        string
	description string
	schemaJSON  string
	schema      *gojsonschema.Schema
	run         func(h *TaskHandler, ctx context.Context, args json.RawMessage) (any, error)
}

func (t tool) spec() server.ToolSpec {
	return server.ToolSpec{
		Name:        t.name,
		Description: t.description,
		InputSchema: json.RawMessage(t.schemaJSON),
	}
}

func (t tool) validate(args json.RawMessage) error {
	result, err := t.schema.Validate(gojsonschema.NewBytesLoader(args))
	if err != nil {
		return domain.Errorf(domain.ErrValidation, t.name, "invalid arguments: %v", err)
	}
	if result.Valid() {
		return nil
	}
	issues := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		issues = append(issues, desc.String())
	}
	return domain.Errorf(domain.ErrValidation, t.name, "invalid arguments: %s", strings.Join(issues, "; "))
}

func mustSchema(name, raw string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(raw))
	if err != nil {
		panic("application: bad schema for " + name + ": " + err.Error())
	}
	return s
}

const (
	pathSchema    = `{"type": "string", "minLength": 1}`
	pathsSchema   = `{"type": "array", "items": {"type": "string", "minLength": 1}, "minItems": 1}`
	statusSchema  = `{"type": "string", "enum": ["pending", "in-progress", "in_progress", "blocked", "completed", "cancelled"]}`
	typeSchema    = `{"type": "string", "enum": ["task", "milestone", "group"]}`
	roleSchema    = `{"type": "string", "enum": ["owner", "admin", "member", "viewer"]}`
	stringsSchema = `{"type": "array", "items": {"type": "string"}}`
	notesSchema   = `{
      "type": "object",
      "properties": {
        "planning": ` + stringsSchema + `,
        "progress": ` + stringsSchema + `,
        "completion": ` + stringsSchema + `,
        "troubleshooting": ` + stringsSchema + `
      },
      "additionalProperties": false
    }`
	metadataSchema = `{
      "type": "object",
      "properties": {
        "assignee": {"type": "string"},
        "tags": ` + stringsSchema + `,
        "attributes": {"type": "object", "additionalProperties": {"type": "string"}}
      },
      "additionalProperties": false
    }`
)

var catalog = []tool{
	{
		name:        "create_task",
		description: "Create a task at a hierarchical path. A task with a parentPath is appended to its parent's subtasks.",
		schemaJSON: `{
  "type": "object",
  "required": ["path", "name", "type"],
  "properties": {
    "path": ` + pathSchema + `,
    "name": {"type": "string", "minLength": 1},
    "type": ` + typeSchema + `,
    "description": {"type": "string"},
    "reasoning": {"type": "string"},
    "parentPath": {"type": "string"},
    "notes": ` + notesSchema + `,
    "dependencies": ` + stringsSchema + `,
    "metadata": ` + metadataSchema + `
  },
  "additionalProperties": false
}`,
		run: (*TaskHandler).createTask,
	},
	{
		name:        "update_task",
		description: "Merge field updates over an existing task, bumping its version.",
		schemaJSON: `{
  "type": "object",
  "required": ["path"],
  "properties": {
    "path": ` + pathSchema + `,
    "name": {"type": "string", "minLength": 1},
    "type": ` + typeSchema + `,
    "status": ` + statusSchema + `,
    "description": {"type": "string"},
    "reasoning": {"type": "string"},
    "parentPath": {"type": "string"},
    "notes": ` + notesSchema + `,
    "dependencies": ` + stringsSchema + `,
    "subtasks": ` + stringsSchema + `,
    "metadata": ` + metadataSchema + `
  },
  "additionalProperties": false
}`,
		run: (*TaskHandler).updateTask,
	},
	{
		name:        "get_task",
		description: "Fetch a single task by path.",
		schemaJSON:  `{"type": "object", "required": ["path"], "properties": {"path": ` + pathSchema + `}}`,
		run:         (*TaskHandler).getTask,
	},
	{
		name:        "get_tasks",
		description: "Fetch several tasks by path. Missing paths are omitted.",
		schemaJSON:  `{"type": "object", "required": ["paths"], "properties": {"paths": ` + pathsSchema + `}}`,
		run:         (*TaskHandler).getTasks,
	},
	{
		name:        "get_tasks_by_pattern",
		description: "Find tasks whose path matches a glob; * matches any run of characters, ? exactly one.",
		schemaJSON:  `{"type": "object", "required": ["pattern"], "properties": {"pattern": {"type": "string", "minLength": 1}}}`,
		run:         (*TaskHandler).getTasksByPattern,
	},
	{
		name:        "get_tasks_by_status",
		description: "List every task in a status.",
		schemaJSON:  `{"type": "object", "required": ["status"], "properties": {"status": ` + statusSchema + `}}`,
		run:         (*TaskHandler).getTasksByStatus,
	},
	{
		name:        "get_subtasks",
		description: "List the direct children of a task.",
		schemaJSON:  `{"type": "object", "required": ["parentPath"], "properties": {"parentPath": ` + pathSchema + `}}`,
		run:         (*TaskHandler).getSubtasks,
	},
	{
		name:        "get_dependents",
		description: "List the tasks that depend on a task.",
		schemaJSON:  `{"type": "object", "required": ["path"], "properties": {"path": ` + pathSchema + `}}`,
		run:         (*TaskHandler).getDependents,
	},
	{
		name:        "delete_tasks",
		description: "Delete tasks by path and detach them from their parents.",
		schemaJSON:  `{"type": "object", "required": ["paths"], "properties": {"paths": ` + pathsSchema + `}}`,
		run:         (*TaskHandler).deleteTasks,
	},
	{
		name:        "repair_relationships",
		description: "Find tasks whose parent no longer exists and clear the dangling link. With dryRun only report them.",
		schemaJSON:  `{"type": "object", "properties": {"dryRun": {"type": "boolean"}}}`,
		run:         (*TaskHandler).repairRelationships,
	},
	{
		name:        "project_member_add",
		description: "Add one member, or several via members, to a project with a role.",
		schemaJSON: `{
  "type": "object",
  "required": ["projectPath"],
  "properties": {
    "projectPath": ` + pathSchema + `,
    "userId": {"type": "string", "minLength": 1},
    "role": ` + roleSchema + `,
    "members": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["userId"],
        "properties": {"userId": {"type": "string", "minLength": 1}, "role": ` + roleSchema + `}
      }
    }
  },
  "oneOf": [{"required": ["userId"]}, {"required": ["members"]}]
}`,
		run: (*TaskHandler).addMembers,
	},
	{
		name:        "project_member_remove",
		description: "Remove one member, or several via memberIds. Unknown ids are reported, not rejected.",
		schemaJSON: `{
  "type": "object",
  "properties": {
    "memberId": {"type": "string", "minLength": 1},
    "memberIds": ` + pathsSchema + `
  },
  "oneOf": [{"required": ["memberId"]}, {"required": ["memberIds"]}]
}`,
		run: (*TaskHandler).removeMembers,
	},
	{
		name:        "project_member_list",
		description: "List the members of a project in join order.",
		schemaJSON:  `{"type": "object", "required": ["projectPath"], "properties": {"projectPath": ` + pathSchema + `}}`,
		run:         (*TaskHandler).listMembers,
	},
}

var toolsByName = func() map[string]*tool {
	m := make(map[string]*tool, len(catalog))
	for i := range catalog {
		catalog[i].schema = mustSchema(catalog[i].name, catalog[i].schemaJSON)
		m[catalog[i].name] = &catalog[i]
	}
	return m
}()
