// Package task defines the hierarchical task model persisted by the store and
// mirrored by the cache.
package task

import (
	"time"
)

// Type classifies a task within its hierarchy.
type Type string

const (
	TypeTask      Type = "task"
	TypeMilestone Type = "milestone"
	TypeGroup     Type = "group"
)

// Notes holds the free-text notes of a task partitioned by purpose.
type Notes struct {
	Planning        []string `json:"planning,omitempty"`
	Progress        []string `json:"progress,omitempty"`
	Completion      []string `json:"completion,omitempty"`
	Troubleshooting []string `json:"troubleshooting,omitempty"`
}

// Count returns the total number of notes across all categories.
func (n Notes) Count() int {
	return len(n.Planning) + len(n.Progress) + len(n.Completion) + len(n.Troubleshooting)
}

// Metadata carries store-derived bookkeeping plus caller-supplied tags.
type Metadata struct {
	Created     time.Time         `json:"created"`
	Updated     time.Time         `json:"updated"`
	ProjectPath string            `json:"projectPath"`
	Version     int               `json:"version"`
	Assignee    string            `json:"assignee,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// Task is the central entity. Path is its sole identity.
type Task struct {
	Path         string   `json:"path"`
	Name         string   `json:"name"`
	Type         Type     `json:"type"`
	Status       Status   `json:"status"`
	Description  string   `json:"description,omitempty"`
	Reasoning    string   `json:"reasoning,omitempty"`
	ParentPath   string   `json:"parentPath,omitempty"`
	Notes        Notes    `json:"notes"`
	Dependencies []string `json:"dependencies"`
	Subtasks     []string `json:"subtasks"`
	Metadata     Metadata `json:"metadata"`
}

// Clone returns a deep copy sharing no slices or maps with t.
func (t Task) Clone() Task {
	c := t
	c.Notes = Notes{
		Planning:        cloneStrings(t.Notes.Planning),
		Progress:        cloneStrings(t.Notes.Progress),
		Completion:      cloneStrings(t.Notes.Completion),
		Troubleshooting: cloneStrings(t.Notes.Troubleshooting),
	}
	c.Dependencies = cloneStrings(t.Dependencies)
	c.Subtasks = cloneStrings(t.Subtasks)
	c.Metadata.Tags = cloneStrings(t.Metadata.Tags)
	if t.Metadata.Attributes != nil {
		c.Metadata.Attributes = make(map[string]string, len(t.Metadata.Attributes))
		for k, v := range t.Metadata.Attributes {
			c.Metadata.Attributes[k] = v
		}
	}
	return c
}

// HasDependency reports whether path is in the dependency set.
func (t Task) HasDependency(path string) bool {
	for _, d := range t.Dependencies {
		if d == path {
			return true
		}
	}
	return false
}

// HasSubtask reports whether path is in the subtask set.
func (t Task) HasSubtask(path string) bool {
	for _, s := range t.Subtasks {
		if s == path {
			return true
		}
	}
	return false
}

// MetadataInput is the caller-controlled part of Metadata.
type MetadataInput struct {
	Assignee   string            `json:"assignee,omitempty"`
	Tags       []string          `json:"tags,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// CreateInput describes a new task.
type CreateInput struct {
	Path         string         `json:"path"`
	Name         string         `json:"name"`
	Type         Type           `json:"type"`
	Description  string         `json:"description,omitempty"`
	Reasoning    string         `json:"reasoning,omitempty"`
	ParentPath   string         `json:"parentPath,omitempty"`
	Notes        Notes          `json:"notes"`
	Dependencies []string       `json:"dependencies,omitempty"`
	Metadata     *MetadataInput `json:"metadata,omitempty"`
}

// UpdateInput lists the fields to merge over an existing task. Nil pointers
// and nil slices leave the current value untouched; an empty non-nil slice
// clears it.
type UpdateInput struct {
	Name         *string        `json:"name,omitempty"`
	Type         *Type          `json:"type,omitempty"`
	Status       *Status        `json:"status,omitempty"`
	Description  *string        `json:"description,omitempty"`
	Reasoning    *string        `json:"reasoning,omitempty"`
	ParentPath   *string        `json:"parentPath,omitempty"`
	Notes        *Notes         `json:"notes,omitempty"`
	Dependencies []string       `json:"dependencies,omitempty"`
	Subtasks     []string       `json:"subtasks,omitempty"`
	Metadata     *MetadataInput `json:"metadata,omitempty"`
}

// Apply merges u over a copy of t. Version and timestamps are left to the store.
func (t Task) Apply(u UpdateInput) Task {
	next := t.Clone()
	if u.Name != nil {
		next.Name = *u.Name
	}
	if u.Type != nil {
		next.Type = *u.Type
	}
	if u.Status != nil {
		next.Status = *u.Status
	}
	if u.Description != nil {
		next.Description = *u.Description
	}
	if u.Reasoning != nil {
		next.Reasoning = *u.Reasoning
	}
	if u.ParentPath != nil {
		next.ParentPath = *u.ParentPath
	}
	if u.Notes != nil {
		next.Notes = Task{Notes: *u.Notes}.Clone().Notes
	}
	if u.Dependencies != nil {
		next.Dependencies = cloneStrings(u.Dependencies)
	}
	if u.Subtasks != nil {
		next.Subtasks = cloneStrings(u.Subtasks)
	}
	if u.Metadata != nil {
		if u.Metadata.Assignee != "" {
			next.Metadata.Assignee = u.Metadata.Assignee
		}
		if u.Metadata.Tags != nil {
			next.Metadata.Tags = cloneStrings(u.Metadata.Tags)
		}
		for k, v := range u.Metadata.Attributes {
			if next.Metadata.Attributes == nil {
				next.Metadata.Attributes = make(map[string]string)
			}
			next.Metadata.Attributes[k] = v
		}
	}
	return next
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
