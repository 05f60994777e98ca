package sqlite

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/felixgeelhaar/waypoint/pkg/domain/task"
)

// timeResolution matches the millisecond precision of the timestamp columns.
const timeResolution = time.Millisecond

const taskColumns = `path, name, description, type, status, parent_path, notes, reasoning,
	dependencies, subtasks, metadata, created_at, updated_at`

// Note categories as persisted in the notes column.
const (
	noteCategoryPlanning        = "planning"
	noteCategoryProgress        = "progress"
	noteCategoryCompletion      = "completion"
	noteCategoryTroubleshooting = "troubleshooting"
)

// noteEntry is one element of the serialized notes list.
type noteEntry struct {
	Category string `json:"category"`
	Text     string `json:"text"`
}

type scanner interface {
	Scan(dest ...any) error
}

func encodeNotes(n task.Notes) string {
	entries := make([]noteEntry, 0, n.Count())
	add := func(category string, notes []string) {
		for _, text := range notes {
			entries = append(entries, noteEntry{Category: category, Text: text})
		}
	}
	add(noteCategoryPlanning, n.Planning)
	add(noteCategoryProgress, n.Progress)
	add(noteCategoryCompletion, n.Completion)
	add(noteCategoryTroubleshooting, n.Troubleshooting)
	data, _ := json.Marshal(entries)
	return string(data)
}

// decodeNotes falls back to an empty set on malformed content. A bare list
// of strings is read as progress notes.
func decodeNotes(raw sql.NullString) task.Notes {
	var n task.Notes
	if !raw.Valid || raw.String == "" {
		return n
	}
	var entries []noteEntry
	if err := json.Unmarshal([]byte(raw.String), &entries); err != nil {
		var plain []string
		if err := json.Unmarshal([]byte(raw.String), &plain); err != nil {
			return n
		}
		n.Progress = plain
		return n
	}
	for _, e := range entries {
		switch e.Category {
		case noteCategoryPlanning:
			n.Planning = append(n.Planning, e.Text)
		case noteCategoryCompletion:
			n.Completion = append(n.Completion, e.Text)
		case noteCategoryTroubleshooting:
			n.Troubleshooting = append(n.Troubleshooting, e.Text)
		default:
			n.Progress = append(n.Progress, e.Text)
		}
	}
	return n
}

func encodeList(items []string) string {
	if items == nil {
		items = []string{}
	}
	data, _ := json.Marshal(items)
	return string(data)
}

func decodeList(raw sql.NullString) []string {
	out := []string{}
	if !raw.Valid || raw.String == "" {
		return out
	}
	if err := json.Unmarshal([]byte(raw.String), &out); err != nil || out == nil {
		return []string{}
	}
	return out
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func scanTask(row scanner) (task.Task, error) {
	var (
		t                                  task.Task
		typ, status                        string
		description, parentPath, reasoning sql.NullString
		notes, deps, subtasks, metadata    sql.NullString
		createdAt, updatedAt               int64
	)
	if err := row.Scan(&t.Path, &t.Name, &description, &typ, &status, &parentPath, &notes,
		&reasoning, &deps, &subtasks, &metadata, &createdAt, &updatedAt); err != nil {
		return task.Task{}, err
	}
	t.Type = task.Type(typ)
	t.Status = task.Status(status)
	t.Description = description.String
	t.ParentPath = parentPath.String
	t.Reasoning = reasoning.String
	t.Notes = decodeNotes(notes)
	t.Dependencies = decodeList(deps)
	t.Subtasks = decodeList(subtasks)
	t.Metadata = decodeMetadata(metadata, t.Path, createdAt, updatedAt)
	return t, nil
}

// decodeMetadata falls back to the row's timestamp columns when the
// serialized record is missing or malformed.
func decodeMetadata(raw sql.NullString, path string, createdAt, updatedAt int64) task.Metadata {
	fallback := task.Metadata{
		Created:     time.UnixMilli(createdAt).UTC(),
		Updated:     time.UnixMilli(updatedAt).UTC(),
		ProjectPath: task.ProjectOf(path),
		Version:     1,
	}
	if !raw.Valid || raw.String == "" {
		return fallback
	}
	var m task.Metadata
	if err := json.Unmarshal([]byte(raw.String), &m); err != nil {
		return fallback
	}
	if m.Created.IsZero() {
		m.Created = fallback.Created
	}
	if m.Updated.IsZero() {
		m.Updated = fallback.Updated
	}
	if m.ProjectPath == "" {
		m.ProjectPath = fallback.ProjectPath
	}
	if m.Version < 1 {
		m.Version = 1
	}
	return m
}

func scanTasks(rows *sql.Rows) ([]task.Task, error) {
	defer rows.Close()
	out := []task.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
