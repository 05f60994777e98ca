package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/felixgeelhaar/waypoint/pkg/domain"
	"github.com/felixgeelhaar/waypoint/pkg/domain/task"
)

// batchSize bounds the number of bound parameters per IN (...) statement.
const batchSize = 500

// CreateTask validates the input and persists a new pending task at version 1.
// An existing row at the same path is replaced.
func (s *Store) CreateTask(ctx context.Context, in task.CreateInput) (task.Task, error) {
	db, err := s.handle("createTask")
	if err != nil {
		return task.Task{}, err
	}
	return s.createTask(ctx, db, in)
}

// UpdateTask merges updates over the stored task, bumping updated and version.
func (s *Store) UpdateTask(ctx context.Context, path string, updates task.UpdateInput) (task.Task, error) {
	db, err := s.handle("updateTask")
	if err != nil {
		return task.Task{}, err
	}
	return s.updateTask(ctx, db, path, updates)
}

// GetTask returns the task at path; ok is false when it does not exist.
func (s *Store) GetTask(ctx context.Context, path string) (task.Task, bool, error) {
	db, err := s.handle("getTask")
	if err != nil {
		return task.Task{}, false, err
	}
	return getTask(ctx, db, path)
}

// GetTasks returns the tasks found among paths, ordered by path.
func (s *Store) GetTasks(ctx context.Context, paths []string) ([]task.Task, error) {
	db, err := s.handle("getTasks")
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return []task.Task{}, nil
	}
	out := []task.Task{}
	for _, chunk := range chunks(paths) {
		rows, err := db.QueryContext(ctx,
			`SELECT `+taskColumns+` FROM tasks WHERE path IN (`+placeholders(len(chunk))+`) ORDER BY path`,
			toArgs(chunk)...)
		if err != nil {
			return nil, domain.WrapStorage("getTasks", err)
		}
		found, err := scanTasks(rows)
		if err != nil {
			return nil, domain.WrapStorage("getTasks", err)
		}
		out = append(out, found...)
	}
	return out, nil
}

// GetTasksByPattern matches paths against a glob where * matches any run of
// characters and ? matches exactly one.
func (s *Store) GetTasksByPattern(ctx context.Context, pattern string) ([]task.Task, error) {
	return s.queryTasks(ctx, "getTasksByPattern",
		`SELECT `+taskColumns+` FROM tasks WHERE path LIKE ? ESCAPE '\' ORDER BY path`, globToLike(pattern))
}

// GetTasksByStatus returns every task in the given status.
func (s *Store) GetTasksByStatus(ctx context.Context, status task.Status) ([]task.Task, error) {
	return s.queryTasks(ctx, "getTasksByStatus",
		`SELECT `+taskColumns+` FROM tasks WHERE status = ? ORDER BY path`, string(status))
}

// GetSubtasks returns the direct children of parentPath.
func (s *Store) GetSubtasks(ctx context.Context, parentPath string) ([]task.Task, error) {
	return s.queryTasks(ctx, "getSubtasks",
		`SELECT `+taskColumns+` FROM tasks WHERE parent_path = ? ORDER BY path`, parentPath)
}

// GetDependentTasks returns the tasks whose dependency set contains path.
func (s *Store) GetDependentTasks(ctx context.Context, path string) ([]task.Task, error) {
	return s.queryTasks(ctx, "getDependentTasks",
		`SELECT `+taskColumns+` FROM tasks
		 WHERE EXISTS (
		   SELECT 1 FROM json_each(CASE WHEN json_valid(tasks.dependencies) THEN tasks.dependencies ELSE '[]' END) AS dep
		   WHERE dep.value = ?
		 )
		 ORDER BY path`, path)
}

// ListTasks returns every task ordered by path.
func (s *Store) ListTasks(ctx context.Context) ([]task.Task, error) {
	return s.queryTasks(ctx, "listTasks", `SELECT `+taskColumns+` FROM tasks ORDER BY path`)
}

// HasChildren reports whether any task names path as its parent.
func (s *Store) HasChildren(ctx context.Context, path string) (bool, error) {
	db, err := s.handle("hasChildren")
	if err != nil {
		return false, err
	}
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE parent_path = ?`, path).Scan(&count); err != nil {
		return false, domain.WrapStorage("hasChildren", err)
	}
	return count > 0, nil
}

// DeleteTask removes a single task. See DeleteTasks.
func (s *Store) DeleteTask(ctx context.Context, path string) error {
	return s.DeleteTasks(ctx, []string{path})
}

// DeleteTasks removes the given paths. Missing paths are ignored.
func (s *Store) DeleteTasks(ctx context.Context, paths []string) error {
	db, err := s.handle("deleteTasks")
	if err != nil {
		return err
	}
	return deleteTasks(ctx, db, paths)
}

// SaveTask upserts a task row as-is.
func (s *Store) SaveTask(ctx context.Context, t task.Task) error {
	return s.SaveTasks(ctx, []task.Task{t})
}

// SaveTasks upserts every task row as-is.
func (s *Store) SaveTasks(ctx context.Context, tasks []task.Task) error {
	db, err := s.handle("saveTasks")
	if err != nil {
		return err
	}
	return saveTasks(ctx, db, tasks)
}

// ClearAllTasks deletes every task row.
func (s *Store) ClearAllTasks(ctx context.Context) error {
	db, err := s.handle("clearAllTasks")
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `DELETE FROM tasks`)
	return domain.WrapStorage("clearAllTasks", err)
}

// CreateTask runs Store.CreateTask inside the transaction.
func (tx *Tx) CreateTask(ctx context.Context, in task.CreateInput) (task.Task, error) {
	return tx.store.createTask(ctx, tx.conn, in)
}

// UpdateTask runs Store.UpdateTask inside the transaction.
func (tx *Tx) UpdateTask(ctx context.Context, path string, updates task.UpdateInput) (task.Task, error) {
	return tx.store.updateTask(ctx, tx.conn, path, updates)
}

// GetTask runs Store.GetTask inside the transaction.
func (tx *Tx) GetTask(ctx context.Context, path string) (task.Task, bool, error) {
	return getTask(ctx, tx.conn, path)
}

// SaveTasks runs Store.SaveTasks inside the transaction.
func (tx *Tx) SaveTasks(ctx context.Context, tasks []task.Task) error {
	return saveTasks(ctx, tx.conn, tasks)
}

// DeleteTasks runs Store.DeleteTasks inside the transaction.
func (tx *Tx) DeleteTasks(ctx context.Context, paths []string) error {
	return deleteTasks(ctx, tx.conn, paths)
}

func (s *Store) createTask(ctx context.Context, q querier, in task.CreateInput) (task.Task, error) {
	if in.Path == "" || in.Name == "" || in.Type == "" {
		return task.Task{}, domain.Errorf(domain.ErrValidation, "createTask", "path, name, and type are required")
	}
	if err := task.ValidatePath(in.Path); err != nil {
		return task.Task{}, domain.Errorf(domain.ErrValidation, "createTask", "%v", err)
	}

	now := s.now().UTC().Truncate(timeResolution)
	t := task.Task{
		Path:         in.Path,
		Name:         in.Name,
		Type:         in.Type,
		Status:       task.StatusPending,
		Description:  in.Description,
		Reasoning:    in.Reasoning,
		ParentPath:   in.ParentPath,
		Notes:        task.Task{Notes: in.Notes}.Clone().Notes,
		Dependencies: append([]string{}, in.Dependencies...),
		Subtasks:     []string{},
		Metadata: task.Metadata{
			Created:     now,
			Updated:     now,
			ProjectPath: task.ProjectOf(in.Path),
			Version:     1,
		},
	}
	if in.Metadata != nil {
		t = t.Apply(task.UpdateInput{Metadata: in.Metadata})
	}
	if err := saveTasks(ctx, q, []task.Task{t}); err != nil {
		return task.Task{}, err
	}
	return t, nil
}

func (s *Store) updateTask(ctx context.Context, q querier, path string, updates task.UpdateInput) (task.Task, error) {
	if updates.Status != nil && !updates.Status.IsValid() {
		return task.Task{}, domain.Errorf(domain.ErrValidation, "updateTask", "invalid status %q", *updates.Status)
	}
	existing, ok, err := getTask(ctx, q, path)
	if err != nil {
		return task.Task{}, err
	}
	if !ok {
		return task.Task{}, domain.Errorf(domain.ErrNotFound, "updateTask", "task %s", path)
	}

	next := existing.Apply(updates)
	next.Path = existing.Path
	next.Metadata.Created = existing.Metadata.Created
	next.Metadata.ProjectPath = existing.Metadata.ProjectPath
	next.Metadata.Updated = s.now().UTC().Truncate(timeResolution)
	next.Metadata.Version = existing.Metadata.Version + 1

	if err := saveTasks(ctx, q, []task.Task{next}); err != nil {
		return task.Task{}, err
	}
	return next, nil
}

func (s *Store) queryTasks(ctx context.Context, op, query string, args ...any) ([]task.Task, error) {
	db, err := s.handle(op)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.WrapStorage(op, err)
	}
	out, err := scanTasks(rows)
	if err != nil {
		return nil, domain.WrapStorage(op, err)
	}
	return out, nil
}

func getTask(ctx context.Context, q querier, path string) (task.Task, bool, error) {
	row := q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE path = ?`, path)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return task.Task{}, false, nil
	}
	if err != nil {
		return task.Task{}, false, domain.WrapStorage("getTask", err)
	}
	return t, true, nil
}

func saveTasks(ctx context.Context, q querier, tasks []task.Task) error {
	for _, t := range tasks {
		metadata, err := json.Marshal(t.Metadata)
		if err != nil {
			return domain.Errorf(domain.ErrValidation, "saveTask", "encode metadata for %s: %v", t.Path, err)
		}
		if _, err := q.ExecContext(ctx,
			`INSERT OR REPLACE INTO tasks (
				path, name, description, type, status,
				parent_path, notes, reasoning, dependencies,
				subtasks, metadata, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.Path,
			t.Name,
			nullString(t.Description),
			string(t.Type),
			string(t.Status),
			nullString(t.ParentPath),
			encodeNotes(t.Notes),
			nullString(t.Reasoning),
			encodeList(t.Dependencies),
			encodeList(t.Subtasks),
			string(metadata),
			t.Metadata.Created.UnixMilli(),
			t.Metadata.Updated.UnixMilli(),
		); err != nil {
			return domain.WrapStorage("saveTask", err)
		}
	}
	return nil
}

func deleteTasks(ctx context.Context, q querier, paths []string) error {
	for _, chunk := range chunks(paths) {
		if _, err := q.ExecContext(ctx,
			`DELETE FROM tasks WHERE path IN (`+placeholders(len(chunk))+`)`, toArgs(chunk)...); err != nil {
			return domain.WrapStorage("deleteTasks", err)
		}
	}
	return nil
}

// globToLike escapes LIKE metacharacters in pattern before translating the
// glob wildcards, so literal % and _ in paths match only themselves.
func globToLike(pattern string) string {
	var b strings.Builder
	for _, r := range pattern {
		switch r {
		case '\\', '%', '_':
			b.WriteRune('\\')
			b.WriteRune(r)
		case '*':
			b.WriteRune('%')
		case '?':
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func chunks(items []string) [][]string {
	var out [][]string
	for len(items) > 0 {
		n := batchSize
		if len(items) < n {
			n = len(items)
		}
		out = append(out, items[:n])
		items = items[n:]
	}
	return out
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func toArgs(items []string) []any {
	args := make([]any, len(items))
	for i, v := range items {
		args[i] = v
	}
	return args
}
