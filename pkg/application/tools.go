package application

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/felixgeelhaar/waypoint/pkg/domain"
	"github.com/felixgeelhaar/waypoint/pkg/domain/task"
	"github.com/felixgeelhaar/waypoint/pkg/storage/sqlite"
)

type taskList struct {
	Tasks []task.Task `json:"tasks"`
	Count int         `json:"count"`
}

func newTaskList(tasks []task.Task) taskList {
	if tasks == nil {
		tasks = []task.Task{}
	}
	return taskList{Tasks: tasks, Count: len(tasks)}
}

type deleteResult struct {
	Deleted  []string `json:"deleted"`
	NotFound []string `json:"notFound"`
}

func (h *TaskHandler) createTask(ctx context.Context, args json.RawMessage) (any, error) {
	in, err := decodeArgs[task.CreateInput]("create_task", args)
	if err != nil {
		return nil, err
	}

	var created task.Task
	var parent *task.Task
	err = h.store.WithTx(ctx, func(tx *sqlite.Tx) error {
		_, exists, err := tx.GetTask(ctx, in.Path)
		if err != nil {
			return err
		}
		if exists {
			return domain.Errorf(domain.ErrValidation, "create_task", "task already exists: %s", in.Path)
		}
		if in.ParentPath != "" {
			p, err := h.attach(ctx, tx, in.ParentPath, in.Path)
			if err != nil {
				return err
			}
			parent = &p
		}
		created, err = tx.CreateTask(ctx, in)
		return err
	})
	if err != nil {
		return nil, err
	}

	h.cache.Set(created)
	if parent != nil {
		h.cache.Set(*parent)
	}
	return created, nil
}

type updateArgs struct {
	Path string `json:"path"`
	task.UpdateInput
}

func (h *TaskHandler) updateTask(ctx context.Context, args json.RawMessage) (any, error) {
	in, err := decodeArgs[updateArgs]("update_task", args)
	if err != nil {
		return nil, err
	}

	var updated task.Task
	var touched []task.Task
	err = h.store.WithTx(ctx, func(tx *sqlite.Tx) error {
		existing, ok, err := tx.GetTask(ctx, in.Path)
		if err != nil {
			return err
		}
		if !ok {
			return domain.Errorf(domain.ErrNotFound, "update_task", "task not found: %s", in.Path)
		}
		if in.ParentPath != nil && *in.ParentPath != existing.ParentPath {
			if existing.ParentPath != "" {
				old, found, err := h.detach(ctx, tx, existing.ParentPath, in.Path)
				if err != nil {
					return err
				}
				if found {
					touched = append(touched, old)
				}
			}
			if *in.ParentPath != "" {
				p, err := h.attach(ctx, tx, *in.ParentPath, in.Path)
				if err != nil {
					return err
				}
				touched = append(touched, p)
			}
		}
		updated, err = tx.UpdateTask(ctx, in.Path, in.UpdateInput)
		return err
	})
	if err != nil {
		return nil, err
	}

	h.cache.Set(updated)
	for _, t := range touched {
		h.cache.Set(t)
	}
	return updated, nil
}

// attach appends child to the subtasks of parentPath, which must exist.
func (h *TaskHandler) attach(ctx context.Context, tx *sqlite.Tx, parentPath, child string) (task.Task, error) {
	p, ok, err := tx.GetTask(ctx, parentPath)
	if err != nil {
		return task.Task{}, err
	}
	if !ok {
		return task.Task{}, domain.Errorf(domain.ErrNotFound, "attachSubtask", "parent task not found: %s", parentPath)
	}
	if p.HasSubtask(child) {
		return p, nil
	}
	subtasks := append(append([]string{}, p.Subtasks...), child)
	return tx.UpdateTask(ctx, parentPath, task.UpdateInput{Subtasks: subtasks})
}

// detach drops child from the subtasks of parentPath. found is false when
// the parent no longer exists.
func (h *TaskHandler) detach(ctx context.Context, tx *sqlite.Tx, parentPath, child string) (task.Task, bool, error) {
	p, ok, err := tx.GetTask(ctx, parentPath)
	if err != nil || !ok {
		return task.Task{}, false, err
	}
	if !p.HasSubtask(child) {
		return p, true, nil
	}
	subtasks := make([]string, 0, len(p.Subtasks))
	for _, s := range p.Subtasks {
		if s != child {
			subtasks = append(subtasks, s)
		}
	}
	updated, err := tx.UpdateTask(ctx, parentPath, task.UpdateInput{Subtasks: subtasks})
	return updated, true, err
}

type pathArgs struct {
	Path string `json:"path"`
}

func (h *TaskHandler) getTask(ctx context.Context, args json.RawMessage) (any, error) {
	in, err := decodeArgs[pathArgs]("get_task", args)
	if err != nil {
		return nil, err
	}
	t, ok, err := h.lookup(ctx, in.Path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.Errorf(domain.ErrNotFound, "get_task", "task not found: %s", in.Path)
	}
	return t, nil
}

// lookup reads through the cache.
func (h *TaskHandler) lookup(ctx context.Context, path string) (task.Task, bool, error) {
	if t, ok := h.cache.Get(path); ok {
		return t, true, nil
	}
	t, ok, err := h.store.GetTask(ctx, path)
	if err != nil || !ok {
		return task.Task{}, ok, err
	}
	h.cache.Set(t)
	return t, true, nil
}

func (h *TaskHandler) getTasks(ctx context.Context, args json.RawMessage) (any, error) {
	in, err := decodeArgs[struct {
		Paths []string `json:"paths"`
	}]("get_tasks", args)
	if err != nil {
		return nil, err
	}

	var found []task.Task
	var misses []string
	seen := make(map[string]bool, len(in.Paths))
	for _, p := range in.Paths {
		if seen[p] {
			continue
		}
		seen[p] = true
		if t, ok := h.cache.Get(p); ok {
			found = append(found, t)
		} else {
			misses = append(misses, p)
		}
	}
	if len(misses) > 0 {
		loaded, err := h.store.GetTasks(ctx, misses)
		if err != nil {
			return nil, err
		}
		h.remember(loaded)
		found = append(found, loaded...)
	}
	sort.Slice(found, func(i, j int) bool { return found[i].Path < found[j].Path })
	return newTaskList(found), nil
}

func (h *TaskHandler) getTasksByPattern(ctx context.Context, args json.RawMessage) (any, error) {
	in, err := decodeArgs[struct {
		Pattern string `json:"pattern"`
	}]("get_tasks_by_pattern", args)
	if err != nil {
		return nil, err
	}
	return h.listed(h.store.GetTasksByPattern(ctx, in.Pattern))
}

func (h *TaskHandler) getTasksByStatus(ctx context.Context, args json.RawMessage) (any, error) {
	in, err := decodeArgs[struct {
		Status task.Status `json:"status"`
	}]("get_tasks_by_status", args)
	if err != nil {
		return nil, err
	}
	if !in.Status.IsValid() {
		return nil, domain.Errorf(domain.ErrValidation, "get_tasks_by_status", "invalid status %q", in.Status)
	}
	return h.listed(h.store.GetTasksByStatus(ctx, in.Status))
}

func (h *TaskHandler) getSubtasks(ctx context.Context, args json.RawMessage) (any, error) {
	in, err := decodeArgs[struct {
		ParentPath string `json:"parentPath"`
	}]("get_subtasks", args)
	if err != nil {
		return nil, err
	}
	return h.listed(h.store.GetSubtasks(ctx, in.ParentPath))
}

func (h *TaskHandler) getDependents(ctx context.Context, args json.RawMessage) (any, error) {
	in, err := decodeArgs[pathArgs]("get_dependents", args)
	if err != nil {
		return nil, err
	}
	return h.listed(h.store.GetDependentTasks(ctx, in.Path))
}

func (h *TaskHandler) listed(tasks []task.Task, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	h.remember(tasks)
	return newTaskList(tasks), nil
}

func (h *TaskHandler) remember(tasks []task.Task) {
	for _, t := range tasks {
		h.cache.Set(t)
	}
}

func (h *TaskHandler) deleteTasks(ctx context.Context, args json.RawMessage) (any, error) {
	in, err := decodeArgs[struct {
		Paths []string `json:"paths"`
	}]("delete_tasks", args)
	if err != nil {
		return nil, err
	}

	res := deleteResult{Deleted: []string{}, NotFound: []string{}}
	var touched []task.Task
	doomed := make(map[string]bool, len(in.Paths))
	paths := make([]string, 0, len(in.Paths))
	for _, p := range in.Paths {
		if !doomed[p] {
			doomed[p] = true
			paths = append(paths, p)
		}
	}
	err = h.store.WithTx(ctx, func(tx *sqlite.Tx) error {
		type link struct{ parent, child string }
		var links []link
		for _, p := range paths {
			t, ok, err := tx.GetTask(ctx, p)
			if err != nil {
				return err
			}
			if !ok {
				res.NotFound = append(res.NotFound, p)
				continue
			}
			res.Deleted = append(res.Deleted, p)
			if t.ParentPath != "" && !doomed[t.ParentPath] {
				links = append(links, link{t.ParentPath, p})
			}
		}
		for _, l := range links {
			parent, found, err := h.detach(ctx, tx, l.parent, l.child)
			if err != nil {
				return err
			}
			if found {
				touched = append(touched, parent)
			}
		}
		return tx.DeleteTasks(ctx, res.Deleted)
	})
	if err != nil {
		return nil, err
	}

	h.cache.Delete(in.Paths...)
	for _, t := range touched {
		h.cache.Set(t)
	}
	return res, nil
}

func (h *TaskHandler) repairRelationships(ctx context.Context, args json.RawMessage) (any, error) {
	in, err := decodeArgs[struct {
		DryRun bool `json:"dryRun"`
	}]("repair_relationships", args)
	if err != nil {
		return nil, err
	}
	res, err := h.store.RepairRelationships(ctx, in.DryRun)
	if err != nil {
		return nil, err
	}
	if !in.DryRun && res.Fixed > 0 {
		h.cache.Clear()
	}
	if res.Issues == nil {
		res.Issues = []string{}
	}
	return res, nil
}
