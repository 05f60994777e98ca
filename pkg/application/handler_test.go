package application

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/felixgeelhaar/waypoint/pkg/cache"
	"github.com/felixgeelhaar/waypoint/pkg/domain"
	"github.com/felixgeelhaar/waypoint/pkg/domain/task"
	"github.com/felixgeelhaar/waypoint/pkg/storage/sqlite"
)

type fixture struct {
	h     *TaskHandler
	store *sqlite.Store
	cache *cache.TaskCache
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store := sqlite.New(sqlite.DefaultConfig(t.TempDir()),
		sqlite.WithLogger(logger),
		sqlite.WithClock(func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		}),
	)
	if err := store.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	c := cache.New()
	return fixture{h: NewTaskHandler(store, c, WithLogger(logger)), store: store, cache: c}
}

// call runs a tool and decodes its JSON text into T.
func call[T any](t *testing.T, f fixture, name, args string) T {
	t.Helper()
	res, err := f.h.CallTool(context.Background(), name, json.RawMessage(args))
	if err != nil {
		t.Fatalf("%s(%s): %v", name, args, err)
	}
	var out T
	if err := json.Unmarshal([]byte(res.Text()), &out); err != nil {
		t.Fatalf("decode %s result: %v\n%s", name, err, res.Text())
	}
	return out
}

func callErr(t *testing.T, f fixture, name, args string) error {
	t.Helper()
	_, err := f.h.CallTool(context.Background(), name, json.RawMessage(args))
	if err == nil {
		t.Fatalf("%s(%s): expected an error", name, args)
	}
	return err
}

func seed(t *testing.T, f fixture) {
	t.Helper()
	call[task.Task](t, f, "create_task", `{"path":"demo","name":"Demo","type":"group"}`)
	call[task.Task](t, f, "create_task", `{"path":"demo/api","name":"API","type":"task","parentPath":"demo"}`)
	call[task.Task](t, f, "create_task", `{"path":"demo/ui","name":"UI","type":"task","parentPath":"demo","dependencies":["demo/api"]}`)
}

func TestListTools(t *testing.T) {
	f := newFixture(t)
	tools, err := f.h.ListTools(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"create_task", "update_task", "get_task", "get_tasks", "get_tasks_by_pattern",
		"get_tasks_by_status", "get_subtasks", "get_dependents", "delete_tasks",
		"repair_relationships", "project_member_add", "project_member_remove", "project_member_list",
	}
	if len(tools) != len(want) {
		t.Fatalf("got %d tools, want %d", len(tools), len(want))
	}
	for i, name := range want {
		if tools[i].Name != name {
			t.Errorf("tool %d = %s, want %s", i, tools[i].Name, name)
		}
		if !json.Valid(tools[i].InputSchema) || tools[i].Description == "" {
			t.Errorf("tool %s has an unusable spec", name)
		}
	}
}

func TestCallTool_RejectsBadArguments(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		tool string
		args string
		want error
	}{
		{"unknown tool", "drop_all", `{}`, domain.ErrNotFound},
		{"missing name", "create_task", `{"path":"p","type":"task"}`, domain.ErrValidation},
		{"bad type", "create_task", `{"path":"p","name":"P","type":"epic"}`, domain.ErrValidation},
		{"unexpected field", "create_task", `{"path":"p","name":"P","type":"task","owner":"x"}`, domain.ErrValidation},
		{"bad status", "update_task", `{"path":"p","status":"done"}`, domain.ErrValidation},
		{"empty paths", "get_tasks", `{"paths":[]}`, domain.ErrValidation},
		{"no args", "get_task", ``, domain.ErrValidation},
		{"both member forms", "project_member_add", `{"projectPath":"demo","userId":"u","members":[{"userId":"v"}]}`, domain.ErrValidation},
		{"bad role", "project_member_add", `{"projectPath":"demo","userId":"u","role":"god"}`, domain.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := callErr(t, f, tt.tool, tt.args)
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCreateTask_AppendsToParent(t *testing.T) {
	f := newFixture(t)
	seed(t, f)

	parent := call[task.Task](t, f, "get_task", `{"path":"demo"}`)
	if got := strings.Join(parent.Subtasks, ","); got != "demo/api,demo/ui" {
		t.Errorf("subtasks = %s", got)
	}
	if parent.Metadata.Version != 3 {
		t.Errorf("parent version = %d, want 3", parent.Metadata.Version)
	}

	stored, _, err := f.store.GetTask(context.Background(), "demo")
	if err != nil || len(stored.Subtasks) != 2 {
		t.Errorf("stored parent = %+v, %v", stored.Subtasks, err)
	}
}

func TestCreateTask_Errors(t *testing.T) {
	f := newFixture(t)
	seed(t, f)

	if err := callErr(t, f, "create_task", `{"path":"demo/api","name":"Again","type":"task"}`); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("duplicate error = %v", err)
	}
	err := callErr(t, f, "create_task", `{"path":"other/x","name":"X","type":"task","parentPath":"other"}`)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("missing parent error = %v", err)
	}
	if _, ok, _ := f.store.GetTask(context.Background(), "other/x"); ok {
		t.Error("task created despite missing parent")
	}
}

func TestUpdateTask_StatusTransitionThroughCache(t *testing.T) {
	f := newFixture(t)
	seed(t, f)

	updated := call[task.Task](t, f, "update_task", `{"path":"demo/api","status":"in_progress"}`)
	if updated.Status != task.StatusInProgress || updated.Metadata.Version != 2 {
		t.Errorf("updated = %s v%d", updated.Status, updated.Metadata.Version)
	}

	entry, ok := f.cache.Entry("demo/api")
	if !ok {
		t.Fatal("updated task not cached")
	}
	tr := entry.StatusMetadata.LastTransition
	if tr == nil || tr.From != task.StatusPending || tr.To != task.StatusInProgress {
		t.Errorf("transition = %+v", tr)
	}

	got := call[task.Task](t, f, "get_task", `{"path":"demo/api"}`)
	if got.Status != task.StatusInProgress {
		t.Errorf("get_task status = %s", got.Status)
	}

	content, err := f.h.StatusResource(context.Background(), "demo/api")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(content.Text, `"lastTransition"`) || !strings.Contains(content.Text, `"in-progress"`) {
		t.Errorf("status resource = %s", content.Text)
	}
}

func TestUpdateTask_Reparent(t *testing.T) {
	f := newFixture(t)
	seed(t, f)
	call[task.Task](t, f, "create_task", `{"path":"demo/later","name":"Later","type":"group","parentPath":"demo"}`)

	moved := call[task.Task](t, f, "update_task", `{"path":"demo/ui","parentPath":"demo/later"}`)
	if moved.ParentPath != "demo/later" {
		t.Fatalf("parent = %s", moved.ParentPath)
	}
	demo := call[task.Task](t, f, "get_task", `{"path":"demo"}`)
	if demo.HasSubtask("demo/ui") {
		t.Error("old parent still lists the task")
	}
	later := call[task.Task](t, f, "get_task", `{"path":"demo/later"}`)
	if !later.HasSubtask("demo/ui") {
		t.Error("new parent does not list the task")
	}

	if err := callErr(t, f, "update_task", `{"path":"nope","name":"x"}`); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("missing task error = %v", err)
	}
}

func TestGetTask_ReadsThroughCache(t *testing.T) {
	f := newFixture(t)
	seed(t, f)
	ctx := context.Background()

	call[task.Task](t, f, "get_task", `{"path":"demo/api"}`)
	name := "Renamed behind the cache"
	if _, err := f.store.UpdateTask(ctx, "demo/api", task.UpdateInput{Name: &name}); err != nil {
		t.Fatal(err)
	}
	if got := call[task.Task](t, f, "get_task", `{"path":"demo/api"}`); got.Name != "API" {
		t.Errorf("expected the cached copy, got %q", got.Name)
	}

	if err := f.h.ClearCaches(ctx); err != nil {
		t.Fatal(err)
	}
	if got := call[task.Task](t, f, "get_task", `{"path":"demo/api"}`); got.Name != name {
		t.Errorf("after clear got %q", got.Name)
	}
	if err := callErr(t, f, "get_task", `{"path":"demo/none"}`); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("missing task error = %v", err)
	}
}

func TestQueries(t *testing.T) {
	f := newFixture(t)
	seed(t, f)
	call[task.Task](t, f, "update_task", `{"path":"demo/ui","status":"blocked"}`)

	paths := func(l taskList) string {
		var out []string
		for _, t := range l.Tasks {
			out = append(out, t.Path)
		}
		return strings.Join(out, ",")
	}
	tests := []struct {
		tool string
		args string
		want string
	}{
		{"get_tasks", `{"paths":["demo/ui","missing","demo","demo"]}`, "demo,demo/ui"},
		{"get_tasks_by_pattern", `{"pattern":"demo/*"}`, "demo/api,demo/ui"},
		{"get_tasks_by_status", `{"status":"blocked"}`, "demo/ui"},
		{"get_tasks_by_status", `{"status":"completed"}`, ""},
		{"get_subtasks", `{"parentPath":"demo"}`, "demo/api,demo/ui"},
		{"get_dependents", `{"path":"demo/api"}`, "demo/ui"},
	}
	for _, tt := range tests {
		t.Run(tt.tool+tt.args, func(t *testing.T) {
			got := call[taskList](t, f, tt.tool, tt.args)
			if paths(got) != tt.want || got.Count != len(got.Tasks) {
				t.Errorf("got %q (count %d), want %q", paths(got), got.Count, tt.want)
			}
		})
	}
}

func TestDeleteTasks(t *testing.T) {
	f := newFixture(t)
	seed(t, f)
	call[task.Task](t, f, "get_task", `{"path":"demo/api"}`)

	res := call[deleteResult](t, f, "delete_tasks", `{"paths":["demo/api","demo/ghost"]}`)
	if strings.Join(res.Deleted, ",") != "demo/api" || strings.Join(res.NotFound, ",") != "demo/ghost" {
		t.Errorf("result = %+v", res)
	}
	if _, ok := f.cache.Get("demo/api"); ok {
		t.Error("deleted task still cached")
	}
	demo := call[task.Task](t, f, "get_task", `{"path":"demo"}`)
	if strings.Join(demo.Subtasks, ",") != "demo/ui" {
		t.Errorf("parent subtasks = %v", demo.Subtasks)
	}
}

func TestDeleteTasks_RepeatedPaths(t *testing.T) {
	f := newFixture(t)
	seed(t, f)

	res := call[deleteResult](t, f, "delete_tasks", `{"paths":["demo/api","demo/api","demo/ghost","demo/ghost"]}`)
	if strings.Join(res.Deleted, ",") != "demo/api" {
		t.Errorf("deleted = %v, want each path once", res.Deleted)
	}
	if strings.Join(res.NotFound, ",") != "demo/ghost" {
		t.Errorf("not found = %v, want each path once", res.NotFound)
	}
	demo := call[task.Task](t, f, "get_task", `{"path":"demo"}`)
	if strings.Join(demo.Subtasks, ",") != "demo/ui" {
		t.Errorf("parent subtasks = %v", demo.Subtasks)
	}
}

func TestRepairRelationships(t *testing.T) {
	f := newFixture(t)
	seed(t, f)
	if err := f.store.DeleteTasks(context.Background(), []string{"demo"}); err != nil {
		t.Fatal(err)
	}

	dry := call[sqlite.RepairResult](t, f, "repair_relationships", `{"dryRun":true}`)
	if dry.Fixed != 0 || len(dry.Issues) != 2 {
		t.Errorf("dry run = %+v", dry)
	}
	call[task.Task](t, f, "get_task", `{"path":"demo/api"}`)

	res := call[sqlite.RepairResult](t, f, "repair_relationships", `{}`)
	if res.Fixed != 2 {
		t.Errorf("fixed = %d, want 2", res.Fixed)
	}
	if f.cache.Len() != 0 {
		t.Error("cache not cleared after repair")
	}
	if got := call[task.Task](t, f, "get_task", `{"path":"demo/api"}`); got.ParentPath != "" {
		t.Errorf("parent still %q", got.ParentPath)
	}
}

func TestStorageMetricsAndCleanup(t *testing.T) {
	f := newFixture(t)
	seed(t, f)
	ctx := context.Background()
	call[task.Task](t, f, "get_task", `{"path":"demo"}`)

	m, err := f.h.StorageMetrics(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if m.Tasks.Total != 3 || m.Storage.Cache.EntryCount != f.cache.Len() {
		t.Errorf("metrics = %+v", m)
	}

	if err := f.h.Cleanup(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := f.h.StorageMetrics(ctx); !errors.Is(err, domain.ErrNotInitialized) {
		t.Errorf("after cleanup error = %v", err)
	}
}
