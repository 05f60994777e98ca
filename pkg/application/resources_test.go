package application

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/felixgeelhaar/waypoint/pkg/domain"
	"github.com/felixgeelhaar/waypoint/pkg/domain/task"
	"github.com/felixgeelhaar/waypoint/pkg/server"
)

func TestTaskResources(t *testing.T) {
	f := newFixture(t)
	seed(t, f)
	call[task.Task](t, f, "update_task", `{"path":"demo/api","status":"completed"}`)
	ctx := context.Background()

	list, err := f.h.ListTaskResources(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 4 || list[0].URI != server.TaskListURI || list[1].URI != "task://demo" {
		t.Errorf("resources = %+v", list)
	}

	content, err := f.h.TaskResource(ctx, server.TaskListURI)
	if err != nil {
		t.Fatal(err)
	}
	var ov overview
	if err := json.Unmarshal([]byte(content.Text), &ov); err != nil {
		t.Fatal(err)
	}
	if ov.Total != 3 || ov.ByStatus["completed"] != 1 || ov.ByStatus["pending"] != 2 || ov.ByStatus["blocked"] != 0 {
		t.Errorf("overview = %+v", ov)
	}
	if len(ov.RecentUpdates) == 0 || ov.RecentUpdates[0].Path != "demo/api" {
		t.Errorf("recent updates = %+v", ov.RecentUpdates)
	}

	one, err := f.h.TaskResource(ctx, "task://demo/api")
	if err != nil {
		t.Fatal(err)
	}
	if one.MimeType != mimeJSON || !strings.Contains(one.Text, `"path": "demo/api"`) {
		t.Errorf("task resource = %s", one.Text)
	}
	if _, err := f.h.TaskResource(ctx, "task://demo/none"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("missing task error = %v", err)
	}
}

func TestHierarchyResource(t *testing.T) {
	f := newFixture(t)
	seed(t, f)
	call[task.Task](t, f, "create_task", `{"path":"demo/api/auth","name":"Auth","type":"task","parentPath":"demo/api"}`)
	call[task.Task](t, f, "create_task", `{"path":"solo","name":"Solo","type":"task"}`)
	ctx := context.Background()

	content, err := f.h.HierarchyResource(ctx, "demo")
	if err != nil {
		t.Fatal(err)
	}
	var roots []*hierarchyNode
	if err := json.Unmarshal([]byte(content.Text), &roots); err != nil {
		t.Fatal(err)
	}
	if len(roots) != 1 || roots[0].Path != "demo" || len(roots[0].Children) != 2 {
		t.Fatalf("roots = %+v", roots)
	}
	if api := roots[0].Children[0]; api.Path != "demo/api" || len(api.Children) != 1 || api.Children[0].Path != "demo/api/auth" {
		t.Errorf("api node = %+v", api)
	}

	all, err := f.h.HierarchyResource(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(all.Text), &roots); err != nil || len(roots) != 2 {
		t.Errorf("full forest roots = %d, %v", len(roots), err)
	}

	if _, err := f.h.HierarchyResource(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("missing root error = %v", err)
	}
}

func TestStatusResourceProgress(t *testing.T) {
	f := newFixture(t)
	seed(t, f)
	call[task.Task](t, f, "update_task", `{"path":"demo/ui","status":"completed"}`)

	content, err := f.h.StatusResource(context.Background(), "demo")
	if err != nil {
		t.Fatal(err)
	}
	var st statusDetail
	if err := json.Unmarshal([]byte(content.Text), &st); err != nil {
		t.Fatal(err)
	}
	if st.Subtasks.Total != 2 || st.Subtasks.Completed != 1 || st.Subtasks.Percent != 50 {
		t.Errorf("progress = %+v", st.Subtasks)
	}
	if _, err := f.h.StatusResource(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("missing task error = %v", err)
	}
}

func TestVisualizationResource(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	empty, err := f.h.VisualizationResource(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(empty.Text, "(no tasks)") {
		t.Errorf("empty visualization = %q", empty.Text)
	}

	seed(t, f)
	call[task.Task](t, f, "update_task", `{"path":"demo/api","status":"completed"}`)
	call[task.Task](t, f, "update_task", `{"path":"demo/ui","status":"in-progress"}`)
	viz, err := f.h.VisualizationResource(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := strings.Join([]string{
		"Tasks: 1/3 completed (33%)",
		"└── [ ] Demo (demo)",
		"    ├── [x] API (demo/api)",
		"    └── [~] UI (demo/ui)",
		"",
	}, "\n")
	if viz.Text != want {
		t.Errorf("visualization:\n%s\nwant:\n%s", viz.Text, want)
	}
	if viz.MimeType != mimeText {
		t.Errorf("mime = %s", viz.MimeType)
	}
}

func TestTemplateResources(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	content, err := f.h.TemplateResource(ctx, server.TemplatesURI)
	if err != nil {
		t.Fatal(err)
	}
	var templates []Template
	if err := json.Unmarshal([]byte(content.Text), &templates); err != nil {
		t.Fatal(err)
	}
	if len(templates) != len(BuiltinTemplates()) {
		t.Errorf("served %d templates", len(templates))
	}
	for _, tmpl := range templates {
		if tmpl.Name == "" || len(tmpl.Tasks) == 0 || len(tmpl.Variables) == 0 {
			t.Errorf("incomplete template %+v", tmpl)
		}
	}
	if FindTemplate("release") == nil || FindTemplate("nonexistent") != nil {
		t.Error("FindTemplate lookup broken")
	}

	rts, err := f.h.ResourceTemplates(ctx)
	if err != nil || len(rts) != 3 {
		t.Errorf("resource templates = %v, %v", rts, err)
	}
}
