package task_test

import (
	"encoding/json"
	"testing"

	"github.com/felixgeelhaar/waypoint/pkg/domain/task"
)

func sampleTask() task.Task {
	return task.Task{
		Path:         "project1/design",
		Name:         "Design",
		Type:         task.TypeTask,
		Status:       task.StatusPending,
		Notes:        task.Notes{Planning: []string{"sketch"}, Progress: []string{"started"}},
		Dependencies: []string{"project1/research"},
		Subtasks:     []string{"project1/design/api"},
		Metadata: task.Metadata{
			ProjectPath: "project1",
			Version:     1,
			Tags:        []string{"core"},
			Attributes:  map[string]string{"owner": "infra"},
		},
	}
}

func TestTask_CloneIsDeep(t *testing.T) {
	orig := sampleTask()
	c := orig.Clone()

	c.Notes.Planning[0] = "changed"
	c.Dependencies[0] = "changed"
	c.Subtasks[0] = "changed"
	c.Metadata.Tags[0] = "changed"
	c.Metadata.Attributes["owner"] = "changed"

	if orig.Notes.Planning[0] != "sketch" {
		t.Error("planning notes aliased")
	}
	if orig.Dependencies[0] != "project1/research" {
		t.Error("dependencies aliased")
	}
	if orig.Subtasks[0] != "project1/design/api" {
		t.Error("subtasks aliased")
	}
	if orig.Metadata.Tags[0] != "core" {
		t.Error("tags aliased")
	}
	if orig.Metadata.Attributes["owner"] != "infra" {
		t.Error("attributes aliased")
	}
}

func TestTask_Apply(t *testing.T) {
	orig := sampleTask()
	name := "Design v2"
	status := task.StatusInProgress

	next := orig.Apply(task.UpdateInput{
		Name:         &name,
		Status:       &status,
		Dependencies: []string{},
		Metadata:     &task.MetadataInput{Attributes: map[string]string{"team": "api"}},
	})

	if next.Name != name || next.Status != status {
		t.Fatalf("fields not merged: %+v", next)
	}
	if len(next.Dependencies) != 0 {
		t.Errorf("expected dependencies cleared, got %v", next.Dependencies)
	}
	if len(next.Subtasks) != 1 {
		t.Errorf("expected subtasks untouched, got %v", next.Subtasks)
	}
	if next.Metadata.Attributes["owner"] != "infra" || next.Metadata.Attributes["team"] != "api" {
		t.Errorf("attributes not merged: %v", next.Metadata.Attributes)
	}
	if orig.Name != "Design" || len(orig.Dependencies) != 1 {
		t.Error("Apply mutated the receiver")
	}
}

func TestStatus_UnmarshalLegacySpelling(t *testing.T) {
	var s task.Status
	if err := json.Unmarshal([]byte(`"in_progress"`), &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if s != task.StatusInProgress {
		t.Errorf("got %q, want %q", s, task.StatusInProgress)
	}
	if !task.StatusCompleted.IsTerminal() || task.StatusBlocked.IsTerminal() {
		t.Error("unexpected terminal classification")
	}
	if task.Status("done").IsValid() {
		t.Error("unknown status reported valid")
	}
}

func TestPathHelpers(t *testing.T) {
	tests := []struct {
		path    string
		wantErr bool
		project string
		parent  string
	}{
		{"project1", false, "project1", ""},
		{"project1/design", false, "project1", "project1"},
		{"project1/design/api", false, "project1", "project1/design"},
		{"", true, "", ""},
		{"project1//api", true, "project1", "project1/"},
		{"/project1", true, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			err := task.ValidatePath(tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidatePath(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
			if got := task.ProjectOf(tt.path); got != tt.project {
				t.Errorf("ProjectOf(%q) = %q, want %q", tt.path, got, tt.project)
			}
			if got := task.ParentOf(tt.path); got != tt.parent {
				t.Errorf("ParentOf(%q) = %q, want %q", tt.path, got, tt.parent)
			}
		})
	}
	if !task.IsWithin("p/a/b", "p/a") || task.IsWithin("p/ab", "p/a") {
		t.Error("IsWithin misclassified")
	}
}
