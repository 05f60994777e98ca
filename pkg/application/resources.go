package application

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/felixgeelhaar/waypoint/pkg/cache"
	"github.com/felixgeelhaar/waypoint/pkg/domain"
	"github.com/felixgeelhaar/waypoint/pkg/domain/task"
	"github.com/felixgeelhaar/waypoint/pkg/server"
)

const (
	mimeJSON = "application/json"
	mimeText = "text/plain"

	recentUpdates = 10
)

// ListTaskResources lists the overview resource and one resource per task.
func (h *TaskHandler) ListTaskResources(ctx context.Context) ([]server.Resource, error) {
	tasks, err := h.store.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]server.Resource, 0, len(tasks)+1)
	out = append(out, server.Resource{
		URI:         server.TaskListURI,
		Name:        "Current Task List Overview",
		Description: "Overview of all tasks including status counts and recent updates",
		MimeType:    mimeJSON,
	})
	for _, t := range tasks {
		out = append(out, server.Resource{
			URI:         server.TaskScheme + t.Path,
			Name:        t.Name,
			Description: t.Description,
			MimeType:    mimeJSON,
		})
	}
	return out, nil
}

type overview struct {
	Total         int            `json:"total"`
	ByStatus      map[string]int `json:"byStatus"`
	Projects      []string       `json:"projects"`
	RecentUpdates []taskSummary  `json:"recentUpdates"`
}

type taskSummary struct {
	Path    string      `json:"path"`
	Name    string      `json:"name"`
	Status  task.Status `json:"status"`
	Updated time.Time   `json:"updated"`
}

type taskDetail struct {
	task.Task
	LastTransition *cache.Transition `json:"lastTransition,omitempty"`
}

// TaskResource serves the overview at tasklist://current and single tasks
// at task://<path>.
func (h *TaskHandler) TaskResource(ctx context.Context, uri string) (*server.ResourceContent, error) {
	if uri == server.TaskListURI {
		tasks, err := h.store.ListTasks(ctx)
		if err != nil {
			return nil, err
		}
		return jsonContent(uri, buildOverview(tasks))
	}

	path := strings.TrimPrefix(uri, server.TaskScheme)
	t, ok, err := h.lookup(ctx, path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.Errorf(domain.ErrNotFound, "readTask", "task not found: %s", path)
	}
	detail := taskDetail{Task: t}
	if e, ok := h.cache.Entry(path); ok {
		detail.LastTransition = e.StatusMetadata.LastTransition
	}
	return jsonContent(uri, detail)
}

func buildOverview(tasks []task.Task) overview {
	ov := overview{
		Total:         len(tasks),
		ByStatus:      make(map[string]int),
		Projects:      []string{},
		RecentUpdates: []taskSummary{},
	}
	for _, s := range task.AllStatuses() {
		ov.ByStatus[string(s)] = 0
	}
	projects := make(map[string]bool)
	for _, t := range tasks {
		ov.ByStatus[string(t.Status)]++
		if p := task.ProjectOf(t.Path); !projects[p] {
			projects[p] = true
			ov.Projects = append(ov.Projects, p)
		}
	}
	sort.Strings(ov.Projects)

	recent := append([]task.Task(nil), tasks...)
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].Metadata.Updated.After(recent[j].Metadata.Updated)
	})
	if len(recent) > recentUpdates {
		recent = recent[:recentUpdates]
	}
	for _, t := range recent {
		ov.RecentUpdates = append(ov.RecentUpdates, taskSummary{
			Path: t.Path, Name: t.Name, Status: t.Status, Updated: t.Metadata.Updated,
		})
	}
	return ov
}

type hierarchyNode struct {
	Path     string           `json:"path"`
	Name     string           `json:"name"`
	Type     task.Type        `json:"type"`
	Status   task.Status      `json:"status"`
	Children []*hierarchyNode `json:"children"`
}

// HierarchyResource renders the subtree rooted at rootPath. An empty root
// renders every project.
func (h *TaskHandler) HierarchyResource(ctx context.Context, rootPath string) (*server.ResourceContent, error) {
	tasks, err := h.store.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	roots := buildForest(tasks, rootPath)
	if rootPath != "" && len(roots) == 0 {
		return nil, domain.Errorf(domain.ErrNotFound, "readHierarchy", "task not found: %s", rootPath)
	}
	return jsonContent(server.HierarchyScheme+rootPath, roots)
}

// buildForest arranges the tasks within root by parent link. Tasks whose
// parent is outside the set become roots.
func buildForest(tasks []task.Task, root string) []*hierarchyNode {
	nodes := make(map[string]*hierarchyNode)
	var order []task.Task
	for _, t := range tasks {
		if root != "" && !task.IsWithin(t.Path, root) {
			continue
		}
		nodes[t.Path] = &hierarchyNode{Path: t.Path, Name: t.Name, Type: t.Type, Status: t.Status, Children: []*hierarchyNode{}}
		order = append(order, t)
	}
	roots := []*hierarchyNode{}
	for _, t := range order {
		n := nodes[t.Path]
		if parent, ok := nodes[t.ParentPath]; ok && t.Path != root {
			parent.Children = append(parent.Children, n)
			continue
		}
		roots = append(roots, n)
	}
	return roots
}

type statusDetail struct {
	Path           string            `json:"path"`
	Status         task.Status       `json:"status"`
	Updated        time.Time         `json:"updated"`
	Version        int               `json:"version"`
	LastTransition *cache.Transition `json:"lastTransition,omitempty"`
	Subtasks       progress          `json:"subtasks"`
}

type progress struct {
	Total     int     `json:"total"`
	Completed int     `json:"completed"`
	Percent   float64 `json:"percent"`
}

func newProgress(children []task.Task) progress {
	p := progress{Total: len(children)}
	for _, c := range children {
		if c.Status == task.StatusCompleted {
			p.Completed++
		}
	}
	if p.Total > 0 {
		p.Percent = float64(p.Completed) * 100 / float64(p.Total)
	}
	return p
}

// StatusResource reports the status of taskPath with the progress of its
// direct children.
func (h *TaskHandler) StatusResource(ctx context.Context, taskPath string) (*server.ResourceContent, error) {
	t, ok, err := h.lookup(ctx, taskPath)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.Errorf(domain.ErrNotFound, "readStatus", "task not found: %s", taskPath)
	}
	children, err := h.store.GetSubtasks(ctx, taskPath)
	if err != nil {
		return nil, err
	}
	detail := statusDetail{
		Path:     t.Path,
		Status:   t.Status,
		Updated:  t.Metadata.Updated,
		Version:  t.Metadata.Version,
		Subtasks: newProgress(children),
	}
	if e, ok := h.cache.Entry(taskPath); ok {
		detail.LastTransition = e.StatusMetadata.LastTransition
	}
	return jsonContent(server.StatusScheme+taskPath, detail)
}

// VisualizationResource draws every project as an indented tree.
func (h *TaskHandler) VisualizationResource(ctx context.Context) (*server.ResourceContent, error) {
	tasks, err := h.store.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	return &server.ResourceContent{
		URI:      server.VisualizationURI,
		MimeType: mimeText,
		Text:     renderTree(buildForest(tasks, ""), newProgress(tasks)),
	}, nil
}

var statusMarks = map[task.Status]string{
	task.StatusPending:    "[ ]",
	task.StatusInProgress: "[~]",
	task.StatusBlocked:    "[!]",
	task.StatusCompleted:  "[x]",
	task.StatusCancelled:  "[-]",
}

func renderTree(roots []*hierarchyNode, overall progress) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Tasks: %d/%d completed (%.0f%%)\n", overall.Completed, overall.Total, overall.Percent)
	if len(roots) == 0 {
		b.WriteString("(no tasks)\n")
		return b.String()
	}
	var walk func(n *hierarchyNode, prefix string, last bool)
	walk = func(n *hierarchyNode, prefix string, last bool) {
		branch, next := "├── ", "│   "
		if last {
			branch, next = "└── ", "    "
		}
		mark, ok := statusMarks[n.Status]
		if !ok {
			mark = "[?]"
		}
		fmt.Fprintf(&b, "%s%s%s %s (%s)\n", prefix, branch, mark, n.Name, n.Path)
		for i, c := range n.Children {
			walk(c, prefix+next, i == len(n.Children)-1)
		}
	}
	for i, r := range roots {
		walk(r, "", i == len(roots)-1)
	}
	return b.String()
}

// ListTemplateResources lists the template catalog resource.
func (h *TaskHandler) ListTemplateResources(context.Context) ([]server.Resource, error) {
	return []server.Resource{{
		URI:         server.TemplatesURI,
		Name:        "Available Templates",
		Description: "Task templates with their metadata and variables",
		MimeType:    mimeJSON,
	}}, nil
}

// TemplateResource serves the builtin templates.
func (h *TaskHandler) TemplateResource(_ context.Context, uri string) (*server.ResourceContent, error) {
	return jsonContent(uri, BuiltinTemplates())
}

// ResourceTemplates lists the parameterized addresses the handler resolves.
func (h *TaskHandler) ResourceTemplates(context.Context) ([]server.ResourceTemplate, error) {
	return []server.ResourceTemplate{
		{URITemplate: server.TaskScheme + "{path}", Name: "Task", Description: "A single task as JSON", MimeType: mimeJSON},
		{URITemplate: server.HierarchyScheme + "{rootPath}", Name: "Task Hierarchy", Description: "The subtree under a task", MimeType: mimeJSON},
		{URITemplate: server.StatusScheme + "{path}", Name: "Task Status", Description: "Status and subtask progress of a task", MimeType: mimeJSON},
	}, nil
}

func jsonContent(uri string, v any) (*server.ResourceContent, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode resource %s: %w", uri, err)
	}
	return &server.ResourceContent{URI: uri, MimeType: mimeJSON, Text: string(data)}, nil
}
