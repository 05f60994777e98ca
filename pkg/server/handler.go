package server

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/felixgeelhaar/waypoint/pkg/domain"
)

// ToolSpec describes one invocable operation.
type ToolSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// Content is one block of a tool result.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ToolResult is what a tool invocation returns.
type ToolResult struct {
	Content []Content `json:"content"`
}

// TextResult wraps text as a single-block result.
func TextResult(text string) *ToolResult {
	return &ToolResult{Content: []Content{{Type: "text", Text: text}}}
}

// Text joins the text blocks of the result.
func (r *ToolResult) Text() string {
	if r == nil {
		return ""
	}
	parts := make([]string, 0, len(r.Content))
	for _, c := range r.Content {
		parts = append(parts, c.Text)
	}
	return strings.Join(parts, "\n")
}

// Resource is a discoverable resource.
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// ResourceTemplate is a parameterized resource address.
type ResourceTemplate struct {
	URITemplate string `json:"uriTemplate"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// ResourceContent is the body of a read resource.
type ResourceContent struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text"`
}

// Handler is the operation-specific logic the coordinator dispatches into.
type Handler interface {
	ListTools(ctx context.Context) ([]ToolSpec, error)
	CallTool(ctx context.Context, name string, args json.RawMessage) (*ToolResult, error)
	StorageMetrics(ctx context.Context) (domain.StorageMetrics, error)
}

// The interfaces below are optional handler capabilities, detected at init.

// CacheClearer drops handler caches under memory pressure.
type CacheClearer interface {
	ClearCaches(ctx context.Context) error
}

// Cleaner releases handler resources during shutdown.
type Cleaner interface {
	Cleanup(ctx context.Context) error
}

// TaskResourceProvider serves tasklist:// and task:// resources.
type TaskResourceProvider interface {
	ListTaskResources(ctx context.Context) ([]Resource, error)
	TaskResource(ctx context.Context, uri string) (*ResourceContent, error)
}

// TemplateResourceProvider serves templates:// resources.
type TemplateResourceProvider interface {
	ListTemplateResources(ctx context.Context) ([]Resource, error)
	TemplateResource(ctx context.Context, uri string) (*ResourceContent, error)
}

// HierarchyResourceProvider serves hierarchy://<root> resources.
type HierarchyResourceProvider interface {
	HierarchyResource(ctx context.Context, rootPath string) (*ResourceContent, error)
}

// StatusResourceProvider serves status://<path> resources.
type StatusResourceProvider interface {
	StatusResource(ctx context.Context, taskPath string) (*ResourceContent, error)
}

// VisualizationResourceProvider serves visualizations://current.
type VisualizationResourceProvider interface {
	VisualizationResource(ctx context.Context) (*ResourceContent, error)
}

// ResourceTemplateProvider lists parameterized resource addresses.
type ResourceTemplateProvider interface {
	ResourceTemplates(ctx context.Context) ([]ResourceTemplate, error)
}
