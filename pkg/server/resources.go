package server

import (
	"context"
	"strings"

	"github.com/felixgeelhaar/waypoint/pkg/domain"
)

// Resource addresses routed by the coordinator.
const (
	TaskListURI      = "tasklist://current"
	TemplatesURI     = "templates://current"
	VisualizationURI = "visualizations://current"

	TaskScheme      = "task://"
	HierarchyScheme = "hierarchy://"
	StatusScheme    = "status://"
)

// routeResource dispatches uri to the handler capability for its scheme.
func (c *Coordinator) routeResource(ctx context.Context, uri string) (*ResourceContent, error) {
	var (
		content *ResourceContent
		err     error
		routed  bool
	)
	switch {
	case uri == TaskListURI || strings.HasPrefix(uri, TaskScheme):
		if p, ok := c.handler.(TaskResourceProvider); ok {
			content, err = p.TaskResource(ctx, uri)
			routed = true
		}
	case uri == TemplatesURI:
		if p, ok := c.handler.(TemplateResourceProvider); ok {
			content, err = p.TemplateResource(ctx, uri)
			routed = true
		}
	case strings.HasPrefix(uri, HierarchyScheme):
		if p, ok := c.handler.(HierarchyResourceProvider); ok {
			content, err = p.HierarchyResource(ctx, strings.TrimPrefix(uri, HierarchyScheme))
			routed = true
		}
	case strings.HasPrefix(uri, StatusScheme):
		if p, ok := c.handler.(StatusResourceProvider); ok {
			content, err = p.StatusResource(ctx, strings.TrimPrefix(uri, StatusScheme))
			routed = true
		}
	case uri == VisualizationURI:
		if p, ok := c.handler.(VisualizationResourceProvider); ok {
			content, err = p.VisualizationResource(ctx)
			routed = true
		}
	}
	if err != nil {
		return nil, err
	}
	if !routed || content == nil {
		return nil, domain.Errorf(domain.ErrNotFound, "readResource", "resource not found: %s", uri)
	}
	return content, nil
}
