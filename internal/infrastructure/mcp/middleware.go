package mcp

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/mcp-go/protocol"

	"github.com/felixgeelhaar/waypoint/pkg/domain"
	"github.com/felixgeelhaar/waypoint/pkg/server"
)

// Error codes beyond the ones mcp-go defines.
const (
	// CodeUnavailable is returned while the server drains or when a request
	// runs past its deadline.
	CodeUnavailable = -32004
)

// emptySchema is advertised for tools that publish no input schema.
var emptySchema = json.RawMessage(`{"type": "object"}`)

// Middleware answers the list operations, tool calls and every resource
// read except the schema through the coordinator, so they share its
// admission, tracking and metrics. mcp-go's own registry matches resource
// templates one path segment at a time, which nested task paths defeat.
// Failures are returned as error responses so every transport keeps the
// error code.
func (s *Server) Middleware() mcp.Middleware {
	return func(next mcp.MiddlewareHandlerFunc) mcp.MiddlewareHandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			switch req.Method {
			case protocol.MethodToolsList:
				return s.listTools(ctx, req)
			case protocol.MethodResourcesList:
				return s.listResources(ctx, req)
			case protocol.MethodResourcesTemplatesList:
				return s.listResourceTemplates(ctx, req)
			case protocol.MethodToolsCall:
				return s.callToolRequest(ctx, req)
			case protocol.MethodResourcesRead:
				var params struct {
					URI string `json:"uri"`
				}
				if err := json.Unmarshal(req.Params, &params); err != nil {
					return errorResponse(req, protocol.NewInvalidParams(err.Error()))
				}
				if params.URI != SchemaURI {
					return s.readResource(ctx, req, params.URI)
				}
			}
			return next(ctx, req)
		}
	}
}

func (s *Server) listTools(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	tools, err := s.coord.ListTools(ctx)
	if err != nil {
		return errorResponse(req, err)
	}
	items := make([]map[string]any, 0, len(tools))
	for _, t := range tools {
		schema := t.InputSchema
		if len(schema) == 0 {
			schema = emptySchema
		}
		items = append(items, map[string]any{
			"name":        t.Name,
			"description": t.Description,
			"inputSchema": schema,
		})
	}
	return protocol.NewResponse(req.ID, map[string]any{"tools": items}), nil
}

func (s *Server) listResources(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	resources, err := s.coord.ListResources(ctx)
	if err != nil {
		return errorResponse(req, err)
	}
	items := make([]map[string]any, 0, len(resources)+1)
	for _, r := range resources {
		items = append(items, resourceItem("uri", r.URI, r.Name, r.Description, r.MimeType))
	}
	items = append(items, resourceItem("uri", SchemaURI, SchemaURI, schemaDescription, "application/json"))
	return protocol.NewResponse(req.ID, map[string]any{"resources": items}), nil
}

func (s *Server) listResourceTemplates(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	templates, err := s.coord.ListResourceTemplates(ctx)
	if err != nil {
		return errorResponse(req, err)
	}
	items := make([]map[string]any, 0, len(templates))
	for _, t := range templates {
		items = append(items, resourceItem("uriTemplate", t.URITemplate, t.Name, t.Description, t.MimeType))
	}
	return protocol.NewResponse(req.ID, map[string]any{"resourceTemplates": items}), nil
}

func (s *Server) callToolRequest(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	var params struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req, protocol.NewInvalidParams(err.Error()))
	}
	if string(params.Arguments) == "null" {
		params.Arguments = nil
	}
	res, err := s.coord.CallTool(ctx, params.Name, params.Arguments)
	if err != nil {
		return errorResponse(req, err)
	}
	content := make([]map[string]any, 0, len(res.Content))
	for _, c := range res.Content {
		content = append(content, map[string]any{"type": c.Type, "text": c.Text})
	}
	return protocol.NewResponse(req.ID, map[string]any{"content": content}), nil
}

func resourceItem(key, uri, name, description, mimeType string) map[string]any {
	item := map[string]any{key: uri, "name": name}
	if description != "" {
		item["description"] = description
	}
	if mimeType != "" {
		item["mimeType"] = mimeType
	}
	return item
}

func (s *Server) readResource(ctx context.Context, req *protocol.Request, uri string) (*protocol.Response, error) {
	content, err := s.coord.ReadResource(ctx, uri)
	if err != nil {
		return errorResponse(req, err)
	}
	return protocol.NewResponse(req.ID, map[string]any{
		"contents": []map[string]any{{
			"uri":      content.URI,
			"mimeType": content.MimeType,
			"text":     content.Text,
		}},
	}), nil
}

func errorResponse(req *protocol.Request, err error) (*protocol.Response, error) {
	return protocol.NewErrorResponse(req.ID, protocolError(err)), nil
}

// protocolError maps coordinator errors onto JSON-RPC error codes.
func protocolError(err error) *protocol.Error {
	var perr *protocol.Error
	if errors.As(err, &perr) {
		return perr
	}
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return protocol.NewNotFound(err.Error())
	case errors.Is(err, domain.ErrValidation):
		return protocol.NewInvalidParams(err.Error())
	case errors.Is(err, domain.ErrRateLimited):
		return &protocol.Error{Code: protocol.CodeRateLimited, Message: err.Error()}
	case errors.Is(err, domain.ErrShuttingDown), errors.Is(err, domain.ErrTimeout):
		return &protocol.Error{Code: CodeUnavailable, Message: err.Error()}
	}
	return protocol.NewInternalError(err.Error())
}

var _ server.Transport = (*Server)(nil)
