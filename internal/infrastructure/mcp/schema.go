package mcp

import (
	"context"
	"encoding/json"

	mcplib "github.com/felixgeelhaar/mcp-go"
)

// SchemaURI serves the argument schemas tool calls are validated against.
const SchemaURI = "waypoint://schema"

// SchemaVersion is the current MCP tool schema version (semver).
const SchemaVersion = "1.0.0"

const schemaDescription = "JSON schemas of the tool arguments"

type toolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

type schemaResponse struct {
	SchemaVersion string       `json:"schema_version"`
	ServerVersion string       `json:"server_version"`
	Tools         []toolSchema `json:"tools"`
}

func (s *Server) registerSchemaResource() {
	s.mcpServer.Resource(SchemaURI).
		Name(SchemaURI).
		Description(schemaDescription).
		MimeType("application/json").
		Handler(func(_ context.Context, _ string, _ map[string]string) (*mcplib.ResourceContent, error) {
			resp := schemaResponse{
				SchemaVersion: SchemaVersion,
				ServerVersion: Version,
				Tools:         make([]toolSchema, 0, len(s.caps.Tools)),
			}
			for _, t := range s.caps.Tools {
				resp.Tools = append(resp.Tools, toolSchema{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
			}
			data, err := json.MarshalIndent(resp, "", "  ")
			if err != nil {
				return nil, err
			}
			return &mcplib.ResourceContent{
				URI:      SchemaURI,
				MimeType: "application/json",
				Text:     string(data),
			}, nil
		})
}
