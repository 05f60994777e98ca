// Package mcp lets other programs serve their own server.Handler through
// Waypoint's coordinator and MCP binding.
package mcp

import infra "github.com/felixgeelhaar/waypoint/internal/infrastructure/mcp"

// Server exposes the MCP binding from the infrastructure layer.
type Server = infra.Server

// Options selects the transport and listen address.
type Options = infra.Options

// Transport kinds accepted by Options.Transport.
const (
	TransportStdio     = infra.TransportStdio
	TransportHTTP      = infra.TransportHTTP
	TransportWebSocket = infra.TransportWebSocket
	TransportGRPC      = infra.TransportGRPC
)

// Factory returns a transport factory for server.WithTransport.
var Factory = infra.Factory
