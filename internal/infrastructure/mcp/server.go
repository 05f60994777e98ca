// Package mcp binds the request coordinator onto an mcp-go server and
// serves it over stdio, HTTP, WebSocket or gRPC.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/felixgeelhaar/mcp-go"

	"github.com/felixgeelhaar/waypoint/pkg/server"
)

var (
	Version     = "dev"
	BuildCommit = "unknown"
	BuildDate   = "unknown"
)

// Transport kinds accepted by Options.Transport.
const (
	TransportStdio     = "stdio"
	TransportHTTP      = "http"
	TransportWebSocket = "ws"
	TransportGRPC      = "grpc"
)

// Options selects how the binding is served.
type Options struct {
	Transport string
	Addr      string
}

// Server is the coordinator's transport: every list, tool call and resource
// read arriving over MCP goes through the coordinator's envelope.
type Server struct {
	mcpServer *mcp.Server
	coord     *server.Coordinator
	caps      server.Capabilities
	opts      Options

	mu     sync.Mutex
	cancel context.CancelFunc
	closed bool
}

// Factory returns a server.TransportFactory that builds a Server with opts.
func Factory(opts Options) server.TransportFactory {
	return func(c *server.Coordinator, caps server.Capabilities) (server.Transport, error) {
		return NewServer(c, caps, opts)
	}
}

// NewServer registers the advertised tools of caps, routing each call to c.
// Resources are served by Middleware.
func NewServer(c *server.Coordinator, caps server.Capabilities, opts Options) (*Server, error) {
	if c == nil {
		return nil, fmt.Errorf("coordinator is required")
	}
	kind := strings.ToLower(opts.Transport)
	switch kind {
	case "", TransportStdio:
		kind = TransportStdio
	case TransportHTTP, TransportGRPC:
	case TransportWebSocket, "websocket":
		kind = TransportWebSocket
	default:
		return nil, fmt.Errorf("unsupported transport: %s", opts.Transport)
	}
	opts.Transport = kind
	if kind != TransportStdio && opts.Addr == "" {
		return nil, fmt.Errorf("%s transport needs an address", kind)
	}

	name := caps.Name
	if name == "" {
		name = "waypoint"
	}
	version := caps.Version
	if version == "" {
		version = Version
	}
	s := &Server{
		mcpServer: mcp.NewServer(mcp.ServerInfo{Name: name, Version: version},
			mcp.WithTitle("Waypoint MCP Server"),
			mcp.WithDescription("Waypoint keeps a hierarchical task list in an embedded database and serves it to MCP clients."),
			mcp.WithWebsiteURL("https://github.com/felixgeelhaar/waypoint"),
			mcp.WithBuildInfo(BuildCommit, BuildDate),
			mcp.WithInstructions("Use create_task and update_task to record work, get_* tools to query it, and the tasklist:// and hierarchy:// resources for overviews."),
		),
		coord: c,
		caps:  caps,
		opts:  opts,
	}
	s.registerTools()
	s.registerSchemaResource()
	return s, nil
}

func (s *Server) registerTools() {
	for _, t := range s.caps.Tools {
		name := t.Name
		s.mcpServer.Tool(name).
			Description(t.Description).
			Handler(func(ctx context.Context, args map[string]any) (string, error) {
				return s.callTool(ctx, name, args)
			})
	}
}

func (s *Server) callTool(ctx context.Context, name string, args map[string]any) (string, error) {
	var raw json.RawMessage
	if len(args) > 0 {
		data, err := json.Marshal(args)
		if err != nil {
			return "", fmt.Errorf("encode arguments for %s: %w", name, err)
		}
		raw = data
	}
	res, err := s.coord.CallTool(ctx, name, raw)
	if err != nil {
		return "", protocolError(err)
	}
	return res.Text(), nil
}

// Serve blocks serving the configured transport until ctx is done or Close
// is called.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("transport closed")
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	routed := mcp.WithMiddleware(s.Middleware())
	switch s.opts.Transport {
	case TransportHTTP:
		return mcp.ServeHTTPWithMiddleware(ctx, s.mcpServer, s.opts.Addr,
			[]mcp.HTTPOption{mcp.WithDefaultCORS()}, routed)
	case TransportWebSocket:
		return mcp.ServeWebSocketWithMiddleware(ctx, s.mcpServer, s.opts.Addr, nil, routed)
	case TransportGRPC:
		return mcp.ServeGRPCWithMiddleware(ctx, s.mcpServer, s.opts.Addr, nil, routed)
	default:
		return mcp.ServeStdio(ctx, s.mcpServer, routed)
	}
}

// Close stops a running Serve. It is safe to call more than once.
func (s *Server) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}
