// Package sdk provides a typed Go client for the Waypoint MCP server.
//
// The client wraps mcp-go/client.CallTool with one method per tool and
// retries transport failures via fortify.
//
// Usage:
//
//	transport, _ := client.NewStdioTransport("waypoint", "serve")
//	c := sdk.NewClient(transport)
//	defer c.Close()
//
//	_, _ = c.Initialize(ctx)
//	t, _ := c.CreateTask(ctx, task.CreateInput{Path: "demo", Name: "Demo", Type: task.TypeGroup})
//	fmt.Println(t.Status)
package sdk
