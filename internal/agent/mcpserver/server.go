// Package mcpserver exposes the tool catalog over the Model Context Protocol for one user.
package mcpserver

import (
	"context"
	"log"
	"maps"
	"slices"

	"advisor-backend/internal/agent/tools"
	"advisor-backend/pkg/ai"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	serverName    = "advisor"
	serverVersion = "1.0.0"
)

// Executor runs a catalog tool on behalf of a user.
type Executor interface {
	Schemas() []ai.ToolSchema
	Execute(ctx context.Context, name string, raw any, userID string) (any, error)
}

// New registers every catalog tool. Calls run as userID.
func New(exec Executor, userID string) *server.MCPServer {
	s := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(false),
		server.WithInstructions("Email, calendar and CRM tools for a financial advisor's connected accounts."),
		server.WithRecovery(),
	)
	for _, schema := range exec.Schemas() {
		s.AddTool(toolFor(schema), handlerFor(exec, schema.Name, userID))
	}
	return s
}

func toolFor(schema ai.ToolSchema) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(schema.Description)}
	for _, name := range slices.Sorted(maps.Keys(schema.Parameters.Properties)) {
		p := schema.Parameters.Properties[name]
		propOpts := []mcp.PropertyOption{mcp.Description(p.Description)}
		if slices.Contains(schema.Parameters.Required, name) {
			propOpts = append(propOpts, mcp.Required())
		}
		switch p.Type {
		case "integer", "number":
			opts = append(opts, mcp.WithNumber(name, propOpts...))
		case "array":
			opts = append(opts, mcp.WithArray(name, propOpts...))
		case "boolean":
			opts = append(opts, mcp.WithBoolean(name, propOpts...))
		default:
			opts = append(opts, mcp.WithString(name, propOpts...))
		}
	}
	return mcp.NewTool(schema.Name, opts...)
}

func handlerFor(exec Executor, name, userID string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		value, err := exec.Execute(ctx, name, req.Params.Arguments, userID)
		if err != nil {
			log.Printf("[MCP] %s failed for user %s: %v", name, userID, err)
			return mcpError(tools.Encode(nil, err)), nil
		}
		return mcpText(tools.Encode(value, nil)), nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
