package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Dispatcher sends an action and waits for its result. Both controllers
// satisfy it.
type Dispatcher interface {
	Dispatch(ctx context.Context, action string, payload any) (json.RawMessage, error)
}

// Action describes an action to expose as a tool.
type Action struct {
	Name        string
	Description string

	// Schema describes the payload. It must be an object schema.
	// If nil, any object is accepted.
	Schema *jsonschema.Schema
}

// Bridge serves a set of actions as MCP tools.
type Bridge struct {
	log        *slog.Logger
	server     *mcp.Server
	dispatcher Dispatcher
}

// NewBridge creates a bridge whose tools dispatch through d.
func NewBridge(log *slog.Logger, name, version string, d Dispatcher) *Bridge {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Bridge{
		log:        log.With("component", "mcp_bridge"),
		server:     mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, nil),
		dispatcher: d,
	}
}

// Expose registers action as a tool. Exposing the same name twice replaces
// the earlier tool.
func (b *Bridge) Expose(action Action) error {
	schema := action.Schema
	if schema == nil {
		schema = &jsonschema.Schema{Type: "object"}
	}

	if schema.Type != "object" {
		return fmt.Errorf("expose %q: payload schema must have type \"object\", got %q", action.Name, schema.Type)
	}

	b.server.AddTool(&mcp.Tool{
		Name:        action.Name,
		Description: action.Description,
		InputSchema: schema,
	}, b.toolHandler(action.Name))

	return nil
}

// Server returns the underlying MCP server, e.g. to connect it to a custom
// transport.
func (b *Bridge) Server() *mcp.Server {
	return b.server
}

// Run serves a single MCP session over t until the client disconnects or
// ctx is cancelled.
func (b *Bridge) Run(ctx context.Context, t mcp.Transport) error {
	return b.server.Run(ctx, t)
}

// RunStdio serves MCP over the process's stdin and stdout.
func (b *Bridge) RunStdio(ctx context.Context) error {
	return b.Run(ctx, &mcp.StdioTransport{})
}

func (b *Bridge) toolHandler(action string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var payload any
		if req.Params != nil && len(req.Params.Arguments) > 0 {
			payload = req.Params.Arguments
		}

		result, err := b.dispatcher.Dispatch(ctx, action, payload)
		if err != nil {
			b.log.Debug("Tool dispatch failed", "action", action, "error", err)

			//nolint:nilerr // Tool failures are reported in the result, not as protocol errors
			return ErrorResult(err.Error()), nil
		}

		return TextResult(string(result)), nil
	}
}

// TextResult creates a successful tool result with text content.
func TextResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

// ErrorResult creates a failed tool result carrying message.
func ErrorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: message}},
		IsError: true,
	}
}
