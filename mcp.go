package workerlink

import (
	"log/slog"

	"github.com/wagiedev/workerlink-go/internal/mcp"
)

// MCPBridge serves worker actions as MCP tools.
type MCPBridge = mcp.Bridge

// MCPAction describes an action to expose as an MCP tool.
type MCPAction = mcp.Action

// NewMCPBridge creates a bridge whose tools dispatch through d, usually a
// Controller. log may be nil.
func NewMCPBridge(log *slog.Logger, name, version string, d Dispatcher) *MCPBridge {
	return mcp.NewBridge(log, name, version, d)
}
