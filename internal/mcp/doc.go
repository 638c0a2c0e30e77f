// Package mcp exposes worker actions as MCP tools.
//
// Each exposed action becomes a tool on an official MCP SDK server. Calling
// the tool dispatches the action over the controller's channel and returns
// the raw JSON result as text content; failures come back as tool errors so
// the MCP client can see them.
package mcp
