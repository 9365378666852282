// Package catalog defines the shared, dependency-free data types that flow
// between the Transport, Client Registry, Resilience Middleware, and Agent
// layers: ToolDescriptor, ToolCall, and ToolResult. Keeping these in
// their own leaf package lets every other internal package import them
// without creating import cycles.
package catalog

import (
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// ToolDescriptor is one tool advertised by a connected server, aggregated
// into the flat catalog consumed read-only by the Agent.
type ToolDescriptor struct {
	ServerName  string               `json:"server_name"`
	ToolName    string               `json:"tool_name"`
	Description string               `json:"description"`
	InputSchema mcp.ToolInputSchema  `json:"input_schema"`
}

// Key uniquely identifies a tool within the aggregated catalog.
func (d ToolDescriptor) Key() string {
	return d.ServerName + "/" + d.ToolName
}

// Endpoint returns the logical resilience-middleware key for this tool, per
// the GLOSSARY's `tool:<server>.<tool>` convention.
func (d ToolDescriptor) Endpoint() string {
	return fmt.Sprintf("tool:%s.%s", d.ServerName, d.ToolName)
}

// FromMCPTool converts an mcp-go tool (as returned by tools/list) into a
// ToolDescriptor scoped to serverName.
func FromMCPTool(serverName string, t mcp.Tool) ToolDescriptor {
	return ToolDescriptor{
		ServerName:  serverName,
		ToolName:    t.Name,
		Description: t.Description,
		InputSchema: t.InputSchema,
	}
}

// ToolCall is a planned invocation produced by the Agent's analysis step and
// consumed by the Transport.
type ToolCall struct {
	ServerName string         `json:"server"`
	ToolName   string         `json:"tool"`
	Arguments  map[string]any `json:"parameters"`
	Purpose    string         `json:"purpose"`
}

// Endpoint returns this call's resilience-middleware key.
func (c ToolCall) Endpoint() string {
	return fmt.Sprintf("tool:%s.%s", c.ServerName, c.ToolName)
}

// ToolResult is the outcome of executing one ToolCall.
type ToolResult struct {
	ServerName string        `json:"server_name"`
	ToolName   string        `json:"tool_name"`
	Success    bool          `json:"success"`
	Content    any           `json:"content,omitempty"`
	Error      string        `json:"error,omitempty"`
	DurationMS float64       `json:"duration_ms"`
}

// Truncate returns the result's content rendered as a string (or its Error
// text, when Error is set) cut to at most n bytes, used when persisting
// AgentAction logs.
func (r ToolResult) Truncate(n int) string {
	s := fmt.Sprintf("%v", r.Content)
	if r.Error != "" {
		s = r.Error
	}
	if len(s) <= n {
		return s
	}
	return s[:n]
}
