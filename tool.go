package codexsdk

import (
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/agentwire/codex-sdk-go/internal/tool"
)

// Re-export tool types for the public API.
type (
	// Tool is an in-process tool registered on a client with WithTool.
	Tool = tool.Tool

	// ToolHandler executes a tool call and returns an MCP tool result.
	ToolHandler = tool.Handler

	// CallToolResult is a tool handler's result. Use TextResult or
	// ErrorResult to create one.
	CallToolResult = mcp.CallToolResult

	// Schema is a JSON Schema object for tool input validation.
	Schema = jsonschema.Schema
)

// TextResult creates a CallToolResult with text content.
func TextResult(text string) *CallToolResult {
	return tool.TextResult(text)
}

// ErrorResult creates a CallToolResult indicating an error. The app server
// sees it as {output: message, success: false}.
func ErrorResult(message string) *CallToolResult {
	return tool.ErrorResult(message)
}

// SimpleSchema creates a Schema from a simple type map.
//
// Input format: {"a": "float64", "b": "string"}
//
// Type mappings:
//   - "string"           → {"type": "string"}
//   - "int", "int64"     → {"type": "integer"}
//   - "float64", "float" → {"type": "number"}
//   - "bool"             → {"type": "boolean"}
//   - "[]string"         → {"type": "array", "items": {"type": "string"}}
//   - "any", "object"    → {"type": "object"}
func SimpleSchema(props map[string]string) *Schema {
	return tool.SimpleSchema(props)
}
