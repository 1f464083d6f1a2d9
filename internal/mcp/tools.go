package mcp

import (
	mcp "github.com/fredcamaral/gomcp-sdk"
	"github.com/fredcamaral/gomcp-sdk/protocol"
)

// Tool names exposed to MCP clients.
const (
	ToolMemoryStore  = "memory.store"
	ToolMemorySearch = "memory.search"
	ToolMemoryAll    = "memory.all"
	ToolMemoryUpdate = "memory.update"
	ToolMemoryDelete = "memory.delete"
)

// storeArgs are the arguments of memory.store.
type storeArgs struct {
	Content string   `mapstructure:"content"`
	Tags    []string `mapstructure:"tags"`
}

// searchArgs are the arguments of memory.search.
type searchArgs struct {
	Query    string `mapstructure:"query"`
	NResults int    `mapstructure:"n_results"`
}

// updateArgs are the arguments of memory.update.
type updateArgs struct {
	ID      string    `mapstructure:"id"`
	Content *string   `mapstructure:"content"`
	Tags    *[]string `mapstructure:"tags"`
}

// deleteArgs are the arguments of memory.delete.
type deleteArgs struct {
	ID string `mapstructure:"id"`
}

// toolDefinitions returns the tool list served by tools/list.
func toolDefinitions() []protocol.Tool {
	return []protocol.Tool{
		mcp.NewTool(
			ToolMemoryStore,
			"Store an important fact about the project",
			mcp.ObjectSchema("Memory store parameters", map[string]interface{}{
				"content": map[string]interface{}{
					"type":        "string",
					"description": "Fact to store",
				},
				"tags": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "Optional tags",
				},
			}, []string{"content"}),
		),
		mcp.NewTool(
			ToolMemorySearch,
			"Search stored project facts",
			mcp.ObjectSchema("Memory search parameters", map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query",
				},
				"n_results": map[string]interface{}{
					"type":    "integer",
					"default": 5,
				},
			}, []string{"query"}),
		),
		mcp.NewTool(
			ToolMemoryAll,
			"List all stored facts",
			mcp.ObjectSchema("No parameters", map[string]interface{}{}, nil),
		),
		mcp.NewTool(
			ToolMemoryUpdate,
			"Update the content and/or tags of a stored fact",
			mcp.ObjectSchema("Memory update parameters", map[string]interface{}{
				"id": map[string]interface{}{
					"type":        "string",
					"description": "Memory id",
				},
				"content": map[string]interface{}{
					"type":        "string",
					"description": "New content",
				},
				"tags": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "New tags",
				},
			}, []string{"id"}),
		),
		mcp.NewTool(
			ToolMemoryDelete,
			"Delete a stored fact",
			mcp.ObjectSchema("Memory delete parameters", map[string]interface{}{
				"id": map[string]interface{}{
					"type":        "string",
					"description": "Memory id",
				},
			}, []string{"id"}),
		),
	}
}
