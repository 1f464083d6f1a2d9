package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fredcamaral/gomcp-sdk/protocol"
	"github.com/go-viper/mapstructure/v2"

	"mcp-project-memory/internal/memory"
	"mcp-project-memory/pkg/types"
)

// toolText wraps plain text in the MCP tool result envelope.
func toolText(text string, isError bool) map[string]interface{} {
	return map[string]interface{}{
		"content": []map[string]interface{}{
			{"type": "text", "text": text},
		},
		"isError": isError,
	}
}

// memoryPayload is the structuredContent shape of one memory entry.
func memoryPayload(mem *types.Memory, score *float64) map[string]interface{} {
	payload := map[string]interface{}{
		"id":      mem.ID,
		"content": mem.Content,
		"metadata": map[string]interface{}{
			"project":    mem.Project,
			"tags":       mem.Tags,
			"created_at": mem.CreatedAt,
			"updated_at": mem.UpdatedAt,
		},
	}
	if score != nil {
		payload["score"] = *score
	}
	return payload
}

// decodeArgs maps tool call arguments onto a typed struct. Weak typing keeps
// JSON numbers usable as ints.
func decodeArgs(args map[string]interface{}, target interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(args)
}

func (s *Server) handleToolsCall(ctx context.Context, project string, req *protocol.JSONRPCRequest) *protocol.JSONRPCResponse {
	params, _ := req.Params.(map[string]interface{})
	name, _ := params["name"].(string)
	args, _ := params["arguments"].(map[string]interface{})

	switch name {
	case ToolMemoryStore:
		return s.callStore(ctx, project, req, args)
	case ToolMemorySearch:
		return s.callSearch(ctx, project, req, args)
	case ToolMemoryAll:
		return s.callAll(ctx, project, req)
	case ToolMemoryUpdate:
		return s.callUpdate(ctx, project, req, args)
	case ToolMemoryDelete:
		return s.callDelete(ctx, project, req, args)
	default:
		return s.err(req, protocol.InvalidParams, fmt.Sprintf("Unknown tool: %s", name))
	}
}

func (s *Server) callStore(ctx context.Context, project string, req *protocol.JSONRPCRequest, args map[string]interface{}) *protocol.JSONRPCResponse {
	var in storeArgs
	if err := decodeArgs(args, &in); err != nil {
		return s.err(req, protocol.InvalidParams, err.Error())
	}
	if strings.TrimSpace(in.Content) == "" {
		return s.ok(req, toolText("content is required", true))
	}

	mem, err := s.service.Store(ctx, project, in.Content, in.Tags)
	if err != nil {
		return s.ok(req, toolText(err.Error(), true))
	}
	return s.ok(req, toolText(fmt.Sprintf("stored id=%s tags=%v", mem.ID, mem.Tags), false))
}

func (s *Server) callSearch(ctx context.Context, project string, req *protocol.JSONRPCRequest, args map[string]interface{}) *protocol.JSONRPCResponse {
	var in searchArgs
	if err := decodeArgs(args, &in); err != nil {
		return s.err(req, protocol.InvalidParams, err.Error())
	}
	if strings.TrimSpace(in.Query) == "" {
		return s.ok(req, toolText("query is required", true))
	}

	results, err := s.service.Search(ctx, project, in.Query, in.NResults)
	if err != nil {
		return s.ok(req, toolText(err.Error(), true))
	}

	entries := make([]map[string]interface{}, 0, len(results.Results))
	for i := range results.Results {
		res := &results.Results[i]
		entries = append(entries, memoryPayload(&res.Memory, &res.Score))
	}

	text, _ := json.Marshal(entries)
	return s.ok(req, map[string]interface{}{
		"content": []map[string]interface{}{
			{"type": "text", "text": string(text)},
		},
		"structuredContent": map[string]interface{}{
			"query":   results.Query,
			"results": entries,
		},
		"isError": false,
	})
}

func (s *Server) callAll(ctx context.Context, project string, req *protocol.JSONRPCRequest) *protocol.JSONRPCResponse {
	memories, err := s.service.List(ctx, project)
	if err != nil {
		return s.ok(req, toolText(err.Error(), true))
	}

	entries := make([]map[string]interface{}, 0, len(memories))
	for i := range memories {
		entries = append(entries, memoryPayload(&memories[i], nil))
	}

	text, _ := json.Marshal(entries)
	return s.ok(req, map[string]interface{}{
		"content": []map[string]interface{}{
			{"type": "text", "text": string(text)},
		},
		"structuredContent": map[string]interface{}{
			"results": entries,
		},
		"isError": false,
	})
}

func (s *Server) callUpdate(ctx context.Context, project string, req *protocol.JSONRPCRequest, args map[string]interface{}) *protocol.JSONRPCResponse {
	var in updateArgs
	if err := decodeArgs(args, &in); err != nil {
		return s.err(req, protocol.InvalidParams, err.Error())
	}
	if in.ID == "" {
		return s.ok(req, toolText("id is required", true))
	}
	if in.Content == nil && in.Tags == nil {
		return s.ok(req, toolText("content or tags is required", true))
	}

	mem, err := s.service.Update(ctx, project, in.ID, memory.UpdateRequest{
		Content: in.Content,
		Tags:    in.Tags,
	})
	if err != nil {
		if errors.Is(err, memory.ErrNotFound) {
			return s.ok(req, toolText(fmt.Sprintf("not found id=%s", in.ID), true))
		}
		return s.ok(req, toolText(err.Error(), true))
	}
	return s.ok(req, toolText(fmt.Sprintf("updated id=%s tags=%v", mem.ID, mem.Tags), false))
}

func (s *Server) callDelete(ctx context.Context, project string, req *protocol.JSONRPCRequest, args map[string]interface{}) *protocol.JSONRPCResponse {
	var in deleteArgs
	if err := decodeArgs(args, &in); err != nil {
		return s.err(req, protocol.InvalidParams, err.Error())
	}
	if in.ID == "" {
		return s.ok(req, toolText("id is required", true))
	}

	if err := s.service.Delete(ctx, project, in.ID); err != nil {
		if errors.Is(err, memory.ErrNotFound) {
			return s.ok(req, toolText(fmt.Sprintf("not found id=%s", in.ID), true))
		}
		return s.ok(req, toolText(err.Error(), true))
	}
	return s.ok(req, toolText(fmt.Sprintf("deleted id=%s", in.ID), false))
}
