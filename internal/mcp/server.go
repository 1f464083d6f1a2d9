// Package mcp adapts the memory service to the Model Context Protocol:
// JSON-RPC 2.0 over HTTP POST, scoped per project codename.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/fredcamaral/gomcp-sdk/protocol"
	"github.com/go-chi/chi/v5"

	"mcp-project-memory/internal/logging"
	"mcp-project-memory/internal/memory"
	"mcp-project-memory/pkg/types"
)

const (
	// DefaultProtocolVersion is returned when the client does not send one.
	DefaultProtocolVersion = "2025-11-25"

	serverName    = "mcp-project-memory"
	serverVersion = "1.0.0"

	// codeResourceNotFound is the MCP-defined code for resources/read misses.
	codeResourceNotFound = -32002
)

// Server dispatches MCP requests against the memory service.
type Server struct {
	service *memory.Service
	tools   []protocol.Tool
	logger  logging.Logger
}

func NewServer(service *memory.Service) *Server {
	return &Server{
		service: service,
		tools:   toolDefinitions(),
		logger:  logging.WithComponent("mcp"),
	}
}

// HTTPHandler serves POST /mcp/{codename}. Notifications (requests without
// an id) get an empty 204 response.
func (s *Server) HTTPHandler(w http.ResponseWriter, r *http.Request) {
	project, err := types.NormalizeProject(chi.URLParam(r, "codename"))
	if err != nil {
		writeResponse(w, &protocol.JSONRPCResponse{
			JSONRPC: "2.0",
			Error:   protocol.NewJSONRPCError(protocol.InvalidParams, err.Error(), nil),
		})
		return
	}

	var req protocol.JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeResponse(w, &protocol.JSONRPCResponse{
			JSONRPC: "2.0",
			Error:   protocol.NewJSONRPCError(protocol.ParseError, "Invalid JSON", nil),
		})
		return
	}

	resp := s.HandleRequest(r.Context(), project, &req)
	if resp == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeResponse(w, resp)
}

func writeResponse(w http.ResponseWriter, resp *protocol.JSONRPCResponse) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.Error("Failed to encode MCP response", "error", err.Error())
	}
}

// HandleRequest processes one JSON-RPC message for a project. A nil return
// means the message was a notification and gets no body.
func (s *Server) HandleRequest(ctx context.Context, project string, req *protocol.JSONRPCRequest) *protocol.JSONRPCResponse {
	s.logger.DebugContext(ctx, "MCP request", "method", req.Method, "project", project)

	// Notifications never get a response, whatever the outcome.
	if req.ID == nil {
		s.handleNotification(ctx, project, req)
		return nil
	}

	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(ctx, project, req)
	case "resources/list":
		return s.handleResourcesList(project, req)
	case "resources/templates/list":
		return s.ok(req, map[string]interface{}{
			"resourceTemplates": []interface{}{},
			"nextCursor":        nil,
		})
	case "resources/read":
		return s.handleResourcesRead(ctx, project, req)
	default:
		return s.err(req, protocol.MethodNotFound, fmt.Sprintf("Method not found: %s", req.Method))
	}
}

func (s *Server) handleNotification(ctx context.Context, project string, req *protocol.JSONRPCRequest) {
	switch req.Method {
	case "initialized", "notifications/initialized":
		s.logger.InfoContext(ctx, "Client initialized", "project", project)
	default:
		s.logger.DebugContext(ctx, "Ignoring notification", "method", req.Method)
	}
}

func (s *Server) ok(req *protocol.JSONRPCRequest, result interface{}) *protocol.JSONRPCResponse {
	return &protocol.JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: result}
}

func (s *Server) err(req *protocol.JSONRPCRequest, code int, message string) *protocol.JSONRPCResponse {
	return &protocol.JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Error:   protocol.NewJSONRPCError(code, message, nil),
	}
}

// handleInitialize echoes the client's protocol version when given one.
func (s *Server) handleInitialize(req *protocol.JSONRPCRequest) *protocol.JSONRPCResponse {
	version := DefaultProtocolVersion
	if params, ok := req.Params.(map[string]interface{}); ok {
		if v, ok := params["protocolVersion"].(string); ok && v != "" {
			version = v
		}
	}

	return s.ok(req, map[string]interface{}{
		"protocolVersion": version,
		"capabilities": map[string]interface{}{
			"tools":     map[string]interface{}{"listChanged": false},
			"resources": map[string]interface{}{},
		},
		"serverInfo": map[string]interface{}{
			"name":    serverName,
			"version": serverVersion,
		},
	})
}

func (s *Server) handleToolsList(req *protocol.JSONRPCRequest) *protocol.JSONRPCResponse {
	return s.ok(req, map[string]interface{}{
		"tools":      s.tools,
		"nextCursor": nil,
	})
}

func (s *Server) handleResourcesList(project string, req *protocol.JSONRPCRequest) *protocol.JSONRPCResponse {
	if params, ok := req.Params.(map[string]interface{}); ok {
		// Pagination is not supported; any cursor value, whatever its type,
		// is one we never issued.
		if cursor, present := params["cursor"]; present && cursor != nil && cursor != "" {
			return s.err(req, protocol.InvalidParams, "Invalid cursor")
		}
	}

	return s.ok(req, map[string]interface{}{
		"resources": []map[string]interface{}{
			{
				"uri":         allResourceURI(project),
				"name":        fmt.Sprintf("%s (all)", project),
				"description": "All stored memory entries as JSON",
				"mimeType":    "application/json",
			},
		},
		"nextCursor": nil,
	})
}

func allResourceURI(project string) string {
	return fmt.Sprintf("memory://%s/all", project)
}

func (s *Server) handleResourcesRead(ctx context.Context, project string, req *protocol.JSONRPCRequest) *protocol.JSONRPCResponse {
	params, _ := req.Params.(map[string]interface{})
	uri, _ := params["uri"].(string)

	if uri != allResourceURI(project) {
		return s.err(req, codeResourceNotFound, fmt.Sprintf("Resource not found: %s", uri))
	}

	memories, err := s.service.List(ctx, project)
	if err != nil {
		return s.err(req, protocol.InternalError, err.Error())
	}
	if memories == nil {
		memories = []types.Memory{}
	}

	text, err := json.Marshal(memories)
	if err != nil {
		return s.err(req, protocol.InternalError, err.Error())
	}

	return s.ok(req, map[string]interface{}{
		"contents": []map[string]interface{}{
			{
				"uri":      uri,
				"mimeType": "application/json",
				"text":     string(text),
			},
		},
	})
}
