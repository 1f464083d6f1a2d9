// Package api provides the HTTP layer: the REST CRUD surface, the MCP
// endpoint, the websocket stream and the documentation pages.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"mcp-project-memory/internal/config"
	"mcp-project-memory/internal/docs"
	"mcp-project-memory/internal/logging"
	"mcp-project-memory/internal/mcp"
	"mcp-project-memory/internal/memory"
	"mcp-project-memory/internal/websocket"
	"mcp-project-memory/web"
)

// Router wires the memory service into the HTTP surface.
type Router struct {
	config    *config.Config
	mux       *chi.Mux
	version   string
	service   *memory.Service
	mcpServer *mcp.Server
	hub       *websocket.Hub
	logger    logging.Logger
}

// NewRouter creates the router with its middleware stack and routes.
func NewRouter(cfg *config.Config, service *memory.Service, hub *websocket.Hub) *Router {
	rt := &Router{
		config:    cfg,
		mux:       chi.NewRouter(),
		version:   docs.APIVersion,
		service:   service,
		mcpServer: mcp.NewServer(service),
		hub:       hub,
		logger:    logging.WithComponent("api"),
	}

	rt.setupMiddleware()
	rt.setupRoutes()
	return rt
}

// Handler returns the HTTP handler.
func (rt *Router) Handler() http.Handler {
	return rt.mux
}

func (rt *Router) setupMiddleware() {
	// Recovery first so panics in later middleware are caught too.
	rt.mux.Use(chimiddleware.Recoverer)
	rt.mux.Use(rt.timeoutMiddleware())
	rt.mux.Use(rt.requestLogging())
	rt.mux.Use(corsMiddleware)
	rt.mux.Use(chimiddleware.RequestSize(10 * 1024 * 1024))
	rt.mux.Use(chimiddleware.Heartbeat("/ping"))
}

func (rt *Router) setupRoutes() {
	rt.mux.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	rt.mux.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	rt.mux.Get("/health", rt.handleHealth)

	rt.mux.Route("/api", func(r chi.Router) {
		if rt.config.Auth.APIKeyHash != "" {
			r.Use(rt.apiKeyAuth)
		}
		r.Route("/memories", func(r chi.Router) {
			r.Post("/", rt.handleCreateMemory)
			r.Get("/", rt.handleListMemories)
			r.Get("/search", rt.handleSearchMemories)
			r.Get("/{id}", rt.handleGetMemory)
			r.Put("/{id}", rt.handleUpdateMemory)
			r.Delete("/{id}", rt.handleDeleteMemory)
		})
		r.Get("/projects", rt.handleListProjects)
	})

	rt.mux.Post("/mcp/{codename}", rt.mcpServer.HTTPHandler)

	rt.mux.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		websocket.ServeWS(rt.hub, w, r)
	})

	rt.mux.Get("/openapi.json", rt.handleOpenAPI)
	rt.mux.Get("/docs", rt.handleDocsPage)
	rt.mux.Get("/guide", rt.handleGuide)

	rt.mux.Get("/", web.Handler().ServeHTTP)
}

func (rt *Router) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	doc := docs.OpenAPIDocument()
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to render OpenAPI document")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func (rt *Router) handleDocsPage(w http.ResponseWriter, r *http.Request) {
	const page = `<!DOCTYPE html>
<html>
<head>
    <title>Project Memory API Documentation</title>
    <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@4/swagger-ui.css">
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@4/swagger-ui-standalone-preset.js"></script>
    <script>
        window.onload = function() {
            SwaggerUIBundle({
                url: "/openapi.json",
                dom_id: '#swagger-ui',
                presets: [
                    SwaggerUIBundle.presets.apis,
                    SwaggerUIStandalonePreset
                ],
                layout: "StandaloneLayout"
            });
        }
    </script>
</body>
</html>
`
	w.Header().Set("Content-Type", "text/html")
	_, _ = w.Write([]byte(page))
}

func (rt *Router) handleGuide(w http.ResponseWriter, r *http.Request) {
	body, err := docs.GuideHTML()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to render guide")
		return
	}
	w.Header().Set("Content-Type", "text/html")
	_, _ = w.Write([]byte("<!DOCTYPE html>\n<html><head><title>Project Memory Guide</title>" +
		`<style>body{font-family:sans-serif;max-width:840px;margin:40px auto;padding:0 20px;line-height:1.5}` +
		`table{border-collapse:collapse}td,th{border:1px solid #ccc;padding:4px 10px}` +
		`code{background:#f3f4f6;padding:1px 4px;border-radius:3px}</style>` +
		"</head><body>\n" + body + "\n</body></html>\n"))
}
