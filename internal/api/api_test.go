package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"mcp-project-memory/internal/catalog"
	"mcp-project-memory/internal/config"
	"mcp-project-memory/internal/memory"
	"mcp-project-memory/internal/storage"
	"mcp-project-memory/internal/websocket"
)

// lenEmbedder derives a deterministic vector from the text length so that
// similar-length texts score close together.
type lenEmbedder struct{}

func (lenEmbedder) Generate(_ context.Context, text string) ([]float32, error) {
	base := float32(len(text))
	return []float32{base, base + 1, base + 2, base + 3}, nil
}

func (e lenEmbedder) GenerateBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, _ := e.Generate(ctx, text)
		out[i] = v
	}
	return out, nil
}

func (lenEmbedder) Dimension() int                    { return 4 }
func (lenEmbedder) Model() string                     { return "len-test" }
func (lenEmbedder) HealthCheck(context.Context) error { return nil }

func newTestRouter(t *testing.T, mutate func(*config.Config)) *Router {
	t.Helper()

	cfg := config.DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}

	vectors := storage.NewChromemStore(&config.ChromemConfig{}, 4)
	require.NoError(t, vectors.Initialize(context.Background()))

	hub := websocket.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	svc := memory.NewService(catalog.NewMemoryCatalog(), vectors, lenEmbedder{}, nil, hub)
	return NewRouter(cfg, svc, hub)
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body interface{}, headers map[string]string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var decoded map[string]interface{}
	if rec.Body.Len() > 0 && rec.Body.Bytes()[0] == '{' {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestRESTCrudFlow(t *testing.T) {
	h := newTestRouter(t, nil).Handler()

	rec, created := doJSON(t, h, http.MethodPost, "/api/memories",
		map[string]interface{}{"content": "deploy with make release", "tags": []string{"ops"}}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	id, _ := created["id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "deploy with make release", created["content"])
	assert.Equal(t, "project_memory", created["project"])
	assert.Equal(t, []interface{}{"ops"}, created["tags"])

	rec, _ = doJSON(t, h, http.MethodGet, "/api/memories", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, id, listed[0]["id"])

	rec, got := doJSON(t, h, http.MethodGet, "/api/memories/"+id, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "deploy with make release", got["content"])

	rec, updated := doJSON(t, h, http.MethodPut, "/api/memories/"+id,
		map[string]interface{}{"content": "deploy with make ship"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "deploy with make ship", updated["content"])
	assert.Equal(t, []interface{}{"ops"}, updated["tags"])

	rec, deleted := doJSON(t, h, http.MethodDelete, "/api/memories/"+id, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, deleted["deleted"])

	rec, _ = doJSON(t, h, http.MethodGet, "/api/memories/"+id, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = doJSON(t, h, http.MethodGet, "/api/memories", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var empty []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &empty))
	assert.Empty(t, empty)
}

func TestRESTSearch(t *testing.T) {
	h := newTestRouter(t, nil).Handler()

	for _, content := range []string{"short note", "a considerably longer note about databases"} {
		rec, _ := doJSON(t, h, http.MethodPost, "/api/memories",
			map[string]interface{}{"content": content, "tags": []string{}}, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec, resp := doJSON(t, h, http.MethodGet, "/api/memories/search?query=brief+text&n_results=2", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "brief text", resp["query"])

	results, ok := resp["results"].([]interface{})
	require.True(t, ok)
	require.NotEmpty(t, results)

	first, ok := results[0].(map[string]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, first["id"])
	assert.Contains(t, first, "score")
	assert.Contains(t, first, "content")
	assert.Contains(t, first, "created_at")
}

func TestRESTValidation(t *testing.T) {
	h := newTestRouter(t, nil).Handler()

	rec, body := doJSON(t, h, http.MethodPost, "/api/memories",
		map[string]interface{}{"tags": []string{"x"}}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "content is required", body["error"])

	rec, body = doJSON(t, h, http.MethodPost, "/api/memories",
		map[string]interface{}{"content": "   "}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "content is required", body["error"])

	rec, _ = doJSON(t, h, http.MethodPost, "/api/memories",
		map[string]interface{}{"content": "x", "project": "bad name!"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = doJSON(t, h, http.MethodPut, "/api/memories/some-id",
		map[string]interface{}{"content": "   "}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "content cannot be empty", body["error"])

	rec, body = doJSON(t, h, http.MethodPut, "/api/memories/some-id",
		map[string]interface{}{}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "content or tags is required", body["error"])

	rec, body = doJSON(t, h, http.MethodGet, "/api/memories/search", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "query is required", body["error"])

	rec, _ = doJSON(t, h, http.MethodGet, "/api/memories/search?query=x&n_results=lots", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRESTNotFoundAndMethods(t *testing.T) {
	h := newTestRouter(t, nil).Handler()

	rec, body := doJSON(t, h, http.MethodGet, "/api/memories/missing-id", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "memory not found", body["error"])

	rec, _ = doJSON(t, h, http.MethodPut, "/api/memories/missing-id",
		map[string]interface{}{"content": "x"}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = doJSON(t, h, http.MethodDelete, "/api/memories/missing-id", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body = doJSON(t, h, http.MethodGet, "/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not found", body["error"])

	rec, _ = doJSON(t, h, http.MethodPatch, "/api/memories", nil, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRESTProjectScoping(t *testing.T) {
	h := newTestRouter(t, nil).Handler()

	rec, _ := doJSON(t, h, http.MethodPost, "/api/memories",
		map[string]interface{}{"content": "alpha secret", "project": "alpha"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = doJSON(t, h, http.MethodGet, "/api/memories", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var defaultList []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &defaultList))
	assert.Empty(t, defaultList)

	rec, _ = doJSON(t, h, http.MethodGet, "/api/memories?project=alpha", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var alphaList []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &alphaList))
	require.Len(t, alphaList, 1)
	assert.Equal(t, "alpha secret", alphaList[0]["content"])
}

func TestRESTProjects(t *testing.T) {
	h := newTestRouter(t, nil).Handler()

	for i, project := range []string{"alpha", "alpha", "beta"} {
		rec, _ := doJSON(t, h, http.MethodPost, "/api/memories",
			map[string]interface{}{"content": fmt.Sprintf("fact %d", i), "project": project}, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec, _ := doJSON(t, h, http.MethodGet, "/api/projects", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var projects []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &projects))
	require.Len(t, projects, 2)
	assert.Equal(t, "alpha", projects[0]["project"])
	assert.Equal(t, float64(2), projects[0]["count"])
	assert.Equal(t, "beta", projects[1]["project"])
}

func TestAPIKeyAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret-key"), bcrypt.MinCost)
	require.NoError(t, err)

	h := newTestRouter(t, func(cfg *config.Config) {
		cfg.Auth.APIKeyHash = string(hash)
	}).Handler()

	rec, _ := doJSON(t, h, http.MethodGet, "/api/memories", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = doJSON(t, h, http.MethodGet, "/api/memories", nil,
		map[string]string{"X-API-Key": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = doJSON(t, h, http.MethodGet, "/api/memories", nil,
		map[string]string{"X-API-Key": "secret-key"})
	assert.Equal(t, http.StatusOK, rec.Code)

	// Health stays open for load balancers.
	rec, _ = doJSON(t, h, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	h := newTestRouter(t, nil).Handler()

	rec, body := doJSON(t, h, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.NotEmpty(t, body["version"])
}

func TestMCPEndpointMounted(t *testing.T) {
	h := newTestRouter(t, nil).Handler()

	rec, body := doJSON(t, h, http.MethodPost, "/mcp/gamma", map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "initialize",
		"params":  map[string]interface{}{"protocolVersion": "2025-11-25"},
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result, ok := body["result"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "2025-11-25", result["protocolVersion"])
}

func TestDocsEndpoints(t *testing.T) {
	h := newTestRouter(t, nil).Handler()

	rec, _ := doJSON(t, h, http.MethodGet, "/openapi.json", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"openapi"`)
	assert.Contains(t, rec.Body.String(), "/api/memories/search")

	rec, _ = doJSON(t, h, http.MethodGet, "/docs", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "swagger-ui")

	rec, _ = doJSON(t, h, http.MethodGet, "/guide", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "memory.store")

	rec, _ = doJSON(t, h, http.MethodGet, "/", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Project Memory")
}

func TestRequestIDHeader(t *testing.T) {
	h := newTestRouter(t, nil).Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/memories", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req = httptest.NewRequest(http.MethodGet, "/api/memories", nil)
	req.Header.Set("X-Request-ID", "trace-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "trace-123", rec.Header().Get("X-Request-ID"))
}
