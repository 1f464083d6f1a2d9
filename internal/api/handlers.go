package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"mcp-project-memory/internal/memory"
	"mcp-project-memory/pkg/types"
)

type createMemoryRequest struct {
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
	Project string   `json:"project"`
}

type updateMemoryRequest struct {
	Content *string   `json:"content"`
	Tags    *[]string `json:"tags"`
	Project string    `json:"project"`
}

// searchEntry flattens a search hit so the score sits next to the memory
// fields instead of nesting them.
type searchEntry struct {
	types.Memory
	Score float64 `json:"score"`
}

type searchResponse struct {
	Query   string        `json:"query"`
	Results []searchEntry `json:"results"`
}

type projectInfo struct {
	Project string `json:"project"`
	Count   int    `json:"count"`
}

// projectParam resolves the project codename from the query string,
// falling back to the default project.
func projectParam(r *http.Request) (string, error) {
	return types.NormalizeProject(r.URL.Query().Get("project"))
}

func (rt *Router) handleCreateMemory(w http.ResponseWriter, r *http.Request) {
	var req createMemoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	project, err := types.NormalizeProject(req.Project)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	mem, err := rt.service.Store(r.Context(), project, req.Content, req.Tags)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, mem)
}

func (rt *Router) handleListMemories(w http.ResponseWriter, r *http.Request) {
	project, err := projectParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	memories, err := rt.service.List(r.Context(), project)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if memories == nil {
		memories = []types.Memory{}
	}
	writeJSON(w, http.StatusOK, memories)
}

func (rt *Router) handleSearchMemories(w http.ResponseWriter, r *http.Request) {
	project, err := projectParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	query := r.URL.Query().Get("query")
	if query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("n_results"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "n_results must be an integer")
			return
		}
	}

	results, err := rt.service.Search(r.Context(), project, query, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := searchResponse{Query: results.Query, Results: make([]searchEntry, 0, len(results.Results))}
	for _, res := range results.Results {
		resp.Results = append(resp.Results, searchEntry{Memory: res.Memory, Score: res.Score})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (rt *Router) handleGetMemory(w http.ResponseWriter, r *http.Request) {
	project, err := projectParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	mem, err := rt.service.Get(r.Context(), project, chi.URLParam(r, "id"))
	if errors.Is(err, memory.ErrNotFound) {
		writeError(w, http.StatusNotFound, "memory not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, mem)
}

func (rt *Router) handleUpdateMemory(w http.ResponseWriter, r *http.Request) {
	var req updateMemoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Content == nil && req.Tags == nil {
		writeError(w, http.StatusBadRequest, "content or tags is required")
		return
	}
	if req.Content != nil && strings.TrimSpace(*req.Content) == "" {
		writeError(w, http.StatusBadRequest, "content cannot be empty")
		return
	}
	project := req.Project
	if project == "" {
		project = r.URL.Query().Get("project")
	}
	project, err := types.NormalizeProject(project)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	mem, err := rt.service.Update(r.Context(), project, chi.URLParam(r, "id"), memory.UpdateRequest{
		Content: req.Content,
		Tags:    req.Tags,
	})
	if errors.Is(err, memory.ErrNotFound) {
		writeError(w, http.StatusNotFound, "memory not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, mem)
}

func (rt *Router) handleDeleteMemory(w http.ResponseWriter, r *http.Request) {
	project, err := projectParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err = rt.service.Delete(r.Context(), project, chi.URLParam(r, "id"))
	if errors.Is(err, memory.ErrNotFound) {
		writeError(w, http.StatusNotFound, "memory not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (rt *Router) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := rt.service.Projects(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	infos := make([]projectInfo, 0, len(projects))
	for _, project := range projects {
		count, err := rt.service.Count(r.Context(), project)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		infos = append(infos, projectInfo{Project: project, Count: count})
	}
	writeJSON(w, http.StatusOK, infos)
}

func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := rt.service.HealthCheck(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": rt.version,
	})
}
