// Package memory coordinates the catalog, the vector index, the embedding
// service and the event stream behind every store/search/update/delete.
package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"mcp-project-memory/internal/audit"
	"mcp-project-memory/internal/catalog"
	"mcp-project-memory/internal/embeddings"
	"mcp-project-memory/internal/logging"
	"mcp-project-memory/internal/storage"
	"mcp-project-memory/internal/websocket"
	"mcp-project-memory/pkg/types"
)

// ErrNotFound is returned when a memory id does not exist in a project.
var ErrNotFound = catalog.ErrNotFound

// EventSink receives memory change events. The websocket hub implements it.
type EventSink interface {
	Broadcast(event websocket.MemoryEvent)
}

type nopSink struct{}

func (nopSink) Broadcast(websocket.MemoryEvent) {}

// UpdateRequest carries the mutable fields of a memory. Nil means "leave
// unchanged".
type UpdateRequest struct {
	Content *string
	Tags    *[]string
}

// Service implements the memory operations shared by the MCP adapter and the
// REST API. The catalog is the system of record; the vector store is an
// index that follows it.
type Service struct {
	catalog  catalog.Catalog
	vectors  storage.VectorStore
	embedder embeddings.Service
	trail    audit.Trail
	events   EventSink
	logger   logging.Logger
}

func NewService(cat catalog.Catalog, vectors storage.VectorStore, embedder embeddings.Service, trail audit.Trail, events EventSink) *Service {
	if trail == nil {
		trail = audit.NopTrail{}
	}
	if events == nil {
		events = nopSink{}
	}
	return &Service{
		catalog:  cat,
		vectors:  vectors,
		embedder: embedder,
		trail:    trail,
		events:   events,
		logger:   logging.WithComponent("memory"),
	}
}

// Store creates a memory in the given project and indexes its embedding.
func (s *Service) Store(ctx context.Context, project, content string, tags []string) (*types.Memory, error) {
	project, err := types.NormalizeProject(project)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, errors.New("memory content cannot be empty")
	}
	if tags == nil {
		tags = []string{}
	}

	now := time.Now().UTC()
	mem := &types.Memory{
		ID:        uuid.New().String(),
		Project:   project,
		Content:   content,
		Tags:      tags,
		CreatedAt: now,
		UpdatedAt: now,
	}

	embedding, err := s.embedder.Generate(ctx, content)
	if err != nil {
		s.trail.LogError(ctx, audit.EventTypeMemoryStore, project, "store", err)
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}

	// Catalog first. A memory that exists but is not indexed degrades to
	// being invisible in search; the reverse would surface ghost results.
	if err := s.catalog.Put(ctx, mem); err != nil {
		s.trail.LogError(ctx, audit.EventTypeMemoryStore, project, "store", err)
		return nil, err
	}
	if err := s.vectors.Store(ctx, mem, embedding); err != nil {
		if rbErr := s.catalog.Delete(ctx, project, mem.ID); rbErr != nil {
			s.logger.ErrorContext(ctx, "Failed to roll back catalog insert",
				"id", mem.ID, "error", rbErr.Error())
		}
		s.trail.LogError(ctx, audit.EventTypeMemoryStore, project, "store", err)
		return nil, fmt.Errorf("failed to index memory: %w", err)
	}

	s.trail.LogEvent(ctx, audit.EventTypeMemoryStore, project, "store", mem.ID,
		map[string]interface{}{"tags": tags})
	s.events.Broadcast(websocket.NewMemoryEvent("created", mem.ID, project, tags))
	s.logger.InfoContext(ctx, "Stored memory", "id", mem.ID, "project", project, "tags", tags)
	return mem, nil
}

// Search runs a semantic similarity query against a project.
func (s *Service) Search(ctx context.Context, project, query string, limit int) (*types.SearchResults, error) {
	project, err := types.NormalizeProject(project)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("search query cannot be empty")
	}
	limit = types.ClampSearchLimit(limit)

	start := time.Now()
	embedding, err := s.embedder.Generate(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	matches, err := s.vectors.Search(ctx, project, embedding, limit)
	if err != nil {
		s.trail.LogError(ctx, audit.EventTypeMemorySearch, project, "search", err)
		return nil, err
	}

	results := &types.SearchResults{
		Query:   query,
		Results: make([]types.SearchResult, 0, len(matches)),
	}
	for _, match := range matches {
		mem, err := s.catalog.Get(ctx, project, match.ID)
		if errors.Is(err, catalog.ErrNotFound) {
			// Index ahead of the catalog, e.g. a delete raced this search.
			s.logger.WarnContext(ctx, "Dropping stale index hit", "id", match.ID, "project", project)
			continue
		}
		if err != nil {
			return nil, err
		}
		results.Results = append(results.Results, types.SearchResult{
			Memory: *mem,
			Score:  float64(match.Score),
		})
	}
	results.QueryTime = time.Since(start)

	s.trail.LogEvent(ctx, audit.EventTypeMemorySearch, project, "search", "",
		map[string]interface{}{"query": query, "results": len(results.Results)})
	return results, nil
}

// List returns all memories of a project, oldest first.
func (s *Service) List(ctx context.Context, project string) ([]types.Memory, error) {
	project, err := types.NormalizeProject(project)
	if err != nil {
		return nil, err
	}
	return s.catalog.ListByProject(ctx, project)
}

// Get fetches one memory by id.
func (s *Service) Get(ctx context.Context, project, id string) (*types.Memory, error) {
	project, err := types.NormalizeProject(project)
	if err != nil {
		return nil, err
	}
	return s.catalog.Get(ctx, project, id)
}

// Update changes a memory's content and/or tags. The embedding is only
// regenerated when the content actually changed.
func (s *Service) Update(ctx context.Context, project, id string, req UpdateRequest) (*types.Memory, error) {
	project, err := types.NormalizeProject(project)
	if err != nil {
		return nil, err
	}
	if req.Content == nil && req.Tags == nil {
		return nil, errors.New("update requires content or tags")
	}
	if req.Content != nil && strings.TrimSpace(*req.Content) == "" {
		return nil, errors.New("memory content cannot be empty")
	}

	mem, err := s.catalog.Get(ctx, project, id)
	if err != nil {
		return nil, err
	}

	contentChanged := req.Content != nil && *req.Content != mem.Content
	if req.Content != nil {
		mem.Content = *req.Content
	}
	if req.Tags != nil {
		tags := *req.Tags
		if tags == nil {
			tags = []string{}
		}
		mem.Tags = tags
	}
	mem.UpdatedAt = time.Now().UTC()

	if err := s.catalog.Update(ctx, mem); err != nil {
		s.trail.LogError(ctx, audit.EventTypeMemoryUpdate, project, "update", err)
		return nil, err
	}

	if contentChanged {
		embedding, err := s.embedder.Generate(ctx, mem.Content)
		if err != nil {
			return nil, fmt.Errorf("failed to re-embed memory: %w", err)
		}
		if err := s.vectors.Update(ctx, mem, embedding); err != nil {
			s.trail.LogError(ctx, audit.EventTypeMemoryUpdate, project, "update", err)
			return nil, fmt.Errorf("failed to reindex memory: %w", err)
		}
	}

	s.trail.LogEvent(ctx, audit.EventTypeMemoryUpdate, project, "update", id,
		map[string]interface{}{"content_changed": contentChanged})
	s.events.Broadcast(websocket.NewMemoryEvent("updated", id, project, mem.Tags))
	s.logger.InfoContext(ctx, "Updated memory", "id", id, "project", project, "reembedded", contentChanged)
	return mem, nil
}

// Delete removes a memory from the catalog and the index.
func (s *Service) Delete(ctx context.Context, project, id string) error {
	project, err := types.NormalizeProject(project)
	if err != nil {
		return err
	}

	if err := s.catalog.Delete(ctx, project, id); err != nil {
		if !errors.Is(err, catalog.ErrNotFound) {
			s.trail.LogError(ctx, audit.EventTypeMemoryDelete, project, "delete", err)
		}
		return err
	}
	if err := s.vectors.Delete(ctx, project, id); err != nil {
		// The catalog row is gone; a leftover index entry is dropped as a
		// stale hit at search time. Log and move on.
		s.logger.WarnContext(ctx, "Failed to remove memory from index",
			"id", id, "project", project, "error", err.Error())
	}

	s.trail.LogEvent(ctx, audit.EventTypeMemoryDelete, project, "delete", id, nil)
	s.events.Broadcast(websocket.NewMemoryEvent("deleted", id, project, nil))
	s.logger.InfoContext(ctx, "Deleted memory", "id", id, "project", project)
	return nil
}

// Projects lists the project codenames that have at least one memory.
func (s *Service) Projects(ctx context.Context) ([]string, error) {
	return s.catalog.Projects(ctx)
}

// Count returns the number of memories in a project.
func (s *Service) Count(ctx context.Context, project string) (int, error) {
	project, err := types.NormalizeProject(project)
	if err != nil {
		return 0, err
	}
	return s.catalog.CountByProject(ctx, project)
}

// HealthCheck verifies every dependency is reachable.
func (s *Service) HealthCheck(ctx context.Context) error {
	if err := s.catalog.HealthCheck(ctx); err != nil {
		return err
	}
	if err := s.vectors.HealthCheck(ctx); err != nil {
		return err
	}
	return s.embedder.HealthCheck(ctx)
}
