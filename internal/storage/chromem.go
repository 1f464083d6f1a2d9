package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/philippgille/chromem-go"

	"mcp-project-memory/internal/config"
	"mcp-project-memory/internal/logging"
	"mcp-project-memory/pkg/types"
)

const chromemCollectionPrefix = "memory-"

// ChromemStore is an embedded vector store backed by chromem-go. Collections
// are created per project and persisted to disk when a path is configured.
type ChromemStore struct {
	mu        sync.Mutex
	db        *chromem.DB
	cfg       *config.ChromemConfig
	dimension int
	logger    logging.Logger
}

// NewChromemStore creates an embedded store. Call Initialize before use.
func NewChromemStore(cfg *config.ChromemConfig, dimension int) *ChromemStore {
	return &ChromemStore{
		cfg:       cfg,
		dimension: dimension,
		logger:    logging.WithComponent("chromem"),
	}
}

func (cs *ChromemStore) Initialize(_ context.Context) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.cfg.Path == "" {
		cs.db = chromem.NewDB()
		cs.logger.Info("Initialized in-memory chromem store")
		return nil
	}

	db, err := chromem.NewPersistentDB(cs.cfg.Path, cs.cfg.Compress)
	if err != nil {
		return fmt.Errorf("failed to open chromem database at %s: %w", cs.cfg.Path, err)
	}
	cs.db = db
	cs.logger.Info("Initialized persistent chromem store", "path", cs.cfg.Path)
	return nil
}

// collection returns the project's collection, creating it on first use.
// Embeddings always arrive precomputed, so the embedding func only guards
// against paths that would ask chromem to embed on its own.
func (cs *ChromemStore) collection(project string) (*chromem.Collection, error) {
	name := chromemCollectionPrefix + project
	col, err := cs.db.GetOrCreateCollection(name, nil, rejectEmbedding)
	if err != nil {
		return nil, fmt.Errorf("failed to open collection %s: %w", name, err)
	}
	return col, nil
}

func rejectEmbedding(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("embeddings must be provided by the embedding service")
}

func (cs *ChromemStore) Store(ctx context.Context, mem *types.Memory, embedding []float32) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	col, err := cs.collection(mem.Project)
	if err != nil {
		return err
	}

	doc := chromem.Document{
		ID:        mem.ID,
		Content:   mem.Content,
		Embedding: embedding,
		Metadata: map[string]string{
			"project":    mem.Project,
			"tags":       strings.Join(mem.Tags, ","),
			"created_at": mem.CreatedAt.UTC().Format(time.RFC3339),
		},
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("failed to index memory %s: %w", mem.ID, err)
	}
	cs.logger.Debug("Indexed memory", "id", mem.ID, "project", mem.Project)
	return nil
}

func (cs *ChromemStore) Update(ctx context.Context, mem *types.Memory, embedding []float32) error {
	// chromem has no in-place update. Replace the document.
	if err := cs.Delete(ctx, mem.Project, mem.ID); err != nil {
		return err
	}
	return cs.Store(ctx, mem, embedding)
}

func (cs *ChromemStore) Delete(ctx context.Context, project, id string) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	col, err := cs.collection(project)
	if err != nil {
		return err
	}
	if err := col.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("failed to remove memory %s from index: %w", id, err)
	}
	return nil
}

func (cs *ChromemStore) Search(ctx context.Context, project string, embedding []float32, limit int) ([]Match, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	col, err := cs.collection(project)
	if err != nil {
		return nil, err
	}

	// chromem rejects queries asking for more results than documents exist.
	count := col.Count()
	if count == 0 {
		return []Match{}, nil
	}
	if limit > count {
		limit = count
	}

	results, err := col.QueryEmbedding(ctx, embedding, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection for %s: %w", project, err)
	}

	matches := make([]Match, 0, len(results))
	for _, res := range results {
		matches = append(matches, Match{ID: res.ID, Score: res.Similarity})
	}
	return matches, nil
}

func (cs *ChromemStore) DeleteProject(_ context.Context, project string) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	name := chromemCollectionPrefix + project
	if err := cs.db.DeleteCollection(name); err != nil {
		return fmt.Errorf("failed to delete collection %s: %w", name, err)
	}
	cs.logger.Info("Deleted project collection", "project", project)
	return nil
}

func (cs *ChromemStore) HealthCheck(context.Context) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.db == nil {
		return fmt.Errorf("chromem store not initialized")
	}
	return nil
}

func (cs *ChromemStore) Close() error {
	// chromem persists on every write; nothing to flush.
	return nil
}
