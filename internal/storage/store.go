// Package storage provides the vector store backends used for similarity
// search. The SQL catalog remains the system of record; backends here only
// need to answer "which memories are closest to this embedding".
package storage

import (
	"context"
	"fmt"

	"mcp-project-memory/internal/config"
	"mcp-project-memory/pkg/types"
)

// Match is a similarity hit returned by a vector store. The caller hydrates
// the full memory from the catalog.
type Match struct {
	ID    string
	Score float32
}

// VectorStore indexes memory embeddings per project and answers
// nearest-neighbor queries.
type VectorStore interface {
	// Initialize prepares the backend (connections, collections).
	Initialize(ctx context.Context) error

	// Store indexes a memory's embedding in its project collection.
	Store(ctx context.Context, mem *types.Memory, embedding []float32) error

	// Update replaces the indexed embedding and metadata of a memory.
	Update(ctx context.Context, mem *types.Memory, embedding []float32) error

	// Delete removes a memory from its project collection.
	Delete(ctx context.Context, project, id string) error

	// Search returns up to limit matches ordered by descending similarity.
	Search(ctx context.Context, project string, embedding []float32, limit int) ([]Match, error)

	// DeleteProject drops an entire project collection.
	DeleteProject(ctx context.Context, project string) error

	// HealthCheck verifies the backend is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// NewVectorStore builds the backend selected by the configuration and wraps
// it with retry handling.
func NewVectorStore(cfg *config.Config) (VectorStore, error) {
	var store VectorStore
	switch cfg.Storage.Provider {
	case config.ProviderChromem:
		store = NewChromemStore(&cfg.Chromem, cfg.OpenAI.Dimension)
	case config.ProviderQdrant:
		store = NewQdrantStore(&cfg.Qdrant, cfg.OpenAI.Dimension)
	default:
		return nil, fmt.Errorf("unknown storage provider: %s", cfg.Storage.Provider)
	}
	return NewRetryStore(store, cfg.Storage.RetryAttempts), nil
}
