// Package catalog is the SQL-backed system of record for memories. The
// vector store only answers similarity queries; listing and direct lookup
// are served from here.
package catalog

import (
	"context"
	"errors"

	"mcp-project-memory/pkg/types"
)

// ErrNotFound is returned when a memory id does not exist in a project.
var ErrNotFound = errors.New("memory not found")

// Catalog records memory rows per project.
type Catalog interface {
	// Put inserts a new memory.
	Put(ctx context.Context, mem *types.Memory) error

	// Get fetches a memory by project and id.
	Get(ctx context.Context, project, id string) (*types.Memory, error)

	// Update replaces content/tags/updated_at of an existing memory.
	Update(ctx context.Context, mem *types.Memory) error

	// Delete removes a memory. Returns ErrNotFound when absent.
	Delete(ctx context.Context, project, id string) error

	// ListByProject returns all memories of a project, oldest first.
	ListByProject(ctx context.Context, project string) ([]types.Memory, error)

	// CountByProject returns the number of memories in a project.
	CountByProject(ctx context.Context, project string) (int, error)

	// Projects lists the distinct project codenames present.
	Projects(ctx context.Context) ([]string, error)

	// HealthCheck verifies the catalog is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases the underlying connection.
	Close() error
}
