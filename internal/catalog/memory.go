package catalog

import (
	"context"
	"sort"
	"sync"

	"mcp-project-memory/pkg/types"
)

// MemoryCatalog is an in-memory Catalog used by tests and by setups that
// do not need persistence across restarts.
type MemoryCatalog struct {
	mu       sync.RWMutex
	projects map[string]map[string]types.Memory
}

func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		projects: make(map[string]map[string]types.Memory),
	}
}

func (c *MemoryCatalog) Put(_ context.Context, mem *types.Memory) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	bucket, ok := c.projects[mem.Project]
	if !ok {
		bucket = make(map[string]types.Memory)
		c.projects[mem.Project] = bucket
	}
	bucket[mem.ID] = mem.Clone()
	return nil
}

func (c *MemoryCatalog) Get(_ context.Context, project, id string) (*types.Memory, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	mem, ok := c.projects[project][id]
	if !ok {
		return nil, ErrNotFound
	}
	out := mem.Clone()
	return &out, nil
}

func (c *MemoryCatalog) Update(_ context.Context, mem *types.Memory) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	bucket, ok := c.projects[mem.Project]
	if !ok {
		return ErrNotFound
	}
	if _, ok := bucket[mem.ID]; !ok {
		return ErrNotFound
	}
	bucket[mem.ID] = mem.Clone()
	return nil
}

func (c *MemoryCatalog) Delete(_ context.Context, project, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	bucket, ok := c.projects[project]
	if !ok {
		return ErrNotFound
	}
	if _, ok := bucket[id]; !ok {
		return ErrNotFound
	}
	delete(bucket, id)
	if len(bucket) == 0 {
		delete(c.projects, project)
	}
	return nil
}

func (c *MemoryCatalog) ListByProject(_ context.Context, project string) ([]types.Memory, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	bucket := c.projects[project]
	memories := make([]types.Memory, 0, len(bucket))
	for _, mem := range bucket {
		memories = append(memories, mem.Clone())
	}
	sort.Slice(memories, func(i, j int) bool {
		if memories[i].CreatedAt.Equal(memories[j].CreatedAt) {
			return memories[i].ID < memories[j].ID
		}
		return memories[i].CreatedAt.Before(memories[j].CreatedAt)
	})
	return memories, nil
}

func (c *MemoryCatalog) CountByProject(_ context.Context, project string) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.projects[project]), nil
}

func (c *MemoryCatalog) Projects(_ context.Context) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	projects := make([]string, 0, len(c.projects))
	for p := range c.projects {
		projects = append(projects, p)
	}
	sort.Strings(projects)
	return projects, nil
}

func (c *MemoryCatalog) HealthCheck(context.Context) error { return nil }

func (c *MemoryCatalog) Close() error { return nil }
