package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcp-project-memory/internal/catalog"
	"mcp-project-memory/internal/config"
	"mcp-project-memory/internal/storage"
	"mcp-project-memory/internal/websocket"
	"mcp-project-memory/pkg/types"
)

// stubEmbedder returns fixed vectors by text, with a fallback for anything
// unlisted. failWith, when set, makes Generate fail.
type stubEmbedder struct {
	vectors  map[string][]float32
	failWith error
	calls    int
}

func (s *stubEmbedder) Generate(_ context.Context, text string) ([]float32, error) {
	s.calls++
	if s.failWith != nil {
		return nil, s.failWith
	}
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 0, 1}, nil
}

func (s *stubEmbedder) GenerateBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := s.Generate(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (s *stubEmbedder) Dimension() int                  { return 4 }
func (s *stubEmbedder) Model() string                   { return "stub" }
func (s *stubEmbedder) HealthCheck(context.Context) error { return nil }

// recordingSink captures broadcast events.
type recordingSink struct {
	mu     sync.Mutex
	events []websocket.MemoryEvent
}

func (r *recordingSink) Broadcast(event websocket.MemoryEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingSink) all() []websocket.MemoryEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]websocket.MemoryEvent, len(r.events))
	copy(out, r.events)
	return out
}

func newTestService(t *testing.T, embedder *stubEmbedder) (*Service, *recordingSink) {
	t.Helper()

	vectors := storage.NewChromemStore(&config.ChromemConfig{}, 4)
	require.NoError(t, vectors.Initialize(context.Background()))

	sink := &recordingSink{}
	svc := NewService(catalog.NewMemoryCatalog(), vectors, embedder, nil, sink)
	return svc, sink
}

func TestServiceStoreAndGet(t *testing.T) {
	ctx := context.Background()
	svc, sink := newTestService(t, &stubEmbedder{})

	mem, err := svc.Store(ctx, "alpha", "the port is 8632", []string{"infra"})
	require.NoError(t, err)
	assert.NotEmpty(t, mem.ID)
	assert.Equal(t, "alpha", mem.Project)
	assert.Equal(t, []string{"infra"}, mem.Tags)
	assert.False(t, mem.CreatedAt.IsZero())

	got, err := svc.Get(ctx, "alpha", mem.ID)
	require.NoError(t, err)
	assert.Equal(t, mem.Content, got.Content)

	events := sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, "created", events[0].Action)
	assert.Equal(t, mem.ID, events[0].MemoryID)
}

func TestServiceStoreDefaultsProject(t *testing.T) {
	svc, _ := newTestService(t, &stubEmbedder{})

	mem, err := svc.Store(context.Background(), "", "unscoped fact", nil)
	require.NoError(t, err)
	assert.Equal(t, types.DefaultProject, mem.Project)
	assert.Equal(t, []string{}, mem.Tags)
}

func TestServiceStoreRejectsEmptyContent(t *testing.T) {
	svc, _ := newTestService(t, &stubEmbedder{})

	_, err := svc.Store(context.Background(), "alpha", "   ", nil)
	assert.Error(t, err)
}

func TestServiceStoreRollsBackOnIndexFailure(t *testing.T) {
	ctx := context.Background()
	embedder := &stubEmbedder{}

	vectors := &failingVectorStore{storeErr: errors.New("index down")}
	cat := catalog.NewMemoryCatalog()
	svc := NewService(cat, vectors, embedder, nil, nil)

	_, err := svc.Store(ctx, "alpha", "doomed", nil)
	require.Error(t, err)

	memories, err := cat.ListByProject(ctx, "alpha")
	require.NoError(t, err)
	assert.Empty(t, memories, "catalog row must be rolled back when indexing fails")
}

func TestServiceSearchRanksByDistance(t *testing.T) {
	ctx := context.Background()
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"redis runs on 6379":  {1, 0, 0, 0},
		"the UI uses dark mode": {0, 1, 0, 0},
		"which port for redis?": {0.9, 0.1, 0, 0},
	}}
	svc, _ := newTestService(t, embedder)

	near, err := svc.Store(ctx, "alpha", "redis runs on 6379", nil)
	require.NoError(t, err)
	_, err = svc.Store(ctx, "alpha", "the UI uses dark mode", nil)
	require.NoError(t, err)

	results, err := svc.Search(ctx, "alpha", "which port for redis?", 2)
	require.NoError(t, err)
	require.Len(t, results.Results, 2)
	assert.Equal(t, near.ID, results.Results[0].Memory.ID)
	assert.Greater(t, results.Results[0].Score, results.Results[1].Score)
	assert.Equal(t, "which port for redis?", results.Query)
}

func TestServiceSearchEmptyProject(t *testing.T) {
	svc, _ := newTestService(t, &stubEmbedder{})

	results, err := svc.Search(context.Background(), "empty", "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, results.Results)
}

func TestServiceSearchRejectsEmptyQuery(t *testing.T) {
	svc, _ := newTestService(t, &stubEmbedder{})

	_, err := svc.Search(context.Background(), "alpha", "  ", 5)
	assert.Error(t, err)
}

func TestServiceListIsProjectScoped(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, &stubEmbedder{})

	_, err := svc.Store(ctx, "alpha", "first", nil)
	require.NoError(t, err)
	_, err = svc.Store(ctx, "beta", "other project", nil)
	require.NoError(t, err)

	memories, err := svc.List(ctx, "alpha")
	require.NoError(t, err)
	require.Len(t, memories, 1)
	assert.Equal(t, "first", memories[0].Content)
}

func TestServiceUpdateContentReembeds(t *testing.T) {
	ctx := context.Background()
	embedder := &stubEmbedder{vectors: map[string][]float32{}}
	svc, sink := newTestService(t, embedder)

	mem, err := svc.Store(ctx, "alpha", "old", nil)
	require.NoError(t, err)
	callsAfterStore := embedder.calls

	newContent := "new"
	updated, err := svc.Update(ctx, "alpha", mem.ID, UpdateRequest{Content: &newContent})
	require.NoError(t, err)
	assert.Equal(t, "new", updated.Content)
	assert.Equal(t, callsAfterStore+1, embedder.calls, "content change must re-embed")
	assert.True(t, updated.UpdatedAt.After(mem.UpdatedAt) || updated.UpdatedAt.Equal(mem.UpdatedAt))

	events := sink.all()
	assert.Equal(t, "updated", events[len(events)-1].Action)
}

func TestServiceUpdateTagsOnlySkipsEmbedding(t *testing.T) {
	ctx := context.Background()
	embedder := &stubEmbedder{}
	svc, _ := newTestService(t, embedder)

	mem, err := svc.Store(ctx, "alpha", "stable content", nil)
	require.NoError(t, err)
	callsAfterStore := embedder.calls

	tags := []string{"retagged"}
	updated, err := svc.Update(ctx, "alpha", mem.ID, UpdateRequest{Tags: &tags})
	require.NoError(t, err)
	assert.Equal(t, []string{"retagged"}, updated.Tags)
	assert.Equal(t, "stable content", updated.Content)
	assert.Equal(t, callsAfterStore, embedder.calls, "tag-only update must not re-embed")
}

func TestServiceUpdateMissing(t *testing.T) {
	svc, _ := newTestService(t, &stubEmbedder{})

	content := "whatever"
	_, err := svc.Update(context.Background(), "alpha", "no-such-id", UpdateRequest{Content: &content})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServiceUpdateRequiresAField(t *testing.T) {
	svc, _ := newTestService(t, &stubEmbedder{})

	_, err := svc.Update(context.Background(), "alpha", "id", UpdateRequest{})
	assert.Error(t, err)
}

func TestServiceDelete(t *testing.T) {
	ctx := context.Background()
	svc, sink := newTestService(t, &stubEmbedder{})

	mem, err := svc.Store(ctx, "alpha", "short lived", nil)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "alpha", mem.ID))
	_, err = svc.Get(ctx, "alpha", mem.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleted memories never come back from search.
	results, err := svc.Search(ctx, "alpha", "short lived", 5)
	require.NoError(t, err)
	assert.Empty(t, results.Results)

	events := sink.all()
	assert.Equal(t, "deleted", events[len(events)-1].Action)

	assert.ErrorIs(t, svc.Delete(ctx, "alpha", mem.ID), ErrNotFound)
}

func TestServiceProjectsAndCount(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, &stubEmbedder{})

	_, err := svc.Store(ctx, "alpha", "one", nil)
	require.NoError(t, err)
	_, err = svc.Store(ctx, "alpha", "two", nil)
	require.NoError(t, err)

	count, err := svc.Count(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	projects, err := svc.Projects(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha"}, projects)
}

// failingVectorStore fails Store to exercise rollback.
type failingVectorStore struct {
	storeErr error
}

func (f *failingVectorStore) Initialize(context.Context) error { return nil }
func (f *failingVectorStore) Store(context.Context, *types.Memory, []float32) error {
	return f.storeErr
}
func (f *failingVectorStore) Update(context.Context, *types.Memory, []float32) error { return nil }
func (f *failingVectorStore) Delete(context.Context, string, string) error           { return nil }
func (f *failingVectorStore) Search(context.Context, string, []float32, int) ([]storage.Match, error) {
	return nil, nil
}
func (f *failingVectorStore) DeleteProject(context.Context, string) error { return nil }
func (f *failingVectorStore) HealthCheck(context.Context) error           { return nil }
func (f *failingVectorStore) Close() error                                { return nil }
