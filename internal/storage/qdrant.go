package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/qdrant/go-client/qdrant"

	"mcp-project-memory/internal/config"
	"mcp-project-memory/internal/logging"
	"mcp-project-memory/pkg/types"
)

// QdrantStore indexes memories in a Qdrant cluster, one collection per
// project. Used when the embedded store is not enough (shared deployments).
type QdrantStore struct {
	client    *qdrant.Client
	cfg       *config.QdrantConfig
	dimension int
	logger    logging.Logger
}

func NewQdrantStore(cfg *config.QdrantConfig, dimension int) *QdrantStore {
	return &QdrantStore{
		cfg:       cfg,
		dimension: dimension,
		logger:    logging.WithComponent("qdrant"),
	}
}

func (qs *QdrantStore) Initialize(ctx context.Context) error {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   qs.cfg.Host,
		Port:   qs.cfg.Port,
		APIKey: qs.cfg.APIKey,
		UseTLS: qs.cfg.UseTLS,
	})
	if err != nil {
		return fmt.Errorf("failed to create qdrant client: %w", err)
	}
	qs.client = client
	qs.logger.Info("Connected to Qdrant", "host", qs.cfg.Host, "port", qs.cfg.Port)
	return nil
}

// collectionName maps a project codename to its Qdrant collection.
func (qs *QdrantStore) collectionName(project string) string {
	return qs.cfg.CollectionPrefix + strings.ReplaceAll(project, "-", "_")
}

// ensureCollection creates the project collection if it does not exist yet.
func (qs *QdrantStore) ensureCollection(ctx context.Context, project string) (string, error) {
	name := qs.collectionName(project)

	collections, err := qs.client.ListCollections(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list collections: %w", err)
	}
	for _, existing := range collections {
		if existing == name {
			return name, nil
		}
	}

	err = qs.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(qs.dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create collection %s: %w", name, err)
	}
	qs.logger.Info("Created Qdrant collection", "collection", name)
	return name, nil
}

func (qs *QdrantStore) Store(ctx context.Context, mem *types.Memory, embedding []float32) error {
	name, err := qs.ensureCollection(ctx, mem.Project)
	if err != nil {
		return err
	}

	point := &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(mem.ID),
		Vectors: qdrant.NewVectors(embedding...),
		Payload: qdrant.NewValueMap(map[string]any{
			"project":    mem.Project,
			"content":    mem.Content,
			"tags":       strings.Join(mem.Tags, ","),
			"created_at": mem.CreatedAt.UTC().Format(time.RFC3339),
		}),
	}
	_, err = qs.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: name,
		Points:         []*qdrant.PointStruct{point},
	})
	if err != nil {
		return fmt.Errorf("failed to upsert memory %s: %w", mem.ID, err)
	}
	qs.logger.Debug("Indexed memory", "id", mem.ID, "project", mem.Project)
	return nil
}

func (qs *QdrantStore) Update(ctx context.Context, mem *types.Memory, embedding []float32) error {
	// Upsert overwrites the existing point.
	return qs.Store(ctx, mem, embedding)
}

func (qs *QdrantStore) Delete(ctx context.Context, project, id string) error {
	name := qs.collectionName(project)
	_, err := qs.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: name,
		Points:         qdrant.NewPointsSelector(qdrant.NewIDUUID(id)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete memory %s: %w", id, err)
	}
	return nil
}

func (qs *QdrantStore) Search(ctx context.Context, project string, embedding []float32, limit int) ([]Match, error) {
	name, err := qs.ensureCollection(ctx, project)
	if err != nil {
		return nil, err
	}

	points, err := qs.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: name,
		Query:          qdrant.NewQuery(embedding...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(false),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query collection %s: %w", name, err)
	}

	matches := make([]Match, 0, len(points))
	for _, point := range points {
		matches = append(matches, Match{
			ID:    point.GetId().GetUuid(),
			Score: point.GetScore(),
		})
	}
	return matches, nil
}

func (qs *QdrantStore) DeleteProject(ctx context.Context, project string) error {
	name := qs.collectionName(project)
	if err := qs.client.DeleteCollection(ctx, name); err != nil {
		return fmt.Errorf("failed to delete collection %s: %w", name, err)
	}
	qs.logger.Info("Deleted project collection", "project", project)
	return nil
}

func (qs *QdrantStore) HealthCheck(ctx context.Context) error {
	if qs.client == nil {
		return fmt.Errorf("qdrant store not initialized")
	}
	if _, err := qs.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant health check failed: %w", err)
	}
	return nil
}

func (qs *QdrantStore) Close() error {
	if qs.client != nil {
		return qs.client.Close()
	}
	return nil
}
