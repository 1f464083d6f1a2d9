package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"mcp-project-memory/internal/config"
	"mcp-project-memory/internal/logging"
)

const defaultMemoryCacheSize = 1000

// Cache stores computed embeddings keyed by model and text hash.
type Cache interface {
	Get(ctx context.Context, key string) ([]float32, bool)
	Set(ctx context.Context, key string, embedding []float32)
}

// CacheKey derives a stable cache key for a model/text pair.
func CacheKey(model, text string) string {
	hash := sha256.Sum256([]byte(model + "|" + text))
	return fmt.Sprintf("emb:%x", hash)
}

// MemoryCache is a bounded in-process cache. Eviction is arbitrary once the
// bound is hit, which is acceptable for an embedding cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string][]float32
	maxSize int
}

// NewMemoryCache creates an in-process cache holding up to maxSize entries.
func NewMemoryCache(maxSize int) *MemoryCache {
	if maxSize <= 0 {
		maxSize = defaultMemoryCacheSize
	}
	return &MemoryCache{
		entries: make(map[string][]float32),
		maxSize: maxSize,
	}
}

// Get returns a cached embedding copy.
func (c *MemoryCache) Get(_ context.Context, key string) ([]float32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	embedding, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	out := make([]float32, len(embedding))
	copy(out, embedding)
	return out, true
}

// Set stores an embedding copy, evicting arbitrary entries at capacity.
func (c *MemoryCache) Set(_ context.Context, key string, embedding []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxSize {
		evicted := 0
		for k := range c.entries {
			delete(c.entries, k)
			evicted++
			if evicted >= c.maxSize/10+1 {
				break
			}
		}
	}

	stored := make([]float32, len(embedding))
	copy(stored, embedding)
	c.entries[key] = stored
}

// Len returns the number of cached entries.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// RedisCache stores embeddings in Redis with a TTL. Misses and Redis errors
// both report a cache miss so the caller falls through to the API.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger logging.Logger
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(cfg *config.CacheConfig, logger logging.Logger) (*RedisCache, error) {
	if logger == nil {
		logger = logging.WithComponent("embeddings-cache")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{client: client, ttl: cfg.TTL(), logger: logger}, nil
}

// Get fetches a cached embedding.
func (c *RedisCache) Get(ctx context.Context, key string) ([]float32, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.WarnContext(ctx, "redis cache read failed", "error", err)
		}
		return nil, false
	}
	embedding, err := decodeEmbedding(data)
	if err != nil {
		c.logger.WarnContext(ctx, "corrupt cache entry dropped", "key", key, "error", err)
		c.client.Del(ctx, key)
		return nil, false
	}
	return embedding, true
}

// Set writes an embedding with the configured TTL.
func (c *RedisCache) Set(ctx context.Context, key string, embedding []float32) {
	if err := c.client.Set(ctx, key, encodeEmbedding(embedding), c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "redis cache write failed", "error", err)
	}
}

// Close releases the Redis connection.
func (c *RedisCache) Close() error { return c.client.Close() }

// encodeEmbedding packs a vector as little-endian float32 bytes.
func encodeEmbedding(embedding []float32) []byte {
	out := make([]byte, 4*len(embedding))
	for i, v := range embedding {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

func decodeEmbedding(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("embedding payload of %d bytes is not float32-aligned", len(data))
	}
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out, nil
}
