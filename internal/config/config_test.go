package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30, cfg.Server.ReadTimeout)
	assert.Equal(t, 30, cfg.Server.WriteTimeout)

	assert.Equal(t, ProviderChromem, cfg.Storage.Provider)
	assert.Equal(t, "./data/chromem", cfg.Chromem.Path)
	assert.True(t, cfg.Chromem.Compress)

	assert.Equal(t, "localhost", cfg.Qdrant.Host)
	assert.Equal(t, 6334, cfg.Qdrant.Port)
	assert.Equal(t, "memory", cfg.Qdrant.CollectionPrefix)

	assert.Equal(t, "text-embedding-3-small", cfg.OpenAI.EmbeddingModel)
	assert.Equal(t, 1536, cfg.OpenAI.Dimension)

	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.True(t, cfg.Audit.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("MEMORY_HOST", "0.0.0.0")
	t.Setenv("MEMORY_PORT", "9090")
	t.Setenv("MEMORY_STORAGE_PROVIDER", ProviderQdrant)
	t.Setenv("QDRANT_HOST", "qdrant.internal")
	t.Setenv("QDRANT_PORT", "7001")
	t.Setenv("QDRANT_COLLECTION_PREFIX", "facts")
	t.Setenv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-large")
	t.Setenv("OPENAI_EMBEDDING_DIMENSION", "3072")
	t.Setenv("REDIS_ADDR", "redis.internal:6379")
	t.Setenv("MEMORY_DB_DRIVER", DriverPostgres)
	t.Setenv("MEMORY_DB_DSN", "postgres://memory@localhost/memory")
	t.Setenv("MEMORY_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	loadFromEnv(cfg)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, ProviderQdrant, cfg.Storage.Provider)
	assert.Equal(t, "qdrant.internal", cfg.Qdrant.Host)
	assert.Equal(t, 7001, cfg.Qdrant.Port)
	assert.Equal(t, "facts", cfg.Qdrant.CollectionPrefix)
	assert.Equal(t, "text-embedding-3-large", cfg.OpenAI.EmbeddingModel)
	assert.Equal(t, 3072, cfg.OpenAI.Dimension)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, "redis.internal:6379", cfg.Cache.Addr)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestValidateRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"empty host", func(c *Config) { c.Server.Host = "" }},
		{"unknown provider", func(c *Config) { c.Storage.Provider = "pinecone" }},
		{"empty chromem path", func(c *Config) { c.Chromem.Path = "" }},
		{"unknown db driver", func(c *Config) { c.Database.Driver = "oracle" }},
		{"empty dsn", func(c *Config) { c.Database.DSN = "" }},
		{"empty model", func(c *Config) { c.OpenAI.EmbeddingModel = "" }},
		{"bad dimension", func(c *Config) { c.OpenAI.Dimension = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestServerAddr(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "localhost:8080", cfg.Server.Addr())
}
