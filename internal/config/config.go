// Package config loads the server configuration from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Storage provider names.
const (
	ProviderChromem = "chromem"
	ProviderQdrant  = "qdrant"
)

// Database driver names.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Config represents the application configuration.
type Config struct {
	Server   ServerConfig   `json:"server"`
	Storage  StorageConfig  `json:"storage"`
	Chromem  ChromemConfig  `json:"chromem"`
	Qdrant   QdrantConfig   `json:"qdrant"`
	OpenAI   OpenAIConfig   `json:"openai"`
	Cache    CacheConfig    `json:"cache"`
	Database DatabaseConfig `json:"database"`
	Audit    AuditConfig    `json:"audit"`
	Auth     AuthConfig     `json:"auth"`
	Logging  LoggingConfig  `json:"logging"`
}

// ServerConfig represents HTTP server configuration.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"read_timeout_seconds"`
	WriteTimeout int    `json:"write_timeout_seconds"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StorageConfig selects the vector store backend.
type StorageConfig struct {
	Provider      string `json:"provider"`
	RetryAttempts int    `json:"retry_attempts"`
}

// ChromemConfig configures the embedded chromem-go vector store.
type ChromemConfig struct {
	Path     string `json:"path"`
	Compress bool   `json:"compress"`
}

// QdrantConfig configures the Qdrant vector database backend.
type QdrantConfig struct {
	Host             string `json:"host"`
	Port             int    `json:"port"`
	APIKey           string `json:"-"` // Never serialize API key
	UseTLS           bool   `json:"use_tls"`
	CollectionPrefix string `json:"collection_prefix"`
	TimeoutSeconds   int    `json:"timeout_seconds"`
}

// OpenAIConfig configures the embeddings provider.
type OpenAIConfig struct {
	APIKey         string `json:"-"` // Never serialize API key
	BaseURL        string `json:"base_url"`
	EmbeddingModel string `json:"embedding_model"`
	Dimension      int    `json:"dimension"`
	RequestTimeout int    `json:"request_timeout_seconds"`
	MaxRetries     int    `json:"max_retries"`
	RateLimitRPM   int    `json:"rate_limit_rpm"`
}

// CacheConfig configures the Redis embedding cache.
type CacheConfig struct {
	Enabled  bool   `json:"enabled"`
	Addr     string `json:"addr"`
	Password string `json:"-"`
	DB       int    `json:"db"`
	TTLHours int    `json:"ttl_hours"`
}

// TTL returns the cache entry lifetime.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

// DatabaseConfig configures the SQL system of record.
type DatabaseConfig struct {
	Driver       string `json:"driver"`
	DSN          string `json:"dsn"`
	MaxOpenConns int    `json:"max_open_conns"`
	MaxIdleConns int    `json:"max_idle_conns"`
}

// AuditConfig configures the append-only audit trail.
type AuditConfig struct {
	Enabled bool   `json:"enabled"`
	Dir     string `json:"dir"`
}

// AuthConfig configures optional API-key protection of the REST surface.
type AuthConfig struct {
	// APIKeyHash is a bcrypt hash of the expected X-API-Key value.
	// Empty disables authentication.
	APIKeyHash string `json:"-"`
}

// LoggingConfig represents logging configuration.
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "localhost",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Storage: StorageConfig{
			Provider:      ProviderChromem,
			RetryAttempts: 3,
		},
		Chromem: ChromemConfig{
			Path:     "./data/chromem",
			Compress: true,
		},
		Qdrant: QdrantConfig{
			Host:             "localhost",
			Port:             6334,
			UseTLS:           false,
			CollectionPrefix: "memory",
			TimeoutSeconds:   30,
		},
		OpenAI: OpenAIConfig{
			BaseURL:        "https://api.openai.com/v1",
			EmbeddingModel: "text-embedding-3-small",
			Dimension:      1536,
			RequestTimeout: 30,
			MaxRetries:     3,
			RateLimitRPM:   3000,
		},
		Cache: CacheConfig{
			Enabled:  false,
			Addr:     "localhost:6379",
			DB:       0,
			TTLHours: 24,
		},
		Database: DatabaseConfig{
			Driver:       DriverSQLite,
			DSN:          "./data/memories.db",
			MaxOpenConns: 10,
			MaxIdleConns: 5,
		},
		Audit: AuditConfig{
			Enabled: true,
			Dir:     "./data/audit",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadConfig loads configuration from a .env file (when present),
// environment variables, and defaults.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// Don't fail if .env doesn't exist
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	cfg := DefaultConfig()
	loadFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func loadFromEnv(cfg *Config) {
	loadServerConfig(cfg)
	loadStorageConfig(cfg)
	loadOpenAIConfig(cfg)
	loadCacheConfig(cfg)
	loadDatabaseConfig(cfg)
	loadAuditAndAuthConfig(cfg)
	loadLoggingConfig(cfg)
}

func loadServerConfig(cfg *Config) {
	if host := os.Getenv("MEMORY_HOST"); host != "" {
		cfg.Server.Host = host
	}
	setIntEnv("MEMORY_PORT", &cfg.Server.Port)
	setIntEnv("MEMORY_READ_TIMEOUT_SECONDS", &cfg.Server.ReadTimeout)
	setIntEnv("MEMORY_WRITE_TIMEOUT_SECONDS", &cfg.Server.WriteTimeout)
}

func loadStorageConfig(cfg *Config) {
	if provider := os.Getenv("MEMORY_STORAGE_PROVIDER"); provider != "" {
		cfg.Storage.Provider = provider
	}
	setIntEnv("MEMORY_STORAGE_RETRY_ATTEMPTS", &cfg.Storage.RetryAttempts)

	if path := os.Getenv("MEMORY_CHROMEM_PATH"); path != "" {
		cfg.Chromem.Path = path
	}
	setBoolEnv("MEMORY_CHROMEM_COMPRESS", &cfg.Chromem.Compress)

	if host := os.Getenv("QDRANT_HOST"); host != "" {
		cfg.Qdrant.Host = host
	}
	setIntEnv("QDRANT_PORT", &cfg.Qdrant.Port)
	if apiKey := os.Getenv("QDRANT_API_KEY"); apiKey != "" {
		cfg.Qdrant.APIKey = apiKey
	}
	setBoolEnv("QDRANT_USE_TLS", &cfg.Qdrant.UseTLS)
	if prefix := os.Getenv("QDRANT_COLLECTION_PREFIX"); prefix != "" {
		cfg.Qdrant.CollectionPrefix = prefix
	}
	setIntEnv("QDRANT_TIMEOUT_SECONDS", &cfg.Qdrant.TimeoutSeconds)
}

func loadOpenAIConfig(cfg *Config) {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		cfg.OpenAI.APIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		cfg.OpenAI.BaseURL = baseURL
	}
	if model := os.Getenv("OPENAI_EMBEDDING_MODEL"); model != "" {
		cfg.OpenAI.EmbeddingModel = model
	}
	setIntEnv("OPENAI_EMBEDDING_DIMENSION", &cfg.OpenAI.Dimension)
	setIntEnv("OPENAI_REQUEST_TIMEOUT_SECONDS", &cfg.OpenAI.RequestTimeout)
	setIntEnv("OPENAI_MAX_RETRIES", &cfg.OpenAI.MaxRetries)
	setIntEnv("OPENAI_RATE_LIMIT_RPM", &cfg.OpenAI.RateLimitRPM)
}

func loadCacheConfig(cfg *Config) {
	setBoolEnv("MEMORY_CACHE_ENABLED", &cfg.Cache.Enabled)
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Cache.Addr = addr
		cfg.Cache.Enabled = true
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Cache.Password = password
	}
	setIntEnv("REDIS_DB", &cfg.Cache.DB)
	setIntEnv("MEMORY_CACHE_TTL_HOURS", &cfg.Cache.TTLHours)
}

func loadDatabaseConfig(cfg *Config) {
	if driver := os.Getenv("MEMORY_DB_DRIVER"); driver != "" {
		cfg.Database.Driver = driver
	}
	if dsn := os.Getenv("MEMORY_DB_DSN"); dsn != "" {
		cfg.Database.DSN = dsn
	}
	setIntEnv("MEMORY_DB_MAX_OPEN_CONNS", &cfg.Database.MaxOpenConns)
	setIntEnv("MEMORY_DB_MAX_IDLE_CONNS", &cfg.Database.MaxIdleConns)
}

func loadAuditAndAuthConfig(cfg *Config) {
	setBoolEnv("MEMORY_AUDIT_ENABLED", &cfg.Audit.Enabled)
	if dir := os.Getenv("MEMORY_AUDIT_DIR"); dir != "" {
		cfg.Audit.Dir = dir
	}
	if hash := os.Getenv("MEMORY_API_KEY_HASH"); hash != "" {
		cfg.Auth.APIKeyHash = hash
	}
}

func loadLoggingConfig(cfg *Config) {
	if level := os.Getenv("MEMORY_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if format := os.Getenv("MEMORY_LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}
}

func setIntEnv(key string, target *int) {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*target = i
		}
	}
}

func setBoolEnv(key string, target *bool) {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*target = b
		}
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}

	switch c.Storage.Provider {
	case ProviderChromem:
		if c.Chromem.Path == "" {
			return fmt.Errorf("chromem path cannot be empty")
		}
	case ProviderQdrant:
		if c.Qdrant.Host == "" {
			return fmt.Errorf("qdrant host cannot be empty")
		}
		if c.Qdrant.Port <= 0 {
			return fmt.Errorf("qdrant port must be greater than 0")
		}
		if c.Qdrant.CollectionPrefix == "" {
			return fmt.Errorf("qdrant collection prefix cannot be empty")
		}
	default:
		return fmt.Errorf("unknown storage provider: %q", c.Storage.Provider)
	}

	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unknown database driver: %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database DSN cannot be empty")
	}

	if c.OpenAI.EmbeddingModel == "" {
		return fmt.Errorf("embedding model cannot be empty")
	}
	if c.OpenAI.Dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive")
	}

	return nil
}

// EnsureDataDir creates the directory holding a data path if necessary and
// returns it as an absolute path.
func EnsureDataDir(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve data directory: %w", err)
	}
	if err := os.MkdirAll(absPath, 0750); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return absPath, nil
}
