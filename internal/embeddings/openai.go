package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"mcp-project-memory/internal/config"
	"mcp-project-memory/internal/logging"
)

// OpenAIService implements Service against an OpenAI-compatible API.
type OpenAIService struct {
	apiKey      string
	baseURL     string
	model       string
	dimension   int
	maxRetries  int
	httpClient  *http.Client
	logger      logging.Logger
	cache       Cache
	rateLimiter *RateLimiter
}

// NewOpenAIService creates an embeddings service from configuration.
func NewOpenAIService(cfg *config.OpenAIConfig, cache Cache, logger logging.Logger) (*OpenAIService, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}
	if cache == nil {
		cache = NewMemoryCache(defaultMemoryCacheSize)
	}
	if logger == nil {
		logger = logging.WithComponent("embeddings")
	}

	return &OpenAIService{
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		model:      cfg.EmbeddingModel,
		dimension:  cfg.Dimension,
		maxRetries: cfg.MaxRetries,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.RequestTimeout) * time.Second,
		},
		logger:      logger,
		cache:       cache,
		rateLimiter: NewRateLimiter(cfg.RateLimitRPM, time.Minute),
	}, nil
}

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Generate embeds a single text.
func (s *OpenAIService) Generate(ctx context.Context, text string) ([]float32, error) {
	text = Normalize(text)
	if text == "" {
		return nil, errors.New("text cannot be empty")
	}

	key := CacheKey(s.model, text)
	if cached, ok := s.cache.Get(ctx, key); ok {
		return cached, nil
	}

	vectors, err := s.request(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, key, vectors[0])
	return vectors[0], nil
}

// GenerateBatch embeds multiple texts, consulting the cache per entry.
func (s *OpenAIService) GenerateBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(texts))
	var pending []string
	var pendingIdx []int

	for i, text := range texts {
		text = Normalize(text)
		if text == "" {
			return nil, fmt.Errorf("text at index %d is empty", i)
		}
		if cached, ok := s.cache.Get(ctx, CacheKey(s.model, text)); ok {
			results[i] = cached
			continue
		}
		pending = append(pending, text)
		pendingIdx = append(pendingIdx, i)
	}

	if len(pending) == 0 {
		return results, nil
	}

	vectors, err := s.request(ctx, pending)
	if err != nil {
		return nil, err
	}
	for i, vec := range vectors {
		results[pendingIdx[i]] = vec
		s.cache.Set(ctx, CacheKey(s.model, pending[i]), vec)
	}
	return results, nil
}

// request calls the embeddings endpoint with retry and rate limiting.
func (s *OpenAIService) request(ctx context.Context, input []string) ([][]float32, error) {
	if err := s.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * time.Second
			s.logger.WarnContext(ctx, "retrying embedding request",
				"attempt", attempt, "backoff", backoff.String(), "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		vectors, retryable, err := s.doRequest(ctx, input)
		if err == nil {
			return vectors, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
	}
	return nil, fmt.Errorf("embedding request failed after %d attempts: %w", s.maxRetries+1, lastErr)
}

func (s *OpenAIService) doRequest(ctx context.Context, input []string) (vectors [][]float32, retryable bool, err error) {
	body, err := json.Marshal(embeddingRequest{Input: input, Model: s.model})
	if err != nil {
		return nil, false, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("embedding request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, true, fmt.Errorf("read response: %w", err)
	}

	// 429 and 5xx are worth retrying, 4xx are not.
	if resp.StatusCode != http.StatusOK {
		retryable = resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, retryable, fmt.Errorf("embedding API returned %d: %s", resp.StatusCode, truncate(string(data), 200))
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, false, fmt.Errorf("decode response: %w", err)
	}
	if parsed.Error != nil {
		return nil, false, fmt.Errorf("embedding API error: %s", parsed.Error.Message)
	}
	if len(parsed.Data) != len(input) {
		return nil, false, fmt.Errorf("expected %d embeddings, got %d", len(input), len(parsed.Data))
	}

	vectors = make([][]float32, len(input))
	for _, item := range parsed.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, false, fmt.Errorf("embedding index %d out of range", item.Index)
		}
		vec := make([]float32, len(item.Embedding))
		for j, v := range item.Embedding {
			vec[j] = float32(v)
		}
		vectors[item.Index] = vec
	}
	return vectors, false, nil
}

// Dimension returns the configured vector size.
func (s *OpenAIService) Dimension() int { return s.dimension }

// Model returns the embedding model name.
func (s *OpenAIService) Model() string { return s.model }

// HealthCheck generates a trivial embedding.
func (s *OpenAIService) HealthCheck(ctx context.Context) error {
	_, err := s.Generate(ctx, "health check")
	return err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
