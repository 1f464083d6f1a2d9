// Package embeddings generates text embeddings through an OpenAI-compatible
// API, with caching, retries, and rate limiting.
package embeddings

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Service generates embeddings for text.
type Service interface {
	// Generate embeds a single text.
	Generate(ctx context.Context, text string) ([]float32, error)

	// GenerateBatch embeds multiple texts in one round trip where possible.
	GenerateBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension is the vector size produced by this service.
	Dimension() int

	// Model names the embedding model.
	Model() string

	// HealthCheck verifies the service is reachable.
	HealthCheck(ctx context.Context) error
}

// Normalize prepares text for embedding: Unicode NFC, collapsed whitespace.
func Normalize(text string) string {
	return strings.Join(strings.Fields(norm.NFC.String(text)), " ")
}

// RateLimiter is a token-bucket limiter for API calls.
type RateLimiter struct {
	tokens     int
	maxTokens  int
	refillRate time.Duration
	lastRefill time.Time
	mu         sync.Mutex
}

// NewRateLimiter creates a limiter allowing maxTokens requests per window,
// refilling one token every refillRate.
func NewRateLimiter(maxTokens int, window time.Duration) *RateLimiter {
	if maxTokens <= 0 {
		maxTokens = 1
	}
	return &RateLimiter{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: window / time.Duration(maxTokens),
		lastRefill: time.Now(),
	}
}

// Allow reports whether a request may proceed now.
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(rl.lastRefill)
	if add := int(elapsed / rl.refillRate); add > 0 {
		rl.tokens = min(rl.maxTokens, rl.tokens+add)
		rl.lastRefill = now
	}

	if rl.tokens > 0 {
		rl.tokens--
		return true
	}
	return false
}

// Wait blocks until a request may proceed or the context is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		if rl.Allow() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
