package storage

import (
	"context"
	"strings"
	"time"

	"mcp-project-memory/internal/logging"
	"mcp-project-memory/pkg/types"
)

const (
	retryInitialDelay = 200 * time.Millisecond
	retryMaxDelay     = 5 * time.Second
)

// RetryStore wraps a VectorStore and retries transient failures with
// exponential backoff.
type RetryStore struct {
	store       VectorStore
	maxAttempts int
	logger      logging.Logger
}

func NewRetryStore(store VectorStore, maxAttempts int) *RetryStore {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &RetryStore{
		store:       store,
		maxAttempts: maxAttempts,
		logger:      logging.WithComponent("storage-retry"),
	}
}

// isTransient reports whether an error looks like a recoverable backend
// hiccup rather than a permanent failure.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection refused",
		"connection reset",
		"timeout",
		"temporary failure",
		"too many requests",
		"service unavailable",
		"unavailable",
		"bad gateway",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

func (r *RetryStore) do(ctx context.Context, op string, fn func(context.Context) error) error {
	delay := retryInitialDelay
	var err error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		err = fn(ctx)
		if err == nil || !isTransient(err) {
			return err
		}
		if attempt == r.maxAttempts {
			break
		}
		r.logger.Warn("Retrying storage operation",
			"operation", op, "attempt", attempt, "error", err.Error())
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > retryMaxDelay {
			delay = retryMaxDelay
		}
	}
	return err
}

func (r *RetryStore) Initialize(ctx context.Context) error {
	return r.do(ctx, "initialize", r.store.Initialize)
}

func (r *RetryStore) Store(ctx context.Context, mem *types.Memory, embedding []float32) error {
	return r.do(ctx, "store", func(ctx context.Context) error {
		return r.store.Store(ctx, mem, embedding)
	})
}

func (r *RetryStore) Update(ctx context.Context, mem *types.Memory, embedding []float32) error {
	return r.do(ctx, "update", func(ctx context.Context) error {
		return r.store.Update(ctx, mem, embedding)
	})
}

func (r *RetryStore) Delete(ctx context.Context, project, id string) error {
	return r.do(ctx, "delete", func(ctx context.Context) error {
		return r.store.Delete(ctx, project, id)
	})
}

func (r *RetryStore) Search(ctx context.Context, project string, embedding []float32, limit int) ([]Match, error) {
	var matches []Match
	err := r.do(ctx, "search", func(ctx context.Context) error {
		var innerErr error
		matches, innerErr = r.store.Search(ctx, project, embedding, limit)
		return innerErr
	})
	return matches, err
}

func (r *RetryStore) DeleteProject(ctx context.Context, project string) error {
	return r.do(ctx, "delete_project", func(ctx context.Context) error {
		return r.store.DeleteProject(ctx, project)
	})
}

func (r *RetryStore) HealthCheck(ctx context.Context) error {
	return r.store.HealthCheck(ctx)
}

func (r *RetryStore) Close() error {
	return r.store.Close()
}
