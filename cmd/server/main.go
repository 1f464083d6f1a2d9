// server is the project memory daemon. It exposes the MCP endpoint, the
// REST API, the websocket event stream and the web panel over one HTTP
// listener.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"

	"mcp-project-memory/internal/api"
	"mcp-project-memory/internal/audit"
	"mcp-project-memory/internal/catalog"
	"mcp-project-memory/internal/config"
	"mcp-project-memory/internal/embeddings"
	"mcp-project-memory/internal/logging"
	"mcp-project-memory/internal/memory"
	"mcp-project-memory/internal/storage"
	"mcp-project-memory/internal/websocket"
)

func main() {
	addr := flag.String("addr", "", "listen address, overrides MEMORY_HOST/MEMORY_PORT")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logging.SetDefaultLogger(logging.NewLogger(
		logging.ParseLogLevel(cfg.Logging.Level), cfg.Logging.Format))

	if err := run(cfg, *addr); err != nil {
		logging.Error("Server exited with error", "error", err.Error())
		os.Exit(1)
	}
}

func run(cfg *config.Config, addr string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := logging.WithComponent("server")

	if cfg.Database.Driver == config.DriverSQLite {
		if _, err := config.EnsureDataDir(filepath.Dir(cfg.Database.DSN)); err != nil {
			return err
		}
	}

	cat, err := catalog.NewSQLCatalog(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	defer func() {
		if err := cat.Close(); err != nil {
			logger.Error("Failed to close catalog", "error", err.Error())
		}
	}()

	vectors, err := storage.NewVectorStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to create vector store: %w", err)
	}
	if err := vectors.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize vector store: %w", err)
	}
	defer func() {
		if err := vectors.Close(); err != nil {
			logger.Error("Failed to close vector store", "error", err.Error())
		}
	}()

	var cache embeddings.Cache
	if cfg.Cache.Enabled {
		cache, err = embeddings.NewRedisCache(&cfg.Cache, logger)
		if err != nil {
			return fmt.Errorf("failed to connect embedding cache: %w", err)
		}
	} else {
		cache = embeddings.NewMemoryCache(1024)
	}

	embedder, err := embeddings.NewOpenAIService(&cfg.OpenAI, cache, logger)
	if err != nil {
		return fmt.Errorf("failed to create embedding service: %w", err)
	}

	var trail audit.Trail = audit.NopTrail{}
	if cfg.Audit.Enabled {
		trail, err = audit.NewFileTrail(cfg.Audit.Dir)
		if err != nil {
			return fmt.Errorf("failed to open audit trail: %w", err)
		}
	}
	defer func() {
		if err := trail.Close(); err != nil {
			logger.Error("Failed to close audit trail", "error", err.Error())
		}
	}()

	hub := websocket.NewHub()
	go hub.Run(ctx)

	service := memory.NewService(cat, vectors, embedder, trail, hub)
	router := api.NewRouter(cfg, service, hub)

	if addr == "" {
		addr = cfg.Server.Addr()
	}
	srv := &http.Server{
		Addr:         addr,
		Handler:      router.Handler(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	printBanner(cfg, addr)
	logger.Info("Server listening",
		"addr", addr,
		"storage", cfg.Storage.Provider,
		"database", cfg.Database.Driver,
		"model", cfg.OpenAI.EmbeddingModel,
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}

func printBanner(cfg *config.Config, addr string) {
	title := color.New(color.FgCyan, color.Bold)
	label := color.New(color.FgYellow)

	_, _ = title.Println("project memory server")
	_, _ = label.Printf("  http     http://%s/\n", addr)
	_, _ = label.Printf("  mcp      http://%s/mcp/{codename}\n", addr)
	_, _ = label.Printf("  docs     http://%s/docs\n", addr)
	_, _ = label.Printf("  storage  %s (%s catalog)\n", cfg.Storage.Provider, cfg.Database.Driver)
}
