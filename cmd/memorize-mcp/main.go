package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/iammorganparry/memorize-mcp/internal/config"
	"github.com/iammorganparry/memorize-mcp/internal/embedder"
	"github.com/iammorganparry/memorize-mcp/internal/mcpserver"
	"github.com/iammorganparry/memorize-mcp/internal/memoryservice"
	"github.com/iammorganparry/memorize-mcp/internal/persistence"
	"github.com/iammorganparry/memorize-mcp/internal/recall"
	"github.com/iammorganparry/memorize-mcp/internal/telemetry"
	"github.com/iammorganparry/memorize-mcp/internal/vecstore"
)

func main() {
	root := &cobra.Command{
		Use:   "memorize-mcp",
		Short: "Local semantic memory MCP server for AI coding assistants",
		Long: `memorize-mcp captures question/answer pairs from coding sessions, embeds
them locally, and organizes them into deduplicated topics in an embedded
vector database. It exposes store_qa, query_qa, and merge_knowledge as MCP
tools over stdio, plus a knowledge:// resource template and a lightweight
GET /api/recall HTTP endpoint for editor-hook prompt injection.`,
	}

	cfg := config.Bind(root)
	root.RunE = func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context(), cfg)
	}

	// Flag parse and flag validation failures exit 2; other errors exit 1.
	badArgs := false
	root.SilenceUsage, root.SilenceErrors = true, true
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error { badArgs = true; return err })
	validate := root.PreRunE
	root.PreRunE = func(cmd *cobra.Command, args []string) error {
		err := validate(cmd, args)
		badArgs = err != nil
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	root.SetContext(ctx)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if badArgs {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logLevel := slog.LevelInfo
	if cfg.Debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	shutdownTracing := telemetry.Setup(logger)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(ctx)
	}()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	rawEmbedder, err := embedder.Load(cfg.ModelDir)
	if err != nil {
		return fmt.Errorf("loading embedding model: %w", err)
	}
	defer rawEmbedder.Close()
	emb := embedder.NewCached(rawEmbedder)

	store, err := vecstore.Open(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("opening vector store: %w", err)
	}
	defer store.Close()

	if err := persistence.SyncOnStartup(ctx, store, emb, cfg.DataDir, logger); err != nil {
		return fmt.Errorf("syncing snapshot on startup: %w", err)
	}

	svc := memoryservice.New(store, emb, nil, logger)

	health := &readiness{}
	health.markStoreOpen()
	health.markEmbedderReady()

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	var httpSrv *http.Server
	if cfg.Transport == config.TransportHTTP || cfg.Transport == config.TransportBoth {
		router := recall.NewRouter(svc, health, logger)
		httpSrv = &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.HookPort),
			Handler:      router,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info("recall hook listening", "addr", httpSrv.Addr)
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- fmt.Errorf("recall http server: %w", err)
			}
		}()
	}

	var mcpSrv *mcpserver.Server
	if cfg.Transport == config.TransportStdio || cfg.Transport == config.TransportBoth {
		mcpSrv = mcpserver.NewServer(os.Stdin, os.Stdout, svc, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info("mcp server reading stdio")
			if err := mcpSrv.Run(); err != nil {
				errCh <- fmt.Errorf("mcp server: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		logger.Error("server error, shutting down", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if httpSrv != nil {
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown error", "error", err)
		}
	}

	if err := persistence.Export(shutdownCtx, store, cfg.DataDir); err != nil {
		logger.Error("final snapshot export failed", "error", err)
	} else {
		logger.Info("snapshot exported", "path", persistence.JSONPath(cfg.DataDir))
	}

	return nil
}

// readiness implements recall.HealthChecker.
type readiness struct {
	mu            sync.RWMutex
	storeOpen     bool
	embedderReady bool
}

func (r *readiness) markStoreOpen()     { r.mu.Lock(); r.storeOpen = true; r.mu.Unlock() }
func (r *readiness) markEmbedderReady() { r.mu.Lock(); r.embedderReady = true; r.mu.Unlock() }

func (r *readiness) Ready() (storeOpen, embedderReady bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.storeOpen, r.embedderReady
}
