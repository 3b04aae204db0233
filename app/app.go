// Package app wires every component of agentd from a config.Config and runs
// the HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/smallnest/agentscaffold/api"
	"github.com/smallnest/agentscaffold/config"
	"github.com/smallnest/agentscaffold/domain"
	"github.com/smallnest/agentscaffold/llm"
	"github.com/smallnest/agentscaffold/log"
	"github.com/smallnest/agentscaffold/rag"
	"github.com/smallnest/agentscaffold/service"
	"github.com/smallnest/agentscaffold/store"
	"github.com/smallnest/agentscaffold/store/memory"
	"github.com/smallnest/agentscaffold/store/postgres"
	"github.com/smallnest/agentscaffold/store/redis"
	"github.com/smallnest/agentscaffold/store/sqlite"
	"github.com/smallnest/agentscaffold/tool"
	"github.com/smallnest/agentscaffold/workflow"
)

const (
	shutdownTimeout = 10 * time.Second
	purgeInterval   = time.Minute
)

// App is a fully wired agentd instance.
type App struct {
	Config      *config.Config
	Logger      log.Logger
	LLM         *llm.Service
	Tools       *tool.Registry
	Knowledge   *rag.KnowledgeBase
	Checkpoints store.CheckpointStore
	Agents      *service.AgentService
	Sessions    *service.SessionService
	Metrics     *api.Metrics
	Handler     http.Handler

	closers []func() error
}

// New builds every component described by cfg. Close releases the
// checkpoint backend.
func New(ctx context.Context, cfg *config.Config, logger log.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger = log.OrDefault(logger)
	a := &App{Config: cfg, Logger: logger, Metrics: api.NewMetrics()}

	a.LLM = llm.NewService(llm.Options{
		DefaultProvider: cfg.LLMProvider,
		OpenAIAPIKey:    cfg.OpenAIAPIKey,
		OpenAIBaseURL:   cfg.OpenAIBaseURL,
		AnthropicAPIKey: cfg.AnthropicAPIKey,
		OllamaBaseURL:   cfg.OllamaBaseURL,
		Logger:          logger,
	})

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	a.Knowledge = rag.NewKnowledgeBase(embedder, rag.Options{
		ChunkSize:    cfg.RAGChunkSize,
		ChunkOverlap: cfg.RAGChunkOverlap,
		TopK:         cfg.RAGTopK,
		Logger:       logger,
	})

	a.Tools = tool.NewRegistry(logger)
	a.Tools.OnExecute(a.Metrics.ObserveTool)
	if err := tool.RegisterBuiltins(a.Tools, tool.BuiltinOptions{
		BraveAPIKey: cfg.BraveAPIKey,
		Knowledge:   a.Knowledge,
	}); err != nil {
		return nil, fmt.Errorf("failed to register builtin tools: %w", err)
	}

	if err := a.openCheckpoints(ctx); err != nil {
		return nil, err
	}

	agents := memory.NewAgentRepository()
	opts := service.Options{
		Agents:      agents,
		Sessions:    memory.NewSessionRepository(),
		Checkpoints: a.Checkpoints,
		Tools:       a.Tools,
		Runner: workflow.NewRunner(workflow.RunnerOptions{
			Models:        a.LLM,
			Tools:         a.Tools,
			Knowledge:     a.Knowledge,
			Agents:        agents,
			MaxIterations: cfg.AgentMaxIterations,
			Timeout:       cfg.AgentTimeout,
			Logger:        logger,
		}),
		Persistence: cfg.EnableMemoryPersistence,
		Streaming:   cfg.EnableStreaming,
		SessionTTL:  cfg.SessionTTL,
		Observer:    a.Metrics.ObserveInvocation,
		Logger:      logger,
	}
	a.Agents = service.NewAgentService(opts)
	a.Sessions = service.NewSessionService(opts)

	a.Handler = api.NewServer(api.Options{
		Agents:    a.Agents,
		Sessions:  a.Sessions,
		Tools:     a.Tools,
		Knowledge: a.Knowledge,
		Metrics:   a.Metrics,
		LLMDefaults: domain.LLMConfig{
			Provider:    cfg.LLMProvider,
			Temperature: cfg.LLMTemperature,
			MaxTokens:   cfg.LLMMaxTokens,
		},
		Streaming: cfg.EnableStreaming,
		Logger:    logger,
	})
	return a, nil
}

func newEmbedder(cfg *config.Config) (rag.Embedder, error) {
	if cfg.RAGEmbedder == config.EmbedderOpenAI {
		e, err := rag.NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.RAGEmbeddingModel)
		if err != nil {
			return nil, fmt.Errorf("failed to create embedder: %w", err)
		}
		return e, nil
	}
	return rag.NewHashEmbedder(0), nil
}

func (a *App) openCheckpoints(ctx context.Context) error {
	cfg := a.Config
	switch cfg.MemoryBackend {
	case config.BackendRedis:
		s := redis.NewCheckpointStore(redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.MemoryTTL,
		})
		if err := s.Ping(ctx); err != nil {
			_ = s.Close()
			return fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		a.Checkpoints = s
		a.closers = append(a.closers, s.Close)
	case config.BackendPostgres:
		s, err := postgres.NewCheckpointStore(ctx, postgres.Options{ConnString: cfg.PostgresURL})
		if err != nil {
			return fmt.Errorf("failed to open postgres checkpoint store: %w", err)
		}
		a.Checkpoints = s
		a.closers = append(a.closers, func() error { s.Close(); return nil })
	case config.BackendSQLite:
		s, err := sqlite.NewCheckpointStore(sqlite.Options{Path: cfg.SQLitePath})
		if err != nil {
			return fmt.Errorf("failed to open sqlite checkpoint store: %w", err)
		}
		a.Checkpoints = s
		a.closers = append(a.closers, s.Close)
	default:
		a.Checkpoints = memory.NewCheckpointStore()
	}
	a.Logger.Info("conversation checkpoints use the %s backend", cfg.MemoryBackend)
	return nil
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
// Expired sessions are purged in the background when SESSION_TTL is set.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         a.Config.Addr(),
		Handler:      a.Handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: a.Config.AgentTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if a.Config.SessionTTL > 0 {
		go a.purgeLoop(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("agentd listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.Logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return <-errCh
}

func (a *App) purgeLoop(ctx context.Context) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if _, err := a.Sessions.PurgeExpired(ctx, now); err != nil {
				a.Logger.Warn("session purge failed: %v", err)
			}
		}
	}
}

// Close releases backend connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
