package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/p-n-ai/skillforge/internal/ai"
	"github.com/p-n-ai/skillforge/internal/curriculum"
	"github.com/p-n-ai/skillforge/internal/httpapi"
	"github.com/p-n-ai/skillforge/internal/platform/cache"
	"github.com/p-n-ai/skillforge/internal/platform/config"
	"github.com/p-n-ai/skillforge/internal/platform/database"
	"github.com/p-n-ai/skillforge/internal/progression"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(os.Stdout, cfg.Log))

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      a.handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// app holds the wired service and the resources it must release.
type app struct {
	handler http.Handler
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// newApp wires storage, content generation, and the HTTP API. PostgreSQL and
// Redis are optional; without them plans live in SQLite and sessions in memory.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}
	var checks []httpapi.ReadinessCheck

	var (
		primary progression.Store
		events  progression.EventLogger = progression.NopEventLogger{}
	)
	if cfg.Database.URL != "" {
		db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns,
			database.WithHealthCheckPeriod(time.Minute))
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		if err := db.Migrate(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("migrating database: %w", err)
		}
		pg, err := progression.NewPostgresStore(db.Pool)
		if err != nil {
			a.Close()
			return nil, err
		}
		primary = pg
		events = progression.NewPostgresEventLogger(db.Pool)
		checks = append(checks, httpapi.ReadinessCheck{Name: "database", Check: db.HealthCheck})
		slog.Info("database connected")
	}

	var store progression.Store = primary
	if cfg.LocalStore.Path != "" {
		local, err := progression.OpenSQLiteStore(ctx, cfg.LocalStore.Path)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("opening local store: %w", err)
		}
		a.closers = append(a.closers, func() {
			if err := local.Close(); err != nil {
				slog.Warn("failed to close local store", "error", err)
			}
		})
		if primary != nil {
			store = progression.NewFallbackStore(primary, local)
		} else {
			store = local
		}
		slog.Info("local store opened", "path", cfg.LocalStore.Path)
	}

	sessions := progression.SessionStore(progression.NewMemorySessionStore(cfg.SessionTTL()))
	var budget ai.BudgetChecker = ai.NewInMemoryBudget(int64(cfg.AI.DailyTokenLimit))
	if cfg.Cache.URL != "" {
		c, err := cache.New(ctx, cfg.Cache.URL, cache.WithPoolSize(cfg.Cache.PoolSize))
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connecting to cache: %w", err)
		}
		a.closers = append(a.closers, func() { c.Close() })
		sessions = progression.NewRedisSessionStore(c.Client, cache.Key("session"), cfg.SessionTTL())
		budget = ai.NewRedisBudget(c.Client, cache.Key("budget"), int64(cfg.AI.DailyTokenLimit), 24*time.Hour)
		checks = append(checks, httpapi.ReadinessCheck{Name: "cache", Check: c.HealthCheck})
		slog.Info("cache connected")
	}

	generator, err := newGenerator(cfg, budget)
	if err != nil {
		a.Close()
		return nil, err
	}

	notifier := progression.NewNotifier()
	engine := progression.NewEngine(progression.EngineConfig{
		Generator:     generator,
		Store:         store,
		Events:        events,
		Notifier:      notifier,
		Issuer:        cfg.Credential.Issuer,
		CredentialKey: []byte(cfg.Credential.Secret),
		SyncTimeout:   cfg.SyncTimeout(),
	})
	if cfg.Credential.Secret == "" {
		slog.Warn("SKILLFORGE_CREDENTIAL_SECRET is not set; credential fingerprints are unkeyed")
	}

	a.handler = httpapi.New(httpapi.Config{
		Engine:   engine,
		Sessions: sessions,
		Notifier: notifier,
		Checks:   checks,
	}).Handler()
	return a, nil
}

// newGenerator chains the AI providers ahead of the on-disk catalog.
func newGenerator(cfg *config.Config, budget ai.BudgetChecker) (*curriculum.Chain, error) {
	chain := curriculum.NewChain()

	router := newAIRouter(cfg)
	if router.HasProvider() {
		chain.Add("ai", curriculum.NewAIGenerator(curriculum.AIGeneratorConfig{
			AI:     router,
			Budget: budget,
			Model:  cfg.AI.Model,
		}))
	}

	if cfg.Curriculum.CatalogPath != "" {
		catalog, err := curriculum.NewCatalog(cfg.Curriculum.CatalogPath)
		if err != nil {
			return nil, err
		}
		chain.Add("catalog", catalog)
	}

	if chain.Len() == 0 {
		return nil, errors.New("no content generator configured")
	}
	return chain, nil
}

func newAIRouter(cfg *config.Config) *ai.Router {
	router := ai.NewRouter()
	if cfg.AI.OpenAI.APIKey != "" {
		var opts []ai.OpenAIOption
		if cfg.AI.OpenAI.BaseURL != "" {
			opts = append(opts, ai.WithBaseURL(cfg.AI.OpenAI.BaseURL))
		}
		router.Register("openai", ai.NewOpenAIProvider(cfg.AI.OpenAI.APIKey, opts...))
		slog.Info("AI provider registered", "provider", "openai")
	}
	if cfg.AI.DeepSeek.APIKey != "" {
		router.Register("deepseek", ai.NewDeepSeekProvider(cfg.AI.DeepSeek.APIKey))
		slog.Info("AI provider registered", "provider", "deepseek")
	}
	if cfg.AI.OpenRouter.APIKey != "" {
		router.Register("openrouter", ai.NewOpenRouterProvider(cfg.AI.OpenRouter.APIKey))
		slog.Info("AI provider registered", "provider", "openrouter")
	}
	if cfg.AI.Ollama.Enabled {
		router.Register("ollama", ai.NewOllamaProvider(cfg.AI.Ollama.URL))
		slog.Info("AI provider registered", "provider", "ollama")
	}
	return router
}
