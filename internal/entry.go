// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/quill/internal/api"
	"github.com/starford/quill/internal/docstore"
	"github.com/starford/quill/internal/mcpserver"
	"github.com/starford/quill/internal/postservice"
	"github.com/starford/quill/internal/sse"
	"github.com/starford/quill/internal/storage"
)

func setup(opts []Option) (*application, *slog.Logger, error) {
	app := &application{logOutput: os.Stdout}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, nil, fmt.Errorf("config is required")
	}

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: app.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return app, logger, nil
}

// openStorage builds the content provider selected by cfg.
func openStorage(cfg *Config) (storage.Provider, error) {
	switch cfg.Storage.Backend {
	case StorageFS:
		if err := os.MkdirAll(cfg.Storage.FS.Path, 0o755); err != nil {
			return nil, fmt.Errorf("create content dir: %w", err)
		}
		return storage.NewFS(cfg.Storage.FS.Path)
	default:
		return storage.NewGitHub(storage.GitHubConfig{
			APIURL:    cfg.GitHub.APIURL,
			Owner:     cfg.GitHub.Owner,
			Repo:      cfg.GitHub.Repo,
			Token:     cfg.GitHub.Token,
			Branch:    cfg.GitHub.Branch,
			UserAgent: cfg.GitHub.UserAgent,
		})
	}
}

// openDocStore opens the comment and subscriber store selected by cfg.
func openDocStore(cfg *Config) (docstore.Store, error) {
	if cfg.DocStore.Backend == DocStoreRedis {
		return docstore.NewRedis(docstore.RedisConfig{
			Addr:     cfg.DocStore.Redis.Addr,
			Username: cfg.DocStore.Redis.Username,
			Password: cfg.DocStore.Redis.Password,
			Database: cfg.DocStore.Redis.DB,
		})
	}
	return docstore.OpenSQLite(cfg.DocStore.SQLite.Path)
}

func newPostService(cfg *Config, store storage.Provider) *postservice.Service {
	return postservice.New(store, postservice.Config{
		Dir:           cfg.Posts.Dir,
		DefaultAuthor: cfg.Posts.DefaultAuthor,
	})
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, logger, err := setup(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("storage_backend", cfg.Storage.Backend),
		slog.String("docstore_backend", cfg.DocStore.Backend),
		slog.String("auth_mode", cfg.Auth.Mode),
		slog.String("log_level", cfg.App.LogLevel.String()))

	store, err := openStorage(cfg)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	posts := newPostService(cfg, store)

	docs, err := openDocStore(cfg)
	if err != nil {
		return fmt.Errorf("init docstore: %w", err)
	}
	defer docs.Close()

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	auth := api.NewAuth(api.AuthConfig{
		Enabled:       cfg.Auth.AuthEnabled(),
		Token:         cfg.Auth.Token,
		AdminPassword: cfg.Auth.AdminPassword,
		SessionSecret: cfg.Auth.SessionSecret,
		SessionTTL:    time.Duration(cfg.Auth.SessionTTL),
		SecureCookie:  cfg.Auth.SecureCookie,
	})
	h := api.NewHandler(posts, docs, broker).WithReplyAuthor(cfg.Posts.DefaultAuthor)
	apiRouter := api.NewRouter(h, auth, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Local content edits made outside the API still reach dashboards.
	if fs, ok := store.(*storage.FS); ok {
		g.Go(func() error {
			err := fs.Watch(gCtx, posts.Dir(), logger, func(kind, p string) {
				broker.PublishChange(kind, sse.SubjectPost, strings.TrimSuffix(path.Base(p), ".md"))
			})
			if err != nil {
				logger.Warn("content watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the post tools over stdio until the client disconnects.
func RunMCP(_ context.Context, opts ...Option) error {
	app, logger, err := setup(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}

	store, err := openStorage(app.config)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	logger.Info("MCP server starting", slog.String("storage_backend", app.config.Storage.Backend))
	return mcpserver.New(newPostService(app.config, store)).ServeStdio()
}
