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
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/lynx/internal/api"
	"github.com/starford/lynx/internal/contentservice"
	"github.com/starford/lynx/internal/eventservice"
	"github.com/starford/lynx/internal/facet"
	"github.com/starford/lynx/internal/gaauth"
	"github.com/starford/lynx/internal/metrics"
	"github.com/starford/lynx/internal/session"
	"github.com/starford/lynx/internal/sse"
	"github.com/starford/lynx/internal/store"
	pkgconfig "github.com/starford/lynx/pkg/config"
)

const (
	apiPrefix      = "/api/v1"
	callbackPath   = apiPrefix + "/auth/google-analytics/callback"
	propertiesPath = apiPrefix + "/auth/google-analytics/properties"

	facetsThrottle = 2 * time.Second
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger. The level can change at runtime.
	level := new(slog.LevelVar)
	level.Set(cfg.App.LogLevel)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.Bool("fts5", store.FTSEnabled),
		slog.String("auth_mode", cfg.Auth.Mode),
		slog.String("session_backend", cfg.Session.Backend),
		slog.Bool("google_analytics", cfg.GoogleAnalytics.Configured()),
		slog.String("log_level", cfg.App.LogLevel.String()))

	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()

	sessions, closeSessions, err := newSessionStore(cfg.Session)
	if err != nil {
		return fmt.Errorf("init session store: %w", err)
	}
	defer closeSessions()

	m := metrics.New(nil)
	broker := sse.NewBroker(facetsThrottle)

	flow := gaauth.NewFlow(newAnalyticsProvider(cfg.GoogleAnalytics), sessions, db,
		cfg.Session.TTL, cfg.GoogleAnalytics.URL(propertiesPath))

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           newHandler(cfg, db, m, broker, flow),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Follow config file edits for the log level.
	if app.configFile != "" {
		g.Go(func() error {
			err := pkgconfig.Watch(gCtx, app.configFile, NewDefaultConfig,
				func(next *Config) {
					if next.App.LogLevel != level.Level() {
						logger.Info("log level changed",
							slog.String("from", level.Level().String()),
							slog.String("to", next.App.LogLevel.String()))
						level.Set(next.App.LogLevel)
					}
				},
				func(err error) {
					logger.Warn("config reload failed", slog.String("error", err.Error()))
				})
			if err != nil {
				logger.Warn("config watcher stopped", slog.String("error", err.Error()))
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
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		// Closing the broker ends open streams so Shutdown does not wait on them.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group's context so the watcher stops too.
var errShutdown = errors.New("shutdown")

// newHandler builds the root router: health checks, metrics and the v1 API.
func newHandler(cfg *Config, db *store.DB, m *metrics.Metrics, broker *sse.Broker, flow *gaauth.Flow) http.Handler {
	content := contentservice.NewService(db, facet.Content(db, m.FacetObserver("content")),
		cfg.Search.DefaultPerPage, cfg.Search.MaxPerPage)
	events := eventservice.NewService(db, facet.Events(db, m.FacetObserver("events")), broker, m,
		cfg.Search.DefaultPerPage, cfg.Search.MaxPerPage)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(api.MetricsMiddleware(m))

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.Ping(r.Context()); err != nil {
			slog.Warn("readiness check failed", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, `{"status":"ok","fts5":%t}`, store.FTSEnabled)
	})
	r.Handle("/metrics", m.Handler())

	r.Mount(apiPrefix, api.NewRouter(api.Deps{
		Content:   content,
		Events:    events,
		Orgs:      db,
		Analytics: flow,
		Broker:    broker,
		Auth:      cfg.Auth.Options(),
	}))

	return r
}

// newSessionStore opens the configured handshake store. The returned func
// releases it.
func newSessionStore(cfg SessionConfig) (session.Store, func() error, error) {
	if cfg.Backend != SessionBackendRedis {
		return session.NewMemory(), func() error { return nil }, nil
	}
	rs, err := session.NewRedis(session.Config{
		Address:  cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Prefix:   cfg.Redis.Prefix,
	})
	if err != nil {
		return nil, nil, err
	}
	return rs, rs.Close, nil
}

// newAnalyticsProvider returns the Google provider, or nil when no OAuth
// client is configured.
func newAnalyticsProvider(cfg GoogleAnalyticsConfig) gaauth.Provider {
	if !cfg.Configured() {
		return nil
	}
	return gaauth.NewGoogle(gaauth.GoogleConfig{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.URL(callbackPath),
	})
}
