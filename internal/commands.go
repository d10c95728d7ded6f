package internal

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/starford/lynx/internal/api"
	"github.com/starford/lynx/internal/contentservice"
	"github.com/starford/lynx/internal/eventservice"
	"github.com/starford/lynx/internal/facet"
	"github.com/starford/lynx/internal/mcpserver"
	"github.com/starford/lynx/internal/store"
)

// Migrate applies (or, with down, rolls back) the schema migrations.
func Migrate(cfg *Config, down bool) error {
	db, err := store.Connect(cfg.SQLite.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	apply, verb := db.MigrateUp, "applied"
	if down {
		apply, verb = db.MigrateDown, "rolled back"
	}
	changed, err := apply()
	if err != nil {
		return err
	}
	if changed {
		slog.Info("migrations "+verb, slog.String("sqlite_path", cfg.SQLite.Path))
	} else {
		slog.Info("no migrations to apply", slog.String("sqlite_path", cfg.SQLite.Path))
	}
	return nil
}

// ServeMCP runs the MCP server on stdin/stdout. Logs go to stderr since
// stdout carries the protocol.
func ServeMCP(cfg *Config) error {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	})))

	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()

	content := contentservice.NewService(db, facet.Content(db, nil), cfg.Search.DefaultPerPage, cfg.Search.MaxPerPage)
	events := eventservice.NewService(db, facet.Events(db, nil), nil, nil, cfg.Search.DefaultPerPage, cfg.Search.MaxPerPage)

	slog.Info("MCP server starting", slog.String("sqlite_path", cfg.SQLite.Path))
	return mcpserver.New(content, events, db).ServeStdio()
}

// MintToken signs a JWT for orgID with the configured secret.
func MintToken(cfg *Config, orgID int64, ttl time.Duration) (string, error) {
	if cfg.Auth.JWTSecret == "" {
		return "", fmt.Errorf("auth: jwt_secret is not configured")
	}
	if orgID <= 0 {
		return "", fmt.Errorf("org id must be positive")
	}
	return api.MintToken(cfg.Auth.JWTSecret, orgID, ttl)
}
