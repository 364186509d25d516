// Package main provides the entry point for the catalog persistence
// service.
package main

import (
	"log/slog"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/opencatalog/catalog.core/domain/locations"
	"github.com/opencatalog/catalog.core/domain/relationships"
	"github.com/opencatalog/catalog.core/domain/services"
	"github.com/opencatalog/catalog.core/domain/tags"
	"github.com/opencatalog/catalog.core/domain/users"
	"github.com/opencatalog/catalog.core/internal/config"
	"github.com/opencatalog/catalog.core/internal/database"
	"github.com/opencatalog/catalog.core/internal/migrate"
	"github.com/opencatalog/catalog.core/internal/server"
	"github.com/opencatalog/catalog.core/pkg/cursor"
	"github.com/opencatalog/catalog.core/pkg/logger"
)

func main() {
	// Load .env files if present (for local development)
	// Note: Load() won't overwrite existing vars, Overload() will
	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local")

	fx.New(
		// Logging
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log}
		}),

		// Infrastructure modules
		logger.Module,
		config.Module,
		database.Module,
		migrate.Module,
		server.Module,

		// Pagination cursor codec keyed from config
		fx.Provide(func(cfg *config.Config) (*cursor.Codec, error) {
			return cursor.NewCodec(cfg.Pagination.CursorKey)
		}),

		// Domain modules
		relationships.Module,
		tags.Module,
		services.Module,
		users.Module,
		locations.Module,

		// Force construction of the repository graph at startup so
		// wiring errors surface immediately instead of on first use.
		fx.Invoke(func(log *slog.Logger, _ *locations.Repository, _ *services.Repository, _ *users.Repository) {
			log.Info("catalog repositories initialized")
		}),
	).Run()
}
