// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/andresuchdata/reorderpoint/internal/api"
	"github.com/andresuchdata/reorderpoint/internal/app"
	"github.com/andresuchdata/reorderpoint/internal/config"
	"github.com/andresuchdata/reorderpoint/internal/drive"
	"github.com/andresuchdata/reorderpoint/internal/repository/postgres"
	"github.com/andresuchdata/reorderpoint/pkg/logger"
	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	logger.Configure(cfg.Server.Mode, cfg.App.LogLevel)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	var db *postgres.DB
	if cfg.Database.Backend != "memory" {
		var err error
		db, err = postgres.NewDB(&cfg.Database)
		if err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer db.Close()

		applied, err := db.Migrate(ctx)
		if err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to apply migrations")
		}
		if len(applied) > 0 {
			logger.Log.Info().Strs("versions", applied).Msg("Applied migrations")
		}
	}

	// Initialize services
	application, err := app.New(ctx, cfg, db)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer application.Close()

	go application.Listen(ctx)

	services := &api.Services{
		ReorderPoints: application.ReorderPoints,
		Facts:         application.Facts,
		Backfill:      application.Backfill,
	}
	if application.Drive != nil {
		services.Drive = drive.NewHandler(application.Drive, cfg.Drive.FolderID)
	}

	// Initialize HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      api.NewRouter(services, cfg.Server.AllowedOrigins),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	<-ctx.Done()
	logger.Log.Info().Msg("Shutting down server...")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Log.Info().Msg("Server exiting")
}
