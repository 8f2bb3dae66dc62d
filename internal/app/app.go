// Package app wires repositories, the event bus and services from config.
// Both the HTTP server and the CLI build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/andresuchdata/reorderpoint/internal/cache"
	"github.com/andresuchdata/reorderpoint/internal/config"
	"github.com/andresuchdata/reorderpoint/internal/drive"
	"github.com/andresuchdata/reorderpoint/internal/events"
	"github.com/andresuchdata/reorderpoint/internal/pipeline"
	reorderpoint "github.com/andresuchdata/reorderpoint/internal/pipeline/reorder_point"
	"github.com/andresuchdata/reorderpoint/internal/repository"
	"github.com/andresuchdata/reorderpoint/internal/repository/memory"
	"github.com/andresuchdata/reorderpoint/internal/repository/postgres"
	"github.com/andresuchdata/reorderpoint/internal/service"
	"github.com/andresuchdata/reorderpoint/internal/storage"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	TransportMemory = "memory"
	TransportRedis  = "redis"
)

type App struct {
	Config        *config.Config
	Facts         *service.FactService
	ReorderPoints *service.ReorderPointService
	Backfill      *pipeline.Orchestrator
	// Drive is nil unless Drive credentials are configured.
	Drive *drive.IngestService

	runs     pipeline.RunStore
	uploader pipeline.ReportUploader
	redisBus *events.RedisBus
	closers  []func() error
}

// New builds the application on db, or on in-memory stores when db is nil.
func New(ctx context.Context, cfg *config.Config, db *postgres.DB) (*App, error) {
	a := &App{Config: cfg}

	var (
		facts  repository.FactRepository
		points repository.ReorderPointRepository
		locker repository.ProductLocker
	)
	if db != nil {
		facts = postgres.NewFactRepository(db)
		points = postgres.NewReorderPointRepository(db)
		locker = postgres.NewAdvisoryLocker(db)
		a.runs = pipeline.NewRepository(db.DB)
	} else {
		log.Warn().Msg("using in-memory storage, data is lost on exit")
		facts = memory.NewFactRepository()
		points = memory.NewReorderPointRepository()
		locker = memory.NewKeyedLocker()
		a.runs = pipeline.NewMemoryRunStore()
	}

	rpCfg, err := reorderpoint.ConfigFrom(cfg.Reorder)
	if err != nil {
		return nil, fmt.Errorf("invalid reorder point config: %w", err)
	}

	rpCache, err := cache.NewReorderPointCache(cfg.Cache)
	if err != nil {
		log.Warn().Err(err).Msg("reorder point cache disabled")
		rpCache = cache.NewNoopReorderPointCache()
	}

	a.ReorderPoints = service.NewReorderPointService(facts, points, locker, rpCache, rpCfg)

	bus, err := a.newBus(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	bus.Subscribe(a.ReorderPoints.HandleFactAppended)
	a.Facts = service.NewFactService(facts, bus)

	if cfg.Storage.Endpoint != "" {
		client, err := storage.NewMinioClient(cfg.Storage)
		if err != nil {
			log.Warn().Err(err).Msg("report uploads disabled")
		} else {
			a.uploader = client
		}
	}
	a.Backfill = a.Orchestrator(BackfillConfig(cfg.Backfill))

	if cfg.Drive.CredentialsJSON != "" {
		src, err := drive.NewService(ctx, cfg.Drive.CredentialsJSON)
		if err != nil {
			log.Warn().Err(err).Msg("drive ingestion disabled")
		} else {
			a.Drive = drive.NewIngestService(src, a.Facts, filepath.Join(cfg.App.UploadDir, "drive"))
		}
	}

	return a, nil
}

func (a *App) newBus(cfg *config.Config) (events.Bus, error) {
	switch cfg.Events.Transport {
	case "", TransportMemory:
		return events.NewMemoryBus(), nil
	case TransportRedis:
		client, err := cache.NewRedisClient(cfg.Cache)
		if err != nil {
			return nil, fmt.Errorf("redis event transport: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		a.redisBus = events.NewRedisBus(client, cfg.Events.RedisChannel)
		return a.redisBus, nil
	default:
		return nil, fmt.Errorf("unknown event transport %q", cfg.Events.Transport)
	}
}

// Orchestrator builds a backfill with its own partitioning and worker settings
// over the shared run store.
func (a *App) Orchestrator(cfg pipeline.BackfillConfig) *pipeline.Orchestrator {
	return pipeline.NewOrchestrator(a.ReorderPoints, a.runs, cfg, a.uploader)
}

// Listen consumes remote fact events until ctx is done. It returns at once
// with the in-process transport, whose handlers run inside Publish.
func (a *App) Listen(ctx context.Context) {
	if a.redisBus == nil {
		return
	}
	a.redisBus.Start(ctx)
}

// Close releases connections opened by New. The database is owned by the caller.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c(); err != nil && !errors.Is(err, redis.ErrClosed) {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// BackfillConfig maps the environment settings onto a backfill config.
func BackfillConfig(c config.BackfillConfig) pipeline.BackfillConfig {
	bc := pipeline.DefaultBackfillConfig()
	if c.Workers > 0 {
		bc.WorkerCount = c.Workers
	}
	if c.RetryAttempts >= 0 {
		bc.RetryAttempts = c.RetryAttempts
	}
	if c.RetryBackoffMS > 0 {
		bc.RetryBackoff = time.Duration(c.RetryBackoffMS) * time.Millisecond
	}
	if c.ReportDir != "" {
		bc.ReportDir = c.ReportDir
	}
	return bc
}
