package main

import (
	"context"
	"fmt"
	"os"

	"github.com/andresuchdata/reorderpoint/internal/app"
	"github.com/andresuchdata/reorderpoint/internal/config"
	"github.com/andresuchdata/reorderpoint/internal/repository/postgres"
	"github.com/andresuchdata/reorderpoint/pkg/logger"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/urfave/cli/v2"
)

type contextKey string

const (
	dbKey  contextKey = "db"
	appKey contextKey = "app"
)

func newDBURLFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "db-url",
		Usage:    "Database connection string",
		Required: true,
		EnvVars:  []string{"DATABASE_URL"},
	}
}

func initDB(c *cli.Context) error {
	db, err := postgres.Open(c.Context, "pgx", c.String("db-url"))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	c.Context = context.WithValue(c.Context, dbKey, db)
	return nil
}

// initApp connects and builds the services on top of the database.
func initApp(c *cli.Context) error {
	if err := initDB(c); err != nil {
		return err
	}

	a, err := app.New(c.Context, config.Load(), dbFrom(c))
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	c.Context = context.WithValue(c.Context, appKey, a)
	return nil
}

func closeAll(c *cli.Context) error {
	if a, ok := c.Context.Value(appKey).(*app.App); ok && a != nil {
		if err := a.Close(); err != nil {
			logger.Log.Warn().Err(err).Msg("failed to close services")
		}
	}
	if db := dbFrom(c); db != nil {
		return db.Close()
	}
	return nil
}

func dbFrom(c *cli.Context) *postgres.DB {
	db, _ := c.Context.Value(dbKey).(*postgres.DB)
	return db
}

func appFrom(c *cli.Context) *app.App {
	a, _ := c.Context.Value(appKey).(*app.App)
	return a
}

func main() {
	cfg := config.Load()
	logger.Configure(cfg.Server.Mode, cfg.App.LogLevel)

	cliApp := &cli.App{
		Name:  "replenish",
		Usage: "Ingest sales facts and maintain per-product reorder points",
		Flags: []cli.Flag{
			newDBURLFlag(),
		},
		Commands: []*cli.Command{
			{
				Name:   "migrate",
				Usage:  "Apply pending schema migrations",
				Flags:  []cli.Flag{newDBURLFlag()},
				Before: initDB,
				After:  closeAll,
				Action: runMigrate,
			},
			{
				Name:  "ingest",
				Usage: "Append facts from local CSV or XLSX files",
				Flags: []cli.Flag{
					newDBURLFlag(),
					&cli.StringSliceFlag{
						Name:     "file",
						Usage:    "Fact file to ingest, may be repeated",
						Required: true,
					},
				},
				Before: initApp,
				After:  closeAll,
				Action: runIngest,
			},
			{
				Name:  "ingest-drive",
				Usage: "Append facts from every CSV or XLSX file in a Google Drive folder",
				Flags: []cli.Flag{
					newDBURLFlag(),
					&cli.StringFlag{
						Name:    "drive-folder-id",
						Usage:   "Google Drive folder ID",
						EnvVars: []string{"DRIVE_FOLDER_ID"},
					},
					&cli.StringFlag{
						Name:  "drive-folder-path",
						Usage: "Folder path such as 'sales/2024' resolved from the Drive root",
					},
				},
				Before: initApp,
				After:  closeAll,
				Action: runIngestDrive,
			},
			{
				Name:  "ingest-bucket",
				Usage: "Append facts from CSV or XLSX objects in the storage bucket",
				Flags: []cli.Flag{
					newDBURLFlag(),
					&cli.StringFlag{
						Name:  "prefix",
						Usage: "Object key prefix to list",
						Value: "facts/",
					},
					&cli.StringFlag{
						Name:  "key",
						Usage: "Ingest a single object, relative to --prefix",
					},
					&cli.StringFlag{
						Name:  "download-dir",
						Usage: "Local directory for downloaded objects",
						Value: "./data/tmp/bucket",
					},
				},
				Before: initApp,
				After:  closeAll,
				Action: runIngestBucket,
			},
			{
				Name:  "recompute",
				Usage: "Recompute the reorder point of one product",
				Flags: []cli.Flag{
					newDBURLFlag(),
					&cli.Int64Flag{
						Name:     "product-id",
						Usage:    "Product to recompute",
						Required: true,
					},
				},
				Before: initApp,
				After:  closeAll,
				Action: runRecompute,
			},
			{
				Name:  "backfill",
				Usage: "Recompute every product's reorder point",
				Flags: []cli.Flag{
					newDBURLFlag(),
					&cli.IntFlag{
						Name:    "workers",
						Usage:   "Concurrent product workers",
						EnvVars: []string{"BACKFILL_WORKERS"},
					},
					&cli.IntFlag{
						Name:  "partitions",
						Usage: "Split products by id modulo this count",
					},
					&cli.IntFlag{
						Name:  "partition",
						Usage: "Partition owned by this process",
					},
					&cli.Int64Flag{
						Name:  "resume-run",
						Usage: "Resume an earlier run, skipping its completed products",
					},
				},
				Before: initApp,
				After:  closeAll,
				Action: runBackfill,
			},
			{
				Name:   "listen",
				Usage:  "Consume fact events from Redis and recompute reorder points",
				Flags:  []cli.Flag{newDBURLFlag()},
				Before: initApp,
				After:  closeAll,
				Action: runListen,
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg("command failed")
	}
}
