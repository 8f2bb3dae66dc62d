package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/andresuchdata/reorderpoint/internal/app"
	"github.com/andresuchdata/reorderpoint/internal/config"
	"github.com/andresuchdata/reorderpoint/internal/domain"
	"github.com/andresuchdata/reorderpoint/internal/drive"
	"github.com/andresuchdata/reorderpoint/internal/pipeline"
	"github.com/andresuchdata/reorderpoint/internal/storage"
	"github.com/andresuchdata/reorderpoint/pkg/logger"
	"github.com/urfave/cli/v2"
)

func runMigrate(c *cli.Context) error {
	applied, err := dbFrom(c).Migrate(c.Context)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		logger.Log.Info().Msg("schema is up to date")
		return nil
	}
	logger.Log.Info().Strs("versions", applied).Msg("applied migrations")
	return nil
}

func runIngest(c *cli.Context) error {
	a := appFrom(c)

	var total domain.IngestReport
	for _, path := range c.StringSlice("file") {
		report, err := drive.IngestFile(c.Context, a.Facts, path)
		if err != nil {
			return err
		}
		merge(&total, report)
	}
	return printJSON(total)
}

func runIngestDrive(c *cli.Context) error {
	a := appFrom(c)
	if a.Drive == nil {
		return errors.New("drive ingestion requires GOOGLE_DRIVE_CREDENTIALS_JSON")
	}

	folderID := c.String("drive-folder-id")
	if path := c.String("drive-folder-path"); path != "" {
		src, err := drive.NewService(c.Context, a.Config.Drive.CredentialsJSON)
		if err != nil {
			return err
		}
		if folderID, err = src.FindFolderByPath(c.Context, path); err != nil {
			return err
		}
	}
	if folderID == "" {
		return errors.New("one of --drive-folder-id or --drive-folder-path is required")
	}

	reports, err := a.Drive.IngestFolder(c.Context, folderID)
	if err != nil {
		return err
	}
	return printJSON(reports)
}

func runIngestBucket(c *cli.Context) error {
	a := appFrom(c)

	client, err := storage.NewMinioClient(a.Config.Storage)
	if err != nil {
		return err
	}
	downloader := newBucketDownloader(client, c.String("download-dir"))

	paths, err := downloader.download(c.Context, c.String("prefix"), c.String("key"))
	if err != nil {
		return err
	}

	reports := make([]drive.FileReport, 0, len(paths))
	for _, p := range paths {
		report, err := drive.IngestFile(c.Context, a.Facts, p)
		if err != nil {
			return err
		}
		reports = append(reports, drive.FileReport{File: filepath.Base(p), Report: report})
	}
	return printJSON(reports)
}

func runRecompute(c *cli.Context) error {
	res, err := appFrom(c).ReorderPoints.Recompute(c.Context, c.Int64("product-id"))
	if err != nil {
		return err
	}
	for _, an := range res.Anomalies {
		logger.Log.Warn().Str("anomaly", an.String()).Msg("recompute anomaly")
	}
	return printJSON(res)
}

func runBackfill(c *cli.Context) error {
	a := appFrom(c)
	bc, err := backfillConfig(c, a.Config.Backfill)
	if err != nil {
		return err
	}
	orchestrator := a.Orchestrator(bc)

	start := time.Now()
	var report *domain.BatchReport
	if runID := c.Int64("resume-run"); runID > 0 {
		report, err = orchestrator.Resume(c.Context, runID)
	} else {
		report, err = orchestrator.Run(c.Context)
	}
	if err != nil {
		return err
	}

	logger.Log.Info().
		Int64("run_id", report.RunID).
		Int("products", report.Products).
		Int("succeeded", report.Succeeded).
		Int("failed", len(report.Failures)).
		Dur("elapsed", time.Since(start)).
		Msg("backfill finished")

	if report.Failed() {
		return cli.Exit(fmt.Sprintf("%d products failed, see %s", len(report.Failures), report.ReportPath), 1)
	}
	return nil
}

func runListen(c *cli.Context) error {
	a := appFrom(c)
	if a.Config.Events.Transport != app.TransportRedis {
		return errors.New("listen requires EVENTS_TRANSPORT=redis")
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	a.Listen(ctx)
	return nil
}

func backfillConfig(c *cli.Context, env config.BackfillConfig) (pipeline.BackfillConfig, error) {
	bc := app.BackfillConfig(env)
	if w := c.Int("workers"); w > 0 {
		bc.WorkerCount = w
	}
	bc.Partitions = c.Int("partitions")
	bc.Partition = c.Int("partition")
	if bc.Partitions > 1 && (bc.Partition < 0 || bc.Partition >= bc.Partitions) {
		return bc, fmt.Errorf("partition must be in [0, %d), got %d", bc.Partitions, bc.Partition)
	}
	return bc, nil
}

func merge(total *domain.IngestReport, r *domain.IngestReport) {
	total.Received += r.Received
	total.Appended += r.Appended
	total.Rejected = append(total.Rejected, r.Rejected...)
	total.TriggerErrors = append(total.TriggerErrors, r.TriggerErrors...)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
