package drive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/andresuchdata/reorderpoint/internal/domain"
	"github.com/andresuchdata/reorderpoint/internal/ingest"
	"github.com/rs/zerolog/log"
)

// FactAppender is the ingestion boundary the Drive files feed.
type FactAppender interface {
	AppendBatch(ctx context.Context, facts []domain.FactRecord) (*domain.IngestReport, error)
}

// FileReport is the ingest outcome of one downloaded file.
type FileReport struct {
	File   string               `json:"file"`
	Report *domain.IngestReport `json:"report"`
}

type IngestService struct {
	downloader *Downloader
	facts      FactAppender
	workDir    string
}

func NewIngestService(source FileSource, facts FactAppender, workDir string) *IngestService {
	return &IngestService{
		downloader: NewDownloader(source),
		facts:      facts,
		workDir:    workDir,
	}
}

// IngestFolder downloads the folder's fact files and appends their rows file
// by file. Unparseable rows count as rejected.
func (s *IngestService) IngestFolder(ctx context.Context, folderID string) ([]FileReport, error) {
	if s.workDir != "" {
		if err := os.MkdirAll(s.workDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create work dir: %w", err)
		}
	}
	dir, err := os.MkdirTemp(s.workDir, "drive-")
	if err != nil {
		return nil, fmt.Errorf("failed to create work dir: %w", err)
	}
	defer os.RemoveAll(dir)

	paths, err := s.downloader.DownloadFolder(ctx, DownloadOptions{FolderID: folderID, DownloadDir: dir})
	if err != nil {
		return nil, err
	}

	reports := make([]FileReport, 0, len(paths))
	for _, p := range paths {
		report, err := IngestFile(ctx, s.facts, p)
		if err != nil {
			return reports, err
		}
		reports = append(reports, FileReport{File: filepath.Base(p), Report: report})
	}
	return reports, nil
}

// IngestFile parses one local CSV or XLSX file and appends its rows.
func IngestFile(ctx context.Context, facts FactAppender, path string) (*domain.IngestReport, error) {
	parsed, err := ingest.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}

	report, err := facts.AppendBatch(ctx, parsed.Facts)
	if err != nil {
		return nil, fmt.Errorf("failed to ingest %s: %w", filepath.Base(path), err)
	}
	report.Received += len(parsed.Rejected)
	report.Rejected = append(parsed.Rejected, report.Rejected...)

	log.Info().
		Str("file", filepath.Base(path)).
		Int("appended", report.Appended).
		Int("rejected", len(report.Rejected)).
		Msg("fact file ingested")

	return report, nil
}
