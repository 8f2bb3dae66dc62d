package pipeline

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/andresuchdata/reorderpoint/internal/domain"
)

var reportHeader = []string{"run_id", "product_id", "kind", "invalid_input", "attempts", "value", "detail"}

// writeReport writes failures then anomalies of a run to a CSV file in dir and
// returns its path. Nothing is written for a clean run.
func writeReport(dir string, report *domain.BatchReport) (string, error) {
	if len(report.Failures) == 0 && len(report.Anomalies) == 0 {
		return "", nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	path := filepath.Join(dir, reportFileName(report))
	file, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(reportHeader); err != nil {
		return "", err
	}

	runID := strconv.FormatInt(report.RunID, 10)
	for _, f := range report.Failures {
		record := []string{
			runID,
			strconv.FormatInt(f.ProductID, 10),
			"failure",
			strconv.FormatBool(f.Invalid),
			strconv.Itoa(f.Attempts),
			"",
			f.Error,
		}
		if err := writer.Write(record); err != nil {
			return "", err
		}
	}
	for _, a := range report.Anomalies {
		record := []string{
			runID,
			strconv.FormatInt(a.ProductID, 10),
			string(a.Kind),
			"false",
			"",
			strconv.FormatFloat(a.Value, 'g', -1, 64),
			a.Detail,
		}
		if err := writer.Write(record); err != nil {
			return "", err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", err
	}
	return path, nil
}

func reportFileName(report *domain.BatchReport) string {
	return fmt.Sprintf("backfill_%d_%s.csv", report.RunID, report.StartedAt.UTC().Format("20060102T150405"))
}
