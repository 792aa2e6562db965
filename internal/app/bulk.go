package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// IngestBulkCSV parses one SimFin bulk export file and upserts every row's
// fundamentals layer. Returns the number of rows written.
func (a *App) IngestBulkCSV(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open bulk CSV %s: %w", path, err)
	}
	defer f.Close()

	rows, err := a.Fundamentals.ParseBulkCSV(f)
	if err != nil {
		return 0, fmt.Errorf("failed to parse bulk CSV %s: %w", path, err)
	}

	written, err := a.Storage.StockDataStore().BulkUpsertFundamentals(ctx, rows)
	if err != nil {
		return written, fmt.Errorf("bulk upsert from %s: %w", path, err)
	}

	a.Logger.Info().Str("file", filepath.Base(path)).Int("rows", written).Msg("Bulk fundamentals ingested")
	return written, nil
}

// IngestBulkCSVDir processes every .csv file in the configured bulk
// directory, oldest name first. Files that fail to parse are skipped so one
// bad export does not block the rest.
func (a *App) IngestBulkCSVDir(ctx context.Context) error {
	dir := a.Config.Clients.SimFin.BulkCSVDir
	if dir == "" {
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read bulk CSV dir %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".csv") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)

	for _, path := range files {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := a.IngestBulkCSV(ctx, path); err != nil {
			a.Logger.Error().Err(err).Str("file", path).Msg("Bulk CSV ingest failed")
		}
	}
	return nil
}
