package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"aoe4replay/analyzer/internal/archive"
	"aoe4replay/analyzer/internal/catalog"
	"aoe4replay/analyzer/internal/config"
	"aoe4replay/analyzer/internal/container"
	"aoe4replay/analyzer/internal/decodeerr"
	"aoe4replay/analyzer/internal/logging"
	"aoe4replay/analyzer/internal/replay"
)

// fileResult is the outcome of analysing one replay file.
type fileResult struct {
	Source    string           `json:"source"`
	ReplayID  string           `json:"replayId"`
	Analysis  *replay.Analysis `json:"analysis,omitempty"`
	Error     string           `json:"error,omitempty"`
	ErrorKind decodeerr.Kind   `json:"errorKind,omitempty"`
	err       error
}

// replayIDFor derives a stable identifier from the file name.
func replayIDFor(path string) string {
	base := filepath.Base(path)
	for _, ext := range []string{".gz", ".rec", ".aoe2record"} {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}

// analyzeAll runs the pipeline over files with at most cfg.Workers in flight. Per-file
// failures are captured in the results and never cancel the batch.
func analyzeAll(ctx context.Context, files []string, cat *catalog.Catalog, cfg *config.Config, logger *logging.Logger) []fileResult {
	results := make([]fileResult, len(files))
	decompressor := container.NewGZIPDecompressor(cfg.MaxBytes)

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(cfg.Workers)
	for i, path := range files {
		group.Go(func() error {
			results[i] = analyzeFile(gctx, path, cat, decompressor, logger)
			return nil
		})
	}
	_ = group.Wait()
	return results
}

func analyzeFile(ctx context.Context, path string, cat *catalog.Catalog, decompressor container.Decompressor, logger *logging.Logger) fileResult {
	ctx, log, replayID := logging.WithReplay(ctx, logger, replayIDFor(path))
	res := fileResult{Source: path, ReplayID: replayID}
	started := time.Now()

	data, err := os.ReadFile(path)
	if err != nil {
		res.fail(err)
		log.Error("read replay failed", logging.String("path", path), logging.Error(err))
		return res
	}
	analysis, err := replay.DecodeAndAnalyze(ctx, data, cat, replay.Options{Decompressor: decompressor, Logger: log})
	if err != nil {
		res.fail(err)
		log.Error("replay analysis failed", logging.String("path", path), logging.String("kind", string(res.ErrorKind)), logging.Error(err))
		return res
	}
	res.Analysis = analysis
	log.Info("replay analysed",
		logging.String("path", path),
		logging.Int("duration_s", analysis.Duration),
		logging.Int("events", len(analysis.BuildOrder)),
		logging.Duration("elapsed", time.Since(started)))
	return res
}

func (r *fileResult) fail(err error) {
	r.err = err
	r.Error = err.Error()
	r.ErrorKind = decodeerr.KindOf(err)
}

func countFailures(results []fileResult) int {
	failed := 0
	for _, res := range results {
		if res.err != nil {
			failed++
		}
	}
	return failed
}

func writeResults(w io.Writer, results []fileResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if len(results) == 1 && results[0].Analysis != nil {
		return enc.Encode(results[0].Analysis)
	}
	return enc.Encode(results)
}

// archiveResults saves every successful analysis, records the batch outcome and applies retention.
func archiveResults(results []fileResult, cfg config.ArchiveConfig, logger *logging.Logger) error {
	recorder, err := archive.NewRecorder(cfg.Dir, nil)
	if err != nil {
		return err
	}
	for _, res := range results {
		if res.err != nil {
			recorder.Record(res.Source, res.ReplayID, "", res.err)
			continue
		}
		dir, err := archive.Save(cfg.Dir, res.ReplayID, res.Source, res.Analysis, nil)
		if err != nil {
			logger.Error("archive save failed", logging.String(logging.ReplayIDField, res.ReplayID), logging.Error(err))
		}
		recorder.Record(res.Source, res.ReplayID, dir, err)
	}
	report, err := recorder.Roll()
	if err != nil {
		return err
	}
	stats := recorder.Snapshot()
	logger.Info("batch recorded", logging.String("report", report), logging.Int64("rolls", stats.Rolls))

	cleaner := archive.NewCleaner(cfg.Dir, archive.RetentionPolicy{MaxMatches: cfg.MaxMatches, MaxAge: cfg.MaxAge}, logger)
	cleaner.RunOnce()
	usage := cleaner.Stats()
	logger.Info("archive swept", logging.Int("bundles", usage.Bundles), logging.Int64("bytes", usage.Bytes))
	return nil
}
