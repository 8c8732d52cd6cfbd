package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"aoe4replay/analyzer/internal/catalog"
	"aoe4replay/analyzer/internal/config"
	"aoe4replay/analyzer/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	//1.- Environment first so flags can override it.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	flags := flag.NewFlagSet("replay-analyzer", flag.ContinueOnError)
	flags.StringVar(&cfg.CatalogDir, "catalog", cfg.CatalogDir, "directory holding the raw catalog JSON files")
	flags.StringVar(&cfg.TagRulesPath, "tag-rules", cfg.TagRulesPath, "YAML file overriding the classification tag rules")
	flags.IntVar(&cfg.Workers, "workers", cfg.Workers, "replays analysed concurrently")
	flags.StringVar(&cfg.Archive.Dir, "archive", cfg.Archive.Dir, "archive analysed matches under this directory")
	serve := flags.Bool("serve", false, "stream the first analysed match to websocket viewers")
	flags.StringVar(&cfg.Playback.Addr, "addr", cfg.Playback.Addr, "playback listen address")
	flags.Float64Var(&cfg.Playback.Speed, "speed", cfg.Playback.Speed, "playback speed multiplier")
	quiet := flags.Bool("quiet", false, "do not print analyses to stdout")
	if err := flags.Parse(args); err != nil {
		return err
	}
	files := flags.Args()
	if len(files) == 0 {
		return errors.New("usage: replay-analyzer [flags] <replay.gz>...")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", cfg.Workers)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	logging.ReplaceGlobals(logger)
	defer logger.Sync()

	//2.- Catalog and classification rules.
	rules := catalog.DefaultTagRules()
	if cfg.TagRulesPath != "" {
		if rules, err = catalog.LoadTagRules(cfg.TagRulesPath); err != nil {
			return fmt.Errorf("load tag rules: %w", err)
		}
	}
	cat, err := catalog.LoadDir(cfg.CatalogDir, catalog.WithTagRules(rules))
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	logger.Info("catalog loaded", logging.String("dir", cfg.CatalogDir), logging.Int("entries", cat.Len()))

	//3.- Analyse, report, archive.
	results := analyzeAll(ctx, files, cat, cfg, logger)
	if !*quiet {
		if err := writeResults(stdout, results); err != nil {
			return err
		}
	}
	if cfg.Archive.Dir != "" {
		if err := archiveResults(results, cfg.Archive, logger); err != nil {
			return err
		}
	}

	//4.- Optional live playback.
	if *serve {
		for _, res := range results {
			if res.Analysis != nil {
				return servePlayback(ctx, res.Analysis, cfg, logger)
			}
		}
		return errors.New("no replay analysed successfully; nothing to serve")
	}
	if failed := countFailures(results); failed == len(results) {
		return fmt.Errorf("all %d replays failed", failed)
	}
	return nil
}
