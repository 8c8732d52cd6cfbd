package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"aoe4replay/analyzer/internal/archive"
	"aoe4replay/analyzer/internal/config"
	"aoe4replay/analyzer/internal/httpapi"
	"aoe4replay/analyzer/internal/logging"
	"aoe4replay/analyzer/internal/playback"
	"aoe4replay/analyzer/internal/replay"
)

const (
	idlePoll        = time.Second
	sweepInterval   = time.Hour
	sweepWindow     = time.Minute
	sweepsPerWindow = 2
)

// servePlayback streams the analysis keyframes to websocket viewers on a loop until ctx ends.
func servePlayback(ctx context.Context, a *replay.Analysis, root *config.Config, logger *logging.Logger) error {
	cfg := root.Playback
	frames := playback.BuildTimeline(a.Entities, float64(a.Duration), playback.TimelineOptions{Step: cfg.Step, Normalize: true})
	hub := playback.NewHub(cfg, playback.WithLogger(logger))
	defer hub.Close()

	opts := httpapi.Options{
		Logger:      logger,
		Viewers:     hub,
		Bandwidth:   hub.Regulator(),
		Frames:      len(frames),
		AdminToken:  cfg.AdminToken,
		RateLimiter: httpapi.NewSlidingWindowLimiter(sweepWindow, sweepsPerWindow, nil),
	}
	//1.- Keep retention running while the server is up.
	if root.Archive.Dir != "" {
		cleaner := archive.NewCleaner(root.Archive.Dir, archive.RetentionPolicy{MaxMatches: root.Archive.MaxMatches, MaxAge: root.Archive.MaxAge}, logger)
		go cleaner.Run(ctx, sweepInterval)
		opts.Archive = cleaner
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	httpapi.NewHandlerSet(opts).Register(mux)
	server := &http.Server{Addr: cfg.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errs := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
		close(errs)
	}()
	logger.Info("playback listening", logging.String("url", viewerURL(cfg.Addr)), logging.Int("frames", len(frames)))

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	ticker := time.NewTicker(idlePoll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-errs:
			if ok {
				return err
			}
			return nil
		case <-ticker.C:
		}
		//2.- Only replay while someone is watching.
		if hub.Viewers() == 0 {
			continue
		}
		if err := hub.Play(ctx, frames, cfg.Speed); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		stats := hub.Stats()
		logger.Debug("playback loop", logging.Int64("delivered", stats.Delivered), logging.Int64("throttled", stats.Throttled))
	}
}
