// Package httpapi exposes operational endpoints next to the playback websocket.
package httpapi

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"aoe4replay/analyzer/internal/archive"
	"aoe4replay/analyzer/internal/logging"
	"aoe4replay/analyzer/internal/playback"
)

// ViewerStats exposes hub delivery counters.
type ViewerStats interface {
	Stats() playback.HubStats
}

// Sweeper applies archive retention on demand. *archive.Cleaner satisfies it.
type Sweeper interface {
	RunOnce()
	Stats() archive.StorageStats
}

// RateLimiter gates how frequently sensitive operations may be invoked.
type RateLimiter interface {
	Allow() bool
}

// Options configures the HandlerSet.
type Options struct {
	Logger      *logging.Logger
	Viewers     ViewerStats
	Bandwidth   *playback.BandwidthRegulator
	Archive     Sweeper
	Frames      int
	AdminToken  string
	RateLimiter RateLimiter
	TimeSource  func() time.Time
}

// HandlerSet bundles the playback server operational handlers.
type HandlerSet struct {
	logger      *logging.Logger
	viewers     ViewerStats
	bandwidth   *playback.BandwidthRegulator
	archive     Sweeper
	frames      int
	adminToken  string
	rateLimiter RateLimiter
	now         func() time.Time
	started     time.Time
}

// NewHandlerSet constructs a HandlerSet using the provided options.
func NewHandlerSet(opts Options) *HandlerSet {
	logger := opts.Logger
	if logger == nil {
		logger = logging.L()
	}
	now := opts.TimeSource
	if now == nil {
		now = time.Now
	}
	return &HandlerSet{
		logger:      logger,
		viewers:     opts.Viewers,
		bandwidth:   opts.Bandwidth,
		archive:     opts.Archive,
		frames:      opts.Frames,
		adminToken:  strings.TrimSpace(opts.AdminToken),
		rateLimiter: opts.RateLimiter,
		now:         now,
		started:     now(),
	}
}

// Register attaches all handlers to the provided mux.
func (h *HandlerSet) Register(mux *http.ServeMux) {
	if mux == nil {
		return
	}
	mux.HandleFunc("/livez", h.LivenessHandler())
	mux.HandleFunc("/readyz", h.ReadinessHandler())
	mux.HandleFunc("/metrics", h.MetricsHandler())
	mux.HandleFunc("/archive/sweep", h.SweepHandler())
}

// LivenessHandler reports that the HTTP server is reachable.
func (h *HandlerSet) LivenessHandler() http.HandlerFunc {
	type response struct {
		Status    string `json:"status"`
		Timestamp string `json:"timestamp"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, response{
			Status:    "alive",
			Timestamp: h.now().UTC().Format(time.RFC3339Nano),
		})
	}
}

// ReadinessHandler reports whether a timeline is loaded and how many viewers are attached.
func (h *HandlerSet) ReadinessHandler() http.HandlerFunc {
	type response struct {
		Status        string  `json:"status"`
		Message       string  `json:"message,omitempty"`
		UptimeSeconds float64 `json:"uptime_seconds"`
		Viewers       int     `json:"viewers"`
		Frames        int     `json:"frames"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		resp := response{Status: "ok", Frames: h.frames, UptimeSeconds: h.now().Sub(h.started).Seconds()}
		if h.viewers != nil {
			resp.Viewers = h.viewers.Stats().Viewers
		}
		if h.frames == 0 {
			status = http.StatusServiceUnavailable
			resp.Status = "error"
			resp.Message = "no keyframes loaded"
		}
		writeJSON(w, status, resp)
	}
}

// MetricsHandler emits Prometheus compatible text metrics.
func (h *HandlerSet) MetricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		fmt.Fprintf(w, "# HELP replay_playback_uptime_seconds Playback server uptime in seconds.\n")
		fmt.Fprintf(w, "# TYPE replay_playback_uptime_seconds gauge\n")
		fmt.Fprintf(w, "replay_playback_uptime_seconds %.0f\n", h.now().Sub(h.started).Seconds())

		fmt.Fprintf(w, "# HELP replay_playback_frames Keyframes in the loaded timeline.\n")
		fmt.Fprintf(w, "# TYPE replay_playback_frames gauge\n")
		fmt.Fprintf(w, "replay_playback_frames %d\n", h.frames)

		if h.viewers != nil {
			stats := h.viewers.Stats()
			fmt.Fprintf(w, "# HELP replay_playback_viewers Current connected websocket viewers.\n")
			fmt.Fprintf(w, "# TYPE replay_playback_viewers gauge\n")
			fmt.Fprintf(w, "replay_playback_viewers %d\n", stats.Viewers)
			fmt.Fprintf(w, "# HELP replay_playback_frames_delivered_total Frames queued to viewers.\n")
			fmt.Fprintf(w, "# TYPE replay_playback_frames_delivered_total counter\n")
			fmt.Fprintf(w, "replay_playback_frames_delivered_total %d\n", stats.Delivered)
			fmt.Fprintf(w, "# HELP replay_playback_frames_throttled_total Frames skipped by the bandwidth budget.\n")
			fmt.Fprintf(w, "# TYPE replay_playback_frames_throttled_total counter\n")
			fmt.Fprintf(w, "replay_playback_frames_throttled_total %d\n", stats.Throttled)
			fmt.Fprintf(w, "# HELP replay_playback_viewers_dropped_total Viewers disconnected for falling behind.\n")
			fmt.Fprintf(w, "# TYPE replay_playback_viewers_dropped_total counter\n")
			fmt.Fprintf(w, "replay_playback_viewers_dropped_total %d\n", stats.Dropped)
		}
		if h.bandwidth != nil {
			usage := h.bandwidth.SnapshotUsage()
			if len(usage) > 0 {
				ids := make([]string, 0, len(usage))
				for id := range usage {
					ids = append(ids, id)
				}
				sort.Strings(ids)
				fmt.Fprintf(w, "# HELP replay_playback_bandwidth_bytes_per_second Observed outbound bandwidth per viewer.\n")
				fmt.Fprintf(w, "# TYPE replay_playback_bandwidth_bytes_per_second gauge\n")
				for _, id := range ids {
					fmt.Fprintf(w, "replay_playback_bandwidth_bytes_per_second{viewer=%q} %.2f\n", id, usage[id].BytesPerSecond)
				}
				fmt.Fprintf(w, "# HELP replay_playback_bandwidth_denied_total Throttled deliveries per viewer.\n")
				fmt.Fprintf(w, "# TYPE replay_playback_bandwidth_denied_total counter\n")
				for _, id := range ids {
					fmt.Fprintf(w, "replay_playback_bandwidth_denied_total{viewer=%q} %d\n", id, usage[id].DeniedDeliveries)
				}
			}
		}
		if h.archive != nil {
			stats := h.archive.Stats()
			fmt.Fprintf(w, "# HELP replay_archive_bundles Archived analysis bundles on disk.\n")
			fmt.Fprintf(w, "# TYPE replay_archive_bundles gauge\n")
			fmt.Fprintf(w, "replay_archive_bundles %d\n", stats.Bundles)
			fmt.Fprintf(w, "# HELP replay_archive_bytes Archived bundle size in bytes.\n")
			fmt.Fprintf(w, "# TYPE replay_archive_bytes gauge\n")
			fmt.Fprintf(w, "replay_archive_bytes %d\n", stats.Bytes)
		}
	}
}

// SweepHandler authorises and runs an archive retention sweep.
func (h *HandlerSet) SweepHandler() http.HandlerFunc {
	type response struct {
		Status  string `json:"status"`
		Bundles int    `json:"bundles"`
		Bytes   int64  `json:"bytes"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		reqLogger := h.logger.With(
			logging.String("handler", "archive_sweep"),
			logging.String("remote_addr", r.RemoteAddr),
		)
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if h.adminToken == "" {
			reqLogger.Warn("archive sweep denied: admin auth disabled")
			http.Error(w, "admin authentication not configured", http.StatusForbidden)
			return
		}
		if !h.authorise(r) {
			reqLogger.Warn("archive sweep denied: unauthorized request")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if h.rateLimiter != nil && !h.rateLimiter.Allow() {
			reqLogger.Warn("archive sweep denied: rate limit exceeded")
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		if h.archive == nil {
			reqLogger.Warn("archive sweep denied: no archive configured")
			http.Error(w, "archive is unavailable", http.StatusServiceUnavailable)
			return
		}
		h.archive.RunOnce()
		stats := h.archive.Stats()
		reqLogger.Info("archive sweep completed", logging.Int("bundles", stats.Bundles))
		writeJSON(w, http.StatusOK, response{Status: "swept", Bundles: stats.Bundles, Bytes: stats.Bytes})
	}
}

func (h *HandlerSet) authorise(r *http.Request) bool {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	var token string
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		token = strings.TrimSpace(header[7:])
	} else if header != "" {
		token = header
	}
	if token == "" {
		token = strings.TrimSpace(r.Header.Get("X-Admin-Token"))
	}
	if token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.adminToken)) == 1
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}
