// Package config loads analyzer settings from REPLAY_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix is prepended to every variable name.
const EnvPrefix = "REPLAY_"

const (
	// DefaultCatalogDir holds the buildings, units and technologies data files.
	DefaultCatalogDir = "data"
	// DefaultMaxBytes caps the decompressed replay size.
	DefaultMaxBytes int64 = 64 << 20
	// DefaultWorkers bounds how many replays the CLI analyses concurrently.
	DefaultWorkers = 4

	// DefaultArchiveMaxMatches limits how many analysed matches are retained. Zero disables the limit.
	DefaultArchiveMaxMatches = 200
	// DefaultArchiveMaxAge prunes archived matches older than this. Zero disables the limit.
	DefaultArchiveMaxAge = 30 * 24 * time.Hour

	// DefaultPlaybackAddr is the TCP address the playback hub listens on.
	DefaultPlaybackAddr = ":43127"
	// DefaultPlaybackSpeed is the replay time multiplier when streaming keyframes.
	DefaultPlaybackSpeed = 1.0
	// DefaultPlaybackStep is the keyframe spacing in match seconds.
	DefaultPlaybackStep = 10.0
	// DefaultPingInterval controls the keepalive cadence for WebSocket connections.
	DefaultPingInterval = 30 * time.Second
	// DefaultMaxClients bounds concurrent WebSocket viewers. Zero disables the limit.
	DefaultMaxClients = 64

	// DefaultLogLevel controls verbosity for analyzer logs.
	DefaultLogLevel = "info"
	// DefaultLogPath is where structured logs are written.
	DefaultLogPath = "replay-analyzer.log"
	// DefaultLogMaxSizeMB caps the size of a single log file before rotation.
	DefaultLogMaxSizeMB = 100
	// DefaultLogMaxBackups limits retained rotated log files.
	DefaultLogMaxBackups = 10
	// DefaultLogMaxAgeDays controls how long rotated log files are kept on disk.
	DefaultLogMaxAgeDays = 7
	// DefaultLogCompress toggles gzip compression for rotated log files.
	DefaultLogCompress = true
)

// Config captures all runtime tunables of the analyzer.
type Config struct {
	CatalogDir   string         `env:"CATALOG_DIR"`
	TagRulesPath string         `env:"TAG_RULES"`
	MaxBytes     int64          `env:"MAX_BYTES"`
	Workers      int            `env:"WORKERS"`
	Archive      ArchiveConfig  `envPrefix:"ARCHIVE_"`
	Playback     PlaybackConfig `envPrefix:"PLAYBACK_"`
	Logging      LoggingConfig  `envPrefix:"LOG_"`
}

// ArchiveConfig controls where analysed matches are persisted and for how long.
type ArchiveConfig struct {
	Dir        string        `env:"DIR"`
	MaxMatches int           `env:"MAX_MATCHES"`
	MaxAge     time.Duration `env:"MAX_AGE"`
}

// PlaybackConfig controls the keyframe streaming hub.
type PlaybackConfig struct {
	Addr           string        `env:"ADDR"`
	AllowedOrigins []string      `env:"ALLOWED_ORIGINS" envSeparator:","`
	Speed          float64       `env:"SPEED"`
	Step           float64       `env:"STEP"`
	PingInterval   time.Duration `env:"PING_INTERVAL"`
	MaxClients     int           `env:"MAX_CLIENTS"`
	// AdminToken guards the archive sweep endpoint; empty disables it.
	AdminToken     string        `env:"ADMIN_TOKEN"`
}

// LoggingConfig captures structured logging configuration options.
type LoggingConfig struct {
	Level      string `env:"LEVEL"`
	Path       string `env:"PATH"`
	MaxSizeMB  int    `env:"MAX_SIZE_MB"`
	MaxBackups int    `env:"MAX_BACKUPS"`
	MaxAgeDays int    `env:"MAX_AGE_DAYS"`
	Compress   bool   `env:"COMPRESS"`
}

// Defaults returns the configuration used when no variable is set.
func Defaults() Config {
	return Config{
		CatalogDir: DefaultCatalogDir,
		MaxBytes:   DefaultMaxBytes,
		Workers:    DefaultWorkers,
		Archive: ArchiveConfig{
			MaxMatches: DefaultArchiveMaxMatches,
			MaxAge:     DefaultArchiveMaxAge,
		},
		Playback: PlaybackConfig{
			Addr:         DefaultPlaybackAddr,
			Speed:        DefaultPlaybackSpeed,
			Step:         DefaultPlaybackStep,
			PingInterval: DefaultPingInterval,
			MaxClients:   DefaultMaxClients,
		},
		Logging: LoggingConfig{
			Level:      DefaultLogLevel,
			Path:       DefaultLogPath,
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
			MaxAgeDays: DefaultLogMaxAgeDays,
			Compress:   DefaultLogCompress,
		},
	}
}

// Load reads the configuration from environment variables on top of Defaults and returns one
// error listing every invalid override.
func Load() (*Config, error) {
	cfg := Defaults()
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.CatalogDir = strings.TrimSpace(cfg.CatalogDir)
	cfg.TagRulesPath = strings.TrimSpace(cfg.TagRulesPath)
	cfg.Archive.Dir = strings.TrimSpace(cfg.Archive.Dir)
	cfg.Logging.Level = strings.TrimSpace(cfg.Logging.Level)
	cfg.Logging.Path = strings.TrimSpace(cfg.Logging.Path)
	cfg.Playback.AdminToken = strings.TrimSpace(cfg.Playback.AdminToken)

	var problems []string
	if cfg.CatalogDir == "" {
		problems = append(problems, "REPLAY_CATALOG_DIR must not be empty")
	}
	if cfg.MaxBytes <= 0 {
		problems = append(problems, fmt.Sprintf("REPLAY_MAX_BYTES must be a positive integer, got %d", cfg.MaxBytes))
	}
	if cfg.Workers <= 0 {
		problems = append(problems, fmt.Sprintf("REPLAY_WORKERS must be a positive integer, got %d", cfg.Workers))
	}
	if cfg.Archive.MaxMatches < 0 {
		problems = append(problems, fmt.Sprintf("REPLAY_ARCHIVE_MAX_MATCHES must be a non-negative integer, got %d", cfg.Archive.MaxMatches))
	}
	if cfg.Archive.MaxAge < 0 {
		problems = append(problems, fmt.Sprintf("REPLAY_ARCHIVE_MAX_AGE must be a non-negative duration, got %s", cfg.Archive.MaxAge))
	}
	if cfg.Playback.Speed <= 0 {
		problems = append(problems, fmt.Sprintf("REPLAY_PLAYBACK_SPEED must be positive, got %v", cfg.Playback.Speed))
	}
	if cfg.Playback.Step <= 0 {
		problems = append(problems, fmt.Sprintf("REPLAY_PLAYBACK_STEP must be positive, got %v", cfg.Playback.Step))
	}
	if cfg.Playback.PingInterval <= 0 {
		problems = append(problems, fmt.Sprintf("REPLAY_PLAYBACK_PING_INTERVAL must be a positive duration, got %s", cfg.Playback.PingInterval))
	}
	if cfg.Playback.MaxClients < 0 {
		problems = append(problems, fmt.Sprintf("REPLAY_PLAYBACK_MAX_CLIENTS must be a non-negative integer, got %d", cfg.Playback.MaxClients))
	}
	if cfg.Logging.MaxSizeMB <= 0 {
		problems = append(problems, fmt.Sprintf("REPLAY_LOG_MAX_SIZE_MB must be a positive integer, got %d", cfg.Logging.MaxSizeMB))
	}
	if cfg.Logging.MaxBackups < 0 {
		problems = append(problems, fmt.Sprintf("REPLAY_LOG_MAX_BACKUPS must be a non-negative integer, got %d", cfg.Logging.MaxBackups))
	}
	if cfg.Logging.MaxAgeDays < 0 {
		problems = append(problems, fmt.Sprintf("REPLAY_LOG_MAX_AGE_DAYS must be a non-negative integer, got %d", cfg.Logging.MaxAgeDays))
	}

	if len(problems) > 0 {
		return nil, errors.New(strings.Join(problems, "; "))
	}
	return &cfg, nil
}
