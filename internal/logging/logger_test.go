package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"aoe4replay/analyzer/internal/config"
)

type bufferSyncWriter struct {
	bytes.Buffer
}

func (b *bufferSyncWriter) Sync() error { return nil }

func newBufferLogger(level Level) (*Logger, *bufferSyncWriter) {
	buf := &bufferSyncWriter{}
	return &Logger{level: level, writer: buf, fields: map[string]any{"service": "test"}}, buf
}

func decodeLines(t *testing.T, buf *bufferSyncWriter) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var payload map[string]any
		if err := json.Unmarshal([]byte(line), &payload); err != nil {
			t.Fatalf("invalid log line %q: %v", line, err)
		}
		out = append(out, payload)
	}
	return out
}

func TestLoggerFiltersByLevelAndMergesFields(t *testing.T) {
	logger, buf := newBufferLogger(InfoLevel)
	logger.Debug("hidden")
	logger.With(String("stage", "stream")).Warn("skipped record", Int("offset", 42), Error(errors.New("truncated")))

	lines := decodeLines(t, buf)
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %d", len(lines))
	}
	got := lines[0]
	if got["level"] != "warn" || got["message"] != "skipped record" || got["stage"] != "stream" {
		t.Fatalf("unexpected payload %v", got)
	}
	if got["offset"] != float64(42) || got["error"] != "truncated" || got["service"] != "test" {
		t.Fatalf("unexpected fields %v", got)
	}
}

func TestWithReplayAttachesIdentifier(t *testing.T) {
	base, buf := newBufferLogger(DebugLevel)
	ctx, logger, rid := WithReplay(context.Background(), base, "")
	if rid == "" || ReplayIDFromContext(ctx) != rid {
		t.Fatalf("expected generated replay id in context, got %q", rid)
	}
	if LoggerFromContext(ctx) != logger {
		t.Fatal("expected derived logger to be stored in context")
	}
	logger.Info("decoded")
	lines := decodeLines(t, buf)
	if len(lines) != 1 || lines[0][ReplayIDField] != rid {
		t.Fatalf("expected replay id on log line, got %v", lines)
	}
	if _, ok := lines[0][TraceIDField]; ok {
		t.Fatal("trace id must be absent without a span")
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	if _, err := New(config.LoggingConfig{Level: "info"}); err == nil {
		t.Fatal("expected error for empty path")
	}
	path := filepath.Join(t.TempDir(), "analyzer.log")
	if _, err := New(config.LoggingConfig{Level: "loud", Path: path, MaxSizeMB: 1}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestFileSinkShiftsNumberedBackups(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "analyzer.log")
	sink, err := openFileSink(config.LoggingConfig{Path: path, MaxSizeMB: 1, MaxBackups: 2, Compress: true})
	if err != nil {
		t.Fatalf("openFileSink: %v", err)
	}
	chunk := bytes.Repeat([]byte("x"), 600*1024)
	for i := 0; i < 4; i++ {
		if _, err := sink.Write(chunk); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	if err := sink.Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}
	for _, name := range []string{"analyzer.log.1.gz", "analyzer.log.2.gz"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("expected backup %s: %v", name, err)
		}
	}
	for _, name := range []string{"analyzer.log.3.gz", "analyzer.log.1"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			t.Fatalf("unexpected file %s", name)
		}
	}
	info, err := os.Stat(path)
	if err != nil || info.Size() != int64(len(chunk)) {
		t.Fatalf("expected live file to hold the last write, got %v %v", info, err)
	}
}

func TestFileSinkPrunesExpiredBackups(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "analyzer.log")
	sink, err := openFileSink(config.LoggingConfig{Path: path, MaxSizeMB: 1, MaxAgeDays: 1})
	if err != nil {
		t.Fatalf("openFileSink: %v", err)
	}
	chunk := bytes.Repeat([]byte("y"), 600*1024)
	for i := 0; i < 2; i++ {
		if _, err := sink.Write(chunk); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	stale := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(path+".1", stale, stale); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if _, err := sink.Write(chunk); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := os.Stat(path + ".1"); err != nil {
		t.Fatalf("expected fresh backup in slot 1: %v", err)
	}
	if _, err := os.Stat(path + ".2"); err == nil {
		t.Fatal("expected expired backup to be pruned")
	}
}

func TestFileSinkRejectsBadLimits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "analyzer.log")
	if _, err := openFileSink(config.LoggingConfig{Path: path}); err == nil {
		t.Fatal("expected error for zero size limit")
	}
	if _, err := openFileSink(config.LoggingConfig{Path: path, MaxSizeMB: 1, MaxBackups: -1}); err == nil {
		t.Fatal("expected error for negative backups")
	}
}
