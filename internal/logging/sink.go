package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"

	"aoe4replay/analyzer/internal/config"
)

// fileSink appends to the log file and, once it would pass the size limit, shifts it into
// numbered backups. path.1 is always the newest backup.
type fileSink struct {
	mu       sync.Mutex
	path     string
	limit    int64
	keep     int
	maxAge   time.Duration
	compress bool
	file     *os.File
	written  int64
}

func openFileSink(cfg config.LoggingConfig) (*fileSink, error) {
	if cfg.MaxSizeMB <= 0 {
		return nil, errors.New("REPLAY_LOG_MAX_SIZE_MB must be positive")
	}
	if cfg.MaxBackups < 0 || cfg.MaxAgeDays < 0 {
		return nil, errors.New("log retention limits must be non-negative")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}
	s := &fileSink{
		path:     cfg.Path,
		limit:    int64(cfg.MaxSizeMB) << 20,
		keep:     cfg.MaxBackups,
		maxAge:   time.Duration(cfg.MaxAgeDays) * 24 * time.Hour,
		compress: cfg.Compress,
	}
	if err := s.open(os.O_APPEND); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *fileSink) open(mode int) error {
	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|mode, 0o644)
	if err != nil {
		return err
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return err
	}
	s.file, s.written = file, info.Size()
	return nil
}

func (s *fileSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.written > 0 && s.written+int64(len(p)) > s.limit {
		if err := s.rotate(); err != nil {
			return 0, err
		}
	}
	n, err := s.file.Write(p)
	s.written += int64(n)
	return n, err
}

func (s *fileSink) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Sync()
}

func (s *fileSink) backup(i int) string {
	name := fmt.Sprintf("%s.%d", s.path, i)
	if s.compress {
		name += ".gz"
	}
	return name
}

func (s *fileSink) rotate() error {
	if err := s.file.Close(); err != nil {
		return err
	}

	//1.- Shift existing backups up one slot. Slots at or past keep fall off.
	free := 1
	for exists(s.backup(free)) {
		free++
	}
	for i := free - 1; i >= 1; i-- {
		if s.keep > 0 && i >= s.keep {
			_ = os.Remove(s.backup(i))
			continue
		}
		if err := os.Rename(s.backup(i), s.backup(i+1)); err != nil {
			return err
		}
	}

	//2.- The live file becomes slot 1, compressed when configured.
	plain := fmt.Sprintf("%s.1", s.path)
	if err := os.Rename(s.path, plain); err != nil {
		return err
	}
	if err := s.open(os.O_TRUNC); err != nil {
		return err
	}
	if s.compress {
		if err := gzipFile(plain, plain+".gz"); err == nil {
			_ = os.Remove(plain)
		}
	}

	//3.- Backups are ordered newest first, so everything from the first expired slot goes.
	if s.maxAge > 0 {
		cutoff := time.Now().Add(-s.maxAge)
		expired := false
		for i := 1; exists(s.backup(i)); i++ {
			if !expired {
				info, err := os.Stat(s.backup(i))
				expired = err == nil && info.ModTime().Before(cutoff)
			}
			if expired {
				_ = os.Remove(s.backup(i))
			}
		}
	}
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	gz, err := gzip.NewWriterLevel(out, gzip.BestCompression)
	if err == nil {
		_, err = io.Copy(gz, in)
		err = errors.Join(err, gz.Close())
	}
	return errors.Join(err, out.Close())
}
