package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"

	"aoe4replay/analyzer/internal/replay"
	"aoe4replay/analyzer/internal/stream"
)

// Bundle is a rehydrated analysis bundle.
type Bundle struct {
	Dir      string
	Manifest Manifest
	Header   Header
	Analysis *replay.Analysis
	commands []stream.Command
}

// Load reads the bundle stored in dir. The analysis commands are restored from the command log.
func Load(dir string) (*Bundle, error) {
	if dir == "" {
		return nil, fmt.Errorf("bundle path must be provided")
	}

	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, err
	}
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if manifest.Version != ManifestVersion {
		return nil, fmt.Errorf("unsupported manifest version %d", manifest.Version)
	}
	header, err := ReadHeader(filepath.Join(dir, HeaderFile))
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	//1.- Analysis document.
	analysis, err := loadAnalysis(filepath.Join(dir, manifest.AnalysisPath))
	if err != nil {
		return nil, err
	}

	//2.- Command log, verified against the manifest count.
	commands, err := loadCommands(filepath.Join(dir, manifest.CommandsPath))
	if err != nil {
		return nil, err
	}
	if len(commands) != manifest.Commands {
		return nil, fmt.Errorf("command log holds %d records, manifest declares %d", len(commands), manifest.Commands)
	}
	analysis.Commands = commands

	return &Bundle{Dir: dir, Manifest: manifest, Header: header, Analysis: analysis, commands: commands}, nil
}

func loadAnalysis(path string) (*replay.Analysis, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	decoder, err := zstd.NewReader(file)
	if err != nil {
		return nil, err
	}
	defer decoder.Close()
	var analysis replay.Analysis
	if err := json.NewDecoder(decoder).Decode(&analysis); err != nil {
		return nil, fmt.Errorf("decode analysis: %w", err)
	}
	return &analysis, nil
}

func loadCommands(path string) ([]stream.Command, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	reader := snappy.NewReader(file)
	var out []stream.Command
	for {
		cmd, err := decodeCommand(reader)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("command %d: %w", len(out), err)
		}
		out = append(out, cmd)
	}
}

// Replay iterates over the archived commands in stream order.
func (b *Bundle) Replay(apply func(stream.Command) error) error {
	if b == nil {
		return fmt.Errorf("bundle not loaded")
	}
	if apply == nil {
		return fmt.Errorf("replay callback must be provided")
	}
	for _, cmd := range b.commands {
		if err := apply(cmd); err != nil {
			return err
		}
	}
	return nil
}

// Commands exposes a copy of the archived command log.
func (b *Bundle) Commands() []stream.Command {
	if b == nil {
		return nil
	}
	out := make([]stream.Command, len(b.commands))
	copy(out, b.commands)
	return out
}

// List returns the headers of every bundle under root, skipping directories without one.
func List(root string) ([]Header, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var out []Header
	for _, entry := range entries {
		if !entry.IsDir() || entry.Name() == RunsDir {
			continue
		}
		header, err := ReadHeader(filepath.Join(root, entry.Name(), HeaderFile))
		if err != nil {
			continue
		}
		out = append(out, header)
	}
	return out, nil
}
