package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"

	"aoe4replay/analyzer/internal/replay"
	"aoe4replay/analyzer/internal/stream"
)

var replayIDCleaner = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// Bundle artefact names.
const (
	ManifestFile = "manifest.json"
	AnalysisFile = "analysis.json.zst"
	CommandsFile = "commands.bin.sz"
)

// ManifestVersion is bumped whenever the bundle layout changes.
const ManifestVersion = 1

// Manifest describes the bundle layout so tooling can locate artefacts.
type Manifest struct {
	Version      int    `json:"version"`
	ReplayID     string `json:"replay_id"`
	CreatedAt    string `json:"created_at"`
	AnalysisPath string `json:"analysis_path"`
	CommandsPath string `json:"commands_path"`
	Commands     int    `json:"commands"`
}

// Writer streams one analysed replay to a bundle directory.
type Writer struct {
	mu            sync.Mutex
	dir           string
	manifest      Manifest
	commandFile   *os.File
	commandStream *snappy.Writer
	scratch       []byte
	header        Header
	analysis      *replay.Analysis
}

// NewWriter prepares the bundle directory and opens the compressed command log.
func NewWriter(root, replayID string, clock func() time.Time) (*Writer, Manifest, error) {
	if root == "" {
		return nil, Manifest{}, fmt.Errorf("archive root must be provided")
	}
	if clock == nil {
		clock = time.Now
	}

	cleaned := replayIDCleaner.ReplaceAllString(replayID, "")
	if cleaned == "" {
		cleaned = "replay"
	}
	created := clock().UTC()
	path := filepath.Join(root, fmt.Sprintf("%s-%s", cleaned, created.Format("20060102T150405Z")))
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, Manifest{}, err
	}

	commandFile, err := os.Create(filepath.Join(path, CommandsFile))
	if err != nil {
		return nil, Manifest{}, err
	}

	manifest := Manifest{
		Version:      ManifestVersion,
		ReplayID:     cleaned,
		CreatedAt:    created.Format(time.RFC3339Nano),
		AnalysisPath: AnalysisFile,
		CommandsPath: CommandsFile,
	}
	writer := &Writer{
		dir:           path,
		manifest:      manifest,
		commandFile:   commandFile,
		commandStream: snappy.NewBufferedWriter(commandFile),
		header:        Header{SchemaVersion: HeaderSchemaVersion, ReplayID: cleaned, FilePointer: ManifestFile},
	}
	return writer, manifest, nil
}

// Directory exposes the directory backing the bundle.
func (w *Writer) Directory() string {
	if w == nil {
		return ""
	}
	return w.dir
}

// AppendCommand writes one decoded command to the snappy command log.
func (w *Writer) AppendCommand(cmd stream.Command) error {
	if w == nil {
		return fmt.Errorf("writer not initialised")
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	w.scratch = encodeCommand(w.scratch[:0], cmd)
	if _, err := w.commandStream.Write(w.scratch); err != nil {
		return err
	}
	w.manifest.Commands++
	return nil
}

// SetAnalysis stages the analysis document and derives the header from it.
func (w *Writer) SetAnalysis(source string, a *replay.Analysis) {
	if w == nil {
		return
	}
	w.mu.Lock()
	w.analysis = a
	w.header = HeaderFor(w.manifest.ReplayID, source, a)
	w.mu.Unlock()
}

// Close writes the analysis document, manifest and header, then releases file handles.
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	//1.- Attempt every step and surface the first failure for callers to inspect.
	var firstErr error
	if err := w.commandStream.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := w.commandFile.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := w.writeAnalysisLocked(); err != nil && firstErr == nil {
		firstErr = err
	}

	//2.- The manifest and header go last so a half-written bundle has no header.
	data, err := json.MarshalIndent(w.manifest, "", "  ")
	if err == nil {
		err = os.WriteFile(filepath.Join(w.dir, ManifestFile), data, 0o644)
	}
	if err != nil && firstErr == nil {
		firstErr = err
	}
	if firstErr == nil {
		firstErr = WriteHeader(filepath.Join(w.dir, HeaderFile), w.header)
	}
	return firstErr
}

func (w *Writer) writeAnalysisLocked() error {
	file, err := os.Create(filepath.Join(w.dir, AnalysisFile))
	if err != nil {
		return err
	}
	defer file.Close()
	encoder, err := zstd.NewWriter(file)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(encoder).Encode(w.analysis); err != nil {
		encoder.Close()
		return err
	}
	if err := encoder.Close(); err != nil {
		return err
	}
	return file.Sync()
}

// Save writes a complete bundle for an analysis and returns its directory.
func Save(root, replayID, source string, a *replay.Analysis, clock func() time.Time) (string, error) {
	if a == nil {
		return "", fmt.Errorf("analysis must be provided")
	}
	writer, _, err := NewWriter(root, replayID, clock)
	if err != nil {
		return "", err
	}
	for _, cmd := range a.Commands {
		if err := writer.AppendCommand(cmd); err != nil {
			writer.Close()
			return "", err
		}
	}
	writer.SetAnalysis(source, a)
	if err := writer.Close(); err != nil {
		return "", err
	}
	return writer.Directory(), nil
}
