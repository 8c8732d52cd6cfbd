// Package archive persists analysed replays as on-disk bundles and prunes them by retention policy.
package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"aoe4replay/analyzer/internal/replay"
)

// HeaderSchemaVersion tracks the schema version for bundle header documents.
const HeaderSchemaVersion = 1

// HeaderFile is the name of the header document inside a bundle directory.
const HeaderFile = "header.json"

// HeaderPlayer is the catalogue view of one participant.
type HeaderPlayer struct {
	Index        int    `json:"index"`
	Name         string `json:"name,omitempty"`
	Civilization string `json:"civilization,omitempty"`
	Strategy     string `json:"strategy,omitempty"`
}

// Header represents the metadata persisted alongside an analysis bundle.
type Header struct {
	SchemaVersion   int            `json:"schema_version"`
	ReplayID        string         `json:"replay_id"`
	Source          string         `json:"source,omitempty"`
	DurationSeconds int            `json:"duration_seconds"`
	Players         []HeaderPlayer `json:"players,omitempty"`
	FilePointer     string         `json:"file_pointer"`
}

// HeaderFor summarises an analysis for catalogue tooling.
func HeaderFor(replayID, source string, a *replay.Analysis) Header {
	header := Header{SchemaVersion: HeaderSchemaVersion, ReplayID: replayID, Source: source, FilePointer: ManifestFile}
	if a == nil {
		return header
	}
	header.DurationSeconds = a.Duration
	for _, p := range a.Players {
		hp := HeaderPlayer{Index: p.Index, Name: p.Name, Civilization: p.CivilizationName}
		if p.Index < len(a.Strategies) {
			hp.Strategy = string(a.Strategies[p.Index].Strategy)
		}
		header.Players = append(header.Players, hp)
	}
	return header
}

// Validate ensures the header contains enough information for catalogue tooling.
func (h Header) Validate() error {
	if h.SchemaVersion <= 0 {
		return fmt.Errorf("schema_version must be positive")
	}
	if strings.TrimSpace(h.ReplayID) == "" {
		return fmt.Errorf("replay_id must not be empty")
	}
	//1.- Ensure catalogue tooling can locate the bundle artefacts reliably.
	if strings.TrimSpace(h.FilePointer) == "" {
		return fmt.Errorf("file_pointer must not be empty")
	}
	return nil
}

// WriteHeader persists the supplied header to the provided file path.
func WriteHeader(path string, header Header) error {
	if err := header.Validate(); err != nil {
		return err
	}
	payload, err := json.MarshalIndent(header, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, append(payload, '\n'), 0o644)
}

// ReadHeader loads and decodes a bundle header from disk.
func ReadHeader(path string) (Header, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Header{}, err
	}
	var header Header
	if err := json.Unmarshal(data, &header); err != nil {
		return Header{}, err
	}
	if err := header.Validate(); err != nil {
		return Header{}, err
	}
	return header, nil
}
