// Package replaycatalog lists archived analysis bundles.
package replaycatalog

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"aoe4replay/analyzer/internal/archive"
)

// Entry captures a bundle header alongside its resolved manifest path.
type Entry struct {
	HeaderPath   string         `json:"header_path"`
	ManifestPath string         `json:"manifest_path"`
	Header       archive.Header `json:"header"`
}

// List walks the directory tree and returns parsed bundle headers.
func List(root string) ([]Entry, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("root directory must be provided")
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root must be a directory")
	}

	var entries []Entry
	//1.- Walk the tree looking for header documents, skipping batch run reports.
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if path != root && d.Name() == archive.RunsDir {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() != archive.HeaderFile {
			return nil
		}
		header, err := archive.ReadHeader(path)
		if err != nil {
			return err
		}
		manifestPath := header.FilePointer
		if !filepath.IsAbs(manifestPath) {
			manifestPath = filepath.Join(filepath.Dir(path), manifestPath)
		}
		entries = append(entries, Entry{HeaderPath: path, ManifestPath: manifestPath, Header: header})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Header.ReplayID == entries[j].Header.ReplayID {
			return entries[i].ManifestPath < entries[j].ManifestPath
		}
		return entries[i].Header.ReplayID < entries[j].Header.ReplayID
	})
	return entries, nil
}

// MarshalEntries produces a stable JSON representation of the entries for CLI output.
func MarshalEntries(entries []Entry) ([]byte, error) {
	return json.MarshalIndent(entries, "", "  ")
}

// Describe renders one entry for terminal output.
func Describe(entry Entry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (schema %d)\n", entry.Header.ReplayID, entry.Header.SchemaVersion)
	if entry.Header.Source != "" {
		fmt.Fprintf(&b, "  source: %s\n", entry.Header.Source)
	}
	minutes, seconds := entry.Header.DurationSeconds/60, entry.Header.DurationSeconds%60
	fmt.Fprintf(&b, "  duration: %d:%02d\n", minutes, seconds)
	for _, p := range entry.Header.Players {
		name := p.Name
		if name == "" {
			name = fmt.Sprintf("player %d", p.Index)
		}
		fmt.Fprintf(&b, "  %s", name)
		if p.Civilization != "" {
			fmt.Fprintf(&b, " [%s]", p.Civilization)
		}
		if p.Strategy != "" {
			fmt.Fprintf(&b, " %s", p.Strategy)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "  header: %s\n", entry.HeaderPath)
	return b.String()
}
