package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"aoe4replay/analyzer/internal/logging"
)

// Catalog source files, one per kind, in the public data dump layout.
const (
	BuildingsFile    = "buildings-raw.json"
	UnitsFile        = "units-raw.json"
	TechnologiesFile = "technologies-raw.json"
)

type rawFile struct {
	Data []rawEntry `json:"data"`
}

type rawEntry struct {
	PBGID          uint32   `json:"pbgid"`
	ID             string   `json:"id"`
	BaseID         string   `json:"baseId"`
	Name           string   `json:"name"`
	Icon           string   `json:"icon"`
	Age            int      `json:"age"`
	Civs           []string `json:"civs"`
	Classes        []string `json:"classes"`
	DisplayClasses []string `json:"displayClasses"`
	Costs          *Costs   `json:"costs"`
}

// LoadDir reads the three raw catalog files from dir. Missing files are logged and skipped.
func LoadDir(dir string, opts ...Option) (*Catalog, error) {
	var entries []Entry
	sources := []struct {
		file string
		kind Kind
	}{
		{BuildingsFile, KindBuilding},
		{UnitsFile, KindUnit},
		{TechnologiesFile, KindTechnology},
	}
	for _, source := range sources {
		path := filepath.Join(dir, source.file)
		f, err := os.Open(path)
		if errors.Is(err, fs.ErrNotExist) {
			logging.L().Warn("catalog file missing", logging.String("path", path))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		decoded, err := Decode(f, source.kind)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		entries = append(entries, decoded...)
	}
	return New(entries, opts...), nil
}

// Decode parses one raw catalog document, tagging every row with kind.
func Decode(r io.Reader, kind Kind) ([]Entry, error) {
	var file rawFile
	if err := json.NewDecoder(r).Decode(&file); err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(file.Data))
	for _, raw := range file.Data {
		if raw.PBGID == 0 {
			continue
		}
		entry := Entry{
			ID:      raw.PBGID,
			Name:    raw.Name,
			Icon:    raw.Icon,
			Kind:    kind,
			Costs:   raw.Costs,
			Age:     raw.Age,
			Classes: raw.Classes,
			BaseID:  raw.BaseID,
			Civs:    raw.Civs,
		}
		if entry.BaseID == "" {
			entry.BaseID = raw.ID
		}
		if len(raw.DisplayClasses) > 0 {
			entry.DisplayClass = raw.DisplayClasses[0]
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
