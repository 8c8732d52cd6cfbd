package archive

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"aoe4replay/analyzer/internal/replay"
	"aoe4replay/analyzer/internal/strategy"
	"aoe4replay/analyzer/internal/stream"
)

func sampleAnalysis() *replay.Analysis {
	return &replay.Analysis{
		Duration: 600,
		Players: []replay.Player{
			{Index: 0, RawID: 1000, Name: "Alice", Civilization: "fr", CivilizationName: "French"},
			{Index: 1, RawID: 1002, Name: "Bob"},
		},
		Strategies: []strategy.PlayerAnalysis{
			{PlayerID: 0, Strategy: strategy.FeudalRush},
			{PlayerID: 1, Strategy: strategy.Standard},
		},
		Commands: []stream.Command{
			{Tick: 8, Time: 1, Type: stream.Construct, PlayerID: 1000, Size: 48, UnitCount: 1,
				Position: &stream.Position{X: 12.5, Y: 1, Z: -40}, Payload: []byte{1, 2, 3}},
			{Tick: 16, Time: 2, Type: stream.Move, PlayerID: 1002, Size: 51, UnitCount: 3,
				Position: &stream.Position{X: 5, Y: 0.5, Z: 6}},
			{Tick: 24, Time: 3, Type: stream.StopMove, PlayerID: 1002, Size: 30, UnitCount: 1},
		},
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	root := t.TempDir()
	clock := func() time.Time { return time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC) }

	dir, err := Save(root, "match/42", "ranked.gz", sampleAnalysis(), clock)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if filepath.Base(dir) != "match42-20250301T100000Z" {
		t.Fatalf("unexpected bundle directory %q", dir)
	}
	for _, name := range []string{ManifestFile, HeaderFile, AnalysisFile, CommandsFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("expected %s in bundle: %v", name, err)
		}
	}

	bundle, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if bundle.Manifest.Commands != 3 || bundle.Header.ReplayID != "match42" || bundle.Header.Source != "ranked.gz" {
		t.Fatalf("unexpected metadata %+v %+v", bundle.Manifest, bundle.Header)
	}
	if len(bundle.Header.Players) != 2 || bundle.Header.Players[0].Strategy != string(strategy.FeudalRush) || bundle.Header.Players[0].Civilization != "French" {
		t.Fatalf("unexpected header players %+v", bundle.Header.Players)
	}
	if bundle.Analysis.Duration != 600 || bundle.Analysis.Players[0].Name != "Alice" {
		t.Fatalf("unexpected analysis %+v", bundle.Analysis)
	}

	commands := bundle.Commands()
	if len(commands) != 3 || len(bundle.Analysis.Commands) != 3 {
		t.Fatalf("expected 3 commands, got %d", len(commands))
	}
	first := commands[0]
	if first.Tick != 8 || first.Time != 1 || first.Type != stream.Construct || first.Size != 48 {
		t.Fatalf("unexpected first command %+v", first)
	}
	if first.Position == nil || first.Position.X != 12.5 || first.Position.Z != -40 || !bytes.Equal(first.Payload, []byte{1, 2, 3}) {
		t.Fatalf("unexpected first command body %+v", first)
	}
	if commands[1].UnitCount != 3 || commands[2].Position != nil || commands[2].Payload != nil {
		t.Fatalf("unexpected trailing commands %+v", commands[1:])
	}

	var ticks []uint32
	if err := bundle.Replay(func(cmd stream.Command) error {
		ticks = append(ticks, cmd.Tick)
		return nil
	}); err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(ticks) != 3 || ticks[2] != 24 {
		t.Fatalf("unexpected replay order %v", ticks)
	}

	headers, err := List(root)
	if err != nil || len(headers) != 1 {
		t.Fatalf("expected one listed bundle, got %v (%v)", headers, err)
	}
}

func TestLoadRejectsCountMismatch(t *testing.T) {
	root := t.TempDir()
	dir, err := Save(root, "short", "", sampleAnalysis(), nil)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	writer, _, err := NewWriter(t.TempDir(), "other", nil)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := writer.AppendCommand(sampleAnalysis().Commands[0]); err != nil {
		t.Fatalf("AppendCommand: %v", err)
	}
	writer.SetAnalysis("", sampleAnalysis())
	if err := writer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	log, err := os.ReadFile(filepath.Join(writer.Directory(), CommandsFile))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, CommandsFile), log, 0o644); err != nil {
		t.Fatalf("overwrite log: %v", err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatal("expected manifest count mismatch to be rejected")
	}
}

func TestDecodeCommandDetectsTruncatedRecord(t *testing.T) {
	record := encodeCommand(nil, sampleAnalysis().Commands[0])
	if _, err := decodeCommand(bytes.NewReader(record[:len(record)-1])); err == nil || err == io.EOF {
		t.Fatalf("expected truncated record error, got %v", err)
	}
	if _, err := decodeCommand(bytes.NewReader(nil)); err != io.EOF {
		t.Fatalf("expected clean EOF, got %v", err)
	}
}

func TestHeaderValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", HeaderFile)
	if err := WriteHeader(path, Header{SchemaVersion: 1, FilePointer: ManifestFile}); err == nil {
		t.Fatal("expected missing replay id to be rejected")
	}
	header := HeaderFor("abc", "file.gz", nil)
	if err := WriteHeader(path, header); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	got, err := ReadHeader(path)
	if err != nil || got.ReplayID != "abc" || got.FilePointer != ManifestFile {
		t.Fatalf("unexpected header %+v (%v)", got, err)
	}
}
