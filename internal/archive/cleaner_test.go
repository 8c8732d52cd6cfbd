package archive

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"aoe4replay/analyzer/internal/decodeerr"
	"aoe4replay/analyzer/internal/logging"
)

func writeBundleDir(t *testing.T, root, name string, mod time.Time, size int, withHeader bool) {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	files := map[string]int{AnalysisFile: size}
	if withHeader {
		files[HeaderFile] = 2
	}
	for file, n := range files {
		path := filepath.Join(dir, file)
		if err := os.WriteFile(path, make([]byte, n), 0o644); err != nil {
			t.Fatalf("write %s: %v", file, err)
		}
		if err := os.Chtimes(path, mod, mod); err != nil {
			t.Fatalf("chtimes %s: %v", file, err)
		}
	}
	if err := os.Chtimes(dir, mod, mod); err != nil {
		t.Fatalf("chtimes dir: %v", err)
	}
}

func listBundles(t *testing.T, root string) []string {
	t.Helper()
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	var names []string
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names
}

func TestCleanerEnforcesMaxMatches(t *testing.T) {
	root := t.TempDir()
	now := time.Date(2025, 7, 15, 12, 0, 0, 0, time.UTC)
	writeBundleDir(t, root, "alpha", now.Add(-3*time.Hour), 64, true)
	writeBundleDir(t, root, "bravo", now.Add(-2*time.Hour), 32, true)
	writeBundleDir(t, root, "charlie", now.Add(-time.Hour), 48, false)

	cleaner := NewCleaner(root, RetentionPolicy{MaxMatches: 2}, logging.NewTestLogger())
	cleaner.now = func() time.Time { return now }
	cleaner.RunOnce()

	remaining := listBundles(t, root)
	if len(remaining) != 2 || remaining[0] != "bravo" || remaining[1] != "charlie" {
		t.Fatalf("unexpected retained bundles: %v", remaining)
	}
	stats := cleaner.Stats()
	if stats.Bundles != 2 || stats.Headers != 1 || stats.Bytes != int64(32+2+48) {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats.LastSweep.IsZero() {
		t.Fatal("expected last sweep timestamp to be recorded")
	}
}

func TestCleanerPrunesByAgeAndKeepsRuns(t *testing.T) {
	root := t.TempDir()
	now := time.Date(2025, 7, 16, 9, 0, 0, 0, time.UTC)
	writeBundleDir(t, root, "delta", now.Add(-72*time.Hour), 16, true)
	writeBundleDir(t, root, "echo", now.Add(-time.Hour), 16, true)
	writeBundleDir(t, root, RunsDir, now.Add(-100*time.Hour), 4, false)
	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write loose file: %v", err)
	}

	cleaner := NewCleaner(root, RetentionPolicy{MaxAge: 36 * time.Hour}, logging.NewTestLogger())
	cleaner.now = func() time.Time { return now }
	cleaner.RunOnce()

	remaining := listBundles(t, root)
	want := []string{"echo", "notes.txt", RunsDir}
	if len(remaining) != len(want) {
		t.Fatalf("unexpected remaining entries %v", remaining)
	}
	for i := range want {
		if remaining[i] != want[i] {
			t.Fatalf("unexpected remaining entries %v", remaining)
		}
	}
}

func TestRecorderRollsOutcomes(t *testing.T) {
	root := t.TempDir()
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	recorder, err := NewRecorder(root, func() time.Time { return now })
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}
	if _, err := recorder.Roll(); err == nil {
		t.Fatal("expected empty roll to fail")
	}

	recorder.Record("a.gz", "a", filepath.Join(root, "a-1"), nil)
	recorder.Record("b.gz", "", "", decodeerr.Newf(decodeerr.UnrecognizedFormat, 4, "bad magic"))
	recorder.Record("c.gz", "", "", errors.New("read failed"))

	stats := recorder.Snapshot()
	if stats.Buffered != 3 || stats.Failed != 2 || stats.Failures[decodeerr.UnrecognizedFormat] != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	path, err := recorder.Roll()
	if err != nil {
		t.Fatalf("Roll: %v", err)
	}
	if filepath.Dir(path) != filepath.Join(root, RunsDir) {
		t.Fatalf("expected report under runs dir, got %s", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected report on disk: %v", err)
	}
	after := recorder.Snapshot()
	if after.Buffered != 0 || after.Rolls != 1 || after.LastRollURI != path {
		t.Fatalf("unexpected post-roll stats %+v", after)
	}
}
