package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"aoe4replay/analyzer/internal/decodeerr"
)

// RunsDir holds batch run reports inside the archive root. The cleaner leaves it alone.
const RunsDir = "runs"

// Outcome is the result of analysing one replay file in a batch.
type Outcome struct {
	Source     string         `json:"source"`
	ReplayID   string         `json:"replay_id,omitempty"`
	Bundle     string         `json:"bundle,omitempty"`
	Error      string         `json:"error,omitempty"`
	ErrorKind  decodeerr.Kind `json:"error_kind,omitempty"`
	FinishedAt time.Time      `json:"finished_at"`
}

// Recorder collects batch outcomes until they are rolled into a run report.
type Recorder struct {
	mu          sync.Mutex
	dir         string
	now         func() time.Time
	outcomes    []Outcome
	failures    map[decodeerr.Kind]int
	rolls       int64
	lastRoll    time.Time
	lastRollURI string
}

// Stats summarises recorder state.
type Stats struct {
	Buffered    int
	Failed      int
	Failures    map[decodeerr.Kind]int
	Rolls       int64
	LastRollURI string
	LastRoll    time.Time
}

// NewRecorder constructs a recorder that writes run reports into root/runs.
func NewRecorder(root string, clock func() time.Time) (*Recorder, error) {
	if root == "" {
		return nil, fmt.Errorf("archive root must be provided")
	}
	if clock == nil {
		clock = time.Now
	}
	dir := filepath.Join(root, RunsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Recorder{dir: dir, now: clock, failures: make(map[decodeerr.Kind]int)}, nil
}

// Record appends the outcome of one replay. A nil err marks success.
func (r *Recorder) Record(source, replayID, bundle string, err error) {
	if r == nil {
		return
	}
	outcome := Outcome{Source: source, ReplayID: replayID, Bundle: bundle, FinishedAt: r.now().UTC()}
	if err != nil {
		outcome.Error = err.Error()
		outcome.ErrorKind = decodeerr.KindOf(err)
	}

	r.mu.Lock()
	r.outcomes = append(r.outcomes, outcome)
	if err != nil {
		r.failures[outcome.ErrorKind]++
	}
	r.mu.Unlock()
}

// Roll writes the buffered outcomes to a run report and clears the buffer.
func (r *Recorder) Roll() (string, error) {
	if r == nil {
		return "", fmt.Errorf("recorder not configured")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	//1.- Bail out gracefully when nothing has been recorded yet.
	if len(r.outcomes) == 0 {
		return "", fmt.Errorf("no outcomes recorded")
	}

	timestamp := r.now().UTC().Format("20060102T150405Z")
	path := filepath.Join(r.dir, fmt.Sprintf("run-%s-%d.json", timestamp, r.rolls+1))
	report := struct {
		SavedAt  string                 `json:"saved_at"`
		Outcomes []Outcome              `json:"outcomes"`
		Failures map[decodeerr.Kind]int `json:"failures"`
	}{SavedAt: timestamp, Outcomes: r.outcomes, Failures: r.failures}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}

	//2.- Reset so the next batch starts clean.
	r.outcomes = nil
	r.failures = make(map[decodeerr.Kind]int)
	r.rolls++
	r.lastRoll = r.now().UTC()
	r.lastRollURI = path
	return path, nil
}

// Snapshot returns statistics describing the recorder state.
func (r *Recorder) Snapshot() Stats {
	if r == nil {
		return Stats{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := Stats{
		Buffered:    len(r.outcomes),
		Failures:    make(map[decodeerr.Kind]int, len(r.failures)),
		Rolls:       r.rolls,
		LastRollURI: r.lastRollURI,
		LastRoll:    r.lastRoll,
	}
	for kind, n := range r.failures {
		stats.Failures[kind] = n
		stats.Failed += n
	}
	return stats
}
