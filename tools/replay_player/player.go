// Package replayplayer rehydrates archived bundles for inspection and offline playback.
package replayplayer

import (
	"fmt"
	"os"
	"path/filepath"

	"aoe4replay/analyzer/internal/archive"
	"aoe4replay/analyzer/internal/playback"
	"aoe4replay/analyzer/internal/replay"
	"aoe4replay/analyzer/internal/stream"
)

// Report is the inspection view of one bundle.
type Report struct {
	Manifest     archive.Manifest    `json:"manifest"`
	Header       archive.Header      `json:"header"`
	Analysis     *replay.Analysis    `json:"analysis"`
	CommandTypes []stream.TypeCount  `json:"commandTypes"`
	Frames       []playback.Keyframe `json:"frames,omitempty"`
}

// Options controls Inspect.
type Options struct {
	// Step enables keyframe sampling when positive.
	Step      float64
	Normalize bool
}

// Inspect loads the bundle at path, which may be the bundle directory or its manifest.
func Inspect(path string, opts Options) (*Report, error) {
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}

	//1.- Resolve the bundle directory so relative artefact paths stay valid.
	dir := path
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		dir = filepath.Dir(path)
	}

	bundle, err := archive.Load(dir)
	if err != nil {
		return nil, err
	}

	//2.- Re-derive the command distribution from the archived log rather than trusting diagnostics.
	var commands []stream.Command
	if err := bundle.Replay(func(cmd stream.Command) error {
		commands = append(commands, cmd)
		return nil
	}); err != nil {
		return nil, err
	}
	report := &Report{
		Manifest:     bundle.Manifest,
		Header:       bundle.Header,
		Analysis:     bundle.Analysis,
		CommandTypes: stream.Distribution(commands),
	}

	//3.- Sample keyframes when requested.
	if opts.Step > 0 {
		report.Frames = playback.BuildTimeline(bundle.Analysis.Entities, float64(bundle.Analysis.Duration),
			playback.TimelineOptions{Step: opts.Step, Normalize: opts.Normalize})
	}
	return report, nil
}
