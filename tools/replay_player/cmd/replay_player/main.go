package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"aoe4replay/analyzer/tools/replay_player"
)

func main() {
	path := flag.String("path", "", "Path to a bundle directory or manifest.json")
	step := flag.Float64("step", 0, "keyframe spacing in match seconds; 0 skips frame sampling")
	normalize := flag.Bool("normalize", false, "map keyframe coordinates into [0,1]")
	flag.Parse()

	if *path == "" {
		fmt.Fprintln(os.Stderr, "path flag is required")
		os.Exit(1)
	}

	report, err := replayplayer.Inspect(*path, replayplayer.Options{Step: *step, Normalize: *normalize})
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}

	//1.- Render the bundle as JSON so callers can pipe the output elsewhere.
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		fmt.Fprintln(os.Stderr, "encode error:", err)
		os.Exit(3)
	}
}
