package main

import (
	"flag"
	"fmt"
	"os"

	"aoe4replay/analyzer/tools/replay_catalog"
)

func main() {
	root := flag.String("dir", ".", "archive directory containing analysis bundles")
	jsonFlag := flag.Bool("json", false, "emit JSON instead of human-readable output")
	flag.Parse()

	entries, err := replaycatalog.List(*root)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *jsonFlag {
		payload, err := replaycatalog.MarshalEntries(entries)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(string(payload))
		return
	}

	for _, entry := range entries {
		fmt.Print(replaycatalog.Describe(entry))
	}
}
