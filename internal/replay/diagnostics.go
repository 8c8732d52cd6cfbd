package replay

import (
	"aoe4replay/analyzer/internal/buildorder"
	"aoe4replay/analyzer/internal/container"
	"aoe4replay/analyzer/internal/decodeerr"
	"aoe4replay/analyzer/internal/stream"
	"aoe4replay/analyzer/internal/summary"
)

// Diagnostics describes how the decode went. Recoverable conditions are counted per kind.
type Diagnostics struct {
	StreamOffset     int                    `json:"streamOffset"`
	ChunkyOffset     int                    `json:"chunkyOffset"`
	DecompressedSize int                    `json:"decompressedSize"`
	Stream           stream.Stats           `json:"stream"`
	Extraction       buildorder.Stats       `json:"extraction"`
	Counts           map[decodeerr.Kind]int `json:"counts"`
	CommandTypes     []stream.TypeCount     `json:"commandTypes"`
	SummaryLayout    string                 `json:"summaryLayout,omitempty"`
	// SummaryError explains why player summaries are absent.
	SummaryError string `json:"summaryError,omitempty"`
}

func newDiagnostics(box *container.Container) Diagnostics {
	return Diagnostics{
		StreamOffset:     box.StreamOffset,
		ChunkyOffset:     box.ChunkyOffset,
		DecompressedSize: len(box.Data),
		Counts:           make(map[decodeerr.Kind]int),
		CommandTypes:     []stream.TypeCount{},
	}
}

func (d *Diagnostics) recordStream(res stream.Result) {
	d.Stream = res.Stats
	d.CommandTypes = stream.Distribution(res.Commands)
	if res.Stats.MalformedRecords > 0 {
		d.Counts[decodeerr.MalformedRecord] += res.Stats.MalformedRecords
	}
}

func (d *Diagnostics) recordExtraction(stats buildorder.Stats) {
	d.Extraction = stats
	if stats.Unmatched > 0 {
		d.Counts[decodeerr.UnmatchedIdentifier] += stats.Unmatched
	}
}

func (d *Diagnostics) recordSummary(s *summary.Summary) {
	d.SummaryLayout = s.Layout.String()
	if len(s.Rejected) > 0 {
		d.Counts[decodeerr.SummaryUnavailable] += len(s.Rejected)
	}
}

func (d *Diagnostics) recordSummaryFailure(err error) {
	d.SummaryError = err.Error()
	d.Counts[decodeerr.SummaryUnavailable]++
}

// Count reports how often a recoverable condition occurred.
func (d Diagnostics) Count(kind decodeerr.Kind) int {
	return d.Counts[kind]
}
