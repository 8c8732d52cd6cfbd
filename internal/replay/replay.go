// Package replay wires the decoding stages into the single analysis entry point.
package replay

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"aoe4replay/analyzer/internal/analysis"
	"aoe4replay/analyzer/internal/buildorder"
	"aoe4replay/analyzer/internal/catalog"
	"aoe4replay/analyzer/internal/container"
	"aoe4replay/analyzer/internal/entities"
	"aoe4replay/analyzer/internal/logging"
	"aoe4replay/analyzer/internal/stream"
	"aoe4replay/analyzer/internal/strategy"
	"aoe4replay/analyzer/internal/summary"
)

// TracerName identifies the spans emitted by DecodeAndAnalyze.
const TracerName = "aoe4replay/analyzer/internal/replay"

// Analysis is the complete result of decoding one replay.
type Analysis struct {
	// Duration is the match length in seconds.
	Duration   int                       `json:"duration"`
	Players    []Player                  `json:"players"`
	BuildOrder []buildorder.Event        `json:"buildOrder"`
	Entities   []entities.Entity         `json:"entities"`
	Bounds     entities.Bounds           `json:"bounds"`
	Summaries  []summary.PlayerSummary   `json:"playerSummaries"`
	Report     analysis.Report           `json:"analysis"`
	Strategies []strategy.PlayerAnalysis `json:"playerAnalysis"`
	// Commands is the decoded stream. It is archived separately and kept out of the document.
	Commands    []stream.Command `json:"-"`
	Diagnostics Diagnostics      `json:"diagnostics"`
}

// Options tunes DecodeAndAnalyze. The zero value is usable.
type Options struct {
	// Decompressor defaults to gzip with container.DefaultMaxBytes.
	Decompressor container.Decompressor
	// Scanner defaults to buildorder.WindowScanner.
	Scanner buildorder.IdentifierScanner
	// Logger defaults to the logger stored in the context.
	Logger *logging.Logger
	// Tracer defaults to the global otel tracer provider.
	Tracer trace.Tracer
}

// DecodeAndAnalyze decodes compressed replay bytes and runs every analysis stage. Only
// container failures are returned as errors; every other condition is recovered and counted
// in Analysis.Diagnostics.
func DecodeAndAnalyze(ctx context.Context, compressed []byte, cat *catalog.Catalog, opts Options) (*Analysis, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if cat == nil {
		cat = catalog.New(nil)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.LoggerFromContext(ctx)
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer(TracerName)
	}

	ctx, root := tracer.Start(ctx, "replay.decode_and_analyze", trace.WithAttributes(attribute.Int("replay.compressed_bytes", len(compressed))))
	defer root.End()

	//1.- Container: the only stage allowed to fail.
	_, span := tracer.Start(ctx, "replay.container")
	box, err := container.Open(compressed, opts.Decompressor)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		root.SetStatus(codes.Error, err.Error())
		logger.Warn("replay container rejected", logging.Error(err))
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("replay.decompressed_bytes", len(box.Data)),
		attribute.Int("replay.stream_offset", box.StreamOffset),
		attribute.Int("replay.chunky_offset", box.ChunkyOffset),
		attribute.Int("replay.players", len(box.PlayerIDs)),
	)
	span.End()

	diag := newDiagnostics(box)

	//2.- Command stream.
	_, span = tracer.Start(ctx, "replay.stream")
	walked := stream.Walk(box.Data, box.StreamOffset)
	diag.recordStream(walked)
	duration := walked.DurationSeconds()
	span.SetAttributes(
		attribute.Int("replay.commands", len(walked.Commands)),
		attribute.Int("replay.malformed_records", walked.Stats.MalformedRecords),
		attribute.Bool("replay.truncated", walked.Stats.Truncated),
	)
	span.End()
	if walked.Stats.MalformedRecords > 0 || walked.Stats.Truncated {
		logger.Debug("command stream recovered",
			logging.Int("malformed_records", walked.Stats.MalformedRecords),
			logging.Bool("truncated", walked.Stats.Truncated),
			logging.Int("end_offset", walked.Stats.EndOffset),
		)
	}

	//3.- Build order and entities.
	_, span = tracer.Start(ctx, "replay.build_order")
	events, extractStats := buildorder.NewExtractor(cat, opts.Scanner).Extract(walked.BuildCommands(), box.PlayerIDs)
	diag.recordExtraction(extractStats)
	span.SetAttributes(attribute.Int("replay.events", len(events)), attribute.Int("replay.unmatched", extractStats.Unmatched))
	span.End()
	if extractStats.Unmatched > 0 {
		logger.Debug("build commands without catalog identifier", logging.Int("unmatched", extractStats.Unmatched))
	}

	_, span = tracer.Start(ctx, "replay.entities")
	ents := entities.Reconstruct(walked.Commands, box.PlayerIDs, float64(duration))
	span.SetAttributes(attribute.Int("replay.entities", len(ents)))
	span.End()

	//4.- Summary section is additive.
	_, span = tracer.Start(ctx, "replay.summary")
	sum, err := summary.Parse(box.Data, box.ChunkyOffset)
	if err != nil {
		diag.recordSummaryFailure(err)
		span.SetAttributes(attribute.String("replay.summary_unavailable", err.Error()))
		logger.Warn("summary unavailable", logging.Error(err))
	} else {
		diag.recordSummary(sum)
		span.SetAttributes(attribute.Int("replay.summary_players", len(sum.Players)), attribute.String("replay.summary_layout", sum.Layout.String()))
		for _, rejected := range sum.Rejected {
			logger.Debug("summary player rejected", logging.String("chunk", rejected.String()))
		}
		if duration == 0 {
			duration = sum.GameLength
		}
	}
	span.End()

	//5.- Derived analytics.
	_, span = tracer.Start(ctx, "replay.analysis")
	report := analysis.New(cat.Rules()).Analyze(analysis.Input{
		Events:    events,
		Commands:  walked.Commands,
		PlayerIDs: box.PlayerIDs,
		Duration:  float64(duration),
	})
	strategies := strategy.New(cat.Rules()).AnalyzeMatch(events, len(box.PlayerIDs))
	span.SetAttributes(attribute.Int("replay.engagements", len(report.CombatEngagements)))
	span.End()

	out := &Analysis{
		Duration:    duration,
		Players:     buildPlayers(cat, box.PlayerIDs, events, sum),
		BuildOrder:  nonNil(events),
		Entities:    nonNil(ents),
		Bounds:      entities.ComputeBounds(ents),
		Report:      report,
		Strategies:  strategies,
		Commands:    walked.Commands,
		Diagnostics: diag,
	}
	if sum != nil {
		out.Summaries = sum.Players
	}
	root.SetAttributes(attribute.Int("replay.duration_seconds", duration))
	logger.Info("replay analysed",
		logging.Int("duration_seconds", duration),
		logging.Int("commands", len(walked.Commands)),
		logging.Int("events", len(events)),
		logging.Bool("summary", sum != nil),
	)
	return out, nil
}

func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
