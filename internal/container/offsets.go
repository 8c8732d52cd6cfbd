package container

import (
	"bytes"

	"aoe4replay/analyzer/internal/decodeerr"
)

// StreamMarker precedes the command stream in the header chunk tree.
const StreamMarker = "PLAS"

// Command stream probe acceptance window.
const (
	// markerSearchWindow bounds the scan for the last stream marker.
	markerSearchWindow = 4000
	// probeSearchWindow bounds the tick-record probe.
	probeSearchWindow = 5000
	// markerChunkSkip jumps over the marker's chunk header before probing.
	markerChunkSkip = 24
	// fallbackProbeStart is used when no marker exists.
	fallbackProbeStart = 500
	// streamProbeStride keeps candidates 4-byte aligned relative to the probe start.
	streamProbeStride = 4
	// TickRecordTag is the record type tag of a tick record.
	TickRecordTag = 0
	// minProbePayload and maxProbePayload bound a plausible first tick payload size.
	minProbePayload = 5
	maxProbePayload = 50000
	// probeTickOffset is the tick number's offset from the record start (header 8 + 1).
	probeTickOffset = 9
	// maxInitialTick rejects candidates that are not near the start of the match.
	maxInitialTick = 200
)

// Summary container location.
const (
	ChunkyMagic      = "Relic Chunky\r\n"
	chunkyTailWindow = 100000
)

// Player identifier heuristic.
const (
	playerMarkerWindow = 3000
	playerScanSpan     = 200
	playerIDMin        = 1000
	playerIDMax        = 1100
)

// DefaultPlayerIDs is used when the header yields no identifiers.
var DefaultPlayerIDs = []uint32{1000, 1002}

// FindStreamOffset locates the first tick record of the command stream.
func FindStreamOffset(data []byte) (int, error) {
	//1.- Prefer the last marker inside the search window.
	window := data
	if len(window) > markerSearchWindow+len(StreamMarker)-1 {
		window = window[:markerSearchWindow+len(StreamMarker)-1]
	}
	markerIdx := bytes.LastIndex(window, []byte(StreamMarker))
	start := fallbackProbeStart
	if markerIdx >= 0 {
		start = markerIdx + markerChunkSkip
	}

	//2.- Probe aligned offsets for a plausible tick record.
	if offset, ok := probeTickRecord(data, start); ok {
		return offset, nil
	}
	if markerIdx < 0 {
		return -1, decodeerr.Newf(decodeerr.StreamNotFound, start, "no tick record found without %s marker", StreamMarker)
	}
	return -1, decodeerr.Newf(decodeerr.StreamNotFound, start, "no tick record found after %s marker at %d", StreamMarker, markerIdx)
}

func probeTickRecord(data []byte, start int) (int, bool) {
	limit := len(data)
	if limit > probeSearchWindow {
		limit = probeSearchWindow
	}
	limit -= 8
	for i := start; i < limit; i += streamProbeStride {
		tag, ok := readU32(data, i)
		if !ok || tag != TickRecordTag {
			continue
		}
		size, _ := readU32(data, i+4)
		if size < minProbePayload || size >= maxProbePayload {
			continue
		}
		tick, ok := readU32(data, i+probeTickOffset)
		if ok && tick < maxInitialTick {
			return i, true
		}
	}
	return 0, false
}

// FindChunkyOffset locates the summary container magic, scanning the file tail first.
// Returns -1 when absent.
func FindChunkyOffset(data []byte) int {
	magic := []byte(ChunkyMagic)
	tail := len(data) - chunkyTailWindow
	if tail < 0 {
		tail = 0
	}
	if idx := bytes.Index(data[tail:], magic); idx >= 0 {
		return tail + idx
	}
	return bytes.Index(data, magic)
}

// ExtractPlayerIDs lists the distinct raw player identifiers following the first stream marker.
// The position of an identifier is the dense player index used downstream.
func ExtractPlayerIDs(data []byte) []uint32 {
	window := data
	if len(window) > playerMarkerWindow+len(StreamMarker)-1 {
		window = window[:playerMarkerWindow+len(StreamMarker)-1]
	}
	markerIdx := bytes.Index(window, []byte(StreamMarker))
	if markerIdx < 0 {
		return append([]uint32(nil), DefaultPlayerIDs...)
	}

	var ids []uint32
	end := markerIdx + playerScanSpan
	for j := markerIdx + len(StreamMarker); j < end; j++ {
		value, ok := readU32(data, j)
		if !ok {
			break
		}
		if value < playerIDMin || value > playerIDMax {
			continue
		}
		if !containsID(ids, value) {
			ids = append(ids, value)
		}
	}
	if len(ids) == 0 {
		return append([]uint32(nil), DefaultPlayerIDs...)
	}
	return ids
}

func containsID(ids []uint32, id uint32) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}
