package buildorder

import (
	"encoding/binary"

	"aoe4replay/analyzer/internal/catalog"
)

// Identifier scan windows. Offsets are relative to the start of the command bytes.
const (
	// constructPrimaryOffset is where placement commands normally carry the building identifier.
	constructPrimaryOffset = 31
	// constructWindowStart and constructWindowEnd bound the fallback scan for placements.
	constructWindowStart = 27
	constructWindowEnd   = 38
	// constructMinPayload is the shortest placement payload that can hold the primary field.
	constructMinPayload = 35
	// payloadScanStart skips the size and type header of train and research commands.
	payloadScanStart = 3
	// scanStride keeps every candidate 4-byte aligned relative to the window start.
	scanStride = 4
)

// IdentifierScanner finds the catalog identifier referenced by a command payload.
type IdentifierScanner interface {
	//1.- Scan returns the first identifier in payload that belongs to ids.
	Scan(kind EventKind, payload []byte, ids catalog.IDSet) (uint32, bool)
}

// WindowScanner probes aligned 32-bit little-endian words inside fixed windows.
type WindowScanner struct{}

// Scan implements IdentifierScanner.
func (WindowScanner) Scan(kind EventKind, payload []byte, ids catalog.IDSet) (uint32, bool) {
	if kind == KindConstruct {
		return scanConstruct(payload, ids)
	}
	return scanWindow(payload, payloadScanStart, len(payload)-4, ids)
}

func scanConstruct(payload []byte, ids catalog.IDSet) (uint32, bool) {
	if len(payload) < constructMinPayload {
		return 0, false
	}
	//1.- The primary field matches almost every placement; the window covers layout drift.
	if candidate := binary.LittleEndian.Uint32(payload[constructPrimaryOffset:]); ids.Contains(candidate) {
		return candidate, true
	}
	last := constructWindowEnd
	if last > len(payload)-4 {
		last = len(payload) - 4
	}
	return scanWindow(payload, constructWindowStart, last, ids)
}

// scanWindow checks offsets start, start+stride, ... up to and including last.
func scanWindow(payload []byte, start, last int, ids catalog.IDSet) (uint32, bool) {
	for off := start; off <= last; off += scanStride {
		if off < 0 || off+4 > len(payload) {
			break
		}
		candidate := binary.LittleEndian.Uint32(payload[off:])
		if ids.Contains(candidate) {
			return candidate, true
		}
	}
	return 0, false
}
