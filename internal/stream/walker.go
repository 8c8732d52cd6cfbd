package stream

import (
	"encoding/binary"
	"math"
)

// Record tags.
const (
	TickRecordTag = 0
	ChatRecordTag = 1
)

// Tick record layout.
const (
	recordHeaderSize   = 8
	tickNumberOffset   = 1
	blockCountOffset   = 9
	tickHeaderSize     = 13
	maxBlockCount      = 100
	blockHeaderSize    = 12
	blockSizeOffset    = 8
	minCommandHeader   = 22
	commandPlayerField = 18
	minCommandSize     = 3
	maxCommandSize     = 5000
	wideIDThreshold    = 0x10000
	wideIDShift        = 16
)

// Coordinate extraction windows.
const (
	constructMinSize     = 48
	constructCoordOffset = 35
	positionMarker       = 2
	positionScanStart    = 22
	positionScanLimit    = 300
	positionTailReserve  = 12
	maxGroundCoord       = 500
	maxElevation         = 100
)

// Unit count estimate for movement-class commands.
const (
	movementBaseSize    = 39
	movementPerUnitSize = 4
)

// Walk decodes tick and chat records starting at offset. Any other record tag ends the walk.
// Recoverable faults are counted in Stats.MalformedRecords and never abort the walk.
func Walk(data []byte, offset int) Result {
	var res Result
	off := offset
	for off >= 0 && off+recordHeaderSize <= len(data) {
		tag := binary.LittleEndian.Uint32(data[off:])
		size := int(binary.LittleEndian.Uint32(data[off+4:]))
		switch tag {
		case TickRecordTag:
			next, stop := walkTick(data, off, size, &res)
			if stop {
				res.Stats.EndOffset = off
				return res
			}
			off = next
		case ChatRecordTag:
			res.Stats.ChatRecords++
			off += recordHeaderSize + size
		default:
			res.Stats.EndOffset = off
			return res
		}
	}
	res.Stats.EndOffset = off
	return res
}

// walkTick decodes one tick record and returns the next record offset.
func walkTick(data []byte, off, size int, res *Result) (int, bool) {
	payloadStart := off + recordHeaderSize
	payloadEnd := payloadStart + size
	next := payloadEnd

	//1.- Undersized records carry no block table; skip them.
	if size < tickHeaderSize {
		res.Stats.MalformedRecords++
		res.Stats.TickRecords++
		return next, false
	}

	//2.- A record running past the buffer is parsed up to the cut and ends the walk.
	truncated := payloadEnd > len(data)
	if truncated {
		res.Stats.MalformedRecords++
		res.Stats.Truncated = true
		payloadEnd = len(data)
		if payloadStart+tickHeaderSize > payloadEnd {
			return next, true
		}
	}

	tick := binary.LittleEndian.Uint32(data[payloadStart+tickNumberOffset:])
	if res.Stats.TickRecords > 0 && tick < res.Stats.LastTick {
		//3.- Regressing ticks would break downstream ordering; drop the record.
		res.Stats.MalformedRecords++
		res.Stats.TickRecords++
		return next, truncated
	}

	blockCount := binary.LittleEndian.Uint32(data[payloadStart+blockCountOffset:])
	if blockCount >= maxBlockCount {
		res.Stats.MalformedRecords++
	} else {
		walkBlocks(data, payloadStart+tickHeaderSize, payloadEnd, int(blockCount), tick, truncated, res)
	}

	res.Stats.TickRecords++
	res.Stats.LastTick = tick
	return next, truncated
}

func walkBlocks(data []byte, blockOff, payloadEnd, blockCount int, tick uint32, truncated bool, res *Result) {
	for bi := 0; bi < blockCount; bi++ {
		if blockOff+blockHeaderSize > payloadEnd {
			return
		}
		blockSize := int(binary.LittleEndian.Uint32(data[blockOff+blockSizeOffset:]))
		cmdStart := blockOff + blockHeaderSize
		end := cmdStart + blockSize
		if end > payloadEnd || end < cmdStart {
			end = payloadEnd
		}

		for cmdStart+minCommandHeader < end {
			declared := int(int16(binary.LittleEndian.Uint16(data[cmdStart:])))
			if declared < minCommandSize || declared > maxCommandSize {
				//1.- Desynchronised block: abandon it and resume at the next one.
				res.Stats.MalformedRecords++
				break
			}
			cmdEnd := cmdStart + declared
			if cmdEnd > end {
				res.Stats.MalformedRecords++
				if truncated && end == len(data) {
					return
				}
				cmdEnd = end
			}
			res.Commands = append(res.Commands, decodeCommand(data, cmdStart, cmdEnd, declared, tick))
			cmdStart = cmdEnd
		}
		blockOff = end
	}
}

// decodeCommand reads the fixed header from the block, which always holds it, and the
// body from the clamped command range.
func decodeCommand(data []byte, cmdStart, cmdEnd, declared int, tick uint32) Command {
	raw := data[cmdStart:cmdEnd]
	typ := CommandType(data[cmdStart+2])
	player := binary.LittleEndian.Uint32(data[cmdStart+commandPlayerField:])
	if player >= wideIDThreshold {
		player >>= wideIDShift
	}
	cmd := Command{
		Tick:      tick,
		Time:      float64(tick) / TicksPerSecond,
		Type:      typ,
		PlayerID:  player,
		Size:      declared,
		UnitCount: estimateUnitCount(typ, declared),
	}
	if typ.CarriesIdentifier() {
		cmd.Payload = append([]byte(nil), raw...)
	}
	if typ == Construct && declared >= constructMinSize {
		cmd.Position = fixedPosition(raw, constructCoordOffset)
	}
	if cmd.Position == nil {
		cmd.Position = scanPosition(raw, declared)
	}
	return cmd
}

func estimateUnitCount(typ CommandType, declared int) int {
	if !typ.IsMovement() {
		return 1
	}
	estimate := int(math.Floor(float64(declared-movementBaseSize)/movementPerUnitSize + 0.5))
	if estimate < 1 {
		return 1
	}
	return estimate
}

func fixedPosition(raw []byte, at int) *Position {
	if at+12 > len(raw) {
		return nil
	}
	x, y, z := readF32(raw, at), readF32(raw, at+4), readF32(raw, at+8)
	if !finite(x) || !finite(y) || !finite(z) {
		return nil
	}
	if math.Abs(x) >= maxGroundCoord || math.Abs(z) >= maxGroundCoord {
		return nil
	}
	return &Position{X: x, Y: y, Z: z}
}

// scanPosition looks for a marker byte followed by a plausible coordinate triple.
// Only the first marker is considered; out-of-bounds floats yield no position.
func scanPosition(raw []byte, declared int) *Position {
	limit := declared - positionTailReserve
	if limit > positionScanLimit {
		limit = positionScanLimit
	}
	for j := positionScanStart; j < limit; j++ {
		if j+13 > len(raw) {
			return nil
		}
		if raw[j] != positionMarker {
			continue
		}
		x, y, z := readF32(raw, j+1), readF32(raw, j+5), readF32(raw, j+9)
		if x > -maxGroundCoord && x < maxGroundCoord && z > -maxGroundCoord && z < maxGroundCoord && math.Abs(y) < maxElevation {
			return &Position{X: x, Y: y, Z: z}
		}
		return nil
	}
	return nil
}

func readF32(raw []byte, at int) float64 {
	return float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[at:])))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
