package archive

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"aoe4replay/analyzer/internal/stream"
)

// commandHeaderSize covers tick, type, player, size, unit count, flags and payload length.
const commandHeaderSize = 4 + 1 + 4 + 2 + 2 + 1 + 2

const flagPosition = 1

// encodeCommand appends one length-framed command record to dst.
func encodeCommand(dst []byte, cmd stream.Command) []byte {
	var header [commandHeaderSize]byte
	binary.LittleEndian.PutUint32(header[0:], cmd.Tick)
	header[4] = byte(cmd.Type)
	binary.LittleEndian.PutUint32(header[5:], cmd.PlayerID)
	binary.LittleEndian.PutUint16(header[9:], uint16(clampU16(cmd.Size)))
	binary.LittleEndian.PutUint16(header[11:], uint16(clampU16(cmd.UnitCount)))
	payload := cmd.Payload
	if len(payload) > math.MaxUint16 {
		payload = payload[:math.MaxUint16]
	}
	if cmd.Position != nil {
		header[13] = flagPosition
	}
	binary.LittleEndian.PutUint16(header[14:], uint16(len(payload)))
	dst = append(dst, header[:]...)
	if cmd.Position != nil {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(float32(cmd.Position.X)))
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(float32(cmd.Position.Y)))
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(float32(cmd.Position.Z)))
	}
	return append(dst, payload...)
}

// decodeCommand reads one record. io.EOF is returned only on a clean record boundary.
func decodeCommand(r io.Reader) (stream.Command, error) {
	var header [commandHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return stream.Command{}, io.EOF
		}
		return stream.Command{}, fmt.Errorf("command header: %w", err)
	}
	cmd := stream.Command{
		Tick:      binary.LittleEndian.Uint32(header[0:]),
		Type:      stream.CommandType(header[4]),
		PlayerID:  binary.LittleEndian.Uint32(header[5:]),
		Size:      int(binary.LittleEndian.Uint16(header[9:])),
		UnitCount: int(binary.LittleEndian.Uint16(header[11:])),
	}
	cmd.Time = float64(cmd.Tick) / stream.TicksPerSecond
	if header[13]&flagPosition != 0 {
		var pos [12]byte
		if _, err := io.ReadFull(r, pos[:]); err != nil {
			return stream.Command{}, fmt.Errorf("command position: %w", err)
		}
		cmd.Position = &stream.Position{
			X: float64(math.Float32frombits(binary.LittleEndian.Uint32(pos[0:]))),
			Y: float64(math.Float32frombits(binary.LittleEndian.Uint32(pos[4:]))),
			Z: float64(math.Float32frombits(binary.LittleEndian.Uint32(pos[8:]))),
		}
	}
	if n := int(binary.LittleEndian.Uint16(header[14:])); n > 0 {
		cmd.Payload = make([]byte, n)
		if _, err := io.ReadFull(r, cmd.Payload); err != nil {
			return stream.Command{}, fmt.Errorf("command payload: %w", err)
		}
	}
	return cmd, nil
}

func clampU16(v int) int {
	return max(0, min(v, math.MaxUint16))
}
