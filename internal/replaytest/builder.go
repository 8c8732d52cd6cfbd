// Package replaytest assembles synthetic replay files for tests.
package replaytest

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/klauspost/compress/gzip"
)

// Layout of the synthetic header. The stream starts far enough past the marker that the
// player identifier scan never reads command bytes.
const (
	MarkerOffset      = 64
	streamMarkerSkip  = 224
	DefaultStreamFrom = MarkerOffset + streamMarkerSkip
	fillerByte        = 0xFF
)

// Command type codes used by the helpers.
const (
	TypeBuildUnit    = 3
	TypeRallyPoint   = 12
	TypeUpgrade      = 16
	TypeMove         = 62
	TypeStopMove     = 63
	TypeAttackGround = 67
	TypeAttackMove   = 71
	TypeUseAbility   = 72
	TypeDeploy       = 96
	TypePatrol       = 116
	TypeConstruct    = 123
)

type record struct {
	chat    []byte
	tick    uint32
	blocks  [][][]byte
	rawSize int
	isChat  bool
}

// Builder accumulates tick and chat records and renders the replay bytes.
type Builder struct {
	players []uint32
	records []record
	tail    []byte
	noMark  bool
}

// New starts a replay whose header lists the given raw player identifiers.
func New(players ...uint32) *Builder {
	return &Builder{players: append([]uint32(nil), players...)}
}

// WithoutMarker omits the stream marker so decoders must use their fallback probe.
func (b *Builder) WithoutMarker() *Builder {
	b.noMark = true
	return b
}

// Tick appends a tick record holding one block with the supplied commands.
func (b *Builder) Tick(tick uint32, commands ...[]byte) *Builder {
	b.records = append(b.records, record{tick: tick, blocks: [][][]byte{commands}, rawSize: -1})
	return b
}

// TickBlocks appends a tick record with one block per command group.
func (b *Builder) TickBlocks(tick uint32, blocks ...[][]byte) *Builder {
	b.records = append(b.records, record{tick: tick, blocks: blocks, rawSize: -1})
	return b
}

// TickWithSize appends a tick record whose declared payload size is overridden.
func (b *Builder) TickWithSize(tick uint32, size int, commands ...[]byte) *Builder {
	b.records = append(b.records, record{tick: tick, blocks: [][][]byte{commands}, rawSize: size})
	return b
}

// Chat appends a chat record with the given body.
func (b *Builder) Chat(body []byte) *Builder {
	b.records = append(b.records, record{isChat: true, chat: append([]byte(nil), body...)})
	return b
}

// Tail appends raw bytes after the stream, typically a summary container.
func (b *Builder) Tail(tail []byte) *Builder {
	b.tail = append([]byte(nil), tail...)
	return b
}

// Raw renders the decompressed replay.
func (b *Builder) Raw() []byte {
	var buf bytes.Buffer
	//1.- Version word followed by the magic token.
	writeU32(&buf, 10)
	buf.WriteString("AOE4_REC")
	pad(&buf, MarkerOffset)

	//2.- Marker chunk with the player identifiers, then filler up to the stream.
	if b.noMark {
		buf.WriteString("XXXX")
	} else {
		buf.WriteString("PLAS")
	}
	for _, id := range b.players {
		writeU32(&buf, id)
	}
	streamFrom := DefaultStreamFrom
	if b.noMark && streamFrom < 500 {
		streamFrom = 500
	}
	pad(&buf, streamFrom)

	//3.- Records in insertion order.
	for _, rec := range b.records {
		if rec.isChat {
			writeU32(&buf, 1)
			writeU32(&buf, uint32(len(rec.chat)))
			buf.Write(rec.chat)
			continue
		}
		payload := tickPayload(rec.tick, rec.blocks)
		writeU32(&buf, 0)
		size := len(payload)
		if rec.rawSize >= 0 {
			size = rec.rawSize
		}
		writeU32(&buf, uint32(size))
		buf.Write(payload)
	}
	buf.Write(b.tail)
	return buf.Bytes()
}

// Bytes renders the gzip-compressed replay.
func (b *Builder) Bytes() []byte {
	return Gzip(b.Raw())
}

// StreamOffset reports where the first record is written.
func (b *Builder) StreamOffset() int {
	if b.noMark && DefaultStreamFrom < 500 {
		return 500
	}
	return DefaultStreamFrom
}

// Gzip compresses data.
func Gzip(data []byte) []byte {
	var buf bytes.Buffer
	writer := gzip.NewWriter(&buf)
	writer.Write(data)
	writer.Close()
	return buf.Bytes()
}

func tickPayload(tick uint32, blocks [][][]byte) []byte {
	var buf bytes.Buffer
	buf.WriteByte(0)
	writeU32(&buf, tick)
	writeU32(&buf, 0)
	writeU32(&buf, uint32(len(blocks)))
	for _, commands := range blocks {
		var body bytes.Buffer
		for _, cmd := range commands {
			body.Write(cmd)
		}
		writeU32(&buf, 0)
		writeU32(&buf, 0)
		writeU32(&buf, uint32(body.Len()))
		buf.Write(body.Bytes())
	}
	return buf.Bytes()
}

// RawCommand renders a command of the given declared and physical size with zeroed body.
func RawCommand(size int, cmdType uint8, player uint32) []byte {
	physical := size
	if physical < 22 {
		physical = 22
	}
	cmd := make([]byte, physical)
	binary.LittleEndian.PutUint16(cmd[0:], uint16(int16(size)))
	cmd[2] = cmdType
	binary.LittleEndian.PutUint32(cmd[18:], player)
	return cmd
}

// ConstructCommand renders a placement command carrying an identifier at byte 31 and
// coordinates at bytes 35, 39 and 43.
func ConstructCommand(player, pbgid uint32, x, y, z float32) []byte {
	cmd := RawCommand(48, TypeConstruct, player)
	binary.LittleEndian.PutUint32(cmd[31:], pbgid)
	putF32(cmd[35:], x)
	putF32(cmd[39:], y)
	putF32(cmd[43:], z)
	return cmd
}

// PositionCommand renders a spatial command whose coordinates follow a marker byte at offset 22.
// Units scales the payload the way movement commands grow per selected unit.
func PositionCommand(cmdType uint8, player uint32, x, y, z float32, units int) []byte {
	if units < 1 {
		units = 1
	}
	cmd := RawCommand(39+4*units, cmdType, player)
	cmd[22] = 2
	putF32(cmd[23:], x)
	putF32(cmd[27:], y)
	putF32(cmd[31:], z)
	return cmd
}

// BuildCommand renders a train or research command carrying pbgid at byte 23.
func BuildCommand(cmdType uint8, player, pbgid uint32) []byte {
	cmd := RawCommand(30, cmdType, player)
	binary.LittleEndian.PutUint32(cmd[23:], pbgid)
	return cmd
}

func pad(buf *bytes.Buffer, upTo int) {
	for buf.Len() < upTo {
		buf.WriteByte(fillerByte)
	}
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	buf.Write(tmp[:])
}

func putF32(dst []byte, v float32) {
	binary.LittleEndian.PutUint32(dst, math.Float32bits(v))
}
