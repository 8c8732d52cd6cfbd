package replaytest

import (
	"bytes"
	"encoding/binary"
	"unicode/utf16"
)

// STPDVersionModern is a player statistics version that carries the post-elimination field.
const STPDVersionModern = 2034

// ScoreSample is one score timeline row.
type ScoreSample struct {
	Timestamp  int32
	Economy    float32
	Military   float32
	Society    float32
	Technology float32
	Total      float32
}

// ResourceSample is one resource timeline row. Only food is populated for each dictionary.
type ResourceSample struct {
	Timestamp  int32
	Current    float32
	PerMinute  float32
	Cumulative float32
	UnitValue  float32
}

// PlayerStats describes one STPD record.
type PlayerStats struct {
	Version     int32
	PlayerID    int32
	Name        string
	Civ         string
	ProfileID   int32
	Outcome     int32
	UnitsKilled int32
	UnitsLost   int32
	Gathered    float32
	Spent       float32
	// Patched renders nine-pair dictionaries with the extra cumulative timeline dictionary.
	Patched   bool
	Resources []ResourceSample
	Scores    []ScoreSample
}

// Chunky renders a summary container holding one folder with a data chunk per player. Garbage
// bytes between chunks force the walker to resynchronise.
func Chunky(players ...PlayerStats) []byte {
	chunks := make([][]byte, 0, 2*len(players))
	for i, p := range players {
		if i > 0 {
			chunks = append(chunks, []byte{0xAB, 0xCD, 0xEF})
		}
		chunks = append(chunks, PlayerChunk(p))
	}
	return ChunkyWith(chunks...)
}

// CorruptChunk renders a player chunk whose payload fails to decode.
func CorruptChunk() []byte {
	var payload bytes.Buffer
	writeI32(&payload, 1)
	writeI32(&payload, 5000)
	payload.Write(make([]byte, 24))
	var buf bytes.Buffer
	writeChunk(&buf, "DATA", "STPD", STPDVersionModern, payload.Bytes())
	return buf.Bytes()
}

// ChunkyWith renders a summary container with arbitrary pre-rendered chunks.
func ChunkyWith(chunks ...[]byte) []byte {
	var folder bytes.Buffer
	for _, c := range chunks {
		folder.Write(c)
	}
	var buf bytes.Buffer
	buf.WriteString("Relic Chunky\r\n")
	pad(&buf, 24)
	writeChunk(&buf, "FOLD", "STAT", 1, folder.Bytes())
	// trailing room so the last chunk sits strictly inside the walk window
	buf.Write(make([]byte, 32))
	return buf.Bytes()
}

// PlayerChunk renders one STPD data chunk.
func PlayerChunk(p PlayerStats) []byte {
	var buf bytes.Buffer
	writeChunk(&buf, "DATA", "STPD", p.Version, p.encode())
	return buf.Bytes()
}

func writeChunk(buf *bytes.Buffer, kind, name string, version int32, payload []byte) {
	buf.WriteString(kind)
	buf.WriteString(name)
	writeI32(buf, version)
	writeI32(buf, int32(len(payload)))
	writeI32(buf, 0)
	buf.Write(payload)
}

func (p PlayerStats) encode() []byte {
	var buf bytes.Buffer
	dict := func(food float32) { writeDict(&buf, p.Patched, food) }
	skip := func(n int) { buf.Write(make([]byte, 4*n)) }

	writeI32(&buf, p.PlayerID)
	writeUTF16(&buf, p.Name)
	writeI32(&buf, p.Outcome)
	skip(1)
	writeI32(&buf, 0)
	if p.Version >= 2033 {
		skip(1)
	}

	skip(2)
	writeI32(&buf, 40) // units produced
	skip(1)
	writeI32(&buf, 12) // infantry
	skip(1)
	skip(6)
	writeI32(&buf, 25) // largest army
	skip(9)
	skip(2)
	dict(0)

	writeI32(&buf, 3) // buildings lost
	skip(1)
	writeI32(&buf, p.UnitsLost)
	writeI32(&buf, 900)
	skip(6)
	writeI32(&buf, 7) // techs
	skip(1)
	dict(0)
	dict(150)
	dict(0)
	dict(0)

	writeI32(&buf, p.UnitsKilled)
	writeI32(&buf, 1200)
	skip(2)
	writeI32(&buf, 2) // razed
	skip(6)

	dict(p.Gathered)
	dict(p.Spent)
	for i := 0; i < 4; i++ {
		dict(0)
	}
	skip(6)

	writeI32(&buf, 1)
	writeI32(&buf, 0)
	writeI32(&buf, 0)
	skip(9)
	dict(0)
	skip(4)

	buf.WriteByte(0)
	writeString(&buf, p.Civ)
	skip(2)
	writeI32(&buf, p.ProfileID)
	skip(1)

	writeI32(&buf, int32(len(p.Resources)))
	for _, r := range p.Resources {
		writeI32(&buf, r.Timestamp)
		dict(r.Current)
		if p.Patched {
			dict(r.Cumulative)
			dict(r.PerMinute)
			dict(r.UnitValue)
		} else {
			dict(r.PerMinute)
			dict(r.UnitValue)
		}
		writeI32(&buf, 0)
	}
	writeI32(&buf, int32(len(p.Scores)))
	for _, s := range p.Scores {
		writeI32(&buf, s.Timestamp)
		for _, v := range []float32{s.Economy, s.Military, s.Society, s.Technology, s.Total} {
			putF32Buf(&buf, v)
		}
	}
	return buf.Bytes()
}

var dictKeys = []string{"food", "gold", "stone", "wood", "merc_byz", "merc_food", "oliveoil", "popcap", "silver"}

func writeDict(buf *bytes.Buffer, patched bool, food float32) {
	pairs := 8
	if patched {
		pairs = 9
	}
	writeI32(buf, int32(pairs))
	for _, key := range dictKeys[:pairs] {
		writeString(buf, key)
		if key == "food" {
			putF32Buf(buf, food)
		} else {
			putF32Buf(buf, 0)
		}
	}
}

func writeString(buf *bytes.Buffer, s string) {
	writeI32(buf, int32(len(s)))
	buf.WriteString(s)
}

func writeUTF16(buf *bytes.Buffer, s string) {
	units := utf16.Encode([]rune(s))
	writeI32(buf, int32(len(units)))
	for _, u := range units {
		var tmp [2]byte
		binary.LittleEndian.PutUint16(tmp[:], u)
		buf.Write(tmp[:])
	}
}

func writeI32(buf *bytes.Buffer, v int32) {
	writeU32(buf, uint32(v))
}

func putF32Buf(buf *bytes.Buffer, v float32) {
	var tmp [4]byte
	putF32(tmp[:], v)
	buf.Write(tmp[:])
}
