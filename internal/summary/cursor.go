package summary

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"golang.org/x/text/encoding/unicode"

	"aoe4replay/analyzer/internal/decodeerr"
)

// Field constraints of the summary struct layout.
const (
	maxStringLength = 1000
	dictPairsLegacy = 8
	dictPairsPatch  = 9
)

// ErrShortBuffer reports a read past the end of the data.
var ErrShortBuffer = errors.New("summary: read past end of buffer")

// Cursor is a bounds-checked little-endian reader over a byte slice.
type Cursor struct {
	data []byte
	pos  int
}

// NewCursor positions a cursor at offset.
func NewCursor(data []byte, offset int) *Cursor {
	return &Cursor{data: data, pos: offset}
}

// Pos returns the current offset.
func (c *Cursor) Pos() int { return c.pos }

// Seek moves the cursor to an absolute offset.
func (c *Cursor) Seek(offset int) { c.pos = offset }

// Remaining reports the unread byte count.
func (c *Cursor) Remaining() int {
	if c.pos >= len(c.data) {
		return 0
	}
	return len(c.data) - c.pos
}

func (c *Cursor) fail(format string, args ...any) error {
	return decodeerr.New(decodeerr.SummaryUnavailable, c.pos, fmt.Errorf(format, args...))
}

func (c *Cursor) need(n int) error {
	if n < 0 || c.pos < 0 || c.Remaining() < n {
		return decodeerr.New(decodeerr.SummaryUnavailable, c.pos, ErrShortBuffer)
	}
	return nil
}

// ReadBytes returns the next n bytes without copying.
func (c *Cursor) ReadBytes(n int) ([]byte, error) {
	if err := c.need(n); err != nil {
		return nil, err
	}
	b := c.data[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

// ReadByte returns the next byte.
func (c *Cursor) ReadByte() (byte, error) {
	if err := c.need(1); err != nil {
		return 0, err
	}
	b := c.data[c.pos]
	c.pos++
	return b, nil
}

// ReadI32 reads a signed 32-bit integer.
func (c *Cursor) ReadI32() (int32, error) {
	if err := c.need(4); err != nil {
		return 0, err
	}
	v := int32(binary.LittleEndian.Uint32(c.data[c.pos:]))
	c.pos += 4
	return v, nil
}

// ReadF32 reads a 32-bit float.
func (c *Cursor) ReadF32() (float32, error) {
	if err := c.need(4); err != nil {
		return 0, err
	}
	v := math.Float32frombits(binary.LittleEndian.Uint32(c.data[c.pos:]))
	c.pos += 4
	return v, nil
}

// PeekI32 reads a signed 32-bit integer without advancing.
func (c *Cursor) PeekI32() (int32, bool) {
	if c.need(4) != nil {
		return 0, false
	}
	return int32(binary.LittleEndian.Uint32(c.data[c.pos:])), true
}

// Skip advances over n bytes.
func (c *Cursor) Skip(n int) error {
	if err := c.need(n); err != nil {
		return err
	}
	c.pos += n
	return nil
}

// SkipI32 discards count unknown 32-bit fields.
func (c *Cursor) SkipI32(count int) error {
	return c.Skip(4 * count)
}

func (c *Cursor) readLength() (int, error) {
	n, err := c.ReadI32()
	if err != nil {
		return 0, err
	}
	if n < 0 || n > maxStringLength {
		c.pos -= 4
		return 0, c.fail("invalid string length %d", n)
	}
	return int(n), nil
}

// ReadPrefixedString reads an i32 length followed by that many UTF-8 bytes.
func (c *Cursor) ReadPrefixedString() (string, error) {
	n, err := c.readLength()
	if err != nil {
		return "", err
	}
	b, err := c.ReadBytes(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadPrefixedUTF16 reads an i32 character count followed by UTF-16LE code units.
func (c *Cursor) ReadPrefixedUTF16() (string, error) {
	n, err := c.readLength()
	if err != nil {
		return "", err
	}
	b, err := c.ReadBytes(2 * n)
	if err != nil {
		return "", err
	}
	decoded, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(b)
	if err != nil {
		return "", c.fail("decode utf-16 name: %w", err)
	}
	return string(decoded), nil
}

// Resources is a resource dictionary reduced to the four gathered resources.
type Resources struct {
	Food  float64 `json:"food"`
	Gold  float64 `json:"gold"`
	Stone float64 `json:"stone"`
	Wood  float64 `json:"wood"`
}

// Total sums the four resources.
func (r Resources) Total() float64 { return r.Food + r.Gold + r.Stone + r.Wood }

// ReadResourceDict reads a pair-count prefixed key/float dictionary. Only the legacy (8) and
// post-patch (9) pair counts are accepted.
func (c *Cursor) ReadResourceDict() (Resources, error) {
	count, err := c.ReadI32()
	if err != nil {
		return Resources{}, err
	}
	if count != dictPairsLegacy && count != dictPairsPatch {
		return Resources{}, c.fail("invalid resource dictionary pair count %d", count)
	}
	var res Resources
	for i := int32(0); i < count; i++ {
		key, err := c.ReadPrefixedString()
		if err != nil {
			return Resources{}, err
		}
		value, err := c.ReadF32()
		if err != nil {
			return Resources{}, err
		}
		switch key {
		case "food":
			res.Food = finiteOrZero(value)
		case "gold":
			res.Gold = finiteOrZero(value)
		case "stone":
			res.Stone = finiteOrZero(value)
		case "wood":
			res.Wood = finiteOrZero(value)
		}
	}
	return res, nil
}

// finiteOrZero drops NaN and infinities, which cannot be serialised.
func finiteOrZero(v float32) float64 {
	f := float64(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
