package container

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"

	"aoe4replay/analyzer/internal/decodeerr"
)

// Replay header layout.
const (
	MagicOffset = 4
	MagicLength = 8
	MagicPrefix = "AOE4_RE"
)

// DefaultMaxBytes bounds the decompressed replay size.
const DefaultMaxBytes int64 = 64 << 20

// Decompressor inflates the replay envelope.
type Decompressor interface {
	//1.- Name returns the codec identifier used in diagnostics.
	Name() string
	//2.- Decompress restores the raw replay bytes from the envelope.
	Decompress(data []byte) ([]byte, error)
}

// gzipDecompressor wraps klauspost gzip with a size cap.
type gzipDecompressor struct {
	maxBytes int64
}

// NewGZIPDecompressor constructs a Decompressor that refuses outputs larger than maxBytes.
// A non-positive maxBytes selects DefaultMaxBytes.
func NewGZIPDecompressor(maxBytes int64) Decompressor {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return gzipDecompressor{maxBytes: maxBytes}
}

// Name reports the identifier used for gzip encoded replays.
func (gzipDecompressor) Name() string { return "gzip" }

// Decompress decodes gzip-encoded data and returns the raw replay.
func (g gzipDecompressor) Decompress(data []byte) ([]byte, error) {
	//1.- Guard against empty payloads to simplify caller logic.
	if len(data) == 0 {
		return nil, decodeerr.Newf(decodeerr.CorruptContainer, -1, "empty payload")
	}
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, decodeerr.New(decodeerr.CorruptContainer, -1, fmt.Errorf("gzip reader: %w", err))
	}
	defer reader.Close()
	//2.- Read one byte past the cap so oversized replays are detected rather than truncated.
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(reader, g.maxBytes+1))
	if err != nil {
		return nil, decodeerr.New(decodeerr.CorruptContainer, -1, fmt.Errorf("gzip copy: %w", err))
	}
	if n > g.maxBytes {
		return nil, decodeerr.Newf(decodeerr.CorruptContainer, -1, "decompressed size exceeds %d bytes", g.maxBytes)
	}
	return buf.Bytes(), nil
}

// Decompress inflates a gzip replay with the default size cap.
func Decompress(data []byte) ([]byte, error) {
	return NewGZIPDecompressor(DefaultMaxBytes).Decompress(data)
}

// ValidateMagic checks the ASCII token at MagicOffset.
func ValidateMagic(data []byte) error {
	if len(data) < MagicOffset+MagicLength {
		return decodeerr.Newf(decodeerr.UnrecognizedFormat, 0, "replay too short (%d bytes)", len(data))
	}
	token := data[MagicOffset : MagicOffset+MagicLength]
	if !bytes.HasPrefix(token, []byte(MagicPrefix)) {
		return decodeerr.Newf(decodeerr.UnrecognizedFormat, MagicOffset, "unexpected header %q", token)
	}
	return nil
}

// Container is a decompressed replay with its located sections.
type Container struct {
	Data         []byte
	StreamOffset int
	// ChunkyOffset is -1 when the summary container is absent.
	ChunkyOffset int
	PlayerIDs    []uint32
}

// Open decompresses, validates and indexes a replay envelope.
func Open(compressed []byte, decompressor Decompressor) (*Container, error) {
	if decompressor == nil {
		decompressor = NewGZIPDecompressor(DefaultMaxBytes)
	}
	data, err := decompressor.Decompress(compressed)
	if err != nil {
		var de *decodeerr.Error
		if errors.As(err, &de) {
			return nil, err
		}
		return nil, decodeerr.New(decodeerr.CorruptContainer, -1, err)
	}
	return Index(data)
}

// Index validates an already decompressed replay and locates its sections.
func Index(data []byte) (*Container, error) {
	if err := ValidateMagic(data); err != nil {
		return nil, err
	}
	streamOffset, err := FindStreamOffset(data)
	if err != nil {
		return nil, err
	}
	return &Container{
		Data:         data,
		StreamOffset: streamOffset,
		ChunkyOffset: FindChunkyOffset(data),
		PlayerIDs:    ExtractPlayerIDs(data),
	}, nil
}

func readU32(data []byte, off int) (uint32, bool) {
	if off < 0 || off+4 > len(data) {
		return 0, false
	}
	return binary.LittleEndian.Uint32(data[off:]), true
}
