package summary

// Chunk tree layout.
const (
	// chunkyHeaderSkip jumps over the container magic and file header.
	chunkyHeaderSkip = 24
	// chunkHeaderSize covers kind, name, version, size and name size.
	chunkHeaderSize  = 20
	maxChunkNameSize = 1000
	maxChunkDataSize = 10_000_000
	maxChunkDepth    = 10
)

// Chunk kinds and the names of interest.
const (
	chunkFolder      = "FOLD"
	chunkData        = "DATA"
	chunkPlayerStats = "STPD"
	chunkGameStats   = "STLS"
)

type chunkHeader struct {
	Kind      string
	Name      string
	Version   int32
	DataSize  int32
	DataStart int
}

// readChunkHeader decodes the header at the cursor. ok is false when the bytes do not form a
// folder or data header.
func readChunkHeader(c *Cursor) (chunkHeader, bool) {
	if c.Remaining() < chunkHeaderSize {
		return chunkHeader{}, false
	}
	kind, _ := c.ReadBytes(4)
	if string(kind) != chunkFolder && string(kind) != chunkData {
		return chunkHeader{}, false
	}
	name, _ := c.ReadBytes(4)
	version, _ := c.ReadI32()
	dataSize, _ := c.ReadI32()
	nameSize, _ := c.ReadI32()
	if nameSize > 0 && nameSize < maxChunkNameSize {
		if err := c.Skip(int(nameSize)); err != nil {
			return chunkHeader{}, false
		}
	}
	return chunkHeader{
		Kind:      string(kind),
		Name:      string(name),
		Version:   version,
		DataSize:  dataSize,
		DataStart: c.Pos(),
	}, true
}

// walkChunks visits every data chunk below the cursor up to end. Misaligned bytes are skipped
// one at a time until a valid header appears.
func walkChunks(c *Cursor, end, depth int, visit func(chunkHeader)) {
	limit := len(c.data)
	for c.Pos() < end-chunkHeaderSize && c.Remaining() > chunkHeaderSize {
		headerPos := c.Pos()
		header, ok := readChunkHeader(c)
		if !ok {
			c.Seek(headerPos + 1)
			continue
		}
		chunkEnd := header.DataStart + int(header.DataSize)
		if header.DataSize < 0 || header.DataSize > maxChunkDataSize || chunkEnd > limit {
			c.Seek(headerPos + 1)
			continue
		}
		switch header.Kind {
		case chunkFolder:
			if depth+1 < maxChunkDepth {
				walkChunks(c, chunkEnd, depth+1, visit)
			}
		case chunkData:
			visit(header)
		}
		c.Seek(chunkEnd)
	}
}
