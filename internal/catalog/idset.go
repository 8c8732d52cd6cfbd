package catalog

import (
	"encoding/binary"
	"sort"

	"github.com/bits-and-blooms/bloom/v3"
)

// idFalsePositiveRate tunes the bloom prefilter in front of the exact lookup.
const idFalsePositiveRate = 0.01

// IDSet is a read-only set of catalog identifiers. Payload scans probe it with every
// aligned word of a command, so a bloom filter rejects most candidates before the map lookup.
type IDSet struct {
	filter *bloom.BloomFilter
	ids    map[uint32]struct{}
}

// NewIDSet builds a set from the supplied identifiers.
func NewIDSet(ids ...uint32) IDSet {
	set := IDSet{ids: make(map[uint32]struct{}, len(ids))}
	n := len(ids)
	if n == 0 {
		n = 1
	}
	set.filter = bloom.NewWithEstimates(uint(n), idFalsePositiveRate)
	for _, id := range ids {
		set.ids[id] = struct{}{}
		set.filter.Add(idKey(id))
	}
	return set
}

// Contains reports whether id is a member.
func (s IDSet) Contains(id uint32) bool {
	if len(s.ids) == 0 {
		return false
	}
	if s.filter != nil && !s.filter.Test(idKey(id)) {
		return false
	}
	_, ok := s.ids[id]
	return ok
}

// Len returns the number of identifiers.
func (s IDSet) Len() int { return len(s.ids) }

// Sorted returns the identifiers in ascending order.
func (s IDSet) Sorted() []uint32 {
	out := make([]uint32, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func idKey(id uint32) []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], id)
	return buf[:]
}
