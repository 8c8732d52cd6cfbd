// Package summary decodes the end-of-match statistics stored in the Relic Chunky section of a
// replay.
package summary

import (
	"errors"
	"fmt"

	"aoe4replay/analyzer/internal/decodeerr"
)

// Summary is the decoded statistics section.
type Summary struct {
	// GameLength is the latest timeline timestamp across players, in seconds.
	GameLength int             `json:"gameLength"`
	Players    []PlayerSummary `json:"players"`
	// Layout is the resource timeline shape observed in this replay.
	Layout TimelineLayout `json:"-"`
	// Rejected lists player records that failed to decode.
	Rejected []RejectedChunk `json:"-"`
}

// RejectedChunk records a player statistics chunk that could not be decoded.
type RejectedChunk struct {
	Offset int
	Err    error
}

func (r RejectedChunk) String() string {
	return fmt.Sprintf("STPD at %d: %v", r.Offset, r.Err)
}

// ErrNoChunky reports that the replay carries no chunky section.
var ErrNoChunky = errors.New("summary: chunky section not found")

// ErrNoPlayers reports that no player record could be decoded.
var ErrNoPlayers = errors.New("summary: no player statistics decoded")

// Parse walks the chunk tree starting at chunkyOffset and decodes every player statistics chunk.
// Individual player failures are collected in Rejected. A missing section or a tree without any
// decodable player yields a SummaryUnavailable error.
func Parse(data []byte, chunkyOffset int) (*Summary, error) {
	if chunkyOffset < 0 || chunkyOffset >= len(data) {
		return nil, decodeerr.New(decodeerr.SummaryUnavailable, chunkyOffset, ErrNoChunky)
	}

	out := &Summary{}
	decoder := &playerDecoder{}
	c := NewCursor(data, chunkyOffset+chunkyHeaderSkip)
	walkChunks(c, len(data), 0, func(h chunkHeader) {
		if h.Name != chunkPlayerStats {
			return
		}
		player, err := decoder.decode(NewCursor(data, h.DataStart), h.Version)
		if err != nil {
			out.Rejected = append(out.Rejected, RejectedChunk{Offset: h.DataStart, Err: err})
			return
		}
		out.Players = append(out.Players, player)
	})
	out.Layout = decoder.layout

	if len(out.Players) == 0 {
		return nil, decodeerr.New(decodeerr.SummaryUnavailable, chunkyOffset, ErrNoPlayers)
	}
	for _, p := range out.Players {
		if n := len(p.Timeline); n > 0 && p.Timeline[n-1].Timestamp > out.GameLength {
			out.GameLength = p.Timeline[n-1].Timestamp
		}
	}
	return out, nil
}

// ByPlayerID indexes decoded players by their in-match player id.
func (s *Summary) ByPlayerID() map[int32]PlayerSummary {
	out := make(map[int32]PlayerSummary, len(s.Players))
	for _, p := range s.Players {
		out[p.PlayerID] = p
	}
	return out
}
