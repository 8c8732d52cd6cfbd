package buildorder

import (
	"sort"

	"aoe4replay/analyzer/internal/catalog"
	"aoe4replay/analyzer/internal/stream"
)

// EventKind is the build-order event category.
type EventKind string

const (
	KindConstruct EventKind = "construct"
	KindBuildUnit EventKind = "build_unit"
	KindUpgrade   EventKind = "upgrade"
)

// KindOf maps a command type onto its event kind.
func KindOf(t stream.CommandType) (EventKind, bool) {
	switch t {
	case stream.Construct:
		return KindConstruct, true
	case stream.BuildUnit:
		return KindBuildUnit, true
	case stream.Upgrade:
		return KindUpgrade, true
	}
	return "", false
}

// Event is one matched build, train or research command. The catalog entry is copied by value.
type Event struct {
	Tick        uint32    `json:"tick"`
	Time        float64   `json:"time"`
	PlayerIndex int       `json:"playerId"`
	RawPlayerID uint32    `json:"rawPlayerId"`
	Kind        EventKind `json:"eventType"`
	X           *float64  `json:"x,omitempty"`
	Z           *float64  `json:"z,omitempty"`
	catalog.Entry
	catalog.AgeUp
}

// Stats counts extractor outcomes.
type Stats struct {
	Matched       int `json:"matched"`
	Unmatched     int `json:"unmatched"`
	ForeignPlayer int `json:"foreignPlayer"`
}

// Extractor turns identifier-carrying commands into build-order events.
type Extractor struct {
	catalog *catalog.Catalog
	scanner IdentifierScanner
}

// NewExtractor binds a catalog and scanner. A nil scanner selects WindowScanner.
func NewExtractor(cat *catalog.Catalog, scanner IdentifierScanner) *Extractor {
	if scanner == nil {
		scanner = WindowScanner{}
	}
	return &Extractor{catalog: cat, scanner: scanner}
}

// Extract scans every identifier-carrying command. Commands from players outside playerIDs and
// commands without a recognizable identifier are dropped and counted. Events are sorted by time.
func (x *Extractor) Extract(commands []stream.Command, playerIDs []uint32) ([]Event, Stats) {
	var (
		events []Event
		stats  Stats
	)
	index := PlayerIndex(playerIDs)
	for _, cmd := range commands {
		kind, ok := KindOf(cmd.Type)
		if !ok || len(cmd.Payload) == 0 {
			continue
		}
		player, known := index[cmd.PlayerID]
		if !known {
			stats.ForeignPlayer++
			continue
		}
		id, found := x.scanner.Scan(kind, cmd.Payload, x.idsFor(kind))
		if !found {
			stats.Unmatched++
			continue
		}
		entry, ok := x.catalog.Lookup(id)
		if !ok {
			stats.Unmatched++
			continue
		}
		event := Event{
			Tick:        cmd.Tick,
			Time:        cmd.Time,
			PlayerIndex: player,
			RawPlayerID: cmd.PlayerID,
			Kind:        kind,
			Entry:       entry,
			AgeUp:       x.catalog.AgeUpOf(entry),
		}
		if kind == KindConstruct && cmd.Position != nil {
			px, pz := cmd.Position.X, cmd.Position.Z
			event.X, event.Z = &px, &pz
		}
		events = append(events, event)
		stats.Matched++
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].Time < events[j].Time })
	return events, stats
}

func (x *Extractor) idsFor(kind EventKind) catalog.IDSet {
	switch kind {
	case KindConstruct:
		return x.catalog.Buildings()
	case KindBuildUnit:
		return x.catalog.Units()
	default:
		return x.catalog.Technologies()
	}
}

// PlayerIndex maps raw in-file player identifiers onto dense indices.
func PlayerIndex(playerIDs []uint32) map[uint32]int {
	index := make(map[uint32]int, len(playerIDs))
	for i, id := range playerIDs {
		if _, exists := index[id]; !exists {
			index[id] = i
		}
	}
	return index
}

// ForPlayer returns the events of one player in time order.
func ForPlayer(events []Event, player int) []Event {
	var out []Event
	for _, e := range events {
		if e.PlayerIndex == player {
			out = append(out, e)
		}
	}
	return out
}
