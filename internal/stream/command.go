package stream

import (
	"fmt"
	"sort"
)

// TicksPerSecond is the fixed simulation rate.
const TicksPerSecond = 8

// CommandType is the one-byte command code.
type CommandType uint8

const (
	BuildUnit        CommandType = 3
	CancelUnit       CommandType = 5
	RallyPoint       CommandType = 12
	DeleteBuilding   CommandType = 14
	Upgrade          CommandType = 16
	Ungarrison       CommandType = 20
	CancelConstruct  CommandType = 56
	Move             CommandType = 62
	StopMove         CommandType = 63
	SupportConstruct CommandType = 65
	AttackGround     CommandType = 67
	AttackMove       CommandType = 71
	UseAbility       CommandType = 72
	Garrison         CommandType = 73
	Deploy           CommandType = 96
	StandGround      CommandType = 109
	Patrol           CommandType = 116
	Construct        CommandType = 123
)

var commandNames = map[CommandType]string{
	BuildUnit:        "BuildUnit",
	CancelUnit:       "CancelUnit",
	RallyPoint:       "RallyPoint",
	DeleteBuilding:   "DeleteBuilding",
	Upgrade:          "Upgrade",
	Ungarrison:       "Ungarrison",
	CancelConstruct:  "CancelConstruct",
	Move:             "Move",
	StopMove:         "StopMove",
	SupportConstruct: "SupportConstruct",
	AttackGround:     "AttackGround",
	AttackMove:       "AttackMove",
	UseAbility:       "UseAbility",
	Garrison:         "Garrison",
	Deploy:           "Deploy",
	StandGround:      "StandGround",
	Patrol:           "Patrol",
	Construct:        "Construct",
}

func (t CommandType) String() string {
	if name, ok := commandNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", uint8(t))
}

// CarriesIdentifier reports whether the payload references a catalog entry.
func (t CommandType) CarriesIdentifier() bool {
	return t == BuildUnit || t == Upgrade || t == Construct
}

// IsMovement reports whether the payload grows with the number of selected units.
func (t CommandType) IsMovement() bool {
	return t == Move || t == Patrol || t == AttackMove
}

// IsAttack reports whether the command is an attack-class order.
func (t CommandType) IsAttack() bool {
	return t == AttackMove || t == AttackGround
}

// Position is a map coordinate. X and Z are the ground axes, Y is elevation.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Command is one decoded command block.
type Command struct {
	Tick      uint32      `json:"tick"`
	Time      float64     `json:"time"`
	Type      CommandType `json:"cmdType"`
	PlayerID  uint32      `json:"playerId"`
	Size      int         `json:"size"`
	Position  *Position   `json:"position,omitempty"`
	UnitCount int         `json:"unitCount"`
	// Payload holds the raw command bytes for identifier-carrying types only.
	Payload []byte `json:"-"`
}

// HasPosition reports whether a coordinate triple was decoded.
func (c Command) HasPosition() bool { return c.Position != nil }

// Stats summarises one walk over the stream.
type Stats struct {
	TickRecords      int    `json:"tickRecords"`
	ChatRecords      int    `json:"chatRecords"`
	LastTick         uint32 `json:"lastTick"`
	MalformedRecords int    `json:"malformedRecords"`
	Truncated        bool   `json:"truncated"`
	EndOffset        int    `json:"endOffset"`
}

// Result is the walker output.
type Result struct {
	Commands []Command
	Stats    Stats
}

// BuildCommands returns the identifier-carrying subset in stream order.
func (r Result) BuildCommands() []Command {
	var out []Command
	for _, cmd := range r.Commands {
		if cmd.Type.CarriesIdentifier() && len(cmd.Payload) > 0 {
			out = append(out, cmd)
		}
	}
	return out
}

// Positioned returns the commands that carry coordinates.
func (r Result) Positioned() []Command {
	var out []Command
	for _, cmd := range r.Commands {
		if cmd.HasPosition() {
			out = append(out, cmd)
		}
	}
	return out
}

// DurationSeconds derives the match length from the larger of the tick record count and
// the last stamped tick.
func (r Result) DurationSeconds() int {
	ticks := uint64(r.Stats.TickRecords)
	if uint64(r.Stats.LastTick) > ticks {
		ticks = uint64(r.Stats.LastTick)
	}
	return int(ticks / TicksPerSecond)
}

// TypeCount is one row of a command type distribution.
type TypeCount struct {
	Type  CommandType `json:"type"`
	Name  string      `json:"name"`
	Count int         `json:"count"`
}

// Distribution counts commands per type, most frequent first.
func Distribution(commands []Command) []TypeCount {
	counts := make(map[CommandType]int)
	for _, cmd := range commands {
		counts[cmd.Type]++
	}
	out := make([]TypeCount, 0, len(counts))
	for typ, count := range counts {
		out = append(out, TypeCount{Type: typ, Name: typ.String(), Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Type < out[j].Type
	})
	return out
}
