package entities

import (
	"math"
	"sort"

	"aoe4replay/analyzer/internal/stream"
)

// Subtype names how an entity was synthesised.
type Subtype string

const (
	BuildingConstruct Subtype = "building_construct"
	BuildingRally     Subtype = "building_rally"
	UnitActivity      Subtype = "unit_activity"
	UnitCombat        Subtype = "unit_combat"
	UnitAbility       Subtype = "unit_ability"
)

// Category groups subtypes for the viewer.
type Category string

const (
	CategoryBuilding Category = "building"
	CategoryUnit     Category = "unit"
)

// Category reports whether the subtype is a building or a unit.
func (s Subtype) Category() Category {
	if s == BuildingConstruct || s == BuildingRally {
		return CategoryBuilding
	}
	return CategoryUnit
}

// Entity is a synthetic visual entity. Spawn and death positions use the ground plane:
// X is the map X axis and Y carries the command's Z coordinate.
type Entity struct {
	ID           int      `json:"id"`
	PlayerIndex  int      `json:"playerId"`
	Subtype      Subtype  `json:"entityType"`
	Category     Category `json:"category"`
	SpawnTime    float64  `json:"spawnTimestamp"`
	SpawnX       float64  `json:"spawnX"`
	SpawnY       float64  `json:"spawnY"`
	DeathTime    *float64 `json:"deathTimestamp"`
	DeathX       *float64 `json:"deathX"`
	DeathY       *float64 `json:"deathY"`
	KillerPlayer *int     `json:"killerPlayerId"`
	UnitCount    int      `json:"unitCount"`
}

// Alive reports whether the entity exists at time t.
func (e Entity) Alive(t float64) bool {
	return e.SpawnTime <= t && (e.DeathTime == nil || *e.DeathTime > t)
}

// Chaining and de-duplication windows.
const (
	rallyExclusionRadius = 10
	collapseDistance     = 3
	collapseWindow       = 2
	movementOverlap      = 1
	movementMaxLifetime  = 30
	movementFadeOut      = 5
	combatOverlap        = 1
	combatMaxLifetime    = 20
	combatFadeOut        = 8
	abilityLifetime      = 10
)

type chainRule struct {
	subtype     Subtype
	overlap     float64
	maxLifetime float64
	fadeOut     float64
	killer      bool
}

var (
	movementChain = chainRule{subtype: UnitActivity, overlap: movementOverlap, maxLifetime: movementMaxLifetime, fadeOut: movementFadeOut}
	combatChain   = chainRule{subtype: UnitCombat, overlap: combatOverlap, maxLifetime: combatMaxLifetime, fadeOut: combatFadeOut, killer: true}
)

// Reconstruct synthesises entities from positioned commands of the listed players. Players are
// processed in index order and identifiers are assigned sequentially from 1.
func Reconstruct(commands []stream.Command, playerIDs []uint32, duration float64) []Entity {
	index := make(map[uint32]int, len(playerIDs))
	for i, id := range playerIDs {
		if _, exists := index[id]; !exists {
			index[id] = i
		}
	}
	perPlayer := make([][]stream.Command, len(playerIDs))
	for _, cmd := range commands {
		player, ok := index[cmd.PlayerID]
		if !ok || cmd.Position == nil {
			continue
		}
		perPlayer[player] = append(perPlayer[player], cmd)
	}

	r := reconstructor{duration: duration, players: len(playerIDs), nextID: 1}
	for player, cmds := range perPlayer {
		r.player(player, cmds)
	}
	return r.out
}

type reconstructor struct {
	out      []Entity
	duration float64
	players  int
	nextID   int
}

func (r *reconstructor) player(player int, cmds []stream.Command) {
	var constructs, rallies, moves, combats, abilities []stream.Command
	for _, cmd := range cmds {
		switch cmd.Type {
		case stream.Construct:
			constructs = append(constructs, cmd)
		case stream.RallyPoint:
			rallies = append(rallies, cmd)
		case stream.Move, stream.Patrol:
			moves = append(moves, cmd)
		case stream.AttackMove, stream.AttackGround:
			combats = append(combats, cmd)
		case stream.UseAbility, stream.Deploy:
			abilities = append(abilities, cmd)
		}
	}

	//1.- Placements are permanent buildings.
	for _, cmd := range constructs {
		r.emit(player, BuildingConstruct, cmd, nil, nil, cmd.UnitCount)
	}
	//2.- Rally points stand in for buildings unless a placement already covers the spot.
	for _, cmd := range rallies {
		if nearAny(cmd, constructs) {
			continue
		}
		r.emit(player, BuildingRally, cmd, nil, nil, cmd.UnitCount)
	}
	//3.- Movement and combat are chained after collapsing micro-adjustments.
	r.chain(player, collapse(moves), movementChain)
	r.chain(player, collapse(combats), combatChain)
	//4.- Abilities mark a spot for a fixed time.
	for _, cmd := range abilities {
		death := cmd.Time + abilityLifetime
		r.emit(player, UnitAbility, cmd, &death, cmd.Position, cmd.UnitCount)
	}
}

func (r *reconstructor) chain(player int, cmds []stream.Command, rule chainRule) {
	for i, cmd := range cmds {
		var (
			death float64
			at    = cmd.Position
		)
		if i+1 < len(cmds) {
			next := cmds[i+1]
			death = math.Min(next.Time+rule.overlap, cmd.Time+rule.maxLifetime)
			at = next.Position
		} else {
			death = math.Min(cmd.Time+rule.fadeOut, r.duration)
		}
		entity := r.emit(player, rule.subtype, cmd, &death, at, cmd.UnitCount)
		if rule.killer && r.players > 1 {
			killer := 0
			if player == 0 {
				killer = 1
			}
			r.out[entity].KillerPlayer = &killer
		}
	}
}

func (r *reconstructor) emit(player int, subtype Subtype, cmd stream.Command, death *float64, deathAt *stream.Position, units int) int {
	entity := Entity{
		ID:          r.nextID,
		PlayerIndex: player,
		Subtype:     subtype,
		Category:    subtype.Category(),
		SpawnTime:   cmd.Time,
		SpawnX:      cmd.Position.X,
		SpawnY:      cmd.Position.Z,
		UnitCount:   units,
	}
	if death != nil {
		t := *death
		if t < cmd.Time {
			t = cmd.Time
		}
		dx, dy := deathAt.X, deathAt.Z
		entity.DeathTime, entity.DeathX, entity.DeathY = &t, &dx, &dy
	}
	r.nextID++
	r.out = append(r.out, entity)
	return len(r.out) - 1
}

// collapse sorts by time and drops consecutive near-duplicates, keeping the larger unit count.
func collapse(cmds []stream.Command) []stream.Command {
	sorted := append([]stream.Command(nil), cmds...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time < sorted[j].Time })
	var out []stream.Command
	for _, cmd := range sorted {
		if n := len(out); n > 0 {
			prev := &out[n-1]
			if math.Abs(cmd.Position.X-prev.Position.X) < collapseDistance &&
				math.Abs(cmd.Position.Z-prev.Position.Z) < collapseDistance &&
				cmd.Time-prev.Time < collapseWindow {
				if cmd.UnitCount > prev.UnitCount {
					prev.UnitCount = cmd.UnitCount
				}
				continue
			}
		}
		out = append(out, cmd)
	}
	return out
}

func nearAny(cmd stream.Command, anchors []stream.Command) bool {
	for _, anchor := range anchors {
		if math.Abs(anchor.Position.X-cmd.Position.X) < rallyExclusionRadius &&
			math.Abs(anchor.Position.Z-cmd.Position.Z) < rallyExclusionRadius {
			return true
		}
	}
	return false
}
