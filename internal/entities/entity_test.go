package entities

import (
	"math"
	"testing"

	"aoe4replay/analyzer/internal/stream"
)

func cmdAt(t float64, typ stream.CommandType, player uint32, x, z float64, units int) stream.Command {
	return stream.Command{Time: t, Type: typ, PlayerID: player, Position: &stream.Position{X: x, Z: z}, UnitCount: units}
}

func TestReconstructBuildings(t *testing.T) {
	commands := []stream.Command{
		cmdAt(10, stream.Construct, 1000, 50, 60, 1),
		cmdAt(12, stream.RallyPoint, 1000, 55, 65, 1),
		cmdAt(14, stream.RallyPoint, 1000, 80, 60, 1),
		cmdAt(16, stream.Construct, 4444, 1, 1, 1),
		{Time: 18, Type: stream.Construct, PlayerID: 1000},
	}
	got := Reconstruct(commands, []uint32{1000, 1002}, 100)
	if len(got) != 2 {
		t.Fatalf("expected construct plus distant rally, got %d", len(got))
	}
	if got[0].Subtype != BuildingConstruct || got[0].DeathTime != nil || got[0].SpawnX != 50 || got[0].SpawnY != 60 {
		t.Fatalf("unexpected construct entity %+v", got[0])
	}
	if got[1].Subtype != BuildingRally || got[1].SpawnX != 80 || got[1].Category != CategoryBuilding {
		t.Fatalf("unexpected rally entity %+v", got[1])
	}
	if got[0].ID != 1 || got[1].ID != 2 {
		t.Fatalf("expected sequential ids")
	}
}

func TestReconstructChainsMovement(t *testing.T) {
	commands := []stream.Command{
		cmdAt(0, stream.Move, 1000, 0, 0, 1),
		cmdAt(1, stream.Move, 1000, 1, 1, 4),
		cmdAt(10, stream.Patrol, 1000, 20, 20, 2),
		cmdAt(100, stream.Move, 1000, 40, 40, 1),
	}
	got := Reconstruct(commands, []uint32{1000}, 102)
	if len(got) != 3 {
		t.Fatalf("expected near duplicate to collapse, got %d entities", len(got))
	}
	first := got[0]
	if first.UnitCount != 4 {
		t.Fatalf("expected collapsed unit count 4, got %d", first.UnitCount)
	}
	if *first.DeathTime != 11 || *first.DeathX != 20 || *first.DeathY != 20 {
		t.Fatalf("expected death at next command, got %v %v %v", *first.DeathTime, *first.DeathX, *first.DeathY)
	}
	if *got[1].DeathTime != 40 {
		t.Fatalf("expected lifetime cap of 30s, got %v", *got[1].DeathTime)
	}
	if *got[2].DeathTime != 102 || *got[2].DeathX != 40 {
		t.Fatalf("expected fade out capped at duration, got %v", *got[2].DeathTime)
	}
	if first.KillerPlayer != nil {
		t.Fatalf("movement must not carry a killer")
	}
}

func TestReconstructCombatAndAbility(t *testing.T) {
	commands := []stream.Command{
		cmdAt(5, stream.AttackMove, 1002, 10, 10, 3),
		cmdAt(7, stream.AttackGround, 1002, 30, 30, 1),
		cmdAt(9, stream.UseAbility, 1000, 5, 5, 1),
	}
	got := Reconstruct(commands, []uint32{1000, 1002}, 12)
	if len(got) != 3 {
		t.Fatalf("expected 3 entities, got %d", len(got))
	}
	ability := got[0]
	if ability.Subtype != UnitAbility || *ability.DeathTime != 19 || *ability.DeathX != 5 {
		t.Fatalf("unexpected ability %+v", ability)
	}
	combat := got[1]
	if combat.Subtype != UnitCombat || combat.KillerPlayer == nil || *combat.KillerPlayer != 0 {
		t.Fatalf("expected killer to be the opponent, got %+v", combat)
	}
	if *combat.DeathTime != 8 || *got[2].DeathTime != 12 {
		t.Fatalf("unexpected combat lifetimes %v %v", *combat.DeathTime, *got[2].DeathTime)
	}
}

func TestReconstructGuardsDeathBeforeSpawn(t *testing.T) {
	got := Reconstruct([]stream.Command{cmdAt(50, stream.Move, 1000, 1, 1, 1)}, []uint32{1000}, 10)
	if len(got) != 1 || *got[0].DeathTime != 50 {
		t.Fatalf("expected death clamped to spawn, got %+v", got)
	}
	if got[0].Alive(50) {
		t.Fatalf("zero lifetime entity must not be alive")
	}
}

func TestBoundsNormalize(t *testing.T) {
	dx, dy := 10.0, 20.0
	list := []Entity{
		{SpawnX: 0, SpawnY: 0},
		{SpawnX: 5, SpawnY: 5, DeathX: &dx, DeathY: &dy},
	}
	b := ComputeBounds(list)
	if b.MinX != -1 || b.MaxX != 11 || b.MinY != -2 || b.MaxY != 22 {
		t.Fatalf("unexpected bounds %+v", b)
	}
	x, y := b.Normalize(5, 10)
	if x != 0.5 || y != 0.5 {
		t.Fatalf("expected centre to normalise to 0.5, got %v %v", x, y)
	}

	flat := ComputeBounds([]Entity{{SpawnX: 3, SpawnY: 3}})
	if fx, _ := flat.Normalize(3, 3); math.Abs(fx-0.5) > 1e-9 {
		t.Fatalf("expected degenerate axis to centre, got %v", fx)
	}
}
