package analysis

import (
	"testing"

	"aoe4replay/analyzer/internal/buildorder"
	"aoe4replay/analyzer/internal/catalog"
	"aoe4replay/analyzer/internal/stream"
)

var (
	villager    = catalog.Entry{ID: 1, Name: "Villager", Kind: catalog.KindUnit, BaseID: "villager", Age: 1, Costs: &catalog.Costs{Food: 50, Total: 50, Time: 20, Popcap: 1}}
	spearman    = catalog.Entry{ID: 2, Name: "Spearman", Kind: catalog.KindUnit, BaseID: "spearman", Age: 1, Classes: []string{"military"}, Costs: &catalog.Costs{Food: 60, Wood: 20, Total: 80, Popcap: 1}}
	longbow     = catalog.Entry{ID: 3, Name: "Longbowman", Kind: catalog.KindUnit, BaseID: "longbowman", Age: 2, Classes: []string{"military"}, Costs: &catalog.Costs{Food: 40, Wood: 50, Total: 90, Popcap: 1}}
	townCenter  = catalog.Entry{ID: 4, Name: "Town Center", Kind: catalog.KindBuilding, BaseID: "town-center", Age: 1, Classes: []string{"town_center"}, Costs: &catalog.Costs{Wood: 400, Stone: 300, Total: 700}}
	councilHall = catalog.Entry{ID: 5, Name: "Council Hall", Kind: catalog.KindBuilding, BaseID: "council-hall", Age: 1, Classes: []string{"landmark"}, Icon: "council.png"}
	castleTech  = catalog.Entry{ID: 6, Name: "Steeled Arrow", Kind: catalog.KindTechnology, Age: 3, Costs: &catalog.Costs{Gold: 100, Total: 100}}
	wheelbarrow = catalog.Entry{ID: 7, Name: "Wheelbarrow", Kind: catalog.KindTechnology, Age: 1}
)

func event(t float64, player int, kind buildorder.EventKind, entry catalog.Entry) buildorder.Event {
	rules := catalog.DefaultTagRules()
	return buildorder.Event{Time: t, PlayerIndex: player, Kind: kind, Entry: entry, AgeUp: rules.AgeUpOf(entry)}
}

func attack(t float64, player uint32, x, z float64, units int) stream.Command {
	return stream.Command{Time: t, Type: stream.AttackMove, PlayerID: player, Position: &stream.Position{X: x, Z: z}, UnitCount: units}
}

func newTestAnalyzer() *Analyzer {
	return New(catalog.DefaultTagRules())
}

func TestVillagerGaps(t *testing.T) {
	a := newTestAnalyzer()
	report := a.Analyze(Input{
		Events: []buildorder.Event{
			event(0, 0, buildorder.KindBuildUnit, villager),
			event(50, 0, buildorder.KindBuildUnit, villager),
		},
		PlayerIDs: []uint32{1000, 1002},
		Duration:  60,
	})
	if len(report.VillagerGaps) != 1 {
		t.Fatalf("expected one gap, got %d", len(report.VillagerGaps))
	}
	gap := report.VillagerGaps[0]
	if gap.StartTime != 20 || gap.EndTime != 50 || gap.Duration != 30 || gap.PlayerID != 0 {
		t.Fatalf("unexpected gap %+v", gap)
	}

	report = a.Analyze(Input{
		Events: []buildorder.Event{
			event(0, 0, buildorder.KindBuildUnit, villager),
			event(15, 0, buildorder.KindBuildUnit, villager),
		},
		PlayerIDs: []uint32{1000},
		Duration:  60,
	})
	if len(report.VillagerGaps) != 0 {
		t.Fatalf("expected no gap for back to back production, got %+v", report.VillagerGaps)
	}
}

func TestCombatIntensityTiers(t *testing.T) {
	var commands []stream.Command
	for i := 0; i < 5; i++ {
		commands = append(commands, attack(float64(100+2*i), 1000, 10+float64(i), 10, 2))
	}
	got := detectEngagements(commands, []uint32{1000, 1002})
	if len(got) != 1 || got[0].Intensity != IntensityLow || got[0].Commands != 5 {
		t.Fatalf("expected one low intensity engagement, got %+v", got)
	}
	if got[0].EstimatedWinner == nil || *got[0].EstimatedWinner != 0 || got[0].UnitsP1 != 10 {
		t.Fatalf("expected player 1 to be the estimated winner, got %+v", got[0])
	}
	if got[0].CenterX != 12 || got[0].CenterZ != 10 {
		t.Fatalf("unexpected centre %v,%v", got[0].CenterX, got[0].CenterZ)
	}

	for i := 0; i < 10; i++ {
		commands = append(commands, attack(float64(110+i), 1002, 15, 12, 2))
	}
	got = detectEngagements(commands, []uint32{1000, 1002})
	if len(got) != 1 || got[0].Intensity != IntensityMedium {
		t.Fatalf("expected the cluster to grow to medium intensity, got %+v", got)
	}
	if got[0].EstimatedWinner == nil || *got[0].EstimatedWinner != 1 {
		t.Fatalf("expected player 2 to out-commit player 1, got %+v", got[0])
	}
}

func TestCombatWinnerNeedsMoreThanMargin(t *testing.T) {
	commands := []stream.Command{
		attack(50, 1000, 5, 5, 13),
		attack(51, 1002, 6, 6, 5),
		attack(52, 1002, 6, 6, 5),
	}
	got := detectEngagements(commands, []uint32{1000, 1002})
	if len(got) != 1 || got[0].UnitsP1 != 13 || got[0].UnitsP2 != 10 {
		t.Fatalf("expected one 13 vs 10 engagement, got %+v", got)
	}
	if got[0].EstimatedWinner != nil {
		t.Fatalf("expected an exact 1.3 ratio to stay undecided, got winner %d", *got[0].EstimatedWinner)
	}

	commands[0].UnitCount = 14
	got = detectEngagements(commands, []uint32{1000, 1002})
	if got[0].EstimatedWinner == nil || *got[0].EstimatedWinner != 0 {
		t.Fatalf("expected 14 vs 10 to favour player 1, got %+v", got[0])
	}
}

func TestCombatDropsNoiseAndSplitsDistantClusters(t *testing.T) {
	commands := []stream.Command{
		attack(0, 1000, 0, 0, 1),
		attack(1, 1000, 0, 0, 1),
		attack(100, 1000, 0, 0, 1),
		attack(101, 1002, 1, 1, 1),
		attack(102, 1002, 2, 2, 1),
		attack(103, 1002, 300, 300, 1),
		attack(104, 9999, 2, 2, 1),
		{Time: 105, Type: stream.AttackGround, PlayerID: 1000},
	}
	got := detectEngagements(commands, []uint32{1000, 1002})
	if len(got) != 1 || got[0].StartTime != 100 || got[0].EndTime != 102 {
		t.Fatalf("expected only the middle cluster, got %+v", got)
	}
	if got[0].EstimatedWinner == nil || *got[0].EstimatedWinner != 1 {
		t.Fatalf("expected 2 vs 1 to favour player 2, got %+v", got[0])
	}
}

func TestAgePhaseBoundaries(t *testing.T) {
	a := newTestAnalyzer()
	report := a.Analyze(Input{
		Events: []buildorder.Event{
			event(30, 0, buildorder.KindBuildUnit, spearman),
			event(200, 0, buildorder.KindConstruct, councilHall),
			event(240, 0, buildorder.KindBuildUnit, longbow),
			event(260, 0, buildorder.KindBuildUnit, longbow),
			event(700, 0, buildorder.KindUpgrade, castleTech),
		},
		PlayerIDs: []uint32{1000},
		Duration:  900,
	})
	if len(report.AgePhases) != 3 {
		t.Fatalf("expected three phases, got %d", len(report.AgePhases))
	}
	want := [][2]float64{{0, 240}, {240, 700}, {700, 900}}
	for i, phase := range report.AgePhases {
		if phase.AgeNumber != i+1 || phase.StartTime != want[i][0] || phase.EndTime != want[i][1] {
			t.Fatalf("phase %d: unexpected window %+v", i, phase)
		}
	}
	feudal := report.AgePhases[1]
	if feudal.AgeName != "Feudal Age" || feudal.MilitaryProduced != 2 || feudal.MilitarySpent != 180 {
		t.Fatalf("unexpected feudal aggregation %+v", feudal)
	}
	if len(feudal.KeyUnits) != 1 || feudal.KeyUnits[0].Count != 2 {
		t.Fatalf("expected longbowmen grouped, got %+v", feudal.KeyUnits)
	}
	if feudal.Landmark == nil || *feudal.Landmark != "Council Hall" || *feudal.LandmarkIcon != "council.png" {
		t.Fatalf("expected landmark attached to the feudal phase, got %v", feudal.Landmark)
	}
	if report.AgePhases[0].BuildingsConstructed != 1 || report.AgePhases[2].TechnologiesResearched != 1 {
		t.Fatalf("unexpected dark/castle aggregation")
	}
}

func TestTimelinesAreCumulative(t *testing.T) {
	a := newTestAnalyzer()
	report := a.Analyze(Input{
		Events: []buildorder.Event{
			event(5, 0, buildorder.KindBuildUnit, villager),
			event(31, 0, buildorder.KindBuildUnit, spearman),
			event(40, 1, buildorder.KindConstruct, townCenter),
			event(59, 1, buildorder.KindUpgrade, castleTech),
		},
		PlayerIDs: []uint32{1000, 1002},
		Duration:  60,
	})
	if len(report.ProductionTimeline) != 6 || len(report.EconomyTimeline) != 6 {
		t.Fatalf("expected three buckets per player, got %d/%d", len(report.ProductionTimeline), len(report.EconomyTimeline))
	}
	last := report.ProductionTimeline[2]
	if last.Time != 60 || last.Villagers != 1 || last.Military != 1 {
		t.Fatalf("unexpected production point %+v", last)
	}
	if first := report.ProductionTimeline[0]; first.Villagers != 0 {
		t.Fatalf("event at 5s must not be counted at t=0")
	}
	eco := report.EconomyTimeline[2]
	if eco.TotalSpent != 130 || eco.MilitarySpent != 80 || eco.EconomicSpent != 50 {
		t.Fatalf("unexpected economy snapshot %+v", eco)
	}
	if eco.MilitaryRatio != 80.0/130.0 {
		t.Fatalf("unexpected military ratio %v", eco.MilitaryRatio)
	}
	p2 := report.EconomyTimeline[5]
	if p2.PlayerID != 1 || p2.TechSpent != 100 || p2.EconomicSpent != 700 {
		t.Fatalf("unexpected second player snapshot %+v", p2)
	}
}

func TestKeyMoments(t *testing.T) {
	a := newTestAnalyzer()
	events := []buildorder.Event{
		event(60, 0, buildorder.KindBuildUnit, spearman),
		event(90, 0, buildorder.KindBuildUnit, spearman),
		event(300, 1, buildorder.KindConstruct, townCenter),
		event(400, 1, buildorder.KindUpgrade, wheelbarrow),
		event(410, 1, buildorder.KindUpgrade, wheelbarrow),
		event(420, 1, buildorder.KindUpgrade, wheelbarrow),
		event(425, 1, buildorder.KindUpgrade, wheelbarrow),
		event(500, 1, buildorder.KindBuildUnit, longbow),
	}
	report := a.Analyze(Input{Events: events, PlayerIDs: []uint32{1000, 1002}, Duration: 600})

	count := make(map[MomentType]int)
	for i, m := range report.KeyMoments {
		count[m.Type]++
		if i > 0 && report.KeyMoments[i-1].Time > m.Time {
			t.Fatalf("key moments must be sorted by time")
		}
	}
	if count[MomentFirstMilitary] != 2 || count[MomentExpansion] != 1 || count[MomentTechSpike] != 1 || count[MomentAgeUp] != 1 {
		t.Fatalf("unexpected moment counts %v", count)
	}
	if report.KeyMoments[0].Description != "Player 1 trains first military unit: Spearman" {
		t.Fatalf("unexpected description %q", report.KeyMoments[0].Description)
	}
}

func TestArmySnapshots(t *testing.T) {
	a := newTestAnalyzer()
	events := []buildorder.Event{
		event(10, 0, buildorder.KindBuildUnit, spearman),
		event(20, 0, buildorder.KindBuildUnit, longbow),
		event(30, 0, buildorder.KindBuildUnit, longbow),
		event(130, 0, buildorder.KindBuildUnit, spearman),
	}
	report := a.Analyze(Input{Events: events, PlayerIDs: []uint32{1000}, Duration: 250})
	// 120, 240, plus the first-military (10s) and feudal (20s) moments
	if len(report.ArmySnapshots) != 4 {
		t.Fatalf("expected 4 snapshots, got %d", len(report.ArmySnapshots))
	}
	at120 := report.ArmySnapshots[2]
	if at120.Time != 120 || at120.TotalSupply != 3 || len(at120.Units) != 2 || at120.Units[0].Name != "Longbowman" {
		t.Fatalf("unexpected snapshot %+v", at120)
	}
	at240 := report.ArmySnapshots[3]
	if at240.Units[0].Name != "Longbowman" || at240.Units[0].Count != 2 || at240.Units[1].Count != 2 {
		t.Fatalf("expected ties ordered by name, got %+v", at240.Units)
	}
}

func TestAnalyzeEmptyInput(t *testing.T) {
	report := newTestAnalyzer().Analyze(Input{})
	if report.VillagerGaps == nil || report.KeyMoments == nil || len(report.CombatEngagements) != 0 {
		t.Fatalf("expected empty but non-nil analytics, got %+v", report)
	}
}

func TestFormatClock(t *testing.T) {
	if got := FormatClock(125.7); got != "2:05" {
		t.Fatalf("unexpected clock %q", got)
	}
}
