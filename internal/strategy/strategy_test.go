package strategy

import (
	"testing"

	"aoe4replay/analyzer/internal/buildorder"
	"aoe4replay/analyzer/internal/catalog"
)

var (
	spearman   = catalog.Entry{ID: 1, Name: "Spearman", Kind: catalog.KindUnit, BaseID: "spearman", Age: 1, DisplayClass: "Light Melee Infantry", Classes: []string{"military"}, Costs: &catalog.Costs{Food: 60, Wood: 20, Total: 80}}
	horseman   = catalog.Entry{ID: 2, Name: "Horseman", Kind: catalog.KindUnit, BaseID: "horseman", Age: 2, Classes: []string{"military"}, Costs: &catalog.Costs{Food: 100, Wood: 20, Total: 120}}
	barracks   = catalog.Entry{ID: 3, Name: "Barracks", Kind: catalog.KindBuilding, BaseID: "barracks", Age: 1, Classes: []string{"military_production_building"}, Costs: &catalog.Costs{Wood: 150, Total: 150}}
	townCenter = catalog.Entry{ID: 4, Name: "Town Center", Kind: catalog.KindBuilding, BaseID: "town-center", Age: 1, Classes: []string{"town_center"}, Costs: &catalog.Costs{Wood: 400, Stone: 300, Total: 700}}
	feudalUp   = catalog.Entry{ID: 5, Name: "Feudal Age", Kind: catalog.KindTechnology, Age: 1, Classes: []string{"scar_feudal_age_upgrade"}}
	castleUp   = catalog.Entry{ID: 6, Name: "Castle Age", Kind: catalog.KindTechnology, Age: 2, Classes: []string{"scar_castle_age_upgrade"}}
	outpost    = catalog.Entry{ID: 7, Name: "Outpost", Kind: catalog.KindBuilding, BaseID: "outpost", Age: 1, Classes: []string{"outpost"}, Costs: &catalog.Costs{Wood: 100, Total: 100}}
	trader     = catalog.Entry{ID: 8, Name: "Trader", Kind: catalog.KindUnit, BaseID: "trader", Age: 2, Classes: []string{"trader"}}
	market     = catalog.Entry{ID: 9, Name: "Market", Kind: catalog.KindBuilding, BaseID: "market", Age: 1, Classes: []string{"market"}}
)

func ev(t float64, kind buildorder.EventKind, entry catalog.Entry) buildorder.Event {
	return buildorder.Event{Time: t, Kind: kind, Entry: entry, AgeUp: catalog.DefaultTagRules().AgeUpOf(entry)}
}

func TestClassifyFeudalRush(t *testing.T) {
	got := Classify(Evidence{FeudalTime: 280, CastleTime: NotReached, SecondTCTime: NotReached, EarlyMilitary: 8, MilitaryBuildings: 2, TownCenters: 1})
	if got.Strategy != FeudalRush {
		t.Fatalf("expected feudal rush, got %s (%v)", got.Strategy, got.Scores)
	}
	if got.Scores[FeudalRush] != 5 || got.Confidence != 5.0/6.0 {
		t.Fatalf("unexpected score %d confidence %v", got.Scores[FeudalRush], got.Confidence)
	}
	if len(got.Reasons) != 3 || got.Reasons[0] != "Fast feudal at 4:40" {
		t.Fatalf("unexpected reasons %v", got.Reasons)
	}
}

func TestClassifyFastCastlePenalisesRush(t *testing.T) {
	got := Classify(Evidence{FeudalTime: 290, CastleTime: 650, SecondTCTime: NotReached, EarlyMilitary: 1, MilitaryBeforeCastle: 1, TownCenters: 1})
	if got.Strategy != FastCastle || got.Scores[FeudalRush] != -1 {
		t.Fatalf("expected fast castle with penalised rush, got %s %v", got.Strategy, got.Scores)
	}
	if got.Scores[FastCastle] != 5 {
		t.Fatalf("expected fast castle score 5, got %d", got.Scores[FastCastle])
	}
	for _, reason := range got.Reasons {
		if reason == "Fast feudal at 4:50" {
			t.Fatalf("reasons must come from the winning archetype only: %v", got.Reasons)
		}
	}
}

func TestClassifyStandardAndTies(t *testing.T) {
	got := Classify(Evidence{FeudalTime: NotReached, CastleTime: NotReached, SecondTCTime: NotReached, TownCenters: 1})
	if got.Strategy != Standard || got.Confidence != StandardConfidence {
		t.Fatalf("expected standard, got %+v", got)
	}

	// semi fast castle (2) ties with tower rush (2); the earlier archetype wins
	got = Classify(Evidence{FeudalTime: NotReached, CastleTime: 800, SecondTCTime: NotReached, TownCenters: 1, EarlyTowers: 1, MilitaryBeforeCastle: 10})
	if got.Strategy != SemiFastCastle {
		t.Fatalf("expected tie to resolve to semi fast castle, got %s %v", got.Strategy, got.Scores)
	}
}

func TestFeudalRushScoreIsMonotonicInEarlyMilitary(t *testing.T) {
	base := Evidence{FeudalTime: 320, CastleTime: 1000, SecondTCTime: NotReached, MilitaryBuildings: 1, TownCenters: 1}
	prev := -1 << 31
	for n := 0; n <= 20; n++ {
		base.EarlyMilitary = n
		scores, _ := Score(base)
		if scores[FeudalRush] < prev {
			t.Fatalf("feudal rush score dropped from %d to %d at %d units", prev, scores[FeudalRush], n)
		}
		prev = scores[FeudalRush]
	}
}

func TestClassifyBoomsAndTowers(t *testing.T) {
	got := Classify(Evidence{FeudalTime: NotReached, CastleTime: NotReached, SecondTCTime: 400, TownCenters: 3})
	if got.Strategy != BoomDoubleTC || got.Confidence != 1 {
		t.Fatalf("expected capped double tc boom, got %+v", got)
	}
	got = Classify(Evidence{FeudalTime: NotReached, CastleTime: NotReached, SecondTCTime: NotReached, TownCenters: 1, Traders: 12, Markets: 2})
	if got.Strategy != BoomTrade || got.Scores[BoomTrade] != 5 {
		t.Fatalf("expected trade boom, got %+v", got)
	}
	got = Classify(Evidence{FeudalTime: NotReached, CastleTime: NotReached, SecondTCTime: NotReached, TownCenters: 1, EarlyTowers: 2})
	if got.Strategy != TowerRush || got.Scores[TowerRush] != 4 {
		t.Fatalf("expected tower rush, got %+v", got)
	}
}

func TestAnalyzePlayer(t *testing.T) {
	events := []buildorder.Event{
		ev(60, buildorder.KindConstruct, barracks),
		ev(90, buildorder.KindBuildUnit, spearman),
		ev(120, buildorder.KindConstruct, outpost),
		ev(200, buildorder.KindUpgrade, feudalUp),
		ev(250, buildorder.KindBuildUnit, spearman),
		ev(260, buildorder.KindBuildUnit, horseman),
		ev(300, buildorder.KindConstruct, townCenter),
		ev(310, buildorder.KindBuildUnit, trader),
		ev(320, buildorder.KindConstruct, market),
		ev(900, buildorder.KindUpgrade, castleUp),
	}
	c := New(catalog.DefaultTagRules())
	ev := c.Gather(events)
	if ev.FeudalTime != 200 || ev.CastleTime != 900 || ev.EarlyMilitary != 3 || ev.MilitaryBeforeCastle != 3 {
		t.Fatalf("unexpected evidence %+v", ev)
	}
	if ev.TownCenters != 2 || ev.SecondTCTime != 300 || ev.EarlyTowers != 1 || ev.Traders != 1 || ev.Markets != 1 {
		t.Fatalf("unexpected evidence %+v", ev)
	}

	got := c.AnalyzePlayer(events, 1)
	if got.PlayerID != 1 || got.CurrentAge != 3 || len(got.AgeUpTimings) != 2 {
		t.Fatalf("unexpected ages %+v", got.AgeUpTimings)
	}
	if got.AgeUpTimings[0].LandmarkName != "Feudal Age" || got.AgeUpTimings[0].AgeName != "Feudal Age" {
		t.Fatalf("unexpected feudal timing %+v", got.AgeUpTimings[0])
	}
	if got.FirstMilitaryUnit == nil || got.FirstMilitaryUnit.Time != 90 || got.FirstMilitaryBuilding.Name != "Barracks" {
		t.Fatalf("unexpected milestones %+v %+v", got.FirstMilitaryUnit, got.FirstMilitaryBuilding)
	}
	if len(got.UnitComposition) != 2 || got.UnitComposition[0].Count != 2 || got.UnitComposition[0].DisplayClass != "Light Melee Infantry" {
		t.Fatalf("unexpected composition %+v", got.UnitComposition)
	}
	if got.TownCenterCount != 2 || got.MilitaryBuildingCount != 1 || got.TotalMilitaryUnits != 3 || len(got.BuildingBreakdown) != 4 {
		t.Fatalf("unexpected counts %+v", got)
	}
	spend := got.ResourceSpending
	if spend.Total != 1230 || spend.ByCategory.Military != 280 || spend.ByCategory.Buildings != 950 || spend.ByCategory.Economic != 670 {
		t.Fatalf("unexpected spending %+v", spend)
	}
}

func TestAnalyzeMatchCoversEveryPlayer(t *testing.T) {
	events := []buildorder.Event{ev(10, buildorder.KindBuildUnit, spearman)}
	events[0].PlayerIndex = 1
	got := New(catalog.DefaultTagRules()).AnalyzeMatch(events, 2)
	if len(got) != 2 || got[0].TotalMilitaryUnits != 0 || got[1].TotalMilitaryUnits != 1 {
		t.Fatalf("unexpected match analysis %+v", got)
	}
}
