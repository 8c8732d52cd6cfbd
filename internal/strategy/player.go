package strategy

import (
	"sort"

	"aoe4replay/analyzer/internal/buildorder"
	"aoe4replay/analyzer/internal/catalog"
)

// AgeUpTiming is when a player reached an age.
type AgeUpTiming struct {
	Age          int     `json:"age"`
	AgeName      string  `json:"ageName"`
	Time         float64 `json:"time"`
	LandmarkName string  `json:"landmarkName,omitempty"`
	LandmarkIcon string  `json:"landmarkIcon,omitempty"`
}

// Milestone is the first occurrence of a notable event.
type Milestone struct {
	Time float64 `json:"time"`
	Name string  `json:"name"`
	Icon string  `json:"icon"`
}

// UnitCount is one unit or building group.
type UnitCount struct {
	Name         string `json:"name"`
	Icon         string `json:"icon"`
	Count        int    `json:"count"`
	BaseID       string `json:"baseId"`
	DisplayClass string `json:"displayClass,omitempty"`
}

// CategorySpend splits spending by purpose.
type CategorySpend struct {
	Military   float64 `json:"military"`
	Economic   float64 `json:"economic"`
	Technology float64 `json:"technology"`
	Buildings  float64 `json:"buildings"`
}

// ResourceSpending sums catalog costs of everything a player produced.
type ResourceSpending struct {
	Food       float64       `json:"food"`
	Wood       float64       `json:"wood"`
	Stone      float64       `json:"stone"`
	Gold       float64       `json:"gold"`
	Total      float64       `json:"total"`
	ByCategory CategorySpend `json:"byCategory"`
}

// PlayerAnalysis is the classifier output for one player.
type PlayerAnalysis struct {
	PlayerID              int              `json:"playerId"`
	Strategy              Archetype        `json:"strategy"`
	StrategyConfidence    float64          `json:"strategyConfidence"`
	StrategyReasons       []string         `json:"strategyReasons"`
	AgeUpTimings          []AgeUpTiming    `json:"ageUpTimings"`
	CurrentAge            int              `json:"currentAge"`
	FirstMilitaryUnit     *Milestone       `json:"firstMilitaryUnit"`
	FirstMilitaryBuilding *Milestone       `json:"firstMilitaryBuilding"`
	UnitComposition       []UnitCount      `json:"unitComposition"`
	BuildingBreakdown     []UnitCount      `json:"buildingBreakdown"`
	ResourceSpending      ResourceSpending `json:"resourceSpending"`
	TownCenterCount       int              `json:"townCenterCount"`
	MilitaryBuildingCount int              `json:"militaryBuildingCount"`
	TotalMilitaryUnits    int              `json:"totalMilitaryUnits"`
}

// Classifier evaluates players against one predicate table.
type Classifier struct {
	rules catalog.TagRules
}

// New creates a classifier bound to the predicate table.
func New(rules catalog.TagRules) *Classifier {
	return &Classifier{rules: rules}
}

// AnalyzeMatch classifies every player index below players.
func (c *Classifier) AnalyzeMatch(events []buildorder.Event, players int) []PlayerAnalysis {
	out := make([]PlayerAnalysis, 0, players)
	for pid := 0; pid < players; pid++ {
		out = append(out, c.AnalyzePlayer(buildorder.ForPlayer(events, pid), pid))
	}
	return out
}

// Gather computes the classifier evidence from one player's events in time order.
func (c *Classifier) Gather(events []buildorder.Event) Evidence {
	ages := buildorder.AgeTimes(events)
	ev := Evidence{
		FeudalTime:   NotReached,
		CastleTime:   NotReached,
		SecondTCTime: NotReached,
		TownCenters:  1,
	}
	if t, ok := ages[buildorder.FeudalAge]; ok {
		ev.FeudalTime = t
	}
	if t, ok := ages[buildorder.CastleAge]; ok {
		ev.CastleTime = t
	}
	for _, e := range events {
		switch e.Kind {
		case buildorder.KindBuildUnit:
			if c.rules.IsTrader(e.Entry) {
				ev.Traders++
			}
			if !c.rules.IsMilitaryUnit(e.Entry) {
				continue
			}
			ev.TotalMilitary++
			if reached(ev.FeudalTime) && e.Time < ev.FeudalTime+EarlyMilitaryWindow {
				ev.EarlyMilitary++
			}
			if e.Time < ev.CastleTime {
				ev.MilitaryBeforeCastle++
			}
		case buildorder.KindConstruct:
			if c.rules.IsMilitaryBuilding(e.Entry) {
				ev.MilitaryBuildings++
			}
			if c.rules.IsTownCenter(e.Entry) {
				if ev.TownCenters == 1 {
					ev.SecondTCTime = e.Time
				}
				ev.TownCenters++
			}
			if c.rules.IsTower(e.Entry) && e.Time < EarlyTowerBefore {
				ev.EarlyTowers++
			}
			if c.rules.IsMarket(e.Entry) {
				ev.Markets++
			}
		}
	}
	return ev
}

// AnalyzePlayer builds the full per-player report. events must belong to player.
func (c *Classifier) AnalyzePlayer(events []buildorder.Event, player int) PlayerAnalysis {
	verdict := Classify(c.Gather(events))
	out := PlayerAnalysis{
		PlayerID:           player,
		Strategy:           verdict.Strategy,
		StrategyConfidence: verdict.Confidence,
		StrategyReasons:    verdict.Reasons,
		AgeUpTimings:       ageUpTimings(events),
		CurrentAge:         buildorder.DarkAge,
		TownCenterCount:    1,
	}
	for _, timing := range out.AgeUpTimings {
		if timing.Age > out.CurrentAge {
			out.CurrentAge = timing.Age
		}
	}

	units, buildings := newGroups(), newGroups()
	var military, construction, research, all []*catalog.Costs
	for _, e := range events {
		all = append(all, e.Costs)
		switch e.Kind {
		case buildorder.KindBuildUnit:
			if !c.rules.IsMilitaryUnit(e.Entry) {
				continue
			}
			out.TotalMilitaryUnits++
			military = append(military, e.Costs)
			units.add(e.Entry)
			if out.FirstMilitaryUnit == nil {
				out.FirstMilitaryUnit = &Milestone{Time: e.Time, Name: e.Name, Icon: e.Icon}
			}
		case buildorder.KindConstruct:
			construction = append(construction, e.Costs)
			buildings.add(e.Entry)
			if c.rules.IsTownCenter(e.Entry) {
				out.TownCenterCount++
			}
			if c.rules.IsMilitaryBuilding(e.Entry) {
				out.MilitaryBuildingCount++
				if out.FirstMilitaryBuilding == nil {
					out.FirstMilitaryBuilding = &Milestone{Time: e.Time, Name: e.Name, Icon: e.Icon}
				}
			}
		case buildorder.KindUpgrade:
			research = append(research, e.Costs)
		}
	}
	out.UnitComposition = units.sorted(true)
	out.BuildingBreakdown = buildings.sorted(false)

	spend := sumCosts(all)
	militaryTotal := sumCosts(military).Total
	buildingTotal := sumCosts(construction).Total
	spend.ByCategory = CategorySpend{
		Military:   militaryTotal,
		Economic:   max(0, buildingTotal-militaryTotal),
		Technology: sumCosts(research).Total,
		Buildings:  buildingTotal,
	}
	out.ResourceSpending = spend
	return out
}

func ageUpTimings(events []buildorder.Event) []AgeUpTiming {
	ages := buildorder.AgeTimes(events)
	flagged := buildorder.FlaggedTransitions(events)
	out := make([]AgeUpTiming, 0, len(ages))
	for age, t := range ages {
		timing := AgeUpTiming{Age: age, AgeName: buildorder.AgeName(age), Time: t}
		if e, ok := flagged[age]; ok {
			timing.LandmarkName, timing.LandmarkIcon = e.Name, e.Icon
		}
		out = append(out, timing)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Age < out[j].Age })
	return out
}

// sumCosts adds the four resources. Total is recomputed from them.
func sumCosts(costs []*catalog.Costs) ResourceSpending {
	var s ResourceSpending
	for _, c := range costs {
		if c == nil {
			continue
		}
		s.Food += c.Food
		s.Wood += c.Wood
		s.Stone += c.Stone
		s.Gold += c.Gold
	}
	s.Total = s.Food + s.Wood + s.Stone + s.Gold
	return s
}

type groups struct {
	index map[string]int
	items []UnitCount
}

func newGroups() *groups {
	return &groups{index: make(map[string]int)}
}

func (g *groups) add(e catalog.Entry) {
	key := e.GroupKey()
	if i, ok := g.index[key]; ok {
		g.items[i].Count++
		return
	}
	g.index[key] = len(g.items)
	g.items = append(g.items, UnitCount{Name: e.Name, Icon: e.Icon, Count: 1, BaseID: e.BaseID, DisplayClass: e.DisplayClass})
}

func (g *groups) sorted(withClass bool) []UnitCount {
	out := make([]UnitCount, len(g.items))
	copy(out, g.items)
	if !withClass {
		for i := range out {
			out[i].DisplayClass = ""
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}
