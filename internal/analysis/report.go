// Package analysis derives match analytics from build-order events and raw commands.
package analysis

import (
	"sort"

	"aoe4replay/analyzer/internal/buildorder"
	"aoe4replay/analyzer/internal/catalog"
	"aoe4replay/analyzer/internal/stream"
)

// Report bundles every derived analytic of one match.
type Report struct {
	ProductionTimeline []ProductionPoint  `json:"productionTimeline"`
	VillagerGaps       []VillagerGap      `json:"villagerGaps"`
	CombatEngagements  []CombatEngagement `json:"combatEngagements"`
	ArmySnapshots      []ArmySnapshot     `json:"armySnapshots"`
	EconomyTimeline    []EconomySnapshot  `json:"economyTimeline"`
	KeyMoments         []KeyMoment        `json:"keyMoments"`
	AgePhases          []AgePhase         `json:"agePhases"`
}

// Input is the data the analyzer consumes. Events carry dense player indices; commands carry
// the raw identifiers listed in PlayerIDs.
type Input struct {
	Events    []buildorder.Event
	Commands  []stream.Command
	PlayerIDs []uint32
	Duration  float64
}

// Analyzer evaluates the classification predicates of one catalog.
type Analyzer struct {
	rules catalog.TagRules
}

// New creates an analyzer bound to the predicate table.
func New(rules catalog.TagRules) *Analyzer {
	return &Analyzer{rules: rules}
}

// Analyze computes the full report. It never fails: empty inputs yield empty analytics.
func (a *Analyzer) Analyze(in Input) Report {
	players := playerIndices(in.PlayerIDs)
	byPlayer := make([][]buildorder.Event, len(players))
	for _, p := range players {
		byPlayer[p] = buildorder.ForPlayer(in.Events, p)
	}

	//1.- Timelines and gaps only look at build-order events.
	report := Report{
		ProductionTimeline: a.productionTimeline(byPlayer, in.Duration),
		VillagerGaps:       a.villagerGaps(byPlayer),
		CombatEngagements:  detectEngagements(in.Commands, in.PlayerIDs),
		EconomyTimeline:    a.economyTimeline(byPlayer, in.Duration),
	}

	//2.- Key moments depend on the engagements.
	report.KeyMoments = a.keyMoments(in.Events, byPlayer, report.CombatEngagements)
	report.AgePhases = a.agePhases(byPlayer, in.Duration)

	//3.- Army snapshots at fixed intervals plus every key moment.
	report.ArmySnapshots = a.armySnapshots(byPlayer, snapshotTimes(in.Duration, report.KeyMoments))
	return report
}

func playerIndices(ids []uint32) []int {
	out := make([]int, len(ids))
	for i := range ids {
		out[i] = i
	}
	return out
}

// CountedEntry is a catalog entry with an occurrence count.
type CountedEntry struct {
	Name   string `json:"name"`
	Icon   string `json:"icon"`
	Count  int    `json:"count"`
	BaseID string `json:"baseId,omitempty"`
}

// tally groups entries by catalog group key keeping first-seen order for equal counts.
type tally struct {
	index map[string]int
	items []CountedEntry
}

func newTally() *tally {
	return &tally{index: make(map[string]int)}
}

func (t *tally) add(e catalog.Entry) {
	key := e.GroupKey()
	if i, ok := t.index[key]; ok {
		t.items[i].Count++
		return
	}
	t.index[key] = len(t.items)
	t.items = append(t.items, CountedEntry{Name: e.Name, Icon: e.Icon, Count: 1, BaseID: e.BaseID})
}

// top returns up to n entries by descending count. n <= 0 returns all of them.
func (t *tally) top(n int) []CountedEntry {
	out := make([]CountedEntry, len(t.items))
	copy(out, t.items)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
