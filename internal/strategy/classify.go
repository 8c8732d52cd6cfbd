// Package strategy classifies a player's opening from their build order.
package strategy

import (
	"fmt"
	"math"

	"aoe4replay/analyzer/internal/analysis"
)

// Archetype is a strategy label.
type Archetype string

const (
	FeudalRush     Archetype = "Feudal Rush"
	FastCastle     Archetype = "Fast Castle"
	SemiFastCastle Archetype = "Semi Fast Castle"
	BoomDoubleTC   Archetype = "Boom: Double TC"
	BoomTrade      Archetype = "Boom: Trade"
	TowerRush      Archetype = "Tower Rush"
	Standard       Archetype = "Standard"
)

// Archetypes lists the scored archetypes. Ties resolve to the earlier entry.
var Archetypes = []Archetype{FeudalRush, FastCastle, SemiFastCastle, BoomDoubleTC, BoomTrade, TowerRush}

// Thresholds in seconds and counts.
const (
	EarlyMilitaryWindow = 120.0
	FastFeudalBefore    = 300.0
	RushCastleBefore    = 780.0
	FastCastleBefore    = 720.0
	SemiFastCastleUntil = 900.0
	SecondTCBefore      = 420.0
	EarlyTowerBefore    = 330.0

	MinWinningScore    = 2
	ConfidenceScale    = 6.0
	StandardConfidence = 0.5
)

// NotReached marks an age or milestone that never happened.
var NotReached = math.Inf(1)

// Evidence is the per-player input of the classifier. Times use NotReached when absent.
type Evidence struct {
	FeudalTime           float64
	CastleTime           float64
	EarlyMilitary        int
	MilitaryBeforeCastle int
	MilitaryBuildings    int
	TownCenters          int
	SecondTCTime         float64
	EarlyTowers          int
	TotalMilitary        int
	Traders              int
	Markets              int
}

// Classification is the classifier verdict.
type Classification struct {
	Strategy   Archetype
	Confidence float64
	Reasons    []string
	Scores     map[Archetype]int
}

type scoreSheet struct {
	scores  map[Archetype]int
	reasons map[Archetype][]string
}

func (s *scoreSheet) add(a Archetype, weight int, reason string) {
	s.scores[a] += weight
	if reason == "" {
		return
	}
	for _, existing := range s.reasons[a] {
		if existing == reason {
			return
		}
	}
	s.reasons[a] = append(s.reasons[a], reason)
}

func reached(t float64) bool { return !math.IsInf(t, 1) }

// Score evaluates every archetype rule against the evidence.
func Score(ev Evidence) (map[Archetype]int, map[Archetype][]string) {
	s := &scoreSheet{scores: make(map[Archetype]int), reasons: make(map[Archetype][]string)}
	for _, a := range Archetypes {
		s.scores[a] = 0
	}
	clock := analysis.FormatClock

	//1.- Feudal Rush.
	if ev.FeudalTime < FastFeudalBefore {
		s.add(FeudalRush, 2, "Fast feudal at "+clock(ev.FeudalTime))
	}
	if ev.EarlyMilitary >= 5 {
		s.add(FeudalRush, 2, fmt.Sprintf("%d military units in early feudal", ev.EarlyMilitary))
	}
	if ev.EarlyMilitary >= 10 {
		s.add(FeudalRush, 1, "Sustained early military production")
	}
	if ev.MilitaryBuildings >= 2 && ev.TownCenters == 1 {
		s.add(FeudalRush, 1, fmt.Sprintf("%d military buildings on a single Town Center", ev.MilitaryBuildings))
	}
	if ev.CastleTime < RushCastleBefore {
		s.add(FeudalRush, -3, "")
	}

	//2.- Fast Castle.
	if ev.CastleTime < FastCastleBefore {
		s.add(FastCastle, 3, "Fast castle at "+clock(ev.CastleTime))
	}
	if ev.EarlyMilitary <= 2 && reached(ev.FeudalTime) {
		s.add(FastCastle, 1, "Minimal feudal military")
	}
	if reached(ev.CastleTime) && ev.MilitaryBeforeCastle <= 3 {
		s.add(FastCastle, 1, fmt.Sprintf("%d military units before castle", ev.MilitaryBeforeCastle))
	}

	//3.- Semi Fast Castle.
	if ev.CastleTime >= FastCastleBefore && ev.CastleTime < SemiFastCastleUntil {
		s.add(SemiFastCastle, 2, "Castle at "+clock(ev.CastleTime))
	}
	if ev.EarlyMilitary >= 3 && ev.EarlyMilitary <= 6 && reached(ev.CastleTime) {
		s.add(SemiFastCastle, 1, "Moderate feudal military before castle")
	}

	//4.- Town Center boom.
	if ev.SecondTCTime < SecondTCBefore {
		s.add(BoomDoubleTC, 3, "2nd TC at "+clock(ev.SecondTCTime))
	}
	if ev.TownCenters >= 3 {
		s.add(BoomDoubleTC, 2, fmt.Sprintf("%d Town Centers built", ev.TownCenters))
	}
	if ev.EarlyMilitary <= 3 && ev.TownCenters >= 2 {
		s.add(BoomDoubleTC, 1, "Light military while expanding")
	}

	//5.- Trade boom.
	if ev.Traders >= 5 {
		s.add(BoomTrade, 3, fmt.Sprintf("%d traders produced", ev.Traders))
	}
	if ev.Markets >= 2 {
		s.add(BoomTrade, 1, fmt.Sprintf("%d markets built", ev.Markets))
	}
	if ev.Traders >= 10 {
		s.add(BoomTrade, 1, "Large trade network")
	}

	//6.- Tower Rush.
	switch {
	case ev.EarlyTowers >= 2:
		s.add(TowerRush, 4, fmt.Sprintf("%d towers before 5:30", ev.EarlyTowers))
	case ev.EarlyTowers == 1:
		s.add(TowerRush, 2, "Tower before 5:30")
	}
	return s.scores, s.reasons
}

// Classify picks the highest scoring archetype. Scores below MinWinningScore yield Standard.
func Classify(ev Evidence) Classification {
	scores, reasons := Score(ev)
	best, bestScore := Standard, 0
	for _, a := range Archetypes {
		if scores[a] > bestScore {
			best, bestScore = a, scores[a]
		}
	}
	if bestScore < MinWinningScore {
		return Classification{
			Strategy:   Standard,
			Confidence: StandardConfidence,
			Reasons:    []string{"No dominant strategy pattern detected"},
			Scores:     scores,
		}
	}
	return Classification{
		Strategy:   best,
		Confidence: math.Min(float64(bestScore)/ConfidenceScale, 1),
		Reasons:    append([]string(nil), reasons[best]...),
		Scores:     scores,
	}
}
