package analysis

import (
	"fmt"
	"sort"

	"aoe4replay/analyzer/internal/buildorder"
)

// phaseTopN caps the key unit, building and technology lists of an age phase.
const phaseTopN = 5

// KeyTech is a researched technology listed in an age phase.
type KeyTech struct {
	Name string `json:"name"`
	Icon string `json:"icon"`
}

// AgePhase aggregates one player's activity within one age window [StartTime, EndTime).
type AgePhase struct {
	AgeNumber              int            `json:"ageNumber"`
	AgeName                string         `json:"ageName"`
	PlayerID               int            `json:"playerId"`
	StartTime              float64        `json:"startTime"`
	EndTime                float64        `json:"endTime"`
	Landmark               *string        `json:"landmark"`
	LandmarkIcon           *string        `json:"landmarkIcon"`
	VillagersProduced      int            `json:"villagersProduced"`
	MilitaryProduced       int            `json:"militaryProduced"`
	BuildingsConstructed   int            `json:"buildingsConstructed"`
	TechnologiesResearched int            `json:"technologiesResearched"`
	TotalSpent             float64        `json:"totalSpent"`
	MilitarySpent          float64        `json:"militarySpent"`
	KeyUnits               []CountedEntry `json:"keyUnits"`
	KeyBuildings           []CountedEntry `json:"keyBuildings"`
	KeyTechs               []KeyTech      `json:"keyTechs"`
}

func ageLabel(age int) string {
	if name := buildorder.AgeName(age); name != "" {
		return name
	}
	return fmt.Sprintf("Age %d", age)
}

func (a *Analyzer) agePhases(byPlayer [][]buildorder.Event, duration float64) []AgePhase {
	phases := []AgePhase{}
	for pid, events := range byPlayer {
		transitions := buildorder.CatalogTransitions(events)
		flagged := buildorder.FlaggedTransitions(events)
		for i, tr := range transitions {
			end := duration
			if i+1 < len(transitions) {
				end = transitions[i+1].Time
			}
			phase := a.aggregatePhase(events, tr.Time, end)
			phase.AgeNumber = tr.Age
			phase.AgeName = ageLabel(tr.Age)
			phase.PlayerID = pid
			phase.StartTime = tr.Time
			phase.EndTime = end
			if e, ok := flagged[tr.Age]; ok {
				name, icon := e.Name, e.Icon
				phase.Landmark, phase.LandmarkIcon = &name, &icon
			}
			phases = append(phases, phase)
		}
	}
	sort.SliceStable(phases, func(i, j int) bool {
		if phases[i].AgeNumber != phases[j].AgeNumber {
			return phases[i].AgeNumber < phases[j].AgeNumber
		}
		return phases[i].PlayerID < phases[j].PlayerID
	})
	return phases
}

func (a *Analyzer) aggregatePhase(events []buildorder.Event, start, end float64) AgePhase {
	var phase AgePhase
	units, buildings := newTally(), newTally()
	techs := []KeyTech{}
	for _, e := range events {
		if e.Time < start || e.Time >= end {
			continue
		}
		cost := e.TotalCost()
		phase.TotalSpent += cost
		switch e.Kind {
		case buildorder.KindBuildUnit:
			if a.rules.IsVillager(e.Entry) {
				phase.VillagersProduced++
			} else if a.rules.IsMilitaryUnit(e.Entry) {
				phase.MilitaryProduced++
				phase.MilitarySpent += cost
				units.add(e.Entry)
			}
		case buildorder.KindConstruct:
			phase.BuildingsConstructed++
			buildings.add(e.Entry)
		case buildorder.KindUpgrade:
			phase.TechnologiesResearched++
			techs = append(techs, KeyTech{Name: e.Name, Icon: e.Icon})
		}
	}
	phase.KeyUnits = units.top(phaseTopN)
	phase.KeyBuildings = buildings.top(phaseTopN)
	if len(techs) > phaseTopN {
		techs = techs[:phaseTopN]
	}
	phase.KeyTechs = techs
	return phase
}
