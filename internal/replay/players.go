package replay

import (
	"aoe4replay/analyzer/internal/buildorder"
	"aoe4replay/analyzer/internal/catalog"
	"aoe4replay/analyzer/internal/summary"
)

// Player is one match participant. Fields sourced from the summary section are empty when it
// is unavailable.
type Player struct {
	Index            int    `json:"index"`
	RawID            uint32 `json:"rawId"`
	Name             string `json:"name,omitempty"`
	Civilization     string `json:"civilization,omitempty"`
	CivilizationName string `json:"civilizationName,omitempty"`
	// CivilizationInferred is set when the civilization was guessed from produced entities.
	CivilizationInferred bool   `json:"civilizationInferred,omitempty"`
	Outcome              *int32 `json:"outcome,omitempty"`
	ProfileID            int32  `json:"profileId,omitempty"`
	Age2Timestamp        *int   `json:"age2Timestamp,omitempty"`
	Age3Timestamp        *int   `json:"age3Timestamp,omitempty"`
	Age4Timestamp        *int   `json:"age4Timestamp,omitempty"`
}

func buildPlayers(cat *catalog.Catalog, ids []uint32, events []buildorder.Event, sum *summary.Summary) []Player {
	out := make([]Player, len(ids))
	for i, id := range ids {
		p := Player{Index: i, RawID: id}

		//1.- Summary records line up with the header order.
		if sum != nil && i < len(sum.Players) {
			s := sum.Players[i]
			outcome := s.Outcome
			p.Name = s.PlayerName
			p.Civilization = s.Civ
			p.Outcome = &outcome
			p.ProfileID = s.PlayerProfileID
			p.Age2Timestamp, p.Age3Timestamp, p.Age4Timestamp = s.Age2Timestamp, s.Age3Timestamp, s.Age4Timestamp
		}

		//2.- Fall back to the production footprint.
		if p.Civilization == "" {
			if code := cat.InferCivilization(baseIDs(buildorder.ForPlayer(events, i))); code != "" {
				p.Civilization = code
				p.CivilizationInferred = true
			}
		}
		if p.Civilization != "" {
			p.CivilizationName = catalog.CivName(p.Civilization)
		}
		out[i] = p
	}
	return out
}

func baseIDs(events []buildorder.Event) []string {
	var out []string
	for _, e := range events {
		if e.Kind == buildorder.KindUpgrade || e.BaseID == "" {
			continue
		}
		out = append(out, e.BaseID)
	}
	return out
}
