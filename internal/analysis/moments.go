package analysis

import (
	"fmt"
	"sort"

	"aoe4replay/analyzer/internal/buildorder"
)

// Tech spike detection: TechSpikeCount researches within TechSpikeWindow seconds.
const (
	TechSpikeCount  = 3
	TechSpikeWindow = 30.0
)

// MomentType tags a key moment.
type MomentType string

const (
	MomentAgeUp         MomentType = "age_up"
	MomentFirstMilitary MomentType = "first_military"
	MomentMajorFight    MomentType = "major_fight"
	MomentExpansion     MomentType = "expansion"
	MomentTechSpike     MomentType = "tech_spike"
)

// KeyMoment is a timestamped narrative-worthy event.
type KeyMoment struct {
	Time        float64    `json:"time"`
	Type        MomentType `json:"type"`
	Description string     `json:"description"`
	PlayerID    int        `json:"playerId"`
}

// FormatClock renders seconds as m:ss.
func FormatClock(seconds float64) string {
	total := int(seconds)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

func (a *Analyzer) keyMoments(events []buildorder.Event, byPlayer [][]buildorder.Event, fights []CombatEngagement) []KeyMoment {
	moments := []KeyMoment{}

	//1.- Age transitions from catalog ages.
	for pid, playerEvents := range byPlayer {
		for _, tr := range buildorder.CatalogTransitions(playerEvents) {
			if tr.Age <= buildorder.DarkAge {
				continue
			}
			moments = append(moments, KeyMoment{
				Time:        tr.Time,
				Type:        MomentAgeUp,
				Description: fmt.Sprintf("Player %d ages up to %s", pid+1, buildorder.AgeName(tr.Age)),
				PlayerID:    pid,
			})
		}
	}

	//2.- First military unit per player.
	for pid, playerEvents := range byPlayer {
		for _, e := range playerEvents {
			if e.Kind == buildorder.KindBuildUnit && a.rules.IsMilitaryUnit(e.Entry) {
				moments = append(moments, KeyMoment{
					Time:        e.Time,
					Type:        MomentFirstMilitary,
					Description: fmt.Sprintf("Player %d trains first military unit: %s", pid+1, e.Name),
					PlayerID:    pid,
				})
				break
			}
		}
	}

	//3.- Medium and high intensity fights.
	for _, fight := range fights {
		if fight.Intensity == IntensityLow {
			continue
		}
		outcome := "Close fight"
		player := 0
		if fight.EstimatedWinner != nil {
			player = *fight.EstimatedWinner
			outcome = fmt.Sprintf("Player %d likely wins", player+1)
		}
		moments = append(moments, KeyMoment{
			Time: fight.StartTime,
			Type: MomentMajorFight,
			Description: fmt.Sprintf("Major engagement at %s (%d vs %d units). %s",
				FormatClock(fight.StartTime), fight.UnitsP1, fight.UnitsP2, outcome),
			PlayerID: player,
		})
	}

	//4.- Every Town Center construction.
	for _, e := range events {
		if e.Kind == buildorder.KindConstruct && a.rules.IsTownCenter(e.Entry) {
			moments = append(moments, KeyMoment{
				Time:        e.Time,
				Type:        MomentExpansion,
				Description: fmt.Sprintf("Player %d builds a new Town Center", e.PlayerIndex+1),
				PlayerID:    e.PlayerIndex,
			})
		}
	}

	//5.- Research bursts.
	for pid, playerEvents := range byPlayer {
		for _, t := range techSpikes(playerEvents) {
			moments = append(moments, KeyMoment{
				Time:        t,
				Type:        MomentTechSpike,
				Description: fmt.Sprintf("Player %d researches 3+ technologies rapidly", pid+1),
				PlayerID:    pid,
			})
		}
	}

	sort.SliceStable(moments, func(i, j int) bool { return moments[i].Time < moments[j].Time })
	return moments
}

// techSpikes returns the start time of every research burst. Overlapping windows that extend
// a burst are folded into it.
func techSpikes(events []buildorder.Event) []float64 {
	var techs []float64
	for _, e := range events {
		if e.Kind == buildorder.KindUpgrade {
			techs = append(techs, e.Time)
		}
	}
	span := TechSpikeCount - 1
	var out []float64
	for i := 0; i+span < len(techs); i++ {
		if techs[i+span]-techs[i] >= TechSpikeWindow {
			continue
		}
		out = append(out, techs[i])
		for i+span+1 < len(techs) && techs[i+span+1]-techs[i+1] < TechSpikeWindow {
			i++
		}
	}
	return out
}
