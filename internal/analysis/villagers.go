package analysis

import (
	"sort"

	"aoe4replay/analyzer/internal/buildorder"
)

// Villager production thresholds in seconds.
const (
	DefaultVillagerTrainTime = 20
	VillagerGapThreshold     = 25
)

// VillagerGap is an interval in which a player's worker production sat idle.
type VillagerGap struct {
	PlayerID  int     `json:"playerId"`
	StartTime float64 `json:"startTime"`
	EndTime   float64 `json:"endTime"`
	Duration  float64 `json:"duration"`
}

func (a *Analyzer) villagerGaps(byPlayer [][]buildorder.Event) []VillagerGap {
	gaps := []VillagerGap{}
	for pid, events := range byPlayer {
		var villagers []buildorder.Event
		for _, e := range events {
			if e.Kind == buildorder.KindBuildUnit && a.rules.IsVillager(e.Entry) {
				villagers = append(villagers, e)
			}
		}
		for i := 0; i+1 < len(villagers); i++ {
			train := float64(DefaultVillagerTrainTime)
			if c := villagers[i].Costs; c != nil && c.Time > 0 {
				train = c.Time
			}
			expected := villagers[i].Time + train
			actual := villagers[i+1].Time
			if gap := actual - expected; gap > VillagerGapThreshold {
				gaps = append(gaps, VillagerGap{PlayerID: pid, StartTime: expected, EndTime: actual, Duration: gap})
			}
		}
	}
	sort.SliceStable(gaps, func(i, j int) bool { return gaps[i].StartTime < gaps[j].StartTime })
	return gaps
}
