package analysis

import (
	"sort"

	"aoe4replay/analyzer/internal/buildorder"
)

// SnapshotInterval spaces the periodic army snapshots.
const SnapshotInterval = 120

// ArmySnapshot is the cumulative military production of one player at a point in time.
type ArmySnapshot struct {
	Time        float64        `json:"time"`
	PlayerID    int            `json:"playerId"`
	Units       []CountedEntry `json:"units"`
	TotalSupply float64        `json:"totalSupply"`
}

// snapshotTimes merges the periodic interval with every key moment time, ascending and unique.
func snapshotTimes(duration float64, moments []KeyMoment) []float64 {
	seen := make(map[float64]struct{})
	var times []float64
	add := func(t float64) {
		if _, dup := seen[t]; dup {
			return
		}
		seen[t] = struct{}{}
		times = append(times, t)
	}
	for t := float64(SnapshotInterval); t <= duration; t += SnapshotInterval {
		add(t)
	}
	for _, m := range moments {
		add(m.Time)
	}
	sort.Float64s(times)
	return times
}

func (a *Analyzer) armySnapshots(byPlayer [][]buildorder.Event, times []float64) []ArmySnapshot {
	snapshots := []ArmySnapshot{}
	for pid, events := range byPlayer {
		var military []buildorder.Event
		for _, e := range events {
			if e.Kind == buildorder.KindBuildUnit && a.rules.IsMilitaryUnit(e.Entry) {
				military = append(military, e)
			}
		}
		for _, t := range times {
			units := newTally()
			supply := 0.0
			for _, e := range military {
				if e.Time > t {
					break
				}
				units.add(e.Entry)
				if e.Costs != nil {
					supply += e.Costs.Popcap
				} else {
					supply++
				}
			}
			list := units.top(0)
			sort.SliceStable(list, func(i, j int) bool {
				if list[i].Count != list[j].Count {
					return list[i].Count > list[j].Count
				}
				return list[i].Name < list[j].Name
			})
			snapshots = append(snapshots, ArmySnapshot{Time: t, PlayerID: pid, Units: list, TotalSupply: supply})
		}
	}
	return snapshots
}
