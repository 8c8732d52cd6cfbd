package analysis

import "aoe4replay/analyzer/internal/buildorder"

// BucketSeconds is the sampling interval of the production and economy timelines.
const BucketSeconds = 30

// ProductionPoint is the cumulative production of one player at a bucket boundary.
type ProductionPoint struct {
	Time         float64 `json:"time"`
	PlayerID     int     `json:"playerId"`
	Villagers    int     `json:"villagers"`
	Military     int     `json:"military"`
	Buildings    int     `json:"buildings"`
	Technologies int     `json:"technologies"`
}

// EconomySnapshot is the cumulative spend of one player at a bucket boundary.
type EconomySnapshot struct {
	Time          float64 `json:"time"`
	PlayerID      int     `json:"playerId"`
	TotalSpent    float64 `json:"totalSpent"`
	MilitarySpent float64 `json:"militarySpent"`
	EconomicSpent float64 `json:"economicSpent"`
	TechSpent     float64 `json:"techSpent"`
	MilitaryRatio float64 `json:"militaryRatio"`
}

// bucketWalk visits every bucket boundary from 0 to duration. apply receives each event whose
// time is at or before the boundary exactly once, then emit records the running state.
func bucketWalk(events []buildorder.Event, duration float64, apply func(buildorder.Event), emit func(t float64)) {
	next := 0
	for t := 0.0; t <= duration; t += BucketSeconds {
		for next < len(events) && events[next].Time <= t {
			apply(events[next])
			next++
		}
		emit(t)
	}
}

func (a *Analyzer) productionTimeline(byPlayer [][]buildorder.Event, duration float64) []ProductionPoint {
	points := []ProductionPoint{}
	for pid, events := range byPlayer {
		var point ProductionPoint
		bucketWalk(events, duration, func(e buildorder.Event) {
			switch e.Kind {
			case buildorder.KindBuildUnit:
				if a.rules.IsVillager(e.Entry) {
					point.Villagers++
				} else if a.rules.IsMilitaryUnit(e.Entry) {
					point.Military++
				}
			case buildorder.KindConstruct:
				point.Buildings++
			case buildorder.KindUpgrade:
				point.Technologies++
			}
		}, func(t float64) {
			point.Time, point.PlayerID = t, pid
			points = append(points, point)
		})
	}
	return points
}

func (a *Analyzer) economyTimeline(byPlayer [][]buildorder.Event, duration float64) []EconomySnapshot {
	snapshots := []EconomySnapshot{}
	for pid, events := range byPlayer {
		var snap EconomySnapshot
		bucketWalk(events, duration, func(e buildorder.Event) {
			cost := e.TotalCost()
			snap.TotalSpent += cost
			switch {
			case e.Kind == buildorder.KindBuildUnit && a.rules.IsMilitaryUnit(e.Entry):
				snap.MilitarySpent += cost
			case e.Kind == buildorder.KindUpgrade:
				snap.TechSpent += cost
			default:
				snap.EconomicSpent += cost
			}
		}, func(t float64) {
			snap.Time, snap.PlayerID = t, pid
			snap.MilitaryRatio = 0
			if snap.TotalSpent > 0 {
				snap.MilitaryRatio = snap.MilitarySpent / snap.TotalSpent
			}
			snapshots = append(snapshots, snap)
		})
	}
	return snapshots
}
