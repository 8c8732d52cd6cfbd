package analysis

import (
	"math"
	"sort"

	"aoe4replay/analyzer/internal/buildorder"
	"aoe4replay/analyzer/internal/stream"
)

// Engagement clustering windows and intensity tiers.
const (
	CombatTimeWindow   = 15.0
	CombatSpaceWindow  = 50.0
	MinClusterCommands = 3
	HighIntensityAt    = 30
	MediumIntensityAt  = 10
	WinnerMargin       = 1.3
)

// Intensity tiers an engagement by its command count.
type Intensity string

const (
	IntensityLow    Intensity = "low"
	IntensityMedium Intensity = "medium"
	IntensityHigh   Intensity = "high"
)

// IntensityFor maps a cluster command count onto a tier.
func IntensityFor(commands int) Intensity {
	switch {
	case commands >= HighIntensityAt:
		return IntensityHigh
	case commands >= MediumIntensityAt:
		return IntensityMedium
	default:
		return IntensityLow
	}
}

// CombatEngagement is a spatio-temporal cluster of attack commands.
type CombatEngagement struct {
	ID              int       `json:"id"`
	StartTime       float64   `json:"startTime"`
	EndTime         float64   `json:"endTime"`
	CenterX         float64   `json:"centerX"`
	CenterZ         float64   `json:"centerZ"`
	UnitsP1         int       `json:"commandsP1"`
	UnitsP2         int       `json:"commandsP2"`
	Commands        int       `json:"commands"`
	EstimatedWinner *int      `json:"estimatedWinner"`
	Intensity       Intensity `json:"intensity"`
}

func detectEngagements(commands []stream.Command, playerIDs []uint32) []CombatEngagement {
	index := buildorder.PlayerIndex(playerIDs)

	//1.- Attack commands of known players that carry a position, in time order.
	var attacks []stream.Command
	for _, cmd := range commands {
		if !cmd.Type.IsAttack() || !cmd.HasPosition() {
			continue
		}
		if _, ok := index[cmd.PlayerID]; !ok {
			continue
		}
		attacks = append(attacks, cmd)
	}
	sort.SliceStable(attacks, func(i, j int) bool { return attacks[i].Time < attacks[j].Time })

	//2.- Greedy clustering against the previous member.
	var clusters [][]stream.Command
	var current []stream.Command
	flush := func() {
		if len(current) >= MinClusterCommands {
			clusters = append(clusters, current)
		}
	}
	for _, cmd := range attacks {
		if len(current) > 0 {
			last := current[len(current)-1]
			dt := cmd.Time - last.Time
			dist := math.Hypot(cmd.Position.X-last.Position.X, cmd.Position.Z-last.Position.Z)
			if dt > CombatTimeWindow || dist > CombatSpaceWindow {
				flush()
				current = nil
			}
		}
		current = append(current, cmd)
	}
	flush()

	//3.- Summarise each cluster.
	engagements := make([]CombatEngagement, 0, len(clusters))
	for id, cluster := range clusters {
		engagements = append(engagements, summariseCluster(id, cluster, index))
	}
	return engagements
}

func summariseCluster(id int, cluster []stream.Command, index map[uint32]int) CombatEngagement {
	eng := CombatEngagement{
		ID:        id,
		StartTime: cluster[0].Time,
		EndTime:   cluster[len(cluster)-1].Time,
		Commands:  len(cluster),
		Intensity: IntensityFor(len(cluster)),
	}
	for _, cmd := range cluster {
		eng.CenterX += cmd.Position.X
		eng.CenterZ += cmd.Position.Z
		switch index[cmd.PlayerID] {
		case 0:
			eng.UnitsP1 += cmd.UnitCount
		case 1:
			eng.UnitsP2 += cmd.UnitCount
		}
	}
	eng.CenterX /= float64(len(cluster))
	eng.CenterZ /= float64(len(cluster))

	var winner int
	switch {
	case float64(eng.UnitsP1) > float64(eng.UnitsP2)*WinnerMargin:
		winner = 0
		eng.EstimatedWinner = &winner
	case float64(eng.UnitsP2) > float64(eng.UnitsP1)*WinnerMargin:
		winner = 1
		eng.EstimatedWinner = &winner
	}
	return eng
}
