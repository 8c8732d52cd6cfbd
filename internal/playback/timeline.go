// Package playback turns reconstructed entities into keyframes and streams them to viewers.
package playback

import (
	"math"

	"aoe4replay/analyzer/internal/entities"
)

// DefaultStep is the keyframe spacing in match seconds.
const DefaultStep = 10.0

// FrameEntity is one alive entity inside a keyframe.
type FrameEntity struct {
	ID        int               `json:"id"`
	Player    int               `json:"playerId"`
	Subtype   entities.Subtype  `json:"entityType"`
	Category  entities.Category `json:"category"`
	X         float64           `json:"x"`
	Y         float64           `json:"y"`
	UnitCount int               `json:"unitCount"`
}

// Keyframe is the viewer state at one instant.
type Keyframe struct {
	Time      float64       `json:"time"`
	Buildings int           `json:"buildings"`
	Units     int           `json:"units"`
	Entities  []FrameEntity `json:"entities"`
}

// TimelineOptions controls BuildTimeline.
type TimelineOptions struct {
	// Step defaults to DefaultStep when not positive.
	Step float64
	// Normalize maps coordinates into [0,1] using the bounds of every entity position.
	Normalize bool
}

// BuildTimeline samples the alive entities every step seconds from 0 through duration.
// Moving entities are interpolated linearly between their spawn and death positions.
func BuildTimeline(list []entities.Entity, duration float64, opts TimelineOptions) []Keyframe {
	step := opts.Step
	if step <= 0 {
		step = DefaultStep
	}
	if duration < 0 || math.IsNaN(duration) || math.IsInf(duration, 0) {
		duration = 0
	}
	bounds := entities.ComputeBounds(list)

	frames := make([]Keyframe, 0, int(duration/step)+1)
	for i := 0; ; i++ {
		t := float64(i) * step
		if t > duration {
			break
		}
		frame := Keyframe{Time: t, Entities: []FrameEntity{}}
		for _, e := range list {
			if !e.Alive(t) {
				continue
			}
			x, y := positionAt(e, t)
			if opts.Normalize {
				x, y = bounds.Normalize(x, y)
			}
			frame.Entities = append(frame.Entities, FrameEntity{
				ID:        e.ID,
				Player:    e.PlayerIndex,
				Subtype:   e.Subtype,
				Category:  e.Category,
				X:         x,
				Y:         y,
				UnitCount: e.UnitCount,
			})
			if e.Category == entities.CategoryBuilding {
				frame.Buildings++
			} else {
				frame.Units++
			}
		}
		frames = append(frames, frame)
	}
	return frames
}

func positionAt(e entities.Entity, t float64) (float64, float64) {
	if e.DeathTime == nil || e.DeathX == nil || e.DeathY == nil {
		return e.SpawnX, e.SpawnY
	}
	span := *e.DeathTime - e.SpawnTime
	if span <= 0 {
		return e.SpawnX, e.SpawnY
	}
	frac := math.Max(0, math.Min(1, (t-e.SpawnTime)/span))
	return e.SpawnX + (*e.DeathX-e.SpawnX)*frac, e.SpawnY + (*e.DeathY-e.SpawnY)*frac
}
