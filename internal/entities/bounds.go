package entities

import "math"

// boundsPadding widens the bounding box on each side as a fraction of its range.
const boundsPadding = 0.1

// Bounds is the padded bounding box of all entity positions.
type Bounds struct {
	MinX float64 `json:"minX"`
	MaxX float64 `json:"maxX"`
	MinY float64 `json:"minY"`
	MaxY float64 `json:"maxY"`
}

// ComputeBounds covers every spawn and death position. Degenerate axes are widened to a unit
// range before padding so normalisation never divides by zero.
func ComputeBounds(list []Entity) Bounds {
	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	include := func(x, y float64) {
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}
	for _, e := range list {
		include(e.SpawnX, e.SpawnY)
		if e.DeathX != nil && e.DeathY != nil {
			include(*e.DeathX, *e.DeathY)
		}
	}
	if len(list) == 0 {
		return Bounds{MinX: 0, MaxX: 1, MinY: 0, MaxY: 1}
	}
	rangeX, rangeY := maxX-minX, maxY-minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	padX, padY := rangeX*boundsPadding, rangeY*boundsPadding
	return Bounds{MinX: minX - padX, MaxX: maxX + padX, MinY: minY - padY, MaxY: maxY + padY}
}

// Normalize maps a ground position into [0,1] on both axes.
func (b Bounds) Normalize(x, y float64) (float64, float64) {
	return normalize(x, b.MinX, b.MaxX), normalize(y, b.MinY, b.MaxY)
}

func normalize(value, min, max float64) float64 {
	span := max - min
	if span == 0 {
		return 0.5
	}
	return (value - min) / span
}
