package summary

// maxTimelineEntries caps the declared entry count of either timeline.
const maxTimelineEntries = 10000

// fallbackSampleInterval spaces entries that carry no timestamp of their own.
const fallbackSampleInterval = 20

// societyJumpThreshold is the minimum society-score rise treated as an age transition.
const societyJumpThreshold = 100

// TimelineLayout is the shape of a resource timeline entry. It is resolved once per decode.
type TimelineLayout int

const (
	// LayoutUnresolved has not yet peeked at an entry.
	LayoutUnresolved TimelineLayout = iota
	// LayoutLegacy carries current, per-minute and unit-value dictionaries.
	LayoutLegacy
	// LayoutPatched inserts a cumulative dictionary before per-minute.
	LayoutPatched
)

func (l TimelineLayout) String() string {
	switch l {
	case LayoutLegacy:
		return "legacy"
	case LayoutPatched:
		return "patched"
	default:
		return "unresolved"
	}
}

type resourceSample struct {
	Timestamp  int32
	Current    Resources
	PerMinute  Resources
	Cumulative Resources
	UnitValue  Resources
}

type scoreSample struct {
	Timestamp  int32
	Economy    float64
	Military   float64
	Society    float64
	Technology float64
	Total      float64
}

// resolveLayout decides the entry shape by peeking past the three fixed dictionaries: a value
// equal to the post-patch pair count means a fourth dictionary follows.
func resolveLayout(c *Cursor) TimelineLayout {
	if next, ok := c.PeekI32(); ok && next == dictPairsPatch {
		return LayoutPatched
	}
	return LayoutLegacy
}

// readResourceEntry decodes one resource timeline entry, resolving *layout on first use.
func readResourceEntry(r *fieldReader, layout *TimelineLayout) resourceSample {
	sample := resourceSample{Timestamp: r.i32()}
	sample.Current = r.dict()
	second := r.dict()
	third := r.dict()
	if r.err != nil {
		return sample
	}
	if *layout == LayoutUnresolved {
		*layout = resolveLayout(r.c)
	}
	switch *layout {
	case LayoutPatched:
		sample.Cumulative = second
		sample.PerMinute = third
		sample.UnitValue = r.dict()
	default:
		sample.PerMinute = second
		sample.UnitValue = third
	}
	// one unknown trailing field in both layouts
	r.skip(1)
	return sample
}

func readScoreEntry(r *fieldReader) scoreSample {
	return scoreSample{
		Timestamp:  r.i32(),
		Economy:    r.f32(),
		Military:   r.f32(),
		Society:    r.f32(),
		Technology: r.f32(),
		Total:      r.f32(),
	}
}

func clampCount(n int32) int {
	if n < 0 {
		return 0
	}
	if n > maxTimelineEntries {
		return maxTimelineEntries
	}
	return int(n)
}

// TimelineEntry is one merged resource and score snapshot.
type TimelineEntry struct {
	Timestamp           int       `json:"timestamp"`
	ResourcesCurrent    Resources `json:"resourcesCurrent"`
	ResourcesPerMinute  Resources `json:"resourcesPerMinute"`
	ResourcesCumulative Resources `json:"resourcesCumulative"`
	ResourcesUnitValue  Resources `json:"resourcesUnitValue"`
	ScoreTotal          float64   `json:"scoreTotal"`
	ScoreEconomy        float64   `json:"scoreEconomy"`
	ScoreMilitary       float64   `json:"scoreMilitary"`
	ScoreSociety        float64   `json:"scoreSociety"`
	ScoreTechnology     float64   `json:"scoreTechnology"`
}

// mergeTimelines joins both timelines by index. The score timeline may lag by one entry, so a
// missing score falls back to the previous index.
func mergeTimelines(resources []resourceSample, scores []scoreSample) []TimelineEntry {
	n := len(resources)
	if len(scores) > n {
		n = len(scores)
	}
	out := make([]TimelineEntry, 0, n)
	for i := 0; i < n; i++ {
		var entry TimelineEntry
		var score *scoreSample
		switch {
		case i < len(scores):
			score = &scores[i]
		case i > 0 && i-1 < len(scores):
			score = &scores[i-1]
		}
		switch {
		case i < len(resources):
			res := resources[i]
			entry.Timestamp = int(res.Timestamp)
			entry.ResourcesCurrent = res.Current
			entry.ResourcesPerMinute = res.PerMinute
			entry.ResourcesCumulative = res.Cumulative
			entry.ResourcesUnitValue = res.UnitValue
		case score != nil:
			entry.Timestamp = int(score.Timestamp)
		default:
			entry.Timestamp = i * fallbackSampleInterval
		}
		if score != nil {
			entry.ScoreTotal = score.Total
			entry.ScoreEconomy = score.Economy
			entry.ScoreMilitary = score.Military
			entry.ScoreSociety = score.Society
			entry.ScoreTechnology = score.Technology
		}
		out = append(out, entry)
	}
	return out
}

// InferAgeTimestamps scans society-score rises of at least societyJumpThreshold. The first three
// qualifying rises are taken as the Feudal, Castle and Imperial transitions. This is a heuristic
// stand-in for unreversed struct fields.
func InferAgeTimestamps(timeline []TimelineEntry) [3]*int {
	var ages [3]*int
	found := 0
	prev := 0.0
	for _, entry := range timeline {
		if entry.ScoreSociety <= prev {
			continue
		}
		if entry.ScoreSociety-prev >= societyJumpThreshold && found < len(ages) {
			ts := entry.Timestamp
			ages[found] = &ts
			found++
		}
		prev = entry.ScoreSociety
	}
	return ages
}
