package buildorder

// Tech-tree ages.
const (
	DarkAge     = 1
	FeudalAge   = 2
	CastleAge   = 3
	ImperialAge = 4
)

var ageNames = [...]string{"", "Dark Age", "Feudal Age", "Castle Age", "Imperial Age"}

// AgeName returns the display name of an age.
func AgeName(age int) string {
	if age >= 0 && age < len(ageNames) {
		return ageNames[age]
	}
	return ""
}

// Transition is the first time a player was observed in an age.
type Transition struct {
	Age  int     `json:"age"`
	Time float64 `json:"time"`
}

// CatalogTransitions derives age transitions from the catalog age of a player's events in
// time order: the first event whose age exceeds the running maximum opens that age. Ages
// skipped by a single jump open at the same time. Dark Age always opens at zero.
func CatalogTransitions(events []Event) []Transition {
	out := []Transition{{Age: DarkAge, Time: 0}}
	current := DarkAge
	for _, e := range events {
		age := e.Entry.Age
		if age > ImperialAge {
			age = ImperialAge
		}
		for current < age {
			current++
			out = append(out, Transition{Age: current, Time: e.Time})
		}
	}
	return out
}

// FlaggedTransitions returns the earliest age-up flagged event per target age.
func FlaggedTransitions(events []Event) map[int]Event {
	out := make(map[int]Event)
	for _, e := range events {
		if !e.IsAgeUp || e.TargetAge < FeudalAge {
			continue
		}
		if existing, ok := out[e.TargetAge]; !ok || e.Time < existing.Time {
			out[e.TargetAge] = e
		}
	}
	return out
}

// AgeTimes combines both sources: an age opens at the earlier of its catalog transition and
// its earliest age-up flagged event. Ages never reached are absent.
func AgeTimes(events []Event) map[int]float64 {
	times := make(map[int]float64)
	for _, tr := range CatalogTransitions(events) {
		if tr.Age >= FeudalAge {
			times[tr.Age] = tr.Time
		}
	}
	for age, e := range FlaggedTransitions(events) {
		if existing, ok := times[age]; !ok || e.Time < existing {
			times[age] = e.Time
		}
	}
	return times
}
