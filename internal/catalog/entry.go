package catalog

// Kind distinguishes the three catalog tables.
type Kind string

const (
	KindBuilding   Kind = "building"
	KindUnit       Kind = "unit"
	KindTechnology Kind = "technology"
)

// Costs is the resource vector attached to a catalog entry. Time is the build or research time in seconds.
type Costs struct {
	Food   float64 `json:"food"`
	Wood   float64 `json:"wood"`
	Stone  float64 `json:"stone"`
	Gold   float64 `json:"gold"`
	Total  float64 `json:"total"`
	Popcap float64 `json:"popcap"`
	Time   float64 `json:"time"`
}

// Entry is one immutable catalog row keyed by its numeric identifier.
type Entry struct {
	ID           uint32   `json:"pbgid"`
	Name         string   `json:"name"`
	Icon         string   `json:"icon,omitempty"`
	Kind         Kind     `json:"type"`
	DisplayClass string   `json:"displayClass,omitempty"`
	Costs        *Costs   `json:"costs"`
	Age          int      `json:"age"`
	Classes      []string `json:"classes"`
	BaseID       string   `json:"baseId"`
	Civs         []string `json:"civs,omitempty"`
}

// HasClass reports whether the entry carries the classification tag.
func (e Entry) HasClass(tag string) bool {
	for _, class := range e.Classes {
		if class == tag {
			return true
		}
	}
	return false
}

// HasAnyClass reports whether the entry carries at least one of the tags.
func (e Entry) HasAnyClass(tags []string) bool {
	for _, tag := range tags {
		if e.HasClass(tag) {
			return true
		}
	}
	return false
}

// TotalCost returns the catalog total cost or zero when the entry has none.
func (e Entry) TotalCost() float64 {
	if e.Costs == nil {
		return 0
	}
	return e.Costs.Total
}

// GroupKey is the aggregation key used across civilizations.
func (e Entry) GroupKey() string {
	if e.BaseID != "" {
		return e.BaseID
	}
	return e.Name
}

// AgeUp describes whether completing the entry advances the owner's age.
type AgeUp struct {
	IsAgeUp   bool `json:"isAgeUp"`
	TargetAge int  `json:"targetAge"`
}
