package catalog

import "sort"

// excludedCivCode is skipped during inference because its mercenary roster spans most civilizations.
const excludedCivCode = "by"

var civNames = map[string]string{
	"ab": "Abbasid Dynasty", "ay": "Ayyubids", "by": "Byzantines", "ch": "Chinese",
	"de": "Delhi Sultanate", "en": "English", "fr": "French", "gol": "Golden Horde",
	"hl": "House of Lancaster", "hr": "Holy Roman Empire", "ja": "Japanese",
	"je": "Jeanne d'Arc", "kt": "Knights Hospitaller", "ma": "Malians",
	"mac": "Varangian Guard", "mo": "Mongols", "od": "Order of the Dragon",
	"ot": "Ottomans", "ru": "Rus", "sen": "Sengoku", "tug": "Tughra Dynasty",
	"zx": "Zhu Xi's Legacy",
}

// CivName maps a civilization code to its display name, echoing unknown codes.
func CivName(code string) string {
	if name, ok := civNames[code]; ok {
		return name
	}
	return code
}

func indexCivBaseIDs(entries map[uint32]Entry) map[string][]string {
	sets := make(map[string]map[string]struct{})
	for _, entry := range entries {
		if entry.Kind == KindTechnology || entry.BaseID == "" || len(entry.Civs) == 0 {
			continue
		}
		set, ok := sets[entry.BaseID]
		if !ok {
			set = make(map[string]struct{})
			sets[entry.BaseID] = set
		}
		for _, civ := range entry.Civs {
			if civ != excludedCivCode {
				set[civ] = struct{}{}
			}
		}
	}
	index := make(map[string][]string, len(sets))
	for baseID, set := range sets {
		civs := make([]string, 0, len(set))
		for civ := range set {
			civs = append(civs, civ)
		}
		sort.Strings(civs)
		index[baseID] = civs
	}
	return index
}

// InferCivilization scores civilizations from the base ids a player produced. A base id
// unique to one civilization scores 3, one shared by two scores 1 each. Ties resolve to the
// alphabetically first code. Returns the winning civilization code, or "" when nothing scored.
func (c *Catalog) InferCivilization(baseIDs []string) string {
	if c == nil || len(baseIDs) == 0 {
		return ""
	}
	scores := make(map[string]int)
	for _, baseID := range baseIDs {
		civs := c.civBaseIDs[baseID]
		switch len(civs) {
		case 1:
			scores[civs[0]] += 3
		case 2:
			scores[civs[0]]++
			scores[civs[1]]++
		}
	}
	if len(scores) == 0 {
		return ""
	}
	codes := make([]string, 0, len(scores))
	for code := range scores {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	best := codes[0]
	for _, code := range codes[1:] {
		if scores[code] > scores[best] {
			best = code
		}
	}
	return best
}
