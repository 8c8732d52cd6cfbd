package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// AgeUpRules lists the technology tags that mark an age advancement.
type AgeUpRules struct {
	Generic  string         `yaml:"generic"`
	Excluded []string       `yaml:"excluded"`
	Explicit map[string]int `yaml:"explicit"`
}

// TagRules is the predicate table. Every classification predicate is driven by these
// tag lists, so extending recognition never touches the pipeline.
type TagRules struct {
	MilitaryUnit     []string   `yaml:"military_unit"`
	MilitaryBuilding []string   `yaml:"military_building"`
	TownCenter       []string   `yaml:"town_center"`
	Tower            []string   `yaml:"tower"`
	EconomicBuilding []string   `yaml:"economic_building"`
	Trader           []string   `yaml:"trader"`
	Market           []string   `yaml:"market"`
	Landmark         []string   `yaml:"landmark"`
	VillagerBaseIDs  []string   `yaml:"villager_base_ids"`
	AgeUp            AgeUpRules `yaml:"age_up"`
}

// DefaultTagRules returns the built-in predicate table.
func DefaultTagRules() TagRules {
	return TagRules{
		MilitaryUnit:     []string{"military", "land_military"},
		MilitaryBuilding: []string{"military_production_building", "scar_barracks", "scar_archeryrange", "scar_stable", "siege_workshop"},
		TownCenter:       []string{"town_center", "scar_town_center"},
		Tower:            []string{"tower", "outpost"},
		EconomicBuilding: []string{"economy_building", "drop_off_building", "house"},
		Trader:           []string{"trade_cart", "trader"},
		Market:           []string{"market", "scar_market"},
		Landmark:         []string{"landmark"},
		VillagerBaseIDs:  []string{"villager"},
		AgeUp: AgeUpRules{
			Generic:  "age_up_upgrade",
			Excluded: []string{"abbasid_wing_upgrade"},
			Explicit: map[string]int{
				"scar_feudal_age_upgrade":   2,
				"scar_castle_age_upgrade":   3,
				"scar_imperial_age_upgrade": 4,
			},
		},
	}
}

// LoadTagRules reads a YAML predicate table. Lists omitted from the file keep their defaults.
func LoadTagRules(path string) (TagRules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return TagRules{}, err
	}
	return ParseTagRules(data)
}

// ParseTagRules decodes a YAML predicate table over the defaults.
func ParseTagRules(data []byte) (TagRules, error) {
	var overlay TagRules
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return TagRules{}, fmt.Errorf("parse tag rules: %w", err)
	}
	rules := DefaultTagRules()
	//1.- Replace only the lists the operator supplied so partial files stay valid.
	mergeList(&rules.MilitaryUnit, overlay.MilitaryUnit)
	mergeList(&rules.MilitaryBuilding, overlay.MilitaryBuilding)
	mergeList(&rules.TownCenter, overlay.TownCenter)
	mergeList(&rules.Tower, overlay.Tower)
	mergeList(&rules.EconomicBuilding, overlay.EconomicBuilding)
	mergeList(&rules.Trader, overlay.Trader)
	mergeList(&rules.Market, overlay.Market)
	mergeList(&rules.Landmark, overlay.Landmark)
	mergeList(&rules.VillagerBaseIDs, overlay.VillagerBaseIDs)
	if overlay.AgeUp.Generic != "" {
		rules.AgeUp.Generic = overlay.AgeUp.Generic
	}
	mergeList(&rules.AgeUp.Excluded, overlay.AgeUp.Excluded)
	if len(overlay.AgeUp.Explicit) > 0 {
		//2.- Validate explicit targets because they feed age arithmetic directly.
		for tag, age := range overlay.AgeUp.Explicit {
			if age < 2 || age > 4 {
				return TagRules{}, fmt.Errorf("age_up.explicit[%s] must target age 2-4, got %d", tag, age)
			}
		}
		rules.AgeUp.Explicit = overlay.AgeUp.Explicit
	}
	return rules, nil
}

func mergeList(dst *[]string, src []string) {
	if len(src) > 0 {
		*dst = append([]string(nil), src...)
	}
}

// IsMilitaryUnit reports whether the entry is a combat unit.
func (r TagRules) IsMilitaryUnit(e Entry) bool {
	return e.Kind == KindUnit && e.HasAnyClass(r.MilitaryUnit)
}

// IsMilitaryBuilding reports whether the entry produces military units.
func (r TagRules) IsMilitaryBuilding(e Entry) bool {
	return e.Kind == KindBuilding && e.HasAnyClass(r.MilitaryBuilding)
}

// IsTownCenter reports whether the entry is a Town Center variant.
func (r TagRules) IsTownCenter(e Entry) bool {
	return e.Kind == KindBuilding && e.HasAnyClass(r.TownCenter)
}

// IsTower reports whether the entry is a tower or outpost.
func (r TagRules) IsTower(e Entry) bool {
	return e.Kind == KindBuilding && e.HasAnyClass(r.Tower)
}

// IsEconomicBuilding reports whether the entry supports gathering.
func (r TagRules) IsEconomicBuilding(e Entry) bool {
	return e.Kind == KindBuilding && e.HasAnyClass(r.EconomicBuilding)
}

// IsTrader reports whether the entry is a trade unit.
func (r TagRules) IsTrader(e Entry) bool {
	return e.Kind == KindUnit && e.HasAnyClass(r.Trader)
}

// IsMarket reports whether the entry is a market building.
func (r TagRules) IsMarket(e Entry) bool {
	return e.Kind == KindBuilding && e.HasAnyClass(r.Market)
}

// IsLandmark reports whether the entry is a landmark building.
func (r TagRules) IsLandmark(e Entry) bool {
	return e.Kind == KindBuilding && e.HasAnyClass(r.Landmark)
}

// IsVillager reports whether the entry is the basic worker unit.
func (r TagRules) IsVillager(e Entry) bool {
	if e.Kind != KindUnit {
		return false
	}
	for _, id := range r.VillagerBaseIDs {
		if e.BaseID == id {
			return true
		}
	}
	return false
}

// AgeUpOf computes the age-up flag. Technologies carrying an excluded bonus tag never count.
// Otherwise explicit per-age tags win, then the generic tag targets the entry's own age.
// Landmarks available in ages 1-3 advance to the following age.
func (r TagRules) AgeUpOf(e Entry) AgeUp {
	switch e.Kind {
	case KindTechnology:
		if e.HasAnyClass(r.AgeUp.Excluded) {
			return AgeUp{}
		}
		for _, class := range e.Classes {
			if target, ok := r.AgeUp.Explicit[class]; ok {
				return AgeUp{IsAgeUp: true, TargetAge: target}
			}
		}
		if r.AgeUp.Generic == "" || !e.HasClass(r.AgeUp.Generic) {
			return AgeUp{}
		}
		if e.Age >= 1 {
			return AgeUp{IsAgeUp: true, TargetAge: e.Age}
		}
	case KindBuilding:
		if r.IsLandmark(e) && e.Age >= 1 && e.Age <= 3 {
			return AgeUp{IsAgeUp: true, TargetAge: e.Age + 1}
		}
	}
	return AgeUp{}
}
