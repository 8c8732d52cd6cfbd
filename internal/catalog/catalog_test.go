package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testEntries() []Entry {
	return []Entry{
		{ID: 100, Name: "Villager", Kind: KindUnit, BaseID: "villager", Classes: []string{"worker"}, Costs: &Costs{Food: 50, Total: 50, Time: 20}},
		{ID: 101, Name: "Spearman", Kind: KindUnit, BaseID: "spearman", Classes: []string{"infantry", "military"}, Age: 1, Civs: []string{"en", "fr", "hr"}},
		{ID: 102, Name: "Longbowman", Kind: KindUnit, BaseID: "longbowman", Classes: []string{"land_military"}, Age: 2, Civs: []string{"en"}},
		{ID: 103, Name: "Trade Cart", Kind: KindUnit, BaseID: "trader", Classes: []string{"trade_cart"}},
		{ID: 104, Name: "Royal Knight", Kind: KindUnit, BaseID: "royal-knight", Classes: []string{"military"}, Civs: []string{"fr", "je"}},
		{ID: 200, Name: "Barracks", Kind: KindBuilding, BaseID: "barracks", Classes: []string{"military_production_building"}},
		{ID: 201, Name: "Town Center", Kind: KindBuilding, BaseID: "town-center", Classes: []string{"town_center"}},
		{ID: 202, Name: "Council Hall", Kind: KindBuilding, BaseID: "council-hall", Classes: []string{"landmark"}, Age: 2, Civs: []string{"en"}},
		{ID: 203, Name: "Outpost", Kind: KindBuilding, BaseID: "outpost", Classes: []string{"outpost"}},
		{ID: 204, Name: "Mill", Kind: KindBuilding, BaseID: "mill", Classes: []string{"drop_off_building"}},
		{ID: 205, Name: "Market", Kind: KindBuilding, BaseID: "market", Classes: []string{"market"}},
		{ID: 300, Name: "Feudal Age", Kind: KindTechnology, Classes: []string{"scar_feudal_age_upgrade"}, Age: 1},
		{ID: 301, Name: "Wing Upgrade", Kind: KindTechnology, Classes: []string{"age_up_upgrade", "abbasid_wing_upgrade"}, Age: 2},
		{ID: 302, Name: "Generic Age", Kind: KindTechnology, Classes: []string{"age_up_upgrade"}, Age: 3},
		{ID: 303, Name: "Wing Bonus", Kind: KindTechnology, Classes: []string{"age_up_upgrade", "abbasid_wing_upgrade", "scar_castle_age_upgrade"}, Age: 2},
		{ID: 100, Name: "Duplicate", Kind: KindBuilding},
	}
}

func TestNewIndexesFirstOccurrence(t *testing.T) {
	cat := New(testEntries())

	entry, ok := cat.Lookup(100)
	if !ok || entry.Name != "Villager" {
		t.Fatalf("expected first occurrence to win, got %+v", entry)
	}
	if cat.Buildings().Contains(100) {
		t.Fatalf("duplicate identifier must not enter the building set")
	}
	if !cat.Units().Contains(102) || !cat.Technologies().Contains(300) || !cat.Buildings().Contains(205) {
		t.Fatalf("expected identifiers in their kind sets")
	}
	if cat.Units().Contains(999) {
		t.Fatalf("unexpected membership for unknown id")
	}
	if entry, _ := cat.Lookup(203); entry.Age != 1 {
		t.Fatalf("expected missing age to default to 1, got %d", entry.Age)
	}
	if got := cat.Units().Sorted(); len(got) != 5 || got[0] != 100 {
		t.Fatalf("unexpected unit ids: %v", got)
	}
}

func TestPredicates(t *testing.T) {
	cat := New(testEntries())
	rules := cat.Rules()
	lookup := func(id uint32) Entry {
		entry, ok := cat.Lookup(id)
		if !ok {
			t.Fatalf("missing entry %d", id)
		}
		return entry
	}

	if !rules.IsVillager(lookup(100)) || rules.IsMilitaryUnit(lookup(100)) {
		t.Fatalf("villager misclassified")
	}
	if !rules.IsMilitaryUnit(lookup(101)) || !rules.IsMilitaryUnit(lookup(102)) {
		t.Fatalf("military units misclassified")
	}
	if !rules.IsTrader(lookup(103)) {
		t.Fatalf("trader misclassified")
	}
	if !rules.IsMilitaryBuilding(lookup(200)) || !rules.IsTownCenter(lookup(201)) || !rules.IsTower(lookup(203)) {
		t.Fatalf("buildings misclassified")
	}
	if !rules.IsEconomicBuilding(lookup(204)) || !rules.IsMarket(lookup(205)) || !rules.IsLandmark(lookup(202)) {
		t.Fatalf("economic buildings misclassified")
	}
}

func TestAgeUpDetection(t *testing.T) {
	cat := New(testEntries())
	cases := []struct {
		id     uint32
		want   bool
		target int
	}{
		{300, true, 2},
		{301, false, 0},
		{302, true, 3},
		{303, false, 0},
		{202, true, 3},
		{200, false, 0},
	}
	for _, tc := range cases {
		entry, _ := cat.Lookup(tc.id)
		got := cat.AgeUpOf(entry)
		if got.IsAgeUp != tc.want || got.TargetAge != tc.target {
			t.Fatalf("id %d: expected %v/%d, got %+v", tc.id, tc.want, tc.target, got)
		}
	}
}

func TestParseTagRulesOverlaysDefaults(t *testing.T) {
	rules, err := ParseTagRules([]byte("tower:\n  - keep\nage_up:\n  explicit:\n    custom_age: 3\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rules.Tower) != 1 || rules.Tower[0] != "keep" {
		t.Fatalf("expected tower override, got %v", rules.Tower)
	}
	if len(rules.TownCenter) == 0 || rules.AgeUp.Generic != "age_up_upgrade" {
		t.Fatalf("expected omitted lists to keep defaults")
	}
	if rules.AgeUp.Explicit["custom_age"] != 3 {
		t.Fatalf("expected explicit override, got %v", rules.AgeUp.Explicit)
	}

	if _, err := ParseTagRules([]byte("age_up:\n  explicit:\n    bogus: 9\n")); err == nil {
		t.Fatalf("expected out of range target to fail")
	}
}

func TestLoadDirDecodesRawFiles(t *testing.T) {
	dir := t.TempDir()
	units := `{"data":[{"pbgid":11,"id":"spearman-1","baseId":"spearman","name":"Spearman","age":1,"civs":["en"],"classes":["military"],"displayClasses":["Light Melee Infantry"],"costs":{"food":60,"wood":20,"total":80,"time":15}}]}`
	buildings := `{"data":[{"pbgid":21,"id":"house","name":"House","classes":["house"]},{"pbgid":0,"name":"ignored"}]}`
	if err := os.WriteFile(filepath.Join(dir, UnitsFile), []byte(units), 0o644); err != nil {
		t.Fatalf("write units: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, BuildingsFile), []byte(buildings), 0o644); err != nil {
		t.Fatalf("write buildings: %v", err)
	}

	cat, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cat.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", cat.Len())
	}
	spear, _ := cat.Lookup(11)
	if spear.Kind != KindUnit || spear.DisplayClass != "Light Melee Infantry" || spear.Costs == nil || spear.Costs.Time != 15 {
		t.Fatalf("unexpected unit entry %+v", spear)
	}
	house, _ := cat.Lookup(21)
	if house.BaseID != "house" || !cat.Rules().IsEconomicBuilding(house) {
		t.Fatalf("expected id fallback for base id, got %+v", house)
	}

	if err := os.WriteFile(filepath.Join(dir, TechnologiesFile), []byte("{"), 0o644); err != nil {
		t.Fatalf("write technologies: %v", err)
	}
	if _, err := LoadDir(dir); err == nil || !strings.Contains(err.Error(), TechnologiesFile) {
		t.Fatalf("expected decode error naming the file, got %v", err)
	}
}

func TestInferCivilization(t *testing.T) {
	cat := New(testEntries())
	if got := cat.InferCivilization([]string{"longbowman", "council-hall", "spearman"}); got != "en" {
		t.Fatalf("expected code en, got %q", got)
	}
	if got := cat.InferCivilization([]string{"royal-knight"}); got != "fr" {
		t.Fatalf("expected alphabetical tie break to fr, got %q", got)
	}
	if got := cat.InferCivilization([]string{"villager"}); got != "" {
		t.Fatalf("expected no inference, got %q", got)
	}
}
