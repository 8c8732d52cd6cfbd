package summary

// versionExtraEliminationField is the first STPD version with an extra field after the
// elimination timestamp.
const versionExtraEliminationField = 2033

// PlayerSummary is the decoded per-player statistics record.
type PlayerSummary struct {
	PlayerID                      int32           `json:"playerId"`
	PlayerName                    string          `json:"playerName"`
	Civ                           string          `json:"civ"`
	Outcome                       int32           `json:"outcome"`
	TimestampEliminated           int32           `json:"timestampEliminated"`
	PlayerProfileID               int32           `json:"playerProfileId"`
	UnitsProduced                 int32           `json:"unitsProduced"`
	UnitsProducedInfantry         int32           `json:"unitsProducedInfantry"`
	LargestArmy                   int32           `json:"largestArmy"`
	TechResearched                int32           `json:"techResearched"`
	UnitsKilled                   int32           `json:"unitsKilled"`
	UnitsKilledResourceValue      int32           `json:"unitsKilledResourceValue"`
	UnitsLost                     int32           `json:"unitsLost"`
	UnitsLostResourceValue        int32           `json:"unitsLostResourceValue"`
	BuildingsRazed                int32           `json:"buildingsRazed"`
	BuildingsLost                 int32           `json:"buildingsLost"`
	SacredSitesCaptured           int32           `json:"sacredSitesCaptured"`
	SacredSitesLost               int32           `json:"sacredSitesLost"`
	SacredSitesNeutralized        int32           `json:"sacredSitesNeutralized"`
	TotalResourcesGathered        Resources       `json:"totalResourcesGathered"`
	TotalResourcesSpent           Resources       `json:"totalResourcesSpent"`
	TotalResourcesSpentOnUpgrades Resources       `json:"totalResourcesSpentOnUpgrades"`
	Age2Timestamp                 *int            `json:"age2Timestamp"`
	Age3Timestamp                 *int            `json:"age3Timestamp"`
	Age4Timestamp                 *int            `json:"age4Timestamp"`
	Timeline                      []TimelineEntry `json:"timeline"`
}

// fieldReader wraps a cursor with a sticky error so long fixed layouts read linearly.
type fieldReader struct {
	c   *Cursor
	err error
}

func (r *fieldReader) i32() int32 {
	if r.err != nil {
		return 0
	}
	v, err := r.c.ReadI32()
	r.err = err
	return v
}

func (r *fieldReader) f32() float64 {
	if r.err != nil {
		return 0
	}
	v, err := r.c.ReadF32()
	r.err = err
	return finiteOrZero(v)
}

func (r *fieldReader) skip(fields int) {
	if r.err != nil {
		return
	}
	r.err = r.c.SkipI32(fields)
}

func (r *fieldReader) skipByte() {
	if r.err != nil {
		return
	}
	_, r.err = r.c.ReadByte()
}

func (r *fieldReader) dict() Resources {
	if r.err != nil {
		return Resources{}
	}
	v, err := r.c.ReadResourceDict()
	r.err = err
	return v
}

func (r *fieldReader) str() string {
	if r.err != nil {
		return ""
	}
	v, err := r.c.ReadPrefixedString()
	r.err = err
	return v
}

func (r *fieldReader) utf16() string {
	if r.err != nil {
		return ""
	}
	v, err := r.c.ReadPrefixedUTF16()
	r.err = err
	return v
}

// playerDecoder decodes the STPD chunks of one summary. The timeline layout it resolves on the
// first entry applies to every later player.
type playerDecoder struct {
	layout TimelineLayout
}

func (d *playerDecoder) decode(c *Cursor, version int32) (PlayerSummary, error) {
	r := &fieldReader{c: c}
	var p PlayerSummary

	//1.- Identity and outcome.
	p.PlayerID = r.i32()
	p.PlayerName = r.utf16()
	p.Outcome = r.i32()
	r.skip(1)
	p.TimestampEliminated = r.i32()
	if version >= versionExtraEliminationField {
		r.skip(1)
	}

	//2.- Production block.
	r.skip(2)
	p.UnitsProduced = r.i32()
	r.skip(1)
	p.UnitsProducedInfantry = r.i32()
	r.skip(1) // infantry resource value
	r.skip(6)
	p.LargestArmy = r.i32()
	r.skip(9)
	r.skip(2)
	r.dict()

	//3.- Losses and research.
	p.BuildingsLost = r.i32()
	r.skip(1)
	p.UnitsLost = r.i32()
	p.UnitsLostResourceValue = r.i32()
	r.skip(6)
	p.TechResearched = r.i32()
	r.skip(1)
	r.dict()
	p.TotalResourcesSpentOnUpgrades = r.dict()
	r.dict()
	r.dict()

	//4.- Kills.
	p.UnitsKilled = r.i32()
	p.UnitsKilledResourceValue = r.i32()
	r.skip(2)
	p.BuildingsRazed = r.i32()
	r.skip(6)

	//5.- Economy totals.
	p.TotalResourcesGathered = r.dict()
	p.TotalResourcesSpent = r.dict()
	for i := 0; i < 4; i++ {
		r.dict()
	}
	r.skip(6)

	//6.- Map control.
	p.SacredSitesCaptured = r.i32()
	p.SacredSitesLost = r.i32()
	p.SacredSitesNeutralized = r.i32()
	r.skip(9)
	r.dict()
	r.skip(4)

	//7.- Civilization and profile.
	r.skipByte()
	p.Civ = r.str()
	r.skip(2)
	p.PlayerProfileID = r.i32()
	r.skip(1)
	if r.err != nil {
		return PlayerSummary{}, r.err
	}

	//8.- Timelines.
	resources := make([]resourceSample, 0)
	for i, n := 0, clampCount(r.i32()); i < n && r.err == nil; i++ {
		sample := readResourceEntry(r, &d.layout)
		if r.err == nil {
			resources = append(resources, sample)
		}
	}
	scores := make([]scoreSample, 0)
	for i, n := 0, clampCount(r.i32()); i < n && r.err == nil; i++ {
		sample := readScoreEntry(r)
		if r.err == nil {
			scores = append(scores, sample)
		}
	}
	if r.err != nil {
		return PlayerSummary{}, r.err
	}

	p.Timeline = mergeTimelines(resources, scores)
	ages := InferAgeTimestamps(p.Timeline)
	p.Age2Timestamp, p.Age3Timestamp, p.Age4Timestamp = ages[0], ages[1], ages[2]
	return p, nil
}
