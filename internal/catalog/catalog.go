package catalog

// Catalog is the immutable identifier index shared by every decode. Safe for concurrent readers.
type Catalog struct {
	entries      map[uint32]Entry
	buildings    IDSet
	units        IDSet
	technologies IDSet
	rules        TagRules
	civBaseIDs   map[string][]string
}

// Option customises catalog construction.
type Option func(*Catalog)

// WithTagRules overrides the default predicate table.
func WithTagRules(rules TagRules) Option {
	return func(c *Catalog) { c.rules = rules }
}

// New indexes the supplied entries. The first occurrence of an identifier wins.
func New(entries []Entry, opts ...Option) *Catalog {
	c := &Catalog{
		entries: make(map[uint32]Entry, len(entries)),
		rules:   DefaultTagRules(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	var buildings, units, technologies []uint32
	for _, entry := range entries {
		if _, exists := c.entries[entry.ID]; exists {
			continue
		}
		if entry.Age == 0 {
			entry.Age = 1
		}
		c.entries[entry.ID] = entry
		switch entry.Kind {
		case KindBuilding:
			buildings = append(buildings, entry.ID)
		case KindUnit:
			units = append(units, entry.ID)
		case KindTechnology:
			technologies = append(technologies, entry.ID)
		}
	}
	c.buildings = NewIDSet(buildings...)
	c.units = NewIDSet(units...)
	c.technologies = NewIDSet(technologies...)
	c.civBaseIDs = indexCivBaseIDs(c.entries)
	return c
}

// Lookup returns the entry for id.
func (c *Catalog) Lookup(id uint32) (Entry, bool) {
	if c == nil {
		return Entry{}, false
	}
	entry, ok := c.entries[id]
	return entry, ok
}

// Len reports the number of indexed identifiers.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

// Buildings returns the identifier set of building entries.
func (c *Catalog) Buildings() IDSet { return c.buildings }

// Units returns the identifier set of unit entries.
func (c *Catalog) Units() IDSet { return c.units }

// Technologies returns the identifier set of technology entries.
func (c *Catalog) Technologies() IDSet { return c.technologies }

// Rules exposes the predicate table the catalog was built with.
func (c *Catalog) Rules() TagRules {
	if c == nil {
		return DefaultTagRules()
	}
	return c.rules
}

// AgeUpOf applies the catalog's predicate table to entry.
func (c *Catalog) AgeUpOf(entry Entry) AgeUp {
	return c.Rules().AgeUpOf(entry)
}
