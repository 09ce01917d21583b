package lifespan

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrEmptyCatalog is returned when no regions are configured.
var ErrEmptyCatalog = errors.New("lifespan: region catalog is empty")

// Region is a catalog entry: canonical name and average life expectancy in years.
type Region struct {
	Name  string `yaml:"name"`
	Years int    `yaml:"years"`
}

// DefaultExpectancyYears is used for stored regions that are no longer in the catalog.
const DefaultExpectancyYears = 72

// DefaultRegions returns the built-in catalog.
func DefaultRegions() []Region {
	return []Region{
		{Name: "Россия", Years: 72},
		{Name: "США", Years: 79},
		{Name: "Германия", Years: 81},
		{Name: "Япония", Years: 84},
		{Name: "Франция", Years: 83},
	}
}

// NormalizeRegion trims text, upper-cases its first letter and lower-cases the rest.
// It is a naive per-rune transform: "сша" becomes "Сша", which is why Catalog.Resolve
// also falls back to a case-insensitive match.
func NormalizeRegion(text string) string {
	text = strings.TrimSpace(text)
	first, size := utf8.DecodeRuneInString(text)
	if size == 0 {
		return ""
	}
	return string(unicode.ToUpper(first)) + strings.ToLower(text[size:])
}

// Catalog maps canonical region names to life expectancy. It is read-only after
// construction and safe for concurrent use.
type Catalog struct {
	regions      []Region
	byName       map[string]int
	defaultYears int
}

// NewCatalog validates regions and builds a catalog. A non-positive defaultYears
// selects DefaultExpectancyYears.
func NewCatalog(regions []Region, defaultYears int) (*Catalog, error) {
	if len(regions) == 0 {
		return nil, ErrEmptyCatalog
	}
	if defaultYears <= 0 {
		defaultYears = DefaultExpectancyYears
	}
	c := &Catalog{
		regions:      make([]Region, 0, len(regions)),
		byName:       make(map[string]int, len(regions)),
		defaultYears: defaultYears,
	}
	folded := make(map[string]struct{}, len(regions))
	for _, r := range regions {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			return nil, fmt.Errorf("lifespan: region with empty name")
		}
		if r.Years <= 0 {
			return nil, fmt.Errorf("lifespan: region %q: years must be > 0", name)
		}
		key := strings.ToLower(name)
		if _, dup := folded[key]; dup {
			return nil, fmt.Errorf("lifespan: duplicate region %q", name)
		}
		folded[key] = struct{}{}
		c.byName[name] = r.Years
		c.regions = append(c.regions, Region{Name: name, Years: r.Years})
	}
	return c, nil
}

// Lookup returns the expectancy for an exact canonical name.
func (c *Catalog) Lookup(canonical string) (int, bool) {
	years, ok := c.byName[canonical]
	return years, ok
}

// Resolve maps raw user input to a catalog entry: first by the normalized
// spelling, then by a case-insensitive comparison with every canonical name.
func (c *Catalog) Resolve(text string) (Region, bool) {
	normalized := NormalizeRegion(text)
	if normalized == "" {
		return Region{}, false
	}
	if years, ok := c.byName[normalized]; ok {
		return Region{Name: normalized, Years: years}, true
	}
	for _, r := range c.regions {
		if strings.EqualFold(r.Name, normalized) {
			return r, true
		}
	}
	return Region{}, false
}

// Regions lists canonical names in configuration order.
func (c *Catalog) Regions() []string {
	names := make([]string, len(c.regions))
	for i, r := range c.regions {
		names[i] = r.Name
	}
	return names
}

// Expectancy returns the years for name or the default when name is unknown.
func (c *Catalog) Expectancy(name string) int {
	if years, ok := c.byName[name]; ok {
		return years
	}
	return c.defaultYears
}

// DefaultYears reports the fallback expectancy.
func (c *Catalog) DefaultYears() int {
	return c.defaultYears
}
