// Package filters holds the strategy thresholds of the scanner: regions and
// their country sets, market gate parameters, and the runner selection
// bands. Loaded from YAML and validated up front so the engine packages can
// assume a well-formed configuration.
package filters

import (
	"sort"
	"strings"
)

// RunnerRange is an inclusive field-size bracket.
type RunnerRange struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// Contains reports whether n falls inside the bracket.
func (r RunnerRange) Contains(n int) bool {
	return n >= r.Min && n <= r.Max
}

// Region groups venues by country code and optionally overrides the global
// liquidity and field-size thresholds.
type Region struct {
	Name         string       `yaml:"name"`
	Countries    []string     `yaml:"countries"`
	LiquidityMin *float64     `yaml:"liquidity_min,omitempty"`
	RunnerRange  *RunnerRange `yaml:"runner_range,omitempty"`
}

// Defaults are the global thresholds used when a region carries no override.
type Defaults struct {
	RunnerRange  RunnerRange `yaml:"runner_range"`
	LiquidityMin float64     `yaml:"liquidity_min"`
}

// AnchorGate requires the top-N implied probability sum to reach a floor.
type AnchorGate struct {
	TopN          int     `yaml:"top_n"`
	MinTopImplied float64 `yaml:"min_top_implied"`
}

// SoupGate rejects markets whose top prices bunch too tightly. The gate
// passes when the band ratio exceeds the threshold.
type SoupGate struct {
	TopK         int     `yaml:"top_k"`
	MaxBandRatio float64 `yaml:"max_band_ratio"`
}

// TierGate requires at least one clear price step within the top region.
type TierGate struct {
	TopRegion    int     `yaml:"top_region"`
	MinJumpRatio float64 `yaml:"min_jump_ratio"`
}

// Gates groups the three structure gate parameter sets.
type Gates struct {
	Anchor AnchorGate `yaml:"anchor"`
	Soup   SoupGate   `yaml:"soup"`
	Tier   TierGate   `yaml:"tier"`
}

// Band is an inclusive price band with an optional explicit target price.
type Band struct {
	Min    float64  `yaml:"min"`
	Max    float64  `yaml:"max"`
	Target *float64 `yaml:"target,omitempty"`
}

// Contains reports whether the price falls inside the band.
func (b Band) Contains(price float64) bool {
	return price >= b.Min && price <= b.Max
}

// TargetPrice returns the configured target, or the band midpoint when no
// target is set.
func (b Band) TargetPrice() float64 {
	if b.Target != nil {
		return *b.Target
	}
	return (b.Min + b.Max) / 2
}

// SecondaryBand is a price band that only unlocks when the market's anchor
// implied sum reaches the coupling threshold.
type SecondaryBand struct {
	Band                         `yaml:",inline"`
	RequiresAnchorImpliedAtLeast float64 `yaml:"requires_anchor_implied_at_least"`
}

// RankRule keys a rank exclusion on field size: the first rule whose
// MaxFieldSize covers the current field wins.
type RankRule struct {
	MaxFieldSize int `yaml:"max_field_size"`
	TopN         int `yaml:"top_n"`
	BottomN      int `yaml:"bottom_n"`
}

// RankExclusion excludes runners ranked near either end of the ladder,
// either statically or via field-size-keyed rules.
type RankExclusion struct {
	TopN    int        `yaml:"top_n"`
	BottomN int        `yaml:"bottom_n"`
	Rules   []RankRule `yaml:"rules,omitempty"`
}

// Resolve returns the (topN, bottomN) exclusion for the given field size:
// the first rule bracketing the field, or the static values when no rule
// matches. Rules are validated to be in ascending MaxFieldSize order.
func (r RankExclusion) Resolve(fieldSize int) (topN, bottomN int) {
	for _, rule := range r.Rules {
		if fieldSize <= rule.MaxFieldSize {
			return rule.TopN, rule.BottomN
		}
	}
	return r.TopN, r.BottomN
}

// Selection holds the runner selection engine parameters.
type Selection struct {
	HardBand       Band          `yaml:"hard_band"`
	PrimaryBand    Band          `yaml:"primary_band"`
	SecondaryBand  SecondaryBand `yaml:"secondary_band"`
	MaxSpreadTicks int           `yaml:"max_spread_ticks"`
	RankExclusion  RankExclusion `yaml:"rank_exclusion"`
}

// Config is the full strategy threshold file.
type Config struct {
	Regions   map[string]Region `yaml:"regions"`
	Defaults  Defaults          `yaml:"defaults"`
	Gates     Gates             `yaml:"gates"`
	Selection Selection         `yaml:"selection"`
}

// RegionForCountry resolves a country code to the region whose country set
// contains it, case-insensitively. Region codes are scanned in sorted order
// so resolution is deterministic; validation guarantees a country belongs
// to at most one region. Returns "" when the code is empty or unmapped.
func (c Config) RegionForCountry(countryCode string) string {
	cc := strings.ToUpper(strings.TrimSpace(countryCode))
	if cc == "" {
		return ""
	}
	codes := make([]string, 0, len(c.Regions))
	for code := range c.Regions {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		for _, country := range c.Regions[code].Countries {
			if strings.EqualFold(country, cc) {
				return code
			}
		}
	}
	return ""
}

// RunnerRangeFor returns the region's field-size bracket, or the global
// default when the region is unknown or carries no override.
func (c Config) RunnerRangeFor(regionCode string) RunnerRange {
	if r, ok := c.Regions[regionCode]; ok && r.RunnerRange != nil {
		return *r.RunnerRange
	}
	return c.Defaults.RunnerRange
}

// LiquidityMinFor returns the region's liquidity minimum, or the global
// default when the region is unknown or carries no override.
func (c Config) LiquidityMinFor(regionCode string) float64 {
	if r, ok := c.Regions[regionCode]; ok && r.LiquidityMin != nil {
		return *r.LiquidityMin
	}
	return c.Defaults.LiquidityMin
}

// AllCountries returns every configured country code, upper-cased and
// sorted, for use in exchange discovery filters.
func (c Config) AllCountries() []string {
	var out []string
	for _, r := range c.Regions {
		for _, country := range r.Countries {
			out = append(out, strings.ToUpper(country))
		}
	}
	sort.Strings(out)
	return out
}
