package filters

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads and validates the strategy threshold file. Unknown YAML keys
// are rejected so typos fail loudly instead of silently falling back to
// zero values.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("filters: open %s: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("filters: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("filters: %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration shape and reports every problem found,
// not just the first one.
func (c Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if len(c.Regions) == 0 {
		add("regions: at least one region is required")
	}
	codes := make([]string, 0, len(c.Regions))
	for code := range c.Regions {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	seenCountry := map[string]string{}
	for _, code := range codes {
		r := c.Regions[code]
		if len(r.Countries) == 0 {
			add("regions.%s: at least one country code is required", code)
		}
		for _, country := range r.Countries {
			cc := strings.ToUpper(strings.TrimSpace(country))
			if cc == "" {
				add("regions.%s: empty country code", code)
				continue
			}
			if prev, dup := seenCountry[cc]; dup {
				add("regions.%s: country %s already mapped to region %s", code, cc, prev)
				continue
			}
			seenCountry[cc] = code
		}
		if r.RunnerRange != nil {
			validateRunnerRange(add, "regions."+code+".runner_range", *r.RunnerRange)
		}
		if r.LiquidityMin != nil && *r.LiquidityMin < 0 {
			add("regions.%s.liquidity_min: must be >= 0", code)
		}
	}

	validateRunnerRange(add, "defaults.runner_range", c.Defaults.RunnerRange)
	if c.Defaults.LiquidityMin < 0 {
		add("defaults.liquidity_min: must be >= 0")
	}

	if c.Gates.Anchor.TopN < 1 {
		add("gates.anchor.top_n: must be >= 1")
	}
	if c.Gates.Anchor.MinTopImplied <= 0 || c.Gates.Anchor.MinTopImplied > 1.5 {
		add("gates.anchor.min_top_implied: must be in (0, 1.5]")
	}
	if c.Gates.Soup.TopK < 2 {
		add("gates.soup.top_k: must be >= 2")
	}
	if c.Gates.Soup.MaxBandRatio <= 1 {
		add("gates.soup.max_band_ratio: must be > 1")
	}
	if c.Gates.Tier.TopRegion < 2 {
		add("gates.tier.top_region: must be >= 2")
	}
	if c.Gates.Tier.MinJumpRatio < 1 {
		add("gates.tier.min_jump_ratio: must be >= 1")
	}

	validateBand(add, "selection.hard_band", c.Selection.HardBand)
	validateBand(add, "selection.primary_band", c.Selection.PrimaryBand)
	validateBand(add, "selection.secondary_band", c.Selection.SecondaryBand.Band)
	if c.Selection.SecondaryBand.RequiresAnchorImpliedAtLeast < 0 {
		add("selection.secondary_band.requires_anchor_implied_at_least: must be >= 0")
	}
	if c.Selection.MaxSpreadTicks < 0 {
		add("selection.max_spread_ticks: must be >= 0")
	}
	if c.Selection.RankExclusion.TopN < 0 || c.Selection.RankExclusion.BottomN < 0 {
		add("selection.rank_exclusion: top_n and bottom_n must be >= 0")
	}
	prev := 0
	for i, rule := range c.Selection.RankExclusion.Rules {
		if rule.MaxFieldSize <= prev {
			add("selection.rank_exclusion.rules[%d]: max_field_size must ascend (got %d after %d)", i, rule.MaxFieldSize, prev)
		}
		if rule.TopN < 0 || rule.BottomN < 0 {
			add("selection.rank_exclusion.rules[%d]: top_n and bottom_n must be >= 0", i)
		}
		prev = rule.MaxFieldSize
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("invalid filter config:\n  - %s", strings.Join(problems, "\n  - "))
}

func validateRunnerRange(add func(string, ...any), path string, r RunnerRange) {
	if r.Min < 1 {
		add("%s.min: must be >= 1", path)
	}
	if r.Max < r.Min {
		add("%s: max %d is below min %d", path, r.Max, r.Min)
	}
}

func validateBand(add func(string, ...any), path string, b Band) {
	if b.Min <= 1 {
		add("%s.min: must be > 1", path)
	}
	if b.Max < b.Min {
		add("%s: max %.2f is below min %.2f", path, b.Max, b.Min)
	}
	if b.Target != nil && !b.Contains(*b.Target) {
		add("%s.target: %.2f is outside [%.2f, %.2f]", path, *b.Target, b.Min, b.Max)
	}
}
