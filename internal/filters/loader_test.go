package filters

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
regions:
  UKIRE:
    name: UK & Ireland
    countries: [GB, IE]
    liquidity_min: 200000
  ANZ:
    name: Australia & New Zealand
    countries: [AU, NZ]
    runner_range: {min: 6, max: 14}
defaults:
  runner_range: {min: 5, max: 16}
  liquidity_min: 100000
gates:
  anchor: {top_n: 3, min_top_implied: 0.65}
  soup: {top_k: 5, max_band_ratio: 1.20}
  tier: {top_region: 6, min_jump_ratio: 1.25}
selection:
  hard_band: {min: 1.5, max: 12.0}
  primary_band: {min: 2.0, max: 5.0, target: 3.5}
  secondary_band:
    min: 5.0
    max: 8.0
    requires_anchor_implied_at_least: 1.1
  max_spread_ticks: 3
  rank_exclusion:
    top_n: 1
    bottom_n: 2
    rules:
      - {max_field_size: 9, top_n: 1, bottom_n: 1}
      - {max_field_size: 16, top_n: 1, bottom_n: 3}
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "filters.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadValid(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Len(t, cfg.Regions, 2)
	assert.Equal(t, []string{"AU", "GB", "IE", "NZ"}, cfg.AllCountries())
	assert.Equal(t, 3, cfg.Gates.Anchor.TopN)
	require.NotNil(t, cfg.Selection.PrimaryBand.Target)
	assert.Equal(t, 3.5, *cfg.Selection.PrimaryBand.Target)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load(writeConfig(t, validYAML+"\nextra_section: {}\n"))
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Config{
		Regions: map[string]Region{
			"EMPTY": {Name: "Empty"},
			"A":     {Name: "A", Countries: []string{"GB"}},
			"B":     {Name: "B", Countries: []string{"gb"}},
		},
		Defaults: Defaults{RunnerRange: RunnerRange{Min: 10, Max: 5}, LiquidityMin: -1},
		Gates: Gates{
			Anchor: AnchorGate{TopN: 0, MinTopImplied: 2.0},
			Soup:   SoupGate{TopK: 1, MaxBandRatio: 1.0},
			Tier:   TierGate{TopRegion: 1, MinJumpRatio: 0.5},
		},
		Selection: Selection{
			HardBand:       Band{Min: 5, Max: 2},
			PrimaryBand:    Band{Min: 2, Max: 4},
			SecondaryBand:  SecondaryBand{Band: Band{Min: 4, Max: 8}},
			MaxSpreadTicks: -1,
			RankExclusion: RankExclusion{
				Rules: []RankRule{
					{MaxFieldSize: 10, TopN: 1},
					{MaxFieldSize: 10, TopN: 1},
				},
			},
		},
	}

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "regions.EMPTY")
	assert.Contains(t, msg, "already mapped to region")
	assert.Contains(t, msg, "defaults.runner_range")
	assert.Contains(t, msg, "defaults.liquidity_min")
	assert.Contains(t, msg, "gates.anchor.top_n")
	assert.Contains(t, msg, "gates.anchor.min_top_implied")
	assert.Contains(t, msg, "gates.soup.top_k")
	assert.Contains(t, msg, "gates.soup.max_band_ratio")
	assert.Contains(t, msg, "gates.tier.top_region")
	assert.Contains(t, msg, "gates.tier.min_jump_ratio")
	assert.Contains(t, msg, "selection.hard_band")
	assert.Contains(t, msg, "selection.max_spread_ticks")
	assert.Contains(t, msg, "rank_exclusion.rules[1]")
}

func TestValidateRejectsOutOfBandTarget(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)
	bad := 20.0
	cfg.Selection.PrimaryBand.Target = &bad
	require.ErrorContains(t, cfg.Validate(), "primary_band.target")
}

func TestRegionForCountry(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, "UKIRE", cfg.RegionForCountry("GB"))
	assert.Equal(t, "UKIRE", cfg.RegionForCountry("gb"))
	assert.Equal(t, "ANZ", cfg.RegionForCountry(" au "))
	assert.Equal(t, "", cfg.RegionForCountry("FR"))
	assert.Equal(t, "", cfg.RegionForCountry(""))
}

func TestRegionThresholdFallbacks(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	// UKIRE overrides liquidity only; ANZ overrides runner range only.
	assert.Equal(t, 200000.0, cfg.LiquidityMinFor("UKIRE"))
	assert.Equal(t, RunnerRange{Min: 5, Max: 16}, cfg.RunnerRangeFor("UKIRE"))
	assert.Equal(t, 100000.0, cfg.LiquidityMinFor("ANZ"))
	assert.Equal(t, RunnerRange{Min: 6, Max: 14}, cfg.RunnerRangeFor("ANZ"))
	assert.Equal(t, 100000.0, cfg.LiquidityMinFor(""))
}

func TestRankExclusionResolve(t *testing.T) {
	rx := RankExclusion{
		TopN:    1,
		BottomN: 2,
		Rules: []RankRule{
			{MaxFieldSize: 9, TopN: 1, BottomN: 1},
			{MaxFieldSize: 16, TopN: 1, BottomN: 3},
		},
	}

	top, bottom := rx.Resolve(8)
	assert.Equal(t, [2]int{1, 1}, [2]int{top, bottom})
	top, bottom = rx.Resolve(9)
	assert.Equal(t, [2]int{1, 1}, [2]int{top, bottom})
	top, bottom = rx.Resolve(12)
	assert.Equal(t, [2]int{1, 3}, [2]int{top, bottom})
	// Beyond every rule: static fallback.
	top, bottom = rx.Resolve(20)
	assert.Equal(t, [2]int{1, 2}, [2]int{top, bottom})
}

func TestBandTargetPrice(t *testing.T) {
	explicit := 3.5
	assert.Equal(t, 3.5, Band{Min: 2, Max: 5, Target: &explicit}.TargetPrice())
	assert.Equal(t, 3.5, Band{Min: 2, Max: 5}.TargetPrice())
}
