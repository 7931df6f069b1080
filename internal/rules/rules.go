// Package rules evaluates market-level eligibility: region resolution,
// field size, liquidity, and the three structure gates. Every check runs
// every time so the verdict always carries a full six-item report.
package rules

import (
	"fmt"

	"github.com/mkirwan/betflow/internal/domain"
	"github.com/mkirwan/betflow/internal/filters"
)

// Input is the market state the evaluator judges: venue country, matched
// volume, and the precomputed structure metrics.
type Input struct {
	CountryCode  string
	TotalMatched float64
	Metrics      domain.StructureMetrics
}

// Evaluate runs the six checks in fixed order: Country, Field size,
// Liquidity, Anchor, Soup, Tier. No check short-circuits. Field size and
// Liquidity are region-driven, so when no region resolves they fail as
// skipped rather than guessing a threshold. The market is accepted only
// when all six pass.
func Evaluate(in Input, cfg filters.Config) domain.MarketVerdict {
	checks := make([]domain.RuleResult, 0, 6)
	region := cfg.RegionForCountry(in.CountryCode)

	switch {
	case in.CountryCode == "":
		checks = append(checks, domain.RuleResult{Label: "Country", Detail: "missing country code"})
	case region == "":
		checks = append(checks, domain.RuleResult{
			Label:  "Country",
			Detail: fmt.Sprintf("%s not in any configured region", in.CountryCode),
		})
	default:
		checks = append(checks, domain.RuleResult{
			Label:  "Country",
			OK:     true,
			Detail: fmt.Sprintf("%s -> %s (%s)", in.CountryCode, region, cfg.Regions[region].Name),
		})
	}

	if region != "" {
		rr := cfg.RunnerRangeFor(region)
		checks = append(checks, domain.RuleResult{
			Label:  "Field size",
			OK:     rr.Contains(in.Metrics.RunnerCount),
			Detail: fmt.Sprintf("%d in [%d-%d]", in.Metrics.RunnerCount, rr.Min, rr.Max),
		})

		liqMin := cfg.LiquidityMinFor(region)
		checks = append(checks, domain.RuleResult{
			Label:  "Liquidity",
			OK:     in.TotalMatched >= liqMin,
			Detail: fmt.Sprintf("%.0f >= %.0f", in.TotalMatched, liqMin),
		})
	} else {
		checks = append(checks,
			domain.RuleResult{Label: "Field size", Detail: "skipped (no region resolved)"},
			domain.RuleResult{Label: "Liquidity", Detail: "skipped (no region resolved)"},
		)
	}

	anchor := cfg.Gates.Anchor
	checks = append(checks, domain.RuleResult{
		Label:  fmt.Sprintf("Anchor (top%d implied)", anchor.TopN),
		OK:     in.Metrics.AnchorImpliedSum >= anchor.MinTopImplied,
		Detail: fmt.Sprintf("%.3f >= %.3f", in.Metrics.AnchorImpliedSum, anchor.MinTopImplied),
	})

	// Soup is inverted: a low band ratio means the top prices bunch into
	// one indistinct cluster, so the gate requires ratio above threshold.
	soup := cfg.Gates.Soup
	checks = append(checks, domain.RuleResult{
		Label:  fmt.Sprintf("Soup (top%d band ratio)", soup.TopK),
		OK:     in.Metrics.SoupBandRatio > soup.MaxBandRatio,
		Detail: fmt.Sprintf("%.3f > %.3f", in.Metrics.SoupBandRatio, soup.MaxBandRatio),
	})

	tier := cfg.Gates.Tier
	checks = append(checks, domain.RuleResult{
		Label:  fmt.Sprintf("Tier (max adjacent jump top%d)", tier.TopRegion),
		OK:     in.Metrics.TierMaxAdjacentRatio >= tier.MinJumpRatio,
		Detail: fmt.Sprintf("%.3f >= %.3f", in.Metrics.TierMaxAdjacentRatio, tier.MinJumpRatio),
	})

	accepted := true
	for _, c := range checks {
		accepted = accepted && c.OK
	}
	return domain.MarketVerdict{Accepted: accepted, Region: region, Checks: checks}
}
