// Package structure computes market structure metrics over a runner ladder:
// how concentrated the favourites are, how tightly the mid-pack prices
// bunch, and how cleanly the top of the market separates into tiers.
package structure

import "github.com/mkirwan/betflow/internal/domain"

// Params sets the window sizes for the three metrics.
type Params struct {
	// AnchorTopN is how many priced favourites contribute to the summed
	// implied probability.
	AnchorTopN int
	// SoupTopK is the window over which the band ratio (last back price /
	// first back price) is measured.
	SoupTopK int
	// TierTopRegion is the window over which the max adjacent back-price
	// ratio is measured.
	TierTopRegion int
}

// Compute derives the structure metrics from a favourite-first ladder.
// Windows larger than the priced field shrink to fit. With fewer than two
// priced runners the soup ratio falls back to domain.SoupRatioSentinel and
// the tier ratio to 0; the downstream gates read those as pass and fail
// respectively.
func Compute(quotes []domain.RunnerQuote, p Params) domain.StructureMetrics {
	m := domain.StructureMetrics{RunnerCount: len(quotes)}

	priced := make([]float64, 0, len(quotes))
	for _, q := range quotes {
		if q.Priced() {
			priced = append(priced, *q.BestBack)
		}
	}
	m.PricedRunnerCount = len(priced)

	for _, back := range topN(priced, p.AnchorTopN) {
		m.AnchorImpliedSum += 1 / back
	}

	if soup := topN(priced, p.SoupTopK); len(soup) >= 2 {
		mn, mx := soup[0], soup[0]
		for _, b := range soup[1:] {
			if b < mn {
				mn = b
			}
			if b > mx {
				mx = b
			}
		}
		m.SoupBandRatio = mx / mn
	} else {
		m.SoupBandRatio = domain.SoupRatioSentinel
	}

	if tier := topN(priced, p.TierTopRegion); len(tier) >= 2 {
		for i := 1; i < len(tier); i++ {
			if ratio := tier[i] / tier[i-1]; ratio > m.TierMaxAdjacentRatio {
				m.TierMaxAdjacentRatio = ratio
			}
		}
	}
	return m
}

func topN(backs []float64, n int) []float64 {
	if n > len(backs) {
		n = len(backs)
	}
	if n < 0 {
		n = 0
	}
	return backs[:n]
}
