// Package selection picks at most one tradable runner from an accepted
// market's ladder: hard safety gates first, then banded preference tiers,
// then a deterministic tuple ordering. Every runner's outcome is recorded
// so a selection (or its absence) can always be explained.
package selection

import (
	"fmt"
	"sort"

	"github.com/mkirwan/betflow/internal/domain"
	"github.com/mkirwan/betflow/internal/filters"
	"github.com/mkirwan/betflow/internal/ticks"
)

// Result is a selection outcome: the chosen runner (nil when no runner
// qualifies) and the full per-runner audit trail in price-rank order.
type Result struct {
	Selected *domain.SelectionRow
	Rows     []domain.SelectionRow
}

// Select runs the two-phase selection over a favourite-first ladder.
//
// Phase one applies hard gates in a fixed order per runner: both quotes
// present, back and lay inside the hard band, spread within the cap, and
// rank exclusion. The first failing gate sets the row's reason.
//
// Phase two classifies survivors by best back: primary band, or secondary
// band when the market's anchor implied sum unlocks it. Each pool is
// ordered by (spreadTicks, distanceTicks to the band target, bestBack),
// all ascending. The primary pool wins whenever it is non-empty.
func Select(quotes []domain.RunnerQuote, metrics domain.StructureMetrics, cfg filters.Selection) Result {
	fieldSize := len(quotes)
	topN, bottomN := cfg.RankExclusion.Resolve(fieldSize)

	rows := make([]domain.SelectionRow, len(quotes))
	var primary, secondary []int

	for i, q := range quotes {
		row := domain.SelectionRow{
			SelectionID: q.SelectionID,
			Name:        q.Name,
			Rank:        q.Rank,
			BestBack:    q.BestBack,
			BestLay:     q.BestLay,
			Band:        domain.BandNone,
		}
		row.SpreadTicks, row.HasSpread = q.SpreadTicks()

		switch {
		case q.BestBack == nil || q.BestLay == nil:
			row.Reason = "missing back or lay price"
		case !cfg.HardBand.Contains(*q.BestBack) || !cfg.HardBand.Contains(*q.BestLay):
			row.Reason = fmt.Sprintf("price outside hard band [%.2f-%.2f]", cfg.HardBand.Min, cfg.HardBand.Max)
		case row.SpreadTicks > cfg.MaxSpreadTicks:
			row.Reason = fmt.Sprintf("spread %d > %d ticks", row.SpreadTicks, cfg.MaxSpreadTicks)
		case excludedByRank(q.Rank, fieldSize, topN, bottomN):
			row.Reason = fmt.Sprintf("rank %d excluded (top %d / bottom %d of %d)", q.Rank, topN, bottomN, fieldSize)
		case cfg.PrimaryBand.Contains(*q.BestBack):
			row.Band = domain.BandPrimary
			row.DistanceTicks = ticks.Distance(*q.BestBack, cfg.PrimaryBand.TargetPrice())
			row.Eligible = true
			primary = append(primary, i)
		case cfg.SecondaryBand.Contains(*q.BestBack):
			if metrics.AnchorImpliedSum >= cfg.SecondaryBand.RequiresAnchorImpliedAtLeast {
				row.Band = domain.BandSecondary
				row.DistanceTicks = ticks.Distance(*q.BestBack, cfg.SecondaryBand.TargetPrice())
				row.Eligible = true
				secondary = append(secondary, i)
			} else {
				row.Reason = fmt.Sprintf("secondary band locked (anchor %.3f < %.3f)",
					metrics.AnchorImpliedSum, cfg.SecondaryBand.RequiresAnchorImpliedAtLeast)
			}
		default:
			row.Reason = "price outside primary and secondary bands"
		}
		rows[i] = row
	}

	orderPool(rows, primary)
	orderPool(rows, secondary)

	res := Result{Rows: rows}
	if len(primary) > 0 {
		res.Selected = &rows[primary[0]]
	} else if len(secondary) > 0 {
		res.Selected = &rows[secondary[0]]
	}
	return res
}

// excludedByRank reports whether a price rank falls in the excluded top or
// bottom slice of the field, counting from either end.
func excludedByRank(rank, fieldSize, topN, bottomN int) bool {
	return rank <= topN || rank > fieldSize-bottomN
}

// orderPool sorts a pool of row indices by (spreadTicks, distanceTicks,
// bestBack) ascending. The sort is stable so equal tuples keep rank order.
func orderPool(rows []domain.SelectionRow, pool []int) {
	sort.SliceStable(pool, func(i, j int) bool {
		a, b := rows[pool[i]], rows[pool[j]]
		if a.SpreadTicks != b.SpreadTicks {
			return a.SpreadTicks < b.SpreadTicks
		}
		if a.DistanceTicks != b.DistanceTicks {
			return a.DistanceTicks < b.DistanceTicks
		}
		return *a.BestBack < *b.BestBack
	})
}
