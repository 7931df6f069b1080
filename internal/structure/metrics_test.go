package structure

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mkirwan/betflow/internal/domain"
)

func quotesFromBacks(backs ...float64) []domain.RunnerQuote {
	quotes := make([]domain.RunnerQuote, len(backs))
	for i, b := range backs {
		v := b
		quotes[i] = domain.RunnerQuote{SelectionID: int64(i + 1), Rank: i + 1}
		if v > 0 {
			quotes[i].BestBack = &v
		}
	}
	return quotes
}

var defaultParams = Params{AnchorTopN: 3, SoupTopK: 5, TierTopRegion: 6}

func TestComputeEightRunnerField(t *testing.T) {
	quotes := quotesFromBacks(1.5, 2.0, 3.5, 5.0, 8.0, 12.0, 20.0, 40.0)

	m := Compute(quotes, defaultParams)

	assert.Equal(t, 8, m.RunnerCount)
	assert.Equal(t, 8, m.PricedRunnerCount)
	// 1/1.5 + 1/2.0 + 1/3.5
	assert.InDelta(t, 1.452, m.AnchorImpliedSum, 0.001)
	// 8.0 / 1.5 over the top-5 window
	assert.InDelta(t, 5.333, m.SoupBandRatio, 0.001)
	// max of 2.0/1.5, 3.5/2.0, 5.0/3.5, 8.0/5.0, 12.0/8.0
	assert.InDelta(t, 1.75, m.TierMaxAdjacentRatio, 0.001)
}

func TestComputeSkipsUnpricedRunners(t *testing.T) {
	quotes := quotesFromBacks(2.0, 0, 4.0, 0, 8.0)
	// Back prices at 1.0 are not priced either.
	one := 1.0
	quotes[1].BestBack = &one

	m := Compute(quotes, defaultParams)

	assert.Equal(t, 5, m.RunnerCount)
	assert.Equal(t, 3, m.PricedRunnerCount)
	assert.InDelta(t, 0.5+0.25+0.125, m.AnchorImpliedSum, 1e-9)
	assert.InDelta(t, 4.0, m.SoupBandRatio, 1e-9)
	assert.InDelta(t, 2.0, m.TierMaxAdjacentRatio, 1e-9)
}

func TestComputeInsufficientDataDefaults(t *testing.T) {
	t.Run("no priced runners", func(t *testing.T) {
		m := Compute(quotesFromBacks(0, 0, 0), defaultParams)
		assert.Equal(t, 3, m.RunnerCount)
		assert.Equal(t, 0, m.PricedRunnerCount)
		assert.Zero(t, m.AnchorImpliedSum)
		// Soup falls permissive, tier falls restrictive.
		assert.Equal(t, domain.SoupRatioSentinel, m.SoupBandRatio)
		assert.Zero(t, m.TierMaxAdjacentRatio)
	})

	t.Run("one priced runner", func(t *testing.T) {
		m := Compute(quotesFromBacks(2.0), defaultParams)
		assert.Equal(t, 1, m.PricedRunnerCount)
		assert.InDelta(t, 0.5, m.AnchorImpliedSum, 1e-9)
		assert.Equal(t, domain.SoupRatioSentinel, m.SoupBandRatio)
		assert.Zero(t, m.TierMaxAdjacentRatio)
	})

	t.Run("empty ladder", func(t *testing.T) {
		m := Compute(nil, defaultParams)
		assert.Zero(t, m.RunnerCount)
		assert.Equal(t, domain.SoupRatioSentinel, m.SoupBandRatio)
		assert.Zero(t, m.TierMaxAdjacentRatio)
	})
}

func TestComputeWindowsShrinkToField(t *testing.T) {
	m := Compute(quotesFromBacks(2.0, 4.0), Params{AnchorTopN: 10, SoupTopK: 10, TierTopRegion: 10})

	assert.InDelta(t, 0.75, m.AnchorImpliedSum, 1e-9)
	assert.InDelta(t, 2.0, m.SoupBandRatio, 1e-9)
	assert.InDelta(t, 2.0, m.TierMaxAdjacentRatio, 1e-9)
}
