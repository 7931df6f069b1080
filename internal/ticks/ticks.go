// Package ticks implements the Betfair price ladder: the exchange-defined
// minimum price increment at each odds level, and tick-distance arithmetic
// between prices. Everything here is pure and allocation-free.
package ticks

import "math"

// band is one row of the exchange increment table.
type band struct {
	lo   float64
	hi   float64
	size float64
}

// bands covers the tradable price range 1.01-1000 without gaps. A price on a
// boundary takes the upper band's increment, which is the step the exchange
// applies when moving up from that price (1.99 -> 2.00 -> 2.02).
var bands = []band{
	{1.01, 2.00, 0.01},
	{2.00, 3.00, 0.02},
	{3.00, 4.00, 0.05},
	{4.00, 6.00, 0.10},
	{6.00, 10.00, 0.20},
	{10.00, 20.00, 0.50},
	{20.00, 30.00, 1.00},
	{30.00, 50.00, 2.00},
	{50.00, 100.00, 5.00},
	{100.00, 1000.00, 10.00},
}

const (
	// maxWalkSteps bounds the tick walk so malformed inputs cannot spin.
	maxWalkSteps = 10000

	// walkEpsilon absorbs float drift in the "at or past target" test.
	walkEpsilon = 1e-9

	// DistanceSentinel is returned by Distance when either price is
	// unusable.
	DistanceSentinel = 999999
)

// Size returns the tick size at the given price. Prices below the table use
// the smallest band's increment and prices above use the largest band's;
// Size never fails.
func Size(price float64) float64 {
	if price < bands[0].lo {
		return bands[0].size
	}
	for _, b := range bands[:len(bands)-1] {
		if price < b.hi {
			return b.size
		}
	}
	return bands[len(bands)-1].size
}

// Between returns the number of exchange ticks needed to move from a up to
// b. It walks the ladder one tick at a time, re-reading the tick size at
// each step, because the increment changes across band boundaries within the
// interval; a constant-increment division would miscount any range that
// crosses a boundary. Returns 0 when b <= a or a is not a valid price. If
// the walk hits the safety bound the count reached so far is returned.
func Between(a, b float64) int {
	if a <= 0 || b <= a {
		return 0
	}
	count := 0
	cur := a
	for i := 0; i < maxWalkSteps; i++ {
		next := math.Round((cur+Size(cur))*1e10) / 1e10
		count++
		if next >= b-walkEpsilon {
			return count
		}
		cur = next
	}
	return count
}

// Distance returns the tick-rounded absolute distance from price to target,
// using the tick size at price. Non-positive inputs yield DistanceSentinel.
func Distance(price, target float64) int {
	if price <= 0 || target <= 0 {
		return DistanceSentinel
	}
	return int(math.Round(math.Abs(price-target) / Size(price)))
}
