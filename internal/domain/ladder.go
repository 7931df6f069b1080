package domain

import "github.com/mkirwan/betflow/internal/ticks"

// RunnerQuote is one row of the priced runner ladder: the join of a
// runner's catalogue description and its best book prices. BestBack and
// BestLay are nil when the corresponding side of the book is empty.
type RunnerQuote struct {
	SelectionID int64    `json:"selectionId"`
	ClothNumber int      `json:"clothNumber,omitempty"`
	Name        string   `json:"name"`
	BestBack    *float64 `json:"bestBack,omitempty"`
	BestLay     *float64 `json:"bestLay,omitempty"`
	Rank        int      `json:"rank"`
}

// Priced reports whether the quote has a usable back price. Back prices at
// or below 1.0 carry no probability information and are treated as absent.
func (q RunnerQuote) Priced() bool {
	return q.BestBack != nil && *q.BestBack > 1.0
}

// ImpliedProb returns the back-implied win probability 1/bestBack. The
// second return is false when the quote is not priced.
func (q RunnerQuote) ImpliedProb() (float64, bool) {
	if !q.Priced() {
		return 0, false
	}
	return 1 / *q.BestBack, true
}

// SpreadTicks returns the tick distance from best back up to best lay. The
// second return is false when either side is missing.
func (q RunnerQuote) SpreadTicks() (int, bool) {
	if q.BestBack == nil || q.BestLay == nil {
		return 0, false
	}
	return ticks.Between(*q.BestBack, *q.BestLay), true
}
