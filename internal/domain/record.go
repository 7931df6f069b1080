package domain

import "time"

// StructureMetrics summarizes the price structure of a runner ladder.
//
// AnchorImpliedSum is the summed back-implied probability of the top priced
// runners. SoupBandRatio is lastBack/firstBack over the soup window, with
// SoupRatioSentinel when fewer than two runners are priced: an unmeasurable
// soup gate passes. TierMaxAdjacentRatio is the largest adjacent back-price
// jump in the tier window, 0 when unmeasurable: an unmeasurable tier gate
// fails. The two defaults lean opposite ways on purpose.
type StructureMetrics struct {
	RunnerCount          int     `json:"runnerCount"`
	PricedRunnerCount    int     `json:"pricedRunnerCount"`
	AnchorImpliedSum     float64 `json:"anchorImpliedSum"`
	SoupBandRatio        float64 `json:"soupBandRatio"`
	TierMaxAdjacentRatio float64 `json:"tierMaxAdjacentRatio"`
}

// SoupRatioSentinel stands in for the soup band ratio when fewer than two
// runners are priced. It exceeds any plausible threshold, so the soup gate
// passes on insufficient data.
const SoupRatioSentinel = 999.0

// RuleResult is one market-level check outcome with its human detail line.
type RuleResult struct {
	Label  string `json:"label"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail"`
}

// MarketVerdict is the outcome of the market rule evaluation: the resolved
// region (empty when no region matched the country), the fixed-order check
// results, and the overall accept flag.
type MarketVerdict struct {
	Accepted bool         `json:"accepted"`
	Region   string       `json:"region"`
	Checks   []RuleResult `json:"checks"`
}

// Price band classifications assigned by the selection engine.
const (
	BandPrimary   = "primary"
	BandSecondary = "secondary"
	BandNone      = "none"
)

// SelectionRow is the audit record for one runner passed through the
// selection engine: its quote, gate outcome, band, and distance ranking
// inputs. Reason is empty for eligible rows.
type SelectionRow struct {
	SelectionID   int64    `json:"selectionId"`
	Name          string   `json:"name"`
	Rank          int      `json:"rank"`
	BestBack      *float64 `json:"bestBack,omitempty"`
	BestLay       *float64 `json:"bestLay,omitempty"`
	SpreadTicks   int      `json:"spreadTicks"`
	HasSpread     bool     `json:"hasSpread"`
	Band          string   `json:"band"`
	DistanceTicks int      `json:"distanceTicks"`
	Eligible      bool     `json:"eligible"`
	Reason        string   `json:"reason,omitempty"`
}

// EvaluationRecord is a persisted market evaluation from one scan run.
type EvaluationRecord struct {
	RunID       string           `json:"runId"`
	MarketID    string           `json:"marketId"`
	MarketName  string           `json:"marketName"`
	CountryCode string           `json:"countryCode"`
	StartTime   time.Time        `json:"startTime"`
	EvaluatedAt time.Time        `json:"evaluatedAt"`
	Metrics     StructureMetrics `json:"metrics"`
	Verdict     MarketVerdict    `json:"verdict"`
}

// SelectionRecord is a persisted runner selection from one scan run,
// together with the full per-runner audit trail that produced it.
type SelectionRecord struct {
	ID         string         `json:"id"`
	RunID      string         `json:"runId"`
	MarketID   string         `json:"marketId"`
	MarketName string         `json:"marketName"`
	Selected   SelectionRow   `json:"selected"`
	Audit      []SelectionRow `json:"audit"`
	CreatedAt  time.Time      `json:"createdAt"`
}
