// Package domain holds the core types of the market scanner: exchange
// snapshot inputs, the priced runner ladder, evaluation outputs, and the
// storage interfaces implemented by the infra packages. It has no
// dependencies outside the standard library and internal/ticks.
package domain

import "time"

// Runner book statuses as reported by the exchange.
const (
	RunnerActive  = "ACTIVE"
	RunnerRemoved = "REMOVED"
	RunnerWinner  = "WINNER"
	RunnerLoser   = "LOSER"
)

// CatalogueRunner is a runner's static description from the market
// catalogue. ClothNumber is 0 when the metadata does not carry one.
type CatalogueRunner struct {
	SelectionID int64  `json:"selectionId"`
	Name        string `json:"runnerName"`
	ClothNumber int    `json:"clothNumber,omitempty"`
}

// MarketCatalogue is the static side of a market snapshot: identity, venue
// country, start time, and the declared runners.
type MarketCatalogue struct {
	MarketID    string            `json:"marketId"`
	MarketName  string            `json:"marketName"`
	CountryCode string            `json:"countryCode"`
	StartTime   time.Time         `json:"startTime"`
	Runners     []CatalogueRunner `json:"runners"`
}

// Offer is one priced level on a side of a runner's book.
type Offer struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// BookRunner is a runner's live book state: status and the best available
// offers on each side, best first.
type BookRunner struct {
	SelectionID     int64   `json:"selectionId"`
	Status          string  `json:"status"`
	AvailableToBack []Offer `json:"availableToBack"`
	AvailableToLay  []Offer `json:"availableToLay"`
}

// MarketBook is the dynamic side of a market snapshot.
type MarketBook struct {
	MarketID     string       `json:"marketId"`
	TotalMatched float64      `json:"totalMatched"`
	Runners      []BookRunner `json:"runners"`
}
