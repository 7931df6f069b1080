package scan

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkirwan/betflow/internal/domain"
	"github.com/mkirwan/betflow/internal/filters"
	"github.com/mkirwan/betflow/internal/platform/betfair"
)

type fakeExchange struct {
	mu        sync.Mutex
	cats      []domain.MarketCatalogue
	books     map[string]domain.MarketBook
	bookCalls int
}

func (f *fakeExchange) FindEventTypeID(context.Context) (string, error) {
	return "7", nil
}

func (f *fakeExchange) ListMarketCatalogue(_ context.Context, filter betfair.MarketFilter, _ int) ([]domain.MarketCatalogue, error) {
	return f.cats, nil
}

func (f *fakeExchange) ListMarketBook(_ context.Context, ids []string) ([]domain.MarketBook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bookCalls++
	out := make([]domain.MarketBook, 0, len(ids))
	for _, id := range ids {
		if book, ok := f.books[id]; ok {
			out = append(out, book)
		}
	}
	return out, nil
}

type memStores struct {
	mu    sync.Mutex
	evals []domain.EvaluationRecord
	sels  []domain.SelectionRecord
}

func (m *memStores) SaveEvaluation(_ context.Context, rec domain.EvaluationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evals = append(m.evals, rec)
	return nil
}

func (m *memStores) EvaluationsByRun(context.Context, string) ([]domain.EvaluationRecord, error) {
	return m.evals, nil
}

func (m *memStores) SaveSelection(_ context.Context, rec domain.SelectionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sels = append(m.sels, rec)
	return nil
}

func (m *memStores) SelectionsByRun(context.Context, string) ([]domain.SelectionRecord, error) {
	return m.sels, nil
}

type memCache struct {
	mu    sync.Mutex
	books map[string]domain.MarketBook
	hits  int
}

func (m *memCache) GetBook(_ context.Context, marketID string) (domain.MarketBook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if book, ok := m.books[marketID]; ok {
		m.hits++
		return book, nil
	}
	return domain.MarketBook{}, domain.ErrNotFound
}

func (m *memCache) SetBook(_ context.Context, book domain.MarketBook, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.books == nil {
		m.books = map[string]domain.MarketBook{}
	}
	m.books[book.MarketID] = book
	return nil
}

type memNotifier struct {
	mu     sync.Mutex
	events []string
}

func (m *memNotifier) Notify(_ context.Context, event, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func scanConfig() filters.Config {
	return filters.Config{
		Regions: map[string]filters.Region{
			"UKIRE": {Name: "UK & Ireland", Countries: []string{"GB", "IE"}},
		},
		Defaults: filters.Defaults{
			RunnerRange:  filters.RunnerRange{Min: 5, Max: 16},
			LiquidityMin: 100000,
		},
		Gates: filters.Gates{
			Anchor: filters.AnchorGate{TopN: 3, MinTopImplied: 0.65},
			Soup:   filters.SoupGate{TopK: 5, MaxBandRatio: 1.20},
			Tier:   filters.TierGate{TopRegion: 6, MinJumpRatio: 1.25},
		},
		Selection: filters.Selection{
			HardBand:    filters.Band{Min: 1.2, Max: 50.0},
			PrimaryBand: filters.Band{Min: 2.0, Max: 5.0},
			SecondaryBand: filters.SecondaryBand{
				Band:                         filters.Band{Min: 5.0, Max: 8.0},
				RequiresAnchorImpliedAtLeast: 1.1,
			},
			MaxSpreadTicks: 4,
		},
	}
}

// strongMarket returns a market that passes every rule and yields a primary
// band selection.
func strongMarket(marketID string, start time.Time) (domain.MarketCatalogue, domain.MarketBook) {
	backs := []float64{1.5, 2.0, 3.5, 5.0, 8.0, 12.0, 20.0, 40.0}
	cat := domain.MarketCatalogue{
		MarketID:    marketID,
		MarketName:  "Test Hcap",
		CountryCode: "GB",
		StartTime:   start,
	}
	book := domain.MarketBook{MarketID: marketID, TotalMatched: 250000}
	for i, b := range backs {
		id := int64(i + 1)
		cat.Runners = append(cat.Runners, domain.CatalogueRunner{SelectionID: id, Name: "Runner"})
		book.Runners = append(book.Runners, domain.BookRunner{
			SelectionID:     id,
			Status:          domain.RunnerActive,
			AvailableToBack: []domain.Offer{{Price: b, Size: 100}},
			AvailableToLay:  []domain.Offer{{Price: nextTick(b), Size: 100}},
		})
	}
	return cat, book
}

func nextTick(p float64) float64 {
	switch {
	case p < 2:
		return p + 0.01
	case p < 3:
		return p + 0.02
	case p < 4:
		return p + 0.05
	case p < 6:
		return p + 0.10
	case p < 10:
		return p + 0.20
	case p < 20:
		return p + 0.50
	case p < 30:
		return p + 1.0
	default:
		return p + 2.0
	}
}

func newTestScanner(ex *fakeExchange, opts Options) *Scanner {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(ex, scanConfig(), opts, logger)
}

func TestRunEvaluatesAndSelects(t *testing.T) {
	start := time.Now().UTC().Add(time.Hour)
	cat1, book1 := strongMarket("1.001", start)
	cat2, book2 := strongMarket("1.002", start.Add(10*time.Minute))
	cat2.CountryCode = "FR" // unmapped region, rejected

	ex := &fakeExchange{
		cats:  []domain.MarketCatalogue{cat2, cat1},
		books: map[string]domain.MarketBook{"1.001": book1, "1.002": book2},
	}
	stores := &memStores{}
	notifier := &memNotifier{}
	s := newTestScanner(ex, Options{MaxMarkets: 10, Concurrency: 2}).
		WithStores(stores, stores).
		WithNotifier(notifier)

	report, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 2, report.MarketsScanned)
	assert.Equal(t, 1, report.MarketsAccepted)
	assert.Equal(t, 1, report.RunnersSelected)
	assert.Zero(t, report.MarketErrors)

	// Report is ordered by start time regardless of worker completion order.
	require.Len(t, report.Evaluations, 2)
	assert.Equal(t, "1.001", report.Evaluations[0].MarketID)
	assert.Equal(t, "1.002", report.Evaluations[1].MarketID)
	require.Len(t, report.Evaluations[1].Verdict.Checks, 6)

	require.Len(t, report.Selections, 1)
	sel := report.Selections[0]
	assert.Equal(t, "1.001", sel.MarketID)
	assert.Equal(t, report.RunID, sel.RunID)
	assert.Equal(t, domain.BandPrimary, sel.Selected.Band)
	assert.Len(t, sel.Audit, 8)

	assert.Len(t, stores.evals, 2)
	assert.Len(t, stores.sels, 1)
	assert.Equal(t, []string{"runner_selected"}, notifier.events)
}

func TestRunCapsMarketsBySoonest(t *testing.T) {
	start := time.Now().UTC().Add(time.Hour)
	var cats []domain.MarketCatalogue
	books := map[string]domain.MarketBook{}
	for i, id := range []string{"1.003", "1.001", "1.002"} {
		cat, book := strongMarket(id, start.Add(time.Duration(i)*time.Hour))
		cats = append(cats, cat)
		books[id] = book
	}

	ex := &fakeExchange{cats: cats, books: books}
	s := newTestScanner(ex, Options{MaxMarkets: 2, Concurrency: 1})

	report, err := s.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Evaluations, 2)
	// Soonest two by start time: 1.003 (t+0) and 1.001 (t+1h).
	assert.Equal(t, "1.003", report.Evaluations[0].MarketID)
	assert.Equal(t, "1.001", report.Evaluations[1].MarketID)
}

func TestRunSkipsMalformedCatalogues(t *testing.T) {
	start := time.Now().UTC().Add(time.Hour)
	good, book := strongMarket("1.001", start)
	noID, _ := strongMarket("", start)
	noStart, _ := strongMarket("1.009", time.Time{})

	ex := &fakeExchange{
		cats:  []domain.MarketCatalogue{good, noID, noStart},
		books: map[string]domain.MarketBook{"1.001": book},
	}
	s := newTestScanner(ex, Options{MaxMarkets: 10, Concurrency: 1})

	report, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.MarketsScanned)
}

func TestRunCountsMissingBookAsError(t *testing.T) {
	start := time.Now().UTC().Add(time.Hour)
	cat, _ := strongMarket("1.001", start)

	ex := &fakeExchange{cats: []domain.MarketCatalogue{cat}, books: map[string]domain.MarketBook{}}
	s := newTestScanner(ex, Options{MaxMarkets: 10, Concurrency: 1})

	report, err := s.Run(context.Background())
	require.NoError(t, err, "market errors do not abort the run")
	assert.Equal(t, 1, report.MarketErrors)
	assert.Zero(t, report.MarketsScanned)
	assert.Empty(t, report.Evaluations)
}

func TestRunServesBooksFromCache(t *testing.T) {
	start := time.Now().UTC().Add(time.Hour)
	cat, book := strongMarket("1.001", start)

	ex := &fakeExchange{cats: []domain.MarketCatalogue{cat}, books: map[string]domain.MarketBook{"1.001": book}}
	cache := &memCache{}
	opts := Options{MaxMarkets: 10, Concurrency: 1, CacheTTL: time.Minute}
	s := newTestScanner(ex, opts).WithCache(cache)

	_, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, ex.bookCalls)

	// Second run inside the TTL: book comes from the cache.
	s2 := newTestScanner(ex, opts).WithCache(cache)
	_, err = s2.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, ex.bookCalls)
	assert.Equal(t, 1, cache.hits)
}
