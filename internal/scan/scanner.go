// Package scan orchestrates a scan run: discover upcoming win markets,
// fetch their books, push each market through the ladder, metrics, rules,
// and selection stages, and persist what came out. Markets are independent,
// so the per-market work fans out across a bounded worker group.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mkirwan/betflow/internal/domain"
	"github.com/mkirwan/betflow/internal/filters"
	"github.com/mkirwan/betflow/internal/ladder"
	"github.com/mkirwan/betflow/internal/notify"
	"github.com/mkirwan/betflow/internal/platform/betfair"
	"github.com/mkirwan/betflow/internal/rules"
	"github.com/mkirwan/betflow/internal/selection"
	"github.com/mkirwan/betflow/internal/structure"
)

// rateLimitKey is the shared limiter key for exchange book fetches.
const rateLimitKey = "betfair"

// ExchangeClient is the slice of the exchange API the scanner consumes.
type ExchangeClient interface {
	FindEventTypeID(ctx context.Context) (string, error)
	ListMarketCatalogue(ctx context.Context, filter betfair.MarketFilter, maxResults int) ([]domain.MarketCatalogue, error)
	ListMarketBook(ctx context.Context, marketIDs []string) ([]domain.MarketBook, error)
}

// Notifier is the alerting surface the scanner uses on selections.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Options tune a scan run.
type Options struct {
	// MaxMarkets caps how many of the soonest markets are evaluated.
	MaxMarkets int
	// Concurrency bounds the parallel market evaluations.
	Concurrency int
	// HorizonHours is how far ahead of now markets are discovered.
	HorizonHours int
	// CacheTTL is how long fetched books stay reusable. Zero disables the
	// cache even when one is wired.
	CacheTTL time.Duration
	// RateLimit and RateWindow pace book fetches when a limiter is wired.
	RateLimit  int
	RateWindow time.Duration
}

// Scanner runs market evaluations. The stores, cache, limiter, and notifier
// are optional; a nil dependency disables that side effect.
type Scanner struct {
	client   ExchangeClient
	cfg      filters.Config
	opts     Options
	logger   *slog.Logger
	evals    domain.EvaluationStore
	sels     domain.SelectionStore
	cache    domain.BookCache
	limiter  domain.RateLimiter
	notifier Notifier
}

// New creates a Scanner. Use the With* methods to wire optional sides.
func New(client ExchangeClient, cfg filters.Config, opts Options, logger *slog.Logger) *Scanner {
	if opts.MaxMarkets <= 0 {
		opts.MaxMarkets = 10
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.HorizonHours <= 0 {
		opts.HorizonHours = 12
	}
	return &Scanner{
		client: client,
		cfg:    cfg,
		opts:   opts,
		logger: logger.With(slog.String("component", "scanner")),
	}
}

// WithStores wires evaluation and selection persistence.
func (s *Scanner) WithStores(evals domain.EvaluationStore, sels domain.SelectionStore) *Scanner {
	s.evals = evals
	s.sels = sels
	return s
}

// WithCache wires the book snapshot cache.
func (s *Scanner) WithCache(cache domain.BookCache) *Scanner {
	s.cache = cache
	return s
}

// WithRateLimiter wires request pacing for book fetches.
func (s *Scanner) WithRateLimiter(limiter domain.RateLimiter) *Scanner {
	s.limiter = limiter
	return s
}

// WithNotifier wires selection alerts.
func (s *Scanner) WithNotifier(n Notifier) *Scanner {
	s.notifier = n
	return s
}

// Report summarizes one completed run.
type Report struct {
	RunID           string
	StartedAt       time.Time
	FinishedAt      time.Time
	MarketsScanned  int
	MarketsAccepted int
	RunnersSelected int
	MarketErrors    int
	Evaluations     []domain.EvaluationRecord
	Selections      []domain.SelectionRecord
}

// Run executes one scan. Individual market failures are logged and counted
// but do not abort the run; Run only fails on discovery errors or a
// cancelled context.
func (s *Scanner) Run(ctx context.Context) (Report, error) {
	report := Report{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	logger := s.logger.With(slog.String("run_id", report.RunID))

	cats, err := s.discover(ctx)
	if err != nil {
		return report, err
	}
	logger.Info("run started",
		slog.Int("markets", len(cats)),
		slog.Int("horizon_hours", s.opts.HorizonHours),
	)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)

	for _, cat := range cats {
		cat := cat
		g.Go(func() error {
			eval, sel, err := s.evaluateMarket(gctx, report.RunID, cat)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				report.MarketErrors++
				logger.Error("market evaluation failed",
					slog.String("market_id", cat.MarketID),
					slog.String("error", err.Error()),
				)
				return nil
			}
			report.MarketsScanned++
			report.Evaluations = append(report.Evaluations, eval)
			if eval.Verdict.Accepted {
				report.MarketsAccepted++
			}
			if sel != nil {
				report.RunnersSelected++
				report.Selections = append(report.Selections, *sel)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, fmt.Errorf("scan: run %s: %w", report.RunID, err)
	}

	// Workers finish in arbitrary order; sort so reports are reproducible.
	sort.Slice(report.Evaluations, func(i, j int) bool {
		a, b := report.Evaluations[i], report.Evaluations[j]
		if !a.StartTime.Equal(b.StartTime) {
			return a.StartTime.Before(b.StartTime)
		}
		return a.MarketID < b.MarketID
	})
	sort.Slice(report.Selections, func(i, j int) bool {
		return report.Selections[i].MarketID < report.Selections[j].MarketID
	})

	report.FinishedAt = time.Now().UTC()
	logger.Info("run finished",
		slog.Int("scanned", report.MarketsScanned),
		slog.Int("accepted", report.MarketsAccepted),
		slog.Int("selected", report.RunnersSelected),
		slog.Int("errors", report.MarketErrors),
		slog.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)),
	)
	return report, nil
}

// discover lists upcoming win markets in the configured countries, soonest
// first, capped at MaxMarkets.
func (s *Scanner) discover(ctx context.Context) ([]domain.MarketCatalogue, error) {
	eventTypeID, err := s.client.FindEventTypeID(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan: resolve event type: %w", err)
	}

	now := time.Now().UTC()
	filter := betfair.MarketFilter{
		EventTypeIDs:    []string{eventTypeID},
		MarketTypeCodes: []string{"WIN"},
		MarketCountries: s.cfg.AllCountries(),
		MarketStartTime: &betfair.TimeRange{
			From: now.Format(time.RFC3339),
			To:   now.Add(time.Duration(s.opts.HorizonHours) * time.Hour).Format(time.RFC3339),
		},
	}

	// Fetch more than needed, then take the soonest after dropping
	// malformed rows.
	cats, err := s.client.ListMarketCatalogue(ctx, filter, 50)
	if err != nil {
		return nil, fmt.Errorf("scan: list market catalogue: %w", err)
	}

	kept := cats[:0]
	for _, cat := range cats {
		if cat.MarketID == "" || cat.StartTime.IsZero() {
			continue
		}
		kept = append(kept, cat)
	}
	sort.Slice(kept, func(i, j int) bool {
		if !kept[i].StartTime.Equal(kept[j].StartTime) {
			return kept[i].StartTime.Before(kept[j].StartTime)
		}
		return kept[i].MarketID < kept[j].MarketID
	})
	if len(kept) > s.opts.MaxMarkets {
		kept = kept[:s.opts.MaxMarkets]
	}
	return kept, nil
}

// evaluateMarket runs one market through the full pipeline and persists the
// results. The returned selection is nil when the market is rejected or no
// runner qualifies.
func (s *Scanner) evaluateMarket(ctx context.Context, runID string, cat domain.MarketCatalogue) (domain.EvaluationRecord, *domain.SelectionRecord, error) {
	book, err := s.fetchBook(ctx, cat.MarketID)
	if err != nil {
		return domain.EvaluationRecord{}, nil, err
	}

	quotes := ladder.Build(cat, book)
	metrics := structure.Compute(quotes, structure.Params{
		AnchorTopN:    s.cfg.Gates.Anchor.TopN,
		SoupTopK:      s.cfg.Gates.Soup.TopK,
		TierTopRegion: s.cfg.Gates.Tier.TopRegion,
	})
	verdict := rules.Evaluate(rules.Input{
		CountryCode:  cat.CountryCode,
		TotalMatched: book.TotalMatched,
		Metrics:      metrics,
	}, s.cfg)

	eval := domain.EvaluationRecord{
		RunID:       runID,
		MarketID:    cat.MarketID,
		MarketName:  cat.MarketName,
		CountryCode: cat.CountryCode,
		StartTime:   cat.StartTime,
		EvaluatedAt: time.Now().UTC(),
		Metrics:     metrics,
		Verdict:     verdict,
	}
	if s.evals != nil {
		if err := s.evals.SaveEvaluation(ctx, eval); err != nil {
			return eval, nil, err
		}
	}
	s.logChecks(ctx, cat, verdict)

	if !verdict.Accepted {
		return eval, nil, nil
	}

	result := selection.Select(quotes, metrics, s.cfg.Selection)
	if result.Selected == nil {
		s.logger.InfoContext(ctx, "no runner selected",
			slog.String("market_id", cat.MarketID),
			slog.Int("candidates", len(result.Rows)),
		)
		return eval, nil, nil
	}

	sel := &domain.SelectionRecord{
		ID:         uuid.NewString(),
		RunID:      runID,
		MarketID:   cat.MarketID,
		MarketName: cat.MarketName,
		Selected:   *result.Selected,
		Audit:      result.Rows,
		CreatedAt:  time.Now().UTC(),
	}
	if s.sels != nil {
		if err := s.sels.SaveSelection(ctx, *sel); err != nil {
			return eval, nil, err
		}
	}
	s.notifySelection(ctx, cat, *result.Selected)

	return eval, sel, nil
}

// fetchBook returns the market book, serving from cache when possible and
// pacing exchange calls through the rate limiter.
func (s *Scanner) fetchBook(ctx context.Context, marketID string) (domain.MarketBook, error) {
	if s.cache != nil && s.opts.CacheTTL > 0 {
		book, err := s.cache.GetBook(ctx, marketID)
		if err == nil {
			return book, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "book cache read failed",
				slog.String("market_id", marketID),
				slog.String("error", err.Error()),
			)
		}
	}

	if s.limiter != nil && s.opts.RateLimit > 0 {
		if err := s.limiter.Wait(ctx, rateLimitKey, s.opts.RateLimit, s.opts.RateWindow); err != nil {
			return domain.MarketBook{}, err
		}
	}

	books, err := s.client.ListMarketBook(ctx, []string{marketID})
	if err != nil {
		return domain.MarketBook{}, err
	}
	if len(books) == 0 {
		return domain.MarketBook{}, fmt.Errorf("scan: no book returned for market %s: %w", marketID, domain.ErrNotFound)
	}
	book := books[0]

	if s.cache != nil && s.opts.CacheTTL > 0 {
		if err := s.cache.SetBook(ctx, book, s.opts.CacheTTL); err != nil {
			s.logger.WarnContext(ctx, "book cache write failed",
				slog.String("market_id", marketID),
				slog.String("error", err.Error()),
			)
		}
	}
	return book, nil
}

func (s *Scanner) logChecks(ctx context.Context, cat domain.MarketCatalogue, verdict domain.MarketVerdict) {
	attrs := []any{
		slog.String("market_id", cat.MarketID),
		slog.String("market_name", cat.MarketName),
		slog.String("region", verdict.Region),
		slog.Bool("accepted", verdict.Accepted),
	}
	for _, c := range verdict.Checks {
		mark := "fail"
		if c.OK {
			mark = "pass"
		}
		attrs = append(attrs, slog.String(c.Label, mark+": "+c.Detail))
	}
	s.logger.InfoContext(ctx, "market evaluated", attrs...)
}

func (s *Scanner) notifySelection(ctx context.Context, cat domain.MarketCatalogue, row domain.SelectionRow) {
	if s.notifier == nil {
		return
	}
	back, lay := 0.0, 0.0
	if row.BestBack != nil {
		back = *row.BestBack
	}
	if row.BestLay != nil {
		lay = *row.BestLay
	}
	msg := fmt.Sprintf("%s (rank %d, %s band)\nback %.2f / lay %.2f, spread %d ticks\n%s at %s",
		row.Name, row.Rank, row.Band, back, lay, row.SpreadTicks,
		cat.MarketName, cat.StartTime.Format("15:04 MST"),
	)
	if err := s.notifier.Notify(ctx, notify.EventRunnerSelected, "Runner selected", msg); err != nil {
		s.logger.WarnContext(ctx, "selection notification failed",
			slog.String("market_id", cat.MarketID),
			slog.String("error", err.Error()),
		)
	}
}
