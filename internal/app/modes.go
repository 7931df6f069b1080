package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mkirwan/betflow/internal/notify"
	"github.com/mkirwan/betflow/internal/scan"
)

// keepAliveInterval is how often the exchange session is refreshed in watch
// mode. Betfair sessions expire after a period of inactivity.
const keepAliveInterval = 15 * time.Minute

// newScanner builds a scanner from configuration and wires whichever optional
// dependencies are available.
func (a *App) newScanner(deps *Dependencies) *scan.Scanner {
	s := scan.New(deps.Exchange, a.filters, scan.Options{
		MaxMarkets:   a.cfg.Scan.MaxMarkets,
		Concurrency:  a.cfg.Scan.Concurrency,
		HorizonHours: a.cfg.Scan.HorizonHours,
		CacheTTL:     a.cfg.Scan.CacheTTL.Duration,
		RateLimit:    a.cfg.Scan.RateLimit,
		RateWindow:   a.cfg.Scan.RateWindow.Duration,
	}, a.logger)

	if deps.EvaluationStore != nil && deps.SelectionStore != nil {
		s = s.WithStores(deps.EvaluationStore, deps.SelectionStore)
	}
	if deps.BookCache != nil {
		s = s.WithCache(deps.BookCache)
	}
	if deps.RateLimiter != nil {
		s = s.WithRateLimiter(deps.RateLimiter)
	}
	if deps.Notifier != nil {
		s = s.WithNotifier(deps.Notifier)
	}
	return s
}

// runOnce logs in, executes one scan, and archives the run when object
// storage is wired.
func (a *App) runOnce(ctx context.Context, deps *Dependencies, scanner *scan.Scanner) error {
	if err := deps.Exchange.Login(ctx); err != nil {
		return fmt.Errorf("exchange login: %w", err)
	}

	report, err := scanner.Run(ctx)
	if err != nil {
		return err
	}

	if deps.Archiver != nil {
		if err := deps.Archiver.ArchiveRun(ctx, report.RunID, report.StartedAt, report.Evaluations, report.Selections); err != nil {
			a.logger.WarnContext(ctx, "run archive failed",
				slog.String("run_id", report.RunID),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// ScanMode performs a single scan run and exits.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting scan mode")

	scanner := a.newScanner(deps)
	if err := a.runOnce(ctx, deps, scanner); err != nil {
		a.notifyFailure(ctx, deps, err)
		return fmt.Errorf("scan mode: %w", err)
	}
	return nil
}

// WatchMode runs scans on an interval until the context is cancelled, keeping
// the exchange session alive between scans. A failed scan is reported and the
// loop continues.
func (a *App) WatchMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting watch mode",
		slog.Duration("interval", a.cfg.Scan.WatchInterval.Duration),
	)

	scanner := a.newScanner(deps)
	if err := a.runOnce(ctx, deps, scanner); err != nil {
		a.notifyFailure(ctx, deps, err)
		a.logger.ErrorContext(ctx, "scan run failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(a.cfg.Scan.WatchInterval.Duration)
	defer ticker.Stop()
	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-keepAlive.C:
			if err := deps.Exchange.KeepAlive(ctx); err != nil {
				a.logger.WarnContext(ctx, "session keep-alive failed",
					slog.String("error", err.Error()),
				)
			}
		case <-ticker.C:
			if err := a.runOnce(ctx, deps, scanner); err != nil {
				a.notifyFailure(ctx, deps, err)
				a.logger.ErrorContext(ctx, "scan run failed", slog.String("error", err.Error()))
			}
		}
	}
}

func (a *App) notifyFailure(ctx context.Context, deps *Dependencies, runErr error) {
	if deps.Notifier == nil {
		return
	}
	if err := deps.Notifier.Notify(ctx, notify.EventRunFailed, "Scan run failed", runErr.Error()); err != nil {
		a.logger.WarnContext(ctx, "failure notification failed",
			slog.String("error", err.Error()),
		)
	}
}
