package domain

import (
	"context"
	"io"
	"time"
)

// EvaluationStore persists market evaluations.
type EvaluationStore interface {
	SaveEvaluation(ctx context.Context, rec EvaluationRecord) error
	EvaluationsByRun(ctx context.Context, runID string) ([]EvaluationRecord, error)
}

// SelectionStore persists runner selections.
type SelectionStore interface {
	SaveSelection(ctx context.Context, rec SelectionRecord) error
	SelectionsByRun(ctx context.Context, runID string) ([]SelectionRecord, error)
}

// BookCache caches market book snapshots between scan runs.
type BookCache interface {
	GetBook(ctx context.Context, marketID string) (MarketBook, error)
	SetBook(ctx context.Context, book MarketBook, ttl time.Duration) error
}

// RateLimiter paces outbound exchange requests.
type RateLimiter interface {
	// Allow reports whether one more request fits in the window right now.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	// Wait blocks until a request is allowed or the context is done.
	Wait(ctx context.Context, key string, limit int, window time.Duration) error
}

// BlobWriter writes archive objects to blob storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}
