package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mkirwan/betflow/internal/domain"
)

// BookCache implements domain.BookCache, holding whole market book
// snapshots as JSON values with a TTL. A re-run inside the TTL re-evaluates
// the cached snapshot instead of refetching from the exchange.
type BookCache struct {
	rdb *redis.Client
}

// NewBookCache creates a BookCache backed by the given Client.
func NewBookCache(c *Client) *BookCache {
	return &BookCache{rdb: c.Underlying()}
}

func bookKey(marketID string) string {
	return "book:" + marketID
}

// GetBook returns the cached book for a market, or domain.ErrNotFound when
// no snapshot is cached.
func (bc *BookCache) GetBook(ctx context.Context, marketID string) (domain.MarketBook, error) {
	raw, err := bc.rdb.Get(ctx, bookKey(marketID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.MarketBook{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.MarketBook{}, fmt.Errorf("redis: get book %s: %w", marketID, err)
	}

	var book domain.MarketBook
	if err := json.Unmarshal(raw, &book); err != nil {
		return domain.MarketBook{}, fmt.Errorf("redis: decode book %s: %w", marketID, err)
	}
	return book, nil
}

// SetBook caches a book snapshot for the given TTL.
func (bc *BookCache) SetBook(ctx context.Context, book domain.MarketBook, ttl time.Duration) error {
	raw, err := json.Marshal(book)
	if err != nil {
		return fmt.Errorf("redis: encode book %s: %w", book.MarketID, err)
	}
	if err := bc.rdb.Set(ctx, bookKey(book.MarketID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set book %s: %w", book.MarketID, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.BookCache = (*BookCache)(nil)
