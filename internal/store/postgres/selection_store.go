package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mkirwan/betflow/internal/domain"
)

// SelectionStore implements domain.SelectionStore using PostgreSQL.
type SelectionStore struct {
	pool *pgxpool.Pool
}

// NewSelectionStore creates a SelectionStore backed by the given pool.
func NewSelectionStore(pool *pgxpool.Pool) *SelectionStore {
	return &SelectionStore{pool: pool}
}

// SaveSelection upserts one runner selection keyed by (run_id, market_id).
func (s *SelectionStore) SaveSelection(ctx context.Context, rec domain.SelectionRecord) error {
	audit, err := json.Marshal(rec.Audit)
	if err != nil {
		return fmt.Errorf("postgres: encode audit for %s: %w", rec.MarketID, err)
	}

	const query = `
		INSERT INTO selections (
			id, run_id, market_id, market_name,
			selection_id, runner_name, price_rank, band,
			best_back, best_lay, spread_ticks, distance_ticks,
			audit, created_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10, $11, $12,
			$13, $14
		)
		ON CONFLICT (run_id, market_id) DO UPDATE SET
			selection_id   = EXCLUDED.selection_id,
			runner_name    = EXCLUDED.runner_name,
			price_rank     = EXCLUDED.price_rank,
			band           = EXCLUDED.band,
			best_back      = EXCLUDED.best_back,
			best_lay       = EXCLUDED.best_lay,
			spread_ticks   = EXCLUDED.spread_ticks,
			distance_ticks = EXCLUDED.distance_ticks,
			audit          = EXCLUDED.audit,
			created_at     = EXCLUDED.created_at`

	sel := rec.Selected
	_, err = s.pool.Exec(ctx, query,
		rec.ID, rec.RunID, rec.MarketID, rec.MarketName,
		sel.SelectionID, sel.Name, sel.Rank, sel.Band,
		sel.BestBack, sel.BestLay, sel.SpreadTicks, sel.DistanceTicks,
		audit, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: save selection %s: %w", rec.MarketID, err)
	}
	return nil
}

// SelectionsByRun returns all selections recorded for a run.
func (s *SelectionStore) SelectionsByRun(ctx context.Context, runID string) ([]domain.SelectionRecord, error) {
	const query = `
		SELECT id, run_id, market_id, market_name,
		       selection_id, runner_name, price_rank, band,
		       best_back, best_lay, spread_ticks, distance_ticks,
		       audit, created_at
		FROM selections
		WHERE run_id = $1
		ORDER BY market_id`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("postgres: selections for run %s: %w", runID, err)
	}
	defer rows.Close()

	var out []domain.SelectionRecord
	for rows.Next() {
		var rec domain.SelectionRecord
		var audit []byte
		err := rows.Scan(
			&rec.ID, &rec.RunID, &rec.MarketID, &rec.MarketName,
			&rec.Selected.SelectionID, &rec.Selected.Name, &rec.Selected.Rank, &rec.Selected.Band,
			&rec.Selected.BestBack, &rec.Selected.BestLay, &rec.Selected.SpreadTicks, &rec.Selected.DistanceTicks,
			&audit, &rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan selection: %w", err)
		}
		rec.Selected.Eligible = true
		rec.Selected.HasSpread = true
		if err := json.Unmarshal(audit, &rec.Audit); err != nil {
			return nil, fmt.Errorf("postgres: decode audit for %s: %w", rec.MarketID, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate selections: %w", err)
	}
	return out, nil
}

// Compile-time interface check.
var _ domain.SelectionStore = (*SelectionStore)(nil)
