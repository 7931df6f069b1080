package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mkirwan/betflow/internal/domain"
)

// EvaluationStore implements domain.EvaluationStore using PostgreSQL.
type EvaluationStore struct {
	pool *pgxpool.Pool
}

// NewEvaluationStore creates an EvaluationStore backed by the given pool.
func NewEvaluationStore(pool *pgxpool.Pool) *EvaluationStore {
	return &EvaluationStore{pool: pool}
}

// SaveEvaluation upserts one market evaluation keyed by (run_id, market_id).
func (s *EvaluationStore) SaveEvaluation(ctx context.Context, rec domain.EvaluationRecord) error {
	checks, err := json.Marshal(rec.Verdict.Checks)
	if err != nil {
		return fmt.Errorf("postgres: encode checks for %s: %w", rec.MarketID, err)
	}

	const query = `
		INSERT INTO evaluations (
			run_id, market_id, market_name, country_code, region,
			start_time, evaluated_at, accepted,
			runner_count, priced_runner_count,
			anchor_implied_sum, soup_band_ratio, tier_max_adjacent_ratio,
			checks
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8,
			$9, $10,
			$11, $12, $13,
			$14
		)
		ON CONFLICT (run_id, market_id) DO UPDATE SET
			evaluated_at            = EXCLUDED.evaluated_at,
			accepted                = EXCLUDED.accepted,
			region                  = EXCLUDED.region,
			runner_count            = EXCLUDED.runner_count,
			priced_runner_count     = EXCLUDED.priced_runner_count,
			anchor_implied_sum      = EXCLUDED.anchor_implied_sum,
			soup_band_ratio         = EXCLUDED.soup_band_ratio,
			tier_max_adjacent_ratio = EXCLUDED.tier_max_adjacent_ratio,
			checks                  = EXCLUDED.checks`

	_, err = s.pool.Exec(ctx, query,
		rec.RunID, rec.MarketID, rec.MarketName, rec.CountryCode, rec.Verdict.Region,
		rec.StartTime, rec.EvaluatedAt, rec.Verdict.Accepted,
		rec.Metrics.RunnerCount, rec.Metrics.PricedRunnerCount,
		rec.Metrics.AnchorImpliedSum, rec.Metrics.SoupBandRatio, rec.Metrics.TierMaxAdjacentRatio,
		checks,
	)
	if err != nil {
		return fmt.Errorf("postgres: save evaluation %s: %w", rec.MarketID, err)
	}
	return nil
}

// EvaluationsByRun returns all evaluations recorded for a run, ordered by
// market start time.
func (s *EvaluationStore) EvaluationsByRun(ctx context.Context, runID string) ([]domain.EvaluationRecord, error) {
	const query = `
		SELECT run_id, market_id, market_name, country_code, region,
		       start_time, evaluated_at, accepted,
		       runner_count, priced_runner_count,
		       anchor_implied_sum, soup_band_ratio, tier_max_adjacent_ratio,
		       checks
		FROM evaluations
		WHERE run_id = $1
		ORDER BY start_time, market_id`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("postgres: evaluations for run %s: %w", runID, err)
	}
	defer rows.Close()

	var out []domain.EvaluationRecord
	for rows.Next() {
		var rec domain.EvaluationRecord
		var checks []byte
		err := rows.Scan(
			&rec.RunID, &rec.MarketID, &rec.MarketName, &rec.CountryCode, &rec.Verdict.Region,
			&rec.StartTime, &rec.EvaluatedAt, &rec.Verdict.Accepted,
			&rec.Metrics.RunnerCount, &rec.Metrics.PricedRunnerCount,
			&rec.Metrics.AnchorImpliedSum, &rec.Metrics.SoupBandRatio, &rec.Metrics.TierMaxAdjacentRatio,
			&checks,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan evaluation: %w", err)
		}
		if err := json.Unmarshal(checks, &rec.Verdict.Checks); err != nil {
			return nil, fmt.Errorf("postgres: decode checks for %s: %w", rec.MarketID, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate evaluations: %w", err)
	}
	return out, nil
}

// Compile-time interface check.
var _ domain.EvaluationStore = (*EvaluationStore)(nil)
