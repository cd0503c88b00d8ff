package repository

import (
	"context"
	"fmt"

	"cot-sentinel/internal/domain"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ScoreRepository keeps a best-effort snapshot of computed scores. Scores can
// always be recomputed from cot_reports.
type ScoreRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewScoreRepository(pool PgxPool, tracer trace.Tracer) *ScoreRepository {
	return &ScoreRepository{pool: pool, tracer: tracer}
}

func (r *ScoreRepository) SaveScores(ctx context.Context, scores []domain.Score) error {
	if len(scores) == 0 {
		return nil
	}
	ctx, span := r.tracer.Start(ctx, "score-repo.save-scores")
	defer span.End()
	span.SetAttributes(attribute.Int("scores.count", len(scores)))

	batch := &pgx.Batch{}
	for _, s := range scores {
		batch.Queue(`
INSERT INTO cot_scores (
    market_id, report_date, look_back_weeks, commercial_net, noncommercial_net,
    commercial_index, large_trader_index, commercial_signal, large_trader_signal,
    overall_score, bias, confidence, commercial_change_4_week, commercial_change_13_week,
    extreme_level, computed_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW())
ON CONFLICT (market_id, report_date, look_back_weeks) DO UPDATE SET
    commercial_net = EXCLUDED.commercial_net,
    noncommercial_net = EXCLUDED.noncommercial_net,
    commercial_index = EXCLUDED.commercial_index,
    large_trader_index = EXCLUDED.large_trader_index,
    commercial_signal = EXCLUDED.commercial_signal,
    large_trader_signal = EXCLUDED.large_trader_signal,
    overall_score = EXCLUDED.overall_score,
    bias = EXCLUDED.bias,
    confidence = EXCLUDED.confidence,
    commercial_change_4_week = EXCLUDED.commercial_change_4_week,
    commercial_change_13_week = EXCLUDED.commercial_change_13_week,
    extreme_level = EXCLUDED.extreme_level,
    computed_at = NOW()`,
			s.MarketID, s.ReportDate, s.LookBackWeeks, s.CommercialNet, s.NonCommercialNet,
			s.CommercialIndex, s.LargeTraderIndex, s.CommercialSignal.String(), s.LargeTraderSignal.String(),
			s.OverallScore, string(s.Bias), s.Confidence, s.CommercialChange4, s.CommercialChange13,
			s.ExtremeLevel,
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()
	for _, s := range scores {
		if _, err := br.Exec(); err != nil {
			span.RecordError(err)
			return fmt.Errorf("save score %s %s: %w", s.Symbol, s.ReportDate.Format("2006-01-02"), err)
		}
	}
	return nil
}

// LatestScores returns the newest stored score of every market for the
// given look-back, ordered by overall score descending.
func (r *ScoreRepository) LatestScores(ctx context.Context, lookBackWeeks int) ([]domain.Score, error) {
	ctx, span := r.tracer.Start(ctx, "score-repo.latest-scores")
	defer span.End()

	rows, err := r.pool.Query(ctx, `
SELECT * FROM (
    SELECT DISTINCT ON (s.market_id)
           s.market_id, m.symbol, s.report_date, s.commercial_net, s.noncommercial_net,
           s.commercial_index, s.large_trader_index, s.commercial_signal, s.large_trader_signal,
           s.overall_score, s.bias, s.confidence, s.commercial_change_4_week, s.commercial_change_13_week,
           s.extreme_level
    FROM cot_scores s
    JOIN markets m ON m.id = s.market_id
    WHERE s.look_back_weeks = $1
    ORDER BY s.market_id, s.report_date DESC
) latest
ORDER BY overall_score DESC`, lookBackWeeks)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Score
	for rows.Next() {
		var s domain.Score
		var commSignal, specSignal, bias string
		if err := rows.Scan(
			&s.MarketID, &s.Symbol, &s.ReportDate, &s.CommercialNet, &s.NonCommercialNet,
			&s.CommercialIndex, &s.LargeTraderIndex, &commSignal, &specSignal,
			&s.OverallScore, &bias, &s.Confidence, &s.CommercialChange4, &s.CommercialChange13,
			&s.ExtremeLevel,
		); err != nil {
			return nil, err
		}
		if s.CommercialSignal, err = domain.ParseSignalZone(commSignal); err != nil {
			return nil, err
		}
		if s.LargeTraderSignal, err = domain.ParseSignalZone(specSignal); err != nil {
			return nil, err
		}
		s.Bias = domain.Bias(bias)
		s.LookBackWeeks = lookBackWeeks
		out = append(out, s)
	}
	return out, rows.Err()
}
