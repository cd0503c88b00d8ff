package repository

import (
	"context"
	"time"

	"cot-sentinel/internal/domain"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type PriceRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewPriceRepository(pool PgxPool, tracer trace.Tracer) *PriceRepository {
	return &PriceRepository{pool: pool, tracer: tracer}
}

// InsertBars stores daily bars, skipping dates already present.
func (r *PriceRepository) InsertBars(ctx context.Context, marketID int64, bars []domain.PriceBar) (int, int, error) {
	if len(bars) == 0 {
		return 0, 0, nil
	}
	ctx, span := r.tracer.Start(ctx, "price-repo.insert-bars")
	defer span.End()
	span.SetAttributes(attribute.Int64("market.id", marketID), attribute.Int("bars.count", len(bars)))

	batch := &pgx.Batch{}
	for _, b := range bars {
		tf := b.Timeframe
		if tf == "" {
			tf = domain.TimeframeDaily
		}
		batch.Queue(`
INSERT INTO price_data (market_id, date, timeframe, open, high, low, close, volume)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (market_id, date, timeframe) DO NOTHING`,
			marketID, b.Date, tf, b.Open, b.High, b.Low, b.Close, b.Volume,
		)
	}

	inserted, skipped, err := execInsertBatch(ctx, r.pool, batch)
	if err != nil {
		span.RecordError(err)
	}
	return inserted, skipped, err
}

func (r *PriceRepository) LatestBars(ctx context.Context, marketID int64, limit int) ([]domain.PriceBar, error) {
	ctx, span := r.tracer.Start(ctx, "price-repo.latest-bars")
	defer span.End()

	return r.query(ctx, `
SELECT market_id, date, timeframe, open, high, low, close, volume
FROM price_data
WHERE market_id = $1 AND timeframe = $2
ORDER BY date DESC
LIMIT $3`, marketID, domain.TimeframeDaily, limit)
}

// BarsBetween returns daily bars with from <= date <= to, newest first.
func (r *PriceRepository) BarsBetween(ctx context.Context, marketID int64, from, to time.Time) ([]domain.PriceBar, error) {
	ctx, span := r.tracer.Start(ctx, "price-repo.bars-between")
	defer span.End()

	return r.query(ctx, `
SELECT market_id, date, timeframe, open, high, low, close, volume
FROM price_data
WHERE market_id = $1 AND timeframe = $2 AND date >= $3 AND date <= $4
ORDER BY date DESC`, marketID, domain.TimeframeDaily, from, to)
}

func (r *PriceRepository) Stats(ctx context.Context) (domain.DataStats, error) {
	ctx, span := r.tracer.Start(ctx, "price-repo.stats")
	defer span.End()

	var total, markets int
	var latest, oldest *time.Time
	err := r.pool.QueryRow(ctx, `
SELECT COUNT(*), COUNT(DISTINCT market_id), MAX(date), MIN(date)
FROM price_data`).Scan(&total, &markets, &latest, &oldest)
	if err != nil {
		return domain.DataStats{}, err
	}
	return statsFrom(total, markets, latest, oldest), nil
}

func (r *PriceRepository) query(ctx context.Context, sql string, args ...any) ([]domain.PriceBar, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PriceBar
	for rows.Next() {
		var b domain.PriceBar
		if err := rows.Scan(&b.MarketID, &b.Date, &b.Timeframe, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
