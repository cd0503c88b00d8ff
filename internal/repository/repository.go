package repository

import (
	"context"
	"errors"
	"math"
	"time"

	"cot-sentinel/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

var ErrNotFound = errors.New("not found")

type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// execInsertBatch runs a batch of single-row INSERT ... ON CONFLICT DO NOTHING
// statements and splits the outcome into inserted and skipped rows.
func execInsertBatch(ctx context.Context, pool PgxPool, batch *pgx.Batch) (inserted, skipped int, err error) {
	n := batch.Len()
	if n == 0 {
		return 0, 0, nil
	}
	br := pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < n; i++ {
		tag, err := br.Exec()
		if err != nil {
			return inserted, skipped, err
		}
		if tag.RowsAffected() > 0 {
			inserted++
		} else {
			skipped++
		}
	}
	return inserted, skipped, nil
}

func nullText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

func statsFrom(total, markets int, latest, oldest *time.Time) domain.DataStats {
	st := domain.DataStats{
		TotalRecords:    total,
		LatestDate:      latest,
		OldestDate:      oldest,
		MarketsWithData: markets,
	}
	if markets > 0 {
		st.AvgRecordsPerMarket = int(math.Round(float64(total) / float64(markets)))
	}
	return st
}

// Positions joins the report and market repositories into the read side the
// scorer works from.
type Positions struct {
	*ReportRepository
	*MarketRepository
}
