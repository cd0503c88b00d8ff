package repository

import (
	"context"
	"math"
	"time"

	"cot-sentinel/internal/domain"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const reportColumns = `id, market_id, report_date, open_interest_all,
       commercial_long, commercial_short, noncommercial_long, noncommercial_short,
       nonreportable_long, nonreportable_short,
       change_commercial_long, change_commercial_short,
       change_noncommercial_long, change_noncommercial_short,
       change_nonreportable_long, change_nonreportable_short,
       pct_commercial_long, pct_commercial_short,
       pct_noncommercial_long, pct_noncommercial_short`

type ReportRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewReportRepository(pool PgxPool, tracer trace.Tracer) *ReportRepository {
	return &ReportRepository{pool: pool, tracer: tracer}
}

// InsertReports stores reports for a market, leaving existing report dates
// untouched.
func (r *ReportRepository) InsertReports(ctx context.Context, marketID int64, reports []domain.COTReport) (int, int, error) {
	if len(reports) == 0 {
		return 0, 0, nil
	}
	ctx, span := r.tracer.Start(ctx, "report-repo.insert-reports")
	defer span.End()
	span.SetAttributes(attribute.Int64("market.id", marketID), attribute.Int("reports.count", len(reports)))

	batch := &pgx.Batch{}
	for _, rep := range reports {
		batch.Queue(`
INSERT INTO cot_reports (
    market_id, report_date, open_interest_all,
    commercial_long, commercial_short, noncommercial_long, noncommercial_short,
    nonreportable_long, nonreportable_short,
    change_commercial_long, change_commercial_short,
    change_noncommercial_long, change_noncommercial_short,
    change_nonreportable_long, change_nonreportable_short,
    pct_commercial_long, pct_commercial_short,
    pct_noncommercial_long, pct_noncommercial_short
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
ON CONFLICT (market_id, report_date) DO NOTHING`,
			marketID, rep.ReportDate, rep.OpenInterest,
			rep.CommercialLong, rep.CommercialShort, rep.NonCommercialLong, rep.NonCommercialShort,
			rep.NonReportableLong, rep.NonReportableShort,
			rep.ChangeCommercialLong, rep.ChangeCommercialShort,
			rep.ChangeNonCommercialLong, rep.ChangeNonCommercialShort,
			rep.ChangeNonReportableLong, rep.ChangeNonReportableShort,
			rep.PctCommercialLong, rep.PctCommercialShort,
			rep.PctNonCommercialLong, rep.PctNonCommercialShort,
		)
	}

	inserted, skipped, err := execInsertBatch(ctx, r.pool, batch)
	if err != nil {
		span.RecordError(err)
	}
	span.SetAttributes(attribute.Int("reports.inserted", inserted), attribute.Int("reports.skipped", skipped))
	return inserted, skipped, err
}

// FetchPositionHistory returns up to minRecords position records for the
// market, newest first.
func (r *ReportRepository) FetchPositionHistory(ctx context.Context, marketID int64, minRecords int) ([]domain.PositionRecord, error) {
	ctx, span := r.tracer.Start(ctx, "report-repo.fetch-position-history")
	defer span.End()
	span.SetAttributes(attribute.Int64("market.id", marketID), attribute.Int("limit", minRecords))

	rows, err := r.pool.Query(ctx, `
SELECT report_date, commercial_long, commercial_short, noncommercial_long, noncommercial_short
FROM cot_reports
WHERE market_id = $1
ORDER BY report_date DESC
LIMIT $2`, marketID, minRecords)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PositionRecord
	for rows.Next() {
		var p domain.PositionRecord
		if err := rows.Scan(&p.ReportDate, &p.CommercialLong, &p.CommercialShort, &p.NonCommercialLong, &p.NonCommercialShort); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *ReportRepository) LatestReports(ctx context.Context, marketID int64, limit int) ([]domain.COTReport, error) {
	ctx, span := r.tracer.Start(ctx, "report-repo.latest-reports")
	defer span.End()

	rows, err := r.pool.Query(ctx, `SELECT `+reportColumns+`
FROM cot_reports
WHERE market_id = $1
ORDER BY report_date DESC
LIMIT $2`, marketID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.COTReport
	for rows.Next() {
		var rep domain.COTReport
		if err := rows.Scan(
			&rep.ID, &rep.MarketID, &rep.ReportDate, &rep.OpenInterest,
			&rep.CommercialLong, &rep.CommercialShort, &rep.NonCommercialLong, &rep.NonCommercialShort,
			&rep.NonReportableLong, &rep.NonReportableShort,
			&rep.ChangeCommercialLong, &rep.ChangeCommercialShort,
			&rep.ChangeNonCommercialLong, &rep.ChangeNonCommercialShort,
			&rep.ChangeNonReportableLong, &rep.ChangeNonReportableShort,
			&rep.PctCommercialLong, &rep.PctCommercialShort,
			&rep.PctNonCommercialLong, &rep.PctNonCommercialShort,
		); err != nil {
			return nil, err
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}

func (r *ReportRepository) Stats(ctx context.Context) (domain.DataStats, error) {
	ctx, span := r.tracer.Start(ctx, "report-repo.stats")
	defer span.End()

	var total, markets int
	var latest, oldest *time.Time
	err := r.pool.QueryRow(ctx, `
SELECT COUNT(*), COUNT(DISTINCT market_id), MAX(report_date), MIN(report_date)
FROM cot_reports`).Scan(&total, &markets, &latest, &oldest)
	if err != nil {
		return domain.DataStats{}, err
	}
	return statsFrom(total, markets, latest, oldest), nil
}

// Coverage reports, per market, how many weekly reports are stored against
// the number of weeks their date span covers.
func (r *ReportRepository) Coverage(ctx context.Context) ([]domain.MarketCoverage, error) {
	ctx, span := r.tracer.Start(ctx, "report-repo.coverage")
	defer span.End()

	rows, err := r.pool.Query(ctx, `
SELECT m.id, m.symbol, m.name, COUNT(*), MAX(r.report_date), MIN(r.report_date)
FROM cot_reports r
JOIN markets m ON m.id = r.market_id
GROUP BY m.id, m.symbol, m.name
ORDER BY COUNT(*) DESC, m.symbol`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.MarketCoverage
	for rows.Next() {
		var c domain.MarketCoverage
		if err := rows.Scan(&c.MarketID, &c.Symbol, &c.Name, &c.RecordCount, &c.LatestDate, &c.OldestDate); err != nil {
			return nil, err
		}
		c.WeeksCovered, c.CoveragePct = weeklyCoverage(c.RecordCount, c.LatestDate, c.OldestDate)
		out = append(out, c)
	}
	return out, rows.Err()
}

func weeklyCoverage(count int, latest, oldest time.Time) (int, int) {
	weeks := int(math.Ceil(latest.Sub(oldest).Abs().Hours() / (24 * 7)))
	if weeks == 0 {
		if count > 0 {
			return 0, 100
		}
		return 0, 0
	}
	return weeks, int(math.Round(float64(count) / float64(weeks) * 100))
}
