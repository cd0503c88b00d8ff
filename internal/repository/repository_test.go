package repository

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"cot-sentinel/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/trace/noop"
)

type fakeBatchResults struct {
	tags []pgconn.CommandTag
	err  error
	pos  int
}

func (b *fakeBatchResults) Exec() (pgconn.CommandTag, error) {
	if b.err != nil {
		return pgconn.CommandTag{}, b.err
	}
	tag := b.tags[b.pos]
	b.pos++
	return tag, nil
}

func (b *fakeBatchResults) Query() (pgx.Rows, error) { return nil, errors.New("not implemented") }
func (b *fakeBatchResults) QueryRow() pgx.Row        { return nil }
func (b *fakeBatchResults) Close() error             { return nil }

type fakeRows struct {
	data [][]any
	pos  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return nil, nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	r.pos++
	return r.pos <= len(r.data)
}

func (r *fakeRows) Scan(dest ...any) error {
	return scanInto(r.data[r.pos-1], dest)
}

type fakeRow struct{ values []any }

func (r fakeRow) Scan(dest ...any) error { return scanInto(r.values, dest) }

func scanInto(values, dest []any) error {
	if len(values) != len(dest) {
		return errors.New("column count mismatch")
	}
	for i, v := range values {
		reflect.ValueOf(dest[i]).Elem().Set(reflect.ValueOf(v))
	}
	return nil
}

type fakePool struct {
	batch   *fakeBatchResults
	rows    [][]any
	row     []any
	sent    *pgx.Batch
	lastSQL string
	args    []any
}

func (p *fakePool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag("UPDATE 0"), nil
}

func (p *fakePool) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	p.sent = b
	return p.batch
}

func (p *fakePool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	p.lastSQL = sql
	p.args = args
	return &fakeRows{data: p.rows}, nil
}

func (p *fakePool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	p.lastSQL = sql
	return fakeRow{values: p.row}
}

var tracer = noop.NewTracerProvider().Tracer("test")

func tags(statuses ...string) []pgconn.CommandTag {
	out := make([]pgconn.CommandTag, len(statuses))
	for i, s := range statuses {
		out[i] = pgconn.NewCommandTag(s)
	}
	return out
}

func TestInsertReportsCountsSkippedDuplicates(t *testing.T) {
	pool := &fakePool{batch: &fakeBatchResults{tags: tags("INSERT 0 1", "INSERT 0 0", "INSERT 0 1")}}
	repo := NewReportRepository(pool, tracer)

	reports := make([]domain.COTReport, 3)
	for i := range reports {
		reports[i].ReportDate = time.Date(2024, 1, 2+7*i, 0, 0, 0, 0, time.UTC)
	}

	inserted, skipped, err := repo.InsertReports(context.Background(), 7, reports)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inserted != 2 || skipped != 1 {
		t.Fatalf("expected 2 inserted 1 skipped, got %d/%d", inserted, skipped)
	}
	if pool.sent.Len() != 3 {
		t.Fatalf("expected 3 queued statements, got %d", pool.sent.Len())
	}
	if !strings.Contains(pool.sent.QueuedQueries[0].SQL, "ON CONFLICT (market_id, report_date) DO NOTHING") {
		t.Fatalf("insert should ignore duplicates: %s", pool.sent.QueuedQueries[0].SQL)
	}
	if pool.sent.QueuedQueries[0].Arguments[0] != int64(7) {
		t.Fatalf("expected market id as first argument, got %v", pool.sent.QueuedQueries[0].Arguments[0])
	}
}

func TestInsertReportsEmptyIsNoop(t *testing.T) {
	pool := &fakePool{}
	inserted, skipped, err := NewReportRepository(pool, tracer).InsertReports(context.Background(), 1, nil)
	if err != nil || inserted != 0 || skipped != 0 {
		t.Fatalf("expected no-op, got %d/%d %v", inserted, skipped, err)
	}
	if pool.sent != nil {
		t.Fatal("no batch should be sent for empty input")
	}
}

func TestInsertBarsPropagatesBatchError(t *testing.T) {
	boom := errors.New("boom")
	pool := &fakePool{batch: &fakeBatchResults{err: boom}}
	_, _, err := NewPriceRepository(pool, tracer).InsertBars(context.Background(), 1, []domain.PriceBar{{Date: time.Now()}})
	if !errors.Is(err, boom) {
		t.Fatalf("expected batch error, got %v", err)
	}
	if got := pool.sent.QueuedQueries[0].Arguments[2]; got != domain.TimeframeDaily {
		t.Fatalf("empty timeframe should default to daily, got %v", got)
	}
}

func TestFetchPositionHistoryScansRows(t *testing.T) {
	d1 := time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, -7)
	pool := &fakePool{rows: [][]any{
		{d1, int64(100), int64(40), int64(10), int64(30)},
		{d2, int64(90), int64(50), int64(20), int64(25)},
	}}

	got, err := NewReportRepository(pool, tracer).FetchPositionHistory(context.Background(), 3, 65)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if !got[0].ReportDate.Equal(d1) || got[0].CommercialNet() != 60 || got[1].NonCommercialNet() != -5 {
		t.Fatalf("unexpected records %+v", got)
	}
	if !strings.Contains(pool.lastSQL, "ORDER BY report_date DESC") {
		t.Fatalf("history must be newest first: %s", pool.lastSQL)
	}
	if pool.args[1] != 65 {
		t.Fatalf("expected limit 65, got %v", pool.args[1])
	}
}

func TestReportStatsAveragesPerMarket(t *testing.T) {
	latest := time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC)
	oldest := latest.AddDate(-1, 0, 0)
	pool := &fakePool{row: []any{10, 3, &latest, &oldest}}

	st, err := NewReportRepository(pool, tracer).Stats(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.TotalRecords != 10 || st.MarketsWithData != 3 || st.AvgRecordsPerMarket != 3 {
		t.Fatalf("unexpected stats %+v", st)
	}
	if !st.LatestDate.Equal(latest) {
		t.Fatalf("unexpected latest date %v", st.LatestDate)
	}
}

func TestStatsFromEmptyTable(t *testing.T) {
	st := statsFrom(0, 0, nil, nil)
	if st.AvgRecordsPerMarket != 0 || st.LatestDate != nil {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestWeeklyCoverage(t *testing.T) {
	latest := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name       string
		count      int
		oldest     time.Time
		weeks, pct int
	}{
		{name: "full year", count: 52, oldest: latest.AddDate(0, 0, -52*7), weeks: 52, pct: 100},
		{name: "half filled", count: 26, oldest: latest.AddDate(0, 0, -52*7), weeks: 52, pct: 50},
		{name: "single report", count: 1, oldest: latest, weeks: 0, pct: 100},
		{name: "partial week rounds up", count: 2, oldest: latest.AddDate(0, 0, -8), weeks: 2, pct: 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			weeks, pct := weeklyCoverage(tc.count, latest, tc.oldest)
			if weeks != tc.weeks || pct != tc.pct {
				t.Fatalf("expected %d weeks %d%%, got %d weeks %d%%", tc.weeks, tc.pct, weeks, pct)
			}
		})
	}
}

func TestLatestScoresParsesZones(t *testing.T) {
	date := time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC)
	pool := &fakePool{rows: [][]any{
		{int64(1), "EUR", date, int64(50), int64(-20), 92.0, 8.0, "EXTREME_BUY", "EXTREME_SELL", 88.0, "BULLISH", 95.0, int64(12), int64(40), true},
	}}

	scores, err := NewScoreRepository(pool, tracer).LatestScores(context.Background(), 52)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(scores) != 1 {
		t.Fatalf("expected one score, got %d", len(scores))
	}
	s := scores[0]
	if s.CommercialSignal != domain.ZoneExtremeBuy || s.LargeTraderSignal != domain.ZoneExtremeSell {
		t.Fatalf("unexpected zones %v/%v", s.CommercialSignal, s.LargeTraderSignal)
	}
	if s.Bias != domain.BiasBullish || s.LookBackWeeks != 52 || !s.ExtremeLevel {
		t.Fatalf("unexpected score %+v", s)
	}
}

func TestLatestScoresRejectsUnknownZone(t *testing.T) {
	date := time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC)
	pool := &fakePool{rows: [][]any{
		{int64(1), "EUR", date, int64(50), int64(-20), 92.0, 8.0, "MOON", "EXTREME_SELL", 88.0, "BULLISH", 95.0, int64(12), int64(40), true},
	}}
	if _, err := NewScoreRepository(pool, tracer).LatestScores(context.Background(), 52); !errors.Is(err, domain.ErrUnknownSignalZone) {
		t.Fatalf("expected unknown zone error, got %v", err)
	}
}
