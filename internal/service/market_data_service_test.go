package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"cot-sentinel/internal/domain"
	"cot-sentinel/internal/repository"
)

func day(offset int) time.Time {
	return time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
}

func TestAlignPrices(t *testing.T) {
	t.Parallel()

	reports := reportsFor(day(-14), day(-7), day(0))
	bars := []domain.PriceBar{
		{Date: day(1), Close: 3},
		{Date: day(-1), Close: 2},
		{Date: day(-8), Close: 1},
		{Date: day(-30), Close: 0},
	}

	rows := AlignPrices(reports, bars, MaxPriceGap)
	if len(rows) != 3 {
		t.Fatalf("expected one row per report, got %d", len(rows))
	}
	if rows[0].Price == nil || rows[0].Price.Close != 1 || rows[0].GapDays != 6 {
		t.Fatalf("first report should pair with the bar 6 days later, got %+v", rows[0])
	}
	if rows[1].Price == nil || rows[1].Price.Close != 1 || rows[1].GapDays != 1 {
		t.Fatalf("second report should pair with the bar a day earlier, got %+v", rows[1])
	}
	if rows[2].Price == nil || rows[2].Price.Close != 2 {
		t.Fatalf("ties should prefer the earlier bar, got %+v", rows[2].Price)
	}
}

func TestAlignPricesLeavesGapsEmpty(t *testing.T) {
	t.Parallel()

	rows := AlignPrices(reportsFor(day(0)), []domain.PriceBar{{Date: day(-8)}}, MaxPriceGap)
	if rows[0].Price != nil {
		t.Fatalf("bar outside the window should not be paired, got %+v", rows[0].Price)
	}
	if rows := AlignPrices(reportsFor(day(0)), nil, MaxPriceGap); rows[0].Price != nil {
		t.Fatal("no bars means no price")
	}
}

type fakeReportReader struct{ reports []domain.COTReport }

func (f *fakeReportReader) LatestReports(ctx context.Context, marketID int64, limit int) ([]domain.COTReport, error) {
	return append([]domain.COTReport(nil), f.reports...), nil
}

type fakeBarReader struct {
	bars     []domain.PriceBar
	from, to time.Time
}

func (f *fakeBarReader) LatestBars(ctx context.Context, marketID int64, limit int) ([]domain.PriceBar, error) {
	return f.bars, nil
}

func (f *fakeBarReader) BarsBetween(ctx context.Context, marketID int64, from, to time.Time) ([]domain.PriceBar, error) {
	f.from, f.to = from, to
	return f.bars, nil
}

func TestCombinedIsOldestFirst(t *testing.T) {
	t.Parallel()

	markets := &fakeMarkets{all: []domain.Market{eur}}
	reports := &fakeReportReader{reports: reportsFor(day(0), day(-7))}
	bars := &fakeBarReader{bars: []domain.PriceBar{{Date: day(-1), Close: 2}}}
	svc := NewMarketDataService(testTracer, markets, reports, bars)

	rows, err := svc.Combined(context.Background(), eur.ID, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 || !rows[0].Report.ReportDate.Equal(day(-7)) {
		t.Fatalf("rows should be oldest first, got %+v", rows)
	}
	if !bars.from.Equal(day(-14)) || !bars.to.Equal(day(7)) {
		t.Fatalf("unexpected price window %v..%v", bars.from, bars.to)
	}

	if _, err := svc.Combined(context.Background(), 42, 2); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected not found for unknown market, got %v", err)
	}
}
