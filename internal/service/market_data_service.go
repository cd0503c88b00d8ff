package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"cot-sentinel/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// MaxPriceGap is how far a daily bar may sit from a report date and still be
// paired with it.
const MaxPriceGap = 7 * 24 * time.Hour

type MarketReader interface {
	ListMarkets(ctx context.Context) ([]domain.Market, error)
	GetMarket(ctx context.Context, id int64) (domain.Market, error)
}

type ReportReader interface {
	LatestReports(ctx context.Context, marketID int64, limit int) ([]domain.COTReport, error)
}

type BarReader interface {
	LatestBars(ctx context.Context, marketID int64, limit int) ([]domain.PriceBar, error)
	BarsBetween(ctx context.Context, marketID int64, from, to time.Time) ([]domain.PriceBar, error)
}

// MarketDataService serves stored reports and prices without scoring them.
type MarketDataService struct {
	tracer  trace.Tracer
	markets MarketReader
	reports ReportReader
	bars    BarReader
}

func NewMarketDataService(tracer trace.Tracer, markets MarketReader, reports ReportReader, bars BarReader) *MarketDataService {
	return &MarketDataService{tracer: tracer, markets: markets, reports: reports, bars: bars}
}

func (s *MarketDataService) Markets(ctx context.Context) ([]domain.Market, error) {
	return s.markets.ListMarkets(ctx)
}

func (s *MarketDataService) Market(ctx context.Context, id int64) (domain.Market, error) {
	return s.markets.GetMarket(ctx, id)
}

func (s *MarketDataService) Reports(ctx context.Context, marketID int64, limit int) ([]domain.COTReport, error) {
	if _, err := s.markets.GetMarket(ctx, marketID); err != nil {
		return nil, err
	}
	return s.reports.LatestReports(ctx, marketID, limit)
}

func (s *MarketDataService) Prices(ctx context.Context, marketID int64, limit int) ([]domain.PriceBar, error) {
	if _, err := s.markets.GetMarket(ctx, marketID); err != nil {
		return nil, err
	}
	return s.bars.LatestBars(ctx, marketID, limit)
}

// Combined pairs the latest limit reports of a market with their nearest
// daily close, oldest first.
func (s *MarketDataService) Combined(ctx context.Context, marketID int64, limit int) ([]domain.CombinedRow, error) {
	ctx, span := s.tracer.Start(ctx, "market-data.combined")
	defer span.End()
	span.SetAttributes(attribute.Int64("market.id", marketID), attribute.Int("limit", limit))

	if _, err := s.markets.GetMarket(ctx, marketID); err != nil {
		return nil, err
	}
	reports, err := s.reports.LatestReports(ctx, marketID, limit)
	if err != nil {
		return nil, fmt.Errorf("load reports: %w", err)
	}
	if len(reports) == 0 {
		return []domain.CombinedRow{}, nil
	}
	slices.Reverse(reports)

	from := reports[0].ReportDate.Add(-MaxPriceGap)
	to := reports[len(reports)-1].ReportDate.Add(MaxPriceGap)
	bars, err := s.bars.BarsBetween(ctx, marketID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load prices: %w", err)
	}
	return AlignPrices(reports, bars, MaxPriceGap), nil
}

// AlignPrices pairs every report with the bar closest to its report date.
// On a tie the earlier bar wins. Reports with no bar within maxGap keep a nil
// Price. Output order follows reports.
func AlignPrices(reports []domain.COTReport, bars []domain.PriceBar, maxGap time.Duration) []domain.CombinedRow {
	sorted := slices.Clone(bars)
	slices.SortFunc(sorted, func(a, b domain.PriceBar) int { return a.Date.Compare(b.Date) })

	rows := make([]domain.CombinedRow, len(reports))
	for i, rep := range reports {
		rows[i].Report = rep

		// first bar on or after the report date
		j, _ := slices.BinarySearchFunc(sorted, rep.ReportDate, func(b domain.PriceBar, t time.Time) int {
			return b.Date.Compare(t)
		})

		best := -1
		var bestGap time.Duration
		for _, k := range []int{j - 1, j} {
			if k < 0 || k >= len(sorted) {
				continue
			}
			gap := sorted[k].Date.Sub(rep.ReportDate).Abs()
			if best == -1 || gap < bestGap {
				best, bestGap = k, gap
			}
		}
		if best == -1 || bestGap > maxGap {
			continue
		}
		bar := sorted[best]
		rows[i].Price = &bar
		rows[i].GapDays = int(bestGap.Hours() / 24)
	}
	return rows
}
