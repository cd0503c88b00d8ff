package service

import (
	"context"
	"errors"
	"fmt"

	"cot-sentinel/internal/domain"
	"cot-sentinel/internal/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var ErrPricesDisabled = errors.New("price collection disabled: no alpha vantage api key")

type ReportFetcher interface {
	FetchReports(ctx context.Context, contractCode string, limit int) ([]domain.COTReport, error)
}

type BarFetcher interface {
	Enabled() bool
	FetchDaily(ctx context.Context, m domain.Market, full bool) ([]domain.PriceBar, error)
}

type ReportStore interface {
	InsertReports(ctx context.Context, marketID int64, reports []domain.COTReport) (int, int, error)
	Stats(ctx context.Context) (domain.DataStats, error)
	Coverage(ctx context.Context) ([]domain.MarketCoverage, error)
}

type BarStore interface {
	InsertBars(ctx context.Context, marketID int64, bars []domain.PriceBar) (int, int, error)
	Stats(ctx context.Context) (domain.DataStats, error)
}

type MarketLister interface {
	ListCOTMarkets(ctx context.Context) ([]domain.Market, error)
	ListPriceMarkets(ctx context.Context) ([]domain.Market, error)
}

type ScoreSnapshotStore interface {
	SaveScores(ctx context.Context, scores []domain.Score) error
}

// ScoreRefresher is told when new reports land so cached scores can be
// rebuilt.
type ScoreRefresher interface {
	Refresh(ctx context.Context) (*domain.Scoreboard, error)
}

// CollectorService pulls COT reports and daily prices from upstream and
// stores whatever is new. Markets are processed one at a time because both
// upstreams are rate limited.
type CollectorService struct {
	tracer    trace.Tracer
	cftc      ReportFetcher
	prices    BarFetcher
	reports   ReportStore
	bars      BarStore
	markets   MarketLister
	scorer    ScoreRefresher
	snapshots ScoreSnapshotStore
	metrics   *metrics.Metrics
}

func NewCollectorService(
	tracer trace.Tracer,
	cftc ReportFetcher,
	prices BarFetcher,
	reports ReportStore,
	bars BarStore,
	markets MarketLister,
	scorer ScoreRefresher,
	snapshots ScoreSnapshotStore,
	m *metrics.Metrics,
) *CollectorService {
	return &CollectorService{
		tracer:    tracer,
		cftc:      cftc,
		prices:    prices,
		reports:   reports,
		bars:      bars,
		markets:   markets,
		scorer:    scorer,
		snapshots: snapshots,
		metrics:   m,
	}
}

// CollectCOT fetches up to weeks reports for one market and inserts the new
// ones. Upstream and storage failures are reported in the result.
func (s *CollectorService) CollectCOT(ctx context.Context, m domain.Market, weeks int) domain.CollectionResult {
	ctx, span := s.tracer.Start(ctx, "collector.collect-cot")
	defer span.End()
	span.SetAttributes(attribute.String("market", m.Symbol), attribute.Int("weeks", weeks))

	res := domain.CollectionResult{RunID: uuid.NewString(), Market: m.Symbol, Errors: []string{}}
	logger := log.With().Str("run_id", res.RunID).Str("market", m.Symbol).Logger()

	if !m.HasCOT() {
		res.Message = fmt.Sprintf("%s has no CFTC contract code", m.Symbol)
		res.Errors = append(res.Errors, res.Message)
		return res
	}

	reports, err := s.cftc.FetchReports(ctx, m.CFTCCode, weeks)
	if err != nil {
		span.RecordError(err)
		res.Message = fmt.Sprintf("failed to collect COT data for %s: %v", m.Symbol, err)
		res.Errors = append(res.Errors, err.Error())
		logger.Warn().Err(err).Msg("cot collection failed")
		s.metrics.CollectionRun("cftc", false, 0, 0)
		return res
	}
	for i := range reports {
		reports[i].MarketID = m.ID
	}

	inserted, skipped, err := s.reports.InsertReports(ctx, m.ID, reports)
	res.NewRecords, res.SkippedRecords = inserted, skipped
	if err != nil {
		span.RecordError(err)
		res.Message = fmt.Sprintf("failed to store COT data for %s: %v", m.Symbol, err)
		res.Errors = append(res.Errors, err.Error())
		logger.Error().Err(err).Msg("cot insert failed")
		s.metrics.CollectionRun("cftc", false, inserted, skipped)
		return res
	}

	if len(reports) > 0 {
		res.DateRange = &domain.DateRange{From: reports[len(reports)-1].ReportDate, To: reports[0].ReportDate}
	}
	res.Success = true
	res.Message = fmt.Sprintf("processed %d COT records for %s: %d new, %d skipped", len(reports), m.Symbol, inserted, skipped)
	logger.Info().Int("new", inserted).Int("skipped", skipped).Msg("cot collection complete")
	s.metrics.CollectionRun("cftc", true, inserted, skipped)
	return res
}

// CollectAllCOT collects every COT market. When anything new was stored the
// score caches are rebuilt and a snapshot is persisted.
func (s *CollectorService) CollectAllCOT(ctx context.Context, weeks int) (map[string]domain.CollectionResult, error) {
	ctx, span := s.tracer.Start(ctx, "collector.collect-all-cot")
	defer span.End()

	markets, err := s.markets.ListCOTMarkets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list cot markets: %w", err)
	}

	results := make(map[string]domain.CollectionResult, len(markets))
	newRecords := 0
	for _, m := range markets {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res := s.CollectCOT(ctx, m, weeks)
		results[m.Symbol] = res
		newRecords += res.NewRecords
	}

	if newRecords > 0 {
		s.afterNewReports(ctx)
	}
	return results, nil
}

func (s *CollectorService) afterNewReports(ctx context.Context) {
	if s.scorer == nil {
		return
	}
	board, err := s.scorer.Refresh(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("rescoring after collection failed")
		return
	}
	if s.snapshots == nil {
		return
	}
	if err := s.snapshots.SaveScores(ctx, board.Scores); err != nil {
		log.Warn().Err(err).Msg("saving score snapshot failed")
	}
}

// CollectPrices fetches daily bars for one market. full asks for the whole
// upstream history instead of the most recent sessions.
func (s *CollectorService) CollectPrices(ctx context.Context, m domain.Market, full bool) domain.CollectionResult {
	ctx, span := s.tracer.Start(ctx, "collector.collect-prices")
	defer span.End()
	span.SetAttributes(attribute.String("market", m.Symbol), attribute.Bool("full", full))

	res := domain.CollectionResult{RunID: uuid.NewString(), Market: m.Symbol, Errors: []string{}}
	logger := log.With().Str("run_id", res.RunID).Str("market", m.Symbol).Logger()

	if !m.HasPrices() {
		res.Message = fmt.Sprintf("%s has no price source", m.Symbol)
		res.Errors = append(res.Errors, res.Message)
		return res
	}

	bars, err := s.prices.FetchDaily(ctx, m, full)
	if err != nil {
		span.RecordError(err)
		res.Message = fmt.Sprintf("failed to collect price data for %s: %v", m.Symbol, err)
		res.Errors = append(res.Errors, err.Error())
		logger.Warn().Err(err).Msg("price collection failed")
		s.metrics.CollectionRun("alphavantage", false, 0, 0)
		return res
	}
	for i := range bars {
		bars[i].MarketID = m.ID
	}

	inserted, skipped, err := s.bars.InsertBars(ctx, m.ID, bars)
	res.NewRecords, res.SkippedRecords = inserted, skipped
	if err != nil {
		span.RecordError(err)
		res.Message = fmt.Sprintf("failed to store price data for %s: %v", m.Symbol, err)
		res.Errors = append(res.Errors, err.Error())
		logger.Error().Err(err).Msg("price insert failed")
		s.metrics.CollectionRun("alphavantage", false, inserted, skipped)
		return res
	}

	if len(bars) > 0 {
		res.DateRange = &domain.DateRange{From: bars[len(bars)-1].Date, To: bars[0].Date}
	}
	res.Success = true
	res.Message = fmt.Sprintf("processed %d price records for %s: %d new, %d skipped", len(bars), m.Symbol, inserted, skipped)
	logger.Info().Int("new", inserted).Int("skipped", skipped).Msg("price collection complete")
	s.metrics.CollectionRun("alphavantage", true, inserted, skipped)
	return res
}

func (s *CollectorService) CollectAllPrices(ctx context.Context, full bool) (map[string]domain.CollectionResult, error) {
	ctx, span := s.tracer.Start(ctx, "collector.collect-all-prices")
	defer span.End()

	if !s.prices.Enabled() {
		return nil, ErrPricesDisabled
	}
	markets, err := s.markets.ListPriceMarkets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list price markets: %w", err)
	}

	results := make(map[string]domain.CollectionResult, len(markets))
	for _, m := range markets {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results[m.Symbol] = s.CollectPrices(ctx, m, full)
	}
	return results, nil
}

func (s *CollectorService) COTStats(ctx context.Context) (domain.DataStats, error) {
	return s.reports.Stats(ctx)
}

func (s *CollectorService) PriceStats(ctx context.Context) (domain.DataStats, error) {
	return s.bars.Stats(ctx)
}

func (s *CollectorService) Coverage(ctx context.Context) ([]domain.MarketCoverage, error) {
	return s.reports.Coverage(ctx)
}
