package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"cot-sentinel/internal/cache"
	"cot-sentinel/internal/cotscore"
	"cot-sentinel/internal/domain"
	"cot-sentinel/internal/metrics"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const (
	scoreCacheName      = "score"
	scoreboardCacheName = "scoreboard"
)

// PositionStore is the read side the scorer needs from storage.
type PositionStore interface {
	FetchPositionHistory(ctx context.Context, marketID int64, minRecords int) ([]domain.PositionRecord, error)
	FetchMarketSymbol(ctx context.Context, marketID int64) (string, error)
}

type COTMarketLister interface {
	ListCOTMarkets(ctx context.Context) ([]domain.Market, error)
}

type ScoreServiceConfig struct {
	LookBackWeeks int
	Concurrency   int
	CacheTTL      time.Duration
}

// ScoreService turns stored positioning history into Williams scores and
// the cross-market views built from them.
type ScoreService struct {
	tracer    trace.Tracer
	positions PositionStore
	markets   COTMarketLister
	cache     cache.Store
	metrics   *metrics.Metrics
	cfg       ScoreServiceConfig

	listenersMu sync.Mutex
	listeners   []func(*domain.Scoreboard)
}

func NewScoreService(
	tracer trace.Tracer,
	positions PositionStore,
	markets COTMarketLister,
	store cache.Store,
	m *metrics.Metrics,
	cfg ScoreServiceConfig,
) *ScoreService {
	if cfg.LookBackWeeks < 1 {
		cfg.LookBackWeeks = cotscore.DefaultLookBackWeeks
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 4
	}
	return &ScoreService{
		tracer:    tracer,
		positions: positions,
		markets:   markets,
		cache:     store,
		metrics:   m,
		cfg:       cfg,
	}
}

func (s *ScoreService) LookBackWeeks() int {
	return s.cfg.LookBackWeeks
}

// OnScoreboard registers fn to receive every freshly computed scoreboard.
func (s *ScoreService) OnScoreboard(fn func(*domain.Scoreboard)) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// ScoreMarket returns every scorable week of a market, oldest first. Only the
// configured look-back is cached.
func (s *ScoreService) ScoreMarket(ctx context.Context, marketID int64, lookBackWeeks int) ([]domain.Score, error) {
	ctx, span := s.tracer.Start(ctx, "score-service.score-market")
	defer span.End()
	span.SetAttributes(attribute.Int64("market.id", marketID), attribute.Int("look_back_weeks", lookBackWeeks))

	if lookBackWeeks < 1 {
		return nil, fmt.Errorf("%w: %d", cotscore.ErrInvalidLookBack, lookBackWeeks)
	}

	cacheable := s.cache != nil && lookBackWeeks == s.cfg.LookBackWeeks
	key := scoreCacheKey(marketID, lookBackWeeks)
	if cacheable {
		var cached []domain.Score
		hit, err := cache.GetJSON(ctx, s.cache, key, &cached)
		if err != nil {
			log.Warn().Err(err).Int64("market_id", marketID).Msg("score cache read failed")
		}
		s.metrics.CacheLookup(scoreCacheName, hit)
		if hit {
			return cached, nil
		}
	}

	started := time.Now()
	symbol, err := s.positions.FetchMarketSymbol(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("market %d: %w", marketID, err)
	}
	records, err := s.positions.FetchPositionHistory(ctx, marketID, cotscore.FetchSize(lookBackWeeks))
	if err != nil {
		return nil, fmt.Errorf("load history for %s: %w", symbol, err)
	}

	scores, err := cotscore.ScoreRecords(records, lookBackWeeks)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("score %s: %w", symbol, err)
	}
	for i := range scores {
		scores[i].MarketID = marketID
		scores[i].Symbol = symbol
	}
	s.metrics.ObserveScore("market", started)

	if cacheable {
		if err := cache.SetJSON(ctx, s.cache, key, scores, s.cfg.CacheTTL); err != nil {
			log.Warn().Err(err).Str("market", symbol).Msg("score cache write failed")
		}
	}
	return scores, nil
}

// ScoreAllMarkets scores every COT market concurrently and ranks the latest
// score of each. A market that fails is reported in Failures and never
// affects the others.
func (s *ScoreService) ScoreAllMarkets(ctx context.Context) (*domain.Scoreboard, error) {
	ctx, span := s.tracer.Start(ctx, "score-service.score-all-markets")
	defer span.End()

	key := scoreboardCacheKey(s.cfg.LookBackWeeks)
	if s.cache != nil {
		var cached domain.Scoreboard
		hit, err := cache.GetJSON(ctx, s.cache, key, &cached)
		if err != nil {
			log.Warn().Err(err).Msg("scoreboard cache read failed")
		}
		s.metrics.CacheLookup(scoreboardCacheName, hit)
		if hit {
			return &cached, nil
		}
	}

	board, err := s.computeScoreboard(ctx)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("markets.scored", len(board.Scores)), attribute.Int("markets.failed", len(board.Failures)))

	if s.cache != nil {
		if err := cache.SetJSON(ctx, s.cache, key, board, s.cfg.CacheTTL); err != nil {
			log.Warn().Err(err).Msg("scoreboard cache write failed")
		}
	}
	return board, nil
}

// Refresh drops cached scores, recomputes the scoreboard and notifies
// listeners.
func (s *ScoreService) Refresh(ctx context.Context) (*domain.Scoreboard, error) {
	if err := s.Invalidate(ctx); err != nil {
		log.Warn().Err(err).Msg("score cache invalidation failed")
	}
	board, err := s.ScoreAllMarkets(ctx)
	if err != nil {
		return nil, err
	}

	s.listenersMu.Lock()
	listeners := append([]func(*domain.Scoreboard){}, s.listeners...)
	s.listenersMu.Unlock()
	for _, fn := range listeners {
		fn(board)
	}
	return board, nil
}

func (s *ScoreService) computeScoreboard(ctx context.Context) (*domain.Scoreboard, error) {
	started := time.Now()
	markets, err := s.markets.ListCOTMarkets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list cot markets: %w", err)
	}

	latest := make([]*domain.Score, len(markets))
	failures := make([]*domain.MarketFailure, len(markets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, m := range markets {
		g.Go(func() error {
			scores, err := s.ScoreMarket(gctx, m.ID, s.cfg.LookBackWeeks)
			if err == nil && len(scores) == 0 {
				err = errors.New("no scorable weeks")
			}
			if err != nil {
				s.metrics.ScoreFailed(failureReason(err))
				log.Warn().Err(err).Str("market", m.Symbol).Int64("market_id", m.ID).Msg("market scoring failed")
				failures[i] = &domain.MarketFailure{MarketID: m.ID, Symbol: m.Symbol, Error: err.Error()}
				return nil
			}
			last := scores[len(scores)-1]
			latest[i] = &last
			return nil
		})
	}
	_ = g.Wait()

	board := &domain.Scoreboard{Scores: []domain.Score{}, GeneratedAt: time.Now().UTC()}
	for i := range markets {
		if latest[i] != nil {
			board.Scores = append(board.Scores, *latest[i])
		}
		if failures[i] != nil {
			board.Failures = append(board.Failures, *failures[i])
		}
	}
	board.Scores = cotscore.RankByOverallScore(board.Scores)
	s.metrics.ObserveScore("all", started)
	return board, nil
}

func failureReason(err error) string {
	var insufficient *cotscore.InsufficientDataError
	switch {
	case errors.As(err, &insufficient):
		return "insufficient_data"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}

// FindExtremeSignals partitions the current scoreboard into extreme buckets.
func (s *ScoreService) FindExtremeSignals(ctx context.Context) (*domain.ExtremeSignals, error) {
	board, err := s.ScoreAllMarkets(ctx)
	if err != nil {
		return nil, err
	}
	ex := cotscore.FindExtremes(board.Scores)
	s.metrics.SetExtremes(len(ex.ExtremeBuys), len(ex.ExtremeSells), len(ex.HighConfidenceSetups))
	return &ex, nil
}

type Dashboard struct {
	domain.Scoreboard
	Summary domain.DashboardSummary `json:"summary"`
}

func (s *ScoreService) Dashboard(ctx context.Context) (*Dashboard, error) {
	board, err := s.ScoreAllMarkets(ctx)
	if err != nil {
		return nil, err
	}
	return &Dashboard{Scoreboard: *board, Summary: cotscore.Summarize(board.Scores)}, nil
}

type SignalTable struct {
	Signals       []domain.SignalRow      `json:"signals"`
	Opportunities []domain.SignalRow      `json:"opportunities"`
	Stats         domain.SignalTableStats `json:"stats"`
}

func (s *ScoreService) SignalTable(ctx context.Context) (*SignalTable, error) {
	board, err := s.ScoreAllMarkets(ctx)
	if err != nil {
		return nil, err
	}
	rows := cotscore.BuildSignalTable(board.Scores)
	return &SignalTable{
		Signals:       rows,
		Opportunities: cotscore.SetupOpportunities(rows),
		Stats:         cotscore.SignalStats(rows),
	}, nil
}

type MarketDetail struct {
	Current  domain.Score          `json:"current"`
	History  []domain.Score        `json:"history"`
	Analysis domain.MarketAnalysis `json:"analysis"`
}

// MarketDetail is the per-market drill-down: latest score, the scored
// history oldest first, and its summary statistics.
func (s *ScoreService) MarketDetail(ctx context.Context, marketID int64, lookBackWeeks int) (*MarketDetail, error) {
	scores, err := s.ScoreMarket(ctx, marketID, lookBackWeeks)
	if err != nil {
		return nil, err
	}
	if len(scores) == 0 {
		return nil, fmt.Errorf("market %d: no scorable weeks", marketID)
	}
	return &MarketDetail{
		Current:  scores[len(scores)-1],
		History:  scores,
		Analysis: cotscore.AnalyzeMarket(scores),
	}, nil
}

// Invalidate drops the cached scoreboard and every cached market score.
func (s *ScoreService) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	markets, err := s.markets.ListCOTMarkets(ctx)
	if err != nil {
		return fmt.Errorf("list cot markets: %w", err)
	}
	keys := []string{scoreboardCacheKey(s.cfg.LookBackWeeks)}
	for _, m := range markets {
		keys = append(keys, scoreCacheKey(m.ID, s.cfg.LookBackWeeks))
	}
	return cache.Delete(ctx, s.cache, keys...)
}

func scoreCacheKey(marketID int64, lookBackWeeks int) string {
	return "cot:score:" + strconv.FormatInt(marketID, 10) + ":" + strconv.Itoa(lookBackWeeks)
}

func scoreboardCacheKey(lookBackWeeks int) string {
	return "cot:scoreboard:" + strconv.Itoa(lookBackWeeks)
}
