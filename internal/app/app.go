// Package app assembles repositories, upstream clients and services from
// configuration. Every binary builds the same graph through it.
package app

import (
	"context"
	"fmt"
	"time"

	"cot-sentinel/internal/advisor"
	"cot-sentinel/internal/cache"
	"cot-sentinel/internal/config"
	"cot-sentinel/internal/domain"
	"cot-sentinel/internal/markets"
	"cot-sentinel/internal/metrics"
	"cot-sentinel/internal/migrate"
	"cot-sentinel/internal/provider"
	"cot-sentinel/internal/repository"
	"cot-sentinel/internal/service"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

type Services struct {
	Markets   *repository.MarketRepository
	Reports   *repository.ReportRepository
	Prices    *repository.PriceRepository
	Snapshots *repository.ScoreRepository

	Metrics   *metrics.Metrics
	Scores    *service.ScoreService
	Data      *service.MarketDataService
	Collector *service.CollectorService

	// Narrator is nil when no OpenAI key is configured.
	Narrator *advisor.Narrator
}

var newOpenAIClientFunc = advisor.NewOpenAIClient

// Build wires the service graph. redisClient may be nil, which disables
// score caching.
func Build(cfg *config.Config, tracer trace.Tracer, pool repository.PgxPool, redisClient *redis.Client) *Services {
	s := &Services{
		Markets:   repository.NewMarketRepository(pool, tracer),
		Reports:   repository.NewReportRepository(pool, tracer),
		Prices:    repository.NewPriceRepository(pool, tracer),
		Snapshots: repository.NewScoreRepository(pool, tracer),
		Metrics:   metrics.New(),
	}

	s.Scores = service.NewScoreService(
		tracer,
		repository.Positions{ReportRepository: s.Reports, MarketRepository: s.Markets},
		s.Markets,
		cacheStore(redisClient),
		s.Metrics,
		service.ScoreServiceConfig{
			LookBackWeeks: cfg.LookBackWeeks,
			Concurrency:   cfg.ScoreConcurrency,
			CacheTTL:      time.Duration(cfg.ScoreCacheTTLSecs) * time.Second,
		},
	)
	s.Data = service.NewMarketDataService(tracer, s.Markets, s.Reports, s.Prices)

	cftc := provider.NewCFTCProvider(cfg.CFTCBaseURL, tracer)
	alpha := provider.NewAlphaVantageProvider(cfg.AlphaVantageBaseURL, cfg.AlphaVantageAPIKey, cfg.AlphaVantageReqsPerMin, tracer)
	s.Collector = service.NewCollectorService(tracer, cftc, alpha, s.Reports, s.Prices, s.Markets, s.Scores, s.Snapshots, s.Metrics)

	if cfg.OpenAIAPIKey != "" {
		s.Narrator = advisor.NewNarrator(tracer, newOpenAIClientFunc(cfg.OpenAIAPIKey), cfg.OpenAIModel)
		log.Info().Str("model", cfg.OpenAIModel).Msg("narratives enabled")
	}
	return s
}

// cacheStore keeps a nil client from becoming a non-nil interface.
func cacheStore(c *redis.Client) cache.Store {
	if c == nil {
		return nil
	}
	return c
}

// Prepare applies pending migrations and upserts the configured market
// universe.
func Prepare(ctx context.Context, cfg *config.Config, pool migrate.DB, marketRepo *repository.MarketRepository) error {
	migrations, err := migrate.Embedded()
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	applied, err := migrate.Up(ctx, pool, migrations)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	if applied > 0 {
		log.Info().Int("applied", applied).Msg("migrations applied")
	}

	defs, err := markets.Load(cfg.MarketsFile)
	if err != nil {
		return err
	}
	universe := make([]domain.Market, 0, len(defs))
	for _, d := range defs {
		universe = append(universe, d.Market())
	}
	if err := marketRepo.SyncMarkets(ctx, universe); err != nil {
		return fmt.Errorf("sync markets: %w", err)
	}
	log.Info().Int("markets", len(universe)).Msg("market universe synced")
	return nil
}
