package job

import (
	"context"
	"fmt"
	"time"

	"cot-sentinel/internal/config"
	"cot-sentinel/internal/domain"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Kind string

const (
	KindCOT    Kind = "cot"
	KindPrices Kind = "prices"
)

const defaultRunTimeout = 30 * time.Minute

type CollectionRunner interface {
	CollectAllCOT(ctx context.Context, weeks int) (map[string]domain.CollectionResult, error)
	CollectAllPrices(ctx context.Context, full bool) (map[string]domain.CollectionResult, error)
}

// CollectionScheduler runs COT collection after the weekly Friday release and
// price collection on weekday evenings. A run still in progress makes the
// next tick of the same job a no-op.
type CollectionScheduler struct {
	tracer     trace.Tracer
	runner     CollectionRunner
	cron       *cron.Cron
	cotSpec    string
	priceSpec  string
	fetchWeeks int
	runTimeout time.Duration
}

func NewCollectionScheduler(tracer trace.Tracer, runner CollectionRunner, cotSpec, priceSpec string, fetchWeeks int) *CollectionScheduler {
	logger := cronLogger{}
	return &CollectionScheduler{
		tracer:     tracer,
		runner:     runner,
		cron:       cron.New(cron.WithParser(config.CronParser), cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)), cron.WithLogger(logger)),
		cotSpec:    cotSpec,
		priceSpec:  priceSpec,
		fetchWeeks: fetchWeeks,
		runTimeout: defaultRunTimeout,
	}
}

// Start registers both jobs and blocks until ctx is cancelled. Running jobs
// are allowed to finish before it returns.
func (s *CollectionScheduler) Start(ctx context.Context) error {
	if err := s.register(ctx); err != nil {
		return err
	}
	s.cron.Start()
	log.Info().Str("cot", s.cotSpec).Str("prices", s.priceSpec).Msg("collection scheduler started")

	<-ctx.Done()
	<-s.cron.Stop().Done()
	log.Info().Msg("collection scheduler stopped")
	return nil
}

func (s *CollectionScheduler) register(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.cotSpec, func() { s.run(ctx, KindCOT) }); err != nil {
		return fmt.Errorf("schedule cot collection %q: %w", s.cotSpec, err)
	}
	if _, err := s.cron.AddFunc(s.priceSpec, func() { s.run(ctx, KindPrices) }); err != nil {
		return fmt.Errorf("schedule price collection %q: %w", s.priceSpec, err)
	}
	return nil
}

// RunNow runs one collection synchronously outside the schedule.
func (s *CollectionScheduler) RunNow(ctx context.Context, kind Kind) (map[string]domain.CollectionResult, error) {
	switch kind {
	case KindCOT:
		return s.runner.CollectAllCOT(ctx, s.fetchWeeks)
	case KindPrices:
		return s.runner.CollectAllPrices(ctx, false)
	default:
		return nil, fmt.Errorf("unknown collection kind %q", kind)
	}
}

func (s *CollectionScheduler) run(parent context.Context, kind Kind) {
	ctx, cancel := context.WithTimeout(parent, s.runTimeout)
	defer cancel()
	ctx, span := s.tracer.Start(ctx, "collection-scheduler.run")
	defer span.End()
	span.SetAttributes(attribute.String("kind", string(kind)))

	started := time.Now()
	results, err := s.RunNow(ctx, kind)
	if err != nil {
		span.RecordError(err)
		log.Error().Err(err).Str("kind", string(kind)).Msg("scheduled collection failed")
		return
	}

	ok, newRecords := 0, 0
	for _, r := range results {
		if r.Success {
			ok++
		}
		newRecords += r.NewRecords
	}
	log.Info().
		Str("kind", string(kind)).
		Int("markets", len(results)).
		Int("succeeded", ok).
		Int("new_records", newRecords).
		Dur("duration", time.Since(started)).
		Msg("scheduled collection complete")
}

type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
