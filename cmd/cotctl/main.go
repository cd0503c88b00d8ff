package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"cot-sentinel/internal/app"
	"cot-sentinel/internal/cache"
	"cot-sentinel/internal/config"
	"cot-sentinel/internal/cotscore"
	"cot-sentinel/internal/db"
	"cot-sentinel/internal/domain"
	"cot-sentinel/internal/service"
	"cot-sentinel/pkg/logging"
	"cot-sentinel/pkg/tracing"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type scoreAPI interface {
	LookBackWeeks() int
	MarketDetail(ctx context.Context, marketID int64, lookBackWeeks int) (*service.MarketDetail, error)
	FindExtremeSignals(ctx context.Context) (*domain.ExtremeSignals, error)
	SignalTable(ctx context.Context) (*service.SignalTable, error)
}

type marketAPI interface {
	Markets(ctx context.Context) ([]domain.Market, error)
}

type snapshotAPI interface {
	LatestScores(ctx context.Context, lookBackWeeks int) ([]domain.Score, error)
}

type collectAPI interface {
	CollectAllCOT(ctx context.Context, weeks int) (map[string]domain.CollectionResult, error)
	CollectAllPrices(ctx context.Context, full bool) (map[string]domain.CollectionResult, error)
}

type backend struct {
	scores     scoreAPI
	markets    marketAPI
	snapshots  snapshotAPI
	collector  collectAPI
	fetchWeeks int
}

// openBackend connects to storage and builds the service graph. The returned
// func releases connections.
var openBackend = func(ctx context.Context) (*backend, func(), error) {
	_ = godotenv.Load()
	cfg := config.Load()
	logging.Init(cfg.LogLevel, "console", "cotctl")

	os.Setenv("DATABASE_URL", cfg.DatabaseURL)
	os.Setenv("REDIS_URL", cfg.RedisURL)
	if err := db.InitPostgres(ctx); err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := cache.InitRedis(ctx); err != nil {
		log.Warn().Err(err).Msg("redis unavailable, score caching disabled")
	}
	tp, tracer, err := tracing.InitTracer(ctx, "cotctl")
	if err != nil {
		db.Pool.Close()
		return nil, nil, err
	}

	s := app.Build(cfg, tracer, db.Pool, cache.Client)
	cleanup := func() {
		_ = tp.Shutdown(context.Background())
		if cache.Client != nil {
			_ = cache.Client.Close()
		}
		db.Pool.Close()
	}
	return &backend{
		scores:     s.Scores,
		markets:    s.Data,
		snapshots:  s.Snapshots,
		collector:  s.Collector,
		fetchWeeks: cfg.FetchWeeks,
	}, cleanup, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "cotctl",
		Short:         "Inspect and maintain COT scores from the command line",
		SilenceUsage:  true,
	}
	root.AddCommand(
		marketsCmd(),
		scoreCmd(),
		extremesCmd(),
		signalsCmd(),
		snapshotCmd(),
		collectCmd(),
	)
	return root
}

// withBackend opens the backend for the duration of one command and prints
// whatever fn returns as indented JSON.
func withBackend(fn func(ctx context.Context, b *backend) (any, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		b, cleanup, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		v, err := fn(ctx, b)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), v)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func marketsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "markets",
		Short: "List tracked markets",
		Args:  cobra.NoArgs,
		RunE: withBackend(func(ctx context.Context, b *backend) (any, error) {
			return b.markets.Markets(ctx)
		}),
	}
}

func scoreCmd() *cobra.Command {
	var lookBack int
	cmd := &cobra.Command{
		Use:   "score <market-id>",
		Short: "Score one market and print its current reading, history and analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid market id %q", args[0])
			}
			if cmd.Flags().Changed("lookback") && (lookBack < 1 || lookBack > cotscore.MaxLookBackWeeks) {
				return fmt.Errorf("%w: %d", cotscore.ErrInvalidLookBack, lookBack)
			}
			return withBackend(func(ctx context.Context, b *backend) (any, error) {
				lb := lookBack
				if !cmd.Flags().Changed("lookback") {
					lb = b.scores.LookBackWeeks()
				}
				return b.scores.MarketDetail(ctx, id, lb)
			})(cmd, args)
		},
	}
	cmd.Flags().IntVar(&lookBack, "lookback", cotscore.DefaultLookBackWeeks, "Look-back window in weeks")
	return cmd
}

func extremesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extremes",
		Short: "Print markets at extreme COT levels",
		Args:  cobra.NoArgs,
		RunE: withBackend(func(ctx context.Context, b *backend) (any, error) {
			return b.scores.FindExtremeSignals(ctx)
		}),
	}
}

func signalsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "signals",
		Short: "Print the BUY/SELL/NEUTRAL signal table",
		Args:  cobra.NoArgs,
		RunE: withBackend(func(ctx context.Context, b *backend) (any, error) {
			return b.scores.SignalTable(ctx)
		}),
	}
}

func snapshotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "Print the last persisted score of every market",
		Args:  cobra.NoArgs,
		RunE: withBackend(func(ctx context.Context, b *backend) (any, error) {
			return b.snapshots.LatestScores(ctx, b.scores.LookBackWeeks())
		}),
	}
}

func collectCmd() *cobra.Command {
	var (
		weeks int
		full  bool
	)
	cmd := &cobra.Command{
		Use:       "collect cot|prices",
		Short:     "Fetch new COT reports or daily prices from upstream",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"cot", "prices"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(func(ctx context.Context, b *backend) (any, error) {
				if args[0] == "prices" {
					return b.collector.CollectAllPrices(ctx, full)
				}
				w := weeks
				if w <= 0 {
					w = b.fetchWeeks
				}
				return b.collector.CollectAllCOT(ctx, w)
			})(cmd, args)
		},
	}
	cmd.Flags().IntVar(&weeks, "weeks", 0, "Weeks of COT history to request per market (default COT_FETCH_WEEKS)")
	cmd.Flags().BoolVar(&full, "full", false, "Request full price history")
	return cmd
}
