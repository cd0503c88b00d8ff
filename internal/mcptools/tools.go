// Package mcptools exposes the COT scorer to MCP agents.
package mcptools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cot-sentinel/internal/cotscore"
	"cot-sentinel/internal/domain"
	"cot-sentinel/internal/service"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

var ErrRateLimited = errors.New("rate limit exceeded, retry shortly")

type ScoreQuerier interface {
	LookBackWeeks() int
	ScoreMarket(ctx context.Context, marketID int64, lookBackWeeks int) ([]domain.Score, error)
	ScoreAllMarkets(ctx context.Context) (*domain.Scoreboard, error)
	FindExtremeSignals(ctx context.Context) (*domain.ExtremeSignals, error)
	SignalTable(ctx context.Context) (*service.SignalTable, error)
}

type Options struct {
	Version         string
	RequestTimeout  time.Duration
	RateLimitPerMin int
}

type ScoreMarketInput struct {
	MarketID      int64 `json:"market_id" jsonschema:"numeric market id as listed by the scoreboard"`
	LookBackWeeks int   `json:"look_back_weeks,omitempty" jsonschema:"rolling window in weeks, defaults to the server setting"`
	Weeks         int   `json:"weeks,omitempty" jsonschema:"number of most recent scored weeks to return, default 1"`
}

type EmptyInput struct{}

type tools struct {
	scores  ScoreQuerier
	timeout time.Duration
	limiter *rate.Limiter
}

// NewServer builds an MCP server with the score_market, scoreboard,
// extreme_signals and signal_table tools.
func NewServer(scores ScoreQuerier, opts Options) *mcp.Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 5 * time.Second
	}
	if opts.RateLimitPerMin <= 0 {
		opts.RateLimitPerMin = 60
	}
	t := &tools{
		scores:  scores,
		timeout: opts.RequestTimeout,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RateLimitPerMin)), opts.RateLimitPerMin),
	}

	server := mcp.NewServer(&mcp.Implementation{Name: "cot-sentinel", Version: opts.Version}, nil)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "score_market",
		Description: "Williams COT score for one market: commercial and large trader indices, signal zones, overall score, bias and confidence.",
	}, t.scoreMarket)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "scoreboard",
		Description: "Latest COT score of every market ranked by overall score, with markets that could not be scored.",
	}, t.scoreboard)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "extreme_signals",
		Description: "Markets at extreme COT buy or sell levels and high-confidence setups.",
	}, t.extremeSignals)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "signal_table",
		Description: "BUY/SELL/NEUTRAL action and setup strength for every market.",
	}, t.signalTable)
	return server
}

// guard applies the shared rate limit and per-call timeout.
func (t *tools) guard(ctx context.Context, name string, fn func(context.Context) (any, error)) (*mcp.CallToolResult, any, error) {
	if !t.limiter.Allow() {
		return nil, nil, ErrRateLimited
	}
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	started := time.Now()
	v, err := fn(ctx)
	if err != nil {
		log.Warn().Err(err).Str("tool", name).Msg("mcp tool failed")
		return nil, nil, err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, nil, fmt.Errorf("encode %s result: %w", name, err)
	}
	log.Debug().Str("tool", name).Dur("took", time.Since(started)).Msg("mcp tool call")
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: string(data)}}}, nil, nil
}

func (t *tools) scoreMarket(ctx context.Context, _ *mcp.CallToolRequest, in ScoreMarketInput) (*mcp.CallToolResult, any, error) {
	return t.guard(ctx, "score_market", func(ctx context.Context) (any, error) {
		if in.MarketID <= 0 {
			return nil, fmt.Errorf("market_id must be positive")
		}
		lookBack := in.LookBackWeeks
		if lookBack == 0 {
			lookBack = t.scores.LookBackWeeks()
		}
		if lookBack < 1 || lookBack > cotscore.MaxLookBackWeeks {
			return nil, fmt.Errorf("%w: %d", cotscore.ErrInvalidLookBack, lookBack)
		}
		scores, err := t.scores.ScoreMarket(ctx, in.MarketID, lookBack)
		if err != nil {
			return nil, err
		}
		weeks := in.Weeks
		if weeks <= 0 {
			weeks = 1
		}
		if weeks < len(scores) {
			scores = scores[len(scores)-weeks:]
		}
		return scores, nil
	})
}

func (t *tools) scoreboard(ctx context.Context, _ *mcp.CallToolRequest, _ EmptyInput) (*mcp.CallToolResult, any, error) {
	return t.guard(ctx, "scoreboard", func(ctx context.Context) (any, error) {
		return t.scores.ScoreAllMarkets(ctx)
	})
}

func (t *tools) extremeSignals(ctx context.Context, _ *mcp.CallToolRequest, _ EmptyInput) (*mcp.CallToolResult, any, error) {
	return t.guard(ctx, "extreme_signals", func(ctx context.Context) (any, error) {
		return t.scores.FindExtremeSignals(ctx)
	})
}

func (t *tools) signalTable(ctx context.Context, _ *mcp.CallToolRequest, _ EmptyInput) (*mcp.CallToolResult, any, error) {
	return t.guard(ctx, "signal_table", func(ctx context.Context) (any, error) {
		return t.scores.SignalTable(ctx)
	})
}
