package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cot-sentinel/internal/domain"
	"cot-sentinel/internal/repository"
	"cot-sentinel/internal/service"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"
)

const (
	commandTimeout = 30 * time.Second
	topN           = 5
)

type ScoreSource interface {
	LookBackWeeks() int
	ScoreAllMarkets(ctx context.Context) (*domain.Scoreboard, error)
	FindExtremeSignals(ctx context.Context) (*domain.ExtremeSignals, error)
	MarketDetail(ctx context.Context, marketID int64, lookBackWeeks int) (*service.MarketDetail, error)
}

type MarketLookup interface {
	GetMarketBySymbol(ctx context.Context, symbol string) (domain.Market, error)
}

type Narrator interface {
	Narrate(ctx context.Context, market domain.Market, current domain.Score, analysis domain.MarketAnalysis) (string, error)
}

// Commands renders bot replies. It is independent of Telegram so replies can
// be tested directly.
type Commands struct {
	scores   ScoreSource
	markets  MarketLookup
	narrator Narrator
}

func NewCommands(scores ScoreSource, markets MarketLookup, narrator Narrator) *Commands {
	return &Commands{scores: scores, markets: markets, narrator: narrator}
}

// StartTelegramBot long-polls Telegram until ctx is cancelled. A blank token
// disables the bot.
func StartTelegramBot(ctx context.Context, token string, cmds *Commands) {
	if token == "" {
		log.Info().Msg("TELEGRAM_BOT_TOKEN not set, skipping Telegram bot startup")
		return
	}
	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}
	b, err := tele.NewBot(pref)
	if err != nil {
		log.Error().Err(err).Msg("failed to create Telegram bot")
		return
	}

	b.Handle("/ping", func(c tele.Context) error {
		return c.Send("pong")
	})
	b.Handle("/cot", func(c tele.Context) error {
		return c.Send(cmds.run(ctx, func(ctx context.Context) string { return cmds.Market(ctx, c.Args()) }))
	})
	b.Handle("/top", func(c tele.Context) error {
		return c.Send(cmds.run(ctx, cmds.Top))
	})
	b.Handle("/extremes", func(c tele.Context) error {
		return c.Send(cmds.run(ctx, cmds.Extremes))
	})

	go func() {
		<-ctx.Done()
		b.Stop()
	}()
	log.Info().Msg("Telegram bot started")
	go b.Start()
}

func (c *Commands) run(parent context.Context, fn func(context.Context) string) string {
	ctx, cancel := context.WithTimeout(parent, commandTimeout)
	defer cancel()
	return fn(ctx)
}

func (c *Commands) Market(ctx context.Context, args []string) string {
	if len(args) == 0 {
		return "Usage: /cot EUR"
	}
	symbol := strings.ToUpper(strings.TrimSpace(args[0]))
	market, err := c.markets.GetMarketBySymbol(ctx, symbol)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Sprintf("Unknown market: %s", symbol)
	}
	if err != nil {
		return fmt.Sprintf("Error looking up %s: %v", symbol, err)
	}
	detail, err := c.scores.MarketDetail(ctx, market.ID, c.scores.LookBackWeeks())
	if err != nil {
		return fmt.Sprintf("Error scoring %s: %v", symbol, err)
	}

	msg := FormatScore(detail.Current) + fmt.Sprintf("\nPercentile: %d of %d weeks", detail.Analysis.CurrentPercentile, detail.Analysis.TotalWeeks)
	if c.narrator != nil {
		text, err := c.narrator.Narrate(ctx, market, detail.Current, detail.Analysis)
		if err != nil {
			log.Warn().Err(err).Str("market", symbol).Msg("narrative unavailable")
		} else {
			msg += "\n\n" + text
		}
	}
	return msg
}

func (c *Commands) Top(ctx context.Context) string {
	board, err := c.scores.ScoreAllMarkets(ctx)
	if err != nil {
		return fmt.Sprintf("Error building scoreboard: %v", err)
	}
	if len(board.Scores) == 0 {
		return "No markets have enough history to score yet."
	}

	var sb strings.Builder
	sb.WriteString("Most bullish:\n")
	for i := 0; i < len(board.Scores) && i < topN; i++ {
		sb.WriteString(formatLine(board.Scores[i]))
	}
	sb.WriteString("\nMost bearish:\n")
	for i := len(board.Scores) - 1; i >= 0 && i >= len(board.Scores)-topN; i-- {
		sb.WriteString(formatLine(board.Scores[i]))
	}
	return sb.String()
}

func (c *Commands) Extremes(ctx context.Context) string {
	ex, err := c.scores.FindExtremeSignals(ctx)
	if err != nil {
		return fmt.Sprintf("Error finding extremes: %v", err)
	}

	var sb strings.Builder
	writeGroup(&sb, "Extreme buys", ex.ExtremeBuys)
	writeGroup(&sb, "Extreme sells", ex.ExtremeSells)
	writeGroup(&sb, "High confidence setups", ex.HighConfidenceSetups)
	return strings.TrimRight(sb.String(), "\n")
}

func writeGroup(sb *strings.Builder, title string, scores []domain.Score) {
	fmt.Fprintf(sb, "%s (%d):\n", title, len(scores))
	if len(scores) == 0 {
		sb.WriteString("  none\n")
	}
	for _, s := range scores {
		sb.WriteString(formatLine(s))
	}
	sb.WriteString("\n")
}

func formatLine(s domain.Score) string {
	return fmt.Sprintf("  %s %.0f %s (conf %.0f)\n", s.Symbol, s.OverallScore, s.Bias, s.Confidence)
}

func FormatScore(s domain.Score) string {
	msg := fmt.Sprintf(
		"%s COT %s\nScore: %.1f (%s)\nConfidence: %.0f\nCommercial index: %.1f %s\nLarge trader index: %.1f %s\n4w/13w commercial change: %+d / %+d",
		s.Symbol, s.ReportDate.Format("2006-01-02"),
		s.OverallScore, s.Bias, s.Confidence,
		s.CommercialIndex, s.CommercialSignal,
		s.LargeTraderIndex, s.LargeTraderSignal,
		s.CommercialChange4, s.CommercialChange13,
	)
	if s.ExtremeLevel {
		msg += "\nEXTREME LEVEL"
	}
	return msg
}
