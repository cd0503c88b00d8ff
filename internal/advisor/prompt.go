package advisor

import (
	"fmt"
	"strings"

	"cot-sentinel/internal/domain"
)

const systemPrompt = `You explain Commitments of Traders positioning using Larry Williams' method. You interpret the numbers you are given and never invent new ones.

Reading the indices:
- The commercial index ranks commercial net positioning within its look-back window. Readings near 100 mean commercials are unusually long, which is bullish.
- The large trader index is inverted: readings near 100 mean speculators are unusually short, which is also bullish.
- Extreme readings (90 and above or 10 and below) matter most. Middle readings are noise.

Rules:
- Reference the index values, signal zones and confidence you are given.
- Say when the two indices disagree.
- Mention how the current reading compares with the market's own history.
- Keep it to one short paragraph. You are talking via Telegram and a JSON API.
- Do not add financial advice disclaimers.`

// FormatScoreContext renders one market's reading as the user turn of the
// narrative prompt.
func FormatScoreContext(market domain.Market, s domain.Score, a domain.MarketAnalysis) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Market: %s (%s, %s)\n", market.Symbol, market.Name, market.Category)
	fmt.Fprintf(&sb, "Report date: %s, look-back %d weeks\n", s.ReportDate.Format("2006-01-02"), s.LookBackWeeks)
	fmt.Fprintf(&sb, "Commercial index: %.1f (%s), net %d\n", s.CommercialIndex, s.CommercialSignal, s.CommercialNet)
	fmt.Fprintf(&sb, "Large trader index: %.1f (%s), net %d\n", s.LargeTraderIndex, s.LargeTraderSignal, s.NonCommercialNet)
	fmt.Fprintf(&sb, "Commercial net change: 4w %+d, 13w %+d\n", s.CommercialChange4, s.CommercialChange13)
	fmt.Fprintf(&sb, "Overall score: %.1f, bias %s, confidence %.0f\n", s.OverallScore, s.Bias, s.Confidence)
	if s.ExtremeLevel {
		sb.WriteString("At an extreme level.\n")
	}

	if a.TotalWeeks > 0 {
		fmt.Fprintf(&sb, "\nHistory over %d scored weeks: average score %d, current percentile %d, %d extreme readings (%d bullish, %d bearish)\n",
			a.TotalWeeks, a.AverageScore, a.CurrentPercentile,
			a.ExtremeReadings, a.BullishExtremes, a.BearishExtremes)
	}
	return sb.String()
}
