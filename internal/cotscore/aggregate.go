package cotscore

import (
	"math"
	"sort"

	"cot-sentinel/internal/domain"
	"cot-sentinel/internal/ta"
)

// Cross-market thresholds. They are independent of the 90/10 extreme level.
const (
	extremeBuyIndex        = 90
	extremeBuyOverall      = 85
	extremeSellIndex       = 10
	extremeSellOverall     = 15
	highConfidenceFloor    = 80
	strongSetupConfidence  = 70
	actionBuyIndexFloor    = 80
	actionSellIndexCeiling = 20
)

// RankByOverallScore returns a copy of scores sorted by overall score,
// highest first. Ties keep their input order.
func RankByOverallScore(scores []domain.Score) []domain.Score {
	ranked := make([]domain.Score, len(scores))
	copy(ranked, scores)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].OverallScore > ranked[j].OverallScore
	})
	return ranked
}

func FindExtremes(scores []domain.Score) domain.ExtremeSignals {
	out := domain.ExtremeSignals{
		ExtremeBuys:          []domain.Score{},
		ExtremeSells:         []domain.Score{},
		HighConfidenceSetups: []domain.Score{},
	}
	for _, s := range scores {
		if s.CommercialIndex >= extremeBuyIndex || s.OverallScore >= extremeBuyOverall {
			out.ExtremeBuys = append(out.ExtremeBuys, s)
		}
		if s.CommercialIndex <= extremeSellIndex || s.OverallScore <= extremeSellOverall {
			out.ExtremeSells = append(out.ExtremeSells, s)
		}
		if s.Confidence >= highConfidenceFloor && s.ExtremeLevel {
			out.HighConfidenceSetups = append(out.HighConfidenceSetups, s)
		}
	}
	return out
}

func Summarize(scores []domain.Score) domain.DashboardSummary {
	sum := domain.DashboardSummary{TotalMarkets: len(scores)}
	for _, s := range scores {
		switch s.Bias {
		case domain.BiasBullish:
			sum.BullishCount++
		case domain.BiasBearish:
			sum.BearishCount++
		default:
			sum.NeutralCount++
		}
		if s.ExtremeLevel {
			sum.ExtremeCount++
		}
		if s.Confidence >= highConfidenceFloor {
			sum.HighConfidenceCount++
		}
	}
	return sum
}

// AnalyzeMarket describes one market's scored history. scores must be
// oldest first; the last entry is the current reading.
func AnalyzeMarket(scores []domain.Score) domain.MarketAnalysis {
	a := domain.MarketAnalysis{TotalWeeks: len(scores)}
	if len(scores) == 0 {
		return a
	}
	overall := make([]float64, len(scores))
	var total float64
	for i, s := range scores {
		overall[i] = s.OverallScore
		total += s.OverallScore
		if !s.ExtremeLevel {
			continue
		}
		a.ExtremeReadings++
		switch s.Bias {
		case domain.BiasBullish:
			a.BullishExtremes++
		case domain.BiasBearish:
			a.BearishExtremes++
		}
	}
	a.AverageScore = int(math.Round(total / float64(len(scores))))
	a.CurrentPercentile = ta.PercentileRank(scores[len(scores)-1].OverallScore, overall)
	return a
}

func ActionFor(s domain.Score) domain.TradeAction {
	switch {
	case s.CommercialIndex >= actionBuyIndexFloor:
		return domain.ActionBuy
	case s.CommercialIndex <= actionSellIndexCeiling:
		return domain.ActionSell
	default:
		return domain.ActionNeutral
	}
}

func SetupFor(s domain.Score) domain.SetupStrength {
	switch {
	case s.ExtremeLevel:
		return domain.SetupExtreme
	case s.Confidence >= strongSetupConfidence:
		return domain.SetupStrong
	default:
		return domain.SetupWeak
	}
}

func BuildSignalTable(scores []domain.Score) []domain.SignalRow {
	rows := make([]domain.SignalRow, 0, len(scores))
	for _, s := range scores {
		rows = append(rows, domain.SignalRow{
			Market:           s.Symbol,
			CommercialIndex:  int(math.Round(s.CommercialIndex)),
			LargeTraderIndex: int(math.Round(s.LargeTraderIndex)),
			Action:           ActionFor(s),
			Confidence:       int(math.Round(s.Confidence)),
			Setup:            SetupFor(s),
		})
	}
	return rows
}

// SetupOpportunities keeps the rows whose setup is EXTREME or STRONG.
func SetupOpportunities(rows []domain.SignalRow) []domain.SignalRow {
	out := []domain.SignalRow{}
	for _, r := range rows {
		if r.Setup != domain.SetupWeak {
			out = append(out, r)
		}
	}
	return out
}

func SignalStats(rows []domain.SignalRow) domain.SignalTableStats {
	var st domain.SignalTableStats
	for _, r := range rows {
		if r.Setup == domain.SetupExtreme {
			st.ExtremeSetups++
		}
		if r.Setup == domain.SetupWeak {
			continue
		}
		switch r.Action {
		case domain.ActionBuy:
			st.StrongBuySetups++
		case domain.ActionSell:
			st.StrongSellSetups++
		}
	}
	return st
}
