package domain

import (
	"errors"
	"fmt"
	"time"
)

var ErrUnknownSignalZone = errors.New("unknown signal zone")

// PositionRecord is one weekly positioning snapshot for a market.
type PositionRecord struct {
	ReportDate         time.Time `json:"report_date"`
	CommercialLong     int64     `json:"commercial_long"`
	CommercialShort    int64     `json:"commercial_short"`
	NonCommercialLong  int64     `json:"noncommercial_long"`
	NonCommercialShort int64     `json:"noncommercial_short"`
}

func (r PositionRecord) CommercialNet() int64 {
	return r.CommercialLong - r.CommercialShort
}

func (r PositionRecord) NonCommercialNet() int64 {
	return r.NonCommercialLong - r.NonCommercialShort
}

// COTReport is the full stored row for one market and report date.
type COTReport struct {
	PositionRecord
	ID                       int64   `json:"id,omitempty"`
	MarketID                 int64   `json:"market_id"`
	OpenInterest             int64   `json:"open_interest_all"`
	NonReportableLong        int64   `json:"nonreportable_long"`
	NonReportableShort       int64   `json:"nonreportable_short"`
	ChangeCommercialLong     int64   `json:"change_commercial_long"`
	ChangeCommercialShort    int64   `json:"change_commercial_short"`
	ChangeNonCommercialLong  int64   `json:"change_noncommercial_long"`
	ChangeNonCommercialShort int64   `json:"change_noncommercial_short"`
	ChangeNonReportableLong  int64   `json:"change_nonreportable_long"`
	ChangeNonReportableShort int64   `json:"change_nonreportable_short"`
	PctCommercialLong        float64 `json:"pct_commercial_long"`
	PctCommercialShort       float64 `json:"pct_commercial_short"`
	PctNonCommercialLong     float64 `json:"pct_noncommercial_long"`
	PctNonCommercialShort    float64 `json:"pct_noncommercial_short"`
}

// SignalZone is one of the seven ordered classifications of a 0-100 index.
// The zero value is not a zone.
type SignalZone int

const (
	ZoneExtremeSell SignalZone = iota + 1
	ZoneSellSetup
	ZoneBearish
	ZoneNeutral
	ZoneBullish
	ZoneBuySetup
	ZoneExtremeBuy
)

var zoneNames = map[SignalZone]string{
	ZoneExtremeSell: "EXTREME_SELL",
	ZoneSellSetup:   "SELL_SETUP",
	ZoneBearish:     "BEARISH",
	ZoneNeutral:     "NEUTRAL",
	ZoneBullish:     "BULLISH",
	ZoneBuySetup:    "BUY_SETUP",
	ZoneExtremeBuy:  "EXTREME_BUY",
}

func ParseSignalZone(name string) (SignalZone, error) {
	for z, n := range zoneNames {
		if n == name {
			return z, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownSignalZone, name)
}

func (z SignalZone) IsValid() bool {
	_, ok := zoneNames[z]
	return ok
}

func (z SignalZone) String() string {
	if n, ok := zoneNames[z]; ok {
		return n
	}
	return fmt.Sprintf("SignalZone(%d)", int(z))
}

func (z SignalZone) MarshalText() ([]byte, error) {
	n, ok := zoneNames[z]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSignalZone, int(z))
	}
	return []byte(n), nil
}

func (z *SignalZone) UnmarshalText(text []byte) error {
	parsed, err := ParseSignalZone(string(text))
	if err != nil {
		return err
	}
	*z = parsed
	return nil
}

type Bias string

const (
	BiasBullish Bias = "BULLISH"
	BiasBearish Bias = "BEARISH"
	BiasNeutral Bias = "NEUTRAL"
)

// Score is the per-market, per-report-date sentiment reading.
type Score struct {
	MarketID           int64      `json:"market_id"`
	Symbol             string     `json:"symbol"`
	ReportDate         time.Time  `json:"report_date"`
	CommercialLong     int64      `json:"commercial_long"`
	CommercialShort    int64      `json:"commercial_short"`
	CommercialNet      int64      `json:"commercial_net"`
	NonCommercialLong  int64      `json:"noncommercial_long"`
	NonCommercialShort int64      `json:"noncommercial_short"`
	NonCommercialNet   int64      `json:"noncommercial_net"`
	CommercialIndex    float64    `json:"commercial_index"`
	LargeTraderIndex   float64    `json:"large_trader_index"`
	CommercialSignal   SignalZone `json:"commercial_signal"`
	LargeTraderSignal  SignalZone `json:"large_trader_signal"`
	OverallScore       float64    `json:"overall_score"`
	Bias               Bias       `json:"bias"`
	Confidence         float64    `json:"confidence"`
	CommercialChange4  int64      `json:"commercial_change_4_week"`
	CommercialChange13 int64      `json:"commercial_change_13_week"`
	LookBackWeeks      int        `json:"look_back_weeks"`
	ExtremeLevel       bool       `json:"extreme_level"`
}

type MarketFailure struct {
	MarketID int64  `json:"market_id"`
	Symbol   string `json:"symbol"`
	Error    string `json:"error"`
}

// Scoreboard holds the latest score of every market that could be scored,
// ordered by overall score descending.
type Scoreboard struct {
	Scores      []Score         `json:"scores"`
	Failures    []MarketFailure `json:"failures,omitempty"`
	GeneratedAt time.Time       `json:"generated_at"`
}

type ExtremeSignals struct {
	ExtremeBuys          []Score `json:"extreme_buys"`
	ExtremeSells         []Score `json:"extreme_sells"`
	HighConfidenceSetups []Score `json:"high_confidence_setups"`
}

type DashboardSummary struct {
	TotalMarkets        int `json:"total_markets"`
	BullishCount        int `json:"bullish_count"`
	BearishCount        int `json:"bearish_count"`
	NeutralCount        int `json:"neutral_count"`
	ExtremeCount        int `json:"extreme_count"`
	HighConfidenceCount int `json:"high_confidence_count"`
}

type MarketAnalysis struct {
	TotalWeeks        int `json:"total_weeks"`
	ExtremeReadings   int `json:"extreme_readings"`
	BullishExtremes   int `json:"bullish_extremes"`
	BearishExtremes   int `json:"bearish_extremes"`
	AverageScore      int `json:"average_score"`
	CurrentPercentile int `json:"current_percentile"`
}

type TradeAction string

const (
	ActionBuy     TradeAction = "BUY"
	ActionSell    TradeAction = "SELL"
	ActionNeutral TradeAction = "NEUTRAL"
)

type SetupStrength string

const (
	SetupExtreme SetupStrength = "EXTREME"
	SetupStrong  SetupStrength = "STRONG"
	SetupWeak    SetupStrength = "WEAK"
)

type SignalRow struct {
	Market           string        `json:"market"`
	CommercialIndex  int           `json:"commercial_index"`
	LargeTraderIndex int           `json:"large_trader_index"`
	Action           TradeAction   `json:"signal"`
	Confidence       int           `json:"confidence"`
	Setup            SetupStrength `json:"setup"`
}

type SignalTableStats struct {
	StrongBuySetups  int `json:"strong_buy_setups"`
	StrongSellSetups int `json:"strong_sell_setups"`
	ExtremeSetups    int `json:"extreme_setups"`
}
