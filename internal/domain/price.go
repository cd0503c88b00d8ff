package domain

import "time"

const TimeframeDaily = "daily"

type PriceBar struct {
	MarketID  int64     `json:"market_id"`
	Date      time.Time `json:"date"`
	Timeframe string    `json:"timeframe"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
}

// CombinedRow pairs a COT report with the closest daily close on or around
// its report date. Price is nil when no bar falls inside the match window.
type CombinedRow struct {
	Report  COTReport `json:"report"`
	Price   *PriceBar `json:"price,omitempty"`
	GapDays int       `json:"gap_days,omitempty"`
}
