package domain

import "time"

type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

type CollectionResult struct {
	RunID          string     `json:"run_id"`
	Market         string     `json:"market"`
	Success        bool       `json:"success"`
	Message        string     `json:"message"`
	NewRecords     int        `json:"new_records"`
	SkippedRecords int        `json:"skipped_records"`
	Errors         []string   `json:"errors"`
	DateRange      *DateRange `json:"date_range,omitempty"`
}

type DataStats struct {
	TotalRecords        int        `json:"total_records"`
	LatestDate          *time.Time `json:"latest_date"`
	OldestDate          *time.Time `json:"oldest_date"`
	MarketsWithData     int        `json:"markets_with_data"`
	AvgRecordsPerMarket int        `json:"avg_records_per_market"`
}

type MarketCoverage struct {
	MarketID     int64     `json:"market_id"`
	Symbol       string    `json:"symbol"`
	Name         string    `json:"name"`
	RecordCount  int       `json:"record_count"`
	LatestDate   time.Time `json:"latest_date"`
	OldestDate   time.Time `json:"oldest_date"`
	WeeksCovered int       `json:"weeks_covered"`
	CoveragePct  int       `json:"coverage_pct"`
}
