package domain

import "time"

type MarketCategory string

const (
	CategoryCurrency  MarketCategory = "Currency"
	CategoryCommodity MarketCategory = "Commodity"
)

// PriceKind selects the upstream price series used for a market.
type PriceKind string

const (
	PriceKindFX     PriceKind = "fx"
	PriceKindEquity PriceKind = "equity"
)

type Market struct {
	ID          int64          `json:"id"`
	Symbol      string         `json:"symbol"`
	Name        string         `json:"name"`
	Category    MarketCategory `json:"category"`
	CFTCCode    string         `json:"cftc_contract_market_code,omitempty"`
	PriceKind   PriceKind      `json:"price_kind,omitempty"`
	PriceSymbol string         `json:"price_symbol,omitempty"`
	PriceFrom   string         `json:"price_from,omitempty"`
	PriceTo     string         `json:"price_to,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

func (m Market) HasCOT() bool {
	return m.CFTCCode != ""
}

func (m Market) HasPrices() bool {
	switch m.PriceKind {
	case PriceKindFX:
		return m.PriceFrom != "" && m.PriceTo != ""
	case PriceKindEquity:
		return m.PriceSymbol != ""
	default:
		return false
	}
}
