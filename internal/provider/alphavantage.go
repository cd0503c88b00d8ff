package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"cot-sentinel/internal/domain"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	seriesFXDaily     = "Time Series FX (Daily)"
	seriesEquityDaily = "Time Series (Daily)"
)

// AlphaVantageProvider fetches daily bars. Currency markets use FX_DAILY,
// commodities use an ETF proxy through TIME_SERIES_DAILY.
type AlphaVantageProvider struct {
	client  *http.Client
	baseURL string
	apiKey  string
	tracer  trace.Tracer
	limiter *RateLimiter
	breaker *gobreaker.CircuitBreaker
}

func NewAlphaVantageProvider(baseURL, apiKey string, reqsPerMin int, tracer trace.Tracer) *AlphaVantageProvider {
	return &AlphaVantageProvider{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		tracer:  tracer,
		limiter: PerMinute(reqsPerMin),
		breaker: newBreaker("alphavantage"),
	}
}

func (p *AlphaVantageProvider) Enabled() bool {
	return p.apiKey != ""
}

// FetchDaily picks the series matching the market's price kind. Bars come
// back newest first; full requests the whole history instead of the last
// 100 sessions.
func (p *AlphaVantageProvider) FetchDaily(ctx context.Context, m domain.Market, full bool) ([]domain.PriceBar, error) {
	switch m.PriceKind {
	case domain.PriceKindFX:
		return p.FetchForexDaily(ctx, m.PriceFrom, m.PriceTo, full)
	case domain.PriceKindEquity:
		return p.FetchEquityDaily(ctx, m.PriceSymbol, full)
	default:
		return nil, fmt.Errorf("market %s has no price source", m.Symbol)
	}
}

func (p *AlphaVantageProvider) FetchForexDaily(ctx context.Context, from, to string, full bool) ([]domain.PriceBar, error) {
	ctx, span := p.tracer.Start(ctx, "alphavantage.fetch-fx-daily")
	defer span.End()
	span.SetAttributes(attribute.String("fx.pair", from+"/"+to))

	bars, err := p.fetchSeries(ctx, url.Values{
		"function":    {"FX_DAILY"},
		"from_symbol": {from},
		"to_symbol":   {to},
		"outputsize":  {outputSize(full)},
	}, seriesFXDaily)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("fetch fx %s/%s: %w", from, to, err)
	}
	return bars, nil
}

func (p *AlphaVantageProvider) FetchEquityDaily(ctx context.Context, symbol string, full bool) ([]domain.PriceBar, error) {
	ctx, span := p.tracer.Start(ctx, "alphavantage.fetch-equity-daily")
	defer span.End()
	span.SetAttributes(attribute.String("symbol", symbol))

	bars, err := p.fetchSeries(ctx, url.Values{
		"function":   {"TIME_SERIES_DAILY"},
		"symbol":     {symbol},
		"outputsize": {outputSize(full)},
	}, seriesEquityDaily)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("fetch series %s: %w", symbol, err)
	}
	return bars, nil
}

func outputSize(full bool) string {
	if full {
		return "full"
	}
	return "compact"
}

func (p *AlphaVantageProvider) fetchSeries(ctx context.Context, params url.Values, seriesKey string) ([]domain.PriceBar, error) {
	if p.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	params.Set("apikey", p.apiKey)

	return guarded(p.breaker, func() ([]domain.PriceBar, error) {
		body, err := p.doRequest(ctx, p.baseURL+"/query?"+params.Encode())
		if err != nil {
			return nil, err
		}
		return parseDailySeries(body, seriesKey)
	})
}

type dailyValues struct {
	Open   string `json:"1. open"`
	High   string `json:"2. high"`
	Low    string `json:"3. low"`
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}

func parseDailySeries(body []byte, seriesKey string) ([]domain.PriceBar, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if msg, ok := stringField(raw, "Error Message"); ok {
		return nil, &APIError{Provider: "alphavantage", Message: msg}
	}
	for _, key := range []string{"Note", "Information"} {
		if msg, ok := stringField(raw, key); ok {
			return nil, fmt.Errorf("%w: %s", ErrRateLimited, msg)
		}
	}

	seriesRaw, ok := raw[seriesKey]
	if !ok {
		return nil, fmt.Errorf("response missing %q", seriesKey)
	}
	var series map[string]dailyValues
	if err := json.Unmarshal(seriesRaw, &series); err != nil {
		return nil, fmt.Errorf("parse %q: %w", seriesKey, err)
	}
	if len(series) == 0 {
		return nil, ErrNoData
	}

	bars := make([]domain.PriceBar, 0, len(series))
	for day, v := range series {
		date, err := time.Parse("2006-01-02", day)
		if err != nil {
			continue
		}
		bar := domain.PriceBar{
			Date:      date,
			Timeframe: domain.TimeframeDaily,
			Open:      parsePrice(v.Open),
			High:      parsePrice(v.High),
			Low:       parsePrice(v.Low),
			Close:     parsePrice(v.Close),
		}
		if v.Volume != "" {
			if vol, err := strconv.ParseFloat(v.Volume, 64); err == nil {
				bar.Volume = int64(vol)
			}
		}
		bars = append(bars, bar)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.After(bars[j].Date) })
	return bars, nil
}

func stringField(raw map[string]json.RawMessage, key string) (string, bool) {
	v, ok := raw[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return string(v), true
	}
	return s, true
}

func parsePrice(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}

func (p *AlphaVantageProvider) doRequest(ctx context.Context, rawURL string) ([]byte, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		// url.Error carries the query string, which holds the api key.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			return nil, fmt.Errorf("%s alphavantage: %w", uerr.Op, uerr.Err)
		}
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Provider: "alphavantage", Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}
	return body, nil
}
