package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cot-sentinel/internal/domain"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	cftcDatasetPath = "/resource/jun7-fc8e.json"
	// Gold on COMEX, used as the connectivity probe.
	cftcProbeContract = "088691"
)

// CFTCProvider reads the legacy futures-only Commitments of Traders dataset
// from the CFTC Socrata endpoint.
type CFTCProvider struct {
	client  *http.Client
	baseURL string
	tracer  trace.Tracer
	limiter *RateLimiter
	breaker *gobreaker.CircuitBreaker
}

func NewCFTCProvider(baseURL string, tracer trace.Tracer) *CFTCProvider {
	return &CFTCProvider{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		tracer:  tracer,
		limiter: NewRateLimiter(5, 200*time.Millisecond),
		breaker: newBreaker("cftc"),
	}
}

// socrataValue accepts both JSON strings and bare numbers.
type socrataValue string

func (v *socrataValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = socrataValue(s)
		return nil
	}
	*v = socrataValue(data)
	return nil
}

func (v socrataValue) asInt() int64 {
	s := strings.TrimSpace(string(v))
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(f)
	}
	return 0
}

func (v socrataValue) asFloat() float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(string(v)), 64)
	if err != nil {
		return 0
	}
	return f
}

type cftcRecord struct {
	MarketName               string       `json:"market_and_exchange_names"`
	ContractCode             string       `json:"cftc_contract_market_code"`
	ReportDate               string       `json:"report_date_as_yyyy_mm_dd"`
	OpenInterest             socrataValue `json:"open_interest_all"`
	NonCommercialLong        socrataValue `json:"noncomm_positions_long_all"`
	NonCommercialShort       socrataValue `json:"noncomm_positions_short_all"`
	CommercialLong           socrataValue `json:"comm_positions_long_all"`
	CommercialShort          socrataValue `json:"comm_positions_short_all"`
	NonReportableLong        socrataValue `json:"nonrept_positions_long_all"`
	NonReportableShort       socrataValue `json:"nonrept_positions_short_all"`
	ChangeNonCommercialLong  socrataValue `json:"change_in_noncomm_long_all"`
	ChangeNonCommercialShort socrataValue `json:"change_in_noncomm_short_all"`
	ChangeCommercialLong     socrataValue `json:"change_in_comm_long_all"`
	ChangeCommercialShort    socrataValue `json:"change_in_comm_short_all"`
	ChangeNonReportableLong  socrataValue `json:"change_in_nonrept_long_all"`
	ChangeNonReportableShort socrataValue `json:"change_in_nonrept_short_all"`
	PctNonCommercialLong     socrataValue `json:"pct_of_oi_noncomm_long_all"`
	PctNonCommercialShort    socrataValue `json:"pct_of_oi_noncomm_short_all"`
	PctCommercialLong        socrataValue `json:"pct_of_oi_comm_long_all"`
	PctCommercialShort       socrataValue `json:"pct_of_oi_comm_short_all"`
}

// FetchReports returns up to limit reports for a contract, newest first.
// MarketID is left for the caller to fill in.
func (p *CFTCProvider) FetchReports(ctx context.Context, contractCode string, limit int) ([]domain.COTReport, error) {
	ctx, span := p.tracer.Start(ctx, "cftc.fetch-reports")
	defer span.End()
	span.SetAttributes(attribute.String("cftc.contract", contractCode), attribute.Int("limit", limit))

	q := url.Values{}
	q.Set("cftc_contract_market_code", contractCode)
	q.Set("$limit", strconv.Itoa(limit))
	q.Set("$order", "report_date_as_yyyy_mm_dd DESC")

	body, err := guarded(p.breaker, func() ([]byte, error) {
		return p.doRequest(ctx, p.baseURL+cftcDatasetPath+"?"+q.Encode())
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("fetch cot reports for %s: %w", contractCode, err)
	}

	records, err := decodeCFTCRecords(body)
	if err != nil {
		return nil, fmt.Errorf("parse cot reports for %s: %w", contractCode, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("cot reports for %s: %w", contractCode, ErrNoData)
	}

	reports := make([]domain.COTReport, 0, len(records))
	for _, rec := range records {
		rep, err := rec.toReport()
		if err != nil {
			log.Warn().Err(err).Str("contract", contractCode).Msg("skipping cftc record")
			continue
		}
		reports = append(reports, rep)
	}
	return reports, nil
}

// TestConnection fetches a single record of a well-known contract.
func (p *CFTCProvider) TestConnection(ctx context.Context) (*domain.COTReport, error) {
	reports, err := p.FetchReports(ctx, cftcProbeContract, 1)
	if err != nil {
		return nil, err
	}
	if len(reports) == 0 {
		return nil, ErrNoData
	}
	return &reports[0], nil
}

func decodeCFTCRecords(body []byte) ([]cftcRecord, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var records []cftcRecord
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, err
		}
		return records, nil
	}

	var wrapped struct {
		Result *struct {
			Records []cftcRecord `json:"records"`
		} `json:"result"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, err
	}
	if wrapped.Result == nil || wrapped.Result.Records == nil {
		return nil, fmt.Errorf("unexpected response structure")
	}
	return wrapped.Result.Records, nil
}

func (r cftcRecord) toReport() (domain.COTReport, error) {
	date := r.ReportDate
	if len(date) > 10 {
		date = date[:10]
	}
	reportDate, err := time.Parse("2006-01-02", date)
	if err != nil {
		return domain.COTReport{}, fmt.Errorf("report date %q: %w", r.ReportDate, err)
	}

	return domain.COTReport{
		PositionRecord: domain.PositionRecord{
			ReportDate:         reportDate,
			CommercialLong:     r.CommercialLong.asInt(),
			CommercialShort:    r.CommercialShort.asInt(),
			NonCommercialLong:  r.NonCommercialLong.asInt(),
			NonCommercialShort: r.NonCommercialShort.asInt(),
		},
		OpenInterest:             r.OpenInterest.asInt(),
		NonReportableLong:        r.NonReportableLong.asInt(),
		NonReportableShort:       r.NonReportableShort.asInt(),
		ChangeCommercialLong:     r.ChangeCommercialLong.asInt(),
		ChangeCommercialShort:    r.ChangeCommercialShort.asInt(),
		ChangeNonCommercialLong:  r.ChangeNonCommercialLong.asInt(),
		ChangeNonCommercialShort: r.ChangeNonCommercialShort.asInt(),
		ChangeNonReportableLong:  r.ChangeNonReportableLong.asInt(),
		ChangeNonReportableShort: r.ChangeNonReportableShort.asInt(),
		PctCommercialLong:        r.PctCommercialLong.asFloat(),
		PctCommercialShort:       r.PctCommercialShort.asFloat(),
		PctNonCommercialLong:     r.PctNonCommercialLong.asFloat(),
		PctNonCommercialShort:    r.PctNonCommercialShort.asFloat(),
	}, nil
}

func (p *CFTCProvider) doRequest(ctx context.Context, rawURL string) ([]byte, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "cot-sentinel/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Provider: "cftc", Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}
	return body, nil
}
