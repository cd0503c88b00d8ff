package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"cot-sentinel/internal/cotscore"
	"cot-sentinel/internal/domain"
	"cot-sentinel/internal/service"
)

type fakeBackend struct {
	lookBack int
	weeks    int
	full     bool
	source   string
}

func (f *fakeBackend) LookBackWeeks() int { return 52 }

func (f *fakeBackend) MarketDetail(_ context.Context, id int64, lookBack int) (*service.MarketDetail, error) {
	f.lookBack = lookBack
	return &service.MarketDetail{Current: domain.Score{
		MarketID:          id,
		Symbol:            "EUR",
		CommercialSignal:  domain.ZoneNeutral,
		LargeTraderSignal: domain.ZoneNeutral,
		Bias:              domain.BiasNeutral,
	}}, nil
}

func (f *fakeBackend) FindExtremeSignals(context.Context) (*domain.ExtremeSignals, error) {
	return &domain.ExtremeSignals{}, nil
}

func (f *fakeBackend) SignalTable(context.Context) (*service.SignalTable, error) {
	return nil, errors.New("db down")
}

func (f *fakeBackend) Markets(context.Context) ([]domain.Market, error) {
	return []domain.Market{{ID: 1, Symbol: "EUR"}}, nil
}

func (f *fakeBackend) LatestScores(_ context.Context, lookBack int) ([]domain.Score, error) {
	f.lookBack = lookBack
	return []domain.Score{}, nil
}

func (f *fakeBackend) CollectAllCOT(_ context.Context, weeks int) (map[string]domain.CollectionResult, error) {
	f.source, f.weeks = "cot", weeks
	return map[string]domain.CollectionResult{"EUR": {Market: "EUR", Success: true, NewRecords: 2, Errors: []string{}}}, nil
}

func (f *fakeBackend) CollectAllPrices(_ context.Context, full bool) (map[string]domain.CollectionResult, error) {
	f.source, f.full = "prices", full
	return map[string]domain.CollectionResult{}, nil
}

func run(t *testing.T, f *fakeBackend, args ...string) (string, error) {
	t.Helper()
	orig := openBackend
	defer func() { openBackend = orig }()
	openBackend = func(context.Context) (*backend, func(), error) {
		return &backend{scores: f, markets: f, snapshots: f, collector: f, fetchWeeks: 156}, func() {}, nil
	}

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestMarkets(t *testing.T) {
	out, err := run(t, &fakeBackend{}, "markets")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var markets []domain.Market
	if err := json.Unmarshal([]byte(out), &markets); err != nil || len(markets) != 1 {
		t.Fatalf("unexpected output %q (%v)", out, err)
	}
}

func TestScoreLookBack(t *testing.T) {
	f := &fakeBackend{}
	if _, err := run(t, f, "score", "1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.lookBack != 52 {
		t.Fatalf("expected configured look-back, got %d", f.lookBack)
	}
	if _, err := run(t, f, "score", "1", "--lookback", "26"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.lookBack != 26 {
		t.Fatalf("expected look-back 26, got %d", f.lookBack)
	}
}

func TestScoreRejectsBadArgs(t *testing.T) {
	if _, err := run(t, &fakeBackend{}, "score", "abc"); err == nil {
		t.Fatal("expected error for non-numeric id")
	}
	_, err := run(t, &fakeBackend{}, "score", "1", "--lookback", "0")
	if !errors.Is(err, cotscore.ErrInvalidLookBack) {
		t.Fatalf("expected ErrInvalidLookBack, got %v", err)
	}
}

func TestCollect(t *testing.T) {
	f := &fakeBackend{}
	out, err := run(t, f, "collect", "cot")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.source != "cot" || f.weeks != 156 {
		t.Fatalf("expected cot collection with default weeks, got %s/%d", f.source, f.weeks)
	}
	if !strings.Contains(out, `"new_records": 2`) {
		t.Fatalf("unexpected output %q", out)
	}

	if _, err := run(t, f, "collect", "prices", "--full"); err != nil || f.source != "prices" || !f.full {
		t.Fatalf("expected full price collection, got %s full=%v err=%v", f.source, f.full, err)
	}
	if _, err := run(t, f, "collect", "options"); err == nil {
		t.Fatal("expected error for unknown source")
	}
}

func TestSnapshotUsesConfiguredLookBack(t *testing.T) {
	f := &fakeBackend{}
	if _, err := run(t, f, "snapshot"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.lookBack != 52 {
		t.Fatalf("expected look-back 52, got %d", f.lookBack)
	}
}

func TestCommandErrorsPropagate(t *testing.T) {
	if _, err := run(t, &fakeBackend{}, "signals"); err == nil || !strings.Contains(err.Error(), "db down") {
		t.Fatalf("expected backend error, got %v", err)
	}
}
