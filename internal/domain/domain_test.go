package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestPositionRecordNets(t *testing.T) {
	r := PositionRecord{CommercialLong: 120, CommercialShort: 200, NonCommercialLong: 90, NonCommercialShort: 10}
	if got := r.CommercialNet(); got != -80 {
		t.Fatalf("expected commercial net -80, got %d", got)
	}
	if got := r.NonCommercialNet(); got != 80 {
		t.Fatalf("expected non-commercial net 80, got %d", got)
	}
}

func TestParseSignalZoneAcceptsAllSevenNames(t *testing.T) {
	names := []string{"EXTREME_SELL", "SELL_SETUP", "BEARISH", "NEUTRAL", "BULLISH", "BUY_SETUP", "EXTREME_BUY"}
	for i, name := range names {
		z, err := ParseSignalZone(name)
		if err != nil {
			t.Fatalf("parse %s: %v", name, err)
		}
		if int(z) != i+1 {
			t.Fatalf("expected %s at ordinal %d, got %d", name, i+1, z)
		}
		if z.String() != name {
			t.Fatalf("expected round trip name %s, got %s", name, z.String())
		}
	}
}

func TestParseSignalZoneRejectsUnknown(t *testing.T) {
	for _, name := range []string{"", "neutral", "STRONG_BUY", "BUY"} {
		if _, err := ParseSignalZone(name); !errors.Is(err, ErrUnknownSignalZone) {
			t.Fatalf("expected ErrUnknownSignalZone for %q, got %v", name, err)
		}
	}
}

func TestSignalZoneJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		Z SignalZone `json:"z"`
	}{Z: ZoneBuySetup})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"z":"BUY_SETUP"}` {
		t.Fatalf("unexpected json %s", b)
	}

	var out struct {
		Z SignalZone `json:"z"`
	}
	if err := json.Unmarshal([]byte(`{"z":"MOON"}`), &out); err == nil {
		t.Fatal("expected unknown zone to be rejected")
	}

	var zero SignalZone
	if zero.IsValid() {
		t.Fatal("zero value must not be a valid zone")
	}
	if _, err := zero.MarshalText(); !errors.Is(err, ErrUnknownSignalZone) {
		t.Fatalf("expected marshal of zero zone to fail, got %v", err)
	}
}

func TestMarketHasPrices(t *testing.T) {
	cases := []struct {
		name   string
		market Market
		want   bool
	}{
		{"fx", Market{PriceKind: PriceKindFX, PriceFrom: "EUR", PriceTo: "USD"}, true},
		{"fx missing leg", Market{PriceKind: PriceKindFX, PriceFrom: "EUR"}, false},
		{"equity", Market{PriceKind: PriceKindEquity, PriceSymbol: "GLD"}, true},
		{"none", Market{}, false},
	}
	for _, tc := range cases {
		if got := tc.market.HasPrices(); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}
