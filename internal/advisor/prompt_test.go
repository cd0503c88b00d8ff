package advisor

import (
	"strings"
	"testing"

	"cot-sentinel/internal/domain"
)

func TestSystemPromptExplainsInversion(t *testing.T) {
	if !strings.Contains(systemPrompt, "inverted") {
		t.Fatal("expected large trader inversion to be explained")
	}
	if !strings.Contains(systemPrompt, "never invent") {
		t.Fatal("expected no-fabrication rule in prompt")
	}
}

func TestFormatScoreContext(t *testing.T) {
	market, score, analysis := sampleScore()
	out := FormatScoreContext(market, score, analysis)

	for _, want := range []string{
		"Market: EUR (Euro FX, Currency)",
		"Report date: 2024-06-04, look-back 52 weeks",
		"Commercial index: 96.0 (EXTREME_BUY)",
		"Large trader index: 92.0 (BUY_SETUP)",
		"bias BULLISH, confidence 95",
		"At an extreme level.",
		"current percentile 98",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in context:\n%s", want, out)
		}
	}
}

func TestFormatScoreContextWithoutHistory(t *testing.T) {
	market, score, _ := sampleScore()
	score.ExtremeLevel = false
	out := FormatScoreContext(market, score, domain.MarketAnalysis{})

	if strings.Contains(out, "History over") {
		t.Fatalf("expected no history line, got:\n%s", out)
	}
	if strings.Contains(out, "extreme level") {
		t.Fatalf("expected no extreme line, got:\n%s", out)
	}
}
