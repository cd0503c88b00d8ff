package ta

import (
	"math"
	"testing"
)

func TestMeanStdPopulation(t *testing.T) {
	mean, std := MeanStd([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if mean != 5 {
		t.Fatalf("expected mean 5, got %v", mean)
	}
	if std != 2 {
		t.Fatalf("expected population std 2, got %v", std)
	}
}

func TestMeanStdEmpty(t *testing.T) {
	mean, std := MeanStd(nil)
	if mean != 0 || std != 0 {
		t.Fatalf("expected zeros, got %v %v", mean, std)
	}
}

func TestMinMax(t *testing.T) {
	lo, hi := MinMax([]float64{3, -7, 12, 0})
	if lo != -7 || hi != 12 {
		t.Fatalf("expected -7..12, got %v..%v", lo, hi)
	}
}

func TestPercentileRank(t *testing.T) {
	values := []float64{50, 10, 40, 30, 20}
	if got := PercentileRank(40, values); got != 60 {
		t.Fatalf("expected 60, got %d", got)
	}
	if got := PercentileRank(10, values); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if values[0] != 50 {
		t.Fatal("input slice must not be reordered")
	}
	if got := PercentileRank(math.Inf(1), values); got != 100 {
		t.Fatalf("expected 100 past the end, got %d", got)
	}
}
