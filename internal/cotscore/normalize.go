package cotscore

import (
	"math"

	"cot-sentinel/internal/ta"
)

// Statistics summarises one window of net-position values.
type Statistics struct {
	Min    float64
	Max    float64
	Mean   float64
	StdDev float64
}

func ComputeStatistics(values []float64) Statistics {
	lo, hi := ta.MinMax(values)
	mean, std := ta.MeanStd(values)
	return Statistics{Min: lo, Max: hi, Mean: mean, StdDev: std}
}

// Normalize rescales value into 0..100 relative to [min, max]. A flat window
// yields the midpoint 50.
func Normalize(value, min, max float64) float64 {
	if max == min {
		return 50
	}
	return clamp((value-min)/(max-min)*100, 0, 100)
}

// CommercialIndex positions the commercial net within its window.
func CommercialIndex(net float64, s Statistics) float64 {
	return Normalize(net, s.Min, s.Max)
}

// LargeTraderIndex is the inverted position of the speculative net: heavy
// speculative longs read low.
func LargeTraderIndex(net float64, s Statistics) float64 {
	return 100 - Normalize(net, s.Min, s.Max)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
