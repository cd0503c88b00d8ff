package cotscore

import (
	"math"

	"cot-sentinel/internal/domain"
)

const (
	commercialWeight  = 0.7
	largeTraderWeight = 0.3
	momentumStep      = 5

	bullishBiasFloor   = 70
	bearishBiasCeiling = 30

	confidenceBase         = 50
	confidenceCap          = 95
	commercialExtremeBonus = 20
	largeTraderExtreme     = 10
	agreementBonus         = 15
	agreementSpread        = 30
	deepExtremeBonus       = 10

	extremeHigh     = 80
	extremeLow      = 20
	deepExtremeHigh = 90
	deepExtremeLow  = 10
)

// Overall is the combined reading of both indices.
type Overall struct {
	Score      float64
	Bias       domain.Bias
	Confidence float64
}

// RateOfChange returns the change of field over k weeks back from position
// i. It is 0 when the history does not reach i+k.
func RateOfChange(h History, i, k int, field Field) int64 {
	if i < 0 || i+k >= h.Len() {
		return 0
	}
	return field.valueOf(h.At(i)) - field.valueOf(h.At(i+k))
}

// MomentumAdjustment is +5 when both changes rise, -5 when both fall, else 0.
func MomentumAdjustment(change4, change13 int64) float64 {
	switch {
	case change4 > 0 && change13 > 0:
		return momentumStep
	case change4 < 0 && change13 < 0:
		return -momentumStep
	default:
		return 0
	}
}

func BiasFor(score float64) domain.Bias {
	switch {
	case score >= bullishBiasFloor:
		return domain.BiasBullish
	case score <= bearishBiasCeiling:
		return domain.BiasBearish
	default:
		return domain.BiasNeutral
	}
}

// Confidence scores how much the two indices corroborate each other. The
// commercial extreme bonus and the deeper commercial extreme bonus stack.
func Confidence(commercialIndex, largeTraderIndex float64) float64 {
	c := float64(confidenceBase)
	if isExtreme(commercialIndex, extremeHigh, extremeLow) {
		c += commercialExtremeBonus
	}
	if isExtreme(largeTraderIndex, extremeHigh, extremeLow) {
		c += largeTraderExtreme
	}
	if math.Abs(commercialIndex-largeTraderIndex) <= agreementSpread {
		c += agreementBonus
	}
	if isExtreme(commercialIndex, deepExtremeHigh, deepExtremeLow) {
		c += deepExtremeBonus
	}
	return math.Min(c, confidenceCap)
}

func CombineIndices(commercialIndex, largeTraderIndex float64, change4, change13 int64) Overall {
	base := commercialWeight*commercialIndex + largeTraderWeight*largeTraderIndex
	score := clamp(base+MomentumAdjustment(change4, change13), 0, 100)
	return Overall{
		Score:      score,
		Bias:       BiasFor(score),
		Confidence: Confidence(commercialIndex, largeTraderIndex),
	}
}

// IsExtremeLevel reports whether either index sits at or beyond 90/10.
func IsExtremeLevel(commercialIndex, largeTraderIndex float64) bool {
	return isExtreme(commercialIndex, deepExtremeHigh, deepExtremeLow) ||
		isExtreme(largeTraderIndex, deepExtremeHigh, deepExtremeLow)
}

func isExtreme(v, high, low float64) bool {
	return v >= high || v <= low
}
