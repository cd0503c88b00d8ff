package cotscore

import "cot-sentinel/internal/domain"

const (
	extremeBuyFloor = 95
	buySetupFloor   = 80
	bullishFloor    = 60
	neutralFloor    = 40
	bearishFloor    = 21
	sellSetupFloor  = 6
)

// Classify maps an index to its signal zone. Breakpoints are checked top
// down and the first floor reached wins.
func Classify(index float64) domain.SignalZone {
	switch {
	case index >= extremeBuyFloor:
		return domain.ZoneExtremeBuy
	case index >= buySetupFloor:
		return domain.ZoneBuySetup
	case index >= bullishFloor:
		return domain.ZoneBullish
	case index >= neutralFloor:
		return domain.ZoneNeutral
	case index >= bearishFloor:
		return domain.ZoneBearish
	case index >= sellSetupFloor:
		return domain.ZoneSellSetup
	default:
		return domain.ZoneExtremeSell
	}
}
