package cotscore

import (
	"errors"
	"fmt"

	"cot-sentinel/internal/domain"
)

const (
	DefaultLookBackWeeks = 52
	// MaxLookBackWeeks bounds caller-supplied look-backs at ten years.
	MaxLookBackWeeks = 520

	shortChangeWeeks = 4
	longChangeWeeks  = 13
	minWindowRecords = 10
	minRecordSlack   = 5
)

var ErrInvalidLookBack = errors.New("look-back must be at least one week")

// InsufficientDataError reports a history too short to score at all.
type InsufficientDataError struct {
	Required  int
	Available int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: need at least %d records, have %d", e.Required, e.Available)
}

// MinimumRecords is the smallest history ScoreHistory accepts for lookBack.
func MinimumRecords(lookBackWeeks int) int {
	return min(minWindowRecords, lookBackWeeks+minRecordSlack)
}

// FetchSize is how many records a caller should load so the oldest scored
// week still has 13 weeks of change history behind it.
func FetchSize(lookBackWeeks int) int {
	return lookBackWeeks + longChangeWeeks
}

// ScoreHistory scores every week of h that has a usable trailing window and
// returns the scores oldest first.
func ScoreHistory(h History, lookBackWeeks int) ([]domain.Score, error) {
	if lookBackWeeks < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLookBack, lookBackWeeks)
	}
	n := h.Len()
	if required := MinimumRecords(lookBackWeeks); n < required {
		return nil, &InsufficientDataError{Required: required, Available: n}
	}

	minWindow := min(minWindowRecords, lookBackWeeks)
	last := min(lookBackWeeks, n)
	scores := make([]domain.Score, 0, last)
	for i := 0; i < last; i++ {
		window := h.Window(i, lookBackWeeks)
		if window.Len() < minWindow {
			continue
		}
		scores = append(scores, scoreAt(h, window, i))
	}

	for l, r := 0, len(scores)-1; l < r; l, r = l+1, r-1 {
		scores[l], scores[r] = scores[r], scores[l]
	}
	return scores, nil
}

// ScoreRecords is ScoreHistory over records in any order.
func ScoreRecords(records []domain.PositionRecord, lookBackWeeks int) ([]domain.Score, error) {
	h, err := NewHistory(records)
	if err != nil {
		return nil, err
	}
	return ScoreHistory(h, lookBackWeeks)
}

func scoreAt(h, window History, i int) domain.Score {
	rec := h.At(i)
	commStats := ComputeStatistics(window.Values(CommercialNet))
	specStats := ComputeStatistics(window.Values(NonCommercialNet))

	ci := CommercialIndex(float64(rec.CommercialNet()), commStats)
	lti := LargeTraderIndex(float64(rec.NonCommercialNet()), specStats)
	change4 := RateOfChange(h, i, shortChangeWeeks, CommercialNet)
	change13 := RateOfChange(h, i, longChangeWeeks, CommercialNet)
	overall := CombineIndices(ci, lti, change4, change13)

	return domain.Score{
		ReportDate:         rec.ReportDate,
		CommercialLong:     rec.CommercialLong,
		CommercialShort:    rec.CommercialShort,
		CommercialNet:      rec.CommercialNet(),
		NonCommercialLong:  rec.NonCommercialLong,
		NonCommercialShort: rec.NonCommercialShort,
		NonCommercialNet:   rec.NonCommercialNet(),
		CommercialIndex:    ci,
		LargeTraderIndex:   lti,
		CommercialSignal:   Classify(ci),
		LargeTraderSignal:  Classify(lti),
		OverallScore:       overall.Score,
		Bias:               overall.Bias,
		Confidence:         overall.Confidence,
		CommercialChange4:  change4,
		CommercialChange13: change13,
		LookBackWeeks:      window.Len(),
		ExtremeLevel:       IsExtremeLevel(ci, lti),
	}
}
