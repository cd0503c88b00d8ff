package cotscore

import (
	"errors"
	"fmt"
	"sort"

	"cot-sentinel/internal/domain"
)

var ErrDuplicateReportDate = errors.New("duplicate report date")

// Field selects a derived net-position series from a record.
type Field int

const (
	CommercialNet Field = iota
	NonCommercialNet
)

func (f Field) valueOf(r domain.PositionRecord) int64 {
	if f == NonCommercialNet {
		return r.NonCommercialNet()
	}
	return r.CommercialNet()
}

// History is a market's position records ordered newest first.
type History struct {
	records []domain.PositionRecord
}

// NewHistory copies records and orders them newest first. Two records with
// the same report date are rejected.
func NewHistory(records []domain.PositionRecord) (History, error) {
	out := make([]domain.PositionRecord, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ReportDate.After(out[j].ReportDate)
	})
	for i := 1; i < len(out); i++ {
		if out[i].ReportDate.Equal(out[i-1].ReportDate) {
			return History{}, fmt.Errorf("%w: %s", ErrDuplicateReportDate, out[i].ReportDate.Format("2006-01-02"))
		}
	}
	return History{records: out}, nil
}

func (h History) Len() int {
	return len(h.records)
}

func (h History) At(i int) domain.PositionRecord {
	return h.records[i]
}

// Window returns the records [start, min(start+length, Len())). The window
// only ever extends backward in time from start.
func (h History) Window(start, length int) History {
	if start < 0 || start >= len(h.records) || length <= 0 {
		return History{}
	}
	end := start + length
	if end > len(h.records) {
		end = len(h.records)
	}
	return History{records: h.records[start:end]}
}

// Values returns the selected net series in history order.
func (h History) Values(f Field) []float64 {
	out := make([]float64, len(h.records))
	for i, r := range h.records {
		out[i] = float64(f.valueOf(r))
	}
	return out
}
