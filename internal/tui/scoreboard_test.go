package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"cot-sentinel/internal/domain"

	tea "github.com/charmbracelet/bubbletea"
)

type stubSource struct {
	board *domain.Scoreboard
	err   error
	calls int
}

func (s *stubSource) ScoreAllMarkets(context.Context) (*domain.Scoreboard, error) {
	s.calls++
	return s.board, s.err
}

func sampleBoard() *domain.Scoreboard {
	date := time.Date(2024, 6, 4, 0, 0, 0, 0, time.UTC)
	return &domain.Scoreboard{
		Scores: []domain.Score{
			{Symbol: "EUR", ReportDate: date, OverallScore: 91.5, Bias: domain.BiasBullish, Confidence: 95, CommercialIndex: 97, CommercialSignal: domain.ZoneExtremeBuy, LargeTraderIndex: 88, LargeTraderSignal: domain.ZoneBuySetup, ExtremeLevel: true},
			{Symbol: "GOLD", ReportDate: date, OverallScore: 22, Bias: domain.BiasBearish, Confidence: 60, CommercialIndex: 15, CommercialSignal: domain.ZoneSellSetup, LargeTraderIndex: 30, LargeTraderSignal: domain.ZoneBearish},
		},
		Failures:    []domain.MarketFailure{{MarketID: 3, Symbol: "NEW", Error: "insufficient data"}},
		GeneratedAt: date,
	}
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestInitLoadsScoreboard(t *testing.T) {
	src := &stubSource{board: sampleBoard()}
	m := NewModel(src, "alice")

	msg := m.Init()()
	m.Update(msg)

	if src.calls != 1 {
		t.Fatalf("expected one fetch, got %d", src.calls)
	}
	if got := len(m.table.Rows()); got != 2 {
		t.Fatalf("expected 2 rows, got %d", got)
	}
	view := m.View()
	for _, want := range []string{"EUR", "EXTREME_BUY", "2 markets", "1 unscored", "alice"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected %q in view", want)
		}
	}
}

func TestRefreshKey(t *testing.T) {
	src := &stubSource{board: sampleBoard()}
	m := NewModel(src, "")
	m.Update(m.Init()())

	_, cmd := m.Update(key("r"))
	if cmd == nil || !m.loading {
		t.Fatal("expected refresh to start")
	}
	if _, again := m.Update(key("r")); again != nil {
		t.Fatal("expected refresh to be ignored while loading")
	}
	m.Update(cmd())
	if src.calls != 2 || m.loading {
		t.Fatalf("expected second fetch to finish, calls=%d loading=%v", src.calls, m.loading)
	}
}

func TestRefreshErrorKeepsRows(t *testing.T) {
	src := &stubSource{board: sampleBoard()}
	m := NewModel(src, "")
	m.Update(m.Init()())

	m.Update(scoreboardMsg{err: errors.New("db down")})
	if len(m.table.Rows()) != 2 {
		t.Fatal("expected previous rows to survive a failed refresh")
	}
	if !strings.Contains(m.View(), "refresh failed: db down") {
		t.Fatal("expected error in status line")
	}
}

func TestQuitKey(t *testing.T) {
	m := NewModel(&stubSource{}, "")
	_, cmd := m.Update(key("q"))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("expected tea.QuitMsg")
	}
}

func TestRows(t *testing.T) {
	rows := Rows(sampleBoard())
	if rows[0][0] != "1" || rows[0][1] != "EUR" || rows[0][2] != "91.5" || rows[0][10] != "*" {
		t.Fatalf("unexpected first row %v", rows[0])
	}
	if rows[1][6] != "SELL_SETUP" || rows[1][10] != "" {
		t.Fatalf("unexpected second row %v", rows[1])
	}
	if Rows(nil) != nil {
		t.Fatal("expected nil rows for nil board")
	}
}
