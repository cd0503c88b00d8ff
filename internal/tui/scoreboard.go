// Package tui renders the COT scoreboard as a terminal table for SSH
// sessions.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cot-sentinel/internal/domain"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const refreshTimeout = 30 * time.Second

type ScoreboardSource interface {
	ScoreAllMarkets(ctx context.Context) (*domain.Scoreboard, error)
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	bullishStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	bearishStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

var columns = []table.Column{
	{Title: "#", Width: 3},
	{Title: "Market", Width: 8},
	{Title: "Score", Width: 6},
	{Title: "Bias", Width: 8},
	{Title: "Conf", Width: 5},
	{Title: "Comm", Width: 5},
	{Title: "Comm zone", Width: 12},
	{Title: "LT", Width: 5},
	{Title: "LT zone", Width: 12},
	{Title: "Report", Width: 10},
	{Title: "Ext", Width: 3},
}

type scoreboardMsg struct {
	board *domain.Scoreboard
	err   error
}

type Model struct {
	source  ScoreboardSource
	user    string
	table   table.Model
	board   *domain.Scoreboard
	err     error
	loading bool
}

func NewModel(source ScoreboardSource, user string) *Model {
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(15),
		table.WithWidth(100),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Bold(true).BorderStyle(lipgloss.NormalBorder()).BorderBottom(true)
	styles.Selected = styles.Selected.Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57"))
	t.SetStyles(styles)
	return &Model{source: source, user: user, table: t, loading: true}
}

// SetSize fits the table to the terminal, keeping room for the header and
// footer lines.
func (m *Model) SetSize(width, height int) {
	if width > 0 {
		m.table.SetWidth(width)
	}
	if height > 6 {
		m.table.SetHeight(height - 6)
	}
}

func (m *Model) Init() tea.Cmd {
	return m.refresh()
}

func (m *Model) refresh() tea.Cmd {
	source := m.source
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		board, err := source.ScoreAllMarkets(ctx)
		return scoreboardMsg{board: board, err: err}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			if m.loading {
				return m, nil
			}
			m.loading = true
			return m, m.refresh()
		}
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil
	case scoreboardMsg:
		m.loading = false
		m.err = msg.err
		if msg.err == nil {
			m.board = msg.board
			m.table.SetRows(Rows(msg.board))
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *Model) View() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("COT Sentinel scoreboard"))
	if m.user != "" {
		sb.WriteString(statusStyle.Render("  " + m.user))
	}
	sb.WriteString("\n\n")
	sb.WriteString(m.table.View())
	sb.WriteString("\n")
	sb.WriteString(m.status())
	sb.WriteString("\n")
	sb.WriteString(statusStyle.Render("↑/↓ move • r refresh • q quit"))
	return sb.String()
}

func (m *Model) status() string {
	switch {
	case m.loading:
		return statusStyle.Render("scoring markets...")
	case m.err != nil:
		return errorStyle.Render("refresh failed: " + m.err.Error())
	case m.board == nil:
		return ""
	}
	s := fmt.Sprintf("%d markets, generated %s", len(m.board.Scores), m.board.GeneratedAt.Format(time.RFC822))
	if n := len(m.board.Failures); n > 0 {
		s += fmt.Sprintf(", %d unscored", n)
	}
	counts := bullishStyle.Render(fmt.Sprintf("%d bullish", countBias(m.board.Scores, domain.BiasBullish))) +
		" / " + bearishStyle.Render(fmt.Sprintf("%d bearish", countBias(m.board.Scores, domain.BiasBearish)))
	return statusStyle.Render(s) + "  " + counts
}

func countBias(scores []domain.Score, b domain.Bias) int {
	n := 0
	for _, s := range scores {
		if s.Bias == b {
			n++
		}
	}
	return n
}

// Rows renders a scoreboard in rank order.
func Rows(board *domain.Scoreboard) []table.Row {
	if board == nil {
		return nil
	}
	rows := make([]table.Row, 0, len(board.Scores))
	for i, s := range board.Scores {
		ext := ""
		if s.ExtremeLevel {
			ext = "*"
		}
		rows = append(rows, table.Row{
			fmt.Sprintf("%d", i+1),
			s.Symbol,
			fmt.Sprintf("%.1f", s.OverallScore),
			string(s.Bias),
			fmt.Sprintf("%.0f", s.Confidence),
			fmt.Sprintf("%.0f", s.CommercialIndex),
			s.CommercialSignal.String(),
			fmt.Sprintf("%.0f", s.LargeTraderIndex),
			s.LargeTraderSignal.String(),
			s.ReportDate.Format("2006-01-02"),
			ext,
		})
	}
	return rows
}
