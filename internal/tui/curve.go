package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jpanek/cyclingdatahub/internal/analysis"
	"github.com/jpanek/cyclingdatahub/internal/service"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
)

var curveWindows = []int{3, 6, 12}

var seasonalLabels = []string{"5s", "1m", "5m", "20m"}

// CurveModel is the power curve screen model
type CurveModel struct {
	analytics *service.AnalyticsService
	athleteID int64

	windowIdx int
	labelIdx  int

	envelope map[int]int
	seasonal *service.SeasonalSeries
	loading  bool
	err      error
}

// NewCurveModel creates a new power curve model
func NewCurveModel(svc *service.AnalyticsService, athleteID int64) CurveModel {
	return CurveModel{
		analytics: svc,
		athleteID: athleteID,
		windowIdx: 1, // 6 months
		loading:   true,
	}
}

// Init initializes the power curve screen
func (m CurveModel) Init() tea.Cmd {
	return m.loadData
}

type curveLoadedMsg struct {
	envelope map[int]int
	seasonal *service.SeasonalSeries
	err      error
}

func (m CurveModel) loadData() tea.Msg {
	envelope, err := m.analytics.BestPowerEnvelope(m.athleteID, curveWindows[m.windowIdx])
	if err != nil {
		return curveLoadedMsg{err: err}
	}
	seasonal, err := m.analytics.SeasonalSeries(m.athleteID, seasonalLabels[m.labelIdx])
	if err != nil {
		return curveLoadedMsg{err: err}
	}
	return curveLoadedMsg{envelope: envelope, seasonal: seasonal}
}

// Update handles messages
func (m CurveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case curveLoadedMsg:
		m.loading = false
		m.err = msg.err
		m.envelope = msg.envelope
		m.seasonal = msg.seasonal

	case tea.KeyMsg:
		switch msg.String() {
		case "m":
			m.windowIdx = (m.windowIdx + 1) % len(curveWindows)
			m.loading = true
			return m, m.loadData
		case "i":
			m.labelIdx = (m.labelIdx + 1) % len(seasonalLabels)
			m.loading = true
			return m, m.loadData
		case "r":
			m.loading = true
			return m, m.loadData
		}
	}
	return m, nil
}

// View renders the power curve screen
func (m CurveModel) View() string {
	if m.loading {
		return "\n  Loading power curve..."
	}

	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("\n  Error: %v", m.err))
	}

	var sections []string

	sections = append(sections, m.renderEnvelope())
	sections = append(sections, m.renderSeasonal())

	help := statusStyle.Render("  m: change window  i: change interval  r: refresh")
	sections = append(sections, help)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m CurveModel) renderEnvelope() string {
	title := cardTitleStyle.Render(fmt.Sprintf("Best Power - Last %d Months", curveWindows[m.windowIdx]))

	if len(m.envelope) == 0 {
		return cardStyle.Render(lipgloss.JoinVertical(lipgloss.Left, title, "No processed rides in this window"))
	}

	durations := make([]int, 0, len(m.envelope))
	for d := range m.envelope {
		durations = append(durations, d)
	}
	sort.Ints(durations)

	data := make([]float64, len(durations))
	for i, d := range durations {
		data[i] = float64(m.envelope[d])
	}

	graph := asciigraph.Plot(data,
		asciigraph.Height(10),
		asciigraph.Width(60),
		asciigraph.Precision(0),
	)

	// Key durations beneath the graph
	var cells []string
	for _, d := range analysis.CurveDurations {
		if d != 5 && d != 60 && d != 300 && d != 1200 && d != 3600 {
			continue
		}
		if watts, ok := m.envelope[d]; ok {
			cells = append(cells, fmt.Sprintf("%s: %dW", durationLabel(d), watts))
		}
	}
	table := trendFlatStyle.Render(strings.Join(cells, "   "))

	return cardStyle.Render(lipgloss.JoinVertical(lipgloss.Left, title, graph, "", table))
}

func (m CurveModel) renderSeasonal() string {
	label := seasonalLabels[m.labelIdx]
	title := cardTitleStyle.Render(fmt.Sprintf("Peak %s Power Over Time", label))

	if m.seasonal == nil || len(m.seasonal.Points) < 3 {
		return cardStyle.Render(lipgloss.JoinVertical(lipgloss.Left, title, "Not enough rides yet"))
	}

	data := make([]float64, len(m.seasonal.Points))
	for i, p := range m.seasonal.Points {
		data[i] = float64(p.Value)
	}

	graph := asciigraph.Plot(data,
		asciigraph.Height(8),
		asciigraph.Width(60),
		asciigraph.Precision(0),
	)

	last := m.seasonal.Points[len(m.seasonal.Points)-1]
	summary := trendFlatStyle.Render(fmt.Sprintf(
		"All-time best: %dW   Last 30 days: %dW", last.AllTimeMax, m.seasonal.RecentPeak))

	return cardStyle.Render(lipgloss.JoinVertical(lipgloss.Left, title, graph, "", summary))
}

func durationLabel(seconds int) string {
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	if seconds < 3600 {
		return fmt.Sprintf("%dm", seconds/60)
	}
	return fmt.Sprintf("%dh", seconds/3600)
}
