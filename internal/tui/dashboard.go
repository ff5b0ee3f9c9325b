package tui

import (
	"fmt"

	"github.com/jpanek/cyclingdatahub/internal/service"
	"github.com/jpanek/cyclingdatahub/internal/store"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
)

// DashboardModel is the dashboard screen model
type DashboardModel struct {
	queryService *service.QueryService
	athleteID    int64
	data         *service.DashboardData
	fitness      []store.DailyMetrics
	loading      bool
	err          error
}

// NewDashboardModel creates a new dashboard model
func NewDashboardModel(qs *service.QueryService, athleteID int64) DashboardModel {
	return DashboardModel{
		queryService: qs,
		athleteID:    athleteID,
		loading:      true,
	}
}

// Init initializes the dashboard
func (m DashboardModel) Init() tea.Cmd {
	return m.loadData
}

func (m DashboardModel) loadData() tea.Msg {
	data, err := m.queryService.Dashboard(m.athleteID)
	if err != nil {
		return dashboardDataMsg{err: err}
	}
	history, err := m.queryService.FitnessHistory(m.athleteID, 90)
	if err != nil {
		return dashboardDataMsg{err: err}
	}
	return dashboardDataMsg{data: data, fitness: history}
}

type dashboardDataMsg struct {
	data    *service.DashboardData
	fitness []store.DailyMetrics
	err     error
}

// Update handles messages
func (m DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case dashboardDataMsg:
		m.loading = false
		m.err = msg.err
		m.data = msg.data
		m.fitness = msg.fitness
	case tea.KeyMsg:
		switch msg.String() {
		case "r":
			m.loading = true
			return m, m.loadData
		}
	}
	return m, nil
}

// View renders the dashboard
func (m DashboardModel) View() string {
	if m.loading {
		return "\n  Loading dashboard..."
	}

	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("\n  Error: %v", m.err))
	}

	if m.data == nil {
		return "\n  No data available. Import a FIT file to get started."
	}

	var sections []string

	fitnessCard := m.renderFitnessCard()
	baselineCard := m.renderBaselineCard()
	topRow := lipgloss.JoinHorizontal(lipgloss.Top, fitnessCard, "  ", baselineCard)
	sections = append(sections, topRow)

	if len(m.fitness) > 2 {
		sections = append(sections, m.renderFitnessChart())
	}

	sections = append(sections, m.renderRecentActivities())

	help := statusStyle.Render("Press 'r' to refresh, '2' for activities, '3' for power curve")
	sections = append(sections, help)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m DashboardModel) renderFitnessCard() string {
	title := cardTitleStyle.Render("Training Load")

	var lines []string
	if m.data.Fitness == nil {
		lines = append(lines, "No processed rides yet")
	} else {
		f := m.data.Fitness
		lines = []string{
			RenderMetric("Fitness (CTL)", fmt.Sprintf("%.0f", f.CTL), ""),
			RenderMetric("Fatigue (ATL)", fmt.Sprintf("%.0f", f.ATL), ""),
			RenderMetric("Form (TSB)", fmt.Sprintf("%+.0f", f.TSB), ""),
			"",
			trendFlatStyle.Render(formDescription(f.TSB)),
		}
	}

	content := lipgloss.JoinVertical(lipgloss.Left, lines...)
	return cardStyle.Width(36).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
}

func (m DashboardModel) renderBaselineCard() string {
	title := cardTitleStyle.Render("Baseline")

	ftp, ftpSource := currentFTP(m.data.Athlete)
	maxHR, hrSource := currentMaxHR(m.data.Athlete)

	lines := []string{
		RenderMetric("FTP", fmt.Sprintf("%s (%s)", ftp, ftpSource), ""),
		RenderMetric("Max HR", fmt.Sprintf("%s (%s)", maxHR, hrSource), ""),
	}
	if m.data.Athlete.DetectedFTPAt != nil {
		lines = append(lines, RenderMetric("FTP detected", m.data.Athlete.DetectedFTPAt.Format("Jan 02, 2006"), ""))
	}
	if m.data.Backlog > 0 {
		lines = append(lines, "", warningStyle.Render(fmt.Sprintf("%d rides awaiting recalculation", m.data.Backlog)))
	}

	content := lipgloss.JoinVertical(lipgloss.Left, lines...)
	return cardStyle.Width(42).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
}

func (m DashboardModel) renderFitnessChart() string {
	title := cardTitleStyle.Render("Fitness (CTL) - Last 90 Days")

	data := make([]float64, len(m.fitness))
	for i, d := range m.fitness {
		data[i] = d.CTL
	}

	graph := asciigraph.Plot(data,
		asciigraph.Height(8),
		asciigraph.Width(60),
		asciigraph.Precision(0),
	)

	return cardStyle.Render(lipgloss.JoinVertical(lipgloss.Left, title, graph))
}

func (m DashboardModel) renderRecentActivities() string {
	title := cardTitleStyle.Render("Recent Rides")

	if len(m.data.Recent) == 0 {
		return cardStyle.Render(lipgloss.JoinVertical(lipgloss.Left, title, "No rides yet"))
	}

	header := tableHeaderStyle.Render(fmt.Sprintf("%-10s  %-22s  %5s  %5s  %5s  %6s",
		"Date", "Name", "NP", "IF", "VI", "TSS"))

	var rows []string
	rows = append(rows, header)

	for i, item := range m.data.Recent {
		if i >= 5 {
			break
		}

		a := item.Activity
		rec := item.Record

		row := tableRowStyle.Render(fmt.Sprintf("%-10s  %-22s  %4dW  %5.2f  %5.2f  %6.1f",
			a.StartDateLocal.Format("Jan 02"),
			truncateName(a.Name, 22),
			rec.WeightedAvgPower,
			rec.IntensityScore,
			rec.VariabilityIndex,
			rec.TrainingStress,
		))
		rows = append(rows, row)
	}

	table := lipgloss.JoinVertical(lipgloss.Left, rows...)
	return cardStyle.Render(lipgloss.JoinVertical(lipgloss.Left, title, table))
}

func currentFTP(a store.Athlete) (string, string) {
	if a.ManualFTP != nil {
		return fmt.Sprintf("%dW", *a.ManualFTP), "manual"
	}
	if a.DetectedFTP != nil {
		return fmt.Sprintf("%dW", *a.DetectedFTP), "detected"
	}
	return "-", "default"
}

func currentMaxHR(a store.Athlete) (string, string) {
	if a.ManualMaxHR != nil {
		return fmt.Sprintf("%d bpm", *a.ManualMaxHR), "manual"
	}
	if a.DetectedMaxHR != nil {
		return fmt.Sprintf("%d bpm", *a.DetectedMaxHR), "detected"
	}
	return "-", "default"
}

func formDescription(tsb float64) string {
	switch {
	case tsb > 15:
		return "Fresh - ready for hard efforts"
	case tsb > 5:
		return "Rested"
	case tsb > -10:
		return "Neutral - normal training"
	case tsb > -25:
		return "Fatigued - building fitness"
	default:
		return "Very fatigued - consider recovery"
	}
}

func formatDuration(seconds int) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}

func truncateName(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
