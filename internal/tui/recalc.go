package tui

import (
	"fmt"

	"github.com/jpanek/cyclingdatahub/internal/service"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// RecalcModel is the recalculation screen model
type RecalcModel struct {
	analytics *service.AnalyticsService
	athleteID int64

	backlog   int
	processed int
	running   bool
	done      bool
	loading   bool
	err       error
}

// NewRecalcModel creates a new recalculation model
func NewRecalcModel(svc *service.AnalyticsService, athleteID int64) RecalcModel {
	return RecalcModel{
		analytics: svc,
		athleteID: athleteID,
		loading:   true,
	}
}

// Init initializes the recalculation screen
func (m RecalcModel) Init() tea.Cmd {
	m.done = false
	return m.loadBacklog
}

type backlogLoadedMsg struct {
	backlog int
	err     error
}

type recalcDoneMsg struct {
	processed int
	err       error
}

func (m RecalcModel) loadBacklog() tea.Msg {
	backlog, err := m.analytics.Backlog(m.athleteID)
	return backlogLoadedMsg{backlog: backlog, err: err}
}

func (m RecalcModel) runDrain() tea.Msg {
	processed, err := m.analytics.DrainAll(50)
	return recalcDoneMsg{processed: processed, err: err}
}

// Update handles messages
func (m RecalcModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case backlogLoadedMsg:
		m.loading = false
		m.err = msg.err
		m.backlog = msg.backlog

	case recalcDoneMsg:
		m.running = false
		m.done = true
		m.err = msg.err
		m.processed = msg.processed

	case tea.KeyMsg:
		if m.running {
			break
		}
		switch msg.String() {
		case "d":
			if m.backlog > 0 {
				m.running = true
				m.done = false
				return m, m.runDrain
			}
		case "enter":
			if m.done {
				return m, func() tea.Msg { return RecalcCompleteMsg{} }
			}
		case "r":
			m.loading = true
			m.done = false
			return m, m.loadBacklog
		}
	}
	return m, nil
}

// View renders the recalculation screen
func (m RecalcModel) View() string {
	if m.loading {
		return "\n  Checking backlog..."
	}

	title := cardTitleStyle.Render("Recalculation")
	var lines []string

	if m.err != nil {
		lines = append(lines, errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	}

	switch {
	case m.running:
		lines = append(lines, fmt.Sprintf("Recalculating %d rides, oldest first...", m.backlog))
	case m.done:
		lines = append(lines, successStyle.Render(fmt.Sprintf("Recalculated %d rides.", m.processed)))
		lines = append(lines, "")
		lines = append(lines, statusStyle.Render("Press enter to return to the dashboard"))
	case m.backlog == 0:
		lines = append(lines, "Nothing to recalculate.")
	default:
		lines = append(lines, fmt.Sprintf("%d rides are flagged for recalculation.", m.backlog))
		lines = append(lines, "")
		lines = append(lines, "Rides are reprocessed in ride-date order so each one")
		lines = append(lines, "sees the baseline as it stood on its own date.")
		lines = append(lines, "")
		lines = append(lines, RenderKeyHelp("d", "start recalculation"))
	}

	card := cardStyle.Width(60).Render(lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, lines...)))
	return card
}
