package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// HelpModel is the help screen model
type HelpModel struct{}

// NewHelpModel creates a new help model
func NewHelpModel() HelpModel {
	return HelpModel{}
}

// Init initializes the help screen
func (m HelpModel) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m HelpModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	return m, nil
}

// View renders the help screen
func (m HelpModel) View() string {
	var sections []string

	title := cardTitleStyle.Render("Keyboard Shortcuts")
	sections = append(sections, title)

	navSection := m.renderSection("Navigation", []keyHelp{
		{"1", "Dashboard"},
		{"2", "Activities list"},
		{"3", "Power curve"},
		{"4", "Recalculation"},
		{"?", "Help (this screen)"},
		{"q", "Quit"},
		{"esc", "Back / close help"},
	})
	sections = append(sections, navSection)

	actSection := m.renderSection("Activities List", []keyHelp{
		{"j / down", "Move cursor down"},
		{"k / up", "Move cursor up"},
		{"pgdn", "Next page"},
		{"pgup", "Previous page"},
		{"enter", "View ride details"},
		{"r", "Refresh list"},
	})
	sections = append(sections, actSection)

	curveSection := m.renderSection("Power Curve", []keyHelp{
		{"m", "Cycle window (3/6/12 months)"},
		{"i", "Cycle peak interval (5s/1m/5m/20m)"},
	})
	sections = append(sections, curveSection)

	recalcSection := m.renderSection("Recalculation", []keyHelp{
		{"d", "Drain the backlog, oldest ride first"},
	})
	sections = append(sections, recalcSection)

	metricsSection := m.renderMetricsHelp()
	sections = append(sections, metricsSection)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

type keyHelp struct {
	key  string
	desc string
}

func (m HelpModel) renderSection(title string, keys []keyHelp) string {
	var lines []string

	lines = append(lines, "")
	lines = append(lines, lipgloss.NewStyle().Bold(true).Foreground(secondaryColor).Render(title))

	for _, k := range keys {
		lines = append(lines, "  "+RenderKeyHelp(k.key, k.desc))
	}

	return strings.Join(lines, "\n")
}

func (m HelpModel) renderMetricsHelp() string {
	var lines []string

	lines = append(lines, "")
	lines = append(lines, lipgloss.NewStyle().Bold(true).Foreground(secondaryColor).Render("Metrics Explained"))
	lines = append(lines, "")

	metrics := []struct {
		name string
		desc string
	}{
		{"NP (Normalized Power)", "Duration-weighted power that rewards steady efforts."},
		{"IF (Intensity Factor)", "NP relative to FTP. 1.0 = threshold effort."},
		{"VI (Variability Index)", "NP over average power. Near 1.0 = steady pacing."},
		{"TSS (Training Stress)", "Combines duration and intensity. 100 = 1h at FTP."},
		{"Decoupling", "Power:HR drift between ride halves. <5% = good aerobic base."},
		{"CTL (Fitness)", "Chronic training load - 42 day weighted avg of TSS."},
		{"ATL (Fatigue)", "Acute training load - 7 day weighted avg of TSS."},
		{"TSB (Form)", "Training stress balance = CTL - ATL. Positive = fresh."},
	}

	for _, metric := range metrics {
		lines = append(lines, "  "+helpKeyStyle.Render(metric.name))
		lines = append(lines, "  "+helpDescStyle.Render(metric.desc))
		lines = append(lines, "")
	}

	return strings.Join(lines, "\n")
}
