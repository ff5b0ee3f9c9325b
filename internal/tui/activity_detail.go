package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jpanek/cyclingdatahub/internal/service"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
)

// DetailModel is the activity detail screen model
type DetailModel struct {
	queryService *service.QueryService
	activityID   int64
	detail       *service.ActivityDetail
	viewport     viewport.Model
	loading      bool
	err          error
	width        int
	height       int
	ready        bool
}

// NewDetailModel creates a new activity detail model
func NewDetailModel(qs *service.QueryService, activityID int64, width, height int) DetailModel {
	m := DetailModel{
		queryService: qs,
		activityID:   activityID,
		loading:      true,
		width:        width,
		height:       height,
	}

	if width > 0 && height > 0 {
		m.viewport = viewport.New(width, height-6) // Reserve space for header/footer
		m.ready = true
	}

	return m
}

// Init initializes the activity detail screen
func (m DetailModel) Init() tea.Cmd {
	return m.loadDetail
}

type detailLoadedMsg struct {
	detail *service.ActivityDetail
	err    error
}

func (m DetailModel) loadDetail() tea.Msg {
	detail, err := m.queryService.Detail(m.activityID)
	if err != nil {
		return detailLoadedMsg{err: err}
	}
	return detailLoadedMsg{detail: detail}
}

// Update handles messages
func (m DetailModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case detailLoadedMsg:
		m.loading = false
		m.err = msg.err
		m.detail = msg.detail
		if m.ready {
			m.viewport.SetContent(m.renderContent())
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-6)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 6
		}
		if m.detail != nil {
			m.viewport.SetContent(m.renderContent())
		}

	case tea.KeyMsg:
		switch msg.String() {
		case "r":
			m.loading = true
			return m, m.loadDetail
		}
	}

	// Handle viewport scrolling
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the activity detail screen
func (m DetailModel) View() string {
	if m.loading {
		return "\n  Loading activity details..."
	}

	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("\n  Error: %v", m.err))
	}

	if !m.ready {
		return "\n  Initializing..."
	}

	footer := statusStyle.Render("  esc: back to list  j/k or arrows: scroll  r: refresh")

	return lipgloss.JoinVertical(lipgloss.Left, m.viewport.View(), footer)
}

func (m DetailModel) renderContent() string {
	if m.detail == nil {
		return "No data"
	}

	var sections []string

	sections = append(sections, m.renderHeader())

	if m.detail.Record != nil {
		sections = append(sections, m.renderSummary())
		sections = append(sections, m.renderPeaks())
		if len(m.detail.Record.PowerCurve) > 2 {
			sections = append(sections, m.renderCurveChart())
		}
	} else {
		sections = append(sections, statusStyle.Render("  Not processed yet"))
	}

	if m.detail.Streams != nil {
		if len(m.detail.Streams.Watts) > 5 {
			sections = append(sections, m.renderStreamChart("Power Over Time (W)", m.detail.Streams.Watts))
		}
		if len(m.detail.Streams.Heartrate) > 5 {
			sections = append(sections, m.renderStreamChart("Heart Rate Over Time (bpm)", m.detail.Streams.Heartrate))
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m DetailModel) renderHeader() string {
	a := m.detail.Activity
	title := cardTitleStyle.Render(a.Name)

	date := a.StartDateLocal.Format("Monday, January 2, 2006 at 3:04 PM")
	subtitle := lipgloss.NewStyle().Foreground(mutedColor).Render(date)

	stats := fmt.Sprintf("%s  |  %s", a.Type, formatDuration(a.MovingTime))
	statsLine := lipgloss.NewStyle().Foreground(textColor).Bold(true).Render(stats)

	return lipgloss.JoinVertical(lipgloss.Left, "", title, subtitle, statsLine, "")
}

func (m DetailModel) renderSummary() string {
	var lines []string

	lines = append(lines, lipgloss.NewStyle().Bold(true).Foreground(secondaryColor).Render("Summary"))

	rec := m.detail.Record

	lines = append(lines, fmt.Sprintf("  Normalized Power:     %dW", rec.WeightedAvgPower))
	lines = append(lines, fmt.Sprintf("  Baseline FTP:         %dW", rec.BaselineFTP))
	lines = append(lines, fmt.Sprintf("  Intensity Factor:     %.2f", rec.IntensityScore))
	lines = append(lines, fmt.Sprintf("  Variability Index:    %.2f", rec.VariabilityIndex))
	lines = append(lines, fmt.Sprintf("  Training Stress:      %.1f", rec.TrainingStress))

	if rec.EfficiencyFactor > 0 {
		lines = append(lines, fmt.Sprintf("  Efficiency Factor:    %.2f", rec.EfficiencyFactor))
	}
	if rec.AerobicDecoupling != nil {
		lines = append(lines, fmt.Sprintf("  Aerobic Decoupling:   %.1f%%", *rec.AerobicDecoupling))
	}
	if rec.MaxHR != nil {
		lines = append(lines, fmt.Sprintf("  Max HR:               %d bpm", *rec.MaxHR))
	}
	if rec.MaxVAM > 0 {
		lines = append(lines, fmt.Sprintf("  Max VAM:              %d m/h", rec.MaxVAM))
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

func (m DetailModel) renderPeaks() string {
	rec := m.detail.Record

	var lines []string
	lines = append(lines, lipgloss.NewStyle().Bold(true).Foreground(secondaryColor).Render("Peak Power"))

	header := fmt.Sprintf("  %-10s  %8s  %8s", "Interval", "Power", "Avg HR")
	lines = append(lines, lipgloss.NewStyle().Foreground(primaryColor).Render(header))

	peaks := []struct {
		label string
		power *int
		hr    *int
	}{
		{"5 sec", rec.Peak5s, rec.Peak5sHR},
		{"1 min", rec.Peak1m, rec.Peak1mHR},
		{"5 min", rec.Peak5m, rec.Peak5mHR},
		{"20 min", rec.Peak20m, rec.Peak20mHR},
	}

	for _, p := range peaks {
		power, hr := "-", "-"
		if p.power != nil {
			power = fmt.Sprintf("%dW", *p.power)
		}
		if p.hr != nil {
			hr = fmt.Sprintf("%d bpm", *p.hr)
		}
		lines = append(lines, fmt.Sprintf("  %-10s  %8s  %8s", p.label, power, hr))
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

func (m DetailModel) renderCurveChart() string {
	var lines []string
	lines = append(lines, lipgloss.NewStyle().Bold(true).Foreground(secondaryColor).Render("Power Curve (W)"))

	curve := m.detail.Record.PowerCurve
	durations := make([]int, 0, len(curve))
	for d := range curve {
		durations = append(durations, d)
	}
	sort.Ints(durations)

	data := make([]float64, len(durations))
	for i, d := range durations {
		data[i] = float64(curve[d])
	}

	if len(data) > 2 {
		chart := asciigraph.Plot(data,
			asciigraph.Height(8),
			asciigraph.Width(50),
		)
		lines = append(lines, chart)
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

func (m DetailModel) renderStreamChart(title string, data []float64) string {
	var lines []string
	lines = append(lines, lipgloss.NewStyle().Bold(true).Foreground(secondaryColor).Render(title))

	if len(data) > 60 {
		data = downsample(data, 60)
	}

	if len(data) > 2 {
		chart := asciigraph.Plot(data,
			asciigraph.Height(8),
			asciigraph.Width(50),
		)
		lines = append(lines, chart)
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

func downsample(data []float64, targetLen int) []float64 {
	if len(data) <= targetLen {
		return data
	}

	result := make([]float64, targetLen)
	ratio := float64(len(data)) / float64(targetLen)

	for i := 0; i < targetLen; i++ {
		start := int(float64(i) * ratio)
		end := int(float64(i+1) * ratio)
		if end > len(data) {
			end = len(data)
		}

		sum := 0.0
		count := 0
		for j := start; j < end; j++ {
			sum += data[j]
			count++
		}
		if count > 0 {
			result[i] = sum / float64(count)
		}
	}

	return result
}
