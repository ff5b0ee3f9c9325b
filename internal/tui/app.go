package tui

import (
	"github.com/jpanek/cyclingdatahub/internal/service"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Screen identifiers
type Screen int

const (
	ScreenDashboard Screen = iota
	ScreenActivities
	ScreenDetail
	ScreenCurve
	ScreenRecalc
	ScreenHelp
)

// App is the root Bubble Tea model
type App struct {
	screen     Screen
	prevScreen Screen

	// Screen models
	dashboard  DashboardModel
	activities ActivitiesModel
	detail     DetailModel
	curve      CurveModel
	recalc     RecalcModel
	help       HelpModel

	// Services
	queryService *service.QueryService
	analytics    *service.AnalyticsService
	athleteID    int64

	// Window dimensions
	width  int
	height int
}

// NewApp creates a new App with all dependencies
func NewApp(queryService *service.QueryService, analytics *service.AnalyticsService, athleteID int64) *App {
	return &App{
		screen:       ScreenDashboard,
		queryService: queryService,
		analytics:    analytics,
		athleteID:    athleteID,
		dashboard:    NewDashboardModel(queryService, athleteID),
		activities:   NewActivitiesModel(queryService, athleteID),
		curve:        NewCurveModel(analytics, athleteID),
		recalc:       NewRecalcModel(analytics, athleteID),
		help:         NewHelpModel(),
	}
}

// Init initializes the app
func (a *App) Init() tea.Cmd {
	return a.dashboard.Init()
}

// Update handles messages
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		// Global keybindings, disabled while a recalculation is running
		if a.screen != ScreenRecalc || !a.recalc.running {
			switch msg.String() {
			case "q", "ctrl+c":
				return a, tea.Quit
			case "1":
				a.screen = ScreenDashboard
				a.dashboard = NewDashboardModel(a.queryService, a.athleteID)
				return a, a.dashboard.Init()
			case "2":
				a.screen = ScreenActivities
				return a, a.activities.Init()
			case "3":
				a.screen = ScreenCurve
				return a, a.curve.Init()
			case "4":
				if a.screen != ScreenRecalc {
					a.screen = ScreenRecalc
					return a, a.recalc.Init()
				}
			case "?":
				a.prevScreen = a.screen
				a.screen = ScreenHelp
				return a, nil
			case "esc":
				switch a.screen {
				case ScreenHelp:
					a.screen = a.prevScreen
					return a, nil
				case ScreenDetail:
					a.screen = ScreenActivities
					return a, nil
				}
			}
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height

	case OpenActivityDetailMsg:
		a.screen = ScreenDetail
		a.detail = NewDetailModel(a.queryService, msg.ActivityID, a.width, a.height)
		return a, a.detail.Init()

	case RecalcCompleteMsg:
		// Refresh dashboard once the backlog is drained
		a.screen = ScreenDashboard
		a.dashboard = NewDashboardModel(a.queryService, a.athleteID)
		return a, a.dashboard.Init()
	}

	// Delegate to current screen
	var cmd tea.Cmd
	switch a.screen {
	case ScreenDashboard:
		var m tea.Model
		m, cmd = a.dashboard.Update(msg)
		a.dashboard = m.(DashboardModel)
	case ScreenActivities:
		var m tea.Model
		m, cmd = a.activities.Update(msg)
		a.activities = m.(ActivitiesModel)
	case ScreenDetail:
		var m tea.Model
		m, cmd = a.detail.Update(msg)
		a.detail = m.(DetailModel)
	case ScreenCurve:
		var m tea.Model
		m, cmd = a.curve.Update(msg)
		a.curve = m.(CurveModel)
	case ScreenRecalc:
		var m tea.Model
		m, cmd = a.recalc.Update(msg)
		a.recalc = m.(RecalcModel)
	case ScreenHelp:
		var m tea.Model
		m, cmd = a.help.Update(msg)
		a.help = m.(HelpModel)
	}

	return a, cmd
}

// View renders the app
func (a *App) View() string {
	header := headerStyle.Render("Cycling Data Hub")
	nav := a.renderNav()

	var content string
	switch a.screen {
	case ScreenDashboard:
		content = a.dashboard.View()
	case ScreenActivities:
		content = a.activities.View()
	case ScreenDetail:
		content = a.detail.View()
	case ScreenCurve:
		content = a.curve.View()
	case ScreenRecalc:
		content = a.recalc.View()
	case ScreenHelp:
		content = a.help.View()
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, nav, content)
}

func (a *App) renderNav() string {
	items := []struct {
		key    string
		label  string
		screen Screen
	}{
		{"1", "Dashboard", ScreenDashboard},
		{"2", "Activities", ScreenActivities},
		{"3", "Power Curve", ScreenCurve},
		{"4", "Recalc", ScreenRecalc},
		{"?", "Help", ScreenHelp},
	}

	var nav string
	for i, item := range items {
		if i > 0 {
			nav += "  "
		}

		label := "[" + item.key + "] " + item.label
		if a.screen == item.screen {
			nav += navActiveStyle.Render(label)
		} else {
			nav += navInactiveStyle.Render(label)
		}
	}

	nav += "  " + navInactiveStyle.Render("[q] Quit")

	return navStyle.Render(nav)
}

// OpenActivityDetailMsg asks the app to open one activity's detail screen
type OpenActivityDetailMsg struct {
	ActivityID int64
}

// RecalcCompleteMsg is sent when a recalculation drain finishes
type RecalcCompleteMsg struct{}
