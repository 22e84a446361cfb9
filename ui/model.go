package ui

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/yllada/cilpea-vpn/common"
	"github.com/yllada/cilpea-vpn/vpn"
)

// Controller is the part of vpn.Manager the front ends drive.
type Controller interface {
	RequestConnect() error
	RequestDisconnect() error
	ReportExternalDrop() error
	SetAutoReconnect(enabled bool) error
	Snapshot() vpn.Snapshot
	Subscribe() (<-chan struct{}, func())
}

// Messages
type snapshotMsg struct {
	snap vpn.Snapshot
}

type controllerClosedMsg struct{}

const (
	minLogHeight = 5
	chromeHeight = 20
)

// Model is the bubbletea dashboard over a Controller.
type Model struct {
	ctrl        Controller
	updates     <-chan struct{}
	unsubscribe func()

	snap    vpn.Snapshot
	keys    KeyMap
	help    help.Model
	logView viewport.Model

	width   int
	height  int
	lastErr string
}

// NewModel subscribes to ctrl and returns the initial dashboard.
func NewModel(ctrl Controller) Model {
	updates, unsubscribe := ctrl.Subscribe()
	m := Model{
		ctrl:        ctrl,
		updates:     updates,
		unsubscribe: unsubscribe,
		snap:        ctrl.Snapshot(),
		keys:        DefaultKeyMap(),
		help:        help.New(),
		logView:     viewport.New(80, minLogHeight*2),
	}
	m.refreshLogs()
	return m
}

// waitForUpdate blocks until the controller publishes, then reads a fresh
// snapshot. A closed channel means the controller shut down.
func waitForUpdate(updates <-chan struct{}, ctrl Controller) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-updates; !ok {
			return controllerClosedMsg{}
		}
		return snapshotMsg{snap: ctrl.Snapshot()}
	}
}

// Init starts listening for session updates.
func (m Model) Init() tea.Cmd {
	return waitForUpdate(m.updates, m.ctrl)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.logView.Width = max(msg.Width-4, 20)
		m.logView.Height = max(msg.Height-chromeHeight, minLogHeight)
		m.refreshLogs()
		return m, nil

	case snapshotMsg:
		m.snap = msg.snap
		m.refreshLogs()
		return m, waitForUpdate(m.updates, m.ctrl)

	case controllerClosedMsg:
		return m, tea.Quit

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.unsubscribe != nil {
			m.unsubscribe()
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.Toggle):
		switch m.snap.Session.Status {
		case vpn.StatusConnected:
			m.run(m.ctrl.RequestDisconnect)
		case vpn.StatusDisconnected, vpn.StatusError:
			m.run(m.ctrl.RequestConnect)
		}

	case key.Matches(msg, m.keys.Connect):
		m.run(m.ctrl.RequestConnect)

	case key.Matches(msg, m.keys.Disconnect):
		m.run(m.ctrl.RequestDisconnect)

	case key.Matches(msg, m.keys.AutoReconnect):
		enabled := !m.snap.Reconnect.Enabled
		m.run(func() error { return m.ctrl.SetAutoReconnect(enabled) })

	case key.Matches(msg, m.keys.Drop):
		m.run(m.ctrl.ReportExternalDrop)

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll

	case key.Matches(msg, m.keys.Up):
		m.logView.ScrollUp(1)

	case key.Matches(msg, m.keys.Down):
		m.logView.ScrollDown(1)
	}

	return m, nil
}

// run issues a command and records a rejection for the footer. The resulting
// state change arrives through the subscription.
func (m *Model) run(fn func() error) {
	m.lastErr = ""
	if err := fn(); err != nil {
		m.lastErr = err.Error()
	}
}

func (m *Model) refreshLogs() {
	atBottom := m.logView.AtBottom() || m.logView.TotalLineCount() == 0
	m.logView.SetContent(renderLogs(m.snap.Logs))
	if atBottom {
		m.logView.GotoBottom()
	}
}

// View renders the dashboard.
func (m Model) View() string {
	header := lipgloss.JoinHorizontal(lipgloss.Center,
		titleStyle.Render(common.AppName), "  ", renderBadge(m.snap.Session))

	width := max(m.width-2, 40)
	access := panelStyle.Width(width).Render(renderAccess(m.snap))
	traffic := panelStyle.Width(width).Render(renderTraffic(m.snap))
	logs := panelStyle.Width(width).Render(
		panelTitleStyle.Render("SYSTEM OUTPUT") + "\n" + m.logView.View())

	footer := m.help.View(m.keys)
	if m.lastErr != "" {
		footer = errorLineStyle.Render("! "+m.lastErr) + "\n" + footer
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, access, traffic, logs, footer)
}

// Run starts the dashboard and blocks until the user quits or the
// controller closes.
func Run(ctrl Controller) error {
	p := tea.NewProgram(NewModel(ctrl), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
