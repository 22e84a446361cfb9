package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/yllada/cilpea-vpn/vpn"
)

// Palette shared by the dashboard and the tray icons.
var (
	ColorGreen  = lipgloss.Color("#2ec27e")
	ColorAmber  = lipgloss.Color("#e5a50a")
	ColorRed    = lipgloss.Color("#e01b24")
	ColorBlue   = lipgloss.Color("#3584e4")
	ColorSlate  = lipgloss.Color("#94a3b8")
	ColorMuted  = lipgloss.Color("#64748b")
	ColorFaint  = lipgloss.Color("#334155")
	ColorText   = lipgloss.Color("#cbd5e1")
	ColorBorder = lipgloss.Color("#1e293b")
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ffffff")).
			Bold(true).
			PaddingLeft(1)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1)

	panelTitleStyle = lipgloss.NewStyle().
			Foreground(ColorSlate).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	detailStyle = lipgloss.NewStyle().
			Foreground(ColorSlate).
			Italic(true)

	placeholderStyle = lipgloss.NewStyle().
				Foreground(ColorMuted).
				Italic(true)

	countdownStyle = lipgloss.NewStyle().
			Foreground(ColorBlue).
			Bold(true)

	errorLineStyle = lipgloss.NewStyle().
			Foreground(ColorRed)

	timestampStyle = lipgloss.NewStyle().
			Foreground(ColorFaint)

	uploadStyle   = lipgloss.NewStyle().Foreground(ColorGreen)
	downloadStyle = lipgloss.NewStyle().Foreground(ColorBlue)
	addressStyle  = lipgloss.NewStyle().Foreground(ColorGreen)
	uptimeStyle   = lipgloss.NewStyle().Foreground(ColorBlue)
	cipherStyle   = lipgloss.NewStyle().Foreground(ColorAmber)
)

// statusColor maps a session status to its badge colour.
func statusColor(s vpn.ConnectionStatus) lipgloss.Color {
	switch s {
	case vpn.StatusConnected:
		return ColorGreen
	case vpn.StatusConnecting:
		return ColorBlue
	case vpn.StatusDisconnecting:
		return ColorAmber
	case vpn.StatusError:
		return ColorRed
	default:
		return ColorSlate
	}
}

func badgeStyle(s vpn.ConnectionStatus) lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(statusColor(s)).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(statusColor(s)).
		Bold(true).
		Padding(0, 1)
}

func severityStyle(s vpn.Severity) lipgloss.Style {
	switch s {
	case vpn.SeveritySuccess:
		return lipgloss.NewStyle().Foreground(ColorGreen)
	case vpn.SeverityWarning:
		return lipgloss.NewStyle().Foreground(ColorAmber)
	case vpn.SeverityError:
		return lipgloss.NewStyle().Foreground(ColorRed)
	default:
		return lipgloss.NewStyle().Foreground(ColorText)
	}
}
