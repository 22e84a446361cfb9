package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/yllada/cilpea-vpn/common"
	"github.com/yllada/cilpea-vpn/vpn"
)

const (
	waitingForTraffic = "WAITING FOR TRAFFIC..."
	noActivity        = "No activity recorded."
	notEstablished    = "Not Established"
)

var sparkLevels = []rune("▁▂▃▄▅▆▇█")

// Sparkline renders values scaled against their maximum. An empty or all-zero
// series renders as a flat baseline.
func Sparkline(values []int) string {
	peak := 0
	for _, v := range values {
		if v > peak {
			peak = v
		}
	}

	var b strings.Builder
	for _, v := range values {
		idx := 0
		if peak > 0 && v > 0 {
			idx = v * (len(sparkLevels) - 1) / peak
		}
		b.WriteRune(sparkLevels[idx])
	}
	return b.String()
}

// statusLabel is the badge text for s.
func statusLabel(s vpn.ConnectionStatus) string {
	switch s {
	case vpn.StatusConnected:
		return "CONNECTED"
	case vpn.StatusConnecting:
		return "CONNECTING"
	case vpn.StatusDisconnecting:
		return "DISCONNECTING"
	case vpn.StatusError:
		return "ERROR"
	default:
		return "DISCONNECTED"
	}
}

func renderBadge(s vpn.Session) string {
	badge := badgeStyle(s.Status).Render(statusLabel(s.Status))
	if s.Detail == "" {
		return badge
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, badge, " ", detailStyle.Render(s.Detail))
}

// powerHint describes what the power key does in the current state.
func powerHint(s vpn.ConnectionStatus) string {
	switch s {
	case vpn.StatusConnected:
		return "[ POWER OFF ]"
	case vpn.StatusConnecting, vpn.StatusDisconnecting:
		return "[  BUSY...  ]"
	default:
		return "[ POWER ON  ]"
	}
}

func renderAccess(snap vpn.Snapshot) string {
	var b strings.Builder
	b.WriteString(panelTitleStyle.Render("ACCESS MANAGEMENT"))
	b.WriteString("\n\n")
	b.WriteString(lipgloss.NewStyle().Foreground(statusColor(snap.Session.Status)).Render(powerHint(snap.Session.Status)))
	b.WriteString("\n")
	if r := snap.Reconnect.Remaining; r != nil {
		b.WriteString(countdownStyle.Render(fmt.Sprintf("RECONNECTING IN %ds", *r)))
	}
	b.WriteString("\n\n")

	toggle := labelStyle.Render("[ off ]")
	if snap.Reconnect.Enabled {
		toggle = uploadStyle.Render("[ on  ]")
	}
	b.WriteString(labelStyle.Render("AUTO-RECONNECT ") + toggle)
	return b.String()
}

func renderTraffic(snap vpn.Snapshot) string {
	var b strings.Builder
	stats := snap.Session.Stats

	b.WriteString(panelTitleStyle.Render("NETWORK ANALYTICS"))
	b.WriteString("   ")
	b.WriteString(labelStyle.Render("UP: ") + uploadStyle.Render(common.FormatMegabytes(stats.BytesOut)))
	b.WriteString("  ")
	b.WriteString(labelStyle.Render("DOWN: ") + downloadStyle.Render(common.FormatMegabytes(stats.BytesIn)))
	b.WriteString("\n\n")

	if snap.Session.Status != vpn.StatusConnected {
		b.WriteString(placeholderStyle.Render(waitingForTraffic))
		b.WriteString("\n\n")
	} else {
		up := make([]int, len(snap.Telemetry))
		down := make([]int, len(snap.Telemetry))
		for i, s := range snap.Telemetry {
			up[i], down[i] = s.Upload, s.Download
		}
		b.WriteString(labelStyle.Render("UP   ") + uploadStyle.Render(Sparkline(up)) + "\n")
		b.WriteString(labelStyle.Render("DOWN ") + downloadStyle.Render(Sparkline(down)) + "\n")
	}

	cipher := notEstablished
	if snap.Session.Status == vpn.StatusConnected {
		cipher = snap.Session.Detail
	}
	b.WriteString("\n")
	b.WriteString(labelStyle.Render("TUNNEL IP ") + addressStyle.Render(snap.Session.TunnelAddress))
	b.WriteString("   ")
	b.WriteString(labelStyle.Render("DURATION ") + uptimeStyle.Render(stats.Uptime))
	b.WriteString("   ")
	b.WriteString(labelStyle.Render("CIPHER ") + cipherStyle.Render(strings.ToUpper(cipher)))
	return b.String()
}

// renderLogLine formats one log entry. Success lines carry a "> " prefix.
func renderLogLine(e vpn.LogEntry) string {
	msg := e.Message
	if e.Severity == vpn.SeveritySuccess {
		msg = "> " + msg
	}
	return timestampStyle.Render("["+e.Timestamp.Format("15:04:05")+"]") + " " + severityStyle(e.Severity).Render(msg)
}

func renderLogs(logs []vpn.LogEntry) string {
	if len(logs) == 0 {
		return placeholderStyle.Render(noActivity)
	}
	lines := make([]string, len(logs))
	for i, e := range logs {
		lines[i] = renderLogLine(e)
	}
	return strings.Join(lines, "\n")
}
