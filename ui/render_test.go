package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/yllada/cilpea-vpn/vpn"
)

func TestSparkline(t *testing.T) {
	tests := []struct {
		name   string
		values []int
		want   string
	}{
		{"empty", nil, ""},
		{"all zero", []int{0, 0, 0}, "▁▁▁"},
		{"ramp", []int{0, 7, 14}, "▁▄█"},
		{"peak only", []int{5}, "█"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sparkline(tt.values); got != tt.want {
				t.Errorf("Sparkline(%v) = %q, want %q", tt.values, got, tt.want)
			}
		})
	}
}

func TestRenderLogLine(t *testing.T) {
	at := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)

	tests := []struct {
		name     string
		severity vpn.Severity
		prefixed bool
	}{
		{"success", vpn.SeveritySuccess, true},
		{"info", vpn.SeverityInfo, false},
		{"error", vpn.SeverityError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := renderLogLine(vpn.LogEntry{Timestamp: at, Message: "hello", Severity: tt.severity})
			if !strings.Contains(line, "[15:04:05]") {
				t.Errorf("missing timestamp: %q", line)
			}
			if got := strings.Contains(line, "> hello"); got != tt.prefixed {
				t.Errorf("prefixed = %v, want %v: %q", got, tt.prefixed, line)
			}
		})
	}
}

func TestRenderLogs_Empty(t *testing.T) {
	if got := renderLogs(nil); !strings.Contains(got, noActivity) {
		t.Errorf("renderLogs(nil) = %q", got)
	}
}

func TestRenderTraffic(t *testing.T) {
	idle := vpn.Snapshot{Session: vpn.Session{Status: vpn.StatusDisconnected, TunnelAddress: "---.---.---.---"}}
	out := renderTraffic(idle)
	if !strings.Contains(out, waitingForTraffic) || !strings.Contains(out, strings.ToUpper(notEstablished)) {
		t.Errorf("idle traffic view = %q", out)
	}

	live := vpn.Snapshot{
		Session: vpn.Session{
			Status: vpn.StatusConnected,
			Detail: "AES-256-GCM",
			Stats:  vpn.SessionStats{BytesIn: 3 * 1024 * 1024, BytesOut: 1024 * 1024},
		},
		Telemetry: []vpn.TrafficSample{{Upload: 5, Download: 10}, {Upload: 35, Download: 90}},
	}
	out = renderTraffic(live)
	if strings.Contains(out, waitingForTraffic) {
		t.Error("connected view should not show the placeholder")
	}
	for _, want := range []string{"3.0 MB", "1.0 MB", "AES-256-GCM", "▁█"} {
		if !strings.Contains(out, want) {
			t.Errorf("connected view missing %q: %q", want, out)
		}
	}
}

func TestRenderAccess_Countdown(t *testing.T) {
	n := 3
	snap := vpn.Snapshot{
		Session:   vpn.Session{Status: vpn.StatusError},
		Reconnect: vpn.ReconnectPolicy{Enabled: true, Remaining: &n},
	}
	if out := renderAccess(snap); !strings.Contains(out, "RECONNECTING IN 3s") {
		t.Errorf("access view = %q", out)
	}
}
