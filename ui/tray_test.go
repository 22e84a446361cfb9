package ui

import (
	"bytes"
	"image/png"
	"strings"
	"testing"

	"github.com/yllada/cilpea-vpn/vpn"
)

func TestTrayViewFor(t *testing.T) {
	three := 3
	tests := []struct {
		name        string
		snap        vpn.Snapshot
		status      string
		toggle      string
		active      bool
		showSession bool
	}{
		{"idle", vpn.Snapshot{}, "Not Connected", "Connect", true, false},
		{"connecting", vpn.Snapshot{Session: vpn.Session{Status: vpn.StatusConnecting}}, "Connecting", "Connect", false, false},
		{"connected", vpn.Snapshot{Session: vpn.Session{Status: vpn.StatusConnected, TunnelAddress: "10.8.0.45"}}, "10.8.0.45", "Disconnect", true, true},
		{"error", vpn.Snapshot{Session: vpn.Session{Status: vpn.StatusError, Detail: "CRITICAL_DROP_01"}}, "CRITICAL_DROP_01", "Connect", true, false},
		{"countdown", vpn.Snapshot{Session: vpn.Session{Status: vpn.StatusError}, Reconnect: vpn.ReconnectPolicy{Remaining: &three}}, "Reconnecting in 3s", "Connect", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := trayViewFor(tt.snap)
			if !strings.Contains(v.Status, tt.status) {
				t.Errorf("Status = %q, want to contain %q", v.Status, tt.status)
			}
			if !strings.Contains(v.Toggle, tt.toggle) || v.ToggleActive != tt.active {
				t.Errorf("Toggle = %q (active %v)", v.Toggle, v.ToggleActive)
			}
			if v.ShowSession != tt.showSession {
				t.Errorf("ShowSession = %v", v.ShowSession)
			}
		})
	}
}

func TestIconFor(t *testing.T) {
	statuses := []vpn.ConnectionStatus{
		vpn.StatusDisconnected, vpn.StatusConnecting, vpn.StatusConnected,
		vpn.StatusDisconnecting, vpn.StatusError,
	}

	for _, s := range statuses {
		t.Run(s.Key(), func(t *testing.T) {
			data := IconFor(s)
			img, err := png.Decode(bytes.NewReader(data))
			if err != nil {
				t.Fatalf("invalid PNG: %v", err)
			}
			if b := img.Bounds(); b.Dx() != 22 || b.Dy() != 22 {
				t.Errorf("bounds = %v", b)
			}
			if again := IconFor(s); !bytes.Equal(again, data) {
				t.Error("IconFor should return the cached icon")
			}
		})
	}

	if bytes.Equal(IconFor(vpn.StatusConnected), IconFor(vpn.StatusError)) {
		t.Error("connected and error icons should differ")
	}
}
