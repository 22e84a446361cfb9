package ui

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/yllada/cilpea-vpn/vpn"
)

func TestNotificationFor(t *testing.T) {
	tests := []struct {
		name      string
		prev, cur vpn.Session
		want      string
		typ       NotificationType
	}{
		{
			name: "connected",
			prev: vpn.Session{Status: vpn.StatusConnecting},
			cur:  vpn.Session{Status: vpn.StatusConnected, TunnelAddress: "10.8.0.45", Protocol: "UDP/443"},
			want: "VPN Connected",
			typ:  NotificationSuccess,
		},
		{
			name: "connect failure",
			prev: vpn.Session{Status: vpn.StatusConnecting},
			cur:  vpn.Session{Status: vpn.StatusError, Detail: "TLS_HANDSHAKE_FAILED", Failure: vpn.FailureConnect},
			want: "Connection Error",
			typ:  NotificationError,
		},
		{
			name: "drop",
			prev: vpn.Session{Status: vpn.StatusConnected},
			cur:  vpn.Session{Status: vpn.StatusError, Detail: "CRITICAL_DROP_01", Failure: vpn.FailureDrop},
			want: "Connection Lost",
			typ:  NotificationError,
		},
		{
			name: "user disconnect",
			prev: vpn.Session{Status: vpn.StatusDisconnecting},
			cur:  vpn.Session{Status: vpn.StatusDisconnected},
			want: "VPN Disconnected",
			typ:  NotificationInfo,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			note, ok := notificationFor(tt.prev, tt.cur)
			if !ok {
				t.Fatal("expected a notification")
			}
			if note.Title != tt.want || note.Type != tt.typ {
				t.Errorf("note = %+v", note)
			}
		})
	}
}

func TestNotificationFor_Silent(t *testing.T) {
	tests := []struct {
		name      string
		prev, cur vpn.ConnectionStatus
	}{
		{"unchanged", vpn.StatusConnected, vpn.StatusConnected},
		{"grace reset", vpn.StatusError, vpn.StatusDisconnected},
		{"connecting", vpn.StatusDisconnected, vpn.StatusConnecting},
		{"disconnecting", vpn.StatusConnected, vpn.StatusDisconnecting},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if note, ok := notificationFor(vpn.Session{Status: tt.prev}, vpn.Session{Status: tt.cur}); ok {
				t.Errorf("unexpected notification %+v", note)
			}
		})
	}
}

func TestNotificationType_Urgency(t *testing.T) {
	if NotificationError.urgency() != 2 || NotificationWarning.urgency() != 1 || NotificationInfo.urgency() != 0 {
		t.Error("unexpected urgency mapping")
	}
}

type recordingSender struct {
	mu    sync.Mutex
	notes []Notification
}

func (r *recordingSender) Send(n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
	return nil
}

func (r *recordingSender) titles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.notes))
	for i, n := range r.notes {
		out[i] = n.Title
	}
	return out
}

func TestWatchNotifications(t *testing.T) {
	ctrl := newFakeController(vpn.StatusConnecting)
	sender := &recordingSender{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		WatchNotifications(ctx, ctrl, sender)
		close(done)
	}()

	ctrl.setSession(vpn.Session{Status: vpn.StatusConnected})

	deadline := time.Now().Add(2 * time.Second)
	for len(sender.titles()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := sender.titles(); len(got) != 1 || got[0] != "VPN Connected" {
		t.Errorf("titles = %v", got)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("WatchNotifications did not return after cancel")
	}
}
