package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yllada/cilpea-vpn/common"
	"github.com/yllada/cilpea-vpn/config"
	"github.com/yllada/cilpea-vpn/vpn"
)

type memStore map[string]string

func (m memStore) Store(id, secret string) error {
	if secret == "" {
		return errors.New("empty secret")
	}
	m[id] = secret
	return nil
}
func (m memStore) Delete(id string) error { delete(m, id); return nil }
func (m memStore) Get(id string) (string, error) {
	if s, ok := m[id]; ok {
		return s, nil
	}
	return "", common.ErrCredentialsNotFound
}

// syncBuffer is a bytes.Buffer safe for one writer and one reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func fastConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Gateway.ConnectLatencyMS = 0
	cfg.Gateway.ConnectJitterMS = 0
	cfg.Gateway.DisconnectLatencyMS = 0
	return cfg
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNewEntries(t *testing.T) {
	logs := []vpn.LogEntry{{ID: "a"}, {ID: "b"}, {ID: "c"}}

	tests := []struct {
		name   string
		lastID string
		want   int
	}{
		{"first read", "", 3},
		{"after first", "a", 2},
		{"up to date", "c", 0},
		{"evicted", "zz", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := newEntries(logs, tt.lastID); len(got) != tt.want {
				t.Errorf("newEntries(%q) returned %d entries, want %d", tt.lastID, len(got), tt.want)
			}
		})
	}
}

func TestFormatEntry(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 5, 7, 0, time.UTC)

	got := formatEntry(vpn.LogEntry{Timestamp: at, Message: "Initialization Sequence Completed.", Severity: vpn.SeveritySuccess})
	if got != "[09:05:07] SUCCESS > Initialization Sequence Completed." {
		t.Errorf("formatEntry = %q", got)
	}

	got = formatEntry(vpn.LogEntry{Timestamp: at, Message: "x", Severity: vpn.SeverityInfo})
	if got != "[09:05:07] INFO    x" {
		t.Errorf("formatEntry = %q", got)
	}
}

func TestPrintStatus(t *testing.T) {
	n := 4
	snap := vpn.Snapshot{
		Session: vpn.Session{
			Status:        vpn.StatusError,
			Detail:        "CRITICAL_DROP_01",
			TunnelAddress: "10.8.0.45",
			Stats:         vpn.SessionStats{Uptime: "00:00:00", BytesIn: common.MiB},
		},
		Reconnect: vpn.ReconnectPolicy{Enabled: true, CountdownSeconds: 5, Remaining: &n},
	}

	var out bytes.Buffer
	if err := PrintStatus(&out, snap); err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{"Error", "CRITICAL_DROP_01", "10.8.0.45", "1.0 MB", "Auto-reconnect: on", "retrying in 4s"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestFetchStatus(t *testing.T) {
	snap := vpn.Snapshot{Session: vpn.Session{Status: vpn.StatusConnected, TunnelAddress: "10.8.0.45"}}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/status" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(snap)
	}))
	defer srv.Close()

	got, err := FetchStatus(context.Background(), srv.URL+"/")
	if err != nil {
		t.Fatalf("FetchStatus() error = %v", err)
	}
	if got.Session.Status != vpn.StatusConnected || got.Session.TunnelAddress != "10.8.0.45" {
		t.Errorf("session = %+v", got.Session)
	}
}

func TestFetchStatus_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"session controller closed"}`))
	}))
	defer srv.Close()

	_, err := FetchStatus(context.Background(), srv.URL)
	if err == nil || !strings.Contains(err.Error(), "session controller closed") {
		t.Errorf("FetchStatus() error = %v", err)
	}
}

func TestCredentials(t *testing.T) {
	store := memStore{}

	if err := SetCredential(store, "office", "  key-1\n"); err != nil {
		t.Fatalf("SetCredential() error = %v", err)
	}
	if store["office"] != "key-1" {
		t.Errorf("stored %q, want trimmed secret", store["office"])
	}
	if err := SetCredential(store, "office", "   "); err == nil {
		t.Error("SetCredential should reject a blank secret")
	}

	if err := DeleteCredential(store, "office"); err != nil {
		t.Fatalf("DeleteCredential() error = %v", err)
	}
	if _, ok := store["office"]; ok {
		t.Error("secret still present")
	}
}

func TestApp_RequiresCredentials(t *testing.T) {
	cfg := fastConfig()
	cfg.Gateway.RequireCredentials = true
	app := New(cfg, memStore{})
	t.Cleanup(func() { _ = app.Close(context.Background()) })

	if err := app.Manager.RequestConnect(); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return app.Manager.Snapshot().Session.Status == vpn.StatusError })

	if got := app.Manager.Snapshot().Session.Detail; got != common.CodeAuthFailed {
		t.Errorf("Detail = %q, want %s", got, common.CodeAuthFailed)
	}
}

func TestController_DropGoesThroughGateway(t *testing.T) {
	app := New(fastConfig(), memStore{})
	t.Cleanup(func() { _ = app.Close(context.Background()) })
	ctrl := app.Controller()

	if err := ctrl.ReportExternalDrop(); !errors.Is(err, vpn.ErrNotConnected) {
		t.Errorf("drop while idle error = %v, want ErrNotConnected", err)
	}

	if err := ctrl.RequestConnect(); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return ctrl.Snapshot().Session.Status == vpn.StatusConnected })

	if err := ctrl.ReportExternalDrop(); err != nil {
		t.Fatalf("ReportExternalDrop() error = %v", err)
	}
	snap := ctrl.Snapshot()
	if snap.Session.Status != vpn.StatusError || snap.Session.Detail != common.CodeCriticalDrop {
		t.Errorf("session = %+v", snap.Session)
	}
	if app.Gateway.Connected() {
		t.Error("gateway should be down after a drop")
	}
}

func TestRunHeadless(t *testing.T) {
	cfg := fastConfig()
	cfg.API.Enabled = true
	cfg.API.Listen = "127.0.0.1:0"
	app := New(cfg, memStore{})
	t.Cleanup(func() { _ = app.Close(context.Background()) })
	if err := app.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() { done <- RunHeadless(ctx, app.Controller(), out) }()

	waitFor(t, func() bool { return app.Manager.Snapshot().Session.Status == vpn.StatusConnected })

	snap, err := FetchStatus(context.Background(), "http://"+app.API.Addr())
	if err != nil {
		t.Fatalf("FetchStatus() error = %v", err)
	}
	if snap.Session.Status != vpn.StatusConnected {
		t.Errorf("API status = %s", snap.Session.Status)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("RunHeadless() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("RunHeadless did not return")
	}

	if got := app.Manager.Snapshot().Session.Status; got != vpn.StatusDisconnected {
		t.Errorf("status after shutdown = %s", got)
	}
	for _, want := range []string{"Initiating connection sequence...", "> Initialization Sequence Completed.", "Connection terminated by user."} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}
