// Package cli wires the session controller from configuration and provides
// the non-interactive commands: headless run, status and credentials.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/yllada/cilpea-vpn/api"
	"github.com/yllada/cilpea-vpn/common"
	"github.com/yllada/cilpea-vpn/config"
	"github.com/yllada/cilpea-vpn/gateway"
	"github.com/yllada/cilpea-vpn/keyring"
	"github.com/yllada/cilpea-vpn/vpn"
)

// App holds the session controller and everything attached to it.
type App struct {
	Config      *config.Config
	Manager     *vpn.Manager
	Gateway     *gateway.Simulated
	Credentials common.CredentialStore
	Health      *vpn.HealthChecker
	API         *api.Server

	ctrl *Controller
}

// New builds an App from cfg. Nothing runs until Start.
func New(cfg *config.Config, creds common.CredentialStore) *App {
	if creds == nil {
		creds = keyring.Default()
	}

	g := cfg.Gateway
	gw := gateway.New(gateway.Options{
		ProfileID:          g.Profile,
		Address:            g.Address,
		Protocol:           g.Protocol,
		Cipher:             g.Cipher,
		ConnectLatency:     time.Duration(g.ConnectLatencyMS) * time.Millisecond,
		ConnectJitter:      time.Duration(g.ConnectJitterMS) * time.Millisecond,
		DisconnectLatency:  time.Duration(g.DisconnectLatencyMS) * time.Millisecond,
		FailureRate:        g.FailureRate,
		ProbeLossRate:      g.ProbeLossRate,
		RequireCredentials: g.RequireCredentials,
		Credentials:        creds,
	})

	opts := vpn.DefaultOptions()
	opts.AutoReconnect = cfg.AutoReconnect
	opts.CountdownSeconds = cfg.ReconnectCountdown
	opts.GracePeriod = cfg.GracePeriodDuration()
	opts.GatewayTimeout = g.Timeout()
	mgr := vpn.NewManager(gw, opts)

	app := &App{
		Config:      cfg,
		Manager:     mgr,
		Gateway:     gw,
		Credentials: creds,
		ctrl:        &Controller{Manager: mgr, gw: gw},
	}

	if cfg.Health.Enabled {
		app.Health = vpn.NewHealthChecker(mgr, gw, vpn.HealthConfig{
			CheckInterval:    cfg.Health.Interval(),
			FailureThreshold: cfg.Health.FailureThreshold,
		})
		app.Health.SetOnHealthChange(func(oldState, newState vpn.HealthState) {
			common.LogDebug("Tunnel health: %s -> %s", oldState, newState)
		})
	}

	if cfg.API.Enabled {
		app.API = api.NewServer(app.ctrl, api.ServerOptions{
			Addr:      cfg.API.Listen,
			RateLimit: cfg.API.RateLimit,
			Burst:     cfg.API.Burst,
		})
	}

	return app
}

// Controller returns the controller front ends should drive.
func (a *App) Controller() *Controller {
	return a.ctrl
}

// Start launches the optional health checker and API server.
func (a *App) Start() error {
	if a.Health != nil {
		a.Health.Start()
	}
	if a.API != nil {
		if err := a.API.Start(); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
	}
	return nil
}

// Close stops the API server, the health checker and the manager.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.API != nil {
		if err := a.API.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Health != nil {
		a.Health.Stop()
	}
	if err := a.Manager.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Controller is the Manager with drops routed through the gateway, so a
// simulated drop also takes the tunnel down.
type Controller struct {
	*vpn.Manager
	gw *gateway.Simulated
}

// ReportExternalDrop cuts the simulated tunnel. The gateway's drop
// notification then moves the session into Error, and a rejection by the
// Manager is returned to the caller.
func (c *Controller) ReportExternalDrop() error {
	if c.Snapshot().Session.Status != vpn.StatusConnected {
		return vpn.ErrNotConnected
	}
	if !c.gw.Connected() {
		return c.Manager.ReportExternalDrop()
	}
	return c.gw.SimulateDrop(common.CodeCriticalDrop)
}

// RunHeadless connects and prints session log entries to out until ctx is
// done, then disconnects.
func RunHeadless(ctx context.Context, ctrl *Controller, out io.Writer) error {
	updates, unsubscribe := ctrl.Subscribe()
	defer unsubscribe()

	var lastID string
	flush := func() vpn.Snapshot {
		snap := ctrl.Snapshot()
		for _, e := range newEntries(snap.Logs, lastID) {
			fmt.Fprintln(out, formatEntry(e))
			lastID = e.ID
		}
		return snap
	}

	flush()
	if err := ctrl.RequestConnect(); err != nil && !errors.Is(err, vpn.ErrAlreadyConnected) {
		return fmt.Errorf("connect: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return shutdown(ctrl, updates, flush)
		case _, ok := <-updates:
			if !ok {
				return nil
			}
			flush()
		}
	}
}

// shutdown disconnects and waits for the session to settle.
func shutdown(ctrl *Controller, updates <-chan struct{}, flush func() vpn.Snapshot) error {
	if err := ctrl.RequestDisconnect(); err != nil {
		if errors.Is(err, vpn.ErrNotConnected) {
			flush()
			return nil
		}
		common.LogWarn("Disconnect on shutdown: %v", err)
	}

	timeout := time.After(common.ConnectionTimeout)
	for {
		select {
		case <-timeout:
			flush()
			return fmt.Errorf("disconnect: %w", common.ErrTimeout)
		case _, ok := <-updates:
			snap := flush()
			if !ok {
				return nil
			}
			switch snap.Session.Status {
			case vpn.StatusDisconnected, vpn.StatusError:
				return nil
			case vpn.StatusConnected:
				// A connect that was in flight finished; tear it down.
				_ = ctrl.RequestDisconnect()
			}
		}
	}
}

// newEntries returns the entries after lastID. When lastID has been evicted
// every entry is new.
func newEntries(logs []vpn.LogEntry, lastID string) []vpn.LogEntry {
	if lastID == "" {
		return logs
	}
	for i, e := range logs {
		if e.ID == lastID {
			return logs[i+1:]
		}
	}
	return logs
}

func formatEntry(e vpn.LogEntry) string {
	msg := e.Message
	if e.Severity == vpn.SeveritySuccess {
		msg = "> " + msg
	}
	return fmt.Sprintf("[%s] %-7s %s", e.Timestamp.Format("15:04:05"), strings.ToUpper(e.Severity.String()), msg)
}

// FetchStatus reads the session snapshot from a running API server.
func FetchStatus(ctx context.Context, baseURL string) (vpn.Snapshot, error) {
	var snap vpn.Snapshot

	url := strings.TrimRight(baseURL, "/") + "/" + common.APIVersion + "/status"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return snap, err
	}

	client := &http.Client{Timeout: common.ShutdownTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return snap, fmt.Errorf("querying %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr api.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return snap, fmt.Errorf("status request failed: %s %s", resp.Status, apiErr.Error)
	}

	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return snap, fmt.Errorf("decoding status: %w", err)
	}
	return snap, nil
}

// PrintStatus writes a session summary table.
func PrintStatus(out io.Writer, snap vpn.Snapshot) error {
	s := snap.Session

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STATUS\tDETAIL\tADDRESS\tPROTOCOL\tUPTIME\tDOWN\tUP")
	fmt.Fprintln(w, "------\t------\t-------\t--------\t------\t----\t--")
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
		s.Status, s.Detail, s.TunnelAddress, orDash(s.Protocol), s.Stats.Uptime,
		common.FormatMegabytes(s.Stats.BytesIn), common.FormatMegabytes(s.Stats.BytesOut))
	if err := w.Flush(); err != nil {
		return err
	}

	auto := "off"
	if snap.Reconnect.Enabled {
		auto = "on"
	}
	fmt.Fprintf(out, "\nAuto-reconnect: %s (countdown %ds)", auto, snap.Reconnect.CountdownSeconds)
	if r := snap.Reconnect.Remaining; r != nil {
		fmt.Fprintf(out, ", retrying in %ds", *r)
	}
	fmt.Fprintln(out)
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// SetCredential stores the gateway secret for profile.
func SetCredential(store common.CredentialStore, profile, secret string) error {
	secret = strings.TrimSpace(secret)
	if err := store.Store(profile, secret); err != nil {
		return fmt.Errorf("storing credentials for %s: %w", profile, err)
	}
	return nil
}

// DeleteCredential removes the gateway secret for profile.
func DeleteCredential(store common.CredentialStore, profile string) error {
	if err := store.Delete(profile); err != nil {
		return fmt.Errorf("deleting credentials for %s: %w", profile, err)
	}
	return nil
}
