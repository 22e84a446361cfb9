package ui

import (
	"fmt"

	"fyne.io/systray"
	"github.com/yllada/cilpea-vpn/common"
	"github.com/yllada/cilpea-vpn/vpn"
)

// trayView is the text shown by the tray for one snapshot.
type trayView struct {
	Tooltip      string
	Status       string
	Detail       string
	Uptime       string
	Toggle       string
	ToggleActive bool
	ShowSession  bool
}

func trayViewFor(snap vpn.Snapshot) trayView {
	s := snap.Session
	v := trayView{
		Tooltip: fmt.Sprintf("%s - %s", common.AppName, s.Status),
		Detail:  "    " + s.Detail,
		Uptime:  "    ⏱ Uptime: " + s.Stats.Uptime,
	}

	switch s.Status {
	case vpn.StatusConnected:
		v.Status = "●  Connected: " + s.TunnelAddress
		v.Toggle = "⏹  Disconnect"
		v.ToggleActive = true
		v.ShowSession = true
	case vpn.StatusConnecting:
		v.Status = "⟳  Connecting..."
		v.Toggle = "Connect"
	case vpn.StatusDisconnecting:
		v.Status = "⟳  Disconnecting..."
		v.Toggle = "⏹  Disconnect"
	case vpn.StatusError:
		v.Status = "✕  Error: " + s.Detail
		v.Toggle = "Connect"
		v.ToggleActive = true
	default:
		v.Status = "○  Not Connected"
		v.Toggle = "Connect"
		v.ToggleActive = true
	}

	if r := snap.Reconnect.Remaining; r != nil {
		v.Status = fmt.Sprintf("⟳  Reconnecting in %ds", *r)
		v.Tooltip = fmt.Sprintf("%s - Reconnecting in %ds", common.AppName, *r)
	}
	return v
}

// TrayIndicator manages the system tray icon and menu.
type TrayIndicator struct {
	ctrl   Controller
	onQuit func()

	statusItem *systray.MenuItem
	detailItem *systray.MenuItem
	uptimeItem *systray.MenuItem
	toggleItem *systray.MenuItem
	autoItem   *systray.MenuItem
	dropItem   *systray.MenuItem

	unsubscribe func()
	lastStatus  vpn.ConnectionStatus
}

// NewTrayIndicator creates a tray over ctrl. onQuit runs when the user
// picks Quit.
func NewTrayIndicator(ctrl Controller, onQuit func()) *TrayIndicator {
	return &TrayIndicator{ctrl: ctrl, onQuit: onQuit, lastStatus: -1}
}

// Run starts the system tray indicator.
// It blocks until Quit is selected or systray.Quit is called.
func (t *TrayIndicator) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit stops the tray loop.
func (t *TrayIndicator) Quit() {
	systray.Quit()
}

func (t *TrayIndicator) onReady() {
	systray.SetTitle(common.AppName)

	t.statusItem = systray.AddMenuItem("○  Not Connected", "Current VPN status")
	t.statusItem.Disable()
	t.detailItem = systray.AddMenuItem("", "Cipher")
	t.detailItem.Disable()
	t.uptimeItem = systray.AddMenuItem("", "Connection duration")
	t.uptimeItem.Disable()

	systray.AddSeparator()

	t.toggleItem = systray.AddMenuItem("Connect", "Connect or disconnect")
	t.autoItem = systray.AddMenuItemCheckbox("Auto-reconnect", "Retry after failures", false)
	t.dropItem = systray.AddMenuItem("Simulate Drop", "Report a connection drop")

	systray.AddSeparator()
	quitItem := systray.AddMenuItem("Quit", "Close "+common.AppName)

	go func() {
		for range t.toggleItem.ClickedCh {
			t.toggle()
		}
	}()
	go func() {
		for range t.autoItem.ClickedCh {
			enabled := !t.ctrl.Snapshot().Reconnect.Enabled
			t.report(t.ctrl.SetAutoReconnect(enabled))
		}
	}()
	go func() {
		for range t.dropItem.ClickedCh {
			t.report(t.ctrl.ReportExternalDrop())
		}
	}()
	go func() {
		<-quitItem.ClickedCh
		systray.Quit()
	}()

	updates, unsubscribe := t.ctrl.Subscribe()
	t.unsubscribe = unsubscribe
	t.render(t.ctrl.Snapshot())
	go func() {
		for range updates {
			t.render(t.ctrl.Snapshot())
		}
	}()
}

func (t *TrayIndicator) onExit() {
	if t.unsubscribe != nil {
		t.unsubscribe()
	}
	if t.onQuit != nil {
		t.onQuit()
	}
	common.LogInfo("Tray indicator cleanup completed")
}

func (t *TrayIndicator) toggle() {
	switch t.ctrl.Snapshot().Session.Status {
	case vpn.StatusConnected:
		t.report(t.ctrl.RequestDisconnect())
	case vpn.StatusDisconnected, vpn.StatusError:
		t.report(t.ctrl.RequestConnect())
	}
}

func (t *TrayIndicator) report(err error) {
	if err != nil {
		common.LogDebug("Tray command rejected: %v", err)
	}
}

func (t *TrayIndicator) render(snap vpn.Snapshot) {
	v := trayViewFor(snap)

	if snap.Session.Status != t.lastStatus {
		systray.SetIcon(IconFor(snap.Session.Status))
		t.lastStatus = snap.Session.Status
	}
	systray.SetTooltip(v.Tooltip)
	t.statusItem.SetTitle(v.Status)

	t.detailItem.SetTitle(v.Detail)
	t.uptimeItem.SetTitle(v.Uptime)
	if v.ShowSession {
		t.detailItem.Show()
		t.uptimeItem.Show()
	} else {
		t.detailItem.Hide()
		t.uptimeItem.Hide()
	}

	t.toggleItem.SetTitle(v.Toggle)
	if v.ToggleActive {
		t.toggleItem.Enable()
	} else {
		t.toggleItem.Disable()
	}

	if snap.Reconnect.Enabled {
		t.autoItem.Check()
	} else {
		t.autoItem.Uncheck()
	}

	if snap.Session.Status == vpn.StatusConnected {
		t.dropItem.Enable()
	} else {
		t.dropItem.Disable()
	}
}
