// Package ui provides the interactive front ends for CILPEA VPN.
//
// This package implements:
//
//   - Model: a bubbletea terminal dashboard with the status badge, the
//     power toggle, the auto-reconnect switch, traffic sparklines and the
//     session log
//   - TrayIndicator: a system tray menu for background operation
//   - DesktopNotifier: freedesktop notifications sent over D-Bus
//
// # Updates
//
// Every front end drives a Controller (normally *vpn.Manager) and never
// mutates session state itself. State changes arrive through
// Controller.Subscribe; on each wake-up the front end reads a fresh
// Snapshot and re-renders.
//
// The dashboard turns the subscription into tea messages:
//
//	func waitForUpdate(updates <-chan struct{}, ctrl Controller) tea.Cmd {
//	    return func() tea.Msg {
//	        <-updates
//	        return snapshotMsg{snap: ctrl.Snapshot()}
//	    }
//	}
//
// # File Organization
//
//   - model.go: dashboard model, update loop and layout
//   - render.go: badge, sparkline and log rendering
//   - keys.go: key bindings
//   - styles.go: lipgloss palette
//   - tray.go: system tray indicator
//   - icons.go: icon generation for the tray
//   - notifications.go: desktop notification integration
package ui
