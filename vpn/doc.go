// Package vpn provides the tunnel session controller for CILPEA VPN.
//
// This package implements the client-side session lifecycle:
//
//   - Session state machine: connect, disconnect, drop handling and
//     auto-reconnect policy
//   - Telemetry: per-tick traffic samples, cumulative counters and uptime
//   - Event log: a bounded FIFO of timestamped entries
//   - Health checking: probing a connected tunnel and reporting drops
//
// # Architecture
//
// The package is organized around a few types:
//
//   - Manager: owns the Session and is the only caller of the gateway
//   - TelemetrySimulator: traffic and uptime ticks while Connected
//   - ReconnectScheduler: the countdown that re-issues a connect
//   - LogBuffer and TelemetryWindow: bounded histories read through snapshots
//
// # Connection Flow
//
// A typical connection flow:
//
//  1. The UI or API calls Manager.RequestConnect()
//  2. Manager validates the current status, moves to Connecting and calls
//     the gateway on its own goroutine
//  3. The gateway result is posted back to the event loop
//  4. Manager moves to Connected or Error and starts telemetry or the
//     reconnect countdown
//  5. Subscribers are notified and read a fresh Snapshot
//
// # Thread Safety
//
// Manager runs every mutation on a single event-loop goroutine, so commands
// never interleave mid-transition. Commands and Snapshot are safe for
// concurrent use. LogBuffer, TelemetryWindow and the schedulers are not; they
// are owned by the loop.
package vpn
