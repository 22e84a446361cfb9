// Package common provides shared constants, types, and utilities
// used across the CILPEA VPN client.
package common

import "time"

// Application metadata.
const (
	// AppID is the unique identifier for the application.
	AppID = "com.cilpea.vpn"
	// AppName is the display name of the application.
	AppName = "CILPEA VPN"
	// CoreVersion is the version reported by the session core on startup.
	CoreVersion = "1.0.4"
	// ConfigDirName is the name of the configuration directory.
	ConfigDirName = "cilpea-vpn"
)

// File names used by the application.
const (
	ConfigFileName      = "config.yaml"
	CredentialsFileName = ".credentials"
	LogFileName         = "cilpea-vpn.log"
)

// Default timeouts and intervals.
const (
	// ConnectionTimeout bounds a single gateway call.
	ConnectionTimeout = 30 * time.Second
	// MonitorInterval is the telemetry and countdown tick.
	MonitorInterval = 1 * time.Second
	// ReconnectCountdown is the default auto-reconnect countdown in seconds.
	ReconnectCountdown = 5
	// GracePeriod is how long a failed connect stays in Error before
	// reverting to Disconnected when auto-reconnect is off.
	GracePeriod = 3 * time.Second
	// ShutdownTimeout bounds the disconnect issued on exit.
	ShutdownTimeout = 5 * time.Second
)

// Session defaults.
const (
	// DefaultTunnelAddress is the address assigned by the reference gateway.
	DefaultTunnelAddress = "10.8.0.45"
	// PlaceholderAddress is shown while no tunnel address is assigned.
	PlaceholderAddress = "---.---.---.---"
	// DefaultProtocol is the transport label of the reference gateway.
	DefaultProtocol = "UDP/443"
	// DefaultCipher is the cipher label shown while connected.
	DefaultCipher = "AES-256-GCM"
	// DefaultProfile names the gateway profile used for credential lookups.
	DefaultProfile = "default"
	// TelemetryWindowSize is the number of traffic samples kept for display.
	TelemetryWindowSize = 20
	// LogCapacity is the number of session log entries kept.
	LogCapacity = 50
)

// API defaults.
const (
	// DefaultAPIListen is the loopback address of the local status API.
	DefaultAPIListen = "127.0.0.1:3000"
	// APIVersion prefixes every API route.
	APIVersion = "v1"
)
