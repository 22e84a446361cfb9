package vpn

import (
	"fmt"
	"time"

	"github.com/yllada/cilpea-vpn/common"
)

// Common errors - re-exported from common package for convenience.
var (
	ErrAlreadyConnected     = common.ErrAlreadyConnected
	ErrNotConnected         = common.ErrNotConnected
	ErrTransitionInProgress = common.ErrTransitionInProgress
	ErrClosed               = common.ErrClosed
)

// ConnectionStatus represents the current state of the tunnel session.
type ConnectionStatus int

const (
	// StatusDisconnected indicates no active connection.
	StatusDisconnected ConnectionStatus = iota
	// StatusConnecting indicates a connection is being established.
	StatusConnecting
	// StatusConnected indicates an active, established connection.
	StatusConnected
	// StatusDisconnecting indicates the connection is being terminated.
	StatusDisconnecting
	// StatusError indicates the connection failed or was lost.
	StatusError
)

// String returns a human-readable representation of the connection status.
func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "Disconnected"
	case StatusConnecting:
		return "Connecting..."
	case StatusConnected:
		return "Connected"
	case StatusDisconnecting:
		return "Disconnecting..."
	case StatusError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Key returns the lowercase machine name used by the API and config.
func (s ConnectionStatus) Key() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusDisconnecting:
		return "disconnecting"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s ConnectionStatus) MarshalText() ([]byte, error) {
	return []byte(s.Key()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *ConnectionStatus) UnmarshalText(text []byte) error {
	for c := StatusDisconnected; c <= StatusError; c++ {
		if c.Key() == string(text) {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("unknown connection status %q", text)
}

// Severity classifies a log entry.
type Severity int

const (
	SeverityInfo Severity = iota
	SeveritySuccess
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeveritySuccess:
		return "success"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "info"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(text []byte) error {
	for v := SeverityInfo; v <= SeverityError; v++ {
		if v.String() == string(text) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown severity %q", text)
}

// FailureKind records which path last moved the session into StatusError.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureConnect
	FailureDisconnect
	FailureDrop
)

func (k FailureKind) String() string {
	switch k {
	case FailureConnect:
		return "connect"
	case FailureDisconnect:
		return "disconnect"
	case FailureDrop:
		return "drop"
	default:
		return "none"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k FailureKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *FailureKind) UnmarshalText(text []byte) error {
	for v := FailureNone; v <= FailureDrop; v++ {
		if v.String() == string(text) {
			*k = v
			return nil
		}
	}
	return fmt.Errorf("unknown failure kind %q", text)
}

// Retryable reports whether the reconnect countdown may recover from k.
// A failed disconnect leaves the user's intent ambiguous, so only connect
// failures and drops qualify.
func (k FailureKind) Retryable() bool {
	return k == FailureConnect || k == FailureDrop
}

// SessionStats holds the counters shown alongside the session.
type SessionStats struct {
	// Uptime is the elapsed connected time as HH:MM:SS.
	Uptime string `json:"uptime"`
	// BytesIn is the cumulative received byte count.
	BytesIn uint64 `json:"bytes_in"`
	// BytesOut is the cumulative sent byte count.
	BytesOut uint64 `json:"bytes_out"`
}

// Session is the single authoritative description of the tunnel.
type Session struct {
	Status        ConnectionStatus `json:"status"`
	Detail        string           `json:"detail"`
	TunnelAddress string           `json:"tunnel_address"`
	Protocol      string           `json:"protocol"`
	// ConnectedSince is set if and only if Status is StatusConnected.
	ConnectedSince *time.Time   `json:"connected_since,omitempty"`
	Stats          SessionStats `json:"stats"`
	Failure        FailureKind  `json:"failure"`
}

func newSession() Session {
	return Session{
		Status:        StatusDisconnected,
		Detail:        "Ready",
		TunnelAddress: common.PlaceholderAddress,
		Protocol:      common.DefaultProtocol,
		Stats:         SessionStats{Uptime: FormatUptime(0)},
	}
}

func (s Session) clone() Session {
	if s.ConnectedSince != nil {
		since := *s.ConnectedSince
		s.ConnectedSince = &since
	}
	return s
}

// TrafficSample is one telemetry point in bytes/sec-equivalent units.
type TrafficSample struct {
	Timestamp time.Time `json:"timestamp"`
	Upload    int       `json:"upload"`
	Download  int       `json:"download"`
}

// IsZero reports whether both rates are zero.
func (s TrafficSample) IsZero() bool {
	return s.Upload == 0 && s.Download == 0
}

// ReconnectPolicy is the live auto-reconnect configuration and countdown.
type ReconnectPolicy struct {
	Enabled          bool `json:"enabled"`
	CountdownSeconds int  `json:"countdown_seconds"`
	// Remaining is nil unless a countdown is pending.
	Remaining *int `json:"remaining"`
}

func (p ReconnectPolicy) clone() ReconnectPolicy {
	if p.Remaining != nil {
		r := *p.Remaining
		p.Remaining = &r
	}
	return p
}

// Snapshot is an immutable copy of everything a presentation layer reads.
type Snapshot struct {
	Session   Session         `json:"session"`
	Telemetry []TrafficSample `json:"telemetry"`
	Logs      []LogEntry      `json:"logs"`
	Reconnect ReconnectPolicy `json:"reconnect"`
}
