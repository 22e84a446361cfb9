// Package common provides shared constants, types, and utilities
// used across the CILPEA VPN client.
package common

import (
	"context"
	"time"
)

// TunnelInfo describes an established tunnel as reported by the gateway.
type TunnelInfo struct {
	// Address is the virtual tunnel IP assigned to the client.
	Address string
	// Protocol is the transport label, e.g. "UDP/443".
	Protocol string
	// Cipher is the negotiated cipher label.
	Cipher string
}

// TunnelGateway performs the actual connect and disconnect operations.
// Both calls may block; implementations must honour ctx cancellation.
type TunnelGateway interface {
	// Connect establishes the tunnel.
	Connect(ctx context.Context) (TunnelInfo, error)
	// Disconnect tears the tunnel down.
	Disconnect(ctx context.Context) error
}

// DropNotifier is implemented by gateways that detect tunnel loss on their
// own. The handler receives a human-readable drop code and reports whether
// the session accepted the drop.
type DropNotifier interface {
	OnDrop(handler func(code string) error)
}

// Prober is implemented by gateways that can test the tunnel path.
// Probe returns the round-trip latency.
type Prober interface {
	Probe(ctx context.Context) (time.Duration, error)
}

// CredentialStore defines the interface for credential storage.
// Implementations may use system keyring, encrypted files, etc.
type CredentialStore interface {
	// Store saves the secret for a profile.
	Store(profileID, secret string) error
	// Get retrieves the secret for a profile.
	Get(profileID string) (string, error)
	// Delete removes the secret for a profile.
	Delete(profileID string) error
}

// Notifier defines the interface for sending notifications.
type Notifier interface {
	// Notify sends a notification with the given title and message.
	Notify(title, message string) error
	// NotifyWithIcon sends a notification with a custom icon.
	NotifyWithIcon(title, message, icon string) error
}

// Logger defines the interface for structured logging.
type Logger interface {
	// Debug logs a debug message.
	Debug(msg string, args ...interface{})
	// Info logs an informational message.
	Info(msg string, args ...interface{})
	// Warn logs a warning message.
	Warn(msg string, args ...interface{})
	// Error logs an error message.
	Error(msg string, args ...interface{})
}
