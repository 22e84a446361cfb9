// Package common provides shared constants, types, and utilities
// used across the CILPEA VPN client.
package common

import (
	"context"
	"errors"
)

// Sentinel errors for session operations.
// These can be checked with errors.Is() for proper error handling.
var (
	// Command rejections. The session is left untouched when these are returned.
	ErrAlreadyConnected     = errors.New("connection already active")
	ErrNotConnected         = errors.New("no active connection")
	ErrTransitionInProgress = errors.New("another transition is in progress")
	ErrClosed               = errors.New("session controller closed")

	// Gateway errors.
	ErrConnectionFailed = errors.New("connection failed")
	ErrTimeout          = errors.New("operation timed out")

	// Credential errors.
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrCredentialStorage   = errors.New("failed to store credentials")

	// Configuration errors.
	ErrConfigLoad = errors.New("failed to load configuration")
	ErrConfigSave = errors.New("failed to save configuration")
)

// Failure codes written into the session detail.
const (
	CodeConnectFailed    = "CONNECT_FAILED"
	CodeDisconnectFailed = "DISCONNECT_FAILED"
	CodeGatewayTimeout   = "GATEWAY_TIMEOUT"
	CodeAuthFailed       = "AUTH_FAILED"
	CodeHandshakeFailed  = "TLS_HANDSHAKE_FAILED"
	CodeCriticalDrop     = "CRITICAL_DROP_01"
	CodeHealthCheck      = "HEALTH_CHECK_FAILED"
)

// GatewayError is a coded failure reported by a TunnelGateway.
type GatewayError struct {
	Code string
	Err  error
}

func (e *GatewayError) Error() string {
	if e.Err == nil {
		return e.Code
	}
	return e.Code + ": " + e.Err.Error()
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// FailureCode returns the code carried by err, or fallback when err is not
// a GatewayError. Deadline errors map to CodeGatewayTimeout.
func FailureCode(err error, fallback string) string {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) && gwErr.Code != "" {
		return gwErr.Code
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrTimeout) {
		return CodeGatewayTimeout
	}
	return fallback
}

// WrapError wraps an error with additional context.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return &wrappedError{
		msg: message,
		err: err,
	}
}

type wrappedError struct {
	msg string
	err error
}

func (e *wrappedError) Error() string {
	return e.msg + ": " + e.err.Error()
}

func (e *wrappedError) Unwrap() error {
	return e.err
}
