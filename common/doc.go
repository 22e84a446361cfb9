// Package common provides shared constants, types, utilities, and interfaces
// used throughout the CILPEA VPN client.
//
// This package serves as the foundation for cross-cutting concerns:
//
//   - Constants: Application-wide constants like timeouts, file names, and labels
//   - Errors: Sentinel errors and the coded GatewayError
//   - Interfaces: Abstractions for the tunnel gateway, credential storage, and logging
//   - Logger: Levelled logging with optional rotated file output
//   - Utils: Directory helpers and display formatting
//
// # Usage
//
//	import "github.com/yllada/cilpea-vpn/common"
//
//	// Use logger
//	common.LogInfo("Gateway %s answered in %v", profile, latency)
//
//	// Check errors
//	if errors.Is(err, common.ErrAlreadyConnected) {
//	    // Command was a no-op
//	}
//
//	// Extract a gateway failure code
//	code := common.FailureCode(err, "CONNECT_FAILED")
package common
