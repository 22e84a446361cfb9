// Package common provides shared constants, types, and utilities
// used across the CILPEA VPN client.
package common

import (
	"fmt"
	"os"
	"path/filepath"
)

// MiB is one mebibyte.
const MiB = 1024 * 1024

// GetConfigDir returns the path to the application configuration directory.
// It creates the directory if it doesn't exist.
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", WrapError(err, "failed to get home directory")
	}

	configDir := filepath.Join(homeDir, ".config", ConfigDirName)
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", WrapError(err, "failed to create config directory")
	}

	return configDir, nil
}

// FileExists checks if a file exists at the given path.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// FormatMegabytes renders a byte count the way the dashboard shows
// cumulative traffic, e.g. "12.3 MB".
func FormatMegabytes(bytes uint64) string {
	return fmt.Sprintf("%.1f MB", float64(bytes)/MiB)
}
