// Package config provides configuration management for the router directory
// subsystem.
package config

import (
	"fmt"
)

// Config holds the settings the directory subsystem needs from its host
// daemon: where to find a trusted directory authority key, how to recognize
// the local node's own descriptor, and which software version to advertise
// against a signed directory's recommended-software line.
//
// Full daemon configuration (SOCKS/control ports, circuit policy, onion
// service definitions, hot-reload, JSON-schema generation) is out of scope:
// spec.md lists "configuration loading" among the external collaborators
// this core does not own.
type Config struct {
	// TrustedAuthorityKeyPath points to a PEM-encoded RSA public key file
	// used to verify a signed directory's signature. Empty means parse
	// without verification (the directory is still structurally checked).
	TrustedAuthorityKeyPath string

	// LocalAddress and LocalORPort identify this node's own advertised
	// endpoint, used to detect and detach "my own" descriptor during
	// directory resolution.
	LocalAddress string
	LocalORPort  uint16

	// SoftwareVersion is this node's own version string, checked against
	// a signed directory's recommended-software line.
	SoftwareVersion string

	// LogLevel selects the structured logger's verbosity: debug, info,
	// warn, or error.
	LogLevel string
}

// DefaultConfig returns a Config with sensible defaults. Callers must still
// set LocalAddress/LocalORPort and SoftwareVersion before installing a
// directory, and TrustedAuthorityKeyPath if its signature is to be verified.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
	}
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid LogLevel: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// Clone creates a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}
