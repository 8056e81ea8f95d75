package demoserver

import "time"

// Config holds configuration for the demo scanner service.
type Config struct {
	// Port is the port on which the demo server listens.
	Port int

	// InitialVersion is the starting site profile (default: 1).
	InitialVersion int

	// Latency is added to every scan endpoint to make progress visible.
	Latency time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Port:           8090,
		InitialVersion: 1,
	}
}
