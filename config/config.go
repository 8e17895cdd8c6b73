// Package config holds the engine's static configuration, constructed
// the way the teacher's config package builds a Parameters struct: plain
// fields plus a DefaultParams-style constructor and a Validate method,
// no reflection-based config library (spec's ambient stack).
package config

import (
	"errors"
	"time"
)

var (
	ErrInvalidStageTimeout        = errors.New("config: stage timeout must be positive")
	ErrInvalidUnauthorisedTimeout = errors.New("config: unauthorised-ceremony timeout must be positive")
	ErrNoSchemesEnabled           = errors.New("config: at least one scheme must be enabled")
)

// Config is the engine's top-level configuration.
type Config struct {
	// StageTimeout bounds how long a Runner waits for a stage to
	// complete before forcing a blamed transition (spec §4.8).
	StageTimeout time.Duration

	// UnauthorisedTimeout bounds how long an Unauthorised Runner may
	// hold delayed first-stage messages before failing (spec §4.8).
	UnauthorisedTimeout time.Duration

	// TickInterval is how often the Manager's background tick drives
	// per-ceremony timeouts (spec §4.9).
	TickInterval time.Duration

	// EnabledSchemes lists the chain schemes this process runs a
	// Ceremony Manager for.
	EnabledSchemes []string

	// KeyDBPath is the on-disk path of the pebble-backed key store
	// (spec §6.3).
	KeyDBPath string

	// MetricsAddr is the listen address for the prometheus exposition
	// endpoint; empty disables it.
	MetricsAddr string
}

// Default returns the engine's default configuration.
func Default() Config {
	return Config{
		StageTimeout:        10 * time.Second,
		UnauthorisedTimeout: 20 * time.Second,
		TickInterval:        1 * time.Second,
		EnabledSchemes:      []string{"evm", "bitcoin", "polkadot", "solana"},
		KeyDBPath:           "./keydb",
		MetricsAddr:         ":9090",
	}
}

// Validate checks the configuration is internally consistent.
func (c Config) Validate() error {
	if c.StageTimeout <= 0 {
		return ErrInvalidStageTimeout
	}
	if c.UnauthorisedTimeout <= 0 {
		return ErrInvalidUnauthorisedTimeout
	}
	if len(c.EnabledSchemes) == 0 {
		return ErrNoSchemesEnabled
	}
	return nil
}
