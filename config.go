package batchgate

import "time"

// Config holds configuration for the Launcher.
type Config struct {
	// Capacity is the number of admission permits: the maximum number of
	// jobs that may be in flight (queued or executing) at once. Must be
	// at least 1.
	Capacity int

	// IntakeCapacity is the worker pool's intake queue size. Accepted
	// jobs wait here for a free worker. Sizing it below Capacity makes
	// pool rejections possible despite an available permit.
	IntakeCapacity int

	// Workers is the number of worker goroutines executing jobs.
	Workers int

	// Fair selects FIFO hand-off of admission permits to waiters.
	// When false, grant order is unspecified. Fixed once the Launcher
	// is constructed.
	Fair bool

	// ShutdownPollInterval is how long each quiescence poll waits during
	// Shutdown before logging progress and polling again.
	ShutdownPollInterval time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Capacity:             10,
		IntakeCapacity:       10,
		Workers:              10,
		Fair:                 true,
		ShutdownPollInterval: 3 * time.Second,
	}
}

func (c Config) validate() error {
	if c.Capacity < 1 {
		return errInvalidConfig("Capacity must be at least 1")
	}
	if c.IntakeCapacity < 1 {
		return errInvalidConfig("IntakeCapacity must be at least 1")
	}
	if c.Workers < 1 {
		return errInvalidConfig("Workers must be at least 1")
	}
	if c.ShutdownPollInterval <= 0 {
		return errInvalidConfig("ShutdownPollInterval must be positive")
	}
	return nil
}
