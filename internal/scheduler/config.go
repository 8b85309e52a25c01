// Package scheduler refreshes the tool catalog in the background.
package scheduler

import (
	"time"

	"github.com/fentz26/toolbench/internal/catalog"
)

// Config defines the scheduler configuration.
type Config struct {
	// Interval is the time between two refreshes.
	Interval time.Duration
	// RunOnStart refreshes once immediately when the scheduler starts.
	RunOnStart bool
}

// DefaultConfig returns the default scheduler configuration.
func DefaultConfig() *Config {
	return &Config{
		Interval:   30 * time.Second,
		RunOnStart: true,
	}
}

// FromCatalog derives the scheduler configuration from the toolbench
// configuration.
func FromCatalog(cfg *catalog.Config) *Config {
	out := DefaultConfig()
	if cfg != nil && cfg.RefreshInterval > 0 {
		out.Interval = cfg.RefreshInterval
	}
	return out
}
