package simulator

import "time"

// Config holds parameters for synthetic dispatch traffic generation.
type Config struct {
	// Requesters is the number of concurrent synthetic requesters.
	Requesters int
	// Operators is the number of concurrent synthetic operators.
	Operators int
	// CreateInterval is the mean delay between creates per requester.
	CreateInterval time.Duration
	// WorkDuration is the mean time an operator holds a request before
	// finishing it.
	WorkDuration time.Duration
	// ReleaseRate is the fraction of taken requests the operator gives
	// back instead of completing.
	ReleaseRate float64
	// CancelRate is the fraction of created requests the requester
	// cancels while still pending.
	CancelRate float64
	// Locations are the target location ids requests are spread over.
	Locations []string
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Requesters <= 0 {
		c.Requesters = 3
	}
	if c.Operators <= 0 {
		c.Operators = 2
	}
	if c.CreateInterval <= 0 {
		c.CreateInterval = 2 * time.Second
	}
	if c.WorkDuration <= 0 {
		c.WorkDuration = 5 * time.Second
	}
	if c.ReleaseRate < 0 || c.ReleaseRate > 1 {
		c.ReleaseRate = 0.1
	}
	if c.CancelRate < 0 || c.CancelRate > 1 {
		c.CancelRate = 0.05
	}
	if len(c.Locations) == 0 {
		c.Locations = []string{"banchina-1", "banchina-2", "banchina-3", "banchina-4"}
	}
}
