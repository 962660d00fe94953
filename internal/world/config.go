package world

import "time"

// Config tunes a World at construction time (spec.md §6's enumerated
// configuration options).
type Config struct {
	GridSize            int
	AgentCount          int
	TickInterval        time.Duration
	VotingWindow        time.Duration
	ShrinkIntervalTicks uint64
	ObstacleDensity     float64
	VisionRange         int
	MinBorder           int
	Seed                *int64
}

// DefaultConfig returns the spec-documented defaults.
func DefaultConfig() Config {
	return Config{
		GridSize:            20,
		AgentCount:          10,
		TickInterval:        time.Second,
		VotingWindow:        30 * time.Second,
		ShrinkIntervalTicks: 30,
		ObstacleDensity:     0.15,
		VisionRange:         4,
		MinBorder:           6,
	}
}
