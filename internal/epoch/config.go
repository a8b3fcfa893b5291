package epoch

import "time"

// Config holds the three tunables for the epoch manager.
type Config struct {
	// RingSize is the number of slots in the epoch ring. Default 4096.
	RingSize int
	// TickInterval is how often the ticker advances current_epoch. Default 10ms.
	TickInterval time.Duration
	// SafetyInterval is the minimum gap, in epochs, current_epoch keeps
	// ahead of queue_tail and queue_tail keeps ahead of reclaim_tail.
	// Default 2, exposed here so tests can shrink it.
	SafetyInterval uint64
}

// DefaultConfig returns the recommended defaults: 4096-slot ring, 10ms
// tick, safety interval 2.
func DefaultConfig() Config {
	return Config{
		RingSize:       4096,
		TickInterval:   10 * time.Millisecond,
		SafetyInterval: 2,
	}
}

func (c Config) withDefaults() Config {
	if c.RingSize <= 0 {
		c.RingSize = 4096
	}
	if c.TickInterval <= 0 {
		c.TickInterval = 10 * time.Millisecond
	}
	if c.SafetyInterval == 0 {
		c.SafetyInterval = 2
	}
	return c
}
