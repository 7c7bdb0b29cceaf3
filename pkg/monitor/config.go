package monitor

import (
	"time"

	"github.com/doorwatch/go-doorwatch/pkg/classify"
)

// Config holds all tunable parameters for the monitor loop.
type Config struct {
	// Timing
	TickInterval time.Duration // Reschedule cadence of the cycle loop
	MinInterval  time.Duration // Minimum time between classifications

	// ClassifyTimeout bounds a single classification call.
	// Zero disables the timeout. A timed-out call is treated like any
	// failed call: the in-flight flag clears when it returns.
	ClassifyTimeout time.Duration

	// States maps class indices to door states.
	States classify.StateMap
}

// DefaultConfig returns the recommended configuration.
//
// The tick drives cheap "maybe classify now" decisions at roughly
// display-refresh cadence; MinInterval is the separate throttle that
// bounds the cost of the expensive classification call.
func DefaultConfig() Config {
	return Config{
		TickInterval: 16 * time.Millisecond,
		MinInterval:  100 * time.Millisecond,
		States:       classify.DefaultStateMap(),
	}
}

// RelaxedConfig returns a configuration for low-power deployments.
func RelaxedConfig() Config {
	cfg := DefaultConfig()
	cfg.TickInterval = 50 * time.Millisecond
	cfg.MinInterval = 500 * time.Millisecond
	return cfg
}
