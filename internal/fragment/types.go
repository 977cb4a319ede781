package fragment

import (
	"time"
)

// State is where a target currently sits in its tick cycle.
type State string

const (
	StateIdle     State = "idle"
	StateFetching State = "fetching"
	StateSwapping State = "swapping"
)

const (
	// MinInterval is the polling floor. Declared intervals below it are
	// clamped, not rejected.
	MinInterval = 4 * time.Second

	// settleDelay lets the page finish initial rendering before the first tick.
	settleDelay = 1 * time.Second
)

// Spec declares one region to register.
type Spec struct {
	URL      string
	Interval time.Duration
}

// Info is an observability snapshot of one target.
type Info struct {
	ID       string        `json:"id"`
	URL      string        `json:"url"`
	Interval time.Duration `json:"interval"`
	State    State         `json:"state"`
	Stopped  bool          `json:"stopped"`
	Ticks    uint64        `json:"ticks"`
	Swaps    uint64        `json:"swaps"`
	Skips    uint64        `json:"skips"`
	LastErr  string        `json:"last_err,omitempty"`
}
