package notify

import "time"

type Category string

const (
	Success Category = "success"
	Danger  Category = "danger"
	Warning Category = "warning"
	Neutral Category = "neutral"
)

const (
	// MinTTL is the floor for toast lifetimes; shorter values are clamped.
	MinTTL = 2 * time.Second
	// DefaultTTL applies when the caller does not pick one.
	DefaultTTL = 4 * time.Second
)

// Toast is one transient status message. It is owned solely by the notifier's
// display list and removes itself after TTL.
type Toast struct {
	ID       string        `json:"id"`
	Category Category      `json:"category"`
	Text     string        `json:"text"`
	TTL      time.Duration `json:"ttl"`
	At       time.Time     `json:"at"`
}

// ExpiresAt is the instant the toast leaves the display list.
func (t Toast) ExpiresAt() time.Time { return t.At.Add(t.TTL) }
