package chat

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

const (
	// Interval between feed polls.
	Interval = 2500 * time.Millisecond

	// NearBottomPx: if the viewer sat within this many pixels of the bottom
	// before a re-render, scroll re-pins to the bottom afterwards.
	NearBottomPx = 60
)

// Message is server-owned and read-only.
type Message struct {
	Sender    string `json:"sender"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

// Admin reports whether the message was authored by the panel operator.
func (m Message) Admin() bool { return m.Sender == "admin" }

// Feed is the message-feed endpoint body.
type Feed struct {
	TicketID int64     `json:"ticket_id"`
	Status   Status    `json:"status"`
	Messages []Message `json:"messages"`
}

// DedupKey is a cheap fingerprint of feed state. Identical keys on
// consecutive fetches short-circuit re-rendering entirely.
func DedupKey(f *Feed) string {
	last := ""
	if n := len(f.Messages); n > 0 {
		last = f.Messages[n-1].Content
	}
	return fmt.Sprintf("%d|%s|%s", len(f.Messages), last, f.Status)
}

// Toggle describes the status-toggle control for the current status.
type Toggle struct {
	Label  string
	Action Status
}

// ToggleFor returns the control state: an open ticket offers closing,
// a closed one offers re-opening.
func ToggleFor(st Status) Toggle {
	if st == StatusClosed {
		return Toggle{Label: "Open ticket", Action: StatusOpen}
	}
	return Toggle{Label: "Close ticket", Action: StatusClosed}
}

// View is the host-rendered side of the chat: message list, status indicator,
// reply controls, scroll position.
type View interface {
	// NearBottom reports whether the viewer is scrolled within threshold
	// pixels of the bottom. Sampled before a re-render.
	NearBottom(threshold int) bool

	// RenderMessages fully rebuilds the list. Items at index >= highlightFrom
	// are new since the previous render and get a transient highlight. An
	// empty slice renders the empty-state node.
	RenderMessages(msgs []Message, highlightFrom int)

	// SetStatus updates the open/closed indicator, enables or disables the
	// reply controls, and retargets the status-toggle control.
	SetStatus(st Status, replyEnabled bool, toggle Toggle)

	// PinBottom scrolls the list back to the bottom after a render.
	PinBottom()
}
