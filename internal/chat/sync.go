// Package chat keeps a single support-ticket thread in sync with the panel.
//
// The loop polls the ticket's JSON feed, fingerprints it, and rebuilds the
// host view only when the fingerprint moves. Fetch failures are swallowed;
// the feed is eventually consistent.
package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"

	"panelsync/internal/eventbus"
	"panelsync/internal/httpx"
	"panelsync/internal/page"
	"panelsync/internal/runtime/supervisor"
	logx "panelsync/pkg/logx"
)

// Session owns the polling state for one ticket. It is mutated only by its
// own tick and torn down when the page unloads.
type Session struct {
	ticketID int64
	url      string
	interval time.Duration

	client *httpx.Client
	view   View
	nav    page.Navigator
	bus    eventbus.Bus
	log    logx.Logger

	loginPath string

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	busy         bool
	stopped      bool
	lastDedupKey string
	lastCount    int
}

type Option func(*Session)

func WithURL(u string) Option {
	return func(s *Session) {
		if u != "" {
			s.url = u
		}
	}
}

func WithInterval(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.interval = d
		}
	}
}

func WithLoginPath(p string) Option {
	return func(s *Session) {
		if p != "" {
			s.loginPath = p
		}
	}
}

// Start registers and launches the loop under the supervisor. One immediate
// fetch, then a poll every 2.5s until stopped.
func Start(ticketID int64, view View, client *httpx.Client, nav page.Navigator, bus eventbus.Bus, sup *supervisor.Supervisor, log logx.Logger, opts ...Option) *Session {
	if log.IsZero() {
		log = logx.Nop()
	}
	ctx, cancel := context.WithCancel(sup.Context())
	s := &Session{
		ticketID:  ticketID,
		url:       fmt.Sprintf("/support/%d/messages.json", ticketID),
		interval:  Interval,
		client:    client,
		view:      view,
		nav:       nav,
		bus:       bus,
		log:       log,
		loginPath: "/login",
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, o := range opts {
		o(s)
	}

	sup.Go0(fmt.Sprintf("chat.%d", ticketID), func(context.Context) { s.run() })
	return s
}

func (s *Session) run() {
	s.Tick()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Stop cancels the loop. Idempotent.
func (s *Session) Stop() {
	s.mu.Lock()
	already := s.stopped
	s.stopped = true
	s.mu.Unlock()
	if already {
		return
	}
	s.cancel()
	s.log.Debug("chat session stopped", logx.Int64("ticket", s.ticketID))
}

// Stopped reports whether the loop has been cancelled.
func (s *Session) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// Tick fetches the feed once and re-renders the view if the dedup key moved.
func (s *Session) Tick() {
	s.mu.Lock()
	if s.stopped || s.busy {
		s.mu.Unlock()
		return
	}
	s.busy = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
	}()

	res, err := s.client.GetJSON(s.ctx, s.url)
	if err != nil {
		// Swallowed; next tick retries.
		s.log.Debug("chat fetch failed", logx.Int64("ticket", s.ticketID), logx.Err(err))
		return
	}
	switch {
	case res.Redirected:
		s.Stop()
		s.nav.Navigate(res.FinalURL)
		return
	case res.AuthExpired():
		s.publish(eventbus.TypeAuthExpired, res.StatusCode)
		s.Stop()
		s.nav.Navigate(s.loginPath)
		return
	case !res.OK():
		return
	}

	var feed Feed
	if err := sonic.Unmarshal(res.Body, &feed); err != nil {
		s.log.Debug("chat feed decode failed", logx.Int64("ticket", s.ticketID), logx.Err(err))
		return
	}
	s.Apply(&feed)
}

// Apply renders a fetched feed. Split from Tick so tests can drive it with
// synthetic feeds.
func (s *Session) Apply(feed *Feed) {
	key := DedupKey(feed)

	s.mu.Lock()
	if key == s.lastDedupKey {
		s.mu.Unlock()
		return
	}
	highlightFrom := s.lastCount
	s.lastDedupKey = key
	s.lastCount = len(feed.Messages)
	s.mu.Unlock()

	st := feed.Status
	if st != StatusClosed {
		st = StatusOpen
	}

	wasNear := s.view.NearBottom(NearBottomPx)
	s.view.RenderMessages(feed.Messages, highlightFrom)
	s.view.SetStatus(st, st == StatusOpen, ToggleFor(st))
	if wasNear {
		s.view.PinBottom()
	}

	s.publish(eventbus.TypeChatRender, len(feed.Messages))
	s.log.Debug("chat rendered",
		logx.Int64("ticket", s.ticketID),
		logx.Int("messages", len(feed.Messages)),
		logx.String("status", string(st)),
	)
}

func (s *Session) publish(typ string, data any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Data: map[string]any{"ticket": s.ticketID, "detail": data}})
}
