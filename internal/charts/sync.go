// Package charts keeps the dashboard's usage charts consistent with the
// panel's daily aggregates.
//
// Chart instances are created once by the host renderer and patched in place:
// labels and series arrays are reassigned and re-rendered, never destroyed
// and recreated.
package charts

import (
	"context"
	"sync"
	"time"

	"github.com/bytedance/sonic"

	"panelsync/internal/eventbus"
	"panelsync/internal/httpx"
	"panelsync/internal/page"
	"panelsync/internal/runtime/supervisor"
	logx "panelsync/pkg/logx"
)

const (
	// DefaultURL is the panel's aggregate endpoint.
	DefaultURL = "/dashboard/charts.json"

	// RefreshInterval between aggregate refetches.
	RefreshInterval = 10 * time.Second

	// settleDelay before the first refresh.
	settleDelay = 1 * time.Second
)

// Aggregate is the charts.json body: date-keyed daily counts.
type Aggregate struct {
	Users map[string]int `json:"users"`
	Keys  map[string]int `json:"keys"`
}

// Series is one plotted line.
type Series struct {
	Label  string `json:"label"`
	Color  string `json:"color"`
	Points []int  `json:"points"`
}

// Renderer is the host's chart surface. Patch reassigns data in place;
// ApplyLayout re-tunes density without touching data.
type Renderer interface {
	Patch(labels []string, series []Series)
	ApplyLayout(l Layout)
}

type Sync struct {
	url      string
	interval time.Duration
	days     int

	client   *httpx.Client
	renderer Renderer
	nav      page.Navigator
	bus      eventbus.Bus
	log      logx.Logger

	loginPath string
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	busy    bool
	stopped bool
	layout  Layout
	hasLay  bool
}

type Option func(*Sync)

func WithURL(u string) Option {
	return func(s *Sync) {
		if u != "" {
			s.url = u
		}
	}
}

func WithInterval(d time.Duration) Option {
	return func(s *Sync) {
		if d > 0 {
			s.interval = d
		}
	}
}

func WithDays(n int) Option {
	return func(s *Sync) {
		if n > 0 {
			s.days = n
		}
	}
}

func WithLoginPath(p string) Option {
	return func(s *Sync) {
		if p != "" {
			s.loginPath = p
		}
	}
}

// WithClock overrides "today" resolution (tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Sync) {
		if fn != nil {
			s.now = fn
		}
	}
}

// Start launches the refresh loop under the supervisor.
func Start(renderer Renderer, client *httpx.Client, nav page.Navigator, bus eventbus.Bus, sup *supervisor.Supervisor, log logx.Logger, opts ...Option) *Sync {
	if log.IsZero() {
		log = logx.Nop()
	}
	ctx, cancel := context.WithCancel(sup.Context())
	s := &Sync{
		url:       DefaultURL,
		interval:  RefreshInterval,
		days:      WindowDays,
		client:    client,
		renderer:  renderer,
		nav:       nav,
		bus:       bus,
		log:       log,
		loginPath: "/login",
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, o := range opts {
		o(s)
	}

	sup.Go0("charts", func(context.Context) { s.run() })
	return s
}

func (s *Sync) run() {
	select {
	case <-s.ctx.Done():
		return
	case <-time.After(settleDelay):
	}

	s.Refresh()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.Refresh()
		}
	}
}

// Stop cancels the loop. Idempotent.
func (s *Sync) Stop() {
	s.mu.Lock()
	already := s.stopped
	s.stopped = true
	s.mu.Unlock()
	if already {
		return
	}
	s.cancel()
	s.log.Debug("chart sync stopped")
}

// Stopped reports whether the loop has been cancelled.
func (s *Sync) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// Refresh refetches the aggregates and patches the charts. Failures are
// skipped silently; session escalation mirrors the fragment engine.
func (s *Sync) Refresh() {
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
		s.log.Debug("chart fetch failed", logx.Err(err))
		return
	}
	switch {
	case res.Redirected:
		s.Stop()
		s.nav.Navigate(res.FinalURL)
		return
	case res.AuthExpired():
		if s.bus != nil {
			s.bus.Publish(eventbus.Event{Type: eventbus.TypeAuthExpired, Data: map[string]any{"target": "charts", "detail": res.StatusCode}})
		}
		s.Stop()
		s.nav.Navigate(s.loginPath)
		return
	case !res.OK():
		return
	}

	var agg Aggregate
	if err := sonic.Unmarshal(res.Body, &agg); err != nil {
		s.log.Debug("chart aggregate decode failed", logx.Err(err))
		return
	}
	s.Apply(&agg)
}

// Apply patches the renderer from an aggregate. Split from Refresh so tests
// can feed synthetic data.
func (s *Sync) Apply(agg *Aggregate) {
	w := NewWindow(s.now(), s.days)
	series := []Series{
		{Label: "New users", Color: "#0d6efd", Points: w.Points(agg.Users)},
		{Label: "New keys", Color: "#198754", Points: w.Points(agg.Keys)},
	}
	s.renderer.Patch(w.Labels, series)
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: eventbus.TypeChartPatch, Data: map[string]any{"days": s.days}})
	}
}

// OnResize re-tunes chart layout for a new viewport width. Only density
// changes; data is untouched. Redundant layouts are not re-applied.
func (s *Sync) OnResize(width int) {
	l := LayoutFor(width)
	s.mu.Lock()
	if s.hasLay && l == s.layout {
		s.mu.Unlock()
		return
	}
	s.layout = l
	s.hasLay = true
	s.mu.Unlock()
	s.renderer.ApplyLayout(l)
}
