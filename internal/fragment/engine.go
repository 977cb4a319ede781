// Package fragment implements the generic live-fragment synchronization engine.
//
// Each registered region runs its own polling loop: fetch the fragment, guard
// against full documents, and swap only when content actually changed. Loops
// are independent; stopping or breaking one never affects another.
package fragment

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"panelsync/internal/eventbus"
	"panelsync/internal/httpx"
	"panelsync/internal/notify"
	"panelsync/internal/page"
	"panelsync/internal/runtime/supervisor"
	logx "panelsync/pkg/logx"
)

// MountFunc re-binds interactive behavior after a swap. Replaced subtrees lose
// previously attached listeners, so the engine invokes this after every
// successful swap.
type MountFunc func(r page.Region)

type Engine struct {
	client *httpx.Client
	toasts *notify.Service
	bus    eventbus.Bus
	nav    page.Navigator
	sup    *supervisor.Supervisor
	log    logx.Logger

	loginPath string
	onMount   MountFunc

	mu      sync.Mutex
	targets map[string]*Target
}

// Target is the per-region polling state. One outstanding fetch at most; the
// busy flag suppresses (never queues) overlapping ticks.
type Target struct {
	id       string
	region   page.Region
	url      string
	interval time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	state    State
	busy     bool
	lastHTML string
	stopped  bool
	lastErr  string

	ticks atomic.Uint64
	swaps atomic.Uint64
	skips atomic.Uint64
}

type Option func(*Engine)

// WithMount installs the post-swap lifecycle hook.
func WithMount(fn MountFunc) Option {
	return func(e *Engine) { e.onMount = fn }
}

func WithLoginPath(p string) Option {
	return func(e *Engine) {
		if p != "" {
			e.loginPath = p
		}
	}
}

func New(client *httpx.Client, toasts *notify.Service, bus eventbus.Bus, nav page.Navigator, sup *supervisor.Supervisor, log logx.Logger, opts ...Option) *Engine {
	if log.IsZero() {
		log = logx.Nop()
	}
	e := &Engine{
		client:    client,
		toasts:    toasts,
		bus:       bus,
		nav:       nav,
		sup:       sup,
		log:       log,
		loginPath: "/login",
		targets:   map[string]*Target{},
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

var (
	ErrMissingURL = errors.New("fragment: source url is required")
	ErrDuplicate  = errors.New("fragment: element already registered")
)

// Register starts a polling loop for the region. A nil region is a no-op
// (missing element on this page); the first tick runs after a short settle
// delay. The declared interval is clamped to MinInterval.
func (e *Engine) Register(r page.Region, spec Spec) (*Target, error) {
	if r == nil {
		return nil, nil
	}
	if spec.URL == "" {
		return nil, ErrMissingURL
	}
	interval := spec.Interval
	if interval < MinInterval {
		interval = MinInterval
	}

	ctx, cancel := context.WithCancel(e.sup.Context())
	t := &Target{
		id:       r.ID(),
		region:   r,
		url:      spec.URL,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
		state:    StateIdle,
		lastHTML: r.HTML(),
	}

	e.mu.Lock()
	if _, dup := e.targets[t.id]; dup {
		e.mu.Unlock()
		cancel()
		return nil, ErrDuplicate
	}
	e.targets[t.id] = t
	e.mu.Unlock()

	e.sup.Go0("fragment."+t.id, func(context.Context) { e.run(t) })
	e.log.Debug("fragment target registered",
		logx.String("id", t.id), logx.String("url", t.url), logx.Duration("interval", t.interval))
	return t, nil
}

func (e *Engine) run(t *Target) {
	select {
	case <-t.ctx.Done():
		return
	case <-time.After(settleDelay):
	}

	e.Tick(t.id)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-t.ctx.Done():
			return
		case <-ticker.C:
			e.Tick(t.id)
		}
	}
}

// Tick performs one fetch-and-swap cycle for the named target. It is what the
// loop calls on schedule, and what the action engine calls for an immediate
// refresh after a destructive operation.
func (e *Engine) Tick(id string) {
	e.mu.Lock()
	t := e.targets[id]
	e.mu.Unlock()
	if t == nil {
		return
	}

	t.mu.Lock()
	if t.stopped || t.busy {
		// Overlapping ticks are suppressed, not queued.
		t.skips.Add(1)
		t.mu.Unlock()
		return
	}
	t.busy = true
	t.state = StateFetching
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.busy = false
		t.state = StateIdle
		t.mu.Unlock()
	}()

	t.ticks.Add(1)
	res, err := e.client.GetFragment(t.ctx, t.url)
	if err != nil {
		// Transient network failure; next tick retries.
		t.noteErr(err)
		e.log.Debug("fragment fetch failed", logx.String("id", t.id), logx.Err(err))
		return
	}

	switch {
	case res.Redirected:
		// Session rerouting takes priority over the fragment update.
		e.publish(eventbus.TypeNavigate, t.id, res.FinalURL)
		e.stop(t)
		e.nav.Navigate(res.FinalURL)
		return
	case res.AuthExpired():
		e.log.Warn("fragment auth expired", logx.String("id", t.id), logx.Int("status", res.StatusCode))
		e.publish(eventbus.TypeAuthExpired, t.id, res.StatusCode)
		e.stop(t)
		e.nav.Navigate(e.loginPath)
		return
	case !res.OK():
		// Transient server failure; skipped silently.
		t.noteErr(errors.New(res.FinalURL + ": status " + strconv.Itoa(res.StatusCode)))
		return
	}

	html := string(res.Body)
	if LooksLikeFullDocument(html) {
		e.log.Warn("fragment rejected: full document payload", logx.String("id", t.id), logx.String("url", t.url))
		e.publish(eventbus.TypeFragmentGuard, t.id, t.url)
		if e.toasts != nil {
			e.toasts.PushLimited("fragment-guard:"+t.id, notify.Warning,
				"Region \""+t.id+"\" received a full page instead of a fragment; update skipped.")
		}
		return
	}

	t.mu.Lock()
	unchanged := html == t.lastHTML
	if !unchanged {
		t.state = StateSwapping
		t.lastHTML = html
	}
	t.mu.Unlock()
	if unchanged {
		return
	}

	t.region.SetHTML(html, page.SwapOptions{PreserveHeight: true, Highlight: true})
	if e.onMount != nil {
		e.onMount(t.region)
	}
	t.swaps.Add(1)
	e.publish(eventbus.TypeFragmentSwap, t.id, len(html))
	e.log.Debug("fragment swapped", logx.String("id", t.id), logx.Int("bytes", len(html)))
}

// Stop cancels the target's loop. Idempotent; other targets are unaffected.
func (e *Engine) Stop(id string) {
	e.mu.Lock()
	t := e.targets[id]
	e.mu.Unlock()
	if t != nil {
		e.stop(t)
	}
}

// StopAll cancels every loop (page unload).
func (e *Engine) StopAll() {
	e.mu.Lock()
	ts := make([]*Target, 0, len(e.targets))
	for _, t := range e.targets {
		ts = append(ts, t)
	}
	e.mu.Unlock()
	for _, t := range ts {
		e.stop(t)
	}
}

func (e *Engine) stop(t *Target) {
	t.mu.Lock()
	already := t.stopped
	t.stopped = true
	t.mu.Unlock()
	if already {
		return
	}
	t.cancel()
	e.log.Debug("fragment target stopped", logx.String("id", t.id))
}

// Snapshot returns per-target state for the status server.
func (e *Engine) Snapshot() []Info {
	e.mu.Lock()
	ts := make([]*Target, 0, len(e.targets))
	for _, t := range e.targets {
		ts = append(ts, t)
	}
	e.mu.Unlock()

	out := make([]Info, 0, len(ts))
	for _, t := range ts {
		t.mu.Lock()
		info := Info{
			ID:       t.id,
			URL:      t.url,
			Interval: t.interval,
			State:    t.state,
			Stopped:  t.stopped,
			Ticks:    t.ticks.Load(),
			Swaps:    t.swaps.Load(),
			Skips:    t.skips.Load(),
			LastErr:  t.lastErr,
		}
		t.mu.Unlock()
		out = append(out, info)
	}
	return out
}

func (e *Engine) publish(typ, id string, data any) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(eventbus.Event{Type: typ, Data: map[string]any{"target": id, "detail": data}})
}

func (t *Target) noteErr(err error) {
	t.mu.Lock()
	t.lastErr = err.Error()
	t.mu.Unlock()
}

// Interval reports the effective (clamped) polling interval.
func (t *Target) Interval() time.Duration { return t.interval }

// Stopped reports whether the loop has been cancelled.
func (t *Target) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}
