// Package notify emits transient, auto-dismissing status messages.
//
// It is a leaf component: every other sync loop reports guard hits and action
// outcomes through it, and the host renders whatever Active() returns (or
// receives pushes via the sink callback).
package notify

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	logx "panelsync/pkg/logx"
)

const historyCap = 300

type Service struct {
	log logx.Logger

	mu      sync.Mutex
	active  []Toast
	history []Toast
	sink    func(Toast)

	// Per-key limiters keep repeating warnings (e.g. the full-document guard
	// firing every tick on a broken endpoint) from flooding the display.
	limiters map[string]*rate.Limiter
}

func New(log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		log:      log,
		limiters: map[string]*rate.Limiter{},
	}
}

// SetSink installs a host callback invoked for every displayed toast.
func (s *Service) SetSink(fn func(Toast)) {
	s.mu.Lock()
	s.sink = fn
	s.mu.Unlock()
}

func (s *Service) Push(cat Category, text string) Toast {
	return s.PushTTL(cat, text, DefaultTTL)
}

func (s *Service) PushTTL(cat Category, text string, ttl time.Duration) Toast {
	if ttl < MinTTL {
		ttl = MinTTL
	}
	t := Toast{
		ID:       uuid.NewString(),
		Category: cat,
		Text:     strings.TrimSpace(text),
		TTL:      ttl,
		At:       time.Now(),
	}

	s.mu.Lock()
	s.active = append(s.active, t)
	s.history = append(s.history, t)
	if len(s.history) > historyCap {
		s.history = s.history[len(s.history)-historyCap:]
	}
	sink := s.sink
	s.mu.Unlock()

	s.log.Debug("toast shown", logx.String("category", string(cat)), logx.String("text", t.Text), logx.Duration("ttl", ttl))
	if sink != nil {
		sink(t)
	}

	// Self-removal after display.
	time.AfterFunc(ttl, func() { s.dismiss(t.ID) })
	return t
}

// PushLimited shows the toast only if the per-key limiter allows it.
// Suppressed toasts still return false so callers can log instead.
func (s *Service) PushLimited(key string, cat Category, text string) bool {
	s.mu.Lock()
	lim := s.limiters[key]
	if lim == nil {
		// One toast per 30s per key, small burst for distinct first hits.
		lim = rate.NewLimiter(rate.Every(30*time.Second), 1)
		s.limiters[key] = lim
	}
	s.mu.Unlock()

	if !lim.Allow() {
		s.log.Debug("toast suppressed", logx.String("key", key), logx.String("text", text))
		return false
	}
	s.Push(cat, text)
	return true
}

func (s *Service) dismiss(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.active {
		if t.ID == id {
			s.active = append(s.active[:i], s.active[i+1:]...)
			return
		}
	}
}

// Active returns the currently displayed toasts, oldest first.
func (s *Service) Active() []Toast {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Toast, 0, len(s.active))
	for _, t := range s.active {
		if t.ExpiresAt().After(now) {
			out = append(out, t)
		}
	}
	return out
}

// History returns up to n recent toasts, newest last.
func (s *Service) History(n int) []Toast {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 || n > len(s.history) {
		n = len(s.history)
	}
	out := make([]Toast, n)
	copy(out, s.history[len(s.history)-n:])
	return out
}
