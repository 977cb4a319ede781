// Package observe exposes a local status/debug HTTP server.
//
// It is read-only: a JSON snapshot of the sync loops, recent bus events,
// toast history, and optional pprof. Bind it to loopback.
package observe

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/pprof"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"panelsync/internal/eventbus"
	logx "panelsync/pkg/logx"
)

const eventRingCap = 200

// Config controls the status server.
type Config struct {
	Enabled bool
	Addr    string
	Pprof   bool
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = "127.0.0.1:6470"
	}
	return c
}

// Sources supplies the snapshot data. All funcs are optional.
type Sources struct {
	Fragments  func() any
	Chat       func() any
	Supervisor func() any
	Toasts     func() any
}

type Server struct {
	log logx.Logger
	src Sources

	mu     sync.Mutex
	srv    *http.Server
	ln     net.Listener
	addr   string
	events []eventbus.Event
	unsub  func()
}

func New(log logx.Logger, src Sources) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Server{log: log.With(logx.String("comp", "status")), src: src}
}

// Watch retains recent bus events for the /events endpoint.
func (s *Server) Watch(ctx context.Context, bus eventbus.Bus) {
	ch, unsub := bus.Subscribe(64)
	s.mu.Lock()
	s.unsub = unsub
	s.mu.Unlock()

	go func() {
		defer unsub()
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-ch:
				if !ok {
					return
				}
				s.mu.Lock()
				s.events = append(s.events, e)
				if len(s.events) > eventRingCap {
					s.events = s.events[len(s.events)-eventRingCap:]
				}
				s.mu.Unlock()
			}
		}
	}()
}

// Apply starts or stops the server according to cfg.
func (s *Server) Apply(ctx context.Context, cfg Config) {
	cfg = cfg.withDefaults()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !cfg.Enabled {
		s.stopLocked(ctx)
		return
	}
	if s.srv != nil && s.addr == cfg.Addr {
		return
	}
	s.stopLocked(ctx)
	s.startLocked(cfg)
}

func (s *Server) startLocked(cfg Config) {
	r := mux.NewRouter()
	r.HandleFunc("/status.json", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/events.json", s.handleEvents).Methods(http.MethodGet)
	if cfg.Pprof {
		r.HandleFunc("/debug/pprof/", pprof.Index)
		r.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		r.HandleFunc("/debug/pprof/profile", pprof.Profile)
		r.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		r.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	srv := &http.Server{Addr: cfg.Addr, Handler: r}
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		s.log.Warn("status listen failed", logx.String("addr", cfg.Addr), logx.Err(err))
		return
	}

	s.srv = srv
	s.ln = ln
	s.addr = ln.Addr().String()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Warn("status server error", logx.Err(err))
		}
	}()
	s.log.Info("status server enabled", logx.String("addr", s.addr))
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unsub != nil {
		s.unsub()
		s.unsub = nil
	}
	s.stopLocked(ctx)
}

func (s *Server) stopLocked(ctx context.Context) {
	if s.srv == nil {
		return
	}
	srv := s.srv
	ln := s.ln
	addr := s.addr
	s.srv = nil
	s.ln = nil
	s.addr = ""

	shutdownCtx := ctx
	if shutdownCtx == nil {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.log.Warn("status shutdown error", logx.String("addr", addr), logx.Err(err))
	}
	if ln != nil {
		_ = ln.Close()
	}
	s.log.Info("status server disabled", logx.String("addr", addr))
}

// Addr reports the actual listen address if running.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{
		"time": time.Now(),
	}
	if s.src.Fragments != nil {
		body["fragments"] = s.src.Fragments()
	}
	if s.src.Chat != nil {
		body["chat"] = s.src.Chat()
	}
	if s.src.Supervisor != nil {
		body["supervisor"] = s.src.Supervisor()
	}
	if s.src.Toasts != nil {
		body["toasts"] = s.src.Toasts()
	}
	writeJSON(w, body)
}

func (s *Server) handleEvents(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	evs := make([]eventbus.Event, len(s.events))
	copy(evs, s.events)
	s.mu.Unlock()
	writeJSON(w, map[string]any{"events": evs})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
