package observe

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"panelsync/internal/eventbus"
	logx "panelsync/pkg/logx"
)

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if out != nil {
		if err := json.Unmarshal(b, out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestApplyEnableDisable(t *testing.T) {
	s := New(logx.Nop(), Sources{
		Fragments: func() any { return []string{"stats"} },
	})
	t.Cleanup(func() { s.Stop(context.Background()) })

	s.Apply(context.Background(), Config{Enabled: true, Addr: "127.0.0.1:0"})
	addr := s.Addr()
	if addr == "" {
		t.Fatal("server not listening after enable")
	}

	var body map[string]any
	if code := getJSON(t, "http://"+addr+"/status.json", &body); code != http.StatusOK {
		t.Fatalf("status.json = %d", code)
	}
	if _, ok := body["fragments"]; !ok {
		t.Fatalf("snapshot missing fragments: %v", body)
	}

	// pprof disabled by default
	if code := getJSON(t, "http://"+addr+"/debug/pprof/", nil); code == http.StatusOK {
		t.Fatal("pprof served without being enabled")
	}

	s.Apply(context.Background(), Config{Enabled: false})
	if s.Addr() != "" {
		t.Fatal("server still listening after disable")
	}
}

func TestEventsRetained(t *testing.T) {
	bus := eventbus.New()
	s := New(logx.Nop(), Sources{})
	t.Cleanup(func() { s.Stop(context.Background()) })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	s.Watch(ctx, bus)

	s.Apply(context.Background(), Config{Enabled: true, Addr: "127.0.0.1:0"})
	addr := s.Addr()
	if addr == "" {
		t.Fatal("server not listening")
	}

	bus.Publish(eventbus.Event{Type: eventbus.TypeFragmentSwap, Data: map[string]any{"target": "stats"}})

	deadline := time.Now().Add(2 * time.Second)
	for {
		var body struct {
			Events []eventbus.Event `json:"events"`
		}
		getJSON(t, "http://"+addr+"/events.json", &body)
		if len(body.Events) == 1 && body.Events[0].Type == eventbus.TypeFragmentSwap {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("events = %+v", body.Events)
		}
		time.Sleep(20 * time.Millisecond)
	}
}
