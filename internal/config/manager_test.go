package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const validYAML = `
panel:
  base_url: https://panel.example.com
  login_path: /login
  request_timeout: 10s
logging:
  level: debug
fragments:
  - element_id: user-detail
    url: /users/7/fragment
    interval: 5s
  - element_id: stats
    url: /dashboard/stats
chat:
  ticket_id: 42
  interval: 2.5s
charts:
  days: 30
maintenance:
  retain: 168h
`

func TestParseYAML(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, "config.yaml", validYAML))
	cfg, err := m.Parse()
	require.NoError(t, err)

	require.Equal(t, "https://panel.example.com", cfg.Panel.BaseURL)
	require.Equal(t, 10*time.Second, cfg.RequestTimeout())
	require.Len(t, cfg.Fragments, 2)
	require.Equal(t, "user-detail", cfg.Fragments[0].ElementID)
	require.NotNil(t, cfg.Chat)
	require.EqualValues(t, 42, cfg.Chat.TicketID)
	require.NotNil(t, cfg.Charts)
	require.Equal(t, 30, cfg.Charts.Days)
}

func TestParseJSON(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, "config.json",
		`{"panel":{"base_url":"http://127.0.0.1:8080"},"fragments":[{"element_id":"a","url":"/a"}]}`))
	cfg, err := m.Parse()
	require.NoError(t, err)
	require.Equal(t, "/login", cfg.LoginPath())
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, "config.yaml", `
panel:
  base_url: https://panel.example.com
  base_ur1: typo
`))
	_, err := m.Parse()
	require.Error(t, err)
}

func TestParseValidation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		body string
	}{
		{name: "missing base url", body: `{"panel":{}}`},
		{name: "relative base url", body: `{"panel":{"base_url":"panel.example.com"}}`},
		{name: "fragment without id", body: `{"panel":{"base_url":"http://x.test"},"fragments":[{"url":"/a"}]}`},
		{name: "fragment without url", body: `{"panel":{"base_url":"http://x.test"},"fragments":[{"element_id":"a"}]}`},
		{name: "duplicate element ids", body: `{"panel":{"base_url":"http://x.test"},"fragments":[{"element_id":"a","url":"/a"},{"element_id":"a","url":"/b"}]}`},
		{name: "bad interval", body: `{"panel":{"base_url":"http://x.test"},"fragments":[{"element_id":"a","url":"/a","interval":"soon"}]}`},
		{name: "zero ticket", body: `{"panel":{"base_url":"http://x.test"},"chat":{"ticket_id":0}}`},
		{name: "negative chart days", body: `{"panel":{"base_url":"http://x.test"},"charts":{"days":-1}}`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := NewManager(writeConfig(t, "config.json", tt.body))
			_, err := m.Parse()
			require.Error(t, err)
		})
	}
}

func TestLoadCommitsAndGet(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, "config.yaml", validYAML))
	cfg, err := m.Load()
	require.NoError(t, err)
	require.Same(t, cfg, m.Get())
}

func TestSubscribeUnsubscribe(t *testing.T) {
	t.Parallel()
	m := NewManager("unused")
	ch := m.Subscribe(1)
	m.Unsubscribe(ch)
	_, open := <-ch
	require.False(t, open, "channel still open after unsubscribe")
	// Unsubscribing twice is harmless.
	m.Unsubscribe(ch)
}

func TestLoginPathNormalized(t *testing.T) {
	t.Parallel()
	cfg := &Config{}
	cfg.Panel.LoginPath = "signin"
	require.Equal(t, "/signin", cfg.LoginPath())
}
