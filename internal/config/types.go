package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config is the root configuration for panelsync.
//
// All durations are strings in Go duration syntax (e.g. "2.5s", "10s", "1m").
type Config struct {
	Panel   PanelConfig   `json:"panel"`
	Logging LoggingConfig `json:"logging"`
	Status  StatusConfig  `json:"status,omitempty"`

	Storage *StorageConfig `json:"storage,omitempty"`

	// Fragments lists the page regions to keep in sync.
	Fragments []FragmentConfig `json:"fragments,omitempty"`

	// Chat enables the support-ticket thread loop.
	Chat *ChatConfig `json:"chat,omitempty"`

	// Charts enables the usage-chart loop.
	Charts *ChartsConfig `json:"charts,omitempty"`

	Maintenance MaintenanceConfig `json:"maintenance,omitempty"`
}

// PanelConfig points at the admin panel this client mirrors.
type PanelConfig struct {
	BaseURL string `json:"base_url"`

	// LoginPath is where session expiry redirects land. Default "/login".
	LoginPath string `json:"login_path,omitempty"`

	// RequestTimeout bounds every fetch. Default "15s".
	RequestTimeout string `json:"request_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string `json:"level,omitempty"`
	Console *bool  `json:"console,omitempty"`
	File    struct {
		Enabled bool   `json:"enabled,omitempty"`
		Path    string `json:"path,omitempty"`
	} `json:"file,omitempty"`
}

// StatusConfig controls the local status/debug HTTP server.
type StatusConfig struct {
	Enabled bool   `json:"enabled,omitempty"`
	Addr    string `json:"addr,omitempty"` // default "127.0.0.1:6470"
	Pprof   bool   `json:"pprof,omitempty"`
}

// StorageConfig configures the audit/dedup store used by the action engine.
type StorageConfig struct {
	Driver      string `json:"driver,omitempty"` // "file", "sqlite", "" = disabled
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

// FragmentConfig declares one soft container to poll.
type FragmentConfig struct {
	ElementID string `json:"element_id"`
	URL       string `json:"url"`

	// Interval below the floor is clamped, not rejected.
	Interval string `json:"interval,omitempty"`
}

type ChatConfig struct {
	TicketID int64 `json:"ticket_id"`

	// URL defaults to "/support/{ticket_id}/messages.json".
	URL      string `json:"url,omitempty"`
	Interval string `json:"interval,omitempty"` // default "2.5s"
}

type ChartsConfig struct {
	URL      string `json:"url,omitempty"`      // default "/dashboard/charts.json"
	Interval string `json:"interval,omitempty"` // default "10s"
	Days     int    `json:"days,omitempty"`     // default 30
}

// MaintenanceConfig schedules background housekeeping (audit prune).
type MaintenanceConfig struct {
	// AuditPrune is a cron spec. Default "0 3 * * *". Empty string with
	// Disabled=true turns pruning off.
	AuditPrune string `json:"audit_prune,omitempty"`
	Disabled   bool   `json:"disabled,omitempty"`

	// Retain is how long audit records are kept. Default "720h" (30 days).
	Retain   string `json:"retain,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

// Validate checks cross-field constraints that strict decoding can't express.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	base := strings.TrimSpace(c.Panel.BaseURL)
	if base == "" {
		return errors.New("panel.base_url is required")
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("panel.base_url %q is not an absolute URL", base)
	}

	if _, err := ParseDurationField("panel.request_timeout", c.Panel.RequestTimeout); err != nil {
		return err
	}

	seen := map[string]bool{}
	for i, f := range c.Fragments {
		id := strings.TrimSpace(f.ElementID)
		if id == "" {
			return fmt.Errorf("fragments[%d]: element_id is required", i)
		}
		if seen[id] {
			return fmt.Errorf("fragments[%d]: duplicate element_id %q", i, id)
		}
		seen[id] = true
		if strings.TrimSpace(f.URL) == "" {
			return fmt.Errorf("fragments[%d] (%s): url is required", i, id)
		}
		if _, err := ParseDurationField(fmt.Sprintf("fragments[%d].interval", i), f.Interval); err != nil {
			return err
		}
	}

	if c.Chat != nil && c.Chat.TicketID <= 0 {
		return errors.New("chat.ticket_id must be positive")
	}
	if c.Chat != nil {
		if _, err := ParseDurationField("chat.interval", c.Chat.Interval); err != nil {
			return err
		}
	}
	if c.Charts != nil {
		if _, err := ParseDurationField("charts.interval", c.Charts.Interval); err != nil {
			return err
		}
		if c.Charts.Days < 0 {
			return errors.New("charts.days must be >= 0")
		}
	}
	if _, err := ParseDurationField("maintenance.retain", c.Maintenance.Retain); err != nil {
		return err
	}
	return nil
}

// RequestTimeout returns the parsed panel request timeout with its default.
func (c *Config) RequestTimeout() time.Duration {
	d, err := ParseDurationOrDefault("panel.request_timeout", c.Panel.RequestTimeout, 15*time.Second)
	if err != nil {
		return 15 * time.Second
	}
	return d
}

// LoginPath returns the configured login path or "/login".
func (c *Config) LoginPath() string {
	p := strings.TrimSpace(c.Panel.LoginPath)
	if p == "" {
		return "/login"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}
