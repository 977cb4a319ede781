// Package httpx is the transport shared by all sync loops.
//
// It mirrors browser fetch() semantics the engine relies on: cookie-backed
// same-origin credentials, no-store caching, redirect capture (the final URL
// after following), and 401/403 classification for session expiry.
package httpx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	logx "panelsync/pkg/logx"
)

// maxBodyBytes caps fragment/JSON payload reads. Fragments are small; anything
// bigger than this is a server bug, not content.
const maxBodyBytes = 4 << 20

type Client struct {
	base *url.URL
	hc   *http.Client
	log  logx.Logger
}

// Result is one completed fetch.
type Result struct {
	StatusCode int
	Body       []byte

	// FinalURL is the URL the response actually came from, after redirects.
	FinalURL   string
	Redirected bool
}

// OK reports a 2xx response.
func (r *Result) OK() bool { return r.StatusCode >= 200 && r.StatusCode < 300 }

// AuthExpired reports a response that demands re-authentication.
func (r *Result) AuthExpired() bool {
	return r.StatusCode == http.StatusUnauthorized || r.StatusCode == http.StatusForbidden
}

func New(baseURL string, timeout time.Duration, log logx.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, errors.New("base url must be absolute")
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		base: base,
		hc: &http.Client{
			Jar:     jar,
			Timeout: timeout,
		},
		log: log,
	}, nil
}

// Resolve turns a possibly-relative ref into an absolute URL against the panel base.
func (c *Client) Resolve(ref string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", ref, err)
	}
	return c.base.ResolveReference(u).String(), nil
}

// SameOrigin reports whether raw points at the panel's origin.
// Credentials are never attached to cross-origin requests.
func (c *Client) SameOrigin(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if !u.IsAbs() {
		return true
	}
	return u.Scheme == c.base.Scheme && u.Host == c.base.Host
}

// GetFragment fetches an HTML fragment.
func (c *Client) GetFragment(ctx context.Context, ref string) (*Result, error) {
	return c.get(ctx, ref, "text/html, */*;q=0.1")
}

// GetJSON fetches a JSON document.
func (c *Client) GetJSON(ctx context.Context, ref string) (*Result, error) {
	return c.get(ctx, ref, "application/json")
}

func (c *Client) get(ctx context.Context, ref, accept string) (*Result, error) {
	target, err := c.Resolve(ref)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	c.decorate(req, accept)
	return c.do(req, target)
}

// PostForm submits form-encoded data in the background (no navigation).
func (c *Client) PostForm(ctx context.Context, ref string, form url.Values) (*Result, error) {
	target, err := c.Resolve(ref)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c.decorate(req, "application/json, text/html;q=0.5")
	return c.do(req, target)
}

func (c *Client) decorate(req *http.Request, accept string) {
	req.Header.Set("Accept", accept)
	req.Header.Set("Cache-Control", "no-store")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
}

func (c *Client) do(req *http.Request, requested string) (*Result, error) {
	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}

	final := requested
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL.String()
	}
	res := &Result{
		StatusCode: resp.StatusCode,
		Body:       body,
		FinalURL:   final,
		Redirected: !sameURL(requested, final),
	}
	c.log.Trace("fetch done",
		logx.String("url", requested),
		logx.Int("status", res.StatusCode),
		logx.Bool("redirected", res.Redirected),
		logx.Duration("took", time.Since(start)),
	)
	return res, nil
}

func sameURL(a, b string) bool {
	ua, err1 := url.Parse(a)
	ub, err2 := url.Parse(b)
	if err1 != nil || err2 != nil {
		return a == b
	}
	// Fragments never travel on the wire.
	ua.Fragment = ""
	ub.Fragment = ""
	return ua.String() == ub.String()
}
