package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	logx "panelsync/pkg/logx"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, 2*time.Second, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, srv
}

func TestNewRejectsRelativeBase(t *testing.T) {
	t.Parallel()
	if _, err := New("panel.example.com", time.Second, logx.Nop()); err == nil {
		t.Fatal("relative base url accepted")
	}
	if _, err := New("", time.Second, logx.Nop()); err == nil {
		t.Fatal("empty base url accepted")
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()
	c, err := New("https://panel.example.com/admin/", time.Second, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tests := []struct {
		ref  string
		want string
	}{
		{ref: "/users/7/fragment", want: "https://panel.example.com/users/7/fragment"},
		{ref: "stats", want: "https://panel.example.com/admin/stats"},
		{ref: "https://other.example.com/x", want: "https://other.example.com/x"},
	}
	for _, tt := range tests {
		got, err := c.Resolve(tt.ref)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", tt.ref, err)
		}
		if got != tt.want {
			t.Fatalf("Resolve(%q) = %q, want %q", tt.ref, got, tt.want)
		}
	}
}

func TestSameOrigin(t *testing.T) {
	t.Parallel()
	c, err := New("https://panel.example.com", time.Second, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !c.SameOrigin("/relative/path") {
		t.Fatal("relative path must be same-origin")
	}
	if !c.SameOrigin("https://panel.example.com/x") {
		t.Fatal("same host rejected")
	}
	if c.SameOrigin("https://evil.example.com/x") {
		t.Fatal("foreign host accepted")
	}
	if c.SameOrigin("http://panel.example.com/x") {
		t.Fatal("scheme downgrade accepted")
	}
}

func TestGetFragmentHeaders(t *testing.T) {
	t.Parallel()
	var got http.Header
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		_, _ = w.Write([]byte("<div>x</div>"))
	}))

	res, err := c.GetFragment(context.Background(), "/frag")
	if err != nil {
		t.Fatalf("GetFragment: %v", err)
	}
	if !res.OK() || res.Redirected {
		t.Fatalf("result = %+v", res)
	}
	if string(res.Body) != "<div>x</div>" {
		t.Fatalf("body = %q", res.Body)
	}
	if !strings.HasPrefix(got.Get("Accept"), "text/html") {
		t.Fatalf("Accept = %q", got.Get("Accept"))
	}
	if got.Get("Cache-Control") != "no-store" {
		t.Fatalf("Cache-Control = %q", got.Get("Cache-Control"))
	}
	if got.Get("X-Requested-With") != "XMLHttpRequest" {
		t.Fatalf("X-Requested-With = %q", got.Get("X-Requested-With"))
	}
}

func TestRedirectDetection(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	mux.HandleFunc("/frag", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/login", http.StatusFound)
	})
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("login page"))
	})
	c, srv := newTestClient(t, mux)

	res, err := c.GetFragment(context.Background(), "/frag")
	if err != nil {
		t.Fatalf("GetFragment: %v", err)
	}
	if !res.Redirected {
		t.Fatal("redirect not detected")
	}
	if want := srv.URL + "/login"; res.FinalURL != want {
		t.Fatalf("FinalURL = %q, want %q", res.FinalURL, want)
	}
}

func TestNoRedirectOnDirectResponse(t *testing.T) {
	t.Parallel()
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	res, err := c.GetJSON(context.Background(), "/data.json")
	if err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if res.Redirected {
		t.Fatal("direct response flagged as redirected")
	}
}

func TestAuthExpiredClassification(t *testing.T) {
	t.Parallel()
	for _, code := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		r := Result{StatusCode: code}
		if !r.AuthExpired() || r.OK() {
			t.Fatalf("status %d misclassified", code)
		}
	}
	for _, code := range []int{200, 204, 404, 500} {
		r := Result{StatusCode: code}
		if r.AuthExpired() {
			t.Fatalf("status %d flagged as auth expiry", code)
		}
	}
}

func TestPostFormEncoding(t *testing.T) {
	t.Parallel()
	var gotForm url.Values
	var gotCT string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCT = r.Header.Get("Content-Type")
		_ = r.ParseForm()
		gotForm = r.PostForm
	}))

	form := url.Values{"csrf_token": {"tok"}, "confirm": {"yes"}}
	res, err := c.PostForm(context.Background(), "/users/7/revoke", form)
	if err != nil {
		t.Fatalf("PostForm: %v", err)
	}
	if !res.OK() {
		t.Fatalf("status = %d", res.StatusCode)
	}
	if gotCT != "application/x-www-form-urlencoded" {
		t.Fatalf("Content-Type = %q", gotCT)
	}
	if gotForm.Get("csrf_token") != "tok" || gotForm.Get("confirm") != "yes" {
		t.Fatalf("form = %v", gotForm)
	}
}

func TestSameURLIgnoresFragment(t *testing.T) {
	t.Parallel()
	if !sameURL("https://x.test/a#top", "https://x.test/a") {
		t.Fatal("fragment-only difference treated as redirect")
	}
	if sameURL("https://x.test/a", "https://x.test/b") {
		t.Fatal("distinct paths treated as same")
	}
}
