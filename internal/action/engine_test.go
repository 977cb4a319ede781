package action

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"panelsync/internal/httpx"
	"panelsync/internal/notify"
	"panelsync/internal/page"
	"panelsync/internal/storage"
	logx "panelsync/pkg/logx"
)

type scriptedConfirmer struct {
	answer  bool
	prompts []string
}

func (c *scriptedConfirmer) Confirm(prompt string) bool {
	c.prompts = append(c.prompts, prompt)
	return c.answer
}

type tickRecorder struct {
	mu  sync.Mutex
	ids []string
}

func (r *tickRecorder) Tick(id string) {
	r.mu.Lock()
	r.ids = append(r.ids, id)
	r.mu.Unlock()
}

type capturedRequest struct {
	form   url.Values
	header http.Header
}

func newTestEngine(t *testing.T, status int, store storage.Store) (*Engine, *scriptedConfirmer, *tickRecorder, *notify.Service, func() []capturedRequest) {
	t.Helper()

	var mu sync.Mutex
	var reqs []capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		mu.Lock()
		reqs = append(reqs, capturedRequest{form: r.PostForm, header: r.Header.Clone()})
		mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)

	client, err := httpx.New(srv.URL, 2*time.Second, logx.Nop())
	if err != nil {
		t.Fatalf("httpx.New: %v", err)
	}

	confirm := &scriptedConfirmer{answer: true}
	refresh := &tickRecorder{}
	toasts := notify.New(logx.Nop())
	e := New(client, toasts, page.StaticTokenSource("tok-123"), confirm, refresh, store, nil, logx.Nop())

	requests := func() []capturedRequest {
		mu.Lock()
		defer mu.Unlock()
		out := make([]capturedRequest, len(reqs))
		copy(out, reqs)
		return out
	}
	return e, confirm, refresh, toasts, requests
}

func TestSubmitDeclinedMakesNoRequest(t *testing.T) {
	t.Parallel()
	e, confirm, refresh, toasts, requests := newTestEngine(t, http.StatusOK, nil)
	confirm.answer = false

	out, err := e.Submit(context.Background(), Form{
		ID:            "revoke-7",
		URL:           "/users/7/revoke",
		ConfirmPrompt: "Revoke all keys for this user?",
		Background:    true,
	})
	if err != nil || out != OutcomeCancelled {
		t.Fatalf("Submit = %v, %v; want cancelled", out, err)
	}
	if len(confirm.prompts) != 1 || confirm.prompts[0] != "Revoke all keys for this user?" {
		t.Fatalf("prompts = %v", confirm.prompts)
	}
	if len(requests()) != 0 {
		t.Fatal("declined confirmation still produced a request")
	}
	if len(refresh.ids) != 0 || len(toasts.Active()) != 0 {
		t.Fatal("declined confirmation produced side effects")
	}
}

func TestSubmitNavigateInjectsToken(t *testing.T) {
	t.Parallel()
	e, _, _, _, requests := newTestEngine(t, http.StatusOK, nil)

	form := Form{ID: "edit-user", URL: "/users/7/edit", Fields: url.Values{"name": {"bob"}}}
	out, err := e.Submit(context.Background(), form)
	if err != nil || out != OutcomeNavigate {
		t.Fatalf("Submit = %v, %v; want navigate", out, err)
	}
	if got := form.Fields.Get("csrf_token"); got != "tok-123" {
		t.Fatalf("csrf_token = %q, want injected token", got)
	}
	if len(requests()) != 0 {
		t.Fatal("navigate outcome must not POST in the background")
	}
}

func TestSubmitKeepsExistingToken(t *testing.T) {
	t.Parallel()
	e, _, _, _, _ := newTestEngine(t, http.StatusOK, nil)

	form := Form{ID: "f", URL: "/x", Fields: url.Values{"csrf_token": {"server-issued"}}}
	if _, err := e.Submit(context.Background(), form); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if got := form.Fields.Get("csrf_token"); got != "server-issued" {
		t.Fatalf("csrf_token = %q, existing token was overwritten", got)
	}
}

func TestSubmitBackgroundSuccess(t *testing.T) {
	t.Parallel()
	e, _, refresh, toasts, requests := newTestEngine(t, http.StatusOK, nil)

	out, err := e.Submit(context.Background(), Form{
		ID:            "revoke-7",
		URL:           "/users/7/revoke",
		Background:    true,
		Action:        ActionRevokeKeys,
		RefreshTarget: "user-detail",
	})
	if err != nil || out != OutcomeDone {
		t.Fatalf("Submit = %v, %v; want done", out, err)
	}

	reqs := requests()
	if len(reqs) != 1 {
		t.Fatalf("requests = %d, want 1", len(reqs))
	}
	if got := reqs[0].form.Get("csrf_token"); got != "tok-123" {
		t.Fatalf("posted csrf_token = %q", got)
	}
	if got := reqs[0].header.Get("X-Requested-With"); got != "XMLHttpRequest" {
		t.Fatalf("X-Requested-With = %q", got)
	}

	if len(refresh.ids) != 1 || refresh.ids[0] != "user-detail" {
		t.Fatalf("refreshed targets = %v", refresh.ids)
	}
	active := toasts.Active()
	if len(active) != 1 || active[0].Category != notify.Success || active[0].Text != "User keys revoked." {
		t.Fatalf("toasts = %+v", active)
	}
}

func TestSubmitBackgroundFailure(t *testing.T) {
	t.Parallel()
	e, _, refresh, toasts, requests := newTestEngine(t, http.StatusInternalServerError, nil)

	out, _ := e.Submit(context.Background(), Form{
		ID:            "revoke-7",
		URL:           "/users/7/revoke",
		Background:    true,
		Action:        ActionRevokeKeys,
		RefreshTarget: "user-detail",
	})
	if out != OutcomeFailed {
		t.Fatalf("Submit = %v, want failed", out)
	}
	if len(requests()) != 1 {
		t.Fatal("failure path must still have attempted the POST")
	}
	if len(refresh.ids) != 0 {
		t.Fatalf("failed action refreshed %v", refresh.ids)
	}
	active := toasts.Active()
	if len(active) != 1 || active[0].Category != notify.Danger {
		t.Fatalf("toasts = %+v, want one danger", active)
	}
}

func TestSubmitDuplicateDropped(t *testing.T) {
	t.Parallel()
	store, err := storage.Open(storage.Config{Driver: "file", Path: filepath.Join(t.TempDir(), "panelsync.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	e, _, _, _, requests := newTestEngine(t, http.StatusOK, store)

	form := Form{ID: "revoke-7", URL: "/users/7/revoke", Background: true}
	if out, err := e.Submit(context.Background(), form); err != nil || out != OutcomeDone {
		t.Fatalf("first Submit = %v, %v", out, err)
	}
	if out, err := e.Submit(context.Background(), form); err != nil || out != OutcomeDuplicate {
		t.Fatalf("second Submit = %v, %v; want duplicate", out, err)
	}
	if got := len(requests()); got != 1 {
		t.Fatalf("requests = %d, want 1", got)
	}
}

func TestSubmitMissingURL(t *testing.T) {
	t.Parallel()
	e, _, _, _, _ := newTestEngine(t, http.StatusOK, nil)
	if out, err := e.Submit(context.Background(), Form{ID: "f"}); err != ErrMissingURL || out != OutcomeFailed {
		t.Fatalf("Submit = %v, %v; want failed, ErrMissingURL", out, err)
	}
}
