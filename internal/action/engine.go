// Package action guards destructive form submissions.
//
// A flagged form must pass a blocking confirmation before anything happens.
// Background-flagged forms are sent as XHR-style POSTs with the page CSRF
// token; on success the named fragment target is refreshed immediately, and
// on failure nothing is mutated.
package action

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"panelsync/internal/eventbus"
	"panelsync/internal/httpx"
	"panelsync/internal/notify"
	"panelsync/internal/page"
	"panelsync/internal/storage"
	logx "panelsync/pkg/logx"
)

// csrfField is the form field the panel's CSRF middleware expects.
const csrfField = "csrf_token"

// dedupTTL is how long a submitted form is considered "in flight" for
// double-submit protection.
const dedupTTL = 5 * time.Second

// ActionRevokeKeys is the semantic tag with specialized message copy.
const ActionRevokeKeys = "revoke-keys"

// Form is one confirmation-guarded submission.
type Form struct {
	ID     string // unique form identity; keys dedup
	URL    string
	Fields url.Values

	// ConfirmPrompt must be accepted or the submission is cancelled entirely.
	ConfirmPrompt string

	// Background sends the form as a background POST instead of navigating.
	Background bool

	// Action selects success/failure message copy. Optional.
	Action string

	// RefreshTarget names the fragment to tick after a successful
	// background submission. Optional.
	RefreshTarget string
}

type Outcome string

const (
	// OutcomeCancelled: the viewer declined the prompt; no network call was made.
	OutcomeCancelled Outcome = "cancelled"
	// OutcomeNavigate: confirmation passed and the host should let the normal
	// navigation submission proceed (token already injected).
	OutcomeNavigate Outcome = "navigate"
	// OutcomeDuplicate: an identical submission is still in flight; dropped.
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeDone      Outcome = "done"
	OutcomeFailed    Outcome = "failed"
)

// Refresher ticks a named fragment target immediately.
// *fragment.Engine satisfies it.
type Refresher interface {
	Tick(id string)
}

type Engine struct {
	client  *httpx.Client
	toasts  *notify.Service
	tokens  page.TokenSource
	confirm page.Confirmer
	refresh Refresher
	store   storage.Store // optional
	bus     eventbus.Bus
	log     logx.Logger
}

func New(client *httpx.Client, toasts *notify.Service, tokens page.TokenSource, confirm page.Confirmer, refresh Refresher, store storage.Store, bus eventbus.Bus, log logx.Logger) *Engine {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Engine{
		client:  client,
		toasts:  toasts,
		tokens:  tokens,
		confirm: confirm,
		refresh: refresh,
		store:   store,
		bus:     bus,
		log:     log,
	}
}

var ErrMissingURL = errors.New("action: form url is required")

// Submit runs the full intercept path for one form.
func (e *Engine) Submit(ctx context.Context, form Form) (Outcome, error) {
	if strings.TrimSpace(form.URL) == "" {
		return OutcomeFailed, ErrMissingURL
	}

	if form.ConfirmPrompt != "" {
		if e.confirm == nil || !e.confirm.Confirm(form.ConfirmPrompt) {
			// A declined confirmation is a cancelled operation, not an error.
			e.log.Debug("action cancelled by viewer", logx.String("form", form.ID))
			return OutcomeCancelled, nil
		}
	}

	if form.Fields == nil {
		form.Fields = url.Values{}
	}
	e.injectToken(form.Fields)

	if !form.Background {
		// The host submits via normal navigation; our part is done.
		return OutcomeNavigate, nil
	}

	// Double-submit guard: identical background submissions inside the TTL
	// window are dropped before any network traffic.
	dedupKey := "action:" + form.ID
	if e.store != nil {
		until, ok, err := e.store.GetDedup(ctx, dedupKey)
		if err == nil && ok && until.After(time.Now()) {
			e.log.Warn("duplicate submission dropped", logx.String("form", form.ID))
			return OutcomeDuplicate, nil
		}
		_ = e.store.PutDedup(ctx, dedupKey, time.Now().Add(dedupTTL))
	}

	start := time.Now()
	res, err := e.client.PostForm(ctx, form.URL, form.Fields)

	entry := storage.AuditEntry{
		ID:     uuid.NewString(),
		At:     start,
		Action: form.Action,
		FormID: form.ID,
		URL:    form.URL,
		TookMS: time.Since(start).Milliseconds(),
	}

	if err != nil || !res.OK() {
		if res != nil {
			entry.Status = res.StatusCode
		}
		if err != nil {
			entry.Error = err.Error()
		} else {
			entry.Error = "unexpected status"
		}
		e.audit(ctx, entry)
		e.toasts.Push(notify.Danger, failureText(form.Action))
		e.publish(eventbus.TypeActionFailed, form, entry.Status)
		e.log.Warn("action failed",
			logx.String("form", form.ID), logx.String("action", form.Action),
			logx.Int("status", entry.Status), logx.Err(err))
		// No state mutation and no refresh on failure.
		return OutcomeFailed, err
	}

	entry.Status = res.StatusCode
	entry.OK = true
	e.audit(ctx, entry)

	e.toasts.Push(notify.Success, successText(form.Action))
	if form.RefreshTarget != "" && e.refresh != nil {
		e.refresh.Tick(form.RefreshTarget)
	}
	e.publish(eventbus.TypeActionDone, form, res.StatusCode)
	e.log.Info("action completed",
		logx.String("form", form.ID), logx.String("action", form.Action),
		logx.String("refresh", form.RefreshTarget))
	return OutcomeDone, nil
}

// injectToken appends the CSRF token only when the form doesn't already carry one.
func (e *Engine) injectToken(fields url.Values) {
	if fields.Get(csrfField) != "" {
		return
	}
	if e.tokens == nil {
		return
	}
	if tok, ok := e.tokens.Token(); ok {
		fields.Set(csrfField, tok)
	}
}

func (e *Engine) audit(ctx context.Context, entry storage.AuditEntry) {
	if e.store == nil {
		return
	}
	if err := e.store.AppendAudit(ctx, entry); err != nil {
		e.log.Debug("audit append failed", logx.Err(err))
	}
}

func (e *Engine) publish(typ string, form Form, status int) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(eventbus.Event{Type: typ, Data: map[string]any{
		"form":   form.ID,
		"action": form.Action,
		"status": status,
	}})
}

func successText(action string) string {
	if action == ActionRevokeKeys {
		return "User keys revoked."
	}
	return "Action completed."
}

func failureText(action string) string {
	if action == ActionRevokeKeys {
		return "Failed to revoke keys."
	}
	return "Action failed."
}
