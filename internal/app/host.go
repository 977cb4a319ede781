package app

import (
	"panelsync/internal/charts"
	"panelsync/internal/chat"
	"panelsync/internal/page"
	logx "panelsync/pkg/logx"
)

// Host is the page surface an embedder hands to the engine. Every field is
// optional; missing pieces fall back to headless defaults suitable for the
// daemon (log-backed views, declining confirmer, unload-on-navigate).
type Host struct {
	// Regions maps fragment element ids to their render surfaces. Fragments
	// configured without a region get an in-memory one.
	Regions map[string]page.Region

	ChatView      chat.View
	ChartRenderer charts.Renderer
	Navigator     page.Navigator
	Confirmer     page.Confirmer
	Tokens        page.TokenSource
	Viewport      page.Viewport
}

// logChatView renders the chat thread into the log stream. Used when the
// daemon runs without a real UI.
type logChatView struct {
	log logx.Logger
}

func (v *logChatView) NearBottom(int) bool { return true }

func (v *logChatView) RenderMessages(msgs []chat.Message, highlightFrom int) {
	if len(msgs) == 0 {
		v.log.Info("chat: no messages yet")
		return
	}
	for i := highlightFrom; i < len(msgs); i++ {
		m := msgs[i]
		who := "user"
		if m.Admin() {
			who = "admin"
		}
		v.log.Info("chat message", logx.String("from", who), logx.String("at", m.CreatedAt), logx.String("text", m.Content))
	}
}

func (v *logChatView) SetStatus(st chat.Status, replyEnabled bool, toggle chat.Toggle) {
	v.log.Debug("chat status",
		logx.String("status", string(st)),
		logx.Bool("reply_enabled", replyEnabled),
		logx.String("toggle", toggle.Label),
	)
}

func (v *logChatView) PinBottom() {}

// logChartRenderer records patches without drawing anything.
type logChartRenderer struct {
	log logx.Logger
}

func (r *logChartRenderer) Patch(labels []string, series []charts.Series) {
	for _, s := range series {
		total := 0
		for _, p := range s.Points {
			total += p
		}
		r.log.Debug("chart patched", logx.String("series", s.Label), logx.Int("points", len(s.Points)), logx.Int("total", total))
	}
	_ = labels
}

func (r *logChartRenderer) ApplyLayout(l charts.Layout) {
	r.log.Debug("chart layout", logx.Bool("legend", l.ShowLegend), logx.Int("max_ticks", l.MaxTicks))
}

// declineConfirmer rejects every prompt. A headless daemon has nobody to ask,
// and destructive actions must never default to "yes".
type declineConfirmer struct {
	log logx.Logger
}

func (c *declineConfirmer) Confirm(prompt string) bool {
	c.log.Warn("confirmation declined (no interactive confirmer)", logx.String("prompt", prompt))
	return false
}
