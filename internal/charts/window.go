package charts

import "time"

const (
	// WindowDays is the fixed rolling-window length.
	WindowDays = 30

	dateKeyLayout = "2006-01-02"
	labelLayout   = "Jan 2"
)

// Window is a date-anchored label axis, recomputed relative to "today" on
// every render. Fixed length, oldest to newest.
type Window struct {
	Keys   []string // canonical YYYY-MM-DD keys
	Labels []string // short display labels
}

// NewWindow builds the last `days` calendar days ending at today.
func NewWindow(today time.Time, days int) Window {
	if days <= 0 {
		days = WindowDays
	}
	w := Window{
		Keys:   make([]string, 0, days),
		Labels: make([]string, 0, days),
	}
	for i := days - 1; i >= 0; i-- {
		d := today.AddDate(0, 0, -i)
		w.Keys = append(w.Keys, d.Format(dateKeyLayout))
		w.Labels = append(w.Labels, d.Format(labelLayout))
	}
	return w
}

// Points maps the window onto a sparse date-keyed count map.
// Dates absent from the map are 0, never an error.
func (w Window) Points(counts map[string]int) []int {
	pts := make([]int, len(w.Keys))
	for i, k := range w.Keys {
		pts[i] = counts[k]
	}
	return pts
}
