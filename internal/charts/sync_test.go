package charts

import (
	"sync"
	"testing"
	"time"

	logx "panelsync/pkg/logx"
)

type fakeRenderer struct {
	mu sync.Mutex

	patches    int
	lastLabels []string
	lastSeries []Series

	layouts    int
	lastLayout Layout
}

func (r *fakeRenderer) Patch(labels []string, series []Series) {
	r.mu.Lock()
	r.patches++
	r.lastLabels = labels
	r.lastSeries = series
	r.mu.Unlock()
}

func (r *fakeRenderer) ApplyLayout(l Layout) {
	r.mu.Lock()
	r.layouts++
	r.lastLayout = l
	r.mu.Unlock()
}

func newTestSync(r Renderer) *Sync {
	return &Sync{
		days:     WindowDays,
		renderer: r,
		log:      logx.Nop(),
		now: func() time.Time {
			return time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
		},
	}
}

func TestApplyPatchesBothSeries(t *testing.T) {
	t.Parallel()
	r := &fakeRenderer{}
	s := newTestSync(r)

	s.Apply(&Aggregate{
		Users: map[string]int{"2026-03-15": 3, "2026-03-01": 1},
		Keys:  map[string]int{"2026-03-15": 2},
	})

	if r.patches != 1 {
		t.Fatalf("patches = %d, want 1", r.patches)
	}
	if len(r.lastLabels) != WindowDays {
		t.Fatalf("labels = %d, want %d", len(r.lastLabels), WindowDays)
	}
	if len(r.lastSeries) != 2 {
		t.Fatalf("series = %d, want 2", len(r.lastSeries))
	}
	users, keys := r.lastSeries[0], r.lastSeries[1]
	if users.Label != "New users" || keys.Label != "New keys" {
		t.Fatalf("series labels = %q, %q", users.Label, keys.Label)
	}
	if users.Points[WindowDays-1] != 3 || keys.Points[WindowDays-1] != 2 {
		t.Fatalf("today's points = %d/%d, want 3/2", users.Points[WindowDays-1], keys.Points[WindowDays-1])
	}
	// Sparse days are zero-filled, same length as labels.
	if len(users.Points) != WindowDays || len(keys.Points) != WindowDays {
		t.Fatalf("points length = %d/%d", len(users.Points), len(keys.Points))
	}
}

func TestApplyEmptyAggregate(t *testing.T) {
	t.Parallel()
	r := &fakeRenderer{}
	s := newTestSync(r)
	s.Apply(&Aggregate{})
	for _, sr := range r.lastSeries {
		for _, p := range sr.Points {
			if p != 0 {
				t.Fatalf("empty aggregate produced nonzero point in %q", sr.Label)
			}
		}
	}
}

func TestOnResizeDedupsLayout(t *testing.T) {
	t.Parallel()
	r := &fakeRenderer{}
	s := newTestSync(r)

	s.OnResize(1200)
	s.OnResize(1100) // same bucket
	if r.layouts != 1 {
		t.Fatalf("layouts = %d, want 1 (same bucket reapplied)", r.layouts)
	}
	s.OnResize(400)
	if r.layouts != 2 {
		t.Fatalf("layouts = %d, want 2", r.layouts)
	}
	if r.lastLayout != LayoutFor(400) {
		t.Fatalf("layout = %+v", r.lastLayout)
	}
}
