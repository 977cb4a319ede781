// Package page defines the surface the host exposes to the sync engine.
//
// The engine never touches the rendered page directly: the host hands it
// regions, a navigator, a confirmation prompt, a viewport and a CSRF token
// source, and the engine drives those. Tests plug in in-memory fakes.
package page

import "sync"

// SwapOptions tune how a region applies new content.
type SwapOptions struct {
	// PreserveHeight keeps the region's prior rendered height as a temporary
	// minimum while new content settles, preventing layout jump.
	PreserveHeight bool
	// Highlight applies a brief transition to the swapped subtree.
	Highlight bool
}

// Region is one exclusively-owned page container.
//
// While a swap is in progress the owning sync loop is the only writer; hosts
// must not mutate the subtree concurrently.
type Region interface {
	ID() string
	HTML() string
	SetHTML(html string, opts SwapOptions)
}

// Navigator performs full-page navigation (session rerouting, redirects).
type Navigator interface {
	Navigate(url string)
}

// Confirmer presents a blocking confirmation prompt.
// Returning false cancels the guarded operation entirely.
type Confirmer interface {
	Confirm(prompt string) bool
}

// Viewport reports the current layout width in CSS pixels.
type Viewport interface {
	Width() int
}

// TokenSource supplies the page's CSRF token.
type TokenSource interface {
	Token() (string, bool)
}

// ---- In-memory region ----

// MemoryRegion is a thread-safe Region backed by a string.
// Hosts without a real render surface (and the test suite) use it directly.
type MemoryRegion struct {
	id string

	mu       sync.Mutex
	html     string
	swaps    int
	lastOpts SwapOptions
}

func NewMemoryRegion(id, initialHTML string) *MemoryRegion {
	return &MemoryRegion{id: id, html: initialHTML}
}

func (r *MemoryRegion) ID() string { return r.id }

func (r *MemoryRegion) HTML() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.html
}

func (r *MemoryRegion) SetHTML(html string, opts SwapOptions) {
	r.mu.Lock()
	r.html = html
	r.swaps++
	r.lastOpts = opts
	r.mu.Unlock()
}

// Swaps reports how many times content was applied.
func (r *MemoryRegion) Swaps() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.swaps
}

// LastOptions returns the options of the most recent swap.
func (r *MemoryRegion) LastOptions() SwapOptions {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastOpts
}

// FuncNavigator adapts a function to Navigator.
type FuncNavigator func(url string)

func (f FuncNavigator) Navigate(url string) { f(url) }

// StaticViewport is a fixed-width Viewport.
type StaticViewport int

func (v StaticViewport) Width() int { return int(v) }
