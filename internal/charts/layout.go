package charts

// Viewport breakpoints. They control label/legend density and visibility,
// never the data itself.
const (
	BreakpointTablet = 768
	BreakpointPhone  = 470
)

// Layout is the density tuning applied to a chart at the current viewport.
type Layout struct {
	ShowLegend bool `json:"show_legend"`
	// MaxTicks caps how many x-axis labels are drawn.
	MaxTicks int `json:"max_ticks"`
}

func LayoutFor(width int) Layout {
	switch {
	case width <= BreakpointPhone:
		return Layout{ShowLegend: false, MaxTicks: 5}
	case width <= BreakpointTablet:
		return Layout{ShowLegend: false, MaxTicks: 10}
	default:
		return Layout{ShowLegend: true, MaxTicks: 15}
	}
}
