package charts

import "testing"

func TestLayoutFor(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		width int
		want  Layout
	}{
		{name: "phone", width: 320, want: Layout{ShowLegend: false, MaxTicks: 5}},
		{name: "phone boundary", width: 470, want: Layout{ShowLegend: false, MaxTicks: 5}},
		{name: "tablet", width: 471, want: Layout{ShowLegend: false, MaxTicks: 10}},
		{name: "tablet boundary", width: 768, want: Layout{ShowLegend: false, MaxTicks: 10}},
		{name: "desktop", width: 769, want: Layout{ShowLegend: true, MaxTicks: 15}},
		{name: "wide", width: 1920, want: Layout{ShowLegend: true, MaxTicks: 15}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := LayoutFor(tt.width); got != tt.want {
				t.Fatalf("LayoutFor(%d) = %+v, want %+v", tt.width, got, tt.want)
			}
		})
	}
}
