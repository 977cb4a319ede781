package fragment

import (
	"strings"
	"testing"
)

func TestLooksLikeFullDocument(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		body string
		want bool
	}{
		{name: "doctype", body: "<!DOCTYPE html>\n<html><body>login</body></html>", want: true},
		{name: "doctype lowercase", body: "<!doctype html><html></html>", want: true},
		{name: "html root with attrs", body: `  <HTML lang="en"><head></head></HTML>`, want: true},
		{name: "leading whitespace before doctype", body: "\n\t  <!doctype html>", want: true},
		{name: "head title and closing html", body: `<base><head><title>Sign in</title></head><body></body></html>`, want: true},
		{name: "plain fragment", body: `<div class="card"><span>42 users</span></div>`, want: false},
		{name: "fragment mentioning html in text", body: `<div>escaped &lt;html&gt; text</div>`, want: false},
		{name: "head without title", body: `<section><head></head>content</html>`, want: false},
		{name: "empty", body: "", want: false},
		{name: "whitespace only", body: "   \n\t ", want: false},
		{name: "markers beyond probe window", body: `<div>` + strings.Repeat("x", 600) + `</div><head><title>t</title></html>`, want: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := LooksLikeFullDocument(tt.body); got != tt.want {
				t.Fatalf("LooksLikeFullDocument(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}
