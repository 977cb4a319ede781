package page

import (
	"regexp"
	"strings"
)

// metaTokenRe matches the csrf meta tag regardless of attribute order.
var (
	metaTagRe     = regexp.MustCompile(`(?is)<meta\b[^>]*>`)
	metaNameRe    = regexp.MustCompile(`(?is)\bname\s*=\s*["']?csrf-token["']?`)
	metaContentRe = regexp.MustCompile(`(?is)\bcontent\s*=\s*("([^"]*)"|'([^']*)'|([^\s"'>]+))`)
)

// MetaTokenSource reads the CSRF token from the document's
// <meta name="csrf-token" content="..."> tag, the same source the server
// injects into every rendered page.
type MetaTokenSource struct {
	// Document returns the current full document HTML.
	Document func() string
}

func (s MetaTokenSource) Token() (string, bool) {
	if s.Document == nil {
		return "", false
	}
	doc := s.Document()
	for _, tag := range metaTagRe.FindAllString(doc, -1) {
		if !metaNameRe.MatchString(tag) {
			continue
		}
		m := metaContentRe.FindStringSubmatch(tag)
		if m == nil {
			continue
		}
		for _, g := range m[2:] {
			if tok := strings.TrimSpace(g); tok != "" {
				return tok, true
			}
		}
	}
	return "", false
}

// StaticTokenSource returns a fixed token. Used by hosts that already hold one.
type StaticTokenSource string

func (s StaticTokenSource) Token() (string, bool) {
	tok := strings.TrimSpace(string(s))
	return tok, tok != ""
}
