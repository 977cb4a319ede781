package fragment

import "strings"

// guardProbeLen is how much of the payload the full-document heuristic reads.
const guardProbeLen = 512

// LooksLikeFullDocument reports whether a payload is a complete HTML page
// rather than a fragment.
//
// A login page or an error page swapped into a content slot is worse than a
// stale region, so fragment responses that smell like whole documents are
// discarded before they reach the DOM.
func LooksLikeFullDocument(body string) bool {
	probe := strings.TrimSpace(body)
	if len(probe) > guardProbeLen {
		probe = probe[:guardProbeLen]
	}
	probe = strings.ToLower(probe)

	if strings.HasPrefix(probe, "<!doctype") || strings.HasPrefix(probe, "<html") {
		return true
	}
	return strings.Contains(probe, "<head") &&
		strings.Contains(probe, "<title") &&
		strings.Contains(probe, "</html>")
}
