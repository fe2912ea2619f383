// Package thumbnail decides whether a cached preview URL can be shown as-is.
package thumbnail

import (
	"net/url"
	"strings"
)

// Class is the usability of a cached thumbnail URL.
type Class int

const (
	// Absent means there is no usable URL: missing, malformed, broken or the
	// placeholder. The file needs a lookup.
	Absent Class = iota
	// Stale means the URL belongs to an expired link generation and must be
	// refreshed.
	Stale
	// Fresh means the URL can be rendered without a lookup.
	Fresh
)

func (c Class) String() string {
	switch c {
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	default:
		return "absent"
	}
}

// Placeholder is shown for files without a resolvable thumbnail. It never
// classifies as Fresh.
const Placeholder = "https://via.placeholder.com/200x120?text=No+Thumb"

// MinLength is the shortest URL accepted from an allow-listed host.
// Shorter links are almost always truncated.
const MinLength = 30

var (
	// Per-user preview paths from the old link generation.
	legacyPatterns = []string{
		"googleusercontent.com/u/",
		"docs.google.com/feeds/vt",
		"drive.google.com/thumbnail",
	}

	// Current storage CDN path; links here are trusted without further checks.
	currentCDNPatterns = []string{
		"lh3.googleusercontent.com/drive-storage/",
	}

	brokenTokens = []string{
		"expired",
		"404",
		"deleted",
		"error",
		"notfound",
		"not_found",
	}

	allowedHosts = []string{
		"googleusercontent.com",
		"ggpht.com",
		"drive.google.com",
		"docs.google.com",
		"googleapis.com",
	}
)

// Classify sorts a URL into Fresh, Stale or Absent. It does no I/O.
func Classify(rawURL string) Class {
	u := strings.TrimSpace(rawURL)
	if u == "" {
		return Absent
	}
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		return Absent
	}
	if u == Placeholder {
		return Absent
	}

	lower := strings.ToLower(u)
	for _, p := range legacyPatterns {
		if strings.Contains(lower, p) {
			return Stale
		}
	}
	for _, p := range currentCDNPatterns {
		if strings.Contains(lower, p) {
			return Fresh
		}
	}
	for _, tok := range brokenTokens {
		if strings.Contains(lower, tok) {
			return Absent
		}
	}
	if len(u) < MinLength {
		return Absent
	}

	parsed, err := url.Parse(u)
	if err != nil {
		return Absent
	}
	if hostAllowed(parsed.Hostname()) {
		return Fresh
	}
	return Absent
}

// IsFresh is shorthand for Classify(u) == Fresh.
func IsFresh(u string) bool {
	return Classify(u) == Fresh
}

func hostAllowed(host string) bool {
	host = strings.ToLower(host)
	for _, d := range allowedHosts {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
