// Package device turns raw User-Agent strings into short display names.
// Consent audit events carry the result so a grant can later be attributed to
// the client it came from.
package device

import "github.com/mssola/useragent"

// ParseUserAgent returns a human-readable device name like "Chrome on Mac OS
// X". Unknown or empty agents collapse to a fixed placeholder.
func ParseUserAgent(raw string) string {
	if raw == "" {
		return "Unknown Device"
	}
	ua := useragent.New(raw)
	browser, _ := ua.Browser()
	os := ua.OSInfo().Name
	switch {
	case browser != "" && os != "":
		return browser + " on " + os
	case browser != "":
		return browser
	case os != "":
		return os
	default:
		return "Unknown Device"
	}
}
