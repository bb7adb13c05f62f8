package helpers

import (
	"net"
	"net/url"
	"strings"
)

// Domain extracts the lowercased hostname of a URL, or "" when it cannot be
// parsed.
func Domain(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(u.Hostname()))
}

// IsPublicHTTPURL reports whether a URL is acceptable for fetching: http or
// https scheme, a non-empty host that is not literally "localhost", and —
// when the host is a literal IP — not private, loopback or link-local.
// Hostnames are accepted without DNS resolution, so a public hostname that
// resolves to a private address is not caught.
func IsPublicHTTPURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	host := strings.ToLower(strings.TrimSpace(u.Hostname()))
	if host == "" {
		return false
	}
	if host == "localhost" {
		return false
	}
	if ip := net.ParseIP(host); ip != nil {
		if ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
			return false
		}
	}
	return true
}
