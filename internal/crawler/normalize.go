package crawler

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeURL returns the canonical form of an absolute http(s) URL used
// for deduplication: lowercase scheme and host, no fragment, no default
// port, and "/" for an empty path.
//
// Query strings are kept as-is; two URLs differing only in query order are
// treated as different pages.
func NormalizeURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", raw, err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, raw)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("%w: %q", ErrEmptyHost, raw)
	}

	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		port = ""
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port != "" {
		host += ":" + port
	}
	u.Host = host

	u.Fragment = ""
	u.RawFragment = ""
	u.User = nil
	if u.Path == "" {
		u.Path = "/"
	}

	return u.String(), nil
}

// NormalizeSeed is NormalizeURL for operator input: a seed without a
// scheme is assumed to be https.
func NormalizeSeed(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw != "" && !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	return NormalizeURL(raw)
}

// hostOf returns the lowercase hostname of rawURL without port, or "" when
// the URL cannot be parsed.
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
