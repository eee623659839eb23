package log

import (
	"net/url"
	"regexp"
	"strings"
)

// MaskValue replaces every redacted value.
const MaskValue = "***REDACTED***"

func setOf(items ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(items))
	for _, item := range items {
		m[item] = struct{}{}
	}
	return m
}

// secretKeys are attribute keys masked on exact (case-insensitive) match.
// The list covers the request headers a crawl profile can set.
var secretKeys = setOf(
	"authorization", "proxy-authorization", "cookie", "set-cookie",
	"x-api-key", "x-auth-token", "api_key", "apikey", "api-key",
	"access_token", "refresh_token", "session", "session_id", "sessionid",
	"sid", "jsessionid", "credentials",
)

// secretKeyParts mask any key containing them. "key" alone is absent so
// that keyword and similar crawl attributes stay readable.
var secretKeyParts = []string{
	"password", "passwd", "secret", "token", "auth", "credential", "cookie",
}

// secretQueryParams are masked inside URL-valued attributes.
var secretQueryParams = setOf(
	"token", "access_token", "refresh_token", "id_token", "api_key", "apikey",
	"key", "secret", "password", "passwd", "auth", "session", "sessionid",
	"sid", "sig", "signature", "code", "x-amz-signature", "x-amz-credential",
)

// secretShapes match values that are masked whatever their key.
var secretShapes = []*regexp.Regexp{
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`), // JWT
	regexp.MustCompile(`(?i)^bearer\s+.+`),
	regexp.MustCompile(`(?i)^basic\s+[A-Za-z0-9+/=]+$`),
	regexp.MustCompile(`^AKIA[0-9A-Z]{16}$`),
	regexp.MustCompile(`(?i)-----BEGIN.*(PRIVATE|SECRET).*KEY-----`),
}

// isSecretKey reports whether values logged under key must be masked.
func isSecretKey(key string) bool {
	key = strings.ToLower(key)
	if _, ok := secretKeys[key]; ok {
		return true
	}
	for _, part := range secretKeyParts {
		if strings.Contains(key, part) {
			return true
		}
	}
	return false
}

func looksSecret(value string) bool {
	for _, re := range secretShapes {
		if re.MatchString(value) {
			return true
		}
	}
	return false
}

// RedactURL masks user info and secret query parameter values in an
// absolute http(s) URL and reports whether it changed anything. Other
// strings come back untouched.
func RedactURL(s string) (string, bool) {
	lower := strings.ToLower(s)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return s, false
	}
	u, err := url.Parse(s)
	if err != nil {
		return s, false
	}

	changed := u.User != nil
	if changed {
		u.User = url.User(MaskValue)
	}

	if u.RawQuery != "" {
		q := u.Query()
		masked := false
		for name := range q {
			if _, ok := secretQueryParams[strings.ToLower(name)]; ok {
				q.Set(name, MaskValue)
				masked = true
			}
		}
		if masked {
			u.RawQuery = q.Encode()
			changed = true
		}
	}

	if !changed {
		return s, false
	}
	return u.String(), true
}
