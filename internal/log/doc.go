// Package log provides the structured logger used across deepcrawl.
//
// It wraps slog with SecureHandler, which masks sensitive data before it is
// written:
//   - credential-like attribute keys (cookie, authorization, password, token)
//   - token-shaped values (JWT, bearer and basic credentials, AWS keys)
//   - user info and secret query parameters inside logged URLs
//
// Crawled pages routinely link to URLs carrying session tokens or signed
// query strings, so every URL that reaches the log passes through RedactURL.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Info("fetching", "url", "https://example.com/cb?token=abc")
//	// url=https://example.com/cb?token=%2A%2A%2AREDACTED%2A%2A%2A
//
// The same logger is handed to tornago when the embedded Tor daemon is used.
package log
