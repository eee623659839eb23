// Package tor routes crawler traffic through the Tor network.
//
// Client wraps a SOCKS5 dialer from golang.org/x/net/proxy and hands out
// http.Clients and transports for the HTTP fetch engine. CheckConnection
// verifies that the configured proxy really speaks SOCKS5 before a crawl
// starts. EmbeddedTor uses tornago to launch a private daemon when no
// system Tor is available.
package tor
