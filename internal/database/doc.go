// Package database provides SQLite-based storage for deepcrawl run history.
//
// CrawlDB stores:
//   - Batch runs with their status, seeds and traversal configuration
//   - Per-seed outcomes
//   - Every page result in fetch order, including failures
//
// SQLite is used through modernc.org/sqlite, a CGO-free driver, so the
// history is a single file under the XDG data directory and the binary
// cross-compiles without a C toolchain. WAL mode is enabled by default.
package database
