// Package model defines the core data structures shared across deepcrawl.
//
// This package contains the following main types:
//   - LinkCandidate: a hyperlink discovered on a fetched page
//   - PageResult: the outcome of one fetch attempt during a traversal
//   - FetchResult and BrowserOptions: the contract with the fetch service
//   - BatchRun and SeedResult: the aggregated outcome of a multi-seed run
//   - Status and Strategy: the lifecycle and ordering enums
//
// Models live in their own package so that the crawler, pipeline, report and
// database packages can share them without import cycles. All of them are
// serializable to JSON for report output and database storage.
package model
