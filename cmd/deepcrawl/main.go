// Package main provides the entry point for the deepcrawl CLI.
//
// deepcrawl follows links outward from one or more seed URLs, breadth-first,
// depth-first or best-first by keyword relevance, and collects the content
// of every page it visits.
//
// Usage:
//
//	deepcrawl crawl <url>...
//	deepcrawl crawl --list <file>
//
// See --help for all available options.
package main

func main() {
	Execute()
}
