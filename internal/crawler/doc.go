// Package crawler implements the deep-crawl orchestration engine.
//
// # Architecture
//
// A traversal starts at one seed URL and repeatedly asks a Fetcher for the
// next page chosen by a Frontier. Links found on each page go through a
// FilterChain and a Scorer before they are queued. The engine never speaks
// HTTP itself; it only decides what to fetch next, in what order, whether to
// keep it and how to report it.
//
// # Components
//
//   - FilterChain: block list, allow list, URL glob patterns, external links
//   - Scorer: keyword relevance of a link (anchor text and URL path)
//   - Frontier: FIFO (BFS), LIFO (DFS) or max-heap (BestFirst) pending queue
//     with visited and queued sets
//   - Traversal: the state machine that drives one seed to a terminal state
//   - Handle: a traversal running on its own goroutine, cancellable, with a
//     result channel
//
// # Caps and cancellation
//
// No page deeper than MaxDepth is ever fetched and at most MaxPages results
// (failures included) are produced per seed. Cancellation is checked between
// fetches; an in-flight fetch always finishes and its page is kept.
//
// # Usage
//
//	h, err := crawler.Start(ctx, fetcher, "https://example.com", cfg)
//	if err != nil {
//		return err
//	}
//	for page := range h.Results() {
//		fmt.Println(page.URL, page.Depth)
//	}
//	outcome := h.Wait()
package crawler
