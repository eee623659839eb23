// Package fetch implements the page retrieval service used by the crawler.
//
// Two engines satisfy crawler.Fetcher:
//   - HTTPFetcher downloads pages with net/http, decodes gzip, deflate and
//     brotli bodies, honours robots.txt and a per-host request rate.
//   - Renderer drives headless Chrome through chromedp for pages that need
//     JavaScript, capturing the browser console as it goes.
//
// Both hand the final HTML to an Extractor, which resolves the page's links
// and converts its main content to Markdown. New picks the engine from the
// application configuration.
package fetch
