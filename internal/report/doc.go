// Package report renders batch crawl results.
//
// Three writers format a whole model.BatchRun:
//   - SimpleWriter: a plain text summary for the terminal, which can also
//     print pages one by one while a crawl is streaming
//   - JSONWriter: structured output for other tools
//   - MarkdownWriter: a combined Markdown document with every page
//
// Saver writes the run to disk, one folder per seed and one sub folder per
// page, together with combined Markdown, HTML and console files.
package report
