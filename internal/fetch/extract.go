package fetch

import (
	"bytes"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"golang.org/x/net/publicsuffix"

	"github.com/nao1215/deepcrawl/internal/model"
)

// Document is what the Extractor gets out of one HTML page.
type Document struct {
	// Title is the page title, from readability or the <title> element.
	Title string
	// Markdown is the main content converted to Markdown.
	Markdown string
	// Links are the unique http(s) links of the page, in document order.
	Links []model.LinkCandidate
}

// Extractor turns fetched HTML into Markdown and link candidates.
type Extractor struct {
	readability bool
	logger      *slog.Logger
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithReadability toggles main-content extraction. When off, the whole
// <body> is converted.
func WithReadability(enabled bool) ExtractorOption {
	return func(e *Extractor) {
		e.readability = enabled
	}
}

// WithExtractorLogger sets the logger for extraction warnings.
func WithExtractorLogger(logger *slog.Logger) ExtractorOption {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewExtractor returns an Extractor with readability enabled.
func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		readability: true,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract parses html fetched from pageURL. Links are resolved against
// pageURL, or the document's <base href> when present.
func (e *Extractor) Extract(pageURL string, html []byte) (*Document, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, err
	}

	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if b, err := base.Parse(strings.TrimSpace(href)); err == nil {
			base = b
		}
	}

	out := &Document{
		Title: collapseSpace(doc.Find("title").First().Text()),
		Links: extractLinks(doc, base, pageURL),
	}

	content := doc.Find("body")
	if e.readability {
		parser := readability.NewParser()
		article, err := parser.Parse(bytes.NewReader(html), base)
		switch {
		case err != nil:
			e.logger.Debug("readability failed, converting full body", "url", pageURL, "error", err)
		case strings.TrimSpace(article.Content) != "":
			if article.Title != "" {
				out.Title = collapseSpace(article.Title)
			}
			if main, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content)); err == nil {
				content = main.Find("body")
			}
		}
	}
	if content.Length() == 0 {
		content = doc.Find("html")
	}

	out.Markdown = toMarkdown(out.Title, content, base)
	return out, nil
}

// extractLinks collects a[href] targets. Only http(s) links are kept,
// fragments are dropped and duplicates keep their first occurrence, with
// the first non-empty anchor text.
func extractLinks(doc *goquery.Document, base *url.URL, source string) []model.LinkCandidate {
	links := make([]model.LinkCandidate, 0)
	index := make(map[string]int)

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}

		u, err := base.Parse(href)
		if err != nil {
			return
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return
		}
		u.Fragment = ""
		u.RawFragment = ""
		resolved := u.String()

		text := collapseSpace(s.Text())
		if text == "" {
			text = collapseSpace(s.AttrOr("title", ""))
		}

		if i, seen := index[resolved]; seen {
			if links[i].AnchorText == "" {
				links[i].AnchorText = text
			}
			return
		}
		index[resolved] = len(links)
		links = append(links, model.LinkCandidate{
			URL:        resolved,
			SourceURL:  source,
			AnchorText: text,
			IsExternal: IsExternal(base, u),
		})
	})
	return links
}

// IsExternal reports whether target belongs to a different registrable
// domain than page. Hosts without a public suffix, such as IP addresses
// and localhost, are compared exactly.
func IsExternal(page, target *url.URL) bool {
	ph := strings.ToLower(page.Hostname())
	th := strings.ToLower(target.Hostname())
	if ph == th {
		return false
	}
	pd, err1 := publicsuffix.EffectiveTLDPlusOne(ph)
	td, err2 := publicsuffix.EffectiveTLDPlusOne(th)
	if err1 != nil || err2 != nil {
		return true
	}
	return pd != td
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
