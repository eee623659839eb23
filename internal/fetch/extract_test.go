package fetch

import (
	"net/url"
	"strings"
	"testing"
)

func TestExtractor_Links(t *testing.T) {
	t.Parallel()

	html := `<html><body>
<a href="/docs">Docs</a>
<a href="/docs#install">Install</a>
<a href="#top">Top</a>
<a href="mailto:me@example.com">Mail</a>
<a href="javascript:void(0)">JS</a>
<a href="/empty"></a>
<a href="/empty">  Empty   again </a>
<a href="https://blog.example.com/post">Blog</a>
<a href="https://other.org/">Other</a>
<a href="ftp://example.com/file">FTP</a>
</body></html>`

	doc, err := NewExtractor(WithReadability(false)).Extract("https://example.com/start", []byte(html))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	want := []struct {
		url      string
		text     string
		external bool
	}{
		{"https://example.com/docs", "Docs", false},
		{"https://example.com/empty", "Empty again", false},
		{"https://blog.example.com/post", "Blog", false},
		{"https://other.org/", "Other", true},
	}
	if len(doc.Links) != len(want) {
		t.Fatalf("expected %d links, got %+v", len(want), doc.Links)
	}
	for i, w := range want {
		got := doc.Links[i]
		if got.URL != w.url || got.AnchorText != w.text || got.IsExternal != w.external {
			t.Errorf("link %d = %+v, want %+v", i, got, w)
		}
		if got.SourceURL != "https://example.com/start" {
			t.Errorf("link %d SourceURL = %q", i, got.SourceURL)
		}
	}
}

func TestExtractor_BaseHref(t *testing.T) {
	t.Parallel()

	html := `<html><head><base href="https://cdn.example.com/v2/"></head><body><a href="guide">Guide</a></body></html>`
	doc, err := NewExtractor(WithReadability(false)).Extract("https://example.com/", []byte(html))
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Links) != 1 || doc.Links[0].URL != "https://cdn.example.com/v2/guide" {
		t.Errorf("expected link resolved against base href, got %+v", doc.Links)
	}
}

func TestExtractor_Markdown(t *testing.T) {
	t.Parallel()

	html := `<html><head><title>Guide</title><style>.x{}</style></head><body>
<script>var secret = 1;</script>
<nav><a href="/">Home</a></nav>
<div><div><p>Nested <code>paragraph</code> text.</p></div></div>
<h3>Steps</h3>
<ol><li>one</li><li>two</li></ol>
<pre><code class="language-go">fmt.Println("hi")</code></pre>
<blockquote>quoted words</blockquote>
<table><tr><th>Name</th><th>Value</th></tr><tr><td>alpha</td><td>1</td></tr></table>
</body></html>`

	doc, err := NewExtractor(WithReadability(false)).Extract("https://example.com/", []byte(html))
	if err != nil {
		t.Fatal(err)
	}
	if doc.Title != "Guide" {
		t.Errorf("Title = %q", doc.Title)
	}

	md := doc.Markdown
	for _, want := range []string{
		"# Guide",
		"Nested `paragraph` text.",
		"### Steps",
		"1. one",
		"```go",
		`fmt.Println("hi")`,
		"> quoted words",
		"alpha",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
	for _, unwanted := range []string{"var secret", "Home", ".x{}"} {
		if strings.Contains(md, unwanted) {
			t.Errorf("markdown should not contain %q:\n%s", unwanted, md)
		}
	}
}

func TestExtractor_Readability(t *testing.T) {
	t.Parallel()

	para := strings.Repeat("Deep crawling walks a site breadth first and keeps relevant pages. ", 20)
	html := `<html><head><title>Article</title></head><body>
<div class="sidebar"><a href="/about">About us</a></div>
<article><h1>Article</h1><p>` + para + `</p><p>` + para + `</p></article>
</body></html>`

	doc, err := NewExtractor().Extract("https://example.com/post", []byte(html))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.Contains(doc.Markdown, "Deep crawling walks a site") {
		t.Errorf("expected article text in markdown:\n%s", doc.Markdown)
	}
	if len(doc.Links) != 1 || doc.Links[0].URL != "https://example.com/about" {
		t.Errorf("links must come from the whole page, got %+v", doc.Links)
	}
}

func TestExtractor_InvalidPageURL(t *testing.T) {
	t.Parallel()

	if _, err := NewExtractor().Extract("://bad", []byte("<p>x</p>")); err == nil {
		t.Error("expected error for unparsable page URL")
	}
}

func TestIsExternal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		page, target string
		want         bool
	}{
		{"https://example.com/", "https://example.com/a", false},
		{"https://example.com/", "https://EXAMPLE.com/a", false},
		{"https://www.example.com/", "https://blog.example.com/", false},
		{"https://www.example.co.uk/", "https://shop.example.co.uk/", false},
		{"https://example.com/", "https://example.org/", true},
		{"https://a.github.io/", "https://b.github.io/", true},
		{"http://localhost:8080/", "http://localhost:9090/", false},
	}

	for _, tt := range tests {
		t.Run(tt.page+"->"+tt.target, func(t *testing.T) {
			t.Parallel()

			p, _ := url.Parse(tt.page)
			u, _ := url.Parse(tt.target)
			if got := IsExternal(p, u); got != tt.want {
				t.Errorf("IsExternal(%s, %s) = %v, want %v", tt.page, tt.target, got, tt.want)
			}
		})
	}
}
