package fetch

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/nao1215/markdown"
)

// toMarkdown renders the block-level structure of sel: headings,
// paragraphs, lists, code blocks, block quotes and tables. Inline
// formatting is flattened to text, except links, which are kept.
func toMarkdown(title string, sel *goquery.Selection, base *url.URL) string {
	var buf bytes.Buffer
	md := markdown.NewMarkdown(&buf)

	if title != "" {
		md.H1(title)
		md.PlainText("")
	}

	c := &converter{md: md, base: base, title: title}
	sel.Each(func(_ int, s *goquery.Selection) {
		c.block(s)
	})

	return strings.TrimSpace(md.String()) + "\n"
}

type converter struct {
	md    *markdown.Markdown
	base  *url.URL
	title string
}

func (c *converter) block(s *goquery.Selection) {
	s.Children().Each(func(_ int, child *goquery.Selection) {
		switch goquery.NodeName(child) {
		case "script", "style", "noscript", "template", "svg", "nav", "footer", "form", "iframe", "head":
			return
		case "h1":
			c.heading(child, c.md.H1)
		case "h2":
			c.heading(child, c.md.H2)
		case "h3", "h4", "h5", "h6":
			c.heading(child, c.md.H3)
		case "p":
			if text := c.inline(child); text != "" {
				c.md.PlainText(text)
				c.md.PlainText("")
			}
		case "ul":
			if items := c.items(child); len(items) > 0 {
				c.md.BulletList(items...)
				c.md.PlainText("")
			}
		case "ol":
			if items := c.items(child); len(items) > 0 {
				c.md.OrderedList(items...)
				c.md.PlainText("")
			}
		case "pre":
			if code := strings.Trim(child.Text(), "\n"); strings.TrimSpace(code) != "" {
				c.md.CodeBlocks(markdown.SyntaxHighlight(codeLanguage(child)), code)
				c.md.PlainText("")
			}
		case "blockquote":
			if text := c.inline(child); text != "" {
				c.md.PlainText("> " + text)
				c.md.PlainText("")
			}
		case "table":
			c.table(child)
		case "hr":
			c.md.HorizontalRule()
		default:
			if hasBlockChildren(child) {
				c.block(child)
				return
			}
			if text := c.inline(child); text != "" {
				c.md.PlainText(text)
				c.md.PlainText("")
			}
		}
	})
}

func (c *converter) heading(s *goquery.Selection, emit func(string) *markdown.Markdown) {
	text := collapseSpace(s.Text())
	if text == "" || text == c.title {
		return
	}
	emit(text)
	c.md.PlainText("")
}

// inline flattens s to one line of text, keeping anchors as Markdown links.
func (c *converter) inline(s *goquery.Selection) string {
	var b strings.Builder
	s.Contents().Each(func(_ int, n *goquery.Selection) {
		switch {
		case goquery.NodeName(n) == "#text":
			b.WriteString(n.Text())
		case goquery.NodeName(n) == "br":
			b.WriteString(" ")
		case goquery.NodeName(n) == "a":
			text := collapseSpace(n.Text())
			href, ok := n.Attr("href")
			if !ok || text == "" {
				b.WriteString(text)
				return
			}
			if u, err := c.base.Parse(strings.TrimSpace(href)); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
				b.WriteString("[" + text + "](" + u.String() + ")")
				return
			}
			b.WriteString(text)
		case goquery.NodeName(n) == "code":
			if text := collapseSpace(n.Text()); text != "" {
				b.WriteString("`" + text + "`")
			}
		case goquery.NodeName(n) == "script" || goquery.NodeName(n) == "style":
		default:
			b.WriteString(c.inline(n))
		}
		b.WriteString(" ")
	})
	return collapseSpace(b.String())
}

func (c *converter) items(list *goquery.Selection) []string {
	items := make([]string, 0)
	list.ChildrenFiltered("li").Each(func(_ int, li *goquery.Selection) {
		if text := c.inline(li); text != "" {
			items = append(items, text)
		}
	})
	return items
}

func (c *converter) table(t *goquery.Selection) {
	rows := make([][]string, 0)
	t.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		row := make([]string, 0)
		tr.ChildrenFiltered("th, td").Each(func(_ int, cell *goquery.Selection) {
			row = append(row, strings.ReplaceAll(c.inline(cell), "|", `\|`))
		})
		if len(row) > 0 {
			rows = append(rows, row)
		}
	})
	if len(rows) == 0 {
		return
	}

	width := 0
	for _, r := range rows {
		width = max(width, len(r))
	}
	for i := range rows {
		for len(rows[i]) < width {
			rows[i] = append(rows[i], "")
		}
	}

	c.md.Table(markdown.TableSet{Header: rows[0], Rows: rows[1:]})
	c.md.PlainText("")
}

var blockElements = map[string]bool{
	"p": true, "div": true, "section": true, "article": true, "main": true,
	"ul": true, "ol": true, "pre": true, "table": true, "blockquote": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"header": true, "aside": true, "figure": true, "dl": true, "hr": true,
	"body": true,
}

func hasBlockChildren(s *goquery.Selection) bool {
	found := false
	s.Children().EachWithBreak(func(_ int, child *goquery.Selection) bool {
		found = blockElements[goquery.NodeName(child)]
		return !found
	})
	return found
}

// codeLanguage reads a "language-xxx" class from a <pre> or its <code>.
func codeLanguage(pre *goquery.Selection) string {
	for _, s := range []*goquery.Selection{pre, pre.ChildrenFiltered("code").First()} {
		class, _ := s.Attr("class")
		for _, c := range strings.Fields(class) {
			if lang, ok := strings.CutPrefix(c, "language-"); ok {
				return lang
			}
		}
	}
	return ""
}
