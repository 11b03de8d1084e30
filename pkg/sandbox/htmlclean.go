package sandbox

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// DefaultCleanHTMLLength bounds helpers.cleanHTML output when no limit is given.
const DefaultCleanHTMLLength = 10000

// CleanedHTML is the result of helpers.cleanHTML.
type CleanedHTML struct {
	HTML        string `json:"html"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Truncated   bool   `json:"truncated"`
}

var (
	skippedElements = setOf("script", "style", "noscript", "iframe", "embed", "object", "svg", "template")
	blockElements   = setOf("div", "p", "section", "article", "header", "footer", "nav", "main", "aside",
		"h1", "h2", "h3", "h4", "h5", "h6", "ul", "ol", "li", "table", "tr", "td", "th",
		"form", "fieldset", "blockquote", "pre", "dialog")
	voidElements     = setOf("area", "base", "br", "col", "embed", "hr", "img", "input", "link", "meta", "param", "source", "track", "wbr")
	globalAttributes = setOf("id", "class", "role", "name", "aria-label", "aria-describedby", "title")
)

func setOf(items ...string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, it := range items {
		m[it] = true
	}
	return m
}

// cleanHTML strips scripts, styles and presentational attributes from a page
// while keeping the structure and the attributes useful for writing selectors.
func cleanHTML(raw string, maxLength int) (*CleanedHTML, error) {
	if maxLength <= 0 {
		maxLength = DefaultCleanHTMLLength
	}

	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	c := &htmlCleaner{max: maxLength}
	truncated := c.walk(doc, 0)

	return &CleanedHTML{
		HTML:        strings.TrimSpace(c.out.String()),
		Title:       findText(doc, "title"),
		Description: findMetaDescription(doc),
		Truncated:   truncated,
	}, nil
}

type htmlCleaner struct {
	out strings.Builder
	n   int
	max int

	// broke reports whether the current element's output started a new line.
	broke bool
}

// walk writes n and its children, reporting whether output was cut short.
func (c *htmlCleaner) walk(n *html.Node, depth int) bool {
	if c.n >= c.max {
		return true
	}

	switch n.Type {
	case html.CommentNode, html.DoctypeNode:
		return false
	case html.TextNode:
		return c.text(n.Data)
	case html.ElementNode:
		tag := strings.ToLower(n.Data)
		if skippedElements[tag] {
			return false
		}
		return c.element(n, tag, depth)
	}
	return c.children(n, depth)
}

func (c *htmlCleaner) text(data string) bool {
	text := strings.Join(strings.Fields(data), " ")
	if text == "" {
		return false
	}
	if c.n+len(text) > c.max {
		text = truncateUTF8(text, c.max-c.n) + "..."
		c.out.WriteString(html.EscapeString(text))
		c.n = c.max
		return true
	}
	c.out.WriteString(html.EscapeString(text))
	c.n += len(text)
	return false
}

func (c *htmlCleaner) element(n *html.Node, tag string, depth int) bool {
	block := blockElements[tag]
	opened := block && depth > 0
	if opened {
		c.newline(depth)
	}

	c.out.WriteString("<" + tag)
	for _, attr := range n.Attr {
		key := strings.ToLower(attr.Key)
		if keepAttribute(tag, key) {
			fmt.Fprintf(&c.out, ` %s="%s"`, key, html.EscapeString(attr.Val))
		}
	}
	c.out.WriteString(">")
	c.n += len(tag) + 2

	if voidElements[tag] {
		return false
	}

	outer := c.broke
	c.broke = false
	truncated := c.children(n, depth+1)
	inner := c.broke
	// Closing tags only go on their own line when a nested block did.
	if block && inner {
		c.newline(depth)
	}
	c.out.WriteString("</" + tag + ">")
	c.n += len(tag) + 3
	c.broke = outer || opened || inner
	return truncated
}

func (c *htmlCleaner) children(n *html.Node, depth int) bool {
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if c.walk(child, depth) {
			return true
		}
	}
	return false
}

func (c *htmlCleaner) newline(depth int) {
	c.out.WriteString("\n")
	c.out.WriteString(strings.Repeat("  ", depth))
}

func keepAttribute(tag, key string) bool {
	if globalAttributes[key] || strings.HasPrefix(key, "data-") {
		return true
	}
	switch tag {
	case "a":
		return key == "href" || key == "target"
	case "img":
		return key == "src" || key == "alt"
	case "input", "textarea", "select", "option":
		return key == "type" || key == "placeholder" || key == "value"
	case "button":
		return key == "type"
	case "form":
		return key == "action" || key == "method"
	case "label":
		return key == "for"
	}
	return false
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }

func findText(doc *html.Node, tag string) string {
	var found string
	var visit func(*html.Node) bool
	visit = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == tag {
			if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				found = strings.TrimSpace(n.FirstChild.Data)
			}
			return true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if visit(c) {
				return true
			}
		}
		return false
	}
	visit(doc)
	return found
}

func findMetaDescription(doc *html.Node) string {
	var found string
	var visit func(*html.Node) bool
	visit = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "meta" {
			var name, content string
			for _, attr := range n.Attr {
				switch strings.ToLower(attr.Key) {
				case "name":
					name = strings.ToLower(attr.Val)
				case "content":
					content = attr.Val
				}
			}
			if name == "description" && content != "" {
				found = strings.TrimSpace(content)
				return true
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if visit(c) {
				return true
			}
		}
		return false
	}
	visit(doc)
	return found
}
