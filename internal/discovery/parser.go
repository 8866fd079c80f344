package discovery

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// rawLink is an unresolved href together with its anchor text.
type rawLink struct {
	href string
	text string
}

// parsedPage is the link-relevant content of one HTML document.
type parsedPage struct {
	base  string
	links []rawLink
}

// skippedSchemes are href prefixes that never point at a crawlable page.
var skippedSchemes = []string{"javascript:", "mailto:", "tel:", "data:", "sms:", "ftp:"}

// parseLinks walks the document in order and collects hyperlink targets.
// html.Parse recovers from malformed markup, so errors are rare; on error
// the page yields no links.
func parseLinks(content []byte) parsedPage {
	var page parsedPage
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return page
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "base":
				if page.base == "" {
					page.base = strings.TrimSpace(getAttr(n, "href"))
				}
			case "a", "area":
				page.addLink(getAttr(n, "href"), textContent(n))
			case "link":
				rel := strings.ToLower(getAttr(n, "rel"))
				if rel == "alternate" || rel == "next" {
					page.addLink(getAttr(n, "href"), "")
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return page
}

func (p *parsedPage) addLink(href, text string) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return
	}
	lower := strings.ToLower(href)
	for _, scheme := range skippedSchemes {
		if strings.HasPrefix(lower, scheme) {
			return
		}
	}
	p.links = append(p.links, rawLink{href: href, text: text})
}

// getAttr returns the value of the named attribute, or "".
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

// textContent returns the whitespace-collapsed text below n.
func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
			sb.WriteByte(' ')
		}
		for child := c.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
