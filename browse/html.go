package browse

import (
	"io"
	"net/url"
	"regexp"
	"strings"

	"github.com/hupe1980/promptmesh/core"
	"golang.org/x/net/html"
)

var (
	multiNewlinePattern = regexp.MustCompile(`\n{3,}`)
	multiSpacePattern   = regexp.MustCompile(`[ \t]{2,}`)
)

const maxDepth = 256

// ParseHTML extracts the title, visible text and absolute http(s) links of a
// document. Relative links are resolved against pageURL; duplicates are
// dropped while document order is kept.
func ParseHTML(pageURL string, r io.Reader) (*core.Page, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	base, _ := url.Parse(pageURL)

	p := &parser{base: base, seen: map[string]struct{}{}}
	p.walk(doc, 0)

	text := multiSpacePattern.ReplaceAllString(p.text.String(), " ")
	text = multiNewlinePattern.ReplaceAllString(text, "\n\n")

	return &core.Page{
		URL:     pageURL,
		Title:   strings.TrimSpace(p.title),
		Content: strings.TrimSpace(text),
		Links:   p.links,
	}, nil
}

type parser struct {
	base  *url.URL
	title string
	text  strings.Builder
	links []string
	seen  map[string]struct{}
}

func (p *parser) walk(n *html.Node, depth int) {
	if depth > maxDepth {
		return
	}

	switch n.Type {
	case html.TextNode:
		if t := strings.TrimSpace(n.Data); t != "" {
			p.text.WriteString(t)
			p.text.WriteString(" ")
		}
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "noscript", "iframe", "svg", "template":
			return
		case "title":
			if n.FirstChild != nil && p.title == "" {
				p.title = n.FirstChild.Data
			}
			return
		case "a":
			p.addLink(attr(n, "href"))
		case "p", "div", "section", "article", "h1", "h2", "h3", "h4", "h5", "h6", "li", "tr":
			p.text.WriteString("\n\n")
		case "br":
			p.text.WriteString("\n")
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		p.walk(c, depth+1)
	}
}

func (p *parser) addLink(href string) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return
	}

	u, err := url.Parse(href)
	if err != nil {
		return
	}

	if p.base != nil {
		u = p.base.ResolveReference(u)
	}

	if !IsWebURL(u.String()) {
		return
	}

	u.Fragment = ""
	s := u.String()
	if _, ok := p.seen[s]; ok {
		return
	}

	p.seen[s] = struct{}{}
	p.links = append(p.links, s)
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}

	return ""
}

// IsWebURL reports whether s parses as an absolute http or https URL.
func IsWebURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}

	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
