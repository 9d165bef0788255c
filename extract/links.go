package extract

import (
	"strings"

	"golang.org/x/net/html"
)

// LinkResolver finds the hyperlink associated with an element. A resolver
// is meant to live for a single discovery pass: it memoizes the result of
// every upward walk so sibling images under the same ancestors are cheap.
type LinkResolver struct {
	base   string
	looked map[*html.Node]string
}

func NewLinkResolver(baseURL string) *LinkResolver {
	return &LinkResolver{
		base:   baseURL,
		looked: make(map[*html.Node]string),
	}
}

// Resolve tries the enclosing anchors first and falls back to the
// element's descendants. It returns false when neither direction has a
// qualifying anchor.
func (r *LinkResolver) Resolve(n *html.Node) (string, bool) {
	if link, ok := r.FindLinkUp(n); ok {
		return link, true
	}
	return r.FindLinkDown(n)
}

// FindLinkUp walks from n towards the document root and returns the first
// anchor with a non-empty href.
func (r *LinkResolver) FindLinkUp(n *html.Node) (string, bool) {
	if n == nil || n.Type == html.DocumentNode {
		return "", false
	}
	if link, seen := r.looked[n]; seen {
		return link, link != ""
	}

	link, ok := r.anchorLink(n)
	if !ok {
		link, ok = r.FindLinkUp(n.Parent)
	}
	r.looked[n] = link
	return link, ok
}

// FindLinkDown searches n and its element descendants depth-first in
// document order.
func (r *LinkResolver) FindLinkDown(n *html.Node) (string, bool) {
	if n == nil {
		return "", false
	}
	if link, ok := r.anchorLink(n); ok {
		return link, true
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		if link, ok := r.FindLinkDown(c); ok {
			return link, true
		}
	}
	return "", false
}

func (r *LinkResolver) anchorLink(n *html.Node) (string, bool) {
	if n.Type != html.ElementNode || !strings.EqualFold(n.Data, "a") {
		return "", false
	}
	href := attr(n, "href")
	if href == "" {
		return "", false
	}
	return absoluteLink(r.base, href)
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}
