package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Source tells where a candidate image URL was found.
type Source string

const (
	SourceImg        Source = "img"
	SourceBackground Source = "background"
)

// Candidate is an image URL found in the document that has not been
// validated yet, paired with the element it came from.
type Candidate struct {
	Node   *html.Node
	URL    string
	Source Source
}

// Page bundles a parsed document with what is needed to read it the way
// a browser would.
type Page struct {
	Doc    *goquery.Document
	URL    string
	Base   string
	Styles *StyleResolver
}

func NewPage(doc *goquery.Document, pageURL string) *Page {
	return &Page{
		Doc:    doc,
		URL:    pageURL,
		Base:   BaseURL(doc, pageURL),
		Styles: NewStyleResolver(doc),
	}
}

// Candidates collects image candidates below the given roots: first every
// <img> with a non-empty resolved src, then every element whose computed
// background-image is a url() expression. Both lists are in document
// order. A nil roots slice scans the whole document.
func (p *Page) Candidates(roots []*html.Node) []Candidate {
	if roots == nil {
		roots = p.Doc.Nodes
	}

	var imgs, backgrounds []Candidate
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if strings.EqualFold(n.Data, "img") {
				if src := p.imgSrc(n); src != "" {
					imgs = append(imgs, Candidate{Node: n, URL: src, Source: SourceImg})
				}
			}
			if raw, ok := BackgroundURL(p.Styles.BackgroundImage(n)); ok {
				backgrounds = append(backgrounds, Candidate{Node: n, URL: p.computedURL(raw), Source: SourceBackground})
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, root := range roots {
		walk(root)
	}

	return append(imgs, backgrounds...)
}

func (p *Page) imgSrc(n *html.Node) string {
	src := strings.TrimSpace(attr(n, "src"))
	if src == "" {
		return ""
	}
	resolved, err := Resolve(p.Base, src)
	if err != nil {
		return src
	}
	return resolved
}

// computedURL absolutizes a url() argument the way computed style values
// are. Empty arguments stay empty so they are rejected downstream.
func (p *Page) computedURL(raw string) string {
	if raw == "" {
		return ""
	}
	resolved, err := Resolve(p.Base, raw)
	if err != nil {
		return raw
	}
	return resolved
}

