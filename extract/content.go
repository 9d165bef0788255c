package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Title returns the document title, falling back to og:title and then
// the first h1. It is empty when the page names itself nowhere.
func Title(doc *goquery.Document) string {
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	if title := meta(doc, "og:title"); title != "" {
		return title
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}

// Description returns the meta or og description.
func Description(doc *goquery.Document) string {
	if desc := meta(doc, "description"); desc != "" {
		return desc
	}
	return meta(doc, "og:description")
}

func meta(doc *goquery.Document, key string) string {
	var content string
	doc.Find("meta").EachWithBreak(func(i int, s *goquery.Selection) bool {
		name := s.AttrOr("name", s.AttrOr("property", ""))
		if !strings.EqualFold(name, key) {
			return true
		}
		content = strings.TrimSpace(s.AttrOr("content", ""))
		return content == ""
	})
	return content
}
