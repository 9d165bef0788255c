package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	whatwgUrl "github.com/nlnwa/whatwg-url/url"
)

var urlParser = whatwgUrl.NewParser(whatwgUrl.WithPercentEncodeSinglePercentSign())

// BaseURL returns the URL relative references in doc resolve against: the
// first <base href> resolved against pageURL, or pageURL itself.
func BaseURL(doc *goquery.Document, pageURL string) string {
	if href, found := doc.Find("base[href]").First().Attr("href"); found && strings.TrimSpace(href) != "" {
		if u, err := urlParser.ParseRef(pageURL, strings.TrimSpace(href)); err == nil {
			return u.Href(false)
		}
	}
	return pageURL
}

// Resolve resolves ref against base the way a browser does for src and
// href properties.
func Resolve(base, ref string) (string, error) {
	u, err := urlParser.ParseRef(base, ref)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", ref, err)
	}
	return u.Href(false), nil
}

// ParseAbsolute parses raw as an absolute URL and returns its normalized
// form together with its protocol ("https:", "data:", ...).
func ParseAbsolute(raw string) (href, protocol string, err error) {
	u, err := urlParser.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("parse %q: %w", raw, err)
	}
	return u.Href(false), u.Protocol(), nil
}

// absoluteLink renders an anchor target as protocol//host + path + query + fragment.
func absoluteLink(base, href string) (string, bool) {
	u, err := urlParser.ParseRef(base, href)
	if err != nil || u.Protocol() == "" {
		return "", false
	}
	return u.Protocol() + "//" + u.Host() + u.Pathname() + u.Search() + u.Hash(), true
}
