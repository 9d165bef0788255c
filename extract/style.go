package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// StyleResolver approximates getComputedStyle(el).backgroundImage for a
// static document. It cascades the rules of every <style> element with
// the inline style attribute, honouring !important, selector specificity
// and source order. External stylesheets are not loaded.
type StyleResolver struct {
	rules []styleRule
}

type styleRule struct {
	selectors cascadia.SelectorGroup
	value     string
	important bool
	order     int
}

type declaration struct {
	value     string
	important bool
}

func NewStyleResolver(doc *goquery.Document) *StyleResolver {
	r := &StyleResolver{}
	doc.Find("style").Each(func(i int, s *goquery.Selection) {
		r.addStylesheet(s.Text())
	})
	return r
}

// BackgroundImage returns the cascaded background-image value of n, or
// "none" when nothing applies.
func (r *StyleResolver) BackgroundImage(n *html.Node) string {
	if n == nil || n.Type != html.ElementNode {
		return "none"
	}

	var (
		best      *styleRule
		bestSpec  cascadia.Specificity
		bestFound bool
	)
	for i := range r.rules {
		rule := &r.rules[i]
		spec, ok := matchSpecificity(rule.selectors, n)
		if !ok {
			continue
		}
		if !bestFound || beats(rule.important, spec, rule.order, best.important, bestSpec, best.order) {
			best, bestSpec, bestFound = rule, spec, true
		}
	}

	if inline, ok := inlineBackground(n); ok {
		if !bestFound || inline.important || !best.important {
			return inline.value
		}
	}
	if bestFound {
		return best.value
	}
	return "none"
}

func beats(imp bool, spec cascadia.Specificity, order int, curImp bool, curSpec cascadia.Specificity, curOrder int) bool {
	if imp != curImp {
		return imp
	}
	if curSpec.Less(spec) {
		return true
	}
	if spec.Less(curSpec) {
		return false
	}
	return order > curOrder
}

func matchSpecificity(group cascadia.SelectorGroup, n *html.Node) (cascadia.Specificity, bool) {
	var (
		best  cascadia.Specificity
		found bool
	)
	for _, sel := range group {
		if !sel.Match(n) {
			continue
		}
		if spec := sel.Specificity(); !found || best.Less(spec) {
			best, found = spec, true
		}
	}
	return best, found
}

func inlineBackground(n *html.Node) (declaration, bool) {
	style := attr(n, "style")
	if style == "" {
		return declaration{}, false
	}
	return backgroundDeclaration(style)
}

// backgroundDeclaration returns the last background-image (or background
// shorthand) declaration in a declaration block.
func backgroundDeclaration(block string) (declaration, bool) {
	var (
		result declaration
		found  bool
	)
	for _, decl := range splitTopLevel(block, ';') {
		colon := strings.IndexByte(decl, ':')
		if colon < 0 {
			continue
		}
		prop := strings.ToLower(strings.TrimSpace(decl[:colon]))
		value, important := stripImportant(strings.TrimSpace(decl[colon+1:]))

		switch prop {
		case "background-image":
		case "background":
			value = shorthandImage(value)
		default:
			continue
		}
		if found && result.important && !important {
			continue
		}
		result = declaration{value: value, important: important}
		found = true
	}
	return result, found
}

func shorthandImage(value string) string {
	idx := strings.Index(strings.ToLower(value), "url(")
	if idx < 0 {
		return "none"
	}
	return value[idx:]
}

func stripImportant(value string) (string, bool) {
	lower := strings.ToLower(value)
	idx := strings.LastIndex(lower, "!")
	if idx < 0 || strings.TrimSpace(lower[idx+1:]) != "important" {
		return value, false
	}
	return strings.TrimSpace(value[:idx]), true
}

func (r *StyleResolver) addStylesheet(css string) {
	css = stripComments(css)
	for len(css) > 0 {
		open := strings.IndexByte(css, '{')
		if open < 0 {
			return
		}
		closeIdx := matchingBrace(css, open)
		prelude := strings.TrimSpace(css[:open])
		body := css[open+1 : closeIdx]
		if closeIdx < len(css) {
			css = css[closeIdx+1:]
		} else {
			css = ""
		}

		if strings.HasPrefix(prelude, "@") {
			// Conditional group rules are treated as matching.
			lower := strings.ToLower(prelude)
			if strings.HasPrefix(lower, "@media") || strings.HasPrefix(lower, "@supports") || strings.HasPrefix(lower, "@layer") {
				r.addStylesheet(body)
			}
			continue
		}

		decl, ok := backgroundDeclaration(body)
		if !ok {
			continue
		}
		group, err := cascadia.ParseGroup(prelude)
		if err != nil {
			continue
		}
		r.rules = append(r.rules, styleRule{
			selectors: group,
			value:     decl.value,
			important: decl.important,
			order:     len(r.rules),
		})
	}
}

// matchingBrace returns the index of the brace closing the one at open,
// or len(css) when the block is unterminated.
func matchingBrace(css string, open int) int {
	depth := 0
	var quote byte
	for i := open; i < len(css); i++ {
		c := css[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return len(css)
}

func stripComments(css string) string {
	var b strings.Builder
	for {
		start := strings.Index(css, "/*")
		if start < 0 {
			b.WriteString(css)
			return b.String()
		}
		b.WriteString(css[:start])
		end := strings.Index(css[start+2:], "*/")
		if end < 0 {
			return b.String()
		}
		css = css[start+2+end+2:]
	}
}

// splitTopLevel splits s on sep, ignoring separators inside quotes or
// parentheses (data: URIs carry semicolons).
func splitTopLevel(s string, sep byte) []string {
	var (
		parts []string
		depth int
		quote byte
		start int
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '(':
			depth++
		case c == ')':
			if depth > 0 {
				depth--
			}
		case c == sep && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}
