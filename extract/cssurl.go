package extract

import "strings"

// BackgroundURL parses a computed background-image value such as
// `url("http://x/a.png")` and returns the text between its delimiters.
// ok is false when the value is not a url() expression.
func BackgroundURL(value string) (string, bool) {
	exp := strings.TrimSpace(value)
	if !strings.HasPrefix(strings.ToLower(exp), "url(") {
		return "", false
	}

	left := 4
	for left < len(exp) && strings.IndexByte(" \t\n\r\f", exp[left]) >= 0 {
		left++
	}

	closing := byte(')')
	if left < len(exp) && (exp[left] == '"' || exp[left] == '\'') {
		closing = exp[left]
	} else {
		// unquoted: start from the parenthesis so everything up to the first ')' is kept
		left--
	}

	right := strings.IndexByte(exp[left+1:], closing)
	if right < 0 {
		right = len(exp)
	} else {
		right += left + 1
	}

	return strings.TrimSpace(exp[left+1 : right]), true
}
