package extract

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func TestTitle(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		expected string
	}{
		{
			name:     "Basic title",
			html:     "<html><head><title>Test Page</title></head></html>",
			expected: "Test Page",
		},
		{
			name:     "Title with whitespace",
			html:     "<html><head><title>  Spaced Title  </title></head></html>",
			expected: "Spaced Title",
		},
		{
			name:     "Open Graph fallback",
			html:     `<html><head><title></title><meta property="og:title" content="Summer 2024"></head></html>`,
			expected: "Summer 2024",
		},
		{
			name:     "Heading fallback",
			html:     "<html><body><h1> Holiday </h1><h1>Other</h1></body></html>",
			expected: "Holiday",
		},
		{
			name:     "No title at all",
			html:     "<html><head></head></html>",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := goquery.NewDocumentFromReader(strings.NewReader(tt.html))
			if err != nil {
				t.Fatalf("Failed to parse HTML: %v", err)
			}

			result := Title(doc)
			if result != tt.expected {
				t.Errorf("Title() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestDescription(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		expected string
	}{
		{
			name:     "Meta description",
			html:     `<meta name="Description" content=" Photos from the trip ">`,
			expected: "Photos from the trip",
		},
		{
			name:     "Empty meta falls through to og",
			html:     `<meta name="description" content=""><meta property="og:description" content="Beach day">`,
			expected: "Beach day",
		},
		{
			name:     "None",
			html:     `<meta name="keywords" content="a,b">`,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := goquery.NewDocumentFromReader(strings.NewReader("<html><head>" + tt.html + "</head></html>"))
			if err != nil {
				t.Fatalf("Failed to parse HTML: %v", err)
			}

			if result := Description(doc); result != tt.expected {
				t.Errorf("Description() = %q, want %q", result, tt.expected)
			}
		})
	}
}
