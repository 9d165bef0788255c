package extract

import (
	"testing"

	"golang.org/x/net/html"
)

func TestPage_Candidates(t *testing.T) {
	doc := parseDoc(t, `
		<html>
			<head><style>.banner { background-image: url("/banner.jpg") }</style></head>
			<body>
				<div class="banner" id="b"></div>
				<img id="one" src="one.png">
				<img id="empty" src="">
				<img id="nosrc">
				<span id="bg" style="background-image:url(bg.png)"></span>
				<p id="blank" style="background-image:url()"></p>
				<img id="two" src="https://cdn.example.org/two.png">
			</body>
		</html>
	`)
	page := NewPage(doc, testPageURL)

	candidates := page.Candidates(nil)

	expected := []struct {
		id     string
		url    string
		source Source
	}{
		{"one", "http://example.com/gallery/one.png", SourceImg},
		{"two", "https://cdn.example.org/two.png", SourceImg},
		{"b", "http://example.com/banner.jpg", SourceBackground},
		{"bg", "http://example.com/gallery/bg.png", SourceBackground},
		{"blank", "", SourceBackground},
	}

	if len(candidates) != len(expected) {
		t.Fatalf("Expected %d candidates, got %d: %+v", len(expected), len(candidates), candidates)
	}
	for i, c := range candidates {
		if id := attr(c.Node, "id"); id != expected[i].id {
			t.Errorf("Candidate %d id = %q, want %q", i, id, expected[i].id)
		}
		if c.URL != expected[i].url {
			t.Errorf("Candidate %d url = %q, want %q", i, c.URL, expected[i].url)
		}
		if c.Source != expected[i].source {
			t.Errorf("Candidate %d source = %q, want %q", i, c.Source, expected[i].source)
		}
	}
}

func TestPage_CandidatesScoped(t *testing.T) {
	doc := parseDoc(t, `<div id="old"><img src="old.png"></div><div id="new"><img src="new.png"><i style="background:url(n.gif)"></i></div>`)
	page := NewPage(doc, testPageURL)

	candidates := page.Candidates([]*html.Node{nodeByID(t, doc, "new")})

	if len(candidates) != 2 {
		t.Fatalf("Expected 2 candidates, got %d", len(candidates))
	}
	if candidates[0].URL != "http://example.com/gallery/new.png" {
		t.Errorf("first candidate = %q", candidates[0].URL)
	}
	if candidates[1].URL != "http://example.com/gallery/n.gif" {
		t.Errorf("second candidate = %q", candidates[1].URL)
	}
}

func TestBaseURL(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		expected string
	}{
		{name: "No base", html: `<html><head></head></html>`, expected: testPageURL},
		{name: "Absolute base", html: `<html><head><base href="https://static.example.net/img/"></head></html>`, expected: "https://static.example.net/img/"},
		{name: "Relative base", html: `<html><head><base href="/assets/"></head></html>`, expected: "http://example.com/assets/"},
		{name: "Empty base", html: `<html><head><base href=""></head></html>`, expected: testPageURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := BaseURL(parseDoc(t, tt.html), testPageURL); result != tt.expected {
				t.Errorf("BaseURL() = %q, want %q", result, tt.expected)
			}
		})
	}
}
