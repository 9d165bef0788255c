package discovery

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const testPageURL = "http://example.com/album/index.html"

// staticSource serves the same markup on every pass.
type staticSource struct {
	url    string
	markup string

	mu    sync.Mutex
	loads int
}

func newStaticSource(url, markup string) *staticSource {
	return &staticSource{url: url, markup: markup}
}

func (s *staticSource) URL() string { return s.url }

func (s *staticSource) Document(ctx context.Context) (*goquery.Document, error) {
	s.mu.Lock()
	s.loads++
	markup := s.markup
	s.mu.Unlock()
	return goquery.NewDocumentFromReader(strings.NewReader(markup))
}

func (s *staticSource) setMarkup(markup string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markup = markup
}

func (s *staticSource) loadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads
}

// treeSource keeps one parsed document and grows it by insertion.
type treeSource struct {
	url string

	mu  sync.Mutex
	doc *goquery.Document
}

func newTreeSource(url, markup string) *treeSource {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		panic(err)
	}
	return &treeSource{url: url, doc: doc}
}

func (s *treeSource) URL() string { return s.url }

func (s *treeSource) Document(ctx context.Context) (*goquery.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc, nil
}

func (s *treeSource) Insert(ctx context.Context, selector, fragment string) (*goquery.Document, []*html.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target := s.doc.Find(selector).First()
	if target.Length() == 0 {
		return nil, nil, errors.New("no match")
	}
	parent := target.Nodes[0]
	last := parent.LastChild
	target.AppendHtml(fragment)

	start := parent.FirstChild
	if last != nil {
		start = last.NextSibling
	}
	var nodes []*html.Node
	for n := start; n != nil; n = n.NextSibling {
		nodes = append(nodes, n)
	}
	return s.doc, nodes, nil
}

// recorder collects every message sent to it.
type recorder struct {
	mu   sync.Mutex
	msgs []Message
	fail func(Message) error
}

func (r *recorder) Send(ctx context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		if err := r.fail(msg); err != nil {
			return err
		}
	}
	r.msgs = append(r.msgs, msg)
	return nil
}

func (r *recorder) records() []ImageRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ImageRecord, 0, len(r.msgs))
	for _, m := range r.msgs {
		out = append(out, m.Data.(ImageRecord))
	}
	return out
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

// blocker holds every Send until released.
type blocker struct {
	entered chan struct{}
	release chan struct{}
}

func newBlocker() *blocker {
	return &blocker{
		entered: make(chan struct{}, 64),
		release: make(chan struct{}),
	}
}

func (b *blocker) Send(ctx context.Context, msg Message) error {
	b.entered <- struct{}{}
	select {
	case <-b.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func urls(records []ImageRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.URL
	}
	return out
}

type failingSource struct{}

func (failingSource) URL() string { return testPageURL }

func (failingSource) Document(ctx context.Context) (*goquery.Document, error) {
	return nil, errors.New("connection refused")
}
