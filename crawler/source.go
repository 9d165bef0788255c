package crawler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// FetchSource re-fetches its page on every pass.
type FetchSource struct {
	url     string
	fetcher Fetcher
}

func NewFetchSource(pageURL string, fetcher Fetcher) *FetchSource {
	return &FetchSource{url: pageURL, fetcher: fetcher}
}

func (s *FetchSource) URL() string { return s.url }

func (s *FetchSource) Document(ctx context.Context) (*goquery.Document, error) {
	return s.fetcher.FetchDocument(ctx, s.url)
}

var ErrNoTarget = errors.New("selector matched no element")

// Snapshot is a document pushed by an external agent. It is parsed once
// and then changes only through Replace and Insert. Insert edits the tree
// the last Document call returned, so callers must not read that tree
// while inserting; discovery.Engine runs inserts between passes.
type Snapshot struct {
	url string

	mu  sync.Mutex
	doc *goquery.Document
}

func NewSnapshot(pageURL, markup string) (*Snapshot, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse snapshot of %s: %w", pageURL, err)
	}
	return &Snapshot{url: pageURL, doc: doc}, nil
}

// SnapshotOf wraps an already parsed document.
func SnapshotOf(pageURL string, doc *goquery.Document) *Snapshot {
	return &Snapshot{url: pageURL, doc: doc}
}

func (s *Snapshot) URL() string { return s.url }

func (s *Snapshot) Document(ctx context.Context) (*goquery.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc, nil
}

// Replace swaps in a new rendering of the same page.
func (s *Snapshot) Replace(markup string) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return fmt.Errorf("parse snapshot of %s: %w", s.url, err)
	}
	s.mu.Lock()
	s.doc = doc
	s.mu.Unlock()
	return nil
}

// Insert appends fragment to the first element matching selector and
// returns the inserted top-level nodes.
func (s *Snapshot) Insert(ctx context.Context, selector, fragment string) (*goquery.Document, []*html.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target := s.doc.Find(selector).First()
	if target.Length() == 0 {
		return nil, nil, fmt.Errorf("%w: %q", ErrNoTarget, selector)
	}

	parent := target.Nodes[0]
	last := parent.LastChild
	target.AppendHtml(fragment)

	first := parent.FirstChild
	if last != nil {
		first = last.NextSibling
	}
	var inserted []*html.Node
	for n := first; n != nil; n = n.NextSibling {
		inserted = append(inserted, n)
	}
	return s.doc, inserted, nil
}
