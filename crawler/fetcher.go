package crawler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Fetcher loads and parses the page at a URL.
type Fetcher interface {
	FetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error)
}

// HTTPConfig tunes the net/http backend.
type HTTPConfig struct {
	UserAgent           string
	Timeout             time.Duration
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
	TLSHandshakeTimeout time.Duration
}

type PageFetcher struct {
	client    *http.Client
	userAgent string
}

func NewPageFetcher(cfg HTTPConfig) *PageFetcher {
	return &PageFetcher{
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        cfg.MaxIdleConns,
				MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
				IdleConnTimeout:     cfg.IdleConnTimeout,
				TLSHandshakeTimeout: cfg.TLSHandshakeTimeout,
				ForceAttemptHTTP2:   true,
			},
		},
		userAgent: cfg.UserAgent,
	}
}

// NewFetcher picks the fetch backend.
func NewFetcher(useColly bool, httpCfg HTTPConfig, collyCfg CollyConfig) Fetcher {
	if useColly {
		return NewCollyPageFetcher(collyCfg)
	}
	return NewPageFetcher(httpCfg)
}

func (f *PageFetcher) FetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("request creation failed: %w", err)
	}

	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}
	return doc, nil
}
