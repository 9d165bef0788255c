package crawler

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"github.com/gocolly/colly/v2/debug"
	"github.com/sirupsen/logrus"
)

type CollyConfig struct {
	UserAgent   string
	Delay       time.Duration
	RandomDelay time.Duration
	Parallelism int
	DomainGlob  string
	Timeout     time.Duration
	DebugMode   bool
	Logger      logrus.FieldLogger
}

type CollyPageFetcher struct {
	config CollyConfig
}

func NewCollyPageFetcher(config CollyConfig) *CollyPageFetcher {
	if config.DomainGlob == "" {
		config.DomainGlob = "*"
	}
	if config.Timeout <= 0 {
		config.Timeout = 45 * time.Second
	}
	return &CollyPageFetcher{config: config}
}

// FetchDocument visits pageURL with a collector of its own, so repeated
// passes over the same page are never refused as revisits.
func (cpf *CollyPageFetcher) FetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	c := colly.NewCollector(
		colly.StdlibContext(ctx),
		colly.AllowURLRevisit(),
	)
	if cpf.config.UserAgent != "" {
		c.UserAgent = cpf.config.UserAgent
	}

	if cpf.config.Delay > 0 || cpf.config.Parallelism > 0 {
		if err := c.Limit(&colly.LimitRule{
			DomainGlob:  cpf.config.DomainGlob,
			Parallelism: cpf.config.Parallelism,
			Delay:       cpf.config.Delay,
			RandomDelay: cpf.config.RandomDelay,
		}); err != nil {
			return nil, fmt.Errorf("colly limit rule: %w", err)
		}
	}
	if cpf.config.DebugMode {
		c.SetDebugger(&debug.LogDebugger{})
	}
	c.SetRequestTimeout(cpf.config.Timeout)

	var doc *goquery.Document
	var fetchError error

	c.OnResponse(func(r *colly.Response) {
		contentType := r.Headers.Get("Content-Type")
		if !strings.Contains(contentType, "text/html") {
			fetchError = fmt.Errorf("response is not HTML: content-type %s", contentType)
			return
		}
		var err error
		doc, err = goquery.NewDocumentFromReader(bytes.NewReader(r.Body))
		if err != nil {
			fetchError = fmt.Errorf("failed to parse HTML: %w", err)
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		if cpf.config.Logger != nil {
			cpf.config.Logger.WithFields(logrus.Fields{
				"url":    r.Request.URL.String(),
				"status": r.StatusCode,
				"error":  err.Error(),
			}).Warn("Colly fetch error")
		}
		fetchError = fmt.Errorf("colly fetch error for %s: %w", r.Request.URL, err)
	})

	if err := c.Visit(pageURL); err != nil && fetchError == nil {
		return nil, fmt.Errorf("colly visit failed: %w", err)
	}
	c.Wait()

	if fetchError != nil {
		return nil, fetchError
	}
	if doc == nil {
		return nil, fmt.Errorf("no document retrieved for %s", pageURL)
	}
	return doc, nil
}
