package discovery

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"

	"album-scanner/extract"
	"album-scanner/metrics"
)

// Rejection reasons reported for skipped candidates.
const (
	RejectMalformed  = "malformed"
	RejectInvalidURL = "invalid_url"
	RejectScheme     = "scheme"
	RejectDuplicate  = "duplicate"
	RejectPanic      = "panic"
)

// Collector runs discovery passes: it validates candidates, attaches
// links, stores new records and emits them in order.
type Collector struct {
	tabID     string
	store     *Store
	messenger Messenger
	logger    logrus.FieldLogger
}

func NewCollector(tabID string, store *Store, messenger Messenger, logger logrus.FieldLogger) *Collector {
	return &Collector{
		tabID:     tabID,
		store:     store,
		messenger: messenger,
		logger:    logger,
	}
}

// Pass scans the given roots of page (nil for the whole document) and
// returns the records it added. Failures are confined to the candidate
// that caused them.
func (c *Collector) Pass(ctx context.Context, page *extract.Page, roots []*html.Node) []ImageRecord {
	links := extract.NewLinkResolver(page.Base)
	var added []ImageRecord

	for i, cand := range page.Candidates(roots) {
		if ctx.Err() != nil {
			break
		}
		if rec, ok := c.process(ctx, links, i, cand); ok {
			added = append(added, rec)
		}
	}
	return added
}

func (c *Collector) process(ctx context.Context, links *extract.LinkResolver, i int, cand extract.Candidate) (rec ImageRecord, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			c.reject(i, cand, RejectPanic, fmt.Errorf("panic: %v", r))
			rec, ok = ImageRecord{}, false
		}
	}()

	if cand.URL == "" {
		c.reject(i, cand, RejectMalformed, nil)
		return ImageRecord{}, false
	}

	href, protocol, err := extract.ParseAbsolute(cand.URL)
	if err != nil {
		c.reject(i, cand, RejectInvalidURL, err)
		return ImageRecord{}, false
	}
	if protocol != "http:" && protocol != "https:" {
		c.reject(i, cand, RejectScheme, nil)
		return ImageRecord{}, false
	}
	if c.store.Contains(href) {
		metrics.RecordRejected(RejectDuplicate)
		return ImageRecord{}, false
	}

	rec = ImageRecord{URL: href}
	if link, found := links.Resolve(cand.Node); found {
		rec.Link = link
	}
	if !c.store.Add(rec) {
		metrics.RecordRejected(RejectDuplicate)
		return ImageRecord{}, false
	}
	metrics.RecordDiscovered()

	if err := c.messenger.Send(ctx, newImageMessage(c.tabID, rec)); err != nil {
		metrics.RecordMessageFailed()
		c.logger.WithFields(logrus.Fields{
			"tab_id": c.tabID,
			"imgurl": rec.URL,
			"error":  err.Error(),
		}).Warn("Error reporting new image")
	}
	return rec, true
}

func (c *Collector) reject(i int, cand extract.Candidate, reason string, err error) {
	metrics.RecordRejected(reason)
	entry := c.logger.WithFields(logrus.Fields{
		"tab_id":    c.tabID,
		"candidate": i,
		"url":       cand.URL,
		"source":    string(cand.Source),
		"reason":    reason,
	})
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Debug("Skipping image candidate")
}
