package discovery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"

	"album-scanner/extract"
	"album-scanner/metrics"
)

// Source provides the current state of the scanned document.
type Source interface {
	URL() string
	Document(ctx context.Context) (*goquery.Document, error)
}

// ScanState is the externally visible scheduler state.
type ScanState string

const (
	StateStopped   ScanState = "stopped"
	StateIdle      ScanState = "idle"
	StateScanning  ScanState = "scanning"
	StateReporting ScanState = "reporting"
)

// phase is what currently holds the gate. A scan and a report can never
// hold it together.
type phase int

const (
	phaseIdle phase = iota
	phaseScanning
	phaseReporting
)

// Trigger names used in logs and metrics.
const (
	TriggerTick     = "tick"
	TriggerManual   = "manual"
	TriggerInitial  = "initial"
	TriggerMutation = "mutation"
)

// Scheduler runs discovery passes on a timer and on demand. Scans and
// full reports share one gate: a request arriving while the gate is held
// is dropped, never queued.
type Scheduler struct {
	tabID     string
	source    Source
	store     *Store
	collector *Collector
	messenger Messenger
	interval  time.Duration
	logger    logrus.FieldLogger

	// docMu is held for the whole of a pass and for every edit of the
	// document, so a pass never sees the tree change under it.
	docMu sync.Mutex

	mu     sync.Mutex
	idle   *sync.Cond
	phase  phase
	armed  bool
	closed bool
	done   chan struct{}
}

func NewScheduler(tabID string, source Source, store *Store, messenger Messenger, interval time.Duration, logger logrus.FieldLogger) *Scheduler {
	s := &Scheduler{
		tabID:     tabID,
		source:    source,
		store:     store,
		collector: NewCollector(tabID, store, messenger, logger),
		messenger: messenger,
		interval:  interval,
		logger:    logger,
	}
	s.idle = sync.NewCond(&s.mu)
	return s
}

// Start arms the timer. Calling it while running replaces the timer so
// only one is ever active.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if s.armed {
		close(s.done)
	}
	s.done = make(chan struct{})
	s.armed = true
	go s.loop(ctx, s.done)
}

// Stop disarms the timer. A pass already running is left to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Scheduler) stopLocked() {
	if !s.armed {
		return
	}
	close(s.done)
	s.armed = false
	s.logger.WithField("tab_id", s.tabID).Info("Scanning stopped")
}

// Close stops the timer, refuses every later pass or report and waits
// for the one holding the gate, if any, to leave it.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.stopLocked()
	for s.phase != phaseIdle {
		s.idle.Wait()
	}
}

// Edit applies fn to the document while no pass is reading it. It waits
// for a running pass instead of being dropped.
func (s *Scheduler) Edit(fn func() error) error {
	s.docMu.Lock()
	defer s.docMu.Unlock()
	return fn()
}

func (s *Scheduler) State() ScanState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Scheduler) stateLocked() ScanState {
	switch s.phase {
	case phaseScanning:
		return StateScanning
	case phaseReporting:
		return StateReporting
	}
	if s.armed {
		return StateIdle
	}
	return StateStopped
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			s.scan(ctx, TriggerTick, done, s.fullDocument)
		}
	}
}

// Trigger runs a full pass now unless the scheduler is stopped or busy.
// It reports whether the pass ran.
func (s *Scheduler) Trigger(ctx context.Context, trigger string) bool {
	return s.scan(ctx, trigger, nil, s.fullDocument)
}

// RunOnce runs a full pass whether or not the timer is armed. It is
// still dropped while another pass or a report holds the gate.
func (s *Scheduler) RunOnce(ctx context.Context) bool {
	return s.scan(ctx, TriggerManual, unarmed, s.fullDocument)
}

// TriggerScope runs a pass limited to roots of an already loaded document,
// as done for inserted subtrees.
func (s *Scheduler) TriggerScope(ctx context.Context, doc *goquery.Document, roots []*html.Node) bool {
	return s.scan(ctx, TriggerMutation, nil, func(context.Context) (*extract.Page, []*html.Node, error) {
		return extract.NewPage(doc, s.source.URL()), roots, nil
	})
}

func (s *Scheduler) fullDocument(ctx context.Context) (*extract.Page, []*html.Node, error) {
	doc, err := s.source.Document(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load %s: %w", s.source.URL(), err)
	}
	return extract.NewPage(doc, s.source.URL()), nil, nil
}

type pageLoader func(ctx context.Context) (*extract.Page, []*html.Node, error)

// unarmed marks a pass that may run while the timer is stopped.
var unarmed = make(chan struct{})

// scan takes the gate for a pass. timer is the done channel of the
// calling timer loop, nil for on-demand triggers and unarmed for RunOnce.
func (s *Scheduler) scan(ctx context.Context, trigger string, timer chan struct{}, load pageLoader) (ran bool) {
	if state, ok := s.enter(phaseScanning, timer); !ok {
		metrics.RecordDropped("scan", string(state))
		s.logger.WithFields(logrus.Fields{
			"tab_id":  s.tabID,
			"trigger": trigger,
			"state":   state,
		}).Debug("Scan request dropped")
		return false
	}
	defer s.leave()

	s.docMu.Lock()
	defer s.docMu.Unlock()

	start := time.Now()
	status := "ok"
	defer func() {
		if r := recover(); r != nil {
			status = "panic"
			s.logger.WithFields(logrus.Fields{
				"tab_id":  s.tabID,
				"trigger": trigger,
				"panic":   fmt.Sprint(r),
			}).Error("Discovery pass panicked")
		}
		metrics.RecordPass(trigger, status, time.Since(start).Seconds())
	}()

	page, roots, err := load(ctx)
	if err != nil {
		status = "error"
		s.logger.WithFields(logrus.Fields{
			"tab_id":  s.tabID,
			"trigger": trigger,
			"error":   err.Error(),
		}).Warn("Discovery pass skipped")
		return true
	}

	added := s.collector.Pass(ctx, page, roots)
	s.logger.WithFields(logrus.Fields{
		"tab_id":   s.tabID,
		"trigger":  trigger,
		"new":      len(added),
		"total":    s.store.Len(),
		"duration": time.Since(start).String(),
	}).Debug("Discovery pass complete")
	return true
}

// ListAll re-emits every stored record in discovery order. It is refused
// while a scan or another report holds the gate.
func (s *Scheduler) ListAll(ctx context.Context) (ran bool) {
	if state, ok := s.enter(phaseReporting, nil); !ok {
		metrics.RecordDropped("list_all", string(state))
		s.logger.WithFields(logrus.Fields{
			"tab_id": s.tabID,
			"state":  state,
		}).Debug("List request dropped")
		return false
	}
	defer s.leave()

	defer func() {
		if r := recover(); r != nil {
			s.logger.WithFields(logrus.Fields{
				"tab_id": s.tabID,
				"panic":  fmt.Sprint(r),
			}).Error("Listing images panicked")
		}
	}()

	records := s.store.All()
	for _, rec := range records {
		if ctx.Err() != nil {
			break
		}
		if err := s.messenger.Send(ctx, newImageMessage(s.tabID, rec)); err != nil {
			metrics.RecordMessageFailed()
			s.logger.WithFields(logrus.Fields{
				"tab_id": s.tabID,
				"imgurl": rec.URL,
				"error":  err.Error(),
			}).Warn("Error reporting image")
		}
	}
	s.logger.WithFields(logrus.Fields{
		"tab_id": s.tabID,
		"count":  len(records),
	}).Debug("Listed scanned images")
	return true
}

// enter takes the gate for p. Scans additionally require the scheduler to
// be armed and, for timer ticks, the tick to come from the current timer.
func (s *Scheduler) enter(p phase, timer chan struct{}) (ScanState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.phase != phaseIdle {
		return s.stateLocked(), false
	}
	if p == phaseScanning && timer != unarmed {
		if !s.armed || (timer != nil && timer != s.done) {
			return s.stateLocked(), false
		}
	}
	s.phase = p
	return s.stateLocked(), true
}

func (s *Scheduler) leave() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = phaseIdle
	s.idle.Broadcast()
}
