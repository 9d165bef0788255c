package discovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"
)

// MutableSource is a Source whose document can change through fragment
// insertions. Insert returns the updated document and the inserted
// top-level nodes.
type MutableSource interface {
	Source
	Insert(ctx context.Context, selector, fragment string) (*goquery.Document, []*html.Node, error)
}

// Mode selects how passes are triggered.
type Mode string

const (
	ModePolling  Mode = "polling"
	ModeMutation Mode = "mutation"
)

var ErrNotMutable = errors.New("source does not accept mutations")

// Options configures an engine.
type Options struct {
	Mode             Mode
	Interval         time.Duration
	FallbackInterval time.Duration
}

// DefaultOptions returns polling mode with a one second interval.
func DefaultOptions() Options {
	return Options{
		Mode:             ModePolling,
		Interval:         time.Second,
		FallbackInterval: 5 * time.Second,
	}
}

func (o Options) timerInterval() time.Duration {
	if o.Mode == ModeMutation {
		if o.FallbackInterval > 0 {
			return o.FallbackInterval
		}
		return 5 * time.Second
	}
	if o.Interval > 0 {
		return o.Interval
	}
	return time.Second
}

// Engine owns the discovery state of one scanned document: its store,
// its scheduler and the source passes read from.
type Engine struct {
	tabID     string
	source    Source
	store     *Store
	scheduler *Scheduler
	opts      Options
	logger    logrus.FieldLogger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewEngine builds a stopped engine. Passes run under a context derived
// from parent and end when the engine is closed.
func NewEngine(parent context.Context, tabID string, source Source, messenger Messenger, opts Options, logger logrus.FieldLogger) *Engine {
	ctx, cancel := context.WithCancel(parent)
	store := NewStore()
	log := logger.WithFields(logrus.Fields{"url": source.URL()})
	return &Engine{
		tabID:     tabID,
		source:    source,
		store:     store,
		scheduler: NewScheduler(tabID, source, store, messenger, opts.timerInterval(), log),
		opts:      opts,
		logger:    log,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (e *Engine) TabID() string { return e.tabID }

func (e *Engine) URL() string { return e.source.URL() }

func (e *Engine) Mode() Mode { return e.opts.Mode }

// Start arms scanning. In mutation mode an initial full pass runs right
// away and the timer only serves as a fallback poll.
func (e *Engine) Start() {
	e.scheduler.Start(e.ctx)
	e.logger.WithFields(logrus.Fields{
		"tab_id":   e.tabID,
		"mode":     e.opts.Mode,
		"interval": e.opts.timerInterval().String(),
	}).Info("Scanning started")

	if e.opts.Mode == ModeMutation {
		go e.scheduler.Trigger(e.ctx, TriggerInitial)
	}
}

func (e *Engine) Stop() {
	e.scheduler.Stop()
}

// Scan runs an immediate full pass. It reports false when the pass was
// dropped.
func (e *Engine) Scan(ctx context.Context) bool {
	return e.scheduler.Trigger(ctx, TriggerManual)
}

// ScanOnce runs a full pass even when scanning was never started, for
// callers that drive the engine by hand.
func (e *Engine) ScanOnce(ctx context.Context) bool {
	return e.scheduler.RunOnce(ctx)
}

// ListAll re-emits every stored record. It reports false when dropped.
func (e *Engine) ListAll(ctx context.Context) bool {
	return e.scheduler.ListAll(ctx)
}

// Mutate inserts fragment into the elements matching selector. In
// mutation mode the inserted subtrees are scanned immediately; in
// polling mode the next tick sees them. The boolean reports whether a
// scoped pass ran.
func (e *Engine) Mutate(ctx context.Context, selector, fragment string) (bool, error) {
	ms, ok := e.source.(MutableSource)
	if !ok {
		return false, ErrNotMutable
	}
	var (
		doc   *goquery.Document
		nodes []*html.Node
	)
	err := e.scheduler.Edit(func() (err error) {
		doc, nodes, err = ms.Insert(ctx, selector, fragment)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("insert into %q: %w", selector, err)
	}
	if e.opts.Mode != ModeMutation || len(nodes) == 0 {
		return false, nil
	}
	return e.scheduler.TriggerScope(ctx, doc, nodes), nil
}

// Records returns a snapshot of the discovered records.
func (e *Engine) Records() []ImageRecord {
	return e.store.All()
}

func (e *Engine) State() ScanState {
	return e.scheduler.State()
}

// Close stops the engine, cancels in-flight passes and resets the store.
// It returns once no pass or report of the engine is running, so nothing
// is sent on its behalf afterwards.
func (e *Engine) Close() {
	e.cancel()
	e.scheduler.Close()
	e.store.Clear()
}
