package discovery

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"album-scanner/metrics"
)

// InitResult tells how Registry.Init handled a tab.
type InitResult string

const (
	InitCreated   InitResult = "created"
	InitAlready   InitResult = "already"
	InitNavigated InitResult = "navigated"
)

// MessengerFactory returns the messenger records of a tab are sent to.
type MessengerFactory func(tabID string) Messenger

// Registry keeps one engine per tab.
type Registry struct {
	ctx       context.Context
	messenger MessengerFactory
	opts      Options
	logger    logrus.FieldLogger

	mu      sync.Mutex
	engines map[string]*Engine
	retire  func(tabID string, removed bool)
}

func NewRegistry(ctx context.Context, messenger MessengerFactory, opts Options, logger logrus.FieldLogger) *Registry {
	return &Registry{
		ctx:       ctx,
		messenger: messenger,
		opts:      opts,
		logger:    logger,
		engines:   make(map[string]*Engine),
	}
}

// OnRetire registers fn to run each time an engine of a tab has been
// closed: removed is true when the tab went away and false when it
// navigated. fn runs after the old engine's last pass has finished and
// before a replacement starts.
func (r *Registry) OnRetire(fn func(tabID string, removed bool)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retire = fn
}

func (r *Registry) retired(tabID string, removed bool) {
	r.mu.Lock()
	fn := r.retire
	r.mu.Unlock()
	if fn != nil {
		fn(tabID, removed)
	}
}

// Init prepares scanning for a tab. A tab already showing the same URL
// is only asked to list its records again. A tab that navigated gets a
// fresh engine with an empty store.
func (r *Registry) Init(ctx context.Context, tabID string, source Source) (*Engine, InitResult) {
	r.mu.Lock()
	existing, ok := r.engines[tabID]
	if ok && existing.URL() == source.URL() {
		r.mu.Unlock()
		r.logger.WithFields(logrus.Fields{
			"tab_id": tabID,
			"url":    source.URL(),
		}).Info("Already initialized")
		existing.ListAll(ctx)
		return existing, InitAlready
	}

	result := InitCreated
	if ok {
		result = InitNavigated
	}
	engine := NewEngine(r.ctx, tabID, source, r.messenger(tabID), r.opts, r.logger)
	r.engines[tabID] = engine
	count := len(r.engines)
	r.mu.Unlock()

	if ok {
		existing.Close()
		r.retired(tabID, false)
	}

	metrics.SetActiveEngines(count)
	r.logger.WithFields(logrus.Fields{
		"tab_id": tabID,
		"url":    source.URL(),
		"result": result,
	}).Info("Engine initialized")
	engine.Start()
	return engine, result
}

func (r *Registry) Get(tabID string) (*Engine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	engine, ok := r.engines[tabID]
	if !ok {
		return nil, ErrUnknownTab
	}
	return engine, nil
}

// Remove closes and forgets the engine of a tab.
func (r *Registry) Remove(tabID string) error {
	r.mu.Lock()
	engine, ok := r.engines[tabID]
	if ok {
		delete(r.engines, tabID)
	}
	count := len(r.engines)
	r.mu.Unlock()

	if !ok {
		return ErrUnknownTab
	}
	engine.Close()
	r.retired(tabID, true)
	metrics.SetActiveEngines(count)
	return nil
}

// Tabs lists the registered tab IDs.
func (r *Registry) Tabs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	tabs := make([]string, 0, len(r.engines))
	for id := range r.engines {
		tabs = append(tabs, id)
	}
	return tabs
}

// Close stops every engine.
func (r *Registry) Close() {
	r.mu.Lock()
	engines := r.engines
	r.engines = make(map[string]*Engine)
	r.mu.Unlock()

	for _, engine := range engines {
		engine.Close()
	}
	metrics.SetActiveEngines(0)
}
