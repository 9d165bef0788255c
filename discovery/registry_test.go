package discovery

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"album-scanner/logging"
)

type tabRecorders struct {
	mu   sync.Mutex
	tabs map[string]*recorder
}

func (t *tabRecorders) factory(tabID string) Messenger {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.tabs == nil {
		t.tabs = make(map[string]*recorder)
	}
	if _, ok := t.tabs[tabID]; !ok {
		t.tabs[tabID] = &recorder{}
	}
	return t.tabs[tabID]
}

func newTestRegistry(t *testing.T) (*Registry, *tabRecorders) {
	t.Helper()
	recs := &tabRecorders{}
	r := NewRegistry(context.Background(), recs.factory, Options{Mode: ModePolling, Interval: time.Hour}, logging.Discard())
	t.Cleanup(r.Close)
	return r, recs
}

func TestRegistry_Init(t *testing.T) {
	r, recs := newTestRegistry(t)
	ctx := context.Background()

	e, result := r.Init(ctx, "tab-1", newStaticSource(testPageURL, twoImages))
	assert.Equal(t, InitCreated, result)
	assert.Equal(t, StateIdle, e.State())
	require.True(t, e.Scan(ctx))
	rec := recs.factory("tab-1").(*recorder)
	require.Equal(t, 2, rec.count())

	again, result := r.Init(ctx, "tab-1", newStaticSource(testPageURL, twoImages))
	assert.Equal(t, InitAlready, result)
	assert.Same(t, e, again)
	assert.Equal(t, 4, rec.count(), "re-init lists the existing records")
	assert.Equal(t, rec.records()[:2], rec.records()[2:])
}

func TestRegistry_InitAfterNavigation(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	old, _ := r.Init(ctx, "tab-1", newStaticSource(testPageURL, twoImages))
	require.True(t, old.Scan(ctx))

	fresh, result := r.Init(ctx, "tab-1", newStaticSource("http://example.com/other.html", twoImages))
	assert.Equal(t, InitNavigated, result)
	assert.NotSame(t, old, fresh)
	assert.Empty(t, fresh.Records())
	assert.Equal(t, StateStopped, old.State())

	got, err := r.Get("tab-1")
	require.NoError(t, err)
	assert.Same(t, fresh, got)
}

func TestRegistry_UnknownTab(t *testing.T) {
	r, _ := newTestRegistry(t)

	_, err := r.Get("missing")
	assert.ErrorIs(t, err, ErrUnknownTab)
	assert.ErrorIs(t, r.Remove("missing"), ErrUnknownTab)
}

func TestRegistry_RemoveAndClose(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	a, _ := r.Init(ctx, "a", newStaticSource(testPageURL, twoImages))
	b, _ := r.Init(ctx, "b", newStaticSource(testPageURL, twoImages))
	assert.ElementsMatch(t, []string{"a", "b"}, r.Tabs())

	require.NoError(t, r.Remove("a"))
	assert.Equal(t, StateStopped, a.State())
	assert.Equal(t, []string{"b"}, r.Tabs())

	r.Close()
	assert.Equal(t, StateStopped, b.State())
	assert.Empty(t, r.Tabs())
}

func TestRegistry_OnRetireRunsAfterOldEngineIsClosed(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	type retirement struct {
		tabID        string
		removed      bool
		oldListed    bool
		oldRecords   int
		currentState ScanState
	}
	var (
		old  *Engine
		seen []retirement
	)
	r.OnRetire(func(tabID string, removed bool) {
		ret := retirement{
			tabID:      tabID,
			removed:    removed,
			oldListed:  old.ListAll(ctx),
			oldRecords: len(old.Records()),
		}
		if current, err := r.Get(tabID); err == nil {
			ret.currentState = current.State()
		}
		seen = append(seen, ret)
	})

	old, _ = r.Init(ctx, "tab-1", newStaticSource(testPageURL, twoImages))
	require.True(t, old.Scan(ctx))

	fresh, result := r.Init(ctx, "tab-1", newStaticSource("http://example.com/other.html", twoImages))
	require.Equal(t, InitNavigated, result)

	old = fresh
	require.True(t, fresh.Scan(ctx))
	require.NoError(t, r.Remove("tab-1"))

	assert.Equal(t, []retirement{
		{tabID: "tab-1", removed: false, oldListed: false, oldRecords: 0, currentState: StateStopped},
		{tabID: "tab-1", removed: true, oldListed: false, oldRecords: 0},
	}, seen)
}
