package messaging

import (
	"sync"

	"github.com/sirupsen/logrus"

	"album-scanner/discovery"
)

const subscriberBuffer = 64

// Hub holds the records reported for each tab until a consumer collects
// them, and fans every record out to live subscribers of the tab.
type Hub struct {
	mu      sync.Mutex
	buffers map[string][]discovery.ImageRecord
	subs    map[string]map[chan discovery.ImageRecord]struct{}
	logger  logrus.FieldLogger
}

func NewHub(logger logrus.FieldLogger) *Hub {
	return &Hub{
		buffers: make(map[string][]discovery.ImageRecord),
		subs:    make(map[string]map[chan discovery.ImageRecord]struct{}),
		logger:  logger,
	}
}

// Push appends records to the tab buffer and forwards them to
// subscribers. A subscriber that is not keeping up loses records rather
// than stalling the scan.
func (h *Hub) Push(tabID string, records ...discovery.ImageRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.buffers[tabID] = append(h.buffers[tabID], records...)
	for ch := range h.subs[tabID] {
		for _, rec := range records {
			select {
			case ch <- rec:
			default:
				h.logger.WithFields(logrus.Fields{
					"tab_id": tabID,
					"imgurl": rec.URL,
				}).Warn("Subscriber too slow, dropping record")
			}
		}
	}
}

// Drain returns the buffered records of a tab and empties the buffer.
func (h *Hub) Drain(tabID string) []discovery.ImageRecord {
	h.mu.Lock()
	defer h.mu.Unlock()

	records := h.buffers[tabID]
	h.buffers[tabID] = nil
	if records == nil {
		return []discovery.ImageRecord{}
	}
	return records
}

// Pending reports how many records wait in a tab buffer.
func (h *Hub) Pending(tabID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.buffers[tabID])
}

// Subscribe registers a live listener for a tab. The returned function
// unregisters it and closes the channel.
func (h *Hub) Subscribe(tabID string) (<-chan discovery.ImageRecord, func()) {
	ch := make(chan discovery.ImageRecord, subscriberBuffer)

	h.mu.Lock()
	if h.subs[tabID] == nil {
		h.subs[tabID] = make(map[chan discovery.ImageRecord]struct{})
	}
	h.subs[tabID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[tabID][ch]; ok {
				delete(h.subs[tabID], ch)
				close(ch)
			}
			if len(h.subs[tabID]) == 0 {
				delete(h.subs, tabID)
			}
		})
	}
}

// Forget drops the buffer of a tab and closes its subscribers.
func (h *Hub) Forget(tabID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.buffers, tabID)
	for ch := range h.subs[tabID] {
		close(ch)
	}
	delete(h.subs, tabID)
}
