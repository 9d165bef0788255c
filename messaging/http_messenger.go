package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"album-scanner/discovery"
)

// HTTPMessenger posts messages to a remote coordinator endpoint
// (POST /api/message) and waits for its acknowledgement.
type HTTPMessenger struct {
	endpoint string
	tabID    string
	client   *http.Client
}

func NewHTTPMessenger(endpoint, tabID string, timeout time.Duration) *HTTPMessenger {
	return &HTTPMessenger{
		endpoint: endpoint,
		tabID:    tabID,
		client:   &http.Client{Timeout: timeout},
	}
}

func (m *HTTPMessenger) Send(ctx context.Context, msg discovery.Message) error {
	if msg.TabID == "" {
		msg.TabID = m.tabID
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("request creation failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	var out discovery.Response
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return fmt.Errorf("HTTP %d: decode response: %w", resp.StatusCode, err)
	}
	if out.Message != discovery.StatusOK {
		return fmt.Errorf("%w: %s", ErrNotOK, out.Reason)
	}
	return nil
}

// WriterMessenger writes the data of every message as one JSON line.
type WriterMessenger struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewWriterMessenger(w io.Writer) *WriterMessenger {
	return &WriterMessenger{enc: json.NewEncoder(w)}
}

func (m *WriterMessenger) Send(ctx context.Context, msg discovery.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enc.Encode(msg.Data)
}
