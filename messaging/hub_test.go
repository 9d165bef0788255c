package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"album-scanner/discovery"
	"album-scanner/logging"
)

func TestHub_PushDrain(t *testing.T) {
	h := NewHub(logging.Discard())
	h.Push("a", discovery.ImageRecord{URL: "http://x/1.png"})
	h.Push("a", discovery.ImageRecord{URL: "http://x/2.png"}, discovery.ImageRecord{URL: "http://x/3.png"})
	h.Push("b", discovery.ImageRecord{URL: "http://y/1.png"})

	assert.Equal(t, 3, h.Pending("a"))
	assert.Equal(t, []string{"http://x/1.png", "http://x/2.png", "http://x/3.png"}, recordURLs(h.Drain("a")))
	assert.Equal(t, 0, h.Pending("a"))
	assert.NotNil(t, h.Drain("a"))
	assert.Equal(t, 1, h.Pending("b"))
}

func TestHub_Subscribe(t *testing.T) {
	h := NewHub(logging.Discard())
	ch, cancel := h.Subscribe("a")

	h.Push("a", discovery.ImageRecord{URL: "http://x/1.png"})
	h.Push("b", discovery.ImageRecord{URL: "http://y/1.png"})

	select {
	case rec := <-ch:
		assert.Equal(t, "http://x/1.png", rec.URL)
	case <-time.After(time.Second):
		t.Fatal("no record delivered")
	}

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)
}

func TestHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	h := NewHub(logging.Discard())
	_, cancel := h.Subscribe("a")
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*2; i++ {
			h.Push("a", discovery.ImageRecord{URL: "http://x/img.png"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("push blocked on a full subscriber")
	}
	assert.Equal(t, subscriberBuffer*2, h.Pending("a"))
}

func TestHub_Forget(t *testing.T) {
	h := NewHub(logging.Discard())
	ch, cancel := h.Subscribe("a")
	h.Push("a", discovery.ImageRecord{URL: "http://x/1.png"})

	h.Forget("a")
	<-ch
	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, h.Pending("a"))
	cancel()
}

func TestHTTPMessenger(t *testing.T) {
	var got []discovery.Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg discovery.Message
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		got = append(got, msg)

		resp := discovery.Response{Message: discovery.StatusOK}
		if msg.TabID == "refused" {
			resp = discovery.Response{Message: discovery.StatusError, Reason: "nope"}
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	m := NewHTTPMessenger(srv.URL, "tab-1", time.Second)
	msg := discovery.Message{Message: discovery.MessageNewImage, Data: discovery.ImageRecord{URL: "http://x/1.png"}}
	require.NoError(t, m.Send(context.Background(), msg))
	require.Len(t, got, 1)
	assert.Equal(t, "tab-1", got[0].TabID)
	assert.Equal(t, discovery.MessageNewImage, got[0].Message)

	refused := NewHTTPMessenger(srv.URL, "refused", time.Second)
	err := refused.Send(context.Background(), msg)
	assert.True(t, errors.Is(err, ErrNotOK))
	assert.ErrorContains(t, err, "nope")
}

func TestWriterMessenger(t *testing.T) {
	var buf bytes.Buffer
	m := NewWriterMessenger(&buf)

	require.NoError(t, m.Send(context.Background(), discovery.Message{
		Message: discovery.MessageNewImage,
		Data:    discovery.ImageRecord{URL: "http://x/1.png", Link: "http://x/"},
	}))
	require.NoError(t, m.Send(context.Background(), discovery.Message{
		Message: discovery.MessageNewImage,
		Data:    discovery.ImageRecord{URL: "http://x/2.png"},
	}))

	assert.Equal(t, "{\"imgurl\":\"http://x/1.png\",\"imglink\":\"http://x/\"}\n{\"imgurl\":\"http://x/2.png\"}\n", buf.String())
}

func recordURLs(records []discovery.ImageRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.URL
	}
	return out
}
