package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"album-scanner/crawler"
	"album-scanner/discovery"
)

// ErrNotOK is returned when the coordinator answers with an ERROR status.
var ErrNotOK = errors.New("message not acknowledged")

// InitData is the payload of an init message. HTML, when present, is a
// snapshot of the page pushed by the caller; otherwise the page is
// fetched from URL on every pass.
type InitData struct {
	URL  string `json:"url"`
	HTML string `json:"html,omitempty"`
}

// MutateData is the payload of a mutate message.
type MutateData struct {
	Selector string `json:"selector"`
	HTML     string `json:"html"`
}

// Coordinator dispatches control messages to the scan engines and keeps
// the records they report until a consumer collects them.
type Coordinator struct {
	hub      *Hub
	registry *discovery.Registry
	fetcher  crawler.Fetcher
	logger   logrus.FieldLogger
}

// NewCoordinator builds a coordinator whose engines report back to it.
// Engines stop when ctx is done.
func NewCoordinator(ctx context.Context, hub *Hub, fetcher crawler.Fetcher, opts discovery.Options, logger logrus.FieldLogger) *Coordinator {
	c := &Coordinator{
		hub:     hub,
		fetcher: fetcher,
		logger:  logger,
	}
	c.registry = discovery.NewRegistry(ctx, c.Messenger, opts, logger)
	c.registry.OnRetire(c.retire)
	return c
}

// retire clears what an old engine left in the hub. A navigated tab
// keeps its subscribers, a closed one loses them.
func (c *Coordinator) retire(tabID string, removed bool) {
	if removed {
		c.hub.Forget(tabID)
		return
	}
	c.hub.Drain(tabID)
}

func (c *Coordinator) Registry() *discovery.Registry { return c.registry }

func (c *Coordinator) Hub() *Hub { return c.hub }

// Messenger returns the channel an engine of tabID reports through.
func (c *Coordinator) Messenger(tabID string) discovery.Messenger {
	return discovery.MessengerFunc(func(ctx context.Context, msg discovery.Message) error {
		resp := c.Process(ctx, tabID, msg)
		if resp.Message != discovery.StatusOK {
			return fmt.Errorf("%w: %s", ErrNotOK, resp.Reason)
		}
		return nil
	})
}

// Process handles one message for a tab. It never panics and always
// answers with an OK or ERROR response.
func (c *Coordinator) Process(ctx context.Context, tabID string, msg discovery.Message) (resp discovery.Response) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.WithFields(logrus.Fields{
				"tab_id":  tabID,
				"message": msg.Message,
				"panic":   fmt.Sprint(r),
			}).Error("Message processing panicked")
			resp = errorResponse(fmt.Sprint(r))
		}
	}()

	if tabID == "" {
		tabID = msg.TabID
	}
	if tabID == "" {
		if msg.Message != discovery.MessageInit {
			return errorResponse("Unable to get the current tab ID")
		}
		tabID = uuid.NewString()
	}

	result, err := c.dispatch(ctx, tabID, msg)
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"tab_id":  tabID,
			"message": msg.Message,
			"error":   err.Error(),
		}).Warn("Message failed")
		return errorResponse(err.Error())
	}
	return discovery.Response{Message: discovery.StatusOK, Result: result}
}

func (c *Coordinator) dispatch(ctx context.Context, tabID string, msg discovery.Message) (any, error) {
	switch msg.Message {
	case discovery.MessageInit:
		return c.init(ctx, tabID, msg.Data)

	case discovery.MessageStartScanning:
		engine, err := c.registry.Get(tabID)
		if err != nil {
			return nil, err
		}
		engine.Start()
		return stateResult(tabID, engine), nil

	case discovery.MessageStopScanning:
		engine, err := c.registry.Get(tabID)
		if err != nil {
			return nil, err
		}
		engine.Stop()
		return stateResult(tabID, engine), nil

	case discovery.MessageListAll:
		engine, err := c.registry.Get(tabID)
		if err != nil {
			return nil, err
		}
		listed := engine.ListAll(ctx)
		return map[string]any{"tab_id": tabID, "listed": listed}, nil

	case discovery.MessageMutate:
		var data MutateData
		if err := decodeData(msg.Data, &data); err != nil {
			return nil, err
		}
		engine, err := c.registry.Get(tabID)
		if err != nil {
			return nil, err
		}
		scanned, err := engine.Mutate(ctx, data.Selector, data.HTML)
		if err != nil {
			return nil, err
		}
		return map[string]any{"tab_id": tabID, "scanned": scanned}, nil

	case discovery.MessageClose:
		if err := c.registry.Remove(tabID); err != nil {
			return nil, err
		}
		return nil, nil

	case discovery.MessageNewImage:
		var rec discovery.ImageRecord
		if err := decodeData(msg.Data, &rec); err != nil {
			return nil, err
		}
		c.hub.Push(tabID, rec)
		return nil, nil

	case discovery.MessageAllImages:
		var recs []discovery.ImageRecord
		if err := decodeData(msg.Data, &recs); err != nil {
			return nil, err
		}
		c.hub.Push(tabID, recs...)
		return nil, nil

	case discovery.MessageGetImages:
		return c.hub.Drain(tabID), nil
	}

	return nil, fmt.Errorf("Unknown message: %q", msg.Message)
}

func (c *Coordinator) init(ctx context.Context, tabID string, raw any) (any, error) {
	var data InitData
	if err := decodeData(raw, &data); err != nil {
		return nil, err
	}
	if data.URL == "" {
		return nil, errors.New("init requires a url")
	}

	var source discovery.Source
	if data.HTML != "" {
		snap, err := crawler.NewSnapshot(data.URL, data.HTML)
		if err != nil {
			return nil, err
		}
		source = snap
	} else {
		source = crawler.NewFetchSource(data.URL, c.fetcher)
	}

	engine, result := c.registry.Init(ctx, tabID, source)
	out := stateResult(tabID, engine)
	out["init"] = result
	return out, nil
}

// Close stops every engine.
func (c *Coordinator) Close() {
	c.registry.Close()
}

func stateResult(tabID string, engine *discovery.Engine) map[string]any {
	return map[string]any{
		"tab_id": tabID,
		"url":    engine.URL(),
		"state":  engine.State(),
	}
}

func errorResponse(reason string) discovery.Response {
	return discovery.Response{Message: discovery.StatusError, Reason: reason}
}

// decodeData fills out from a message payload, which is either the Go
// value itself or the generic form produced by JSON decoding.
func decodeData(data any, out any) error {
	switch v := data.(type) {
	case nil:
		return errors.New("message has no data")
	case discovery.ImageRecord:
		if p, ok := out.(*discovery.ImageRecord); ok {
			*p = v
			return nil
		}
	case []discovery.ImageRecord:
		if p, ok := out.(*[]discovery.ImageRecord); ok {
			*p = v
			return nil
		}
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode message data: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode message data: %w", err)
	}
	return nil
}
