package discovery

import (
	"context"
	"errors"
)

// ImageRecord is a validated, deduplicated image with its associated link.
type ImageRecord struct {
	URL  string `json:"imgurl"`
	Link string `json:"imglink,omitempty"`
}

// Message names understood by the coordinator.
const (
	MessageInit          = "init"
	MessageStartScanning = "startScanning"
	MessageStopScanning  = "stopScanning"
	MessageListAll       = "listAll"
	MessageNewImage      = "newImage"
	MessageAllImages     = "allImages"
	MessageGetImages     = "getImages"
	MessageMutate        = "mutate"
	MessageClose         = "close"
)

// Message is the envelope exchanged with the messaging collaborator.
type Message struct {
	Message string `json:"message"`
	TabID   string `json:"tab_id,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Response status values.
const (
	StatusOK    = "OK"
	StatusError = "ERROR"
)

type Response struct {
	Message string `json:"message"`
	Result  any    `json:"result,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// Messenger delivers messages to the messaging collaborator. Send blocks
// until the collaborator has acknowledged the message.
type Messenger interface {
	Send(ctx context.Context, msg Message) error
}

// MessengerFunc adapts a function to the Messenger interface.
type MessengerFunc func(ctx context.Context, msg Message) error

func (f MessengerFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

var ErrUnknownTab = errors.New("unknown tab")

func newImageMessage(tabID string, rec ImageRecord) Message {
	return Message{Message: MessageNewImage, TabID: tabID, Data: rec}
}
