package session

import (
	"context"
	"errors"

	"github.com/vango-go/avatar-live/pkg/gateway/live/protocol"
)

var ErrClosed = errors.New("session closed")

// Emitter delivers outbound events in submission order.
type Emitter interface {
	Send(ctx context.Context, typ string, payload any) error
}

// Outbox is the FIFO queue between session goroutines and the writer.
type Outbox struct {
	frames chan []byte
}

func NewOutbox(size int) *Outbox {
	if size <= 0 {
		size = 64
	}
	return &Outbox{frames: make(chan []byte, size)}
}

// Send encodes the event and blocks until it is queued or ctx is done.
func (o *Outbox) Send(ctx context.Context, typ string, payload any) error {
	if ctx.Err() != nil {
		return ErrClosed
	}
	frame, err := protocol.Encode(typ, payload)
	if err != nil {
		return err
	}
	select {
	case o.frames <- frame:
		return nil
	case <-ctx.Done():
		return ErrClosed
	}
}

func (o *Outbox) Frames() <-chan []byte {
	return o.frames
}
