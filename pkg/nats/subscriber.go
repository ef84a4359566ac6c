package nats

import (
	"context"
	"fmt"
	"log"

	"github.com/nats-io/nats.go"
)

// FrameHandler processes one raw frame received from the subject.
type FrameHandler func(data []byte)

// Subscriber listens on a core NATS subject.
type Subscriber struct {
	nc      *nats.Conn
	subject string
}

// NewSubscriber creates a new NATS subscriber bound to subject.
func NewSubscriber(url, subject string) (*Subscriber, error) {
	nc, err := connect(url, "chat-relay-subscriber")
	if err != nil {
		return nil, err
	}
	return &Subscriber{nc: nc, subject: subject}, nil
}

// Subscribe delivers frames to handler until ctx is cancelled. Frames arrive
// in the order they were published by any single publisher connection.
func (s *Subscriber) Subscribe(ctx context.Context, handler FrameHandler) error {
	sub, err := s.nc.Subscribe(s.subject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", s.subject, err)
	}

	go func() {
		<-ctx.Done()
		if err := sub.Unsubscribe(); err != nil {
			log.Printf("Warn: NATS unsubscribe from %s failed: %v", s.subject, err)
		}
	}()

	log.Printf("Subscribed to NATS subject %s", s.subject)
	return nil
}

// Close closes the connection.
func (s *Subscriber) Close() {
	if s.nc != nil {
		s.nc.Close()
	}
}
