package broker

import (
	"context"

	pktNats "school-portal-be/pkg/nats"
)

const DefaultNatsSubject = "chat.cluster.events"

// NatsRelay shares events between instances over a core NATS subject.
type NatsRelay struct {
	publisher  *pktNats.Publisher
	subscriber *pktNats.Subscriber
}

func NewNatsRelay(url, subject string) (*NatsRelay, error) {
	if subject == "" {
		subject = DefaultNatsSubject
	}
	pub, err := pktNats.NewPublisher(url, subject)
	if err != nil {
		return nil, err
	}
	sub, err := pktNats.NewSubscriber(url, subject)
	if err != nil {
		pub.Close()
		return nil, err
	}
	return &NatsRelay{publisher: pub, subscriber: sub}, nil
}

func (r *NatsRelay) Publish(ctx context.Context, data []byte) error {
	return r.publisher.Publish(ctx, data)
}

func (r *NatsRelay) Subscribe(ctx context.Context, handler func(data []byte)) error {
	return r.subscriber.Subscribe(ctx, pktNats.FrameHandler(handler))
}

func (r *NatsRelay) Close() error {
	r.publisher.Close()
	r.subscriber.Close()
	return nil
}
