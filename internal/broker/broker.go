// Package broker fans chat events out to live subscribers. It is a side
// channel only: nothing is persisted and nothing is replayed.
package broker

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"sync"

	"school-portal-be/internal/pkg/logger"
	"school-portal-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

const module = "Broker"

// Filter decides whether a subscriber wants an event. nil accepts everything.
type Filter func(evt events.Event) bool

// Relay carries events between broker instances of the same deployment.
type Relay interface {
	Publish(ctx context.Context, data []byte) error
	Subscribe(ctx context.Context, handler func(data []byte)) error
	Close() error
}

type Config struct {
	Shards           int // ordered delivery lanes, keyed by chat id
	QueueSize        int
	SubscriberBuffer int
}

func DefaultConfig() Config {
	return Config{Shards: 16, QueueSize: 256, SubscriberBuffer: 64}
}

type envelope struct {
	Origin string       `json:"origin"`
	Event  events.Event `json:"event"`

	fromRelay bool
}

type Broker struct {
	cfg        Config
	pubSub     *gochannel.GoChannel
	relay      Relay
	instanceId string
	shards     []chan envelope
	logger     logger.ILogger

	startOnce sync.Once
	closeOnce sync.Once
	closed    chan struct{}
	wg        sync.WaitGroup
}

// New builds a broker. relay may be nil for a single-instance deployment.
func New(cfg Config, relay Relay, log logger.ILogger) *Broker {
	if cfg.Shards <= 0 {
		cfg.Shards = DefaultConfig().Shards
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	if cfg.SubscriberBuffer <= 0 {
		cfg.SubscriberBuffer = DefaultConfig().SubscriberBuffer
	}

	// Blocking until every subscriber acks keeps each lane strictly ordered.
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{BlockPublishUntilSubscriberAck: true},
		watermill.NewStdLogger(false, false),
	)

	shards := make([]chan envelope, cfg.Shards)
	for i := range shards {
		shards[i] = make(chan envelope, cfg.QueueSize)
	}

	return &Broker{
		cfg:        cfg,
		pubSub:     pubSub,
		relay:      relay,
		instanceId: uuid.NewString(),
		shards:     shards,
		logger:     log,
		closed:     make(chan struct{}),
	}
}

// Start launches the delivery lanes and, when configured, the relay listener.
func (b *Broker) Start(ctx context.Context) error {
	var err error
	b.startOnce.Do(func() {
		for i := range b.shards {
			b.wg.Add(1)
			go b.runShard(b.shards[i])
		}
		if b.relay != nil {
			err = b.relay.Subscribe(ctx, b.handleRelayFrame)
		}
	})
	return err
}

// Publish enqueues evt on its key's lane. It is fire-and-forget: failures are
// logged, never returned.
func (b *Broker) Publish(ctx context.Context, evt events.Event) {
	b.enqueue(ctx, envelope{Origin: b.instanceId, Event: evt})
}

func (b *Broker) enqueue(ctx context.Context, env envelope) {
	lane := b.shards[b.laneOf(env.Event.Key())]
	select {
	case lane <- env:
	case <-b.closed:
	case <-ctx.Done():
		b.logger.Warn(module, "Dropped event, context done before enqueue", map[string]interface{}{
			"event_type": env.Event.Type,
			"chat_id":    env.Event.ChatId,
		})
	}
}

func (b *Broker) laneOf(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(b.shards)))
}

func (b *Broker) runShard(lane chan envelope) {
	defer b.wg.Done()
	for {
		select {
		case <-b.closed:
			return
		case env := <-lane:
			b.deliverLocal(env.Event)
			if !env.fromRelay {
				b.forwardToRelay(env)
			}
		}
	}
}

func (b *Broker) deliverLocal(evt events.Event) {
	payload, err := json.Marshal(evt)
	if err != nil {
		b.logger.Error(module, "Failed to encode event", map[string]interface{}{"error": err})
		return
	}
	msg := message.NewMessage(evt.Id.String(), payload)
	msg.Metadata.Set("chat_id", evt.ChatId.String())
	if err := b.pubSub.Publish(evt.Topic(), msg); err != nil {
		b.logger.Warn(module, "Local publish failed", map[string]interface{}{
			"error":      err.Error(),
			"event_type": evt.Type,
		})
	}
}

func (b *Broker) forwardToRelay(env envelope) {
	if b.relay == nil {
		return
	}
	data, err := json.Marshal(env)
	if err != nil {
		b.logger.Error(module, "Failed to encode relay frame", map[string]interface{}{"error": err})
		return
	}
	if err := b.relay.Publish(context.Background(), data); err != nil {
		b.logger.Warn(module, "Relay publish failed", map[string]interface{}{
			"error":      err.Error(),
			"event_type": env.Event.Type,
		})
	}
}

func (b *Broker) handleRelayFrame(data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		b.logger.Warn(module, "Malformed relay frame", map[string]interface{}{"error": err.Error()})
		return
	}
	if env.Origin == b.instanceId {
		return
	}
	env.fromRelay = true
	b.enqueue(context.Background(), env)
}

// Subscribe streams events of one type that pass filter. The stream closes when
// ctx is cancelled, which also drops the registration from the broker. filter
// may update subscriber state; it is never called concurrently for events that
// share a key.
func (b *Broker) Subscribe(ctx context.Context, eventType events.Type, filter Filter) (<-chan events.Event, error) {
	messages, err := b.pubSub.Subscribe(ctx, events.TopicOf(eventType))
	if err != nil {
		return nil, err
	}

	out := make(chan events.Event, b.cfg.SubscriberBuffer)
	go func() {
		defer close(out)
		for msg := range messages {
			var evt events.Event
			if err := json.Unmarshal(msg.Payload, &evt); err != nil {
				msg.Ack()
				continue
			}
			// The filter runs before the ack, so it sees events of one chat
			// strictly one after another.
			pass := filter == nil || filter(evt)
			msg.Ack()
			if !pass {
				continue
			}
			select {
			case out <- evt:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close stops the lanes and releases the transport. Pending events are dropped.
func (b *Broker) Close() error {
	var err error
	b.closeOnce.Do(func() {
		close(b.closed)
		// Closing the pubsub first unblocks lanes waiting on subscriber acks.
		err = b.pubSub.Close()
		b.wg.Wait()
		if b.relay != nil {
			if rerr := b.relay.Close(); rerr != nil && err == nil {
				err = rerr
			}
		}
	})
	return err
}
