package broker

import (
	"context"
	"log"

	"github.com/redis/go-redis/v9"
)

const DefaultRedisChannel = "chat_cluster_events"

// RedisRelay shares events between instances over a Redis pub/sub channel.
type RedisRelay struct {
	rdb     *redis.Client
	channel string
}

func NewRedisRelay(rdb *redis.Client, channel string) *RedisRelay {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisRelay{rdb: rdb, channel: channel}
}

func (r *RedisRelay) Publish(ctx context.Context, data []byte) error {
	return r.rdb.Publish(ctx, r.channel, data).Err()
}

func (r *RedisRelay) Subscribe(ctx context.Context, handler func(data []byte)) error {
	pubsub := r.rdb.Subscribe(ctx, r.channel)
	// Wait for the subscription confirmation so early publishes are not lost.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}

	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					log.Printf("Redis relay channel %s closed", r.channel)
					return
				}
				handler([]byte(msg.Payload))
			}
		}
	}()
	return nil
}

func (r *RedisRelay) Close() error {
	return r.rdb.Close()
}
