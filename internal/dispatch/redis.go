package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"collab-go/internal/collab"
)

// topicPattern matches every content topic.
const topicPattern = "space:*"

// RedisDispatcher publishes events to Redis channels named after their topic.
// Each node runs Bridge to forward those channels into its local Hub, so a
// subscriber sees events committed on any node.
type RedisDispatcher struct {
	client redis.UniversalClient
	logger collab.Logger
}

var _ collab.Dispatcher = (*RedisDispatcher)(nil)

// RedisOptions selects the Redis server.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient creates a client for opts. It does not connect.
func NewRedisClient(opts RedisOptions) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
}

// NewRedisDispatcher wraps an existing client.
func NewRedisDispatcher(client redis.UniversalClient, logger collab.Logger) *RedisDispatcher {
	return &RedisDispatcher{client: client, logger: logger}
}

// Ping checks that the server is reachable.
func (d *RedisDispatcher) Ping(ctx context.Context) error {
	if err := d.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("pinging redis: %w", err)
	}
	return nil
}

// Publish sends the encoded event on the topic's channel.
func (d *RedisDispatcher) Publish(ctx context.Context, topic string, event *collab.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	if err := d.client.Publish(ctx, topic, data).Err(); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	return nil
}

// Bridge subscribes to every content topic and broadcasts incoming messages
// to hub until ctx is done.
func (d *RedisDispatcher) Bridge(ctx context.Context, hub *Hub) error {
	sub := d.client.PSubscribe(ctx, topicPattern)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribing to %s: %w", topicPattern, err)
	}
	d.logger.Info("redis bridge started", "pattern", topicPattern)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("redis subscription closed")
			}
			d.forward(hub, msg)
		}
	}
}

func (d *RedisDispatcher) forward(hub *Hub, msg *redis.Message) {
	var head struct {
		Type collab.EventType `json:"type"`
	}
	if err := json.Unmarshal([]byte(msg.Payload), &head); err != nil {
		d.logger.Warn("ignoring malformed event", "channel", msg.Channel)
		return
	}
	hub.Deliver(msg.Channel, head.Type, []byte(msg.Payload))
}

// Close releases the client.
func (d *RedisDispatcher) Close() error {
	return d.client.Close()
}
