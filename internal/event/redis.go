package event

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/damoang/angple-cms/internal/domain"
	"github.com/damoang/angple-cms/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// DefaultChannel redis channel carrying content events between instances
const DefaultChannel = "angple:content:events"

// Envelope wire format on the redis channel
type Envelope struct {
	InstanceID string       `json:"instance_id"`
	Event      domain.Event `json:"event"`
}

type redisPublishClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher publishes events to other instances
type RedisPublisher struct {
	client     redisPublishClient
	channel    string
	instanceID string
}

// NewRedisPublisher creates a RedisPublisher
func NewRedisPublisher(client redisPublishClient, channel, instanceID string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{client: client, channel: channel, instanceID: instanceID}
}

// Publish failures are logged, never returned
func (p *RedisPublisher) Publish(ctx context.Context, event domain.Event) {
	data, err := json.Marshal(Envelope{InstanceID: p.instanceID, Event: event})
	if err != nil {
		logger.GetLogger().Error().Err(err).Str("type", event.Type).Msg("event encode failed")
		return
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		logger.GetLogger().Warn().Err(err).
			Str("type", event.Type).
			Str("entity_id", event.EntityID).
			Msg("redis event publish failed")
	}
}

// RedisRelay replays events published by other instances on the local bus
type RedisRelay struct {
	client     *redis.Client
	bus        *Bus
	channel    string
	instanceID string

	pubsub *redis.PubSub
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRedisRelay creates a relay; call Start to begin listening
func NewRedisRelay(client *redis.Client, bus *Bus, channel, instanceID string) *RedisRelay {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisRelay{client: client, bus: bus, channel: channel, instanceID: instanceID}
}

// Start subscribes and processes messages until Stop
func (r *RedisRelay) Start(ctx context.Context) error {
	ctx, r.cancel = context.WithCancel(ctx)
	r.pubsub = r.client.Subscribe(ctx, r.channel)

	// Wait for subscription confirmation
	if _, err := r.pubsub.Receive(ctx); err != nil {
		r.cancel()
		return err
	}

	r.wg.Add(1)
	go r.processMessages(ctx)

	logger.GetLogger().Info().Str("channel", r.channel).Str("instance_id", r.instanceID).Msg("event relay started")
	return nil
}

func (r *RedisRelay) processMessages(ctx context.Context) {
	defer r.wg.Done()
	ch := r.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			r.handleMessage(ctx, msg.Payload)
		}
	}
}

// handleMessage returns whether the payload was replayed locally
func (r *RedisRelay) handleMessage(ctx context.Context, payload string) bool {
	var env Envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		logger.GetLogger().Warn().Err(err).Msg("event relay: undecodable message")
		return false
	}
	// Skip messages from this instance (avoid loops)
	if env.InstanceID == r.instanceID {
		return false
	}
	r.bus.Publish(ctx, env.Event)
	return true
}

// Stop stops listening and waits for the processor to exit
func (r *RedisRelay) Stop() error {
	if r.cancel != nil {
		r.cancel()
	}
	var err error
	if r.pubsub != nil {
		err = r.pubsub.Close()
	}
	r.wg.Wait()
	return err
}
