package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	channelPrefix = "superghost:match:"
	outboxSize    = 1024
)

// envelope is what travels over Redis.
type envelope struct {
	Origin string `json:"origin"`
	Event  Event  `json:"event"`
}

// RedisRelay mirrors events between server instances. Local subscribers
// are served straight from the hub; events are also queued for Redis
// and events from other instances are replayed into the hub.
type RedisRelay struct {
	client *redis.Client
	hub    *Hub
	origin string
	outbox chan Event
	logger zerolog.Logger
}

// NewRedisClient connects and pings Redis.
func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// NewRedisRelay wraps hub with cross-instance delivery.
func NewRedisRelay(client *redis.Client, hub *Hub, logger zerolog.Logger) *RedisRelay {
	return &RedisRelay{
		client: client,
		hub:    hub,
		origin: uuid.NewString(),
		outbox: make(chan Event, outboxSize),
		logger: logger.With().Str("component", "redis_relay").Logger(),
	}
}

// Publish serves local subscribers and queues ev for other instances.
func (r *RedisRelay) Publish(ctx context.Context, ev Event) {
	r.hub.Publish(ctx, ev)
	select {
	case r.outbox <- ev:
	default:
		r.logger.Warn().Str("match_id", ev.MatchID).Msg("relay outbox full, event not mirrored")
	}
}

// Run pumps the outbox to Redis and remote events into the hub until ctx
// is cancelled.
func (r *RedisRelay) Run(ctx context.Context) error {
	pubsub := r.client.PSubscribe(ctx, channelPrefix+"*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe: %w", err)
	}
	go r.drain(ctx)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("redis subscription closed")
			}
			r.receive(ctx, msg)
		}
	}
}

func (r *RedisRelay) receive(ctx context.Context, msg *redis.Message) {
	var env envelope
	if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
		r.logger.Warn().Err(err).Str("channel", msg.Channel).Msg("undecodable relay message")
		return
	}
	if env.Origin == r.origin {
		return
	}
	if env.Event.MatchID == "" {
		env.Event.MatchID = strings.TrimPrefix(msg.Channel, channelPrefix)
	}
	r.hub.Publish(ctx, env.Event)
}

// drain sends queued events in order.
func (r *RedisRelay) drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-r.outbox:
			payload, err := json.Marshal(envelope{Origin: r.origin, Event: ev})
			if err != nil {
				r.logger.Error().Err(err).Msg("encode relay message")
				continue
			}
			if err := r.client.Publish(ctx, channelPrefix+ev.MatchID, payload).Err(); err != nil {
				r.logger.Warn().Err(err).Str("match_id", ev.MatchID).Msg("relay publish failed")
			}
		}
	}
}
