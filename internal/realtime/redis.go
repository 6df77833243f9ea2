package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/deanapikala-art/rork-overboard-market-1-sub001/pkg/logger"
)

const channelPrefix = "realtime:"

type envelope struct {
	Origin string `json:"origin"`
	Change Change `json:"change"`
}

// RedisBridge shares changes between service instances over Redis pub/sub.
// Changes published here are dispatched to the local Hub right away; Run
// delivers the ones other instances publish and skips this instance's own.
type RedisBridge struct {
	client *redis.Client
	hub    *Hub
	origin string
}

func NewRedisBridge(client *redis.Client, hub *Hub) *RedisBridge {
	return &RedisBridge{
		client: client,
		hub:    hub,
		origin: uuid.NewString(),
	}
}

// Publish dispatches c locally and forwards it to Redis. A Redis failure is
// logged; local viewers already have the change.
func (b *RedisBridge) Publish(ctx context.Context, c Change) error {
	b.hub.Dispatch(c)

	data, err := json.Marshal(envelope{Origin: b.origin, Change: c})
	if err != nil {
		return fmt.Errorf("encode change: %w", err)
	}
	if err := b.client.Publish(ctx, channelPrefix+c.Table, data).Err(); err != nil {
		logger.Warn().Err(err).Str("table", c.Table).Msg("redis publish failed, change stays local")
	}
	return nil
}

func (b *RedisBridge) Subscribe(table string, filter Filter, fn Handler) Subscription {
	return b.hub.Subscribe(table, filter, fn)
}

// Run consumes the Redis channels until ctx is done
func (b *RedisBridge) Run(ctx context.Context) error {
	ps := b.client.PSubscribe(ctx, channelPrefix+"*")
	defer ps.Close()

	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s*: %w", channelPrefix, err)
	}
	logger.Info().Str("origin", b.origin).Msg("realtime bridge listening on redis")

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if err := b.receive(msg.Channel, msg.Payload); err != nil {
				logger.Warn().Err(err).Str("channel", msg.Channel).Msg("dropping malformed change")
			}
		}
	}
}

// receive dispatches a change from another instance
func (b *RedisBridge) receive(channel, payload string) error {
	env, err := decodeEnvelope(channel, payload)
	if err != nil {
		return err
	}
	if env.Origin == b.origin {
		return nil
	}
	b.hub.Dispatch(env.Change)
	return nil
}

func decodeEnvelope(channel, payload string) (envelope, error) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return envelope{}, err
	}
	if env.Change.Table == "" {
		env.Change.Table = strings.TrimPrefix(channel, channelPrefix)
	}
	return env, nil
}
