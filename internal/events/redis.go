package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const DefaultRedisChannel = "reorderpoint:facts"

// RedisBus fans events out over Redis pub/sub so ingestion and recompute can
// run in separate processes. Delivery is at-most-once; a missed event is
// repaired by the next fact for the product or by a backfill.
type RedisBus struct {
	client  *redis.Client
	channel string

	mu       sync.RWMutex
	handlers []Handler
}

func NewRedisBus(client *redis.Client, channel string) *RedisBus {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisBus{client: client, channel: channel}
}

var _ Bus = (*RedisBus)(nil)

func (b *RedisBus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

func (b *RedisBus) Publish(ctx context.Context, evt FactAppended) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", b.channel, err)
	}
	return nil
}

// Start consumes the channel until ctx is done.
func (b *RedisBus) Start(ctx context.Context) {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	log.Info().Str("channel", b.channel).Msg("starting fact event listener")
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("channel", b.channel).Msg("stopping fact event listener")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			b.dispatch(ctx, []byte(msg.Payload))
		}
	}
}

func (b *RedisBus) dispatch(ctx context.Context, payload []byte) {
	evt, err := decode(payload)
	if err != nil {
		log.Error().Err(err).Msg("failed to decode fact event")
		return
	}
	if evt.Type != TypeFactAppended {
		return
	}

	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, evt); err != nil {
			log.Error().Err(err).Int64("product_id", evt.ProductID).Msg("fact event handler failed")
		}
	}
}

func decode(payload []byte) (FactAppended, error) {
	var evt FactAppended
	if err := json.Unmarshal(payload, &evt); err != nil {
		return FactAppended{}, err
	}
	if evt.ProductID <= 0 {
		return FactAppended{}, fmt.Errorf("event without product_id")
	}
	return evt, nil
}
