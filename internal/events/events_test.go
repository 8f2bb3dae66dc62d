package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBus_DeliversSynchronouslyInOrder(t *testing.T) {
	bus := NewMemoryBus()
	var calls []string

	bus.Subscribe(func(ctx context.Context, evt FactAppended) error {
		calls = append(calls, "first")
		return nil
	})
	bus.Subscribe(func(ctx context.Context, evt FactAppended) error {
		calls = append(calls, "second")
		return nil
	})

	require.NoError(t, bus.Publish(context.Background(), NewFactAppended(1, time.Now())))
	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestMemoryBus_JoinsHandlerErrors(t *testing.T) {
	bus := NewMemoryBus()
	boom := errors.New("boom")
	ran := false

	bus.Subscribe(func(ctx context.Context, evt FactAppended) error { return boom })
	bus.Subscribe(func(ctx context.Context, evt FactAppended) error {
		ran = true
		return nil
	})

	err := bus.Publish(context.Background(), NewFactAppended(1, time.Now()))
	assert.ErrorIs(t, err, boom)
	assert.True(t, ran)
}

func TestMemoryBus_NoHandlers(t *testing.T) {
	assert.NoError(t, NewMemoryBus().Publish(context.Background(), NewFactAppended(1, time.Now())))
}

func TestDecode(t *testing.T) {
	evt := NewFactAppended(202, time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC))
	payload, err := json.Marshal(evt)
	require.NoError(t, err)

	got, err := decode(payload)
	require.NoError(t, err)
	assert.Equal(t, int64(202), got.ProductID)
	assert.Equal(t, TypeFactAppended, got.Type)
	assert.True(t, evt.Date.Equal(got.Date))

	_, err = decode([]byte(`{"event_type":"fact.appended"}`))
	assert.Error(t, err)

	_, err = decode([]byte(`not json`))
	assert.Error(t, err)
}

func TestRedisBus_DispatchSkipsOtherTypes(t *testing.T) {
	bus := NewRedisBus(nil, "")
	assert.Equal(t, DefaultRedisChannel, bus.channel)

	var got []int64
	bus.Subscribe(func(ctx context.Context, evt FactAppended) error {
		got = append(got, evt.ProductID)
		return nil
	})

	bus.dispatch(context.Background(), []byte(`{"event_type":"other","product_id":1}`))
	bus.dispatch(context.Background(), []byte(`{"event_type":"fact.appended","product_id":2}`))
	bus.dispatch(context.Background(), []byte(`garbage`))

	assert.Equal(t, []int64{2}, got)
}
