package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"monoova-gateway/internal/common/logging"
)

func setupTestRedis(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := NewClient(&Config{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client, mr
}

func TestNewClient(t *testing.T) {
	_, err := NewClient(nil)
	assert.Error(t, err)

	_, err = NewClient(&Config{Address: "127.0.0.1:1"})
	assert.Error(t, err)

	client, _ := setupTestRedis(t)
	assert.Equal(t, 10, client.config.PoolSize)
	assert.NoError(t, client.Health(context.Background()))
}

func TestClient_KeyValue(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "k", []byte("v"), time.Minute))
	val, err := client.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), val)

	mr.FastForward(2 * time.Minute)
	_, err = client.Get(ctx, "k")
	assert.ErrorIs(t, err, goredis.Nil)

	require.NoError(t, client.Set(ctx, "d", []byte("x"), 0))
	require.NoError(t, client.Delete(ctx, "d"))
	assert.False(t, mr.Exists("d"))
}

func receive(t *testing.T, sub *goredis.PubSub) *goredis.Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	return msg
}

func TestEventPublisher_Deliver(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := logging.ContextWithRequestID(context.Background(), "req-9")

	sub := client.Subscribe(context.Background(), "webhooks")
	defer sub.Close()
	_, err := sub.Receive(context.Background())
	require.NoError(t, err)

	body := []byte(`{"type":"npppaymentstatus","id":"abc"}`)
	publisher := NewEventPublisher(client, "webhooks")
	require.NoError(t, publisher.Deliver(ctx, "sandbox", body))

	var event WebhookEvent
	require.NoError(t, json.Unmarshal([]byte(receive(t, sub).Payload), &event))
	assert.Equal(t, "sandbox", event.Environment)
	assert.Equal(t, "req-9", event.RequestID)
	assert.JSONEq(t, string(body), string(event.Payload))
	assert.Empty(t, event.Raw)
}

func TestEventPublisher_NonJSONBody(t *testing.T) {
	client, _ := setupTestRedis(t)

	sub := client.Subscribe(context.Background(), "webhooks")
	defer sub.Close()
	_, err := sub.Receive(context.Background())
	require.NoError(t, err)

	require.NoError(t, NewEventPublisher(client, "webhooks").Deliver(context.Background(), "live", []byte("a=b")))

	var event WebhookEvent
	require.NoError(t, json.Unmarshal([]byte(receive(t, sub).Payload), &event))
	assert.Equal(t, "a=b", event.Raw)
	assert.Empty(t, event.Payload)
}
