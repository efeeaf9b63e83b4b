package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMQClient(t *testing.T) {
	for _, name := range MQClients {
		client, err := NewMQClient(name)
		require.NoError(t, err)
		assert.Equal(t, name, client.String())
	}

	_, err := NewMQClient("carrier-pigeon")
	assert.True(t, errors.Is(err, ErrUnknownMQClient))
}

func TestGetEntryIgnoresCase(t *testing.T) {
	args := map[string]interface{}{"address": "localhost:6379", "ASYNC": "true"}

	assert.Equal(t, "localhost:6379", GetEntry(args, "Address"))
	assert.True(t, getBool(args, "Async", false))
	assert.True(t, getBool(args, "Missing", true))
	assert.Nil(t, GetEntry(args, "Channel"))
}

func TestConnectRequiresAddress(t *testing.T) {
	client := &RedisMQClient{}

	err := client.Connect(context.Background(), "", map[string]interface{}{})
	assert.ErrorContains(t, err, "Address")
}

// asyncReceive must be called before publishing as miniredis delivers
// messages synchronously.
func asyncReceive(sub *miniredis.Subscriber) <-chan miniredis.PubsubMessage {
	ch := make(chan miniredis.PubsubMessage, 1)

	go func() {
		ch <- <-sub.Messages()
	}()

	return ch
}

func TestRedisPublish(t *testing.T) {
	mr := miniredis.RunT(t)

	client := &RedisMQClient{}
	err := client.Connect(context.Background(), "", map[string]interface{}{
		"Address": mr.Addr(),
		"DB":      "0",
		"Channel": "sandwich",
	})
	require.NoError(t, err)

	defer client.Close()

	assert.Equal(t, "sandwich", client.Channel())

	sub := mr.NewSubscriber()
	defer sub.Close()

	sub.Subscribe("sandwich")
	ch := asyncReceive(sub)

	require.NoError(t, client.Publish(context.Background(), "sandwich", []byte(`{"t":"READY"}`)))

	select {
	case msg := <-ch:
		assert.Equal(t, "sandwich", msg.Channel)
		assert.JSONEq(t, `{"t":"READY"}`, msg.Message)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for published message")
	}
}

func TestRedisCloseIsIdempotent(t *testing.T) {
	mr := miniredis.RunT(t)

	client := &RedisMQClient{}
	require.NoError(t, client.Connect(context.Background(), "", map[string]interface{}{"address": mr.Addr()}))

	assert.NoError(t, client.Close())
	assert.NoError(t, client.Close())
}
