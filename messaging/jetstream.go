package messaging

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

type JetStreamMQClient struct {
	NatsClient      *nats.Conn          `json:"-"`
	JetStreamClient jetstream.JetStream `json:"-"`
	JetStreamStream jetstream.Stream    `json:"-"`

	channel string
}

func (jetstreamMQ *JetStreamMQClient) String() string {
	return "jetstream"
}

func (jetstreamMQ *JetStreamMQClient) Channel() string {
	return jetstreamMQ.channel
}

// Connect creates the stream named after the channel. Events are published
// to channel.<subject>.
func (jetstreamMQ *JetStreamMQClient) Connect(ctx context.Context, clientName string, args map[string]interface{}) error {
	address, err := getString(args, "jetstreamMQ", "Address")
	if err != nil {
		return err
	}

	channel, err := getString(args, "jetstreamMQ", "Channel")
	if err != nil {
		return err
	}

	jetstreamMQ.channel = channel

	jetstreamMQ.NatsClient, err = nats.Connect(address, nats.Name(clientName))
	if err != nil {
		return fmt.Errorf("jetstreamMQ connect nats: %w", err)
	}

	jetstreamMQ.JetStreamClient, err = jetstream.New(jetstreamMQ.NatsClient)
	if err != nil {
		return fmt.Errorf("jetstreamMQ new: %w", err)
	}

	retention := jetstream.WorkQueuePolicy
	if getBool(args, "UseInterestPolicy", false) {
		retention = jetstream.InterestPolicy
	}

	jetstreamMQ.JetStreamStream, err = jetstreamMQ.JetStreamClient.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:              jetstreamMQ.channel,
		Subjects:          []string{jetstreamMQ.channel + ".*"},
		Retention:         retention,
		Discard:           jetstream.DiscardOld,
		MaxAge:            5 * time.Minute,
		Storage:           jetstream.MemoryStorage,
		MaxMsgsPerSubject: 1_000_000,
		MaxMsgSize:        math.MaxInt32,
	})
	if err != nil {
		return fmt.Errorf("jetstreamMQ create stream: %w", err)
	}

	return nil
}

func (jetstreamMQ *JetStreamMQClient) Publish(ctx context.Context, channelName string, data []byte) error {
	_, err := jetstreamMQ.JetStreamClient.Publish(ctx, jetstreamMQ.channel+"."+channelName, data)
	if err != nil {
		return fmt.Errorf("jetstreamMQ publish: %w", err)
	}

	return nil
}

func (jetstreamMQ *JetStreamMQClient) Close() error {
	if jetstreamMQ.NatsClient != nil {
		jetstreamMQ.NatsClient.Close()
	}

	return nil
}
