package messaging

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/stan.go"
)

type StanMQClient struct {
	NatsClient *nats.Conn `json:"-"`
	StanClient stan.Conn  `json:"-"`

	async bool

	channel string
	cluster string
}

func (stanMQ *StanMQClient) String() string {
	return "stan"
}

func (stanMQ *StanMQClient) Channel() string {
	return stanMQ.channel
}

func (stanMQ *StanMQClient) Cluster() string {
	return stanMQ.cluster
}

func (stanMQ *StanMQClient) Connect(_ context.Context, clientName string, args map[string]interface{}) error {
	address, err := getString(args, "stanMQ", "Address")
	if err != nil {
		return err
	}

	stanMQ.cluster, err = getString(args, "stanMQ", "Cluster")
	if err != nil {
		return err
	}

	stanMQ.channel, err = getString(args, "stanMQ", "Channel")
	if err != nil {
		return err
	}

	stanMQ.async = getBool(args, "Async", false)

	var option stan.Option

	if getBool(args, "UseNATSConnection", true) {
		stanMQ.NatsClient, err = nats.Connect(address)
		if err != nil {
			return fmt.Errorf("stanMQ connect nats: %w", err)
		}

		option = stan.NatsConn(stanMQ.NatsClient)
	} else {
		option = stan.NatsURL(address)
	}

	stanMQ.StanClient, err = stan.Connect(stanMQ.cluster, clientName, option)
	if err != nil {
		return fmt.Errorf("stanMQ connect stan: %w", err)
	}

	return nil
}

func (stanMQ *StanMQClient) Publish(_ context.Context, channelName string, data []byte) error {
	var err error

	if stanMQ.async {
		_, err = stanMQ.StanClient.PublishAsync(channelName, data, nil)
	} else {
		err = stanMQ.StanClient.Publish(channelName, data)
	}

	if err != nil {
		return fmt.Errorf("stanMQ publish: %w", err)
	}

	return nil
}

func (stanMQ *StanMQClient) Close() error {
	var err error

	if stanMQ.StanClient != nil {
		err = stanMQ.StanClient.Close()
	}

	if stanMQ.NatsClient != nil {
		stanMQ.NatsClient.Close()
	}

	return err
}
