package messaging

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
)

type KafkaMQClient struct {
	KafkaClient *kafka.Writer

	channel string
}

func parseKafkaBalancer(balancer string) kafka.Balancer {
	switch balancer {
	case "crc32":
		return &kafka.CRC32Balancer{}
	case "hash":
		return &kafka.Hash{}
	case "murmur2":
		return &kafka.Murmur2Balancer{}
	case "roundrobin":
		return &kafka.RoundRobin{}
	case "leastbytes":
		return &kafka.LeastBytes{}
	default:
		return nil
	}
}

func (kafkaMQ *KafkaMQClient) String() string {
	return "kafka"
}

func (kafkaMQ *KafkaMQClient) Channel() string {
	return kafkaMQ.channel
}

func (kafkaMQ *KafkaMQClient) Connect(_ context.Context, _ string, args map[string]interface{}) error {
	address, err := getString(args, "kafkaMQ", "Address")
	if err != nil {
		return err
	}

	// Balancer is optional, the writer falls back to round robin.
	balancer, _ := GetEntry(args, "Balancer").(string)

	kafkaMQ.channel, _ = GetEntry(args, "Channel").(string)

	kafkaMQ.KafkaClient = &kafka.Writer{
		Addr:                   kafka.TCP(address),
		Balancer:               parseKafkaBalancer(balancer),
		Async:                  getBool(args, "Async", false),
		AllowAutoTopicCreation: getBool(args, "AllowAutoTopicCreation", false),
	}

	return nil
}

func (kafkaMQ *KafkaMQClient) Publish(ctx context.Context, channelName string, data []byte) error {
	err := kafkaMQ.KafkaClient.WriteMessages(ctx, kafka.Message{
		Topic: channelName,
		Value: data,
	})
	if err != nil {
		return fmt.Errorf("kafkaMQ publish: %w", err)
	}

	return nil
}

func (kafkaMQ *KafkaMQClient) Close() error {
	if kafkaMQ.KafkaClient == nil {
		return nil
	}

	return kafkaMQ.KafkaClient.Close()
}
