package messaging

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrUnknownMQClient = errors.New("unknown mq client")

// MQClient publishes raw payloads to a message queue.
type MQClient interface {
	String() string
	Channel() string

	Connect(ctx context.Context, clientName string, args map[string]interface{}) error
	Publish(ctx context.Context, channel string, data []byte) error
	Close() error
}

// MQClients lists every client NewMQClient can build.
var MQClients = []string{"jetstream", "kafka", "redis", "stan"}

func NewMQClient(mqType string) (MQClient, error) {
	switch strings.ToLower(mqType) {
	case "jetstream":
		return &JetStreamMQClient{}, nil
	case "kafka":
		return &KafkaMQClient{}, nil
	case "redis":
		return &RedisMQClient{}, nil
	case "stan":
		return &StanMQClient{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMQClient, mqType)
	}
}

// GetEntry returns the first value whose key matches, ignoring case.
func GetEntry(m map[string]interface{}, key string) interface{} {
	key = strings.ToLower(key)
	for i, k := range m {
		if strings.ToLower(i) == key {
			return k
		}
	}

	return nil
}

// getString reads a required string argument.
func getString(args map[string]interface{}, client, key string) (string, error) {
	value, ok := GetEntry(args, key).(string)
	if !ok {
		return "", fmt.Errorf("%s connect: string type assertion failed for %s", client, key)
	}

	return value, nil
}

// getBool reads an optional boolean argument that may be written as a
// string or a YAML boolean.
func getBool(args map[string]interface{}, key string, fallback bool) bool {
	switch value := GetEntry(args, key).(type) {
	case bool:
		return value
	case string:
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return fallback
		}

		return parsed
	default:
		return fallback
	}
}
