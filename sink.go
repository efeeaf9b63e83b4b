package sandwich

import (
	"context"
	"time"

	"github.com/WelcomerTeam/Sandwich-QQ/messaging"
	"github.com/WelcomerTeam/Sandwich-QQ/qq"
	"github.com/WelcomerTeam/Sandwich-QQ/sandwichjson"
	"github.com/rs/zerolog"
)

// EventSink receives decoded events and shard lifecycle notifications. Calls
// for one shard are made from a single goroutine in receive order.
type EventSink interface {
	OnEvent(ctx context.Context, shardID int32, event qq.Event)
	OnShardConnected(shardID int32)
	OnShardDisconnected(shardID int32)
}

// HandlerSink calls the functions that are set.
type HandlerSink struct {
	Event             func(ctx context.Context, shardID int32, event qq.Event)
	ShardConnected    func(shardID int32)
	ShardDisconnected func(shardID int32)
}

func (h HandlerSink) OnEvent(ctx context.Context, shardID int32, event qq.Event) {
	if h.Event != nil {
		h.Event(ctx, shardID, event)
	}
}

func (h HandlerSink) OnShardConnected(shardID int32) {
	if h.ShardConnected != nil {
		h.ShardConnected(shardID)
	}
}

func (h HandlerSink) OnShardDisconnected(shardID int32) {
	if h.ShardDisconnected != nil {
		h.ShardDisconnected(shardID)
	}
}

// MultiSink forwards to every sink in order.
type MultiSink []EventSink

func (m MultiSink) OnEvent(ctx context.Context, shardID int32, event qq.Event) {
	for _, sink := range m {
		sink.OnEvent(ctx, shardID, event)
	}
}

func (m MultiSink) OnShardConnected(shardID int32) {
	for _, sink := range m {
		sink.OnShardConnected(shardID)
	}
}

func (m MultiSink) OnShardDisconnected(shardID int32) {
	for _, sink := range m {
		sink.OnShardDisconnected(shardID)
	}
}

// LogSink logs every event it receives.
type LogSink struct {
	Logger zerolog.Logger
}

func (l LogSink) OnEvent(_ context.Context, shardID int32, event qq.Event) {
	l.Logger.Debug().
		Int32("shardId", shardID).
		Str("type", event.EventName()).
		Str("eventId", event.EventIdentifier()).
		Bool("toMe", event.IsToMe()).
		Msg("Received event")
}

func (l LogSink) OnShardConnected(shardID int32) {
	l.Logger.Info().Int32("shardId", shardID).Msg("Shard connected")
}

func (l LogSink) OnShardDisconnected(shardID int32) {
	l.Logger.Info().Int32("shardId", shardID).Msg("Shard disconnected")
}

type ProducedPayload struct {
	Op       qq.GatewayOp     `json:"op"`
	Type     string           `json:"t"`
	EventID  string           `json:"id,omitempty"`
	Data     qq.Event         `json:"d"`
	Metadata ProducedMetadata `json:"__metadata"`
	Trace    map[string]int64 `json:"__trace"`
}

type ProducedMetadata struct {
	Identifier  string `json:"i"`
	Application string `json:"a"`
	Shard       int32  `json:"s"`
	ToMe        bool   `json:"to_me"`
}

// ProducerSink publishes events to a message queue. Events in the blacklist
// are not published.
type ProducerSink struct {
	Logger zerolog.Logger

	Identifier    string
	ApplicationID string

	Client  messaging.MQClient
	Channel string

	blacklist map[string]bool
}

func NewProducerSink(logger zerolog.Logger, identifier, applicationID string, client messaging.MQClient, channel string, blacklist []string) *ProducerSink {
	sink := &ProducerSink{
		Logger:        logger,
		Identifier:    identifier,
		ApplicationID: applicationID,
		Client:        client,
		Channel:       channel,
		blacklist:     make(map[string]bool, len(blacklist)),
	}

	for _, eventType := range blacklist {
		sink.blacklist[eventType] = true
	}

	return sink
}

func (p *ProducerSink) OnEvent(ctx context.Context, shardID int32, event qq.Event) {
	if p.blacklist[event.EventName()] {
		return
	}

	data, err := sandwichjson.Marshal(ProducedPayload{
		Op:      qq.GatewayOpDispatch,
		Type:    event.EventName(),
		EventID: event.EventIdentifier(),
		Data:    event,
		Metadata: ProducedMetadata{
			Identifier:  p.Identifier,
			Application: p.ApplicationID,
			Shard:       shardID,
			ToMe:        event.IsToMe(),
		},
		Trace: map[string]int64{
			"publish": time.Now().UnixNano(),
		},
	})
	if err != nil {
		p.Logger.Error().Err(err).Str("type", event.EventName()).Msg("Failed to marshal produced payload")

		return
	}

	err = p.Client.Publish(ctx, p.Channel, data)
	if err != nil {
		p.Logger.Error().Err(err).Str("type", event.EventName()).Msg("Failed to publish event")
	}
}

func (p *ProducerSink) OnShardConnected(int32) {}

func (p *ProducerSink) OnShardDisconnected(int32) {}
