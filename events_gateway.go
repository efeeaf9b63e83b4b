package sandwich

import (
	"context"
	"time"

	"github.com/WelcomerTeam/Sandwich-QQ/qq"
)

type gatewayHandler func(ctx context.Context, sh *Shard, payload qq.Payload) error

// gatewayHandlers handle payloads received once the shard is connected. A
// handler returning an error ends the connection.
var gatewayHandlers = map[qq.GatewayOp]gatewayHandler{
	qq.GatewayOpDispatch:       gatewayOpDispatch,
	qq.GatewayOpHeartbeat:      gatewayOpHeartbeat,
	qq.GatewayOpReconnect:      gatewayOpReconnect,
	qq.GatewayOpInvalidSession: gatewayOpInvalidSession,
	qq.GatewayOpHello:          gatewayOpHello,
	qq.GatewayOpHeartbeatAck:   gatewayOpHeartbeatAck,
}

func gatewayOpDispatch(_ context.Context, sh *Shard, payload qq.Payload) error {
	dispatch, _ := payload.(*qq.Dispatch)

	sh.Session.OnDispatchSeen(dispatch.Sequence)

	event, err := qq.DecodeEvent(dispatch)
	if err != nil {
		sh.Logger.Warn().Err(err).
			Str("type", dispatch.Type).
			Int64("sequence", dispatch.Sequence).
			Msg("Dropping malformed event")
		RecordDroppedPayload(sh.Identifier, "malformed")

		return nil
	}

	switch e := event.(type) {
	case *qq.UnknownEvent:
		sh.Logger.Warn().Str("type", dispatch.Type).Msg("Received unknown event type")
	case *qq.GuildMessageEvent:
		if self := sh.Session.SelfIdentity(); self != nil && e.MentionsUser(self.ID) {
			e.ToMe = true
		}
	}

	sh.dispatch(event)

	return nil
}

func gatewayOpHeartbeat(ctx context.Context, sh *Shard, _ qq.Payload) error {
	err := sh.sendHeartbeat(ctx)
	if err != nil {
		sh.Logger.Warn().Err(err).Msg("Failed to send requested heartbeat")
	}

	return nil
}

func gatewayOpReconnect(_ context.Context, sh *Shard, _ qq.Payload) error {
	sh.Logger.Info().Msg("Reconnecting in response to gateway")

	return ErrShardReconnectRequested
}

func gatewayOpInvalidSession(_ context.Context, sh *Shard, _ qq.Payload) error {
	sh.Logger.Warn().Msg("Received invalid session")

	sh.Session.Reset()

	return ErrShardInvalidSession
}

func gatewayOpHello(_ context.Context, sh *Shard, _ qq.Payload) error {
	sh.Logger.Debug().Msg("Ignoring HELLO received after handshake")

	return nil
}

func gatewayOpHeartbeatAck(_ context.Context, sh *Shard, _ qq.Payload) error {
	now := time.Now().UTC()
	sh.LastHeartbeatAck.Store(now)

	if sent := sh.LastHeartbeatSent.Load(); !sent.IsZero() {
		latency := now.Sub(sent)
		sh.Latency.Store(latency)

		UpdateGatewayLatency(sh.Identifier, sh.ShardID, latency.Seconds())
	}

	sh.Logger.Trace().Msg("Received heartbeat ACK")

	return nil
}
