package sandwich

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/WelcomerTeam/Sandwich-QQ/qq"
	"github.com/rs/zerolog"
	gotils_strconv "github.com/savsgio/gotils/strconv"
	"go.uber.org/atomic"
	"nhooyr.io/websocket"
)

const (
	DefaultReconnectInterval = 3 * time.Second
	DefaultConnectTimeout    = 30 * time.Second
)

// ShardOptions holds everything a shard needs to connect.
type ShardOptions struct {
	Identifier string
	GatewayURL string

	Intents    int32
	Properties qq.IdentifyProperties

	Transport   Transport
	Credentials CredentialProvider
	Sink        EventSink

	ReconnectInterval time.Duration
	ConnectTimeout    time.Duration
}

// DefaultIdentifyProperties describes this client.
func DefaultIdentifyProperties() qq.IdentifyProperties {
	return qq.IdentifyProperties{
		OS:       runtime.GOOS,
		Language: "go " + runtime.Version(),
		SDK:      "Sandwich-QQ " + Version,
	}
}

// Shard represents a single gateway connection.
type Shard struct {
	Logger zerolog.Logger `json:"-"`

	Identifier string `json:"-"`
	ShardID    int32  `json:"shard_id"`
	ShardCount int32  `json:"shard_count"`

	Session *SessionState `json:"-"`

	Start *atomic.Time `json:"start"`
	Init  *atomic.Time `json:"init"`

	HeartbeatActive   *atomic.Bool     `json:"-"`
	HeartbeatInterval *atomic.Duration `json:"-"`
	LastHeartbeatAck  *atomic.Time     `json:"-"`
	LastHeartbeatSent *atomic.Time     `json:"-"`
	Latency           *atomic.Duration `json:"-"`

	statusMu sync.RWMutex
	status   ShardStatus

	socketMu sync.RWMutex
	socket   Socket

	// writeMu serialises writes between the receive loop and the heartbeat.
	writeMu sync.Mutex

	options ShardOptions

	dispatcher *eventDispatcher
}

// NewShard creates a new shard object.
func NewShard(logger zerolog.Logger, descriptor ShardDescriptor, options ShardOptions) *Shard {
	if options.ReconnectInterval <= 0 {
		options.ReconnectInterval = DefaultReconnectInterval
	}

	if options.ConnectTimeout <= 0 {
		options.ConnectTimeout = DefaultConnectTimeout
	}

	if options.Sink == nil {
		options.Sink = HandlerSink{}
	}

	return &Shard{
		Logger: logger.With().
			Int32("shardId", descriptor.Index).
			Int32("shardCount", descriptor.Total).
			Logger(),

		Identifier: options.Identifier,
		ShardID:    descriptor.Index,
		ShardCount: descriptor.Total,

		Session: NewSessionState(descriptor),

		Start: &atomic.Time{},
		Init:  atomic.NewTime(time.Now().UTC()),

		HeartbeatActive:   atomic.NewBool(false),
		HeartbeatInterval: atomic.NewDuration(0),
		LastHeartbeatAck:  &atomic.Time{},
		LastHeartbeatSent: &atomic.Time{},
		Latency:           atomic.NewDuration(0),

		status: ShardStatusIdle,

		options: options,
	}
}

// Run connects to the gateway and reconnects after every failure until ctx
// is cancelled. It returns once the socket is closed and the heartbeat has
// stopped.
func (sh *Shard) Run(ctx context.Context) {
	sh.Logger.Debug().Msg("Started shard")

	sh.dispatcher = newEventDispatcher(ctx, sh.Logger, sh.ShardID, sh.options.Sink)

	defer func() {
		sh.dispatcher.Close()
		sh.SetStatus(ShardStatusStopped)
	}()

	for {
		err := sh.connect(ctx)

		if ctx.Err() != nil {
			sh.Logger.Debug().Msg("Shard context canceled")

			return
		}

		sh.SetStatus(ShardStatusReconnecting)
		RecordReconnect(sh.Identifier, sh.ShardID)

		sh.Logger.Warn().Err(err).
			Dur("backoff", sh.options.ReconnectInterval).
			Msg("Shard disconnected, reconnecting")

		timer := time.NewTimer(sh.options.ReconnectInterval)

		select {
		case <-ctx.Done():
			timer.Stop()

			return
		case <-timer.C:
		}
	}
}

// connect makes a single connection attempt and returns when it ends.
func (sh *Shard) connect(ctx context.Context) error {
	sh.SetStatus(ShardStatusConnecting)

	dialCtx, cancel := context.WithTimeout(ctx, sh.options.ConnectTimeout)
	socket, err := sh.options.Transport.Open(dialCtx, sh.options.GatewayURL)
	cancel()

	if err != nil {
		return fmt.Errorf("failed to open gateway connection: %w", err)
	}

	sh.setSocket(socket)

	defer func() {
		code := WebsocketReconnectCloseCode
		if ctx.Err() != nil {
			code = int(websocket.StatusNormalClosure)
		}

		sh.SetStatus(ShardStatusClosing)
		sh.closeSocket(code)
	}()

	connCtx, connCancel := context.WithCancel(ctx)
	defer connCancel()

	sh.SetStatus(ShardStatusAwaitingHello)

	interval, err := sh.readHello(connCtx)
	if err != nil {
		return err
	}

	sh.SetStatus(ShardStatusAuthenticating)

	ready, err := sh.authenticate(connCtx)
	if err != nil {
		return err
	}

	var heartbeatWg sync.WaitGroup

	heartbeatWg.Add(1)

	go func() {
		defer heartbeatWg.Done()

		sh.heartbeat(connCtx, interval)
	}()

	defer func() {
		connCancel()
		heartbeatWg.Wait()
	}()

	now := time.Now().UTC()
	sh.Start.Store(now)
	sh.LastHeartbeatAck.Store(now)

	sh.dispatcher.Enqueue(dispatchItem{kind: dispatchShardConnected})
	defer sh.dispatcher.Enqueue(dispatchItem{kind: dispatchShardDisconnected})

	if ready != nil {
		sh.dispatch(ready)
	}

	sh.SetStatus(ShardStatusConnected)

	return sh.listen(connCtx)
}

func (sh *Shard) readHello(ctx context.Context) (time.Duration, error) {
	payload, err := sh.receive(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read hello: %w", err)
	}

	hello, ok := payload.(*qq.Hello)
	if !ok {
		return 0, fmt.Errorf("%w: received %s", ErrShardHelloExpected, payload.Op())
	}

	if hello.HeartbeatInterval <= 0 {
		return 0, ErrShardInvalidHeartbeatInterval
	}

	interval := time.Duration(hello.HeartbeatInterval) * time.Millisecond
	sh.HeartbeatInterval.Store(interval)

	sh.Logger.Debug().Dur("interval", interval).Msg("Received HELLO event")

	return interval, nil
}

// authenticate resumes the session if there is one, otherwise it identifies
// and returns the Ready event.
func (sh *Shard) authenticate(ctx context.Context) (*qq.ReadyEvent, error) {
	token, err := sh.options.Credentials.AuthorizationHeader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get authorization: %w", err)
	}

	if sessionID, ok := sh.Session.SessionID(); ok {
		sequence, _ := sh.Session.LastSequence()

		sh.Logger.Debug().
			Str("sessionId", sessionID).
			Int64("sequence", sequence).
			Msg("Sending resume")

		return nil, sh.SendEvent(ctx, &qq.Resume{
			Token:     token,
			SessionID: sessionID,
			Sequence:  sequence,
		})
	}

	return sh.identify(ctx, token)
}

func (sh *Shard) identify(ctx context.Context, token string) (*qq.ReadyEvent, error) {
	sh.Logger.Debug().Msg("Sending identify")

	err := sh.SendEvent(ctx, &qq.Identify{
		Token:      token,
		Intents:    sh.options.Intents,
		Shard:      [2]int32{sh.ShardID, sh.ShardCount},
		Properties: sh.options.Properties,
	})
	if err != nil {
		return nil, err
	}

	payload, err := sh.receive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read ready: %w", err)
	}

	switch p := payload.(type) {
	case *qq.InvalidSession:
		sh.Session.Reset()

		return nil, ErrShardInvalidSession
	case *qq.Dispatch:
		event, err := qq.DecodeEvent(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrShardReadyExpected, err)
		}

		ready, ok := event.(*qq.ReadyEvent)
		if !ok {
			return nil, fmt.Errorf("%w: received %s", ErrShardReadyExpected, p.Type)
		}

		sh.Session.OnReady(ready.SessionID, p.Sequence, ready.User)

		sh.Logger.Info().
			Str("sessionId", ready.SessionID).
			Str("user", ready.User.Username).
			Msg("Shard is ready")

		return ready, nil
	default:
		return nil, fmt.Errorf("%w: received %s", ErrShardReadyExpected, payload.Op())
	}
}

// heartbeat sends the last sequence every interval. Failed sends are logged
// and do not end the connection.
func (sh *Shard) heartbeat(ctx context.Context, interval time.Duration) {
	sh.HeartbeatActive.Store(true)
	defer sh.HeartbeatActive.Store(false)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := sh.sendHeartbeat(ctx)
			if err != nil && ctx.Err() == nil {
				sh.Logger.Warn().Err(err).Msg("Failed to send heartbeat")
			}
		}
	}
}

func (sh *Shard) sendHeartbeat(ctx context.Context) error {
	heartbeat := &qq.Heartbeat{}

	if sequence, ok := sh.Session.LastSequence(); ok {
		heartbeat.Sequence = &sequence
	}

	sh.LastHeartbeatSent.Store(time.Now().UTC())

	return sh.SendEvent(ctx, heartbeat)
}

// listen handles payloads until a handler or the socket ends the connection.
func (sh *Shard) listen(ctx context.Context) error {
	for {
		payload, err := sh.receive(ctx)
		if err != nil {
			var decodeErr *qq.DecodeError

			if errors.As(err, &decodeErr) {
				sh.Logger.Warn().Err(err).Msg("Failed to decode payload")
				RecordDroppedPayload(sh.Identifier, "decode")

				continue
			}

			return err
		}

		handler, ok := gatewayHandlers[payload.Op()]
		if !ok {
			sh.Logger.Warn().Stringer("op", payload.Op()).Msg("Received unhandled gateway payload")
			RecordDroppedPayload(sh.Identifier, "unhandled")

			continue
		}

		err = handler(ctx, sh, payload)
		if err != nil {
			return err
		}
	}
}

func (sh *Shard) receive(ctx context.Context) (qq.Payload, error) {
	socket := sh.getSocket()
	if socket == nil {
		return nil, ErrSocketClosed
	}

	data, err := socket.Receive(ctx)
	if err != nil {
		return nil, err
	}

	sh.Logger.Trace().Str("payload", gotils_strconv.B2S(data)).Msg("Received payload")

	return qq.DecodePayload(data)
}

// dispatch queues an event for the sink without waiting for it.
func (sh *Shard) dispatch(event qq.Event) {
	RecordEvent(sh.Identifier, event.EventName())

	if !sh.dispatcher.Enqueue(dispatchItem{kind: dispatchEvent, event: event}) {
		RecordDroppedPayload(sh.Identifier, "closed")
	}
}

// SendEvent encodes and writes a payload to the gateway.
func (sh *Shard) SendEvent(ctx context.Context, payload qq.Payload) error {
	data, err := qq.EncodePayload(payload)
	if err != nil {
		return err
	}

	socket := sh.getSocket()
	if socket == nil {
		return ErrSocketClosed
	}

	sh.writeMu.Lock()
	defer sh.writeMu.Unlock()

	sh.Logger.Trace().Stringer("op", payload.Op()).Msg("Sending payload")

	err = socket.Send(ctx, data)
	if err != nil {
		return fmt.Errorf("failed to send %s: %w", payload.Op(), err)
	}

	return nil
}

func (sh *Shard) getSocket() Socket {
	sh.socketMu.RLock()
	defer sh.socketMu.RUnlock()

	return sh.socket
}

func (sh *Shard) setSocket(socket Socket) {
	sh.socketMu.Lock()
	sh.socket = socket
	sh.socketMu.Unlock()
}

func (sh *Shard) closeSocket(code int) {
	sh.socketMu.Lock()
	socket := sh.socket
	sh.socket = nil
	sh.socketMu.Unlock()

	if socket == nil {
		return
	}

	if err := socket.Close(code); err != nil {
		sh.Logger.Debug().Err(err).Msg("Failed to close websocket connection")
	}
}

func (sh *Shard) SetStatus(status ShardStatus) {
	sh.statusMu.Lock()
	sh.status = status
	sh.statusMu.Unlock()

	UpdateShardStatus(sh.Identifier, sh.ShardID, status)

	sh.Logger.Debug().Stringer("status", status).Msg("Shard status updated")
}

func (sh *Shard) GetStatus() ShardStatus {
	sh.statusMu.RLock()
	defer sh.statusMu.RUnlock()

	return sh.status
}
