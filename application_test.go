package sandwich

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/WelcomerTeam/Sandwich-QQ/qq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeREST struct {
	gateway *qq.GatewayBot
	err     error

	me      *qq.User
	meCalls int
	mu      sync.Mutex
}

func (r *fakeREST) GatewayBot(context.Context) (*qq.GatewayBot, error) {
	if r.err != nil {
		return nil, r.err
	}

	return r.gateway, nil
}

func (r *fakeREST) Me(context.Context) (*qq.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.meCalls++

	if r.me == nil {
		return nil, ErrUnauthorized
	}

	return r.me, nil
}

func newTestApplication(rest RESTClient, transport Transport, sink EventSink, fixed *ShardDescriptor, window time.Duration) *Application {
	return NewApplication(zerolog.Nop(), ApplicationOptions{
		Identifier:         "test",
		AppID:              "app",
		REST:               rest,
		Credentials:        StaticCredentials{AppID: "app", Token: "token"},
		Transport:          transport,
		Sink:               sink,
		Intents:            int32(qq.DefaultIntents),
		Shard:              fixed,
		ReconnectInterval:  10 * time.Millisecond,
		ConnectTimeout:     time.Second,
		StopTimeout:        time.Second,
		SessionStartWindow: window,
	})
}

func gatewayBot(shards, remaining, maxConcurrency int32) *qq.GatewayBot {
	return &qq.GatewayBot{
		URL:    "wss://api.sgroup.qq.com/websocket",
		Shards: shards,
		SessionStartLimit: qq.SessionStartLimit{
			Total:          1000,
			Remaining:      remaining,
			ResetAfter:     86400000,
			MaxConcurrency: maxConcurrency,
		},
	}
}

func TestApplicationStaggersLaunches(t *testing.T) {
	const window = 80 * time.Millisecond

	var (
		launchesMu sync.Mutex
		launches   []time.Time
	)

	transport := newFakeTransport()
	transport.configure = func(*fakeSocket) {
		launchesMu.Lock()
		launches = append(launches, time.Now())
		launchesMu.Unlock()
	}

	application := newTestApplication(&fakeREST{gateway: gatewayBot(3, 10, 1)}, transport, nil, nil, window)

	require.NoError(t, application.Start(context.Background()))
	defer application.Stop(context.Background())

	for i := 0; i < 3; i++ {
		transport.nextSocket(t)
	}

	launchesMu.Lock()
	defer launchesMu.Unlock()

	require.Len(t, launches, 3)

	// rate.Limiter spaces tokens by exactly one interval, allow for clock
	// granularity.
	for i := 1; i < len(launches); i++ {
		assert.GreaterOrEqual(t, launches[i].Sub(launches[i-1]), window-10*time.Millisecond)
	}

	assert.Equal(t, int32(3), application.ShardCount.Load())
	assert.Len(t, application.Shards(), 3)
	assert.Equal(t, "wss://api.sgroup.qq.com/websocket", <-transport.urls)
}

func TestApplicationLaunchInterval(t *testing.T) {
	application := newTestApplication(&fakeREST{}, newFakeTransport(), nil, nil, time.Second)

	assert.Equal(t, time.Second, application.launchInterval(0))
	assert.Equal(t, time.Second, application.launchInterval(1))
	assert.Equal(t, 250*time.Millisecond, application.launchInterval(4))
}

func TestApplicationFixedShard(t *testing.T) {
	transport := newFakeTransport()
	application := newTestApplication(&fakeREST{gateway: gatewayBot(8, 10, 1)}, transport, nil, &ShardDescriptor{Index: 2, Total: 4}, time.Second)

	require.NoError(t, application.Start(context.Background()))
	defer application.Stop(context.Background())

	socket := transport.nextSocket(t)
	socket.push(helloPayload)

	identify, ok := socket.expectSent(t, qq.GatewayOpIdentify).(*qq.Identify)
	require.True(t, ok)
	assert.Equal(t, [2]int32{2, 4}, identify.Shard)

	transport.assertNoSocket(t, 50*time.Millisecond)
	assert.Equal(t, int32(4), application.ShardCount.Load())
}

func TestApplicationZeroRecommendedShards(t *testing.T) {
	transport := newFakeTransport()
	application := newTestApplication(&fakeREST{gateway: gatewayBot(0, 10, 1)}, transport, nil, nil, time.Millisecond)

	require.NoError(t, application.Start(context.Background()))
	defer application.Stop(context.Background())

	transport.nextSocket(t)
	assert.Equal(t, int32(1), application.ShardCount.Load())
}

func TestApplicationBootstrapFailure(t *testing.T) {
	transport := newFakeTransport()
	application := newTestApplication(&fakeREST{err: ErrUnauthorized}, transport, nil, nil, time.Millisecond)

	err := application.Start(context.Background())
	assert.True(t, errors.Is(err, ErrBootstrapFailed))
	assert.True(t, errors.Is(err, ErrUnauthorized))
	assert.Equal(t, ApplicationStatusFailed, application.GetStatus())

	transport.assertNoSocket(t, 20*time.Millisecond)
}

func TestApplicationSessionLimitExhausted(t *testing.T) {
	transport := newFakeTransport()
	application := newTestApplication(&fakeREST{gateway: gatewayBot(1, 0, 1)}, transport, nil, nil, time.Millisecond)

	err := application.Start(context.Background())
	assert.True(t, errors.Is(err, ErrSessionLimitExhausted))
	assert.Equal(t, ApplicationStatusFailed, application.GetStatus())
	assert.NotNil(t, application.Gateway())

	transport.assertNoSocket(t, 20*time.Millisecond)
}

func TestApplicationStartTwice(t *testing.T) {
	application := newTestApplication(&fakeREST{gateway: gatewayBot(1, 10, 1)}, newFakeTransport(), nil, nil, time.Millisecond)

	require.NoError(t, application.Start(context.Background()))
	defer application.Stop(context.Background())

	assert.True(t, errors.Is(application.Start(context.Background()), ErrApplicationAlreadyStarted))
}

func TestApplicationStopClosesShards(t *testing.T) {
	transport := newFakeTransport()
	sink := newRecordingSink()
	application := newTestApplication(&fakeREST{gateway: gatewayBot(2, 10, 2)}, transport, sink, nil, 10*time.Millisecond)

	require.NoError(t, application.Start(context.Background()))

	sockets := []*fakeSocket{transport.nextSocket(t), transport.nextSocket(t)}

	for _, socket := range sockets {
		socket.push(helloPayload)
		socket.expectSent(t, qq.GatewayOpIdentify)
		socket.push(readyPayload)
	}

	waitSignal(t, sink.connected, "connected")
	waitSignal(t, sink.connected, "connected")

	application.Stop(context.Background())

	for _, socket := range sockets {
		assert.Equal(t, 1000, socket.waitClosed(t))
	}

	assert.Equal(t, ApplicationStatusStopped, application.GetStatus())

	for _, shard := range application.Shards() {
		assert.Equal(t, ShardStatusStopped, shard.GetStatus())
	}

	// Stop is safe to call again and the application can be restarted.
	application.Stop(context.Background())
	require.NoError(t, application.Start(context.Background()))
	application.Stop(context.Background())
}

func TestApplicationResolvesAudits(t *testing.T) {
	transport := newFakeTransport()
	application := newTestApplication(&fakeREST{gateway: gatewayBot(1, 10, 1)}, transport, nil, nil, time.Millisecond)

	require.NoError(t, application.Start(context.Background()))
	defer application.Stop(context.Background())

	socket := transport.nextSocket(t)
	socket.push(helloPayload)
	socket.expectSent(t, qq.GatewayOpIdentify)
	socket.push(readyPayload)
	socket.push(`{"op":0,"s":2,"t":"MESSAGE_AUDIT_PASS","d":{"audit_id":"audit-1","message_id":"m1","guild_id":"g1","channel_id":"c1"}}`)

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	audit, err := application.AuditResults.Fetch(ctx, "audit-1")
	require.NoError(t, err)
	assert.True(t, audit.Passed())
	assert.Equal(t, "m1", audit.MessageID)
}

func TestApplicationDispatchWebhook(t *testing.T) {
	rest := &fakeREST{me: &qq.User{ID: "bot", Username: "sandwich"}}
	sink := newRecordingSink()
	application := newTestApplication(rest, newFakeTransport(), sink, nil, time.Millisecond)

	err := application.DispatchWebhook(context.Background(), &qq.Dispatch{
		Sequence: 1,
		Type:     "MESSAGE_CREATE",
		Data:     []byte(`{"id":"m1","mentions":[{"id":"bot"}]}`),
	})
	require.NoError(t, err)

	assert.Equal(t, int32(0), waitSignal(t, sink.connected, "connected"))

	message, ok := sink.nextEvent(t).(*qq.GuildMessageEvent)
	require.True(t, ok)
	assert.True(t, message.ToMe)

	err = application.DispatchWebhook(context.Background(), &qq.Dispatch{
		Sequence: 2,
		Type:     "GUILD_CREATE",
		Data:     []byte(`"broken"`),
	})
	assert.Error(t, err)

	user, err := application.User(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "bot", user.ID)

	rest.mu.Lock()
	assert.Equal(t, 1, rest.meCalls)
	rest.mu.Unlock()
}

func TestApplicationStopDisconnectsWebhookShard(t *testing.T) {
	rest := &fakeREST{gateway: gatewayBot(1, 10, 1), me: &qq.User{ID: "bot"}}
	transport := newFakeTransport()
	sink := newRecordingSink()
	application := newTestApplication(rest, transport, sink, nil, time.Millisecond)

	require.NoError(t, application.Start(context.Background()))
	transport.nextSocket(t)

	require.NoError(t, application.DispatchWebhook(context.Background(), &qq.Dispatch{
		Sequence: 1,
		Type:     "GUILD_CREATE",
		Data:     []byte(`{"id":"g1"}`),
	}))

	assert.Equal(t, int32(0), waitSignal(t, sink.connected, "connected"))
	assert.Equal(t, "GUILD_CREATE", sink.nextEvent(t).EventName())

	application.Stop(context.Background())

	assert.Equal(t, int32(0), waitSignal(t, sink.disconnected, "disconnected"))
	assert.Empty(t, sink.connected)
	assert.Empty(t, sink.disconnected)

	// A later webhook dispatch reports the webhook shard as connected again.
	require.NoError(t, application.DispatchWebhook(context.Background(), &qq.Dispatch{
		Sequence: 2,
		Type:     "GUILD_UPDATE",
		Data:     []byte(`{"id":"g1"}`),
	}))

	assert.Equal(t, int32(0), waitSignal(t, sink.connected, "connected"))
	assert.Equal(t, "GUILD_UPDATE", sink.nextEvent(t).EventName())

	application.Stop(context.Background())
	assert.Equal(t, int32(0), waitSignal(t, sink.disconnected, "disconnected"))
}

func TestApplicationDefaultsIntents(t *testing.T) {
	transport := newFakeTransport()

	application := NewApplication(zerolog.Nop(), ApplicationOptions{
		Identifier:        "test",
		AppID:             "app",
		REST:              &fakeREST{gateway: gatewayBot(1, 10, 1)},
		Credentials:       StaticCredentials{AppID: "app", Token: "token"},
		Transport:         transport,
		ReconnectInterval: 10 * time.Millisecond,
		ConnectTimeout:    time.Second,
		StopTimeout:       time.Second,
	})

	require.NoError(t, application.Start(context.Background()))
	defer application.Stop(context.Background())

	socket := transport.nextSocket(t)
	socket.push(helloPayload)

	identify, ok := socket.expectSent(t, qq.GatewayOpIdentify).(*qq.Identify)
	require.True(t, ok)
	assert.Equal(t, int32(qq.DefaultIntents), identify.Intents)
}
