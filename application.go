package sandwich

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/WelcomerTeam/Sandwich-QQ/qq"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
	"golang.org/x/time/rate"
)

const (
	DefaultStopTimeout        = 10 * time.Second
	DefaultSessionStartWindow = 5 * time.Second
)

// RESTClient is the part of the platform API the application uses.
type RESTClient interface {
	GatewayBot(ctx context.Context) (*qq.GatewayBot, error)
	Me(ctx context.Context) (*qq.User, error)
}

type ApplicationOptions struct {
	Identifier string
	AppID      string

	REST        RESTClient
	Credentials CredentialProvider
	Transport   Transport
	Sink        EventSink

	Intents    int32
	Properties qq.IdentifyProperties

	// Shard pins the application to a single shard instead of the
	// recommended shard count.
	Shard *ShardDescriptor

	ReconnectInterval time.Duration
	ConnectTimeout    time.Duration
	StopTimeout       time.Duration

	// SessionStartWindow is the time the platform allows between
	// identifies for each concurrency slot.
	SessionStartWindow time.Duration
}

// Application runs every shard of one bot.
type Application struct {
	Logger zerolog.Logger

	Identifier string

	AuditResults *AuditResultStore

	ShardCount *atomic.Int32
	Status     *atomic.Int32
	StartedAt  *atomic.Time

	options ApplicationOptions
	sink    EventSink

	gatewayMu sync.RWMutex
	gateway   *qq.GatewayBot

	userMu sync.RWMutex
	user   *qq.User

	shardsMu sync.RWMutex
	shards   map[int32]*Shard

	lifecycleMu sync.Mutex
	cancel      context.CancelFunc
	wg          sync.WaitGroup

	webhookMu         sync.Mutex
	webhookDispatcher *eventDispatcher
}

func NewApplication(logger zerolog.Logger, options ApplicationOptions) *Application {
	if options.StopTimeout <= 0 {
		options.StopTimeout = DefaultStopTimeout
	}

	if options.SessionStartWindow <= 0 {
		options.SessionStartWindow = DefaultSessionStartWindow
	}

	if options.Intents == 0 {
		options.Intents = int32(qq.DefaultIntents)
	}

	if options.Properties == (qq.IdentifyProperties{}) {
		options.Properties = DefaultIdentifyProperties()
	}

	if options.Transport == nil {
		options.Transport = &WebsocketTransport{}
	}

	auditResults := NewAuditResultStore()

	sinks := MultiSink{auditResults}
	if options.Sink != nil {
		sinks = append(sinks, options.Sink)
	}

	application := &Application{
		Logger: logger.With().Str("application", options.Identifier).Logger(),

		Identifier: options.Identifier,

		AuditResults: auditResults,

		ShardCount: atomic.NewInt32(0),
		Status:     atomic.NewInt32(int32(ApplicationStatusIdle)),
		StartedAt:  &atomic.Time{},

		options: options,
		sink:    sinks,

		shards: make(map[int32]*Shard),
	}

	UpdateApplicationStatus(application.Identifier, ApplicationStatusIdle)

	return application
}

func (application *Application) SetStatus(status ApplicationStatus) {
	application.Status.Store(int32(status))
	UpdateApplicationStatus(application.Identifier, status)

	application.Logger.Info().Stringer("status", status).Msg("Application status updated")
}

func (application *Application) GetStatus() ApplicationStatus {
	return ApplicationStatus(application.Status.Load())
}

// Gateway returns the result of the last bootstrap, or nil.
func (application *Application) Gateway() *qq.GatewayBot {
	application.gatewayMu.RLock()
	defer application.gatewayMu.RUnlock()

	return application.gateway
}

// Shards returns the running shards ordered by shard id.
func (application *Application) Shards() []*Shard {
	application.shardsMu.RLock()
	defer application.shardsMu.RUnlock()

	shards := make([]*Shard, 0, len(application.shards))

	for shardID := int32(0); shardID < application.ShardCount.Load(); shardID++ {
		if shard, ok := application.shards[shardID]; ok {
			shards = append(shards, shard)
		}
	}

	return shards
}

// Start bootstraps against the gateway and launches the shards. Shards are
// launched in the background, spaced by the session start window divided by
// the allowed concurrency. Bootstrap failures are returned and not retried.
func (application *Application) Start(ctx context.Context) error {
	application.lifecycleMu.Lock()
	defer application.lifecycleMu.Unlock()

	if application.cancel != nil {
		return ErrApplicationAlreadyStarted
	}

	application.SetStatus(ApplicationStatusStarting)

	gateway, err := application.options.REST.GatewayBot(ctx)
	if err != nil {
		application.SetStatus(ApplicationStatusFailed)

		return fmt.Errorf("%w: %w", ErrBootstrapFailed, err)
	}

	application.gatewayMu.Lock()
	application.gateway = gateway
	application.gatewayMu.Unlock()

	limit := gateway.SessionStartLimit

	application.Logger.Info().
		Str("url", gateway.URL).
		Int32("shards", gateway.Shards).
		Int32("remaining", limit.Remaining).
		Int32("maxConcurrency", limit.MaxConcurrency).
		Msg("Retrieved gateway")

	if limit.Remaining <= 0 {
		application.SetStatus(ApplicationStatusFailed)

		resetAfter := time.Duration(limit.ResetAfter) * time.Millisecond

		return fmt.Errorf("%w: resets after %s", ErrSessionLimitExhausted, resetAfter)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	application.cancel = cancel

	application.shardsMu.Lock()
	application.shards = make(map[int32]*Shard)
	application.shardsMu.Unlock()

	application.StartedAt.Store(time.Now().UTC())
	application.SetStatus(ApplicationStatusConnecting)

	if fixed := application.options.Shard; fixed != nil {
		application.ShardCount.Store(fixed.Total)
		application.launchShard(runCtx, gateway.URL, *fixed)
	} else {
		shardCount := gateway.Shards
		if shardCount < 1 {
			shardCount = 1
		}

		application.ShardCount.Store(shardCount)

		interval := application.launchInterval(limit.MaxConcurrency)

		application.wg.Add(1)

		go func() {
			defer application.wg.Done()

			application.launchShards(runCtx, gateway.URL, shardCount, interval)
		}()
	}

	application.SetStatus(ApplicationStatusRunning)

	return nil
}

func (application *Application) launchInterval(maxConcurrency int32) time.Duration {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}

	return application.options.SessionStartWindow / time.Duration(maxConcurrency)
}

func (application *Application) launchShards(ctx context.Context, gatewayURL string, shardCount int32, interval time.Duration) {
	limiter := rate.NewLimiter(rate.Every(interval), 1)

	for shardID := int32(0); shardID < shardCount; shardID++ {
		if err := limiter.Wait(ctx); err != nil {
			application.Logger.Debug().Err(err).Int32("launched", shardID).Msg("Stopped launching shards")

			return
		}

		application.launchShard(ctx, gatewayURL, ShardDescriptor{Index: shardID, Total: shardCount})
	}
}

func (application *Application) launchShard(ctx context.Context, gatewayURL string, descriptor ShardDescriptor) {
	shard := NewShard(application.Logger, descriptor, ShardOptions{
		Identifier:        application.Identifier,
		GatewayURL:        gatewayURL,
		Intents:           application.options.Intents,
		Properties:        application.options.Properties,
		Transport:         application.options.Transport,
		Credentials:       application.options.Credentials,
		Sink:              application.sink,
		ReconnectInterval: application.options.ReconnectInterval,
		ConnectTimeout:    application.options.ConnectTimeout,
	})

	application.shardsMu.Lock()
	application.shards[descriptor.Index] = shard
	application.shardsMu.Unlock()

	application.Logger.Debug().Int32("shardId", descriptor.Index).Msg("Launching shard")

	application.wg.Add(1)

	go func() {
		defer application.wg.Done()

		shard.Run(ctx)
	}()
}

// Stop cancels every shard and waits for them to finish, giving up after
// the stop timeout or when ctx is done.
func (application *Application) Stop(ctx context.Context) {
	application.lifecycleMu.Lock()
	defer application.lifecycleMu.Unlock()

	defer application.closeWebhookDispatcher(ctx)

	if application.cancel == nil {
		return
	}

	application.SetStatus(ApplicationStatusStopping)

	application.cancel()
	application.cancel = nil

	done := make(chan struct{})

	go func() {
		application.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(application.options.StopTimeout)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
		application.Logger.Warn().Dur("timeout", application.options.StopTimeout).Msg("Timed out waiting for shards to stop")
	case <-ctx.Done():
		application.Logger.Warn().Err(ctx.Err()).Msg("Stopped waiting for shards to stop")
	}

	application.SetStatus(ApplicationStatusStopped)
}

// User returns the bot user, fetching it once if no shard has seen it yet.
func (application *Application) User(ctx context.Context) (*qq.User, error) {
	application.userMu.RLock()
	user := application.user
	application.userMu.RUnlock()

	if user != nil {
		return user, nil
	}

	for _, shard := range application.Shards() {
		if identity := shard.Session.SelfIdentity(); identity != nil {
			user = identity

			break
		}
	}

	if user == nil {
		fetched, err := application.options.REST.Me(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch bot user: %w", err)
		}

		user = fetched
	}

	application.userMu.Lock()
	application.user = user
	application.userMu.Unlock()

	return user, nil
}

// DispatchWebhook delivers a dispatch received over HTTP to the sink as if
// it came from shard 0.
func (application *Application) DispatchWebhook(ctx context.Context, dispatch *qq.Dispatch) error {
	event, err := qq.DecodeEvent(dispatch)
	if err != nil {
		RecordDroppedPayload(application.Identifier, "malformed")

		return err
	}

	if message, ok := event.(*qq.GuildMessageEvent); ok {
		if user, err := application.User(ctx); err == nil && message.MentionsUser(user.ID) {
			message.ToMe = true
		}
	}

	application.webhookMu.Lock()
	defer application.webhookMu.Unlock()

	if application.webhookDispatcher == nil {
		application.webhookDispatcher = newEventDispatcher(ctx, application.Logger, 0, application.sink)
		application.webhookDispatcher.Enqueue(dispatchItem{kind: dispatchShardConnected})
	}

	RecordEvent(application.Identifier, event.EventName())
	application.webhookDispatcher.Enqueue(dispatchItem{kind: dispatchEvent, event: event})

	return nil
}

// closeWebhookDispatcher reports the webhook shard as disconnected and waits
// for queued webhook events to be delivered. The next webhook dispatch starts
// a new dispatcher.
func (application *Application) closeWebhookDispatcher(ctx context.Context) {
	application.webhookMu.Lock()
	dispatcher := application.webhookDispatcher
	application.webhookDispatcher = nil
	application.webhookMu.Unlock()

	if dispatcher == nil {
		return
	}

	dispatcher.Enqueue(dispatchItem{kind: dispatchShardDisconnected})
	dispatcher.Close()

	timer := time.NewTimer(application.options.StopTimeout)
	defer timer.Stop()

	select {
	case <-dispatcher.Done():
	case <-timer.C:
		application.Logger.Warn().Msg("Timed out delivering webhook events")
	case <-ctx.Done():
	}
}

// ApplicationSnapshot is the state of an application reported by /status.
type ApplicationSnapshot struct {
	Identifier string          `json:"identifier"`
	AppID      string          `json:"app_id"`
	Status     string          `json:"status"`
	StartedAt  time.Time       `json:"started_at"`
	ShardCount int32           `json:"shard_count"`
	Shards     []ShardSnapshot `json:"shards"`
}

type ShardSnapshot struct {
	ShardID          int32     `json:"shard_id"`
	Status           string    `json:"status"`
	HasSession       bool      `json:"has_session"`
	LatencyMs        int64     `json:"latency_ms"`
	LastHeartbeatAck time.Time `json:"last_heartbeat_ack"`
}

func (application *Application) AppID() string {
	return application.options.AppID
}

func (application *Application) Snapshot() ApplicationSnapshot {
	snapshot := ApplicationSnapshot{
		Identifier: application.Identifier,
		AppID:      application.options.AppID,
		Status:     application.GetStatus().String(),
		StartedAt:  application.StartedAt.Load(),
		ShardCount: application.ShardCount.Load(),
	}

	for _, shard := range application.Shards() {
		_, hasSession := shard.Session.SessionID()

		snapshot.Shards = append(snapshot.Shards, ShardSnapshot{
			ShardID:          shard.ShardID,
			Status:           shard.GetStatus().String(),
			HasSession:       hasSession,
			LatencyMs:        shard.Latency.Load().Milliseconds(),
			LastHeartbeatAck: shard.LastHeartbeatAck.Load(),
		})
	}

	return snapshot
}
