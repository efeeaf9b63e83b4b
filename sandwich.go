package sandwich

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/WelcomerTeam/Sandwich-QQ/messaging"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

// Version follows semantic versioning.
const Version = "1.0.0"

const restTimeout = 20 * time.Second

// SandwichOptions are the parts of the daemon that are not read from the
// configuration file.
type SandwichOptions struct {
	// HTTPHost overrides the configured HTTP host when set.
	HTTPHost string

	Client    *http.Client
	Transport Transport

	// Sink receives the events of every bot alongside the configured
	// producers.
	Sink EventSink
}

// Sandwich runs one Application per configured bot.
type Sandwich struct {
	Logger zerolog.Logger `json:"-"`

	StartTime time.Time `json:"start_time"`

	Configuration *Configuration  `json:"-"`
	Options       SandwichOptions `json:"-"`

	ctx    context.Context
	cancel context.CancelFunc

	applicationsMu sync.RWMutex
	applications   map[string]*Application
	bots           map[string]*BotConfiguration
	producers      map[string]messaging.MQClient

	server *fasthttp.Server
}

// NewSandwich builds the applications for every bot without connecting.
func NewSandwich(logger zerolog.Logger, configuration *Configuration, options SandwichOptions) (*Sandwich, error) {
	if configuration == nil {
		return nil, ErrLoadConfigurationFailure
	}

	if options.Client == nil {
		options.Client = &http.Client{Timeout: restTimeout}
	}

	if configuration.Gateway.ProxyHost != "" {
		proxyURL, err := url.Parse(configuration.Gateway.ProxyHost)
		if err != nil {
			return nil, fmt.Errorf("failed to parse proxy host: %w", err)
		}

		options.Client = NewProxyClient(*options.Client, *proxyURL)
	}

	sg := &Sandwich{
		Logger: logger,

		Configuration: configuration,
		Options:       options,

		applications: make(map[string]*Application),
		bots:         make(map[string]*BotConfiguration),
		producers:    make(map[string]messaging.MQClient),
	}

	sg.ctx, sg.cancel = context.WithCancel(context.Background())

	for _, bot := range configuration.Bots {
		if err := sg.addApplication(bot); err != nil {
			sg.cancel()

			return nil, err
		}
	}

	return sg, nil
}

func (sg *Sandwich) addApplication(bot *BotConfiguration) error {
	if _, duplicate := sg.applications[bot.Identifier]; duplicate {
		return fmt.Errorf("bot %s: %w", bot.Identifier, ErrApplicationIdentifierExists)
	}

	shard, err := bot.ShardDescriptor()
	if err != nil {
		return fmt.Errorf("bot %s: %w", bot.Identifier, err)
	}

	logger := sg.Logger.With().Str("appId", bot.ID).Logger()

	var credentials CredentialProvider
	if bot.UseAccessToken {
		credentials = NewAccessTokenCredentials(sg.Options.Client, sg.Configuration.Gateway.TokenURL, bot.ID, bot.Secret)
	} else {
		credentials = StaticCredentials{AppID: bot.ID, Token: bot.Token}
	}

	baseURL := sg.Configuration.Gateway.APIBase
	if sg.Configuration.Gateway.IsSandbox {
		baseURL = sg.Configuration.Gateway.SandboxAPIBase
	}

	sinks := MultiSink{LogSink{Logger: logger.With().Str("application", bot.Identifier).Logger()}}

	if sg.Options.Sink != nil {
		sinks = append(sinks, sg.Options.Sink)
	}

	if bot.Producer != nil {
		client, err := messaging.NewMQClient(bot.Producer.Type)
		if err != nil {
			return fmt.Errorf("bot %s: %w", bot.Identifier, err)
		}

		sg.producers[bot.Identifier] = client

		sinks = append(sinks, NewProducerSink(logger, bot.Identifier, bot.ID, client, bot.Producer.Channel, bot.EventBlacklist))
	}

	var intents int32
	if bot.Intents != nil {
		intents = bot.Intents.Bitmask()
	}

	sg.applications[bot.Identifier] = NewApplication(logger, ApplicationOptions{
		Identifier: bot.Identifier,
		AppID:      bot.ID,

		REST:        NewGatewayClient(sg.Options.Client, baseURL, bot.ID, credentials),
		Credentials: credentials,
		Transport:   sg.Options.Transport,
		Sink:        sinks,

		Intents: intents,
		Shard:   shard,

		ReconnectInterval:  sg.Configuration.Gateway.ReconnectInterval,
		ConnectTimeout:     sg.Configuration.Gateway.ConnectTimeout,
		StopTimeout:        sg.Configuration.Gateway.StopTimeout,
		SessionStartWindow: sg.Configuration.Gateway.SessionStartWindow,
	})
	sg.bots[bot.Identifier] = bot

	return nil
}

// Open connects producers, serves HTTP and starts every auto-start bot. A
// bot that fails to start is logged and skipped. The returned error joins
// every failure.
func (sg *Sandwich) Open(ctx context.Context) error {
	sg.StartTime = time.Now().UTC()
	sg.Logger.Info().Msgf("Starting sandwich. Version %s", Version)

	if sg.Configuration.HTTP.Enabled {
		sg.setupHTTP()
	}

	var errs []error

	for _, application := range sg.Applications() {
		bot := sg.bots[application.Identifier]

		if client, ok := sg.producers[application.Identifier]; ok {
			clientName := bot.Producer.ClientName
			if clientName == "" {
				clientName = "sandwich-qq-" + application.Identifier
			}

			if bot.Producer.IncludeRandomSuffix {
				clientName += "-" + randomHex(6)
			}

			err := client.Connect(ctx, clientName, producerArguments(bot.Producer))
			if err != nil {
				application.SetStatus(ApplicationStatusFailed)
				application.Logger.Error().Err(err).Str("producer", client.String()).Msg("Failed to connect producer")

				errs = append(errs, fmt.Errorf("bot %s: %w", application.Identifier, err))

				continue
			}
		}

		if !bot.AutoStart {
			continue
		}

		if err := application.Start(ctx); err != nil {
			application.Logger.Error().Err(err).Msg("Failed to start application")

			errs = append(errs, fmt.Errorf("bot %s: %w", application.Identifier, err))
		}
	}

	return errors.Join(errs...)
}

// producerArguments passes the channel to clients that read it from their
// arguments.
func producerArguments(producer *ProducerConfiguration) map[string]interface{} {
	args := make(map[string]interface{}, len(producer.Configuration)+1)

	for key, value := range producer.Configuration {
		args[key] = value
	}

	if messaging.GetEntry(args, "Channel") == nil && producer.Channel != "" {
		args["Channel"] = producer.Channel
	}

	return args
}

// Close stops every application, the HTTP server and the producers.
func (sg *Sandwich) Close(ctx context.Context) error {
	sg.Logger.Info().Msg("Closing sandwich")

	var wg sync.WaitGroup

	for _, application := range sg.Applications() {
		wg.Add(1)

		go func(application *Application) {
			defer wg.Done()

			application.Stop(ctx)
		}(application)
	}

	wg.Wait()

	var errs []error

	if sg.server != nil {
		if err := sg.server.ShutdownWithContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown http server: %w", err))
		}
	}

	for identifier, client := range sg.producers {
		if err := client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("bot %s: failed to close producer: %w", identifier, err))
		}
	}

	sg.cancel()

	return errors.Join(errs...)
}

// Applications returns every application ordered as configured.
func (sg *Sandwich) Applications() []*Application {
	sg.applicationsMu.RLock()
	defer sg.applicationsMu.RUnlock()

	applications := make([]*Application, 0, len(sg.applications))

	for _, bot := range sg.Configuration.Bots {
		if application, ok := sg.applications[bot.Identifier]; ok {
			applications = append(applications, application)
		}
	}

	return applications
}

func (sg *Sandwich) Application(identifier string) (*Application, error) {
	sg.applicationsMu.RLock()
	defer sg.applicationsMu.RUnlock()

	application, ok := sg.applications[identifier]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrApplicationNotFound, identifier)
	}

	return application, nil
}

func (sg *Sandwich) applicationByAppID(appID string) (*Application, *BotConfiguration) {
	sg.applicationsMu.RLock()
	defer sg.applicationsMu.RUnlock()

	for _, bot := range sg.Configuration.Bots {
		if bot.ID == appID {
			return sg.applications[bot.Identifier], bot
		}
	}

	return nil, nil
}

func (sg *Sandwich) verifyWebhook() bool {
	verify := sg.Configuration.HTTP.VerifyWebhook

	return verify == nil || *verify
}
