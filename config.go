package sandwich

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/WelcomerTeam/Sandwich-QQ/qq"
	"gopkg.in/yaml.v3"
)

var (
	ErrReadConfigurationFailure = errors.New("failed to read configuration")
	ErrLoadConfigurationFailure = errors.New("failed to load configuration")
)

// Configuration represents the configuration file.
type Configuration struct {
	HTTP struct {
		Enabled bool   `json:"enabled" yaml:"enabled"`
		Host    string `json:"host" yaml:"host"`

		// VerifyWebhook rejects webhook requests without a valid signature.
		VerifyWebhook *bool `json:"verify_webhook" yaml:"verify_webhook"`
	} `json:"http" yaml:"http"`

	Gateway GatewayConfiguration `json:"gateway" yaml:"gateway"`

	Bots []*BotConfiguration `json:"bots" yaml:"bots"`
}

type GatewayConfiguration struct {
	APIBase        string `json:"api_base" yaml:"api_base"`
	SandboxAPIBase string `json:"sandbox_api_base" yaml:"sandbox_api_base"`
	TokenURL       string `json:"token_url" yaml:"token_url"`
	IsSandbox      bool   `json:"is_sandbox" yaml:"is_sandbox"`

	// ProxyHost sends every REST call to this host instead.
	ProxyHost string `json:"proxy_host" yaml:"proxy_host"`

	ReconnectInterval  time.Duration `json:"reconnect_interval" yaml:"reconnect_interval"`
	ConnectTimeout     time.Duration `json:"connect_timeout" yaml:"connect_timeout"`
	StopTimeout        time.Duration `json:"stop_timeout" yaml:"stop_timeout"`
	SessionStartWindow time.Duration `json:"session_start_window" yaml:"session_start_window"`
}

type BotConfiguration struct {
	ID         string `json:"id" yaml:"id"`
	Identifier string `json:"identifier" yaml:"identifier"`
	Token      string `json:"token" yaml:"token"`
	Secret     string `json:"secret" yaml:"secret"`

	// UseAccessToken authenticates with an app access token fetched using
	// the secret. Group and C2C bots need this.
	UseAccessToken bool `json:"use_access_token" yaml:"use_access_token"`

	// Shard pins the bot to [index, total].
	Shard []int32 `json:"shard" yaml:"shard"`

	Intents *Intents `json:"intents" yaml:"intents"`

	AutoStart bool `json:"auto_start" yaml:"auto_start"`

	// Events that are not passed to the producer.
	EventBlacklist []string `json:"event_blacklist" yaml:"event_blacklist"`

	Producer *ProducerConfiguration `json:"producer" yaml:"producer"`
}

type ProducerConfiguration struct {
	Type       string `json:"type" yaml:"type"`
	Channel    string `json:"channel" yaml:"channel"`
	ClientName string `json:"client_name" yaml:"client_name"`

	// IncludeRandomSuffix appends random characters to the client name so
	// several daemons can share a broker that requires unique client ids.
	IncludeRandomSuffix bool `json:"client_name_uses_random_suffix" yaml:"client_name_uses_random_suffix"`

	Configuration map[string]interface{} `json:"configuration" yaml:"configuration"`
}

// Intents are the named event categories a bot subscribes to.
type Intents struct {
	Guilds                bool `json:"guilds" yaml:"guilds"`
	GuildMembers          bool `json:"guild_members" yaml:"guild_members"`
	GuildMessages         bool `json:"guild_messages" yaml:"guild_messages"`
	GuildMessageReactions bool `json:"guild_message_reactions" yaml:"guild_message_reactions"`
	DirectMessage         bool `json:"direct_message" yaml:"direct_message"`
	OpenForumEvent        bool `json:"open_forum_event" yaml:"open_forum_event"`
	AudioOrLiveMember     bool `json:"audio_live_member" yaml:"audio_live_member"`
	C2CGroupAtMessages    bool `json:"c2c_group_at_messages" yaml:"c2c_group_at_messages"`
	Interaction           bool `json:"interaction" yaml:"interaction"`
	MessageAudit          bool `json:"message_audit" yaml:"message_audit"`
	ForumEvent            bool `json:"forum_event" yaml:"forum_event"`
	AudioAction           bool `json:"audio_action" yaml:"audio_action"`
	AtMessages            bool `json:"public_guild_messages" yaml:"public_guild_messages"`
}

func DefaultIntentsConfiguration() Intents {
	return Intents{
		Guilds:                true,
		GuildMembers:          true,
		GuildMessageReactions: true,
		MessageAudit:          true,
		AtMessages:            true,
	}
}

// UnmarshalYAML fills fields that are not set with their defaults.
func (i *Intents) UnmarshalYAML(value *yaml.Node) error {
	type intents Intents

	decoded := intents(DefaultIntentsConfiguration())

	if err := value.Decode(&decoded); err != nil {
		return err
	}

	*i = Intents(decoded)

	return nil
}

// Bitmask converts the intents to the value sent on identify.
func (i Intents) Bitmask() int32 {
	flags := []struct {
		enabled bool
		intent  qq.Intent
	}{
		{i.Guilds, qq.IntentGuilds},
		{i.GuildMembers, qq.IntentGuildMembers},
		{i.GuildMessages, qq.IntentGuildMessages},
		{i.GuildMessageReactions, qq.IntentGuildMessageReactions},
		{i.DirectMessage, qq.IntentDirectMessage},
		{i.OpenForumEvent, qq.IntentOpenForumEvent},
		{i.AudioOrLiveMember, qq.IntentAudioOrLiveMember},
		{i.C2CGroupAtMessages, qq.IntentC2CGroupAtMessages},
		{i.Interaction, qq.IntentInteraction},
		{i.MessageAudit, qq.IntentMessageAudit},
		{i.ForumEvent, qq.IntentForumEvent},
		{i.AudioAction, qq.IntentAudioAction},
		{i.AtMessages, qq.IntentAtMessages},
	}

	var bitmask qq.Intent

	for _, flag := range flags {
		if flag.enabled {
			bitmask |= flag.intent
		}
	}

	return int32(bitmask)
}

// LoadConfiguration reads a YAML configuration file. Environment variables
// referenced as ${NAME} are expanded before parsing.
func LoadConfiguration(path string) (*Configuration, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadConfigurationFailure, err)
	}

	return ParseConfiguration(file)
}

func ParseConfiguration(data []byte) (*Configuration, error) {
	var configuration Configuration

	err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &configuration)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfigurationFailure, err)
	}

	configuration.setDefaults()

	if err := configuration.Validate(); err != nil {
		return nil, err
	}

	return &configuration, nil
}

func (c *Configuration) setDefaults() {
	if c.HTTP.Host == "" {
		c.HTTP.Host = ":8080"
	}

	if c.HTTP.VerifyWebhook == nil {
		verify := true
		c.HTTP.VerifyWebhook = &verify
	}

	if c.Gateway.APIBase == "" {
		c.Gateway.APIBase = APIBase
	}

	if c.Gateway.SandboxAPIBase == "" {
		c.Gateway.SandboxAPIBase = SandboxAPIBase
	}

	if c.Gateway.TokenURL == "" {
		c.Gateway.TokenURL = AppAccessTokenURL
	}

	if c.Gateway.ReconnectInterval <= 0 {
		c.Gateway.ReconnectInterval = DefaultReconnectInterval
	}

	if c.Gateway.ConnectTimeout <= 0 {
		c.Gateway.ConnectTimeout = DefaultConnectTimeout
	}

	if c.Gateway.StopTimeout <= 0 {
		c.Gateway.StopTimeout = DefaultStopTimeout
	}

	if c.Gateway.SessionStartWindow <= 0 {
		c.Gateway.SessionStartWindow = DefaultSessionStartWindow
	}

	for _, bot := range c.Bots {
		if bot == nil {
			continue
		}

		if bot.Identifier == "" {
			bot.Identifier = bot.ID
		}

		if bot.Intents == nil {
			intents := DefaultIntentsConfiguration()
			bot.Intents = &intents
		}
	}
}

// Validate checks every bot has a unique id, credentials and a sensible shard.
func (c *Configuration) Validate() error {
	seen := make(map[string]bool, len(c.Bots))

	for index, bot := range c.Bots {
		if bot == nil || bot.ID == "" {
			return fmt.Errorf("bot %d: %w", index, ErrApplicationMissingIdentifier)
		}

		if seen[bot.Identifier] {
			return fmt.Errorf("bot %s: %w", bot.Identifier, ErrApplicationIdentifierExists)
		}

		seen[bot.Identifier] = true

		if bot.UseAccessToken && bot.Secret == "" || !bot.UseAccessToken && bot.Token == "" {
			return fmt.Errorf("bot %s: %w", bot.Identifier, ErrApplicationMissingToken)
		}

		if bot.Shard != nil {
			if _, err := bot.ShardDescriptor(); err != nil {
				return fmt.Errorf("bot %s: %w", bot.Identifier, err)
			}
		}
	}

	return nil
}

// ShardDescriptor returns the pinned shard, or nil if the bot uses the
// recommended shard count.
func (b *BotConfiguration) ShardDescriptor() (*ShardDescriptor, error) {
	if b.Shard == nil {
		return nil, nil
	}

	if len(b.Shard) != 2 || b.Shard[1] <= 0 || b.Shard[0] < 0 || b.Shard[0] >= b.Shard[1] {
		return nil, fmt.Errorf("%w: %v", ErrApplicationInvalidShard, b.Shard)
	}

	return &ShardDescriptor{Index: b.Shard[0], Total: b.Shard[1]}, nil
}
