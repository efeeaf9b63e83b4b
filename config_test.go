package sandwich

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/WelcomerTeam/Sandwich-QQ/qq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfiguration = `
http:
  enabled: true
  host: 127.0.0.1:9000
gateway:
  reconnect_interval: 5s
  is_sandbox: true
bots:
  - id: "123"
    token: ${SANDWICH_TEST_TOKEN}
    auto_start: true
    shard: [1, 4]
    intents:
      guild_messages: true
      message_audit: false
    event_blacklist: [GUILD_CREATE]
    producer:
      type: redis
      channel: sandwich
      configuration:
        address: localhost:6379
  - id: "456"
    identifier: group-bot
    secret: shh
    use_access_token: true
`

func TestParseConfiguration(t *testing.T) {
	t.Setenv("SANDWICH_TEST_TOKEN", "from-env")

	configuration, err := ParseConfiguration([]byte(testConfiguration))
	require.NoError(t, err)

	assert.True(t, configuration.HTTP.Enabled)
	assert.Equal(t, "127.0.0.1:9000", configuration.HTTP.Host)
	require.NotNil(t, configuration.HTTP.VerifyWebhook)
	assert.True(t, *configuration.HTTP.VerifyWebhook)

	assert.Equal(t, 5*time.Second, configuration.Gateway.ReconnectInterval)
	assert.Equal(t, DefaultConnectTimeout, configuration.Gateway.ConnectTimeout)
	assert.Equal(t, DefaultStopTimeout, configuration.Gateway.StopTimeout)
	assert.Equal(t, DefaultSessionStartWindow, configuration.Gateway.SessionStartWindow)
	assert.Equal(t, APIBase, configuration.Gateway.APIBase)
	assert.Equal(t, AppAccessTokenURL, configuration.Gateway.TokenURL)

	require.Len(t, configuration.Bots, 2)

	bot := configuration.Bots[0]
	assert.Equal(t, "123", bot.Identifier)
	assert.Equal(t, "from-env", bot.Token)
	assert.Equal(t, []string{"GUILD_CREATE"}, bot.EventBlacklist)
	assert.Equal(t, "localhost:6379", bot.Producer.Configuration["address"])

	shard, err := bot.ShardDescriptor()
	require.NoError(t, err)
	assert.Equal(t, &ShardDescriptor{Index: 1, Total: 4}, shard)

	expected := qq.DefaultIntents&^qq.IntentMessageAudit | qq.IntentGuildMessages
	assert.Equal(t, int32(expected), bot.Intents.Bitmask())

	groupBot := configuration.Bots[1]
	assert.Equal(t, "group-bot", groupBot.Identifier)
	assert.Equal(t, int32(qq.DefaultIntents), groupBot.Intents.Bitmask())

	noShard, err := groupBot.ShardDescriptor()
	assert.NoError(t, err)
	assert.Nil(t, noShard)
}

func TestDefaultIntentsMatchBitmask(t *testing.T) {
	t.Parallel()

	assert.Equal(t, int32(qq.DefaultIntents), DefaultIntentsConfiguration().Bitmask())
}

func TestParseConfigurationValidation(t *testing.T) {
	t.Parallel()

	for name, test := range map[string]struct {
		data string
		err  error
	}{
		"missing id": {
			data: "bots:\n  - token: abc\n",
			err:  ErrApplicationMissingIdentifier,
		},
		"duplicate id": {
			data: "bots:\n  - id: '1'\n    token: a\n  - id: '1'\n    token: b\n",
			err:  ErrApplicationIdentifierExists,
		},
		"missing token": {
			data: "bots:\n  - id: '1'\n",
			err:  ErrApplicationMissingToken,
		},
		"missing secret": {
			data: "bots:\n  - id: '1'\n    token: a\n    use_access_token: true\n",
			err:  ErrApplicationMissingToken,
		},
		"shard out of range": {
			data: "bots:\n  - id: '1'\n    token: a\n    shard: [4, 4]\n",
			err:  ErrApplicationInvalidShard,
		},
		"shard wrong length": {
			data: "bots:\n  - id: '1'\n    token: a\n    shard: [0]\n",
			err:  ErrApplicationInvalidShard,
		},
		"not yaml": {
			data: "bots: [",
			err:  ErrLoadConfigurationFailure,
		},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseConfiguration([]byte(test.data))
			assert.True(t, errors.Is(err, test.err), "got %v", err)
		})
	}
}

func TestLoadConfiguration(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sandwich.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bots:\n  - id: '1'\n    token: a\n"), 0o600))

	configuration, err := LoadConfiguration(path)
	require.NoError(t, err)
	assert.Len(t, configuration.Bots, 1)

	_, err = LoadConfiguration(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errors.Is(err, ErrReadConfigurationFailure))
}
