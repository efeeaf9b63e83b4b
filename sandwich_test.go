package sandwich

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGatewayAPI(t *testing.T) *httptest.Server {
	t.Helper()

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/gateway/bot":
			if r.Header.Get("Authorization") == "Bot broken.token" {
				w.WriteHeader(http.StatusUnauthorized)

				return
			}

			_, _ = w.Write([]byte(`{"url":"wss://gateway.test","shards":1,"session_start_limit":{"total":10,"remaining":10,"reset_after":0,"max_concurrency":1}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(api.Close)

	return api
}

func TestSandwichOpenStartsAutoStartBots(t *testing.T) {
	api := newGatewayAPI(t)

	configuration := &Configuration{
		Bots: []*BotConfiguration{
			{ID: "auto", Token: "token", AutoStart: true},
			{ID: "manual", Token: "token"},
			{ID: "broken", Token: "token", AutoStart: true},
		},
	}
	configuration.Gateway.APIBase = api.URL
	configuration.setDefaults()

	transport := newFakeTransport()

	sg, err := NewSandwich(zerolog.Nop(), configuration, SandwichOptions{
		Client:    api.Client(),
		Transport: transport,
	})
	require.NoError(t, err)

	err = sg.Open(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBootstrapFailed))
	assert.True(t, errors.Is(err, ErrUnauthorized))

	auto, err := sg.Application("auto")
	require.NoError(t, err)

	transport.nextSocket(t)
	assert.Equal(t, ApplicationStatusRunning, auto.GetStatus())

	manual, err := sg.Application("manual")
	require.NoError(t, err)
	assert.Equal(t, ApplicationStatusIdle, manual.GetStatus())

	broken, err := sg.Application("broken")
	require.NoError(t, err)
	assert.Equal(t, ApplicationStatusFailed, broken.GetStatus())

	_, err = sg.Application("missing")
	assert.True(t, errors.Is(err, ErrApplicationNotFound))

	application, bot := sg.applicationByAppID("manual")
	assert.Same(t, manual, application)
	assert.Equal(t, "manual", bot.ID)

	require.NoError(t, sg.Close(context.Background()))
	assert.Equal(t, ApplicationStatusStopped, auto.GetStatus())
}

func TestSandwichRejectsUnknownProducer(t *testing.T) {
	configuration := &Configuration{
		Bots: []*BotConfiguration{
			{ID: "1", Token: "token", Producer: &ProducerConfiguration{Type: "carrier-pigeon"}},
		},
	}
	configuration.setDefaults()

	_, err := NewSandwich(zerolog.Nop(), configuration, SandwichOptions{})
	assert.Error(t, err)
}

func TestProducerArgumentsCarryChannel(t *testing.T) {
	args := producerArguments(&ProducerConfiguration{
		Channel:       "sandwich",
		Configuration: map[string]interface{}{"address": "localhost:4222"},
	})

	assert.Equal(t, "sandwich", args["Channel"])
	assert.Equal(t, "localhost:4222", args["address"])

	args = producerArguments(&ProducerConfiguration{
		Channel:       "sandwich",
		Configuration: map[string]interface{}{"channel": "override"},
	})

	assert.Equal(t, "override", args["channel"])
	assert.NotContains(t, args, "Channel")
}

func TestRandomHex(t *testing.T) {
	assert.Len(t, randomHex(6), 12)
	assert.Empty(t, randomHex(0))
	assert.NotEqual(t, randomHex(8), randomHex(8))
}
