package sandwich

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func TestGatewayClientGatewayBot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/gateway/bot", r.URL.Path)
		assert.Equal(t, "Bot 123.token", r.Header.Get("Authorization"))
		assert.Empty(t, r.Header.Get("X-Union-Appid"))
		assert.Equal(t, UserAgent, r.Header.Get("User-Agent"))

		_, _ = w.Write([]byte(`{"url":"wss://api.sgroup.qq.com/websocket","shards":2,"session_start_limit":{"total":1000,"remaining":999,"reset_after":14400000,"max_concurrency":1}}`))
	}))
	defer server.Close()

	client := NewGatewayClient(server.Client(), server.URL+"/", "123", StaticCredentials{AppID: "123", Token: "token"})

	gateway, err := client.GatewayBot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "wss://api.sgroup.qq.com/websocket", gateway.URL)
	assert.Equal(t, int32(2), gateway.Shards)
	assert.Equal(t, int32(999), gateway.SessionStartLimit.Remaining)
	assert.Equal(t, int64(14400000), gateway.SessionStartLimit.ResetAfter)
	assert.Equal(t, int32(1), gateway.SessionStartLimit.MaxConcurrency)
}

func TestGatewayClientErrorKinds(t *testing.T) {
	for status, kind := range map[int]error{
		http.StatusUnauthorized:     ErrUnauthorized,
		http.StatusNotFound:         ErrAPINotAvailable,
		http.StatusMethodNotAllowed: ErrAPINotAvailable,
		http.StatusTooManyRequests:  ErrRateLimited,
		http.StatusBadGateway:       nil,
	} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("X-Tps-Trace-Id", "trace-1")
				w.WriteHeader(status)
				_, _ = w.Write([]byte(`{"code":11241,"message":"nope"}`))
			}))
			defer server.Close()

			client := NewGatewayClient(server.Client(), server.URL, "123", StaticCredentials{AppID: "123", Token: "token"})

			_, err := client.Me(context.Background())
			require.Error(t, err)

			var actionErr *ActionFailedError
			require.True(t, errors.As(err, &actionErr))
			assert.Equal(t, status, actionErr.StatusCode)
			assert.Equal(t, 11241, actionErr.Code)
			assert.Equal(t, "nope", actionErr.Message)
			assert.Equal(t, "trace-1", actionErr.TraceID)

			if kind != nil {
				assert.True(t, errors.Is(err, kind))
			} else {
				assert.Nil(t, actionErr.Kind)
			}
		})
	}
}

func TestGatewayClientRetriesAfterUnauthorized(t *testing.T) {
	tokenServer, tokenCalls := newTokenServer(t, `7200`)

	requests := atomic.NewInt32(0)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "123", r.Header.Get("X-Union-Appid"))

		if requests.Inc() == 1 {
			assert.Equal(t, "QQBot token-1", r.Header.Get("Authorization"))
			w.WriteHeader(http.StatusUnauthorized)

			return
		}

		assert.Equal(t, "QQBot token-2", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"id":"bot","username":"sandwich","bot":true}`))
	}))
	defer server.Close()

	credentials := NewAccessTokenCredentials(tokenServer.Client(), tokenServer.URL, "123", "shh")
	client := NewGatewayClient(server.Client(), server.URL, "123", credentials)

	user, err := client.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sandwich", user.Username)
	assert.Equal(t, int32(2), requests.Load())
	assert.Equal(t, int32(2), tokenCalls.Load())
}

func TestProxyClientRewritesHost(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/@me", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"bot"}`))
	}))
	defer server.Close()

	proxyURL, err := url.Parse(server.URL)
	require.NoError(t, err)

	client := NewGatewayClient(NewProxyClient(http.Client{}, *proxyURL), APIBase, "123", StaticCredentials{AppID: "123", Token: "token"})

	user, err := client.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "bot", user.ID)
}
