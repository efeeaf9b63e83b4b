package sandwich

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/WelcomerTeam/Sandwich-QQ/sandwichjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func TestStaticCredentials(t *testing.T) {
	header, err := StaticCredentials{AppID: "123", Token: "secret-token"}.AuthorizationHeader(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bot 123.secret-token", header)

	_, err = StaticCredentials{AppID: "123"}.AuthorizationHeader(context.Background())
	assert.True(t, errors.Is(err, ErrApplicationMissingToken))
}

func newTokenServer(t *testing.T, expiresIn string) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	calls := atomic.NewInt32(0)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var request appAccessTokenRequest
		if err := sandwichjson.UnmarshalReader(r.Body, &request); err != nil || request.AppID != "123" || request.ClientSecret != "shh" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"code":100,"message":"bad secret"}`))

			return
		}

		n := calls.Inc()

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"token-` + string(rune('0'+n)) + `","expires_in":` + expiresIn + `}`))
	}))
	t.Cleanup(server.Close)

	return server, calls
}

func TestAccessTokenCredentialsCachesToken(t *testing.T) {
	server, calls := newTokenServer(t, `"7200"`)

	credentials := NewAccessTokenCredentials(server.Client(), server.URL, "123", "shh")

	header, err := credentials.AuthorizationHeader(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "QQBot token-1", header)

	header, err = credentials.AuthorizationHeader(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "QQBot token-1", header)
	assert.Equal(t, int32(1), calls.Load())

	credentials.Invalidate()

	header, err = credentials.AuthorizationHeader(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "QQBot token-2", header)
}

func TestAccessTokenCredentialsRefreshesBeforeExpiry(t *testing.T) {
	// Tokens that expire within the expiry delta are always refreshed.
	server, calls := newTokenServer(t, `10`)

	credentials := NewAccessTokenCredentials(server.Client(), server.URL, "123", "shh")

	_, err := credentials.AuthorizationHeader(context.Background())
	require.NoError(t, err)

	_, err = credentials.AuthorizationHeader(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load())
}

func TestAccessTokenCredentialsRejected(t *testing.T) {
	server, _ := newTokenServer(t, `7200`)

	credentials := NewAccessTokenCredentials(server.Client(), server.URL, "123", "wrong")

	_, err := credentials.AuthorizationHeader(context.Background())
	require.Error(t, err)

	var actionErr *ActionFailedError
	require.True(t, errors.As(err, &actionErr))
	assert.Equal(t, http.StatusBadRequest, actionErr.StatusCode)
	assert.Equal(t, "bad secret", actionErr.Message)
}

func TestAccessTokenCredentialsHonoursContext(t *testing.T) {
	release := make(chan struct{})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	credentials := NewAccessTokenCredentials(server.Client(), server.URL, "123", "shh")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := credentials.AuthorizationHeader(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestFlexibleSeconds(t *testing.T) {
	var response appAccessTokenResponse

	require.NoError(t, sandwichjson.Unmarshal([]byte(`{"access_token":"a","expires_in":"7200"}`), &response))
	assert.Equal(t, flexibleSeconds(7200), response.ExpiresIn)

	require.NoError(t, sandwichjson.Unmarshal([]byte(`{"access_token":"a","expires_in":60}`), &response))
	assert.Equal(t, flexibleSeconds(60), response.ExpiresIn)

	assert.Error(t, sandwichjson.Unmarshal([]byte(`{"expires_in":"soon"}`), &response))
}
