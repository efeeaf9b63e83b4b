package sandwich

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/WelcomerTeam/Sandwich-QQ/sandwichjson"
	"golang.org/x/oauth2"
)

// Access tokens are refreshed this long before they expire.
const AccessTokenExpiryDelta = 30 * time.Second

// CredentialProvider produces the Authorization header used for Identify,
// Resume and REST calls.
type CredentialProvider interface {
	AuthorizationHeader(ctx context.Context) (string, error)
}

// StaticCredentials authenticates with the bot token.
type StaticCredentials struct {
	AppID string
	Token string
}

func (c StaticCredentials) AuthorizationHeader(_ context.Context) (string, error) {
	if c.AppID == "" || c.Token == "" {
		return "", ErrApplicationMissingToken
	}

	return "Bot " + c.AppID + "." + c.Token, nil
}

// AccessTokenCredentials authenticates with an app access token exchanged for
// the bot secret. Tokens are cached until shortly before they expire.
type AccessTokenCredentials struct {
	AppID string

	base oauth2.TokenSource

	sourceMu sync.Mutex
	source   oauth2.TokenSource
}

func NewAccessTokenCredentials(client *http.Client, tokenURL, appID, secret string) *AccessTokenCredentials {
	if client == nil {
		client = http.DefaultClient
	}

	credentials := &AccessTokenCredentials{
		AppID: appID,
		base: &appAccessTokenSource{
			client:   client,
			tokenURL: tokenURL,
			appID:    appID,
			secret:   secret,
		},
	}

	credentials.Invalidate()

	return credentials
}

func (c *AccessTokenCredentials) AuthorizationHeader(ctx context.Context) (string, error) {
	c.sourceMu.Lock()
	source := c.source
	c.sourceMu.Unlock()

	type result struct {
		token *oauth2.Token
		err   error
	}

	resultCh := make(chan result, 1)

	go func() {
		token, err := source.Token()
		resultCh <- result{token, err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-resultCh:
		if res.err != nil {
			return "", fmt.Errorf("failed to get app access token: %w", res.err)
		}

		return "QQBot " + res.token.AccessToken, nil
	}
}

// Invalidate drops the cached token so the next call fetches a new one.
func (c *AccessTokenCredentials) Invalidate() {
	c.sourceMu.Lock()
	c.source = oauth2.ReuseTokenSourceWithExpiry(nil, c.base, AccessTokenExpiryDelta)
	c.sourceMu.Unlock()
}

type appAccessTokenSource struct {
	client   *http.Client
	tokenURL string
	appID    string
	secret   string
}

type appAccessTokenRequest struct {
	AppID        string `json:"appId"`
	ClientSecret string `json:"clientSecret"`
}

type appAccessTokenResponse struct {
	AccessToken string          `json:"access_token"`
	ExpiresIn   flexibleSeconds `json:"expires_in"`
}

// flexibleSeconds accepts a number of seconds sent either as a number or a string.
type flexibleSeconds int64

func (s *flexibleSeconds) UnmarshalJSON(data []byte) error {
	value, err := strconv.ParseInt(strings.Trim(string(data), `"`), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid expires_in %s: %w", data, err)
	}

	*s = flexibleSeconds(value)

	return nil
}

func (s *appAccessTokenSource) Token() (*oauth2.Token, error) {
	body, err := sandwichjson.Marshal(appAccessTokenRequest{
		AppID:        s.appID,
		ClientSecret: s.secret,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal token request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, s.tokenURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to do request: %w", err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, newActionFailedError(resp)
	}

	var response appAccessTokenResponse
	if err := sandwichjson.UnmarshalReader(resp.Body, &response); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}

	if response.AccessToken == "" {
		return nil, errors.New("token response missing access_token")
	}

	return &oauth2.Token{
		AccessToken: response.AccessToken,
		TokenType:   "QQBot",
		Expiry:      time.Now().Add(time.Duration(response.ExpiresIn) * time.Second),
	}, nil
}
