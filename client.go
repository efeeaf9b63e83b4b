package sandwich

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/WelcomerTeam/Sandwich-QQ/qq"
	"github.com/WelcomerTeam/Sandwich-QQ/sandwichjson"
)

const (
	APIBase           = "https://api.sgroup.qq.com"
	SandboxAPIBase    = "https://sandbox.api.sgroup.qq.com"
	AppAccessTokenURL = "https://bots.qq.com/app/getAppAccessToken"
)

var UserAgent = fmt.Sprintf("Sandwich-QQ/%s (https://github.com/WelcomerTeam/Sandwich-QQ)", Version)

// NewProxyClient creates an HTTP client that redirects all requests through a specified host.
func NewProxyClient(client http.Client, host url.URL) *http.Client {
	if client.Transport == nil {
		client.Transport = http.DefaultTransport
	}

	client.Transport = &proxyTransport{
		host:      host,
		transport: client.Transport,
	}

	return &client
}

type proxyTransport struct {
	host      url.URL
	transport http.RoundTripper
}

func (t *proxyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	proxyReq := req.Clone(req.Context())

	proxyReq.URL.Host = t.host.Host
	proxyReq.URL.Scheme = t.host.Scheme
	proxyReq.Host = t.host.Host

	proxyReq.Header.Set("User-Agent", UserAgent)

	resp, err := t.transport.RoundTrip(proxyReq)
	if err != nil {
		return nil, fmt.Errorf("failed to round trip: %w", err)
	}

	return resp, nil
}

// GatewayClient makes REST calls against the platform API.
type GatewayClient struct {
	Client      *http.Client
	BaseURL     string
	AppID       string
	Credentials CredentialProvider
}

func NewGatewayClient(client *http.Client, baseURL, appID string, credentials CredentialProvider) *GatewayClient {
	if client == nil {
		client = http.DefaultClient
	}

	return &GatewayClient{
		Client:      client,
		BaseURL:     strings.TrimSuffix(baseURL, "/"),
		AppID:       appID,
		Credentials: credentials,
	}
}

// GatewayBot returns the gateway URL and the recommended shard count.
func (c *GatewayClient) GatewayBot(ctx context.Context) (*qq.GatewayBot, error) {
	var gatewayBot qq.GatewayBot

	if err := c.Fetch(ctx, http.MethodGet, "/gateway/bot", nil, &gatewayBot); err != nil {
		return nil, err
	}

	return &gatewayBot, nil
}

// Me returns the bot user.
func (c *GatewayClient) Me(ctx context.Context) (*qq.User, error) {
	var user qq.User

	if err := c.Fetch(ctx, http.MethodGet, "/users/@me", nil, &user); err != nil {
		return nil, err
	}

	return &user, nil
}

// Fetch performs a request and decodes the response into v. A request
// rejected as unauthorized is retried once after the credentials are
// invalidated.
func (c *GatewayClient) Fetch(ctx context.Context, method, path string, body, v any) error {
	err := c.fetch(ctx, method, path, body, v)

	if errors.Is(err, ErrUnauthorized) {
		if invalidator, ok := c.Credentials.(interface{ Invalidate() }); ok {
			invalidator.Invalidate()

			err = c.fetch(ctx, method, path, body, v)
		}
	}

	return err
}

func (c *GatewayClient) fetch(ctx context.Context, method, path string, body, v any) error {
	var reader io.Reader

	if body != nil {
		data, err := sandwichjson.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal body: %w", err)
		}

		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	authorization, err := c.Credentials.AuthorizationHeader(ctx)
	if err != nil {
		return fmt.Errorf("failed to get authorization: %w", err)
	}

	req.Header.Set("Authorization", authorization)
	req.Header.Set("User-Agent", UserAgent)

	if _, ok := c.Credentials.(*AccessTokenCredentials); ok {
		req.Header.Set("X-Union-Appid", c.AppID)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to do request: %w", err)
	}

	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newActionFailedError(resp)
	}

	if v == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := sandwichjson.UnmarshalReader(resp.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

type apiErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func newActionFailedError(resp *http.Response) *ActionFailedError {
	actionErr := &ActionFailedError{
		StatusCode: resp.StatusCode,
		TraceID:    resp.Header.Get("X-Tps-Trace-Id"),
	}

	var apiErr apiErrorResponse
	if data, err := io.ReadAll(resp.Body); err == nil && sandwichjson.Unmarshal(data, &apiErr) == nil {
		actionErr.Code = apiErr.Code
		actionErr.Message = apiErr.Message
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		actionErr.Kind = ErrUnauthorized
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		actionErr.Kind = ErrAPINotAvailable
	case http.StatusTooManyRequests:
		actionErr.Kind = ErrRateLimited
	}

	return actionErr
}
