package sandwich

import (
	"context"
	"errors"
	"fmt"

	"github.com/WelcomerTeam/czlib"
	"nhooyr.io/websocket"
)

const (
	WebsocketReadLimit          = 512 << 20
	WebsocketReconnectCloseCode = 4000
)

// Transport opens duplex connections to the gateway.
type Transport interface {
	Open(ctx context.Context, url string) (Socket, error)
}

// Socket is a single gateway connection. Send may be called concurrently
// with Receive but Receive must only be called from one goroutine.
type Socket interface {
	Send(ctx context.Context, data []byte) error
	// Receive returns an error wrapping ErrSocketClosed when the peer closed
	// the connection.
	Receive(ctx context.Context) ([]byte, error)
	Close(code int) error
}

// WebsocketTransport dials the gateway over websockets.
type WebsocketTransport struct {
	DialOptions *websocket.DialOptions
}

func (t *WebsocketTransport) Open(ctx context.Context, url string) (Socket, error) {
	conn, _, err := websocket.Dial(ctx, url, t.DialOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to websocket: %w", err)
	}

	conn.SetReadLimit(WebsocketReadLimit)

	return &websocketSocket{conn: conn}, nil
}

type websocketSocket struct {
	conn *websocket.Conn
}

func (s *websocketSocket) Send(ctx context.Context, data []byte) error {
	return s.conn.Write(ctx, websocket.MessageText, data)
}

func (s *websocketSocket) Receive(ctx context.Context) ([]byte, error) {
	messageType, data, err := s.conn.Read(ctx)
	if err != nil {
		var closeError websocket.CloseError

		if errors.As(err, &closeError) {
			return nil, fmt.Errorf("%w: code %d: %s", ErrSocketClosed, closeError.Code, closeError.Reason)
		}

		return nil, err
	}

	if messageType == websocket.MessageBinary {
		data, err = czlib.Decompress(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress data: %w", err)
		}
	}

	return data, nil
}

func (s *websocketSocket) Close(code int) error {
	return s.conn.Close(websocket.StatusCode(code), "")
}
