package qq

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/WelcomerTeam/Sandwich-QQ/sandwichjson"
)

// GatewayOp is the opcode of a gateway payload.
type GatewayOp int32

const (
	GatewayOpDispatch       GatewayOp = 0
	GatewayOpHeartbeat      GatewayOp = 1
	GatewayOpIdentify       GatewayOp = 2
	GatewayOpResume         GatewayOp = 6
	GatewayOpReconnect      GatewayOp = 7
	GatewayOpInvalidSession GatewayOp = 9
	GatewayOpHello          GatewayOp = 10
	GatewayOpHeartbeatAck   GatewayOp = 11

	// Only sent over webhooks.
	GatewayOpHTTPCallbackAck GatewayOp = 12
	GatewayOpWebhookVerify   GatewayOp = 13
)

var gatewayOpNames = map[GatewayOp]string{
	GatewayOpDispatch:        "Dispatch",
	GatewayOpHeartbeat:       "Heartbeat",
	GatewayOpIdentify:        "Identify",
	GatewayOpResume:          "Resume",
	GatewayOpReconnect:       "Reconnect",
	GatewayOpInvalidSession:  "InvalidSession",
	GatewayOpHello:           "Hello",
	GatewayOpHeartbeatAck:    "HeartbeatAck",
	GatewayOpHTTPCallbackAck: "HTTPCallbackAck",
	GatewayOpWebhookVerify:   "WebhookVerify",
}

func (op GatewayOp) String() string {
	if name, ok := gatewayOpNames[op]; ok {
		return name
	}

	return "Unknown(" + strconv.Itoa(int(op)) + ")"
}

// Payload is one gateway message. The concrete type is selected by its opcode.
type Payload interface {
	Op() GatewayOp
}

// Dispatch carries an application event.
type Dispatch struct {
	Sequence int64
	Type     string
	ID       string
	Data     sandwichjson.RawMessage
}

// Heartbeat carries the last sequence seen, nil before the first dispatch.
type Heartbeat struct {
	Sequence *int64
}

// Identify starts a new session.
type Identify struct {
	Token      string             `json:"token"`
	Intents    int32              `json:"intents"`
	Shard      [2]int32           `json:"shard"`
	Properties IdentifyProperties `json:"properties"`
}

// IdentifyProperties is the client metadata sent with Identify.
type IdentifyProperties struct {
	OS       string `json:"$os"`
	Language string `json:"$language"`
	SDK      string `json:"$sdk"`
}

// Resume continues an existing session from a sequence.
type Resume struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	Sequence  int64  `json:"seq"`
}

type Reconnect struct{}

type InvalidSession struct {
	Resumable bool
}

type Hello struct {
	HeartbeatInterval int64 `json:"heartbeat_interval"`
}

type HeartbeatAck struct{}

// HTTPCallbackAck acknowledges a webhook delivery.
type HTTPCallbackAck struct {
	Code int
}

// WebhookVerify is the challenge sent when a webhook address is registered.
type WebhookVerify struct {
	PlainToken string `json:"plain_token"`
	EventTS    string `json:"event_ts"`
}

// Opaque holds a payload with an opcode this package does not know.
type Opaque struct {
	Opcode GatewayOp
	Data   sandwichjson.RawMessage
}

func (*Dispatch) Op() GatewayOp        { return GatewayOpDispatch }
func (*Heartbeat) Op() GatewayOp       { return GatewayOpHeartbeat }
func (*Identify) Op() GatewayOp        { return GatewayOpIdentify }
func (*Resume) Op() GatewayOp          { return GatewayOpResume }
func (*Reconnect) Op() GatewayOp       { return GatewayOpReconnect }
func (*InvalidSession) Op() GatewayOp  { return GatewayOpInvalidSession }
func (*Hello) Op() GatewayOp           { return GatewayOpHello }
func (*HeartbeatAck) Op() GatewayOp    { return GatewayOpHeartbeatAck }
func (*HTTPCallbackAck) Op() GatewayOp { return GatewayOpHTTPCallbackAck }
func (*WebhookVerify) Op() GatewayOp   { return GatewayOpWebhookVerify }
func (p *Opaque) Op() GatewayOp        { return p.Opcode }

// DecodeError is returned when a gateway payload cannot be decoded.
type DecodeError struct {
	Op     *GatewayOp
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	msg := "failed to decode payload"
	if e.Op != nil {
		msg += " " + e.Op.String()
	}

	msg += ": " + e.Reason

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// receivedPayload is the wire envelope as read from the gateway.
type receivedPayload struct {
	Op       *GatewayOp              `json:"op"`
	Data     sandwichjson.RawMessage `json:"d"`
	Sequence *int64                  `json:"s"`
	Type     *string                 `json:"t"`
	ID       string                  `json:"id"`
}

type sentPayload struct {
	Op   GatewayOp `json:"op"`
	Data any       `json:"d"`
}

type sentDispatch struct {
	Op       GatewayOp               `json:"op"`
	Data     sandwichjson.RawMessage `json:"d"`
	Sequence int64                   `json:"s"`
	Type     string                  `json:"t"`
	ID       string                  `json:"id,omitempty"`
}

var nullData = []byte("null")

func isEmptyData(data []byte) bool {
	return len(data) == 0 || bytes.Equal(bytes.TrimSpace(data), nullData)
}

// DecodePayload decodes a gateway message. Unknown opcodes decode into *Opaque.
func DecodePayload(data []byte) (Payload, error) {
	var received receivedPayload

	if err := sandwichjson.Unmarshal(data, &received); err != nil {
		return nil, &DecodeError{Reason: "malformed envelope", Err: err}
	}

	if received.Op == nil {
		return nil, &DecodeError{Reason: "missing op"}
	}

	op := *received.Op

	switch op {
	case GatewayOpDispatch:
		switch {
		case isEmptyData(received.Data):
			return nil, &DecodeError{Op: &op, Reason: "missing d"}
		case received.Sequence == nil:
			return nil, &DecodeError{Op: &op, Reason: "missing s"}
		case received.Type == nil:
			return nil, &DecodeError{Op: &op, Reason: "missing t"}
		}

		return &Dispatch{
			Sequence: *received.Sequence,
			Type:     *received.Type,
			ID:       received.ID,
			Data:     received.Data,
		}, nil
	case GatewayOpHeartbeat:
		heartbeat := &Heartbeat{}

		if !isEmptyData(received.Data) {
			var sequence int64
			if err := sandwichjson.Unmarshal(received.Data, &sequence); err != nil {
				return nil, &DecodeError{Op: &op, Reason: "malformed sequence", Err: err}
			}

			heartbeat.Sequence = &sequence
		}

		return heartbeat, nil
	case GatewayOpIdentify:
		identify := &Identify{}

		return identify, decodeData(op, received.Data, identify)
	case GatewayOpResume:
		resume := &Resume{}

		return resume, decodeData(op, received.Data, resume)
	case GatewayOpReconnect:
		return &Reconnect{}, nil
	case GatewayOpInvalidSession:
		invalidSession := &InvalidSession{}

		// The platform may send no body at all, so a malformed flag is not an error.
		if !isEmptyData(received.Data) {
			_ = sandwichjson.Unmarshal(received.Data, &invalidSession.Resumable)
		}

		return invalidSession, nil
	case GatewayOpHello:
		hello := &Hello{}

		return hello, decodeData(op, received.Data, hello)
	case GatewayOpHeartbeatAck:
		return &HeartbeatAck{}, nil
	case GatewayOpHTTPCallbackAck:
		ack := &HTTPCallbackAck{}

		if !isEmptyData(received.Data) {
			if err := sandwichjson.Unmarshal(received.Data, &ack.Code); err != nil {
				return nil, &DecodeError{Op: &op, Reason: "malformed code", Err: err}
			}
		}

		return ack, nil
	case GatewayOpWebhookVerify:
		verify := &WebhookVerify{}

		return verify, decodeData(op, received.Data, verify)
	default:
		opaque := &Opaque{Opcode: op}

		if !isEmptyData(received.Data) {
			opaque.Data = received.Data
		}

		return opaque, nil
	}
}

func decodeData(op GatewayOp, data []byte, v any) error {
	if isEmptyData(data) {
		return &DecodeError{Op: &op, Reason: "missing d"}
	}

	if err := sandwichjson.Unmarshal(data, v); err != nil {
		return &DecodeError{Op: &op, Reason: "malformed d", Err: err}
	}

	return nil
}

// EncodePayload encodes a payload into its wire form.
func EncodePayload(payload Payload) ([]byte, error) {
	var data any

	switch p := payload.(type) {
	case *Dispatch:
		return sandwichjson.Marshal(sentDispatch{
			Op:       GatewayOpDispatch,
			Data:     p.Data,
			Sequence: p.Sequence,
			Type:     p.Type,
			ID:       p.ID,
		})
	case *Heartbeat:
		data = p.Sequence
	case *Identify, *Resume, *Hello, *WebhookVerify:
		data = p
	case *InvalidSession:
		data = p.Resumable
	case *HTTPCallbackAck:
		data = p.Code
	case *Opaque:
		if len(p.Data) > 0 {
			data = p.Data
		}
	case *Reconnect, *HeartbeatAck:
	default:
		return nil, fmt.Errorf("failed to encode payload: unsupported type %T", payload)
	}

	return sandwichjson.Marshal(sentPayload{
		Op:   payload.Op(),
		Data: data,
	})
}
