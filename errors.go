package sandwich

import (
	"errors"
	"fmt"
)

var (
	ErrApplicationMissingIdentifier = errors.New("application missing identifier")
	ErrApplicationMissingToken      = errors.New("application missing token or secret")
	ErrApplicationIdentifierExists  = errors.New("application identifier already exists")
	ErrApplicationInvalidShard      = errors.New("application shard must satisfy 0 <= index < total")
	ErrApplicationNotFound          = errors.New("application not found")
	ErrApplicationAlreadyStarted    = errors.New("application already started")

	ErrBootstrapFailed       = errors.New("gateway bootstrap failed")
	ErrSessionLimitExhausted = errors.New("session start limit exhausted")

	ErrShardHelloExpected            = errors.New("shard expected hello")
	ErrShardReadyExpected            = errors.New("shard expected ready")
	ErrShardInvalidHeartbeatInterval = errors.New("shard invalid heartbeat interval")
	ErrShardInvalidSession           = errors.New("shard session invalidated")
	ErrShardReconnectRequested       = errors.New("shard reconnect requested")

	ErrSocketClosed = errors.New("socket closed")

	ErrUnauthorized    = errors.New("unauthorized")
	ErrAPINotAvailable = errors.New("api not available")
	ErrRateLimited     = errors.New("rate limited")

	ErrAuditResultNotFound = errors.New("audit result not found")

	ErrNoGatewayHandler = errors.New("no gateway handler found")
	ErrProducerMissing  = errors.New("no producer client found")
)

// ActionFailedError is returned when a REST call fails.
type ActionFailedError struct {
	StatusCode int
	Code       int
	Message    string
	TraceID    string

	// Kind is one of ErrUnauthorized, ErrAPINotAvailable or ErrRateLimited
	// when the status code maps to one.
	Kind error
}

func (e *ActionFailedError) Error() string {
	return fmt.Sprintf("action failed with status %d: code=%d message=%q trace_id=%s", e.StatusCode, e.Code, e.Message, e.TraceID)
}

func (e *ActionFailedError) Unwrap() error {
	return e.Kind
}
