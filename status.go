package sandwich

type ApplicationStatus int32

const (
	ApplicationStatusIdle ApplicationStatus = iota
	ApplicationStatusFailed
	ApplicationStatusStarting
	ApplicationStatusConnecting
	ApplicationStatusRunning
	ApplicationStatusStopping
	ApplicationStatusStopped
)

func (status ApplicationStatus) String() string {
	return []string{
		"Idle",
		"Failed",
		"Starting",
		"Connecting",
		"Running",
		"Stopping",
		"Stopped",
	}[status]
}

type ShardStatus int32

const (
	ShardStatusIdle ShardStatus = iota
	ShardStatusConnecting
	ShardStatusAwaitingHello
	ShardStatusAuthenticating
	ShardStatusConnected
	ShardStatusReconnecting
	ShardStatusClosing
	ShardStatusStopped
)

func (status ShardStatus) String() string {
	return []string{
		"Idle",
		"Connecting",
		"AwaitingHello",
		"Authenticating",
		"Connected",
		"Reconnecting",
		"Closing",
		"Stopped",
	}[status]
}

func (status ShardStatus) MarshalText() ([]byte, error) {
	return []byte(status.String()), nil
}

func (status ApplicationStatus) MarshalText() ([]byte, error) {
	return []byte(status.String()), nil
}
