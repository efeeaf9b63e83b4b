package qq

// Intent selects a category of events pushed by the gateway.
type Intent int32

const (
	IntentGuilds                Intent = 1 << 0
	IntentGuildMembers          Intent = 1 << 1
	IntentGuildMessages         Intent = 1 << 9
	IntentGuildMessageReactions Intent = 1 << 10
	IntentDirectMessage         Intent = 1 << 12
	IntentOpenForumEvent        Intent = 1 << 18
	IntentAudioOrLiveMember     Intent = 1 << 19
	IntentC2CGroupAtMessages    Intent = 1 << 25
	IntentInteraction           Intent = 1 << 26
	IntentMessageAudit          Intent = 1 << 27
	IntentForumEvent            Intent = 1 << 28
	IntentAudioAction           Intent = 1 << 29
	IntentAtMessages            Intent = 1 << 30
)

// DefaultIntents is used when a bot does not configure intents.
const DefaultIntents = IntentGuilds |
	IntentGuildMembers |
	IntentGuildMessageReactions |
	IntentMessageAudit |
	IntentAtMessages

// GatewayBot is the response of the gateway discovery endpoint.
type GatewayBot struct {
	URL               string            `json:"url"`
	Shards            int32             `json:"shards"`
	SessionStartLimit SessionStartLimit `json:"session_start_limit"`
}

// SessionStartLimit describes how many sessions may still be started.
type SessionStartLimit struct {
	Total          int32 `json:"total"`
	Remaining      int32 `json:"remaining"`
	ResetAfter     int64 `json:"reset_after"`
	MaxConcurrency int32 `json:"max_concurrency"`
}
