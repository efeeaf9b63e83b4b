package qq

import "github.com/WelcomerTeam/Sandwich-QQ/sandwichjson"

// EventType is the tag of a dispatch payload.
type EventType string

const (
	EventTypeReady   EventType = "READY"
	EventTypeResumed EventType = "RESUMED"

	EventTypeGuildCreate EventType = "GUILD_CREATE"
	EventTypeGuildUpdate EventType = "GUILD_UPDATE"
	EventTypeGuildDelete EventType = "GUILD_DELETE"

	EventTypeChannelCreate EventType = "CHANNEL_CREATE"
	EventTypeChannelUpdate EventType = "CHANNEL_UPDATE"
	EventTypeChannelDelete EventType = "CHANNEL_DELETE"

	EventTypeGuildMemberAdd    EventType = "GUILD_MEMBER_ADD"
	EventTypeGuildMemberUpdate EventType = "GUILD_MEMBER_UPDATE"
	EventTypeGuildMemberRemove EventType = "GUILD_MEMBER_REMOVE"

	EventTypeMessageCreate EventType = "MESSAGE_CREATE"
	EventTypeMessageDelete EventType = "MESSAGE_DELETE"

	EventTypeMessageReactionAdd    EventType = "MESSAGE_REACTION_ADD"
	EventTypeMessageReactionRemove EventType = "MESSAGE_REACTION_REMOVE"

	EventTypeDirectMessageCreate EventType = "DIRECT_MESSAGE_CREATE"
	EventTypeDirectMessageDelete EventType = "DIRECT_MESSAGE_DELETE"

	EventTypeOpenForumThreadCreate EventType = "OPEN_FORUM_THREAD_CREATE"
	EventTypeOpenForumThreadUpdate EventType = "OPEN_FORUM_THREAD_UPDATE"
	EventTypeOpenForumThreadDelete EventType = "OPEN_FORUM_THREAD_DELETE"
	EventTypeOpenForumPostCreate   EventType = "OPEN_FORUM_POST_CREATE"
	EventTypeOpenForumPostDelete   EventType = "OPEN_FORUM_POST_DELETE"
	EventTypeOpenForumReplyCreate  EventType = "OPEN_FORUM_REPLY_CREATE"
	EventTypeOpenForumReplyDelete  EventType = "OPEN_FORUM_REPLY_DELETE"

	EventTypeAudioOrLiveChannelMemberEnter EventType = "AUDIO_OR_LIVE_CHANNEL_MEMBER_ENTER"
	EventTypeAudioOrLiveChannelMemberExit  EventType = "AUDIO_OR_LIVE_CHANNEL_MEMBER_EXIT"

	EventTypeC2CMessageCreate     EventType = "C2C_MESSAGE_CREATE"
	EventTypeGroupAtMessageCreate EventType = "GROUP_AT_MESSAGE_CREATE"

	EventTypeInteractionCreate EventType = "INTERACTION_CREATE"

	EventTypeMessageAuditPass   EventType = "MESSAGE_AUDIT_PASS"
	EventTypeMessageAuditReject EventType = "MESSAGE_AUDIT_REJECT"

	EventTypeForumThreadCreate       EventType = "FORUM_THREAD_CREATE"
	EventTypeForumThreadUpdate       EventType = "FORUM_THREAD_UPDATE"
	EventTypeForumThreadDelete       EventType = "FORUM_THREAD_DELETE"
	EventTypeForumPostCreate         EventType = "FORUM_POST_CREATE"
	EventTypeForumPostDelete         EventType = "FORUM_POST_DELETE"
	EventTypeForumReplyCreate        EventType = "FORUM_REPLY_CREATE"
	EventTypeForumReplyDelete        EventType = "FORUM_REPLY_DELETE"
	EventTypeForumPublishAuditResult EventType = "FORUM_PUBLISH_AUDIT_RESULT"

	EventTypeAudioStart  EventType = "AUDIO_START"
	EventTypeAudioFinish EventType = "AUDIO_FINISH"
	EventTypeAudioOnMic  EventType = "AUDIO_ON_MIC"
	EventTypeAudioOffMic EventType = "AUDIO_OFF_MIC"

	EventTypeAtMessageCreate     EventType = "AT_MESSAGE_CREATE"
	EventTypePublicMessageDelete EventType = "PUBLIC_MESSAGE_DELETE"

	EventTypeFriendAdd       EventType = "FRIEND_ADD"
	EventTypeFriendDel       EventType = "FRIEND_DEL"
	EventTypeC2CMsgReject    EventType = "C2C_MSG_REJECT"
	EventTypeC2CMsgReceive   EventType = "C2C_MSG_RECEIVE"
	EventTypeGroupAddRobot   EventType = "GROUP_ADD_ROBOT"
	EventTypeGroupDelRobot   EventType = "GROUP_DEL_ROBOT"
	EventTypeGroupMsgReject  EventType = "GROUP_MSG_REJECT"
	EventTypeGroupMsgReceive EventType = "GROUP_MSG_RECEIVE"
)

// Event is a decoded dispatch.
type Event interface {
	EventName() string
	EventIdentifier() string
	IsToMe() bool
}

// EventMeta holds the fields every event shares. It is embedded by every
// event type.
type EventMeta struct {
	EventType EventType `json:"-"`
	EventID   string    `json:"-"`
}

func (m *EventMeta) EventName() string {
	return string(m.EventType)
}

func (m *EventMeta) EventIdentifier() string {
	return m.EventID
}

func (m *EventMeta) IsToMe() bool {
	return false
}

func (m *EventMeta) setMeta(meta EventMeta) {
	*m = meta
}

// ReadyEvent completes an Identify handshake.
type ReadyEvent struct {
	EventMeta

	Version   int32    `json:"version"`
	SessionID string   `json:"session_id"`
	User      User     `json:"user"`
	Shard     [2]int32 `json:"shard"`
}

type ResumedEvent struct {
	EventMeta
}

type GuildEvent struct {
	EventMeta
	Guild

	OpUserID string `json:"op_user_id"`
}

type ChannelEvent struct {
	EventMeta
	Channel

	OpUserID string `json:"op_user_id"`
}

type GuildMemberEvent struct {
	EventMeta
	Member

	GuildID  string `json:"guild_id"`
	OpUserID string `json:"op_user_id"`
}

// GuildMessageEvent is a message created in a guild channel or a direct
// message session.
type GuildMessageEvent struct {
	EventMeta
	Message

	ToMe bool `json:"-"`
}

func (e *GuildMessageEvent) IsToMe() bool {
	return e.ToMe
}

func (e *GuildMessageEvent) markToMe() {
	e.ToMe = true
}

// MentionsUser reports whether the message mentions the given user.
func (e *GuildMessageEvent) MentionsUser(userID string) bool {
	if userID == "" {
		return false
	}

	for _, mention := range e.Mentions {
		if mention.ID == userID {
			return true
		}
	}

	return false
}

type MessageDeleteEvent struct {
	EventMeta
	MessageDelete
}

// QQMessageEvent is a message sent to the bot in a C2C session or a group.
type QQMessageEvent struct {
	EventMeta
	QQMessage

	ToMe bool `json:"-"`
}

func (e *QQMessageEvent) IsToMe() bool {
	return e.ToMe
}

func (e *QQMessageEvent) markToMe() {
	e.ToMe = true
}

type InteractionEvent struct {
	EventMeta
	ButtonInteraction
}

type MessageAuditEvent struct {
	EventMeta
	MessageAudited
}

// Passed reports whether the audited message was accepted.
func (e *MessageAuditEvent) Passed() bool {
	return e.EventType == EventTypeMessageAuditPass
}

type MessageReactionEvent struct {
	EventMeta
	MessageReaction
}

type AudioEvent struct {
	EventMeta
	AudioAction
}

type AudioLiveMemberEvent struct {
	EventMeta
	AudioLiveMember
}

type ForumThreadEvent struct {
	EventMeta
	ForumSourceInfo

	ThreadInfo ThreadInfo `json:"thread_info"`
}

type ForumPostEvent struct {
	EventMeta
	ForumSourceInfo

	PostInfo PostInfo `json:"post_info"`
}

type ForumReplyEvent struct {
	EventMeta
	ForumSourceInfo

	ReplyInfo ReplyInfo `json:"reply_info"`
}

type ForumAuditEvent struct {
	EventMeta
	ForumSourceInfo
	ForumAuditResult
}

// OpenForumEvent only identifies the source; the platform sends no content.
type OpenForumEvent struct {
	EventMeta
	ForumSourceInfo
}

type FriendRobotEvent struct {
	EventMeta

	Timestamp Timestamp `json:"timestamp"`
	OpenID    string    `json:"openid"`
}

type GroupRobotEvent struct {
	EventMeta

	Timestamp      Timestamp `json:"timestamp"`
	GroupOpenID    string    `json:"group_openid"`
	OpMemberOpenID string    `json:"op_member_openid"`
}

// UnknownEvent carries a dispatch whose tag has no registered decoder.
type UnknownEvent struct {
	EventMeta

	Data sandwichjson.RawMessage `json:"data"`
}
