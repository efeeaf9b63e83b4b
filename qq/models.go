package qq

import "github.com/WelcomerTeam/Sandwich-QQ/sandwichjson"

// User represents a user or a bot.
type User struct {
	ID               string `json:"id"`
	Username         string `json:"username,omitempty"`
	Avatar           string `json:"avatar,omitempty"`
	Bot              bool   `json:"bot,omitempty"`
	UnionOpenID      string `json:"union_openid,omitempty"`
	UnionUserAccount string `json:"union_user_account,omitempty"`
}

// Guild represents a guild the bot has joined.
type Guild struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Icon        string    `json:"icon"`
	OwnerID     string    `json:"owner_id"`
	Owner       bool      `json:"owner"`
	MemberCount int32     `json:"member_count"`
	MaxMembers  int32     `json:"max_members"`
	Description string    `json:"description"`
	JoinedAt    Timestamp `json:"joined_at"`
}

// ChannelType is the type of a channel.
type ChannelType int32

const (
	ChannelTypeText        ChannelType = 0
	ChannelTypeVoice       ChannelType = 2
	ChannelTypeCategory    ChannelType = 4
	ChannelTypeLive        ChannelType = 10005
	ChannelTypeApplication ChannelType = 10006
	ChannelTypeForum       ChannelType = 10007
)

type Channel struct {
	ID              string      `json:"id"`
	GuildID         string      `json:"guild_id"`
	Name            string      `json:"name"`
	Type            ChannelType `json:"type"`
	SubType         int32       `json:"sub_type"`
	Position        int32       `json:"position"`
	ParentID        string      `json:"parent_id,omitempty"`
	OwnerID         string      `json:"owner_id,omitempty"`
	PrivateType     int32       `json:"private_type,omitempty"`
	SpeakPermission int32       `json:"speak_permission,omitempty"`
	ApplicationID   string      `json:"application_id,omitempty"`
	Permissions     string      `json:"permissions,omitempty"`
}

// Member is a user within a guild.
type Member struct {
	User     *User     `json:"user,omitempty"`
	Nick     string    `json:"nick,omitempty"`
	Roles    []string  `json:"roles,omitempty"`
	JoinedAt Timestamp `json:"joined_at"`
}

type MessageAttachment struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type,omitempty"`
	Filename    string `json:"filename,omitempty"`
	Height      int32  `json:"height,omitempty"`
	Width       int32  `json:"width,omitempty"`
	Size        int64  `json:"size,omitempty"`
}

type MessageEmbed struct {
	Title       string                  `json:"title,omitempty"`
	Description string                  `json:"description,omitempty"`
	Prompt      string                  `json:"prompt,omitempty"`
	Thumbnail   sandwichjson.RawMessage `json:"thumbnail,omitempty"`
	Fields      sandwichjson.RawMessage `json:"fields,omitempty"`
}

type MessageReference struct {
	MessageID             string `json:"message_id"`
	IgnoreGetMessageError bool   `json:"ignore_get_message_error,omitempty"`
}

// Message is a message sent in a guild channel or a direct message session.
type Message struct {
	ID               string                  `json:"id"`
	ChannelID        string                  `json:"channel_id"`
	GuildID          string                  `json:"guild_id"`
	Content          string                  `json:"content,omitempty"`
	Timestamp        Timestamp               `json:"timestamp"`
	EditedTimestamp  Timestamp               `json:"edited_timestamp"`
	MentionEveryone  bool                    `json:"mention_everyone,omitempty"`
	Author           *User                   `json:"author,omitempty"`
	Attachments      []MessageAttachment     `json:"attachments,omitempty"`
	Embeds           []MessageEmbed          `json:"embeds,omitempty"`
	Mentions         []User                  `json:"mentions,omitempty"`
	Member           *Member                 `json:"member,omitempty"`
	Ark              sandwichjson.RawMessage `json:"ark,omitempty"`
	Seq              int64                   `json:"seq,omitempty"`
	SeqInChannel     string                  `json:"seq_in_channel,omitempty"`
	MessageReference *MessageReference       `json:"message_reference,omitempty"`
	SrcGuildID       string                  `json:"src_guild_id,omitempty"`
}

// MessageDelete describes a removed message and who removed it.
type MessageDelete struct {
	Message Message `json:"message"`
	OpUser  *User   `json:"op_user,omitempty"`
}

// MessageAudited is the outcome of the platform reviewing a message.
type MessageAudited struct {
	AuditID      string    `json:"audit_id"`
	MessageID    string    `json:"message_id,omitempty"`
	GuildID      string    `json:"guild_id"`
	ChannelID    string    `json:"channel_id"`
	AuditTime    Timestamp `json:"audit_time"`
	CreateTime   Timestamp `json:"create_time"`
	SeqInChannel string    `json:"seq_in_channel,omitempty"`
}

type Emoji struct {
	ID   string `json:"id"`
	Type int32  `json:"type"`
}

// ReactionTarget is the object a reaction was added to. The platform sends
// the type as either a number or a string.
type ReactionTarget struct {
	ID   string                  `json:"id"`
	Type sandwichjson.RawMessage `json:"type"`
}

type MessageReaction struct {
	UserID    string         `json:"user_id"`
	GuildID   string         `json:"guild_id"`
	ChannelID string         `json:"channel_id"`
	Target    ReactionTarget `json:"target"`
	Emoji     Emoji          `json:"emoji"`
}

type AudioAction struct {
	GuildID   string `json:"guild_id"`
	ChannelID string `json:"channel_id"`
	AudioURL  string `json:"audio_url,omitempty"`
	Text      string `json:"text,omitempty"`
}

// AudioLiveMember is a member entering or leaving an audio or live channel.
type AudioLiveMember struct {
	GuildID     string `json:"guild_id"`
	ChannelID   string `json:"channel_id"`
	ChannelType int32  `json:"channel_type"`
	UserID      string `json:"user_id"`
}

// ForumSourceInfo identifies where a forum object was posted.
type ForumSourceInfo struct {
	GuildID   string `json:"guild_id"`
	ChannelID string `json:"channel_id"`
	AuthorID  string `json:"author_id"`
}

// ThreadInfo carries forum rich text as the raw value sent by the platform,
// which is usually a JSON document encoded as a string.
type ThreadInfo struct {
	ThreadID string                  `json:"thread_id"`
	Title    sandwichjson.RawMessage `json:"title,omitempty"`
	Content  sandwichjson.RawMessage `json:"content,omitempty"`
	DateTime Timestamp               `json:"date_time"`
}

type PostInfo struct {
	ThreadID string                  `json:"thread_id"`
	PostID   string                  `json:"post_id"`
	Content  sandwichjson.RawMessage `json:"content,omitempty"`
	DateTime Timestamp               `json:"date_time"`
}

type ReplyInfo struct {
	ThreadID string                  `json:"thread_id"`
	PostID   string                  `json:"post_id"`
	ReplyID  string                  `json:"reply_id"`
	Content  sandwichjson.RawMessage `json:"content,omitempty"`
	DateTime Timestamp               `json:"date_time"`
}

type ForumAuditResult struct {
	ThreadID string `json:"thread_id"`
	PostID   string `json:"post_id"`
	ReplyID  string `json:"reply_id"`
	Type     int32  `json:"type"`
	Result   int32  `json:"result,omitempty"`
	ErrMsg   string `json:"err_msg,omitempty"`
}

// QQAuthor is the sender of a C2C or group message. Only one of the open ids
// is set depending on where the message was sent.
type QQAuthor struct {
	ID           string `json:"id"`
	UserOpenID   string `json:"user_openid,omitempty"`
	MemberOpenID string `json:"member_openid,omitempty"`
}

type QQAttachment struct {
	ContentType string `json:"content_type"`
	Filename    string `json:"filename,omitempty"`
	Height      string `json:"height,omitempty"`
	Width       string `json:"width,omitempty"`
	Size        string `json:"size,omitempty"`
	URL         string `json:"url,omitempty"`
}

// QQMessage is a message received in a C2C session or a group.
type QQMessage struct {
	ID          string         `json:"id"`
	Author      QQAuthor       `json:"author"`
	Content     string         `json:"content"`
	Timestamp   string         `json:"timestamp"`
	Attachments []QQAttachment `json:"attachments,omitempty"`
	GroupOpenID string         `json:"group_openid,omitempty"`
}

type ButtonInteractionContent struct {
	UserID     string `json:"user_id"`
	MessageID  string `json:"message_id"`
	ButtonID   string `json:"button_id"`
	ButtonData string `json:"button_data"`
}

type ButtonInteractionData struct {
	Resolved ButtonInteractionContent `json:"resolved"`
}

// ButtonInteraction is sent when a user presses a message button.
type ButtonInteraction struct {
	ID            string                `json:"id"`
	Type          int32                 `json:"type"`
	Version       int32                 `json:"version"`
	Timestamp     string                `json:"timestamp"`
	ChatType      int32                 `json:"chat_type"`
	GuildID       string                `json:"guild_id,omitempty"`
	ChannelID     string                `json:"channel_id,omitempty"`
	GroupOpenID   string                `json:"group_open_id,omitempty"`
	ApplicationID string                `json:"application_id"`
	Data          ButtonInteractionData `json:"data"`
}
