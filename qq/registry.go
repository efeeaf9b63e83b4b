package qq

import (
	"fmt"

	"github.com/WelcomerTeam/Sandwich-QQ/sandwichjson"
)

type eventDecoder func(meta EventMeta, data []byte) (Event, error)

type decodableEvent[T any] interface {
	*T
	Event
	setMeta(meta EventMeta)
}

func decodeEvent[T any, PT decodableEvent[T]](meta EventMeta, data []byte) (Event, error) {
	event := PT(new(T))

	if err := sandwichjson.Unmarshal(data, event); err != nil {
		return nil, err
	}

	event.setMeta(meta)

	return event, nil
}

// RESUMED carries no meaningful body.
func decodeResumed(meta EventMeta, _ []byte) (Event, error) {
	return &ResumedEvent{EventMeta: meta}, nil
}

var eventDecoders = map[EventType]eventDecoder{
	EventTypeReady:   decodeEvent[ReadyEvent],
	EventTypeResumed: decodeResumed,

	EventTypeGuildCreate: decodeEvent[GuildEvent],
	EventTypeGuildUpdate: decodeEvent[GuildEvent],
	EventTypeGuildDelete: decodeEvent[GuildEvent],

	EventTypeChannelCreate: decodeEvent[ChannelEvent],
	EventTypeChannelUpdate: decodeEvent[ChannelEvent],
	EventTypeChannelDelete: decodeEvent[ChannelEvent],

	EventTypeGuildMemberAdd:    decodeEvent[GuildMemberEvent],
	EventTypeGuildMemberUpdate: decodeEvent[GuildMemberEvent],
	EventTypeGuildMemberRemove: decodeEvent[GuildMemberEvent],

	EventTypeMessageCreate:       decodeEvent[GuildMessageEvent],
	EventTypeAtMessageCreate:     decodeEvent[GuildMessageEvent],
	EventTypeDirectMessageCreate: decodeEvent[GuildMessageEvent],

	EventTypeMessageDelete:       decodeEvent[MessageDeleteEvent],
	EventTypePublicMessageDelete: decodeEvent[MessageDeleteEvent],
	EventTypeDirectMessageDelete: decodeEvent[MessageDeleteEvent],

	EventTypeC2CMessageCreate:     decodeEvent[QQMessageEvent],
	EventTypeGroupAtMessageCreate: decodeEvent[QQMessageEvent],

	EventTypeInteractionCreate: decodeEvent[InteractionEvent],

	EventTypeMessageAuditPass:   decodeEvent[MessageAuditEvent],
	EventTypeMessageAuditReject: decodeEvent[MessageAuditEvent],

	EventTypeMessageReactionAdd:    decodeEvent[MessageReactionEvent],
	EventTypeMessageReactionRemove: decodeEvent[MessageReactionEvent],

	EventTypeAudioStart:  decodeEvent[AudioEvent],
	EventTypeAudioFinish: decodeEvent[AudioEvent],
	EventTypeAudioOnMic:  decodeEvent[AudioEvent],
	EventTypeAudioOffMic: decodeEvent[AudioEvent],

	EventTypeAudioOrLiveChannelMemberEnter: decodeEvent[AudioLiveMemberEvent],
	EventTypeAudioOrLiveChannelMemberExit:  decodeEvent[AudioLiveMemberEvent],

	EventTypeForumThreadCreate:       decodeEvent[ForumThreadEvent],
	EventTypeForumThreadUpdate:       decodeEvent[ForumThreadEvent],
	EventTypeForumThreadDelete:       decodeEvent[ForumThreadEvent],
	EventTypeForumPostCreate:         decodeEvent[ForumPostEvent],
	EventTypeForumPostDelete:         decodeEvent[ForumPostEvent],
	EventTypeForumReplyCreate:        decodeEvent[ForumReplyEvent],
	EventTypeForumReplyDelete:        decodeEvent[ForumReplyEvent],
	EventTypeForumPublishAuditResult: decodeEvent[ForumAuditEvent],

	EventTypeOpenForumThreadCreate: decodeEvent[OpenForumEvent],
	EventTypeOpenForumThreadUpdate: decodeEvent[OpenForumEvent],
	EventTypeOpenForumThreadDelete: decodeEvent[OpenForumEvent],
	EventTypeOpenForumPostCreate:   decodeEvent[OpenForumEvent],
	EventTypeOpenForumPostDelete:   decodeEvent[OpenForumEvent],
	EventTypeOpenForumReplyCreate:  decodeEvent[OpenForumEvent],
	EventTypeOpenForumReplyDelete:  decodeEvent[OpenForumEvent],

	EventTypeFriendAdd:     decodeEvent[FriendRobotEvent],
	EventTypeFriendDel:     decodeEvent[FriendRobotEvent],
	EventTypeC2CMsgReject:  decodeEvent[FriendRobotEvent],
	EventTypeC2CMsgReceive: decodeEvent[FriendRobotEvent],

	EventTypeGroupAddRobot:   decodeEvent[GroupRobotEvent],
	EventTypeGroupDelRobot:   decodeEvent[GroupRobotEvent],
	EventTypeGroupMsgReject:  decodeEvent[GroupRobotEvent],
	EventTypeGroupMsgReceive: decodeEvent[GroupRobotEvent],
}

// Messages of these types are always addressed to the bot.
var toMeEventTypes = map[EventType]bool{
	EventTypeAtMessageCreate:      true,
	EventTypeDirectMessageCreate:  true,
	EventTypeC2CMessageCreate:     true,
	EventTypeGroupAtMessageCreate: true,
}

// DecodeEvent decodes the data of a dispatch into its event type. Dispatches
// with an unregistered tag are returned as *UnknownEvent.
func DecodeEvent(dispatch *Dispatch) (Event, error) {
	meta := EventMeta{
		EventType: EventType(dispatch.Type),
		EventID:   dispatch.ID,
	}

	decoder, ok := eventDecoders[meta.EventType]
	if !ok {
		return &UnknownEvent{EventMeta: meta, Data: dispatch.Data}, nil
	}

	event, err := decoder(meta, dispatch.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s event: %w", dispatch.Type, err)
	}

	if toMeEventTypes[meta.EventType] {
		if marker, ok := event.(interface{ markToMe() }); ok {
			marker.markToMe()
		}
	}

	return event, nil
}
