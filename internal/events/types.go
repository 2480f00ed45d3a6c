package events

// Inbound frame tags. Every frame a client sends carries exactly one of
// these; anything else is logged and dropped.
const (
	InTyping                = "typing"
	InJoinConversation      = "join-conversation"
	InLeaveConversation     = "leave-conversation"
	InSendMessage           = "send-message"
	InMarkConversationRead  = "mark-conversation-as-read"
	InEditMessage           = "edit-message"
	InDeleteMessage         = "delete-message"
	InAddReaction           = "add-reaction"
	InRemoveReaction        = "remove-reaction"
	InRequestMissedMessages = "request-missed-messages"
	InPing                  = "ping"
)

// Outbound frame tags.
const (
	OutAck                  = "ack"
	OutUserStatus           = "user-status"
	OutUserTyping           = "user-typing"
	OutUserJoined           = "user-joined-conversation"
	OutUserLeft             = "user-left-conversation"
	OutReceiveMessage       = "receive-message"
	OutMessageDelivered     = "message-delivered"
	OutMessagesRead         = "messages-read"
	OutMessageEdited        = "message-edited"
	OutMessageDeleted       = "message-deleted"
	OutReactionAdded        = "reaction-added"
	OutReactionRemoved      = "reaction-removed"
	OutMissedMessages       = "missed-messages"
	OutConversationCreated  = "conversation-created"
	OutGroupUserAdded       = "group-user-added"
	OutGroupUserRemoved     = "group-user-removed"
	OutRemovedFromGroup     = "removed-from-group"
	OutGroupUpdated         = "group-updated"
	OutPong                 = "pong"
)

// Bridge event types published by the REST side over Redis. The hub
// subscriber translates them into room membership changes and outbound
// frames for affected users.
const (
	BridgeConversationCreated = "conversation.created"
	BridgeConversationUpdated = "conversation.updated"
	BridgeParticipantAdded    = "participant.added"
	BridgeParticipantRemoved  = "participant.removed"
)

// Redis channel names.
const (
	ChannelPrefixConversation = "channel:conversation:"
	ChannelPrefixPresence     = "channel:presence:"
	ChannelHubBridge          = "channel:hub:bridge"
)
