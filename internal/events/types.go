package events

// Server -> client event types
const (
	TypeNewMessage       = "NEW_MESSAGE"
	TypeMessageDelivered = "MESSAGE_DELIVERED"
	TypeMessagesRead     = "MESSAGES_READ"
	TypeMessageReaction  = "MESSAGE_REACTION"
	TypeTypingIndicator  = "TYPING_INDICATOR"
	TypeNewNotification  = "NEW_NOTIFICATION"
	TypeNewMessageThread = "NEW_MESSAGE_THREAD"
	TypeThreadUpdated    = "MESSAGE_THREAD_UPDATED"
)

// Client -> server frame types
const (
	FrameTyping       = "typing"
	FrameReadMessages = "read_messages"
)
