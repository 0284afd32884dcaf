package httpdto

import "prolink-chat/internal/domain/message"

type SendMessageRequest struct {
	RecipientID     string                 `json:"recipientId" binding:"required"`
	Content         string                 `json:"content" binding:"required"`
	MessageType     string                 `json:"messageType"`
	Attachments     []message.Attachment   `json:"attachments"`
	Metadata        map[string]interface{} `json:"metadata"`
	ParentMessageID string                 `json:"parentMessageId"`
}

type ReactionRequest struct {
	Emoji string `json:"emoji" binding:"required"`
}

type PageQuery struct {
	Page  int `form:"page"`
	Limit int `form:"limit"`
}

type ContextQuery struct {
	N int `form:"n"`
}

// SearchQuery carries the message search filters. from/to are RFC3339 timestamps.
type SearchQuery struct {
	Q              string `form:"q" binding:"required"`
	ConversationID string `form:"conversationId"`
	From           string `form:"from"`
	To             string `form:"to"`
	Type           string `form:"type"`
	Page           int    `form:"page"`
	Limit          int    `form:"limit"`
}

type MarkedReadResponse struct {
	Count int64 `json:"count"`
}
