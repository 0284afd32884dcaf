package message

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	MaxContentLength = 5000
	MaxAttachments   = 10
)

type Type string

const (
	TypeText   Type = "text"
	TypeImage  Type = "image"
	TypeFile   Type = "file"
	TypeSystem Type = "system"
)

func (t Type) Valid() bool {
	switch t {
	case TypeText, TypeImage, TypeFile, TypeSystem:
		return true
	}
	return false
}

// Attachment describes an uploaded object referenced by a message. URL is filled
// with a short-lived signed link when the message is returned to a client.
type Attachment struct {
	Key         string `json:"key" validate:"required,max=512"`
	FileName    string `json:"fileName" validate:"required,max=255"`
	ContentType string `json:"contentType" validate:"required,max=128"`
	Size        int64  `json:"size" validate:"gte=0"`
	URL         string `json:"url,omitempty"`
}

// ReactionSummary is the cached emoji -> count aggregate of a message.
type ReactionSummary map[string]int

// Message represents the messages table
type Message struct {
	ID              uuid.UUID                           `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID  uuid.UUID                           `gorm:"type:uuid;not null;index:idx_messages_conversation_created,priority:1" json:"conversationId"`
	SenderID        uuid.UUID                           `gorm:"type:uuid;not null;index" json:"senderId"`
	RecipientID     uuid.UUID                           `gorm:"type:uuid;not null;index:idx_messages_recipient_status,priority:1" json:"recipientId"`
	Content         string                              `gorm:"type:text;not null" json:"content"`
	MessageType     Type                                `gorm:"type:varchar(16);not null" json:"messageType"`
	Status          Status                              `gorm:"type:varchar(16);not null;index:idx_messages_recipient_status,priority:2" json:"status"`
	DeliveredAt     *time.Time                          `json:"deliveredAt,omitempty"`
	ReadAt          *time.Time                          `json:"readAt,omitempty"`
	Attachments     datatypes.JSONSlice[Attachment]     `gorm:"type:jsonb" json:"attachments"`
	Metadata        datatypes.JSONMap                   `gorm:"type:jsonb" json:"metadata,omitempty"`
	ThreadID        *uuid.UUID                          `gorm:"type:uuid;index" json:"threadId,omitempty"`
	IsThreadReply   bool                                `gorm:"not null" json:"isThreadReply"`
	ReactionSummary datatypes.JSONType[ReactionSummary] `gorm:"type:jsonb" json:"reactionSummary"`
	SearchDocument  *string                             `gorm:"type:text" json:"-"`
	CreatedAt       time.Time                           `gorm:"not null;index:idx_messages_conversation_created,priority:2" json:"createdAt"`
	UpdatedAt       time.Time                           `json:"updatedAt"`
}

func (Message) TableName() string {
	return "messages"
}

// Involves reports whether userID is the sender or the recipient.
func (m Message) Involves(userID uuid.UUID) bool {
	return m.SenderID == userID || m.RecipientID == userID
}

// Counterpart returns the other party of the message relative to userID.
func (m Message) Counterpart(userID uuid.UUID) uuid.UUID {
	if m.SenderID == userID {
		return m.RecipientID
	}
	return m.SenderID
}

// Reaction represents message_reactions
type Reaction struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	MessageID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_reactions_message_user_emoji,priority:1" json:"messageId"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_reactions_message_user_emoji,priority:2" json:"userId"`
	Emoji     string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_reactions_message_user_emoji,priority:3" json:"emoji"`
	CreatedAt time.Time `json:"createdAt"`
}

func (Reaction) TableName() string {
	return "message_reactions"
}

// ReactionGroup lists who reacted with one emoji.
type ReactionGroup struct {
	Emoji string      `json:"emoji"`
	Count int         `json:"count"`
	Users []uuid.UUID `json:"users"`
}
