package notification

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Type string

const (
	TypeNewMessage     Type = "new_message"
	TypeReaction       Type = "reaction"
	TypeThreadReply    Type = "thread_reply"
	TypeNewReview      Type = "new_review"
	TypeReviewResponse Type = "review_response"
	TypeModeration     Type = "moderation"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh:
		return true
	}
	return false
}

// Notification represents notifications
type Notification struct {
	ID        uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID         `gorm:"type:uuid;not null;index:idx_notifications_user_read,priority:1" json:"userId"`
	Type      Type              `gorm:"type:varchar(32);not null" json:"type"`
	Title     string            `gorm:"type:varchar(255);not null" json:"title"`
	Content   string            `gorm:"type:text" json:"content"`
	Payload   datatypes.JSONMap `gorm:"type:jsonb" json:"payload,omitempty"`
	Priority  Priority          `gorm:"type:varchar(8);not null" json:"priority"`
	IsRead    bool              `gorm:"not null;index:idx_notifications_user_read,priority:2" json:"isRead"`
	ReadAt    *time.Time        `json:"readAt,omitempty"`
	CreatedAt time.Time         `gorm:"index" json:"createdAt"`
}

func (Notification) TableName() string {
	return "notifications"
}

// Preference holds per-type opt-outs for one user. A missing row means everything is enabled.
type Preference struct {
	UserID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"userId"`
	NewMessage     bool      `gorm:"not null" json:"newMessage"`
	Reaction       bool      `gorm:"not null" json:"reaction"`
	ThreadReply    bool      `gorm:"not null" json:"threadReply"`
	NewReview      bool      `gorm:"not null" json:"newReview"`
	ReviewResponse bool      `gorm:"not null" json:"reviewResponse"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func (Preference) TableName() string {
	return "notification_preferences"
}

func DefaultPreference(userID uuid.UUID) Preference {
	return Preference{
		UserID:         userID,
		NewMessage:     true,
		Reaction:       true,
		ThreadReply:    true,
		NewReview:      true,
		ReviewResponse: true,
	}
}

// Allows reports whether the user wants notifications of type t.
func (p Preference) Allows(t Type) bool {
	switch t {
	case TypeNewMessage:
		return p.NewMessage
	case TypeReaction:
		return p.Reaction
	case TypeThreadReply:
		return p.ThreadReply
	case TypeNewReview:
		return p.NewReview
	case TypeReviewResponse:
		return p.ReviewResponse
	}
	return true
}
