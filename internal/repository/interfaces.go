package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"prolink-chat/internal/domain/message"
	"prolink-chat/internal/domain/notification"
)

type MessageRepository interface {
	Create(ctx context.Context, m *message.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (message.Message, error)
	// GetForUpdate loads the row and holds a write lock on it until the transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (message.Message, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// AdvanceStatus moves a single message forward to status. It reports false when the
	// message was already at or past status.
	AdvanceStatus(ctx context.Context, id uuid.UUID, status message.Status, at time.Time) (bool, error)
	MarkConversationRead(ctx context.Context, conversationID, recipientID uuid.UUID, at time.Time) (int64, error)

	UpdateReactionSummary(ctx context.Context, id uuid.UUID, summary message.ReactionSummary) error
	AttachThread(ctx context.Context, id, threadID uuid.UUID) error
	UpdateSearchDocument(ctx context.Context, id uuid.UUID, document string) error

	ListConversation(ctx context.Context, conversationID uuid.UUID, page, limit int) ([]message.Message, int64, error)
	ListConversations(ctx context.Context, userID uuid.UUID, page, limit int) ([]ConversationSummary, error)
	Around(ctx context.Context, m message.Message, n int) ([]message.Message, []message.Message, error)
}

type ReactionRepository interface {
	Exists(ctx context.Context, messageID, userID uuid.UUID, emoji string) (bool, error)
	Create(ctx context.Context, r *message.Reaction) error
	Summarize(ctx context.Context, messageID uuid.UUID) (message.ReactionSummary, error)
	Groups(ctx context.Context, messageID uuid.UUID) ([]message.ReactionGroup, error)
}

type ThreadRepository interface {
	Create(ctx context.Context, t *message.MessageThread) error
	GetByID(ctx context.Context, id uuid.UUID) (message.MessageThread, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (message.MessageThread, error)
	GetByParent(ctx context.Context, parentMessageID uuid.UUID) (message.MessageThread, error)
	Update(ctx context.Context, t message.MessageThread) error
	Stats(ctx context.Context, threadID uuid.UUID) (ThreadStats, error)
	Replies(ctx context.Context, threadID uuid.UUID, page, limit int) ([]message.Message, int64, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, n *notification.Notification) error
	List(ctx context.Context, userID uuid.UUID, unreadOnly bool, page, limit int) ([]notification.Notification, int64, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int64, error)
	MarkRead(ctx context.Context, userID uuid.UUID, ids []uuid.UUID, at time.Time) (int64, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
	DeleteAll(ctx context.Context, userID uuid.UUID) (int64, error)
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)

	GetPreference(ctx context.Context, userID uuid.UUID) (notification.Preference, error)
	SavePreference(ctx context.Context, p *notification.Preference) error
}

type SearchRepository interface {
	Search(ctx context.Context, q SearchQuery) ([]SearchHit, int64, error)
}

// Store groups the repositories and runs work atomically.
type Store interface {
	Messages() MessageRepository
	Reactions() ReactionRepository
	Threads() ThreadRepository
	Notifications() NotificationRepository
	Search() SearchRepository
	// WithTx runs fn against a transaction-scoped Store. Returning an error rolls back.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// ConversationSummary is one row of a user's conversation list.
type ConversationSummary struct {
	ConversationID uuid.UUID       `json:"conversationId"`
	OtherUserID    uuid.UUID       `json:"otherUserId"`
	LastMessage    message.Message `json:"lastMessage"`
	UnreadCount    int64           `json:"unreadCount"`
}

// ThreadStats is recomputed from the messages that reference a thread.
type ThreadStats struct {
	ReplyCount  int64
	LatestReply *message.Message
}

type SearchQuery struct {
	UserID         uuid.UUID
	Terms          string
	ConversationID *uuid.UUID
	From           *time.Time
	To             *time.Time
	MessageType    *message.Type
	Page           int
	Limit          int
}

type SearchHit struct {
	Message   message.Message `json:"message"`
	Rank      float64         `json:"rank"`
	Highlight string          `json:"highlight"`
}
