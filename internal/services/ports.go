package services

import (
	"context"

	"github.com/google/uuid"

	"prolink-chat/internal/events"
)

// Pusher delivers events to live connections. Delivery is best effort; an offline
// user is not an error.
type Pusher interface {
	Send(userID uuid.UUID, event events.Event)
	BroadcastExcept(excluded uuid.UUID, participants []uuid.UUID, event events.Event)
}

// PresenceChecker reports whether a user currently has a live connection.
type PresenceChecker interface {
	CheckOnline(ctx context.Context, userID uuid.UUID) (bool, error)
}

// AttachmentSigner turns an attachment object key into a short-lived download URL.
type AttachmentSigner interface {
	PresignGet(ctx context.Context, key string) (string, error)
}
