package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"prolink-chat/internal/domain/message"
	"prolink-chat/internal/events"
	"prolink-chat/internal/metrics"
	"prolink-chat/internal/repository"
	prolink_errors "prolink-chat/pkg/errors"
	"prolink-chat/pkg/logger"
)

// DeliveryService applies the sent -> delivered -> read lifecycle. Every transition is
// a conditional update in the store, so repeated or late events are no-ops.
type DeliveryService struct {
	store    repository.Store
	presence PresenceChecker
	pusher   Pusher
	metrics  *metrics.Collectors
	log      *logger.Logger
	now      func() time.Time
}

func NewDeliveryService(store repository.Store, presence PresenceChecker, pusher Pusher, m *metrics.Collectors, log *logger.Logger) *DeliveryService {
	return &DeliveryService{
		store:    store,
		presence: presence,
		pusher:   pusher,
		metrics:  m,
		log:      log.Named("delivery"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// OnCreated checks recipient presence once. An online recipient moves the message to
// delivered and the sender is told. A recipient who connects later does not trigger it.
func (s *DeliveryService) OnCreated(ctx context.Context, m *message.Message) {
	online, err := s.presence.CheckOnline(ctx, m.RecipientID)
	if err != nil {
		s.log.WithContext(ctx).Warn("presence check failed, treating recipient as offline",
			zap.String("message_id", m.ID.String()),
			zap.Error(err),
		)
		return
	}
	if !online {
		return
	}

	at := s.now()
	applied, err := s.advance(ctx, m.ID, message.StatusDelivered, at)
	if err != nil {
		s.log.WithContext(ctx).Error("failed to mark message delivered",
			zap.String("message_id", m.ID.String()),
			zap.Error(err),
		)
		return
	}
	if !applied {
		return
	}

	m.Status = message.StatusDelivered
	m.DeliveredAt = &at

	s.pusher.Send(m.SenderID, events.New(events.TypeMessageDelivered, events.DeliveredPayload{
		MessageID:   m.ID,
		DeliveredAt: at,
	}))
}

// advance applies a single forward transition. It reports false when the message was
// already at or beyond status.
func (s *DeliveryService) advance(ctx context.Context, messageID uuid.UUID, status message.Status, at time.Time) (bool, error) {
	if status == message.StatusSent || !status.Valid() {
		return false, fmt.Errorf("%w: cannot advance to %q", prolink_errors.ErrInvalidInput, status)
	}
	applied, err := s.store.Messages().AdvanceStatus(ctx, messageID, status, at)
	if err != nil {
		return false, err
	}
	if applied {
		s.metrics.Transition(string(status), 1)
	}
	return applied, nil
}

// MarkConversationRead marks every unread message from otherID to readerID as read.
// Messages already read keep their original read timestamp.
func (s *DeliveryService) MarkConversationRead(ctx context.Context, readerID, otherID uuid.UUID) (int64, error) {
	if otherID == uuid.Nil || readerID == otherID {
		return 0, fmt.Errorf("%w: invalid conversation partner", prolink_errors.ErrInvalidInput)
	}

	conversationID := message.ConversationIDFor(readerID, otherID)
	at := s.now()
	n, err := s.store.Messages().MarkConversationRead(ctx, conversationID, readerID, at)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}

	s.metrics.Transition(string(message.StatusRead), n)
	s.pusher.Send(otherID, events.New(events.TypeMessagesRead, events.ReadPayload{
		ConversationID: conversationID,
		ReaderID:       readerID,
		Count:          n,
		ReadAt:         at,
	}))
	return n, nil
}
