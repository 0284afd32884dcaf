package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"prolink-chat/internal/domain/message"
	"prolink-chat/internal/domain/notification"
	"prolink-chat/internal/events"
	"prolink-chat/internal/repository"
	prolink_errors "prolink-chat/pkg/errors"
	"prolink-chat/pkg/logger"
	"prolink-chat/pkg/validator"
)

type ReactionResult struct {
	Reaction message.Reaction        `json:"reaction"`
	Summary  message.ReactionSummary `json:"summary"`
	Groups   []message.ReactionGroup `json:"groups"`
}

// ReactionService stores reactions and keeps the cached per-emoji summary on the
// message in step with the reaction rows.
type ReactionService struct {
	store         repository.Store
	pusher        Pusher
	notifications *NotificationService
	validator     *validator.Validator
	log           *logger.Logger
	now           func() time.Time
}

func NewReactionService(store repository.Store, pusher Pusher, notifications *NotificationService, v *validator.Validator, log *logger.Logger) *ReactionService {
	return &ReactionService{
		store:         store,
		pusher:        pusher,
		notifications: notifications,
		validator:     v,
		log:           log.Named("reactions"),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// AddReaction records emoji from userID on a message. The message row is locked while
// the summary is recounted from the reaction rows, so concurrent reactors cannot
// overwrite each other's counts.
func (s *ReactionService) AddReaction(ctx context.Context, userID, messageID uuid.UUID, emoji string) (ReactionResult, error) {
	if err := s.validator.Var("emoji", emoji, "required,emoji"); err != nil {
		return ReactionResult{}, err
	}

	var (
		result ReactionResult
		msg    message.Message
		note   *notification.Notification
	)
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		m, err := tx.Messages().GetForUpdate(ctx, messageID)
		if err != nil {
			return err
		}
		if !m.Involves(userID) {
			return prolink_errors.ErrNotFound
		}

		exists, err := tx.Reactions().Exists(ctx, messageID, userID, emoji)
		if err != nil {
			return err
		}
		if exists {
			return prolink_errors.ErrDuplicateReaction
		}

		reaction := message.Reaction{
			ID:        uuid.New(),
			MessageID: messageID,
			UserID:    userID,
			Emoji:     emoji,
			CreatedAt: s.now(),
		}
		if err := tx.Reactions().Create(ctx, &reaction); err != nil {
			return err
		}

		summary, err := tx.Reactions().Summarize(ctx, messageID)
		if err != nil {
			return err
		}
		if err := tx.Messages().UpdateReactionSummary(ctx, messageID, summary); err != nil {
			return err
		}
		groups, err := tx.Reactions().Groups(ctx, messageID)
		if err != nil {
			return err
		}

		if m.SenderID != userID {
			note, err = s.notifications.Record(ctx, tx, NotifyRequest{
				UserID:  m.SenderID,
				Type:    notification.TypeReaction,
				Title:   "New reaction",
				Content: emoji + " on \"" + message.Preview(m.Content) + "\"",
				Payload: map[string]interface{}{
					"messageId":      m.ID.String(),
					"conversationId": m.ConversationID.String(),
					"userId":         userID.String(),
					"reaction":       emoji,
				},
				Priority: notification.PriorityLow,
			})
			if err != nil {
				return err
			}
		}

		msg = m
		result = ReactionResult{Reaction: reaction, Summary: summary, Groups: groups}
		return nil
	})
	if err != nil {
		return ReactionResult{}, err
	}

	s.pusher.BroadcastExcept(userID, []uuid.UUID{msg.SenderID, msg.RecipientID}, events.New(events.TypeMessageReaction, events.ReactionPayload{
		MessageID: messageID,
		Reaction:  emoji,
		User:      events.UserRef{ID: userID},
		Summary:   result.Summary,
		Reactors:  result.Groups,
	}))
	s.notifications.Publish(note)

	return result, nil
}

// Reactions returns the grouped reactions of a message visible to userID.
func (s *ReactionService) Reactions(ctx context.Context, userID, messageID uuid.UUID) ([]message.ReactionGroup, error) {
	m, err := s.store.Messages().GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if !m.Involves(userID) {
		return nil, prolink_errors.ErrNotFound
	}
	return s.store.Reactions().Groups(ctx, messageID)
}
