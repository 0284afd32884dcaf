package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"prolink-chat/internal/domain/message"
	"prolink-chat/internal/domain/notification"
	"prolink-chat/internal/events"
	"prolink-chat/internal/metrics"
	"prolink-chat/internal/repository"
	prolink_errors "prolink-chat/pkg/errors"
	"prolink-chat/pkg/logger"
	"prolink-chat/pkg/validator"
)

const (
	defaultContextSize = 5
	maxContextSize     = 50
)

type SendRequest struct {
	SenderID        uuid.UUID              `json:"-"`
	RecipientID     uuid.UUID              `json:"recipientId"`
	Content         string                 `json:"content" validate:"required,max=5000"`
	MessageType     message.Type           `json:"messageType" validate:"omitempty,oneof=text image file system"`
	Attachments     []message.Attachment   `json:"attachments" validate:"max=10,dive"`
	Metadata        map[string]interface{} `json:"metadata"`
	ParentMessageID *uuid.UUID             `json:"parentMessageId"`
}

type ConversationPage struct {
	ConversationID uuid.UUID         `json:"conversationId"`
	Messages       []message.Message `json:"messages"`
	Total          int64             `json:"total"`
	Page           int               `json:"page"`
	Limit          int               `json:"limit"`
	MarkedRead     int64             `json:"markedRead"`
}

type MessageContext struct {
	Before  []message.Message `json:"before"`
	Message message.Message   `json:"message"`
	After   []message.Message `json:"after"`
}

// MessageService runs the send pipeline: the message, thread bookkeeping and the
// recipient's notification commit together, then indexing, delivery evaluation and
// pushes run against the committed state.
type MessageService struct {
	store         repository.Store
	pusher        Pusher
	delivery      *DeliveryService
	threads       *ThreadService
	notifications *NotificationService
	search        *SearchService
	attachments   *AttachmentService
	validator     *validator.Validator
	metrics       *metrics.Collectors
	log           *logger.Logger
	now           func() time.Time
}

type MessageServiceDeps struct {
	Store         repository.Store
	Pusher        Pusher
	Delivery      *DeliveryService
	Threads       *ThreadService
	Notifications *NotificationService
	Search        *SearchService
	Attachments   *AttachmentService
	Validator     *validator.Validator
	Metrics       *metrics.Collectors
	Logger        *logger.Logger
}

func NewMessageService(deps MessageServiceDeps) *MessageService {
	return &MessageService{
		store:         deps.Store,
		pusher:        deps.Pusher,
		delivery:      deps.Delivery,
		threads:       deps.Threads,
		notifications: deps.Notifications,
		search:        deps.Search,
		attachments:   deps.Attachments,
		validator:     deps.Validator,
		metrics:       deps.Metrics,
		log:           deps.Logger.Named("messages"),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *MessageService) validate(req *SendRequest) error {
	if err := s.validator.Validate(req); err != nil {
		return err
	}
	if req.SenderID == uuid.Nil || req.RecipientID == uuid.Nil {
		return fmt.Errorf("%w: recipientId: is required", prolink_errors.ErrInvalidInput)
	}
	if req.SenderID == req.RecipientID {
		return fmt.Errorf("%w: recipientId: cannot message yourself", prolink_errors.ErrInvalidInput)
	}
	if strings.TrimSpace(req.Content) == "" {
		return fmt.Errorf("%w: content: is required", prolink_errors.ErrInvalidInput)
	}
	if req.MessageType == "" {
		req.MessageType = message.TypeText
	}
	return nil
}

// Send persists a message and fans it out.
func (s *MessageService) Send(ctx context.Context, req SendRequest) (message.Message, error) {
	if err := s.validate(&req); err != nil {
		return message.Message{}, err
	}

	now := s.now()
	conv := message.Direct(req.SenderID, req.RecipientID)
	m := &message.Message{
		ID:              uuid.New(),
		ConversationID:  conv.ID,
		SenderID:        req.SenderID,
		RecipientID:     req.RecipientID,
		Content:         req.Content,
		MessageType:     req.MessageType,
		Status:          message.StatusSent,
		Attachments:     datatypes.JSONSlice[message.Attachment](req.Attachments),
		Metadata:        datatypes.JSONMap(req.Metadata),
		ReactionSummary: datatypes.NewJSONType(message.ReactionSummary{}),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if m.Attachments == nil {
		m.Attachments = datatypes.JSONSlice[message.Attachment]{}
	}

	var (
		thread        *message.MessageThread
		threadCreated bool
		note          *notification.Notification
	)
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		if req.ParentMessageID != nil {
			t, created, err := s.threads.ensureThread(ctx, tx, req.SenderID, *req.ParentMessageID)
			if err != nil {
				return err
			}
			if t.ConversationID != conv.ID {
				return fmt.Errorf("%w: parentMessageId: belongs to another conversation", prolink_errors.ErrInvalidInput)
			}
			if _, err := s.threads.lockActive(ctx, tx, t.ID); err != nil {
				return err
			}
			m.ThreadID = &t.ID
			m.IsThreadReply = true
			threadCreated = created
		}

		if err := tx.Messages().Create(ctx, m); err != nil {
			return fmt.Errorf("create message: %w", err)
		}

		noteType := notification.TypeNewMessage
		title := "New message"
		if m.ThreadID != nil {
			updated, err := s.threads.RecordReply(ctx, tx, *m.ThreadID, m.SenderID)
			if err != nil {
				return err
			}
			thread = &updated
			noteType = notification.TypeThreadReply
			title = "New thread reply"
		}

		payload := map[string]interface{}{
			"messageId":      m.ID.String(),
			"conversationId": m.ConversationID.String(),
			"senderId":       m.SenderID.String(),
		}
		if m.ThreadID != nil {
			payload["threadId"] = m.ThreadID.String()
		}
		n, err := s.notifications.Record(ctx, tx, NotifyRequest{
			UserID:   m.RecipientID,
			Type:     noteType,
			Title:    title,
			Content:  message.Preview(m.Content),
			Payload:  payload,
			Priority: notification.PriorityNormal,
		})
		if err != nil {
			return err
		}
		note = n
		return nil
	})
	if err != nil {
		return message.Message{}, err
	}
	s.metrics.MessageSent()

	s.search.Index(ctx, m)
	s.delivery.OnCreated(ctx, m)

	out := *m
	s.attachments.SignMessage(ctx, &out)
	s.pusher.Send(out.RecipientID, events.New(events.TypeNewMessage, out))
	if thread != nil {
		if threadCreated {
			s.threads.announce(*thread)
		}
		s.threads.updated(*thread)
	}
	s.notifications.Publish(note)

	return out, nil
}

// ConversationMessages returns a page of the conversation between userID and otherID.
// Viewing a conversation marks the messages addressed to userID as read.
func (s *MessageService) ConversationMessages(ctx context.Context, userID, otherID uuid.UUID, page, limit int) (ConversationPage, error) {
	marked, err := s.delivery.MarkConversationRead(ctx, userID, otherID)
	if err != nil {
		return ConversationPage{}, err
	}

	conversationID := message.ConversationIDFor(userID, otherID)
	messages, total, err := s.store.Messages().ListConversation(ctx, conversationID, page, limit)
	if err != nil {
		return ConversationPage{}, err
	}
	if messages == nil {
		messages = []message.Message{}
	}
	s.attachments.SignMessages(ctx, messages)

	return ConversationPage{
		ConversationID: conversationID,
		Messages:       messages,
		Total:          total,
		Page:           page,
		Limit:          limit,
		MarkedRead:     marked,
	}, nil
}

func (s *MessageService) ListConversations(ctx context.Context, userID uuid.UUID, page, limit int) ([]repository.ConversationSummary, error) {
	items, err := s.store.Messages().ListConversations(ctx, userID, page, limit)
	if err != nil {
		return nil, err
	}
	for i := range items {
		s.attachments.SignMessage(ctx, &items[i].LastMessage)
	}
	return items, nil
}

// Delete removes a message the caller sent or received. Deleting a reply recounts its
// thread; deleting a thread parent marks the thread deleted.
func (s *MessageService) Delete(ctx context.Context, userID, messageID uuid.UUID) error {
	var thread *message.MessageThread
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		m, err := tx.Messages().GetByID(ctx, messageID)
		if err != nil {
			return err
		}
		if !m.Involves(userID) {
			return prolink_errors.ErrNotFound
		}

		if m.IsThreadReply && m.ThreadID != nil {
			t, err := tx.Threads().GetForUpdate(ctx, *m.ThreadID)
			if err != nil {
				return err
			}
			if err := tx.Messages().Delete(ctx, messageID); err != nil {
				return err
			}
			updated, err := s.threads.recount(ctx, tx, t)
			if err != nil {
				return err
			}
			thread = &updated
			return nil
		}

		if err := tx.Messages().Delete(ctx, messageID); err != nil {
			return err
		}

		t, err := tx.Threads().GetByParent(ctx, messageID)
		if errors.Is(err, prolink_errors.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		t.Status = message.ThreadDeleted
		t.UpdatedAt = s.now()
		if err := tx.Threads().Update(ctx, t); err != nil {
			return err
		}
		thread = &t
		return nil
	})
	if err != nil {
		return err
	}

	if thread != nil {
		s.threads.updated(*thread)
	}
	s.log.WithContext(ctx).Info("message deleted",
		zap.String("message_id", messageID.String()),
		zap.String("user_id", userID.String()),
	)
	return nil
}

// Context returns up to n messages on each side of messageID in its conversation.
func (s *MessageService) Context(ctx context.Context, userID, messageID uuid.UUID, n int) (MessageContext, error) {
	if n <= 0 {
		n = defaultContextSize
	}
	if n > maxContextSize {
		n = maxContextSize
	}

	m, err := s.store.Messages().GetByID(ctx, messageID)
	if err != nil {
		return MessageContext{}, err
	}
	if !m.Involves(userID) {
		return MessageContext{}, prolink_errors.ErrNotFound
	}

	before, after, err := s.store.Messages().Around(ctx, m, n)
	if err != nil {
		return MessageContext{}, err
	}
	if before == nil {
		before = []message.Message{}
	}
	if after == nil {
		after = []message.Message{}
	}
	s.attachments.SignMessage(ctx, &m)
	s.attachments.SignMessages(ctx, before)
	s.attachments.SignMessages(ctx, after)

	return MessageContext{Before: before, Message: m, After: after}, nil
}
