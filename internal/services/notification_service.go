package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"prolink-chat/internal/domain/notification"
	"prolink-chat/internal/events"
	"prolink-chat/internal/metrics"
	"prolink-chat/internal/repository"
	prolink_errors "prolink-chat/pkg/errors"
	"prolink-chat/pkg/logger"
	"prolink-chat/pkg/validator"
)

const maxNotificationBatch = 100

type NotifyRequest struct {
	UserID   uuid.UUID              `json:"userId"`
	Type     notification.Type      `json:"type" validate:"required,oneof=new_message reaction thread_reply new_review review_response moderation"`
	Title    string                 `json:"title" validate:"required,max=255"`
	Content  string                 `json:"content" validate:"max=2000"`
	Payload  map[string]interface{} `json:"payload"`
	Priority notification.Priority  `json:"priority" validate:"omitempty,oneof=low normal high"`
}

type NotificationPage struct {
	Items       []notification.Notification `json:"items"`
	Total       int64                       `json:"total"`
	UnreadCount int64                       `json:"unreadCount"`
	Page        int                         `json:"page"`
	Limit       int                         `json:"limit"`
}

// PreferenceUpdate carries optional per-type toggles. Nil fields are left unchanged.
type PreferenceUpdate struct {
	NewMessage     *bool `json:"newMessage"`
	Reaction       *bool `json:"reaction"`
	ThreadReply    *bool `json:"threadReply"`
	NewReview      *bool `json:"newReview"`
	ReviewResponse *bool `json:"reviewResponse"`
}

// NotificationService records notifications and pushes them once the row is committed.
type NotificationService struct {
	store     repository.Store
	pusher    Pusher
	validator *validator.Validator
	metrics   *metrics.Collectors
	log       *logger.Logger
	now       func() time.Time
}

func NewNotificationService(store repository.Store, pusher Pusher, v *validator.Validator, m *metrics.Collectors, log *logger.Logger) *NotificationService {
	return &NotificationService{
		store:     store,
		pusher:    pusher,
		validator: v,
		metrics:   m,
		log:       log.Named("notifications"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Notify persists and then pushes a notification. Only a persistence failure is
// returned; an offline recipient simply finds the row on the next fetch.
// A nil notification with a nil error means the user has this type turned off.
func (s *NotificationService) Notify(ctx context.Context, req NotifyRequest) (*notification.Notification, error) {
	n, err := s.Record(ctx, s.store, req)
	if err != nil {
		return nil, err
	}
	s.Publish(n)
	return n, nil
}

// Record writes the notification through tx without pushing it. Callers that run
// inside a larger transaction call Publish after commit.
func (s *NotificationService) Record(ctx context.Context, tx repository.Store, req NotifyRequest) (*notification.Notification, error) {
	if req.Priority == "" {
		req.Priority = notification.PriorityNormal
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if req.UserID == uuid.Nil {
		return nil, fmt.Errorf("%w: notification owner is required", prolink_errors.ErrInvalidInput)
	}

	pref, err := tx.Notifications().GetPreference(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("load notification preferences: %w", err)
	}
	if !pref.Allows(req.Type) {
		return nil, nil
	}

	n := &notification.Notification{
		ID:        uuid.New(),
		UserID:    req.UserID,
		Type:      req.Type,
		Title:     req.Title,
		Content:   req.Content,
		Payload:   datatypes.JSONMap(req.Payload),
		Priority:  req.Priority,
		CreatedAt: s.now(),
	}
	if err := tx.Notifications().Create(ctx, n); err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}
	s.metrics.NotificationCreated(string(n.Type))
	return n, nil
}

// Publish pushes an already committed notification to its owner.
func (s *NotificationService) Publish(n *notification.Notification) {
	if n == nil {
		return
	}
	s.pusher.Send(n.UserID, events.New(events.TypeNewNotification, n))
}

func (s *NotificationService) List(ctx context.Context, userID uuid.UUID, unreadOnly bool, page, limit int) (NotificationPage, error) {
	items, total, err := s.store.Notifications().List(ctx, userID, unreadOnly, page, limit)
	if err != nil {
		return NotificationPage{}, err
	}
	unread, err := s.store.Notifications().CountUnread(ctx, userID)
	if err != nil {
		return NotificationPage{}, err
	}
	if items == nil {
		items = []notification.Notification{}
	}
	return NotificationPage{Items: items, Total: total, UnreadCount: unread, Page: page, Limit: limit}, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.store.Notifications().CountUnread(ctx, userID)
}

// MarkRead marks the given notifications read. Ids owned by someone else are ignored.
func (s *NotificationService) MarkRead(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, fmt.Errorf("%w: ids: is required", prolink_errors.ErrInvalidInput)
	}
	if len(ids) > maxNotificationBatch {
		return 0, fmt.Errorf("%w: ids: must contain at most %d items", prolink_errors.ErrInvalidInput, maxNotificationBatch)
	}
	return s.store.Notifications().MarkRead(ctx, userID, ids, s.now())
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.store.Notifications().MarkAllRead(ctx, userID, s.now())
}

func (s *NotificationService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return s.store.Notifications().Delete(ctx, userID, id)
}

func (s *NotificationService) ClearAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.store.Notifications().DeleteAll(ctx, userID)
}

func (s *NotificationService) Preferences(ctx context.Context, userID uuid.UUID) (notification.Preference, error) {
	return s.store.Notifications().GetPreference(ctx, userID)
}

func (s *NotificationService) UpdatePreferences(ctx context.Context, userID uuid.UUID, upd PreferenceUpdate) (notification.Preference, error) {
	var out notification.Preference
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		pref, err := tx.Notifications().GetPreference(ctx, userID)
		if err != nil {
			return err
		}
		apply := func(dst *bool, v *bool) {
			if v != nil {
				*dst = *v
			}
		}
		apply(&pref.NewMessage, upd.NewMessage)
		apply(&pref.Reaction, upd.Reaction)
		apply(&pref.ThreadReply, upd.ThreadReply)
		apply(&pref.NewReview, upd.NewReview)
		apply(&pref.ReviewResponse, upd.ReviewResponse)
		pref.UserID = userID
		pref.UpdatedAt = s.now()

		if err := tx.Notifications().SavePreference(ctx, &pref); err != nil {
			return err
		}
		out = pref
		return nil
	})
	return out, err
}

// PurgeReadBefore deletes read notifications created before cutoff.
func (s *NotificationService) PurgeReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := s.store.Notifications().DeleteReadBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.WithContext(ctx).Info("purged read notifications", zap.Int64("count", n), zap.Time("cutoff", cutoff))
	}
	return n, nil
}
