package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"prolink-chat/internal/domain/message"
	"prolink-chat/internal/events"
	"prolink-chat/internal/repository"
	prolink_errors "prolink-chat/pkg/errors"
	"prolink-chat/pkg/logger"
)

type ThreadView struct {
	Thread  message.MessageThread `json:"thread"`
	Parent  message.Message       `json:"parent"`
	Replies []message.Message     `json:"replies"`
	Total   int64                 `json:"total"`
	Page    int                   `json:"page"`
	Limit   int                   `json:"limit"`
}

// ThreadService keeps thread rows consistent with the replies that reference them.
// Reply counts and participants are always recounted from messages under a row lock
// on the thread.
type ThreadService struct {
	store       repository.Store
	pusher      Pusher
	attachments *AttachmentService
	log         *logger.Logger
	now         func() time.Time
}

func NewThreadService(store repository.Store, pusher Pusher, attachments *AttachmentService, log *logger.Logger) *ThreadService {
	return &ThreadService{
		store:       store,
		pusher:      pusher,
		attachments: attachments,
		log:         log.Named("threads"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// CreateThread opens a thread on parentID, or returns the existing one.
func (s *ThreadService) CreateThread(ctx context.Context, userID, parentID uuid.UUID) (message.MessageThread, error) {
	var (
		thread  message.MessageThread
		created bool
	)
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		var err error
		thread, created, err = s.ensureThread(ctx, tx, userID, parentID)
		return err
	})
	if errors.Is(err, prolink_errors.ErrAlreadyExists) {
		// lost a race with another creator on the unique parent index
		return s.store.Threads().GetByParent(ctx, parentID)
	}
	if err != nil {
		return message.MessageThread{}, err
	}

	if created {
		s.announce(thread)
	}
	return thread, nil
}

// ensureThread returns the thread anchored at parentID, creating it seeded with the
// parent's sender and recipient when absent. Must run inside a transaction.
func (s *ThreadService) ensureThread(ctx context.Context, tx repository.Store, userID, parentID uuid.UUID) (message.MessageThread, bool, error) {
	parent, err := tx.Messages().GetForUpdate(ctx, parentID)
	if err != nil {
		return message.MessageThread{}, false, err
	}
	if !parent.Involves(userID) {
		return message.MessageThread{}, false, prolink_errors.ErrNotFound
	}
	if parent.IsThreadReply {
		return message.MessageThread{}, false, fmt.Errorf("%w: cannot start a thread on a thread reply", prolink_errors.ErrInvalidInput)
	}

	existing, err := tx.Threads().GetByParent(ctx, parentID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, prolink_errors.ErrNotFound) {
		return message.MessageThread{}, false, err
	}

	now := s.now()
	thread := message.MessageThread{
		ID:              uuid.New(),
		ParentMessageID: parent.ID,
		ConversationID:  parent.ConversationID,
		ParticipantIDs:  message.NewParticipantSet(parent.SenderID, parent.RecipientID),
		Status:          message.ThreadActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := tx.Threads().Create(ctx, &thread); err != nil {
		return message.MessageThread{}, false, err
	}
	if err := tx.Messages().AttachThread(ctx, parent.ID, thread.ID); err != nil {
		return message.MessageThread{}, false, err
	}
	return thread, true, nil
}

// lockActive locks the thread row and rejects replies to archived or deleted threads.
func (s *ThreadService) lockActive(ctx context.Context, tx repository.Store, threadID uuid.UUID) (message.MessageThread, error) {
	thread, err := tx.Threads().GetForUpdate(ctx, threadID)
	if err != nil {
		return message.MessageThread{}, err
	}
	if thread.Status != message.ThreadActive {
		return message.MessageThread{}, prolink_errors.ErrThreadClosed
	}
	return thread, nil
}

// recount rebuilds the reply count and preview of a locked thread from its messages.
// Participants are left untouched.
func (s *ThreadService) recount(ctx context.Context, tx repository.Store, thread message.MessageThread) (message.MessageThread, error) {
	stats, err := tx.Threads().Stats(ctx, thread.ID)
	if err != nil {
		return message.MessageThread{}, err
	}

	thread.ReplyCount = int(stats.ReplyCount)
	if stats.LatestReply != nil {
		at := stats.LatestReply.CreatedAt
		thread.LastReplyAt = &at
		thread.ReplyPreview = message.Preview(stats.LatestReply.Content)
	} else {
		thread.LastReplyAt = nil
		thread.ReplyPreview = ""
	}
	thread.UpdatedAt = s.now()

	if err := tx.Threads().Update(ctx, thread); err != nil {
		return message.MessageThread{}, err
	}
	return thread, nil
}

// RecordReply recounts a thread after senderID's reply was written through tx. The
// sender joins the participants; a previously removed participant rejoins only by
// replying.
func (s *ThreadService) RecordReply(ctx context.Context, tx repository.Store, threadID, senderID uuid.UUID) (message.MessageThread, error) {
	thread, err := tx.Threads().GetForUpdate(ctx, threadID)
	if err != nil {
		return message.MessageThread{}, err
	}
	thread.ParticipantIDs, _ = thread.ParticipantIDs.With(senderID)
	return s.recount(ctx, tx, thread)
}

func (s *ThreadService) AddParticipant(ctx context.Context, actorID, threadID, userID uuid.UUID) (message.MessageThread, error) {
	return s.updateParticipants(ctx, actorID, threadID, userID, message.ParticipantSet.With)
}

func (s *ThreadService) RemoveParticipant(ctx context.Context, actorID, threadID, userID uuid.UUID) (message.MessageThread, error) {
	return s.updateParticipants(ctx, actorID, threadID, userID, message.ParticipantSet.Without)
}

func (s *ThreadService) updateParticipants(ctx context.Context, actorID, threadID, userID uuid.UUID, op func(message.ParticipantSet, uuid.UUID) (message.ParticipantSet, bool)) (message.MessageThread, error) {
	if userID == uuid.Nil {
		return message.MessageThread{}, fmt.Errorf("%w: userId: is required", prolink_errors.ErrInvalidInput)
	}

	var (
		thread  message.MessageThread
		changed bool
	)
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		t, err := tx.Threads().GetForUpdate(ctx, threadID)
		if err != nil {
			return err
		}
		parent, err := tx.Messages().GetByID(ctx, t.ParentMessageID)
		if err != nil {
			return err
		}
		if !parent.Involves(actorID) {
			return prolink_errors.ErrNotFound
		}
		if !parent.Involves(userID) {
			return fmt.Errorf("%w: userId: is not part of this conversation", prolink_errors.ErrInvalidInput)
		}

		t.ParticipantIDs, changed = op(t.ParticipantIDs, userID)
		if changed {
			t.UpdatedAt = s.now()
			if err := tx.Threads().Update(ctx, t); err != nil {
				return err
			}
		}
		thread = t
		return nil
	})
	if err != nil {
		return message.MessageThread{}, err
	}

	if changed {
		s.updated(thread)
	}
	return thread, nil
}

// UpdateStatus archives, reopens or deletes a thread.
func (s *ThreadService) UpdateStatus(ctx context.Context, actorID, threadID uuid.UUID, status message.ThreadStatus) (message.MessageThread, error) {
	if !status.Valid() {
		return message.MessageThread{}, fmt.Errorf("%w: status: must be one of active archived deleted", prolink_errors.ErrInvalidInput)
	}

	var thread message.MessageThread
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		t, err := tx.Threads().GetForUpdate(ctx, threadID)
		if err != nil {
			return err
		}
		if !t.ParticipantIDs.Contains(actorID) {
			return prolink_errors.ErrNotFound
		}
		if t.Status == status {
			thread = t
			return nil
		}
		t.Status = status
		t.UpdatedAt = s.now()
		if err := tx.Threads().Update(ctx, t); err != nil {
			return err
		}
		thread = t
		return nil
	})
	if err != nil {
		return message.MessageThread{}, err
	}
	s.updated(thread)
	return thread, nil
}

// GetThread returns a thread with a page of replies, oldest first.
func (s *ThreadService) GetThread(ctx context.Context, userID, threadID uuid.UUID, page, limit int) (ThreadView, error) {
	thread, err := s.store.Threads().GetByID(ctx, threadID)
	if err != nil {
		return ThreadView{}, err
	}
	parent, err := s.store.Messages().GetByID(ctx, thread.ParentMessageID)
	if err != nil {
		return ThreadView{}, err
	}
	if !parent.Involves(userID) && !thread.ParticipantIDs.Contains(userID) {
		return ThreadView{}, prolink_errors.ErrNotFound
	}

	replies, total, err := s.store.Threads().Replies(ctx, threadID, page, limit)
	if err != nil {
		return ThreadView{}, err
	}
	if replies == nil {
		replies = []message.Message{}
	}
	s.attachments.SignMessage(ctx, &parent)
	s.attachments.SignMessages(ctx, replies)

	return ThreadView{Thread: thread, Parent: parent, Replies: replies, Total: total, Page: page, Limit: limit}, nil
}

func (s *ThreadService) announce(thread message.MessageThread) {
	s.pusher.BroadcastExcept(uuid.Nil, thread.ParticipantIDs, events.New(events.TypeNewMessageThread, thread))
}

func (s *ThreadService) updated(thread message.MessageThread) {
	s.pusher.BroadcastExcept(uuid.Nil, thread.ParticipantIDs, events.New(events.TypeThreadUpdated, thread))
}
