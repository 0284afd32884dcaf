package repository

import (
	"context"
	"errors"

	"prolink-chat/internal/domain/message"
	prolink_errors "prolink-chat/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresThreadRepository struct {
	db *gorm.DB
}

func NewThreadRepository(db *gorm.DB) ThreadRepository {
	return &PostgresThreadRepository{db: db}
}

func (r *PostgresThreadRepository) Create(ctx context.Context, t *message.MessageThread) error {
	err := r.db.WithContext(ctx).Create(t).Error
	if err != nil && isUniqueViolation(err) {
		return prolink_errors.ErrAlreadyExists
	}
	return err
}

func (r *PostgresThreadRepository) GetByID(ctx context.Context, id uuid.UUID) (message.MessageThread, error) {
	return r.first(r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *PostgresThreadRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (message.MessageThread, error) {
	return r.first(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id))
}

func (r *PostgresThreadRepository) GetByParent(ctx context.Context, parentMessageID uuid.UUID) (message.MessageThread, error) {
	return r.first(r.db.WithContext(ctx).Where("parent_message_id = ?", parentMessageID))
}

func (r *PostgresThreadRepository) first(q *gorm.DB) (message.MessageThread, error) {
	var t message.MessageThread
	if err := q.First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return message.MessageThread{}, prolink_errors.ErrNotFound
		}
		return message.MessageThread{}, err
	}
	return t, nil
}

func (r *PostgresThreadRepository) Update(ctx context.Context, t message.MessageThread) error {
	res := r.db.WithContext(ctx).Save(&t)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return prolink_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresThreadRepository) Stats(ctx context.Context, threadID uuid.UUID) (ThreadStats, error) {
	var stats ThreadStats

	err := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("thread_id = ? AND is_thread_reply = ?", threadID, true).
		Count(&stats.ReplyCount).Error
	if err != nil {
		return ThreadStats{}, err
	}

	var latest message.Message
	err = r.db.WithContext(ctx).
		Where("thread_id = ? AND is_thread_reply = ?", threadID, true).
		Order("created_at DESC").
		Order("id DESC").
		First(&latest).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
	case err != nil:
		return ThreadStats{}, err
	default:
		stats.LatestReply = &latest
	}
	return stats, nil
}

func (r *PostgresThreadRepository) Replies(ctx context.Context, threadID uuid.UUID, page, limit int) ([]message.Message, int64, error) {
	limit, offset := paginate(page, limit)

	query := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("thread_id = ? AND is_thread_reply = ?", threadID, true).
		Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var replies []message.Message
	err := query.Order("created_at ASC").Limit(limit).Offset(offset).Find(&replies).Error
	return replies, total, err
}
