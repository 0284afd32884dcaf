package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"prolink-chat/internal/domain/message"
	prolink_errors "prolink-chat/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresMessageRepository struct {
	db             *gorm.DB
	searchLanguage string
}

func NewMessageRepository(db *gorm.DB, searchLanguage string) MessageRepository {
	return &PostgresMessageRepository{db: db, searchLanguage: searchLanguage}
}

func (r *PostgresMessageRepository) Create(ctx context.Context, m *message.Message) error {
	res := r.db.WithContext(ctx).Create(m)
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return prolink_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresMessageRepository) GetByID(ctx context.Context, id uuid.UUID) (message.Message, error) {
	var m message.Message
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return message.Message{}, prolink_errors.ErrNotFound
		}
		return message.Message{}, err
	}
	return m, nil
}

func (r *PostgresMessageRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (message.Message, error) {
	var m message.Message
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return message.Message{}, prolink_errors.ErrNotFound
		}
		return message.Message{}, err
	}
	return m, nil
}

func (r *PostgresMessageRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&message.Message{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return prolink_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresMessageRepository) AdvanceStatus(ctx context.Context, id uuid.UUID, status message.Status, at time.Time) (bool, error) {
	from := message.Predecessors(status)
	if len(from) == 0 {
		return false, nil
	}
	res := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(statusUpdates(status, at))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *PostgresMessageRepository) MarkConversationRead(ctx context.Context, conversationID, recipientID uuid.UUID, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("conversation_id = ? AND recipient_id = ? AND status IN ?", conversationID, recipientID, message.Predecessors(message.StatusRead)).
		Updates(statusUpdates(message.StatusRead, at))
	return res.RowsAffected, res.Error
}

// statusUpdates never overwrites a timestamp that is already set.
func statusUpdates(status message.Status, at time.Time) map[string]interface{} {
	updates := map[string]interface{}{
		"status":       status,
		"updated_at":   at,
		"delivered_at": gorm.Expr("COALESCE(delivered_at, ?)", at),
	}
	if status == message.StatusRead {
		updates["read_at"] = gorm.Expr("COALESCE(read_at, ?)", at)
	}
	return updates
}

func (r *PostgresMessageRepository) UpdateReactionSummary(ctx context.Context, id uuid.UUID, summary message.ReactionSummary) error {
	res := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("id = ?", id).
		Update("reaction_summary", datatypes.NewJSONType(summary))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return prolink_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresMessageRepository) AttachThread(ctx context.Context, id, threadID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("id = ?", id).
		Update("thread_id", threadID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return prolink_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresMessageRepository) UpdateSearchDocument(ctx context.Context, id uuid.UUID, document string) error {
	return r.db.WithContext(ctx).Exec(
		"UPDATE messages SET search_document = ?, search_vector = to_tsvector(?::regconfig, ?) WHERE id = ?",
		document, r.searchLanguage, document, id,
	).Error
}

func (r *PostgresMessageRepository) ListConversation(ctx context.Context, conversationID uuid.UUID, page, limit int) ([]message.Message, int64, error) {
	limit, offset := paginate(page, limit)

	query := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("conversation_id = ?", conversationID).
		Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var messages []message.Message
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&messages).Error
	if err != nil {
		return nil, 0, err
	}
	reverse(messages)
	return messages, total, nil
}

func (r *PostgresMessageRepository) ListConversations(ctx context.Context, userID uuid.UUID, page, limit int) ([]ConversationSummary, error) {
	limit, offset := paginate(page, limit)

	var latest []message.Message
	err := r.db.WithContext(ctx).Raw(`
		SELECT * FROM (
			SELECT DISTINCT ON (conversation_id) *
			FROM messages
			WHERE sender_id = @user OR recipient_id = @user
			ORDER BY conversation_id, created_at DESC, id DESC
		) latest
		ORDER BY created_at DESC
		LIMIT @limit OFFSET @offset`,
		sql.Named("user", userID), sql.Named("limit", limit), sql.Named("offset", offset),
	).Scan(&latest).Error
	if err != nil {
		return nil, err
	}
	if len(latest) == 0 {
		return []ConversationSummary{}, nil
	}

	ids := make([]uuid.UUID, 0, len(latest))
	for _, m := range latest {
		ids = append(ids, m.ConversationID)
	}

	var counts []struct {
		ConversationID uuid.UUID
		Unread         int64
	}
	err = r.db.WithContext(ctx).
		Model(&message.Message{}).
		Select("conversation_id, COUNT(*) AS unread").
		Where("recipient_id = ? AND status <> ? AND conversation_id IN ?", userID, message.StatusRead, ids).
		Group("conversation_id").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	unread := make(map[uuid.UUID]int64, len(counts))
	for _, c := range counts {
		unread[c.ConversationID] = c.Unread
	}

	out := make([]ConversationSummary, 0, len(latest))
	for _, m := range latest {
		out = append(out, ConversationSummary{
			ConversationID: m.ConversationID,
			OtherUserID:    m.Counterpart(userID),
			LastMessage:    m,
			UnreadCount:    unread[m.ConversationID],
		})
	}
	return out, nil
}

func (r *PostgresMessageRepository) Around(ctx context.Context, m message.Message, n int) ([]message.Message, []message.Message, error) {
	var before, after []message.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND created_at < ?", m.ConversationID, m.CreatedAt).
		Order("created_at DESC").
		Limit(n).
		Find(&before).Error
	if err != nil {
		return nil, nil, err
	}
	reverse(before)

	err = r.db.WithContext(ctx).
		Where("conversation_id = ? AND created_at > ?", m.ConversationID, m.CreatedAt).
		Order("created_at ASC").
		Limit(n).
		Find(&after).Error
	if err != nil {
		return nil, nil, err
	}
	return before, after, nil
}

func reverse(messages []message.Message) {
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
}
