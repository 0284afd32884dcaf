package repository

import (
	"context"

	"prolink-chat/internal/domain/message"
	prolink_errors "prolink-chat/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresReactionRepository struct {
	db *gorm.DB
}

func NewReactionRepository(db *gorm.DB) ReactionRepository {
	return &PostgresReactionRepository{db: db}
}

func (r *PostgresReactionRepository) Exists(ctx context.Context, messageID, userID uuid.UUID, emoji string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&message.Reaction{}).
		Where("message_id = ? AND user_id = ? AND emoji = ?", messageID, userID, emoji).
		Count(&count).Error
	return count > 0, err
}

func (r *PostgresReactionRepository) Create(ctx context.Context, reaction *message.Reaction) error {
	err := r.db.WithContext(ctx).Create(reaction).Error
	if err != nil && isUniqueViolation(err) {
		return prolink_errors.ErrDuplicateReaction
	}
	return err
}

func (r *PostgresReactionRepository) Summarize(ctx context.Context, messageID uuid.UUID) (message.ReactionSummary, error) {
	var rows []struct {
		Emoji string
		Count int
	}
	err := r.db.WithContext(ctx).
		Model(&message.Reaction{}).
		Select("emoji, COUNT(*) AS count").
		Where("message_id = ?", messageID).
		Group("emoji").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	summary := make(message.ReactionSummary, len(rows))
	for _, row := range rows {
		summary[row.Emoji] = row.Count
	}
	return summary, nil
}

func (r *PostgresReactionRepository) Groups(ctx context.Context, messageID uuid.UUID) ([]message.ReactionGroup, error) {
	var reactions []message.Reaction
	err := r.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Order("created_at ASC").
		Find(&reactions).Error
	if err != nil {
		return nil, err
	}
	return GroupReactions(reactions), nil
}

// GroupReactions folds reaction rows into per-emoji groups in first-seen order.
func GroupReactions(reactions []message.Reaction) []message.ReactionGroup {
	index := make(map[string]int)
	groups := make([]message.ReactionGroup, 0)
	for _, reaction := range reactions {
		i, ok := index[reaction.Emoji]
		if !ok {
			i = len(groups)
			index[reaction.Emoji] = i
			groups = append(groups, message.ReactionGroup{Emoji: reaction.Emoji})
		}
		groups[i].Count++
		groups[i].Users = append(groups[i].Users, reaction.UserID)
	}
	return groups
}
