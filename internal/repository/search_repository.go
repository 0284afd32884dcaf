package repository

import (
	"context"
	"fmt"

	"prolink-chat/internal/domain/message"

	"gorm.io/gorm"
)

const (
	headlineMinWords = 20
	headlineMaxWords = 50
)

var headlineOptions = fmt.Sprintf(
	"StartSel=<mark>, StopSel=</mark>, MinWords=%d, MaxWords=%d, MaxFragments=1",
	headlineMinWords, headlineMaxWords,
)

type PostgresSearchRepository struct {
	db       *gorm.DB
	language string
}

func NewSearchRepository(db *gorm.DB, language string) SearchRepository {
	return &PostgresSearchRepository{db: db, language: language}
}

type searchRow struct {
	message.Message
	Rank      float64
	Highlight string
}

// Search ranks by text relevance, then by recency.
func (r *PostgresSearchRepository) Search(ctx context.Context, q SearchQuery) ([]SearchHit, int64, error) {
	limit, offset := paginate(q.Page, q.Limit)
	tsquery := "websearch_to_tsquery(?::regconfig, ?)"

	query := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("search_vector @@ "+tsquery, r.language, q.Terms).
		Where("(sender_id = ? OR recipient_id = ?)", q.UserID, q.UserID)
	if q.ConversationID != nil {
		query = query.Where("conversation_id = ?", *q.ConversationID)
	}
	if q.From != nil {
		query = query.Where("created_at >= ?", *q.From)
	}
	if q.To != nil {
		query = query.Where("created_at <= ?", *q.To)
	}
	if q.MessageType != nil {
		query = query.Where("message_type = ?", *q.MessageType)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []searchRow
	err := query.
		Select(
			"messages.*, ts_rank(search_vector, "+tsquery+") AS rank, ts_headline(?::regconfig, content, "+tsquery+", ?) AS highlight",
			r.language, q.Terms, r.language, r.language, q.Terms, headlineOptions,
		).
		Order("rank DESC").
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}

	hits := make([]SearchHit, 0, len(rows))
	for _, row := range rows {
		hits = append(hits, SearchHit{Message: row.Message, Rank: row.Rank, Highlight: row.Highlight})
	}
	return hits, total, nil
}
