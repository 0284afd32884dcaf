package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"prolink-chat/internal/domain/message"
	"prolink-chat/internal/metrics"
	"prolink-chat/internal/repository"
	prolink_errors "prolink-chat/pkg/errors"
	"prolink-chat/pkg/logger"
)

const maxSearchTermsLength = 256

// Metadata keys folded into the search document next to the content.
const (
	metadataTitle = "title"
	metadataTags  = "tags"
)

type SearchRequest struct {
	Terms          string
	ConversationID *uuid.UUID
	From           *time.Time
	To             *time.Time
	MessageType    *message.Type
	Page           int
	Limit          int
}

type SearchResult struct {
	Hits  []repository.SearchHit `json:"hits"`
	Total int64                  `json:"total"`
	Page  int                    `json:"page"`
	Limit int                    `json:"limit"`
}

type SearchService struct {
	store       repository.Store
	attachments *AttachmentService
	metrics     *metrics.Collectors
	log         *logger.Logger
}

func NewSearchService(store repository.Store, attachments *AttachmentService, m *metrics.Collectors, log *logger.Logger) *SearchService {
	return &SearchService{
		store:       store,
		attachments: attachments,
		metrics:     m,
		log:         log.Named("search"),
	}
}

// DeriveDocument builds the normalized text indexed for a message: the content plus
// the metadata title and tags, NFKC folded with runs of whitespace collapsed.
func DeriveDocument(content string, metadata map[string]interface{}) (string, error) {
	parts := []string{content}
	if title, ok := metadata[metadataTitle].(string); ok {
		parts = append(parts, title)
	}
	switch tags := metadata[metadataTags].(type) {
	case []string:
		parts = append(parts, tags...)
	case []interface{}:
		for _, tag := range tags {
			if s, ok := tag.(string); ok {
				parts = append(parts, s)
			}
		}
	case string:
		parts = append(parts, tags)
	}

	for _, p := range parts {
		if !utf8.ValidString(p) {
			return "", fmt.Errorf("%w: invalid utf-8", prolink_errors.ErrSearchIndex)
		}
	}

	doc := strings.Join(strings.Fields(norm.NFKC.String(strings.Join(parts, " "))), " ")
	if doc == "" {
		return "", fmt.Errorf("%w: empty document", prolink_errors.ErrSearchIndex)
	}
	return doc, nil
}

// Index stores the search document of a committed message. Failures are logged and
// leave the message unsearchable; they never fail the send.
func (s *SearchService) Index(ctx context.Context, m *message.Message) {
	doc, err := DeriveDocument(m.Content, m.Metadata)
	if err == nil {
		err = s.store.Messages().UpdateSearchDocument(ctx, m.ID, doc)
	}
	if err != nil {
		s.metrics.SearchIndexFailed()
		s.log.WithContext(ctx).Warn("message stored without search document",
			zap.String("message_id", m.ID.String()),
			zap.Error(err),
		)
		return
	}
	m.SearchDocument = &doc
}

// Search runs a ranked full-text query over the messages userID sent or received.
func (s *SearchService) Search(ctx context.Context, userID uuid.UUID, req SearchRequest) (SearchResult, error) {
	terms := strings.TrimSpace(req.Terms)
	if terms == "" {
		return SearchResult{}, fmt.Errorf("%w: q: is required", prolink_errors.ErrInvalidInput)
	}
	if utf8.RuneCountInString(terms) > maxSearchTermsLength {
		return SearchResult{}, fmt.Errorf("%w: q: must be at most %d characters", prolink_errors.ErrInvalidInput, maxSearchTermsLength)
	}
	if req.From != nil && req.To != nil && req.From.After(*req.To) {
		return SearchResult{}, fmt.Errorf("%w: from: must not be after to", prolink_errors.ErrInvalidInput)
	}
	if req.MessageType != nil && !req.MessageType.Valid() {
		return SearchResult{}, fmt.Errorf("%w: type: must be one of text image file system", prolink_errors.ErrInvalidInput)
	}

	hits, total, err := s.store.Search().Search(ctx, repository.SearchQuery{
		UserID:         userID,
		Terms:          norm.NFKC.String(terms),
		ConversationID: req.ConversationID,
		From:           req.From,
		To:             req.To,
		MessageType:    req.MessageType,
		Page:           req.Page,
		Limit:          req.Limit,
	})
	if err != nil {
		return SearchResult{}, err
	}
	if hits == nil {
		hits = []repository.SearchHit{}
	}
	for i := range hits {
		s.attachments.SignMessage(ctx, &hits[i].Message)
	}
	return SearchResult{Hits: hits, Total: total, Page: req.Page, Limit: req.Limit}, nil
}
