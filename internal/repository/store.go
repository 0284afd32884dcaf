package repository

import (
	"context"

	"gorm.io/gorm"
)

type GormStore struct {
	db             *gorm.DB
	searchLanguage string
}

func NewStore(db *gorm.DB, searchLanguage string) *GormStore {
	if searchLanguage == "" {
		searchLanguage = "english"
	}
	return &GormStore{db: db, searchLanguage: searchLanguage}
}

func (s *GormStore) Messages() MessageRepository {
	return NewMessageRepository(s.db, s.searchLanguage)
}

func (s *GormStore) Reactions() ReactionRepository {
	return NewReactionRepository(s.db)
}

func (s *GormStore) Threads() ThreadRepository {
	return NewThreadRepository(s.db)
}

func (s *GormStore) Notifications() NotificationRepository {
	return NewNotificationRepository(s.db)
}

func (s *GormStore) Search() SearchRepository {
	return NewSearchRepository(s.db, s.searchLanguage)
}

func (s *GormStore) WithTx(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx, searchLanguage: s.searchLanguage})
	})
}
