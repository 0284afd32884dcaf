package repository

import (
	"fmt"

	"prolink-chat/internal/domain/message"
	"prolink-chat/internal/domain/notification"

	"gorm.io/gorm"
)

// Models lists every table owned by this service.
func Models() []interface{} {
	return []interface{}{
		&message.Message{},
		&message.Reaction{},
		&message.MessageThread{},
		&notification.Notification{},
		&notification.Preference{},
	}
}

// InitSchema runs gorm auto-migration and the raw statements gorm cannot express.
func InitSchema(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	statements := []string{
		`ALTER TABLE messages ADD COLUMN IF NOT EXISTS search_vector tsvector`,
		`CREATE INDEX IF NOT EXISTS idx_messages_search_vector ON messages USING GIN (search_vector)`,
		`DO $$ BEGIN
			ALTER TABLE messages ADD CONSTRAINT chk_messages_content_length
				CHECK (char_length(content) BETWEEN 1 AND 5000);
		EXCEPTION
			WHEN duplicate_object THEN null;
		END $$;`,
		`DO $$ BEGIN
			ALTER TABLE messages ADD CONSTRAINT chk_messages_status
				CHECK (status IN ('sent', 'delivered', 'read'));
		EXCEPTION
			WHEN duplicate_object THEN null;
		END $$;`,
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}

// Truncate empties every table. Used by the migrate tool.
func Truncate(db *gorm.DB) error {
	return db.Exec(`TRUNCATE TABLE message_reactions, message_threads, messages, notifications, notification_preferences`).Error
}
