package message

import (
	"bytes"
	"sort"
	"time"

	"github.com/google/uuid"
)

const ReplyPreviewLength = 100

type ThreadStatus string

const (
	ThreadActive   ThreadStatus = "active"
	ThreadArchived ThreadStatus = "archived"
	ThreadDeleted  ThreadStatus = "deleted"
)

func (s ThreadStatus) Valid() bool {
	switch s {
	case ThreadActive, ThreadArchived, ThreadDeleted:
		return true
	}
	return false
}

// ParticipantSet is a deduplicated set of user ids kept in a canonical order.
type ParticipantSet []uuid.UUID

func NewParticipantSet(ids ...uuid.UUID) ParticipantSet {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make(ParticipantSet, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i][:], out[j][:]) < 0 })
	return out
}

func (p ParticipantSet) Contains(id uuid.UUID) bool {
	for _, v := range p {
		if v == id {
			return true
		}
	}
	return false
}

// With returns the set including id and whether it changed.
func (p ParticipantSet) With(id uuid.UUID) (ParticipantSet, bool) {
	if p.Contains(id) {
		return p, false
	}
	return NewParticipantSet(append(append([]uuid.UUID{}, p...), id)...), true
}

// Without returns the set excluding id and whether it changed.
func (p ParticipantSet) Without(id uuid.UUID) (ParticipantSet, bool) {
	if !p.Contains(id) {
		return p, false
	}
	out := make(ParticipantSet, 0, len(p)-1)
	for _, v := range p {
		if v != id {
			out = append(out, v)
		}
	}
	return out, true
}

// MessageThread represents message_threads
type MessageThread struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ParentMessageID uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"parentMessageId"`
	ConversationID  uuid.UUID      `gorm:"type:uuid;not null;index" json:"conversationId"`
	ParticipantIDs  ParticipantSet `gorm:"type:jsonb;serializer:json;not null" json:"participantIds"`
	ReplyCount      int            `gorm:"not null" json:"replyCount"`
	LastReplyAt     *time.Time     `json:"lastReplyAt,omitempty"`
	ReplyPreview    string         `gorm:"type:varchar(100)" json:"replyPreview,omitempty"`
	Status          ThreadStatus   `gorm:"type:varchar(16);not null" json:"status"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

func (MessageThread) TableName() string {
	return "message_threads"
}

// Preview truncates content to the thread preview length in characters.
func Preview(content string) string {
	runes := []rune(content)
	if len(runes) <= ReplyPreviewLength {
		return content
	}
	return string(runes[:ReplyPreviewLength])
}
