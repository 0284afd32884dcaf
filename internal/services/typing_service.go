package services

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"prolink-chat/internal/domain/message"
	"prolink-chat/internal/events"
	"prolink-chat/pkg/logger"
)

const DefaultTypingExpiry = 5 * time.Second

// TypingKey identifies one user's typing state in one conversation.
type TypingKey struct {
	ConversationID uuid.UUID
	UserID         uuid.UUID
}

type typingEntry struct {
	timer        *time.Timer
	generation   uint64
	deadline     time.Time
	participants []uuid.UUID
}

// TypingService tracks who is typing where. Entries expire on their own after the
// configured window unless refreshed. All mutations of the table happen under one
// mutex, and an expiry only removes the entry generation that scheduled it.
type TypingService struct {
	mu         sync.Mutex
	entries    map[TypingKey]*typingEntry
	generation uint64
	stopped    bool

	expiry time.Duration
	pusher Pusher
	log    *logger.Logger
}

func NewTypingService(pusher Pusher, expiry time.Duration, log *logger.Logger) *TypingService {
	if expiry <= 0 {
		expiry = DefaultTypingExpiry
	}
	return &TypingService{
		entries: make(map[TypingKey]*typingEntry),
		expiry:  expiry,
		pusher:  pusher,
		log:     log.Named("typing"),
	}
}

// StartTyping marks userID as typing to recipientID. A refresh before expiry extends
// the window without broadcasting again.
func (s *TypingService) StartTyping(userID, recipientID uuid.UUID) {
	conv := message.Direct(userID, recipientID)
	key := TypingKey{ConversationID: conv.ID, UserID: userID}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.generation++
	gen := s.generation

	entry, exists := s.entries[key]
	if exists {
		entry.timer.Stop()
	} else {
		entry = &typingEntry{participants: conv.Members()}
		s.entries[key] = entry
	}
	entry.generation = gen
	entry.deadline = time.Now().Add(s.expiry)
	entry.timer = time.AfterFunc(s.expiry, func() { s.expire(key, gen) })
	participants := entry.participants
	s.mu.Unlock()

	if !exists {
		s.broadcast(key, participants, true)
	}
}

// StopTyping clears the entry. Nothing is broadcast if the user was not typing.
func (s *TypingService) StopTyping(userID, recipientID uuid.UUID) {
	key := TypingKey{ConversationID: message.ConversationIDFor(userID, recipientID), UserID: userID}

	s.mu.Lock()
	entry, ok := s.entries[key]
	if ok {
		entry.timer.Stop()
		delete(s.entries, key)
	}
	s.mu.Unlock()

	if ok {
		s.broadcast(key, entry.participants, false)
	}
}

func (s *TypingService) expire(key TypingKey, gen uint64) {
	s.mu.Lock()
	entry, ok := s.entries[key]
	if !ok || entry.generation != gen {
		s.mu.Unlock()
		return
	}
	delete(s.entries, key)
	s.mu.Unlock()

	s.broadcast(key, entry.participants, false)
}

// CleanupUser drops every entry of userID, typically on its last disconnect.
func (s *TypingService) CleanupUser(userID uuid.UUID) {
	type removed struct {
		key          TypingKey
		participants []uuid.UUID
	}
	var cleared []removed

	s.mu.Lock()
	for key, entry := range s.entries {
		if key.UserID != userID {
			continue
		}
		entry.timer.Stop()
		delete(s.entries, key)
		cleared = append(cleared, removed{key: key, participants: entry.participants})
	}
	s.mu.Unlock()

	for _, r := range cleared {
		s.broadcast(r.key, r.participants, false)
	}
}

func (s *TypingService) IsTyping(userID, conversationID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[TypingKey{ConversationID: conversationID, UserID: userID}]
	return ok && time.Now().Before(entry.deadline)
}

// TypingUsers lists users currently typing in a conversation.
func (s *TypingService) TypingUsers(conversationID uuid.UUID) []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	out := make([]uuid.UUID, 0)
	for key, entry := range s.entries {
		if key.ConversationID == conversationID && now.Before(entry.deadline) {
			out = append(out, key.UserID)
		}
	}
	return out
}

func (s *TypingService) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Stop cancels every pending timer without broadcasting. Later starts are ignored.
func (s *TypingService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, entry := range s.entries {
		entry.timer.Stop()
		delete(s.entries, key)
	}
	s.stopped = true
}

func (s *TypingService) broadcast(key TypingKey, participants []uuid.UUID, typing bool) {
	s.pusher.BroadcastExcept(key.UserID, participants, events.New(events.TypeTypingIndicator, events.TypingPayload{
		ConversationID: key.ConversationID,
		User:           events.UserRef{ID: key.UserID},
		IsTyping:       typing,
	}))
}
