package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"gorm.io/datatypes"

	"prolink-chat/internal/domain/message"
	"prolink-chat/internal/domain/notification"
	"prolink-chat/internal/events"
	"prolink-chat/internal/repository"
	prolink_errors "prolink-chat/pkg/errors"
)

// memData is the state behind memStore. Transactions snapshot it and restore on error.
type memData struct {
	messages      map[uuid.UUID]message.Message
	reactions     []message.Reaction
	threads       map[uuid.UUID]message.MessageThread
	notifications map[uuid.UUID]notification.Notification
	prefs         map[uuid.UUID]notification.Preference
	searchDocs    map[uuid.UUID]string
}

func (d *memData) clone() *memData {
	out := &memData{
		messages:      make(map[uuid.UUID]message.Message, len(d.messages)),
		reactions:     append([]message.Reaction(nil), d.reactions...),
		threads:       make(map[uuid.UUID]message.MessageThread, len(d.threads)),
		notifications: make(map[uuid.UUID]notification.Notification, len(d.notifications)),
		prefs:         make(map[uuid.UUID]notification.Preference, len(d.prefs)),
		searchDocs:    make(map[uuid.UUID]string, len(d.searchDocs)),
	}
	for k, v := range d.messages {
		out.messages[k] = v
	}
	for k, v := range d.threads {
		out.threads[k] = v
	}
	for k, v := range d.notifications {
		out.notifications[k] = v
	}
	for k, v := range d.prefs {
		out.prefs[k] = v
	}
	for k, v := range d.searchDocs {
		out.searchDocs[k] = v
	}
	return out
}

// memStore is an in-memory repository.Store. WithTx serializes whole transactions,
// which stands in for the row locks taken by the gorm store.
type memStore struct {
	mu   *sync.Mutex
	txMu *sync.Mutex
	data **memData
	inTx bool

	failNotificationCreate error
	failSearchDocument     error
}

func newMemStore() *memStore {
	d := &memData{
		messages:      map[uuid.UUID]message.Message{},
		threads:       map[uuid.UUID]message.MessageThread{},
		notifications: map[uuid.UUID]notification.Notification{},
		prefs:         map[uuid.UUID]notification.Preference{},
		searchDocs:    map[uuid.UUID]string{},
	}
	return &memStore{mu: &sync.Mutex{}, txMu: &sync.Mutex{}, data: &d}
}

func (s *memStore) d() *memData { return *s.data }

func (s *memStore) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *memStore) Messages() repository.MessageRepository           { return memMessages{s} }
func (s *memStore) Reactions() repository.ReactionRepository         { return memReactions{s} }
func (s *memStore) Threads() repository.ThreadRepository             { return memThreads{s} }
func (s *memStore) Notifications() repository.NotificationRepository { return memNotifications{s} }
func (s *memStore) Search() repository.SearchRepository              { return memSearch{s} }

func (s *memStore) WithTx(ctx context.Context, fn func(repository.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.d().clone()
	tx := *s
	tx.inTx = true
	if err := fn(&tx); err != nil {
		*s.data = snapshot
		return err
	}
	return nil
}

func (s *memStore) message(id uuid.UUID) message.Message {
	defer s.lock()()
	return s.d().messages[id]
}

func (s *memStore) notificationCount(userID uuid.UUID) int {
	defer s.lock()()
	n := 0
	for _, item := range s.d().notifications {
		if item.UserID == userID {
			n++
		}
	}
	return n
}

type memMessages struct{ s *memStore }

func (r memMessages) Create(ctx context.Context, m *message.Message) error {
	defer r.s.lock()()
	r.s.d().messages[m.ID] = *m
	return nil
}

func (r memMessages) GetByID(ctx context.Context, id uuid.UUID) (message.Message, error) {
	defer r.s.lock()()
	m, ok := r.s.d().messages[id]
	if !ok {
		return message.Message{}, prolink_errors.ErrNotFound
	}
	return m, nil
}

func (r memMessages) GetForUpdate(ctx context.Context, id uuid.UUID) (message.Message, error) {
	return r.GetByID(ctx, id)
}

func (r memMessages) Delete(ctx context.Context, id uuid.UUID) error {
	defer r.s.lock()()
	if _, ok := r.s.d().messages[id]; !ok {
		return prolink_errors.ErrNotFound
	}
	delete(r.s.d().messages, id)
	return nil
}

func advance(m *message.Message, status message.Status, at time.Time) bool {
	if !m.Status.CanAdvanceTo(status) {
		return false
	}
	m.Status = status
	if m.DeliveredAt == nil {
		t := at
		m.DeliveredAt = &t
	}
	if status == message.StatusRead && m.ReadAt == nil {
		t := at
		m.ReadAt = &t
	}
	return true
}

func (r memMessages) AdvanceStatus(ctx context.Context, id uuid.UUID, status message.Status, at time.Time) (bool, error) {
	defer r.s.lock()()
	m, ok := r.s.d().messages[id]
	if !ok {
		return false, prolink_errors.ErrNotFound
	}
	applied := advance(&m, status, at)
	r.s.d().messages[id] = m
	return applied, nil
}

func (r memMessages) MarkConversationRead(ctx context.Context, conversationID, recipientID uuid.UUID, at time.Time) (int64, error) {
	defer r.s.lock()()
	var n int64
	for id, m := range r.s.d().messages {
		if m.ConversationID != conversationID || m.RecipientID != recipientID {
			continue
		}
		if advance(&m, message.StatusRead, at) {
			r.s.d().messages[id] = m
			n++
		}
	}
	return n, nil
}

func (r memMessages) update(id uuid.UUID, fn func(*message.Message)) error {
	defer r.s.lock()()
	m, ok := r.s.d().messages[id]
	if !ok {
		return prolink_errors.ErrNotFound
	}
	fn(&m)
	r.s.d().messages[id] = m
	return nil
}

func (r memMessages) UpdateReactionSummary(ctx context.Context, id uuid.UUID, summary message.ReactionSummary) error {
	return r.update(id, func(m *message.Message) { m.ReactionSummary = datatypes.NewJSONType(summary) })
}

func (r memMessages) AttachThread(ctx context.Context, id, threadID uuid.UUID) error {
	return r.update(id, func(m *message.Message) { m.ThreadID = &threadID })
}

func (r memMessages) UpdateSearchDocument(ctx context.Context, id uuid.UUID, document string) error {
	if r.s.failSearchDocument != nil {
		return r.s.failSearchDocument
	}
	defer r.s.lock()()
	r.s.d().searchDocs[id] = document
	return nil
}

func (r memMessages) sorted(filter func(message.Message) bool) []message.Message {
	var out []message.Message
	for _, m := range r.s.d().messages {
		if filter(m) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r memMessages) ListConversation(ctx context.Context, conversationID uuid.UUID, page, limit int) ([]message.Message, int64, error) {
	defer r.s.lock()()
	all := r.sorted(func(m message.Message) bool { return m.ConversationID == conversationID })
	return all, int64(len(all)), nil
}

func (r memMessages) ListConversations(ctx context.Context, userID uuid.UUID, page, limit int) ([]repository.ConversationSummary, error) {
	defer r.s.lock()()
	latest := map[uuid.UUID]message.Message{}
	unread := map[uuid.UUID]int64{}
	for _, m := range r.sorted(func(m message.Message) bool { return m.Involves(userID) }) {
		latest[m.ConversationID] = m
		if m.RecipientID == userID && m.Status != message.StatusRead {
			unread[m.ConversationID]++
		}
	}
	out := make([]repository.ConversationSummary, 0, len(latest))
	for id, m := range latest {
		out = append(out, repository.ConversationSummary{ConversationID: id, OtherUserID: m.Counterpart(userID), LastMessage: m, UnreadCount: unread[id]})
	}
	return out, nil
}

func (r memMessages) Around(ctx context.Context, target message.Message, n int) ([]message.Message, []message.Message, error) {
	defer r.s.lock()()
	all := r.sorted(func(m message.Message) bool { return m.ConversationID == target.ConversationID })
	var before, after []message.Message
	for _, m := range all {
		switch {
		case m.CreatedAt.Before(target.CreatedAt):
			before = append(before, m)
		case m.CreatedAt.After(target.CreatedAt):
			after = append(after, m)
		}
	}
	if len(before) > n {
		before = before[len(before)-n:]
	}
	if len(after) > n {
		after = after[:n]
	}
	return before, after, nil
}

type memReactions struct{ s *memStore }

func (r memReactions) Exists(ctx context.Context, messageID, userID uuid.UUID, emoji string) (bool, error) {
	defer r.s.lock()()
	for _, x := range r.s.d().reactions {
		if x.MessageID == messageID && x.UserID == userID && x.Emoji == emoji {
			return true, nil
		}
	}
	return false, nil
}

func (r memReactions) Create(ctx context.Context, reaction *message.Reaction) error {
	defer r.s.lock()()
	for _, x := range r.s.d().reactions {
		if x.MessageID == reaction.MessageID && x.UserID == reaction.UserID && x.Emoji == reaction.Emoji {
			return prolink_errors.ErrDuplicateReaction
		}
	}
	r.s.d().reactions = append(r.s.d().reactions, *reaction)
	return nil
}

func (r memReactions) rows(messageID uuid.UUID) []message.Reaction {
	var out []message.Reaction
	for _, x := range r.s.d().reactions {
		if x.MessageID == messageID {
			out = append(out, x)
		}
	}
	return out
}

func (r memReactions) Summarize(ctx context.Context, messageID uuid.UUID) (message.ReactionSummary, error) {
	defer r.s.lock()()
	out := message.ReactionSummary{}
	for _, x := range r.rows(messageID) {
		out[x.Emoji]++
	}
	return out, nil
}

func (r memReactions) Groups(ctx context.Context, messageID uuid.UUID) ([]message.ReactionGroup, error) {
	defer r.s.lock()()
	return repository.GroupReactions(r.rows(messageID)), nil
}

type memThreads struct{ s *memStore }

func (r memThreads) Create(ctx context.Context, t *message.MessageThread) error {
	defer r.s.lock()()
	for _, x := range r.s.d().threads {
		if x.ParentMessageID == t.ParentMessageID {
			return prolink_errors.ErrAlreadyExists
		}
	}
	r.s.d().threads[t.ID] = *t
	return nil
}

func (r memThreads) GetByID(ctx context.Context, id uuid.UUID) (message.MessageThread, error) {
	defer r.s.lock()()
	t, ok := r.s.d().threads[id]
	if !ok {
		return message.MessageThread{}, prolink_errors.ErrNotFound
	}
	return t, nil
}

func (r memThreads) GetForUpdate(ctx context.Context, id uuid.UUID) (message.MessageThread, error) {
	return r.GetByID(ctx, id)
}

func (r memThreads) GetByParent(ctx context.Context, parentMessageID uuid.UUID) (message.MessageThread, error) {
	defer r.s.lock()()
	for _, t := range r.s.d().threads {
		if t.ParentMessageID == parentMessageID {
			return t, nil
		}
	}
	return message.MessageThread{}, prolink_errors.ErrNotFound
}

func (r memThreads) Update(ctx context.Context, t message.MessageThread) error {
	defer r.s.lock()()
	if _, ok := r.s.d().threads[t.ID]; !ok {
		return prolink_errors.ErrNotFound
	}
	r.s.d().threads[t.ID] = t
	return nil
}

func (r memThreads) Stats(ctx context.Context, threadID uuid.UUID) (repository.ThreadStats, error) {
	defer r.s.lock()()
	var stats repository.ThreadStats
	for _, m := range (memMessages{r.s}).sorted(func(m message.Message) bool {
		return m.ThreadID != nil && *m.ThreadID == threadID && m.IsThreadReply
	}) {
		stats.ReplyCount++
		latest := m
		stats.LatestReply = &latest
	}
	return stats, nil
}

func (r memThreads) Replies(ctx context.Context, threadID uuid.UUID, page, limit int) ([]message.Message, int64, error) {
	defer r.s.lock()()
	all := (memMessages{r.s}).sorted(func(m message.Message) bool {
		return m.ThreadID != nil && *m.ThreadID == threadID && m.IsThreadReply
	})
	return all, int64(len(all)), nil
}

type memNotifications struct{ s *memStore }

func (r memNotifications) Create(ctx context.Context, n *notification.Notification) error {
	if r.s.failNotificationCreate != nil {
		return r.s.failNotificationCreate
	}
	defer r.s.lock()()
	r.s.d().notifications[n.ID] = *n
	return nil
}

func (r memNotifications) List(ctx context.Context, userID uuid.UUID, unreadOnly bool, page, limit int) ([]notification.Notification, int64, error) {
	defer r.s.lock()()
	var out []notification.Notification
	for _, n := range r.s.d().notifications {
		if n.UserID == userID && (!unreadOnly || !n.IsRead) {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, int64(len(out)), nil
}

func (r memNotifications) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	defer r.s.lock()()
	var count int64
	for _, n := range r.s.d().notifications {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (r memNotifications) MarkRead(ctx context.Context, userID uuid.UUID, ids []uuid.UUID, at time.Time) (int64, error) {
	defer r.s.lock()()
	var count int64
	for _, id := range ids {
		n, ok := r.s.d().notifications[id]
		if !ok || n.UserID != userID || n.IsRead {
			continue
		}
		n.IsRead = true
		t := at
		n.ReadAt = &t
		r.s.d().notifications[id] = n
		count++
	}
	return count, nil
}

func (r memNotifications) MarkAllRead(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	defer r.s.lock()()
	var count int64
	for id, n := range r.s.d().notifications {
		if n.UserID != userID || n.IsRead {
			continue
		}
		n.IsRead = true
		t := at
		n.ReadAt = &t
		r.s.d().notifications[id] = n
		count++
	}
	return count, nil
}

func (r memNotifications) Delete(ctx context.Context, userID, id uuid.UUID) error {
	defer r.s.lock()()
	n, ok := r.s.d().notifications[id]
	if !ok || n.UserID != userID {
		return prolink_errors.ErrNotFound
	}
	delete(r.s.d().notifications, id)
	return nil
}

func (r memNotifications) DeleteAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	defer r.s.lock()()
	var count int64
	for id, n := range r.s.d().notifications {
		if n.UserID == userID {
			delete(r.s.d().notifications, id)
			count++
		}
	}
	return count, nil
}

func (r memNotifications) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	defer r.s.lock()()
	var count int64
	for id, n := range r.s.d().notifications {
		if n.IsRead && n.CreatedAt.Before(cutoff) {
			delete(r.s.d().notifications, id)
			count++
		}
	}
	return count, nil
}

func (r memNotifications) GetPreference(ctx context.Context, userID uuid.UUID) (notification.Preference, error) {
	defer r.s.lock()()
	if p, ok := r.s.d().prefs[userID]; ok {
		return p, nil
	}
	return notification.DefaultPreference(userID), nil
}

func (r memNotifications) SavePreference(ctx context.Context, p *notification.Preference) error {
	defer r.s.lock()()
	r.s.d().prefs[p.UserID] = *p
	return nil
}

type memSearch struct{ s *memStore }

func (r memSearch) Search(ctx context.Context, q repository.SearchQuery) ([]repository.SearchHit, int64, error) {
	defer r.s.lock()()
	var hits []repository.SearchHit
	for id, doc := range r.s.d().searchDocs {
		m, ok := r.s.d().messages[id]
		if !ok || !m.Involves(q.UserID) {
			continue
		}
		if strings.Contains(strings.ToLower(doc), strings.ToLower(q.Terms)) {
			hits = append(hits, repository.SearchHit{Message: m, Rank: 1, Highlight: doc})
		}
	}
	return hits, int64(len(hits)), nil
}

// recordingPusher captures pushed events.
type recordingPusher struct {
	mu     sync.Mutex
	pushes []push
}

type push struct {
	UserID uuid.UUID
	Event  events.Event
}

func (p *recordingPusher) Send(userID uuid.UUID, event events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushes = append(p.pushes, push{UserID: userID, Event: event})
}

func (p *recordingPusher) BroadcastExcept(excluded uuid.UUID, participants []uuid.UUID, event events.Event) {
	for _, id := range participants {
		if id != excluded {
			p.Send(id, event)
		}
	}
}

func (p *recordingPusher) to(userID uuid.UUID, eventType string) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Event
	for _, x := range p.pushes {
		if x.UserID == userID && x.Event.Type == eventType {
			out = append(out, x.Event)
		}
	}
	return out
}

// mockPresence is a testify mock of PresenceChecker.
type mockPresence struct {
	mock.Mock
}

func (m *mockPresence) CheckOnline(ctx context.Context, userID uuid.UUID) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

type mockSigner struct {
	mock.Mock
}

func (m *mockSigner) PresignGet(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

var errStoreDown = errors.New("store unavailable")
