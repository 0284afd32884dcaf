package services

import (
	"sync"
	"testing"
	"time"

	"prolink-chat/pkg/logger"
	"prolink-chat/pkg/validator"
)

// stepClock hands out strictly increasing timestamps.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type fixture struct {
	store    *memStore
	pusher   *recordingPusher
	presence *mockPresence
	clock    *stepClock

	attachments   *AttachmentService
	delivery      *DeliveryService
	notifications *NotificationService
	reactions     *ReactionService
	threads       *ThreadService
	search        *SearchService
	messages      *MessageService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log := logger.NewNop()
	v := validator.New()
	f := &fixture{
		store:    newMemStore(),
		pusher:   &recordingPusher{},
		presence: &mockPresence{},
		clock:    newStepClock(),
	}

	f.attachments = NewAttachmentService(nil, log)
	f.delivery = NewDeliveryService(f.store, f.presence, f.pusher, nil, log)
	f.delivery.now = f.clock.Now
	f.notifications = NewNotificationService(f.store, f.pusher, v, nil, log)
	f.notifications.now = f.clock.Now
	f.reactions = NewReactionService(f.store, f.pusher, f.notifications, v, log)
	f.reactions.now = f.clock.Now
	f.threads = NewThreadService(f.store, f.pusher, f.attachments, log)
	f.threads.now = f.clock.Now
	f.search = NewSearchService(f.store, f.attachments, nil, log)
	f.messages = NewMessageService(MessageServiceDeps{
		Store:         f.store,
		Pusher:        f.pusher,
		Delivery:      f.delivery,
		Threads:       f.threads,
		Notifications: f.notifications,
		Search:        f.search,
		Attachments:   f.attachments,
		Validator:     v,
		Logger:        log,
	})
	f.messages.now = f.clock.Now
	return f
}
