package services

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prolink-chat/internal/domain/message"
	"prolink-chat/internal/events"
	"prolink-chat/pkg/logger"
)

func typingStates(p *recordingPusher, userID uuid.UUID) []bool {
	var out []bool
	for _, ev := range p.to(userID, events.TypeTypingIndicator) {
		out = append(out, ev.Payload.(events.TypingPayload).IsTyping)
	}
	return out
}

func TestTypingAutoExpiryBroadcastsOnce(t *testing.T) {
	pusher := &recordingPusher{}
	svc := NewTypingService(pusher, 50*time.Millisecond, logger.NewNop())
	defer svc.Stop()
	alice, bob := uuid.New(), uuid.New()

	svc.StartTyping(alice, bob)
	assert.True(t, svc.IsTyping(alice, message.ConversationIDFor(alice, bob)))
	assert.Equal(t, []bool{true}, typingStates(pusher, bob))

	require.Eventually(t, func() bool {
		return len(typingStates(pusher, bob)) == 2
	}, time.Second, 5*time.Millisecond)

	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, []bool{true, false}, typingStates(pusher, bob))
	assert.Empty(t, typingStates(pusher, alice))
	assert.Equal(t, 0, svc.ActiveCount())

	ev := pusher.to(bob, events.TypeTypingIndicator)[1].Payload.(events.TypingPayload)
	assert.Equal(t, alice, ev.User.ID)
	assert.Equal(t, message.ConversationIDFor(alice, bob), ev.ConversationID)
}

func TestTypingRefreshExtendsWithoutRebroadcast(t *testing.T) {
	pusher := &recordingPusher{}
	svc := NewTypingService(pusher, 150*time.Millisecond, logger.NewNop())
	defer svc.Stop()
	alice, bob := uuid.New(), uuid.New()
	conv := message.ConversationIDFor(alice, bob)

	svc.StartTyping(alice, bob)
	time.Sleep(90 * time.Millisecond)
	svc.StartTyping(alice, bob)
	time.Sleep(90 * time.Millisecond)

	// past the first deadline but inside the refreshed one
	assert.True(t, svc.IsTyping(alice, conv))
	assert.Equal(t, []bool{true}, typingStates(pusher, bob))
	assert.Equal(t, []uuid.UUID{alice}, svc.TypingUsers(conv))

	require.Eventually(t, func() bool {
		return len(typingStates(pusher, bob)) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []bool{true, false}, typingStates(pusher, bob))
}

func TestTypingStopIsIdempotent(t *testing.T) {
	pusher := &recordingPusher{}
	svc := NewTypingService(pusher, time.Minute, logger.NewNop())
	defer svc.Stop()
	alice, bob := uuid.New(), uuid.New()

	svc.StopTyping(alice, bob)
	assert.Empty(t, typingStates(pusher, bob))

	svc.StartTyping(alice, bob)
	svc.StopTyping(alice, bob)
	svc.StopTyping(alice, bob)
	assert.Equal(t, []bool{true, false}, typingStates(pusher, bob))
	assert.False(t, svc.IsTyping(alice, message.ConversationIDFor(alice, bob)))
}

func TestTypingCleanupUser(t *testing.T) {
	pusher := &recordingPusher{}
	svc := NewTypingService(pusher, time.Minute, logger.NewNop())
	defer svc.Stop()
	alice, bob, carol := uuid.New(), uuid.New(), uuid.New()

	svc.StartTyping(alice, bob)
	svc.StartTyping(alice, carol)
	svc.StartTyping(bob, alice)
	require.Equal(t, 3, svc.ActiveCount())

	svc.CleanupUser(alice)

	assert.Equal(t, 1, svc.ActiveCount())
	assert.True(t, svc.IsTyping(bob, message.ConversationIDFor(alice, bob)))
	assert.Equal(t, []bool{true, false}, typingStates(pusher, bob))
	assert.Equal(t, []bool{true, false}, typingStates(pusher, carol))
	// bob's own entry towards alice is untouched
	assert.Equal(t, []bool{true}, typingStates(pusher, alice))
}

func TestTypingConcurrentSignals(t *testing.T) {
	pusher := &recordingPusher{}
	svc := NewTypingService(pusher, 5*time.Millisecond, logger.NewNop())
	alice, bob := uuid.New(), uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				switch (i + j) % 3 {
				case 0:
					svc.StartTyping(alice, bob)
				case 1:
					svc.StopTyping(alice, bob)
				default:
					svc.CleanupUser(alice)
				}
			}
		}(i)
	}
	wg.Wait()

	require.Eventually(t, func() bool { return svc.ActiveCount() == 0 }, time.Second, 5*time.Millisecond)

	// every entry that announced true is removed exactly once
	balanced := func() bool {
		trues, falses := 0, 0
		for _, s := range typingStates(pusher, bob) {
			if s {
				trues++
			} else {
				falses++
			}
		}
		return trues > 0 && trues == falses
	}
	assert.Eventually(t, balanced, time.Second, 5*time.Millisecond)

	svc.Stop()
	svc.StartTyping(alice, bob)
	assert.Equal(t, 0, svc.ActiveCount())
}
