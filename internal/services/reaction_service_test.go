package services

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prolink-chat/internal/events"
	prolink_errors "prolink-chat/pkg/errors"
)

func TestDuplicateReactionRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()
	f.online(bob, false)
	m := f.send(t, alice, bob, "nice work")

	res, err := f.reactions.AddReaction(ctx, bob, m.ID, "👍")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Summary["👍"])

	_, err = f.reactions.AddReaction(ctx, bob, m.ID, "👍")
	assert.ErrorIs(t, err, prolink_errors.ErrDuplicateReaction)

	assert.Equal(t, 1, f.store.message(m.ID).ReactionSummary.Data()["👍"])
	groups, err := f.reactions.Reactions(ctx, alice, m.ID)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, 1, groups[0].Count)
	assert.Equal(t, []uuid.UUID{bob}, groups[0].Users)

	pushed := f.pusher.to(alice, events.TypeMessageReaction)
	require.Len(t, pushed, 1)
	payload := pushed[0].Payload.(events.ReactionPayload)
	assert.Equal(t, "👍", payload.Reaction)
	assert.Equal(t, bob, payload.User.ID)
	assert.Empty(t, f.pusher.to(bob, events.TypeMessageReaction))

	// the author is notified once, for the accepted reaction only
	notes, err := f.notifications.List(ctx, alice, false, 1, 20)
	require.NoError(t, err)
	assert.Len(t, notes.Items, 1)
}

func TestReactionValidationAndAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()
	f.online(bob, false)
	m := f.send(t, alice, bob, "hi")

	for _, bad := range []string{"", "ok", "👍👍", "a👍"} {
		_, err := f.reactions.AddReaction(ctx, bob, m.ID, bad)
		assert.ErrorIs(t, err, prolink_errors.ErrInvalidInput, bad)
	}

	_, err := f.reactions.AddReaction(ctx, uuid.New(), m.ID, "👍")
	assert.ErrorIs(t, err, prolink_errors.ErrNotFound)

	_, err = f.reactions.AddReaction(ctx, bob, uuid.New(), "👍")
	assert.ErrorIs(t, err, prolink_errors.ErrNotFound)

	assert.Empty(t, f.store.message(m.ID).ReactionSummary.Data())
}

func TestConcurrentReactionsAggregate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()
	f.online(bob, false)
	m := f.send(t, alice, bob, "party")

	emojis := []string{"👍", "❤️", "😂", "🎉", "🔥"}
	var wg sync.WaitGroup
	for _, user := range []uuid.UUID{alice, bob} {
		for _, emoji := range emojis {
			for attempt := 0; attempt < 3; attempt++ {
				wg.Add(1)
				go func(user uuid.UUID, emoji string) {
					defer wg.Done()
					_, _ = f.reactions.AddReaction(ctx, user, m.ID, emoji)
				}(user, emoji)
			}
		}
	}
	wg.Wait()

	summary := f.store.message(m.ID).ReactionSummary.Data()
	require.Len(t, summary, len(emojis))
	for _, emoji := range emojis {
		assert.Equal(t, 2, summary[emoji], emoji)
	}

	recount, err := f.store.Reactions().Summarize(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, recount, summary)
}
