package services

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prolink-chat/internal/domain/message"
	"prolink-chat/internal/events"
	prolink_errors "prolink-chat/pkg/errors"
)

func TestCreateThreadSeedsParticipants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()
	f.online(bob, false)
	parent := f.send(t, alice, bob, "let's discuss")

	thread, err := f.threads.CreateThread(ctx, bob, parent.ID)
	require.NoError(t, err)
	assert.Equal(t, message.ThreadActive, thread.Status)
	assert.Equal(t, 0, thread.ReplyCount)
	assert.ElementsMatch(t, []uuid.UUID{alice, bob}, []uuid.UUID(thread.ParticipantIDs))

	again, err := f.threads.CreateThread(ctx, alice, parent.ID)
	require.NoError(t, err)
	assert.Equal(t, thread.ID, again.ID)

	assert.Len(t, f.pusher.to(alice, events.TypeNewMessageThread), 1)
	assert.Len(t, f.pusher.to(bob, events.TypeNewMessageThread), 1)

	_, err = f.threads.CreateThread(ctx, uuid.New(), parent.ID)
	assert.ErrorIs(t, err, prolink_errors.ErrNotFound)
}

func TestConcurrentThreadCreationConverges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()
	f.online(bob, false)
	parent := f.send(t, alice, bob, "race")

	ids := make([]uuid.UUID, 8)
	var wg sync.WaitGroup
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			thread, err := f.threads.CreateThread(ctx, alice, parent.ID)
			if assert.NoError(t, err) {
				ids[i] = thread.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func TestParticipantsAreIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()
	f.online(bob, false)
	parent := f.send(t, alice, bob, "parent")
	thread, err := f.threads.CreateThread(ctx, alice, parent.ID)
	require.NoError(t, err)

	updated, err := f.threads.RemoveParticipant(ctx, alice, thread.ID, bob)
	require.NoError(t, err)
	assert.Equal(t, message.ParticipantSet{alice}, updated.ParticipantIDs)

	updated, err = f.threads.RemoveParticipant(ctx, alice, thread.ID, bob)
	require.NoError(t, err)
	assert.Equal(t, message.ParticipantSet{alice}, updated.ParticipantIDs)

	updated, err = f.threads.AddParticipant(ctx, alice, thread.ID, bob)
	require.NoError(t, err)
	updated, err = f.threads.AddParticipant(ctx, alice, thread.ID, bob)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{alice, bob}, []uuid.UUID(updated.ParticipantIDs))

	_, err = f.threads.AddParticipant(ctx, alice, thread.ID, uuid.New())
	assert.ErrorIs(t, err, prolink_errors.ErrInvalidInput)
	_, err = f.threads.AddParticipant(ctx, uuid.New(), thread.ID, bob)
	assert.ErrorIs(t, err, prolink_errors.ErrNotFound)
}

func TestRemovedParticipantRejoinsOnlyByReplying(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()
	f.online(alice, false)
	f.online(bob, false)
	parent := f.send(t, alice, bob, "parent")
	parentID := parent.ID

	reply, err := f.messages.Send(ctx, SendRequest{SenderID: bob, RecipientID: alice, Content: "bob first", ParentMessageID: &parentID})
	require.NoError(t, err)
	threadID := *reply.ThreadID

	_, err = f.threads.RemoveParticipant(ctx, alice, threadID, bob)
	require.NoError(t, err)

	_, err = f.messages.Send(ctx, SendRequest{SenderID: alice, RecipientID: bob, Content: "alice again", ParentMessageID: &parentID})
	require.NoError(t, err)
	thread, err := f.store.Threads().GetByID(ctx, threadID)
	require.NoError(t, err)
	assert.Equal(t, message.ParticipantSet{alice}, thread.ParticipantIDs)
	assert.Equal(t, 2, thread.ReplyCount)

	_, err = f.messages.Send(ctx, SendRequest{SenderID: bob, RecipientID: alice, Content: "bob back", ParentMessageID: &parentID})
	require.NoError(t, err)
	thread, err = f.store.Threads().GetByID(ctx, threadID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{alice, bob}, []uuid.UUID(thread.ParticipantIDs))
	assert.Equal(t, 3, thread.ReplyCount)
}

func TestThreadRecountAfterDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()
	f.online(bob, false)
	f.online(alice, false)
	parent := f.send(t, alice, bob, "parent")
	parentID := parent.ID

	first, err := f.messages.Send(ctx, SendRequest{SenderID: bob, RecipientID: alice, Content: "first", ParentMessageID: &parentID})
	require.NoError(t, err)
	second, err := f.messages.Send(ctx, SendRequest{SenderID: bob, RecipientID: alice, Content: "second", ParentMessageID: &parentID})
	require.NoError(t, err)

	require.NoError(t, f.messages.Delete(ctx, bob, second.ID))

	view, err := f.threads.GetThread(ctx, alice, *first.ThreadID, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, view.Thread.ReplyCount)
	assert.Equal(t, "first", view.Thread.ReplyPreview)
	require.Len(t, view.Replies, 1)
	assert.Equal(t, first.ID, view.Replies[0].ID)
	assert.Equal(t, parentID, view.Parent.ID)

	_, err = f.threads.GetThread(ctx, uuid.New(), *first.ThreadID, 1, 20)
	assert.ErrorIs(t, err, prolink_errors.ErrNotFound)

	require.NoError(t, f.messages.Delete(ctx, alice, parentID))
	thread, err := f.store.Threads().GetByID(ctx, *first.ThreadID)
	require.NoError(t, err)
	assert.Equal(t, message.ThreadDeleted, thread.Status)
}

func TestUpdateThreadStatusValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()
	f.online(bob, false)
	parent := f.send(t, alice, bob, "parent")
	thread, err := f.threads.CreateThread(ctx, alice, parent.ID)
	require.NoError(t, err)

	_, err = f.threads.UpdateStatus(ctx, alice, thread.ID, "closed")
	assert.ErrorIs(t, err, prolink_errors.ErrInvalidInput)

	_, err = f.threads.UpdateStatus(ctx, uuid.New(), thread.ID, message.ThreadArchived)
	assert.ErrorIs(t, err, prolink_errors.ErrNotFound)

	archived, err := f.threads.UpdateStatus(ctx, bob, thread.ID, message.ThreadArchived)
	require.NoError(t, err)
	assert.Equal(t, message.ThreadArchived, archived.Status)
	assert.NotEmpty(t, f.pusher.to(alice, events.TypeThreadUpdated))
}
