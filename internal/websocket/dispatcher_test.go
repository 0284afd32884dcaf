package websocket

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	prolink_errors "prolink-chat/pkg/errors"
)

type typingCall struct {
	user, recipient uuid.UUID
	typing          bool
}

type recordingTyping struct {
	mu    sync.Mutex
	calls []typingCall
}

func (r *recordingTyping) StartTyping(userID, recipientID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, typingCall{userID, recipientID, true})
}

func (r *recordingTyping) StopTyping(userID, recipientID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, typingCall{userID, recipientID, false})
}

func (r *recordingTyping) snapshot() []typingCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]typingCall(nil), r.calls...)
}

type mockReads struct{ mock.Mock }

func (m *mockReads) MarkConversationRead(ctx context.Context, readerID, otherID uuid.UUID) (int64, error) {
	args := m.Called(ctx, readerID, otherID)
	return args.Get(0).(int64), args.Error(1)
}

func TestDispatcherTypingFrames(t *testing.T) {
	typing := &recordingTyping{}
	d := NewDispatcher(typing, &mockReads{})
	alice, bob := uuid.New(), uuid.New()

	require.NoError(t, d.HandleFrame(t.Context(), alice,
		[]byte(fmt.Sprintf(`{"type":"typing","payload":{"recipientId":%q,"isTyping":true}}`, bob))))
	require.NoError(t, d.HandleFrame(t.Context(), alice,
		[]byte(fmt.Sprintf(`{"type":"typing","recipientId":%q,"isTyping":false}`, bob))))

	assert.Equal(t, []typingCall{{alice, bob, true}, {alice, bob, false}}, typing.snapshot())
}

func TestDispatcherReadMessages(t *testing.T) {
	reads := &mockReads{}
	d := NewDispatcher(&recordingTyping{}, reads)
	alice, bob := uuid.New(), uuid.New()

	reads.On("MarkConversationRead", mock.Anything, alice, bob).Return(int64(3), nil).Once()
	require.NoError(t, d.HandleFrame(t.Context(), alice,
		[]byte(fmt.Sprintf(`{"type":"read_messages","payload":{"senderId":%q}}`, bob))))

	down := errors.New("db down")
	reads.On("MarkConversationRead", mock.Anything, alice, bob).Return(int64(0), down).Once()
	err := d.HandleFrame(t.Context(), alice,
		[]byte(fmt.Sprintf(`{"type":"read_messages","senderId":%q}`, bob)))
	assert.ErrorIs(t, err, down)

	reads.AssertExpectations(t)
}

func TestDispatcherRejectsBadFrames(t *testing.T) {
	d := NewDispatcher(&recordingTyping{}, &mockReads{})
	alice := uuid.New()

	cases := []struct {
		name string
		raw  string
		want error
	}{
		{"not json", `typing`, ErrMalformedFrame},
		{"missing recipient", `{"type":"typing","payload":{"isTyping":true}}`, ErrMalformedFrame},
		{"self typing", fmt.Sprintf(`{"type":"typing","recipientId":%q,"isTyping":true}`, alice), ErrMalformedFrame},
		{"bad sender", `{"type":"read_messages","payload":{"senderId":"nope"}}`, ErrMalformedFrame},
		{"unknown", `{"type":"presence"}`, ErrUnknownFrame},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := d.HandleFrame(t.Context(), alice, []byte(tc.raw))
			assert.ErrorIs(t, err, tc.want)
		})
	}
	assert.ErrorIs(t, ErrMalformedFrame, prolink_errors.ErrInvalidInput)
}
