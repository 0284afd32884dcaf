package message

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestStatusTransitions(t *testing.T) {
	assert.True(t, StatusSent.CanAdvanceTo(StatusDelivered))
	assert.True(t, StatusSent.CanAdvanceTo(StatusRead))
	assert.True(t, StatusDelivered.CanAdvanceTo(StatusRead))

	assert.False(t, StatusRead.CanAdvanceTo(StatusDelivered))
	assert.False(t, StatusDelivered.CanAdvanceTo(StatusDelivered))
	assert.False(t, StatusRead.CanAdvanceTo(StatusRead))
	assert.False(t, StatusSent.CanAdvanceTo(Status("bogus")))

	assert.Equal(t, []Status{StatusSent}, Predecessors(StatusDelivered))
	assert.Equal(t, []Status{StatusSent, StatusDelivered}, Predecessors(StatusRead))
	assert.Empty(t, Predecessors(StatusSent))
}

func TestDirectConversationIsOrderIndependent(t *testing.T) {
	a, b := uuid.New(), uuid.New()

	ab := Direct(a, b)
	ba := Direct(b, a)
	assert.Equal(t, ab.ID, ba.ID)
	assert.Equal(t, ab.Participants, ba.Participants)
	assert.ElementsMatch(t, []uuid.UUID{a, b}, ab.Members())

	assert.NotEqual(t, ab.ID, ConversationIDFor(a, uuid.New()))
}

func TestParticipantSet(t *testing.T) {
	a, b := uuid.New(), uuid.New()

	set := NewParticipantSet(a, b, a, uuid.Nil)
	assert.Len(t, set, 2)
	assert.Equal(t, NewParticipantSet(b, a), set)

	same, changed := set.With(a)
	assert.False(t, changed)
	assert.Equal(t, set, same)

	c := uuid.New()
	grown, changed := set.With(c)
	assert.True(t, changed)
	assert.Len(t, grown, 3)

	shrunk, changed := grown.Without(c)
	assert.True(t, changed)
	assert.Equal(t, set, shrunk)

	_, changed = shrunk.Without(c)
	assert.False(t, changed)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", Preview("short"))
	long := strings.Repeat("ä", 150)
	assert.Equal(t, strings.Repeat("ä", 100), Preview(long))
}
