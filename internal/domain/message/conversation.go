package message

import (
	"bytes"

	"github.com/google/uuid"
)

var conversationNamespace = uuid.MustParse("5f0e4a7c-3d1b-4c2e-9a61-0b7e2f8d4c13")

// Conversation is the unordered pairing of two users.
type Conversation struct {
	ID           uuid.UUID
	Participants [2]uuid.UUID
}

// Direct returns the conversation between a and b. The id does not depend on argument order.
func Direct(a, b uuid.UUID) Conversation {
	lo, hi := a, b
	if bytes.Compare(lo[:], hi[:]) > 0 {
		lo, hi = hi, lo
	}
	name := make([]byte, 0, 32)
	name = append(name, lo[:]...)
	name = append(name, hi[:]...)
	return Conversation{
		ID:           uuid.NewSHA1(conversationNamespace, name),
		Participants: [2]uuid.UUID{lo, hi},
	}
}

func ConversationIDFor(a, b uuid.UUID) uuid.UUID {
	return Direct(a, b).ID
}

func (c Conversation) Members() []uuid.UUID {
	return []uuid.UUID{c.Participants[0], c.Participants[1]}
}
