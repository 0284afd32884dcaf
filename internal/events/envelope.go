package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is the {type, payload} envelope written to live connections.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

func New(eventType string, payload interface{}) Event {
	return Event{Type: eventType, Payload: payload}
}

func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// ClientFrame is an inbound frame from a live connection.
type ClientFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// DecodeFrame parses a raw client frame. Fields may be nested under "payload" or sent
// flat next to "type"; both forms decode into the same frame.
func DecodeFrame(data []byte) (ClientFrame, error) {
	var frame ClientFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return ClientFrame{}, err
	}
	if len(frame.Payload) == 0 || string(frame.Payload) == "null" {
		frame.Payload = append(json.RawMessage(nil), data...)
	}
	return frame, nil
}

// Decode unmarshals the frame payload into v.
func (f ClientFrame) Decode(v interface{}) error {
	return json.Unmarshal(f.Payload, v)
}

type TypingFrame struct {
	RecipientID uuid.UUID `json:"recipientId"`
	IsTyping    bool      `json:"isTyping"`
}

type ReadMessagesFrame struct {
	SenderID uuid.UUID `json:"senderId"`
}

type UserRef struct {
	ID uuid.UUID `json:"id"`
}

type DeliveredPayload struct {
	MessageID   uuid.UUID `json:"messageId"`
	DeliveredAt time.Time `json:"deliveredAt"`
}

type ReadPayload struct {
	ConversationID uuid.UUID `json:"conversationId"`
	ReaderID       uuid.UUID `json:"readerId"`
	Count          int64     `json:"count"`
	ReadAt         time.Time `json:"readAt"`
}

type ReactionPayload struct {
	MessageID uuid.UUID      `json:"messageId"`
	Reaction  string         `json:"reaction"`
	User      UserRef        `json:"user"`
	Summary   map[string]int `json:"summary"`
	Reactors  interface{}    `json:"reactors,omitempty"`
}

type TypingPayload struct {
	ConversationID uuid.UUID `json:"conversationId"`
	User           UserRef   `json:"user"`
	IsTyping       bool      `json:"isTyping"`
}
