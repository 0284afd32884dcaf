package websocket

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"prolink-chat/internal/events"
	prolink_errors "prolink-chat/pkg/errors"
)

var (
	ErrUnknownFrame   = errors.New("unknown frame type")
	ErrMalformedFrame = fmt.Errorf("%w: malformed frame", prolink_errors.ErrInvalidInput)
)

type TypingTracker interface {
	StartTyping(userID, recipientID uuid.UUID)
	StopTyping(userID, recipientID uuid.UUID)
}

type ReadMarker interface {
	MarkConversationRead(ctx context.Context, readerID, otherID uuid.UUID) (int64, error)
}

// Dispatcher routes inbound client frames to the typing tracker and delivery state machine.
type Dispatcher struct {
	typing TypingTracker
	reads  ReadMarker
}

func NewDispatcher(typing TypingTracker, reads ReadMarker) *Dispatcher {
	return &Dispatcher{typing: typing, reads: reads}
}

func (d *Dispatcher) HandleFrame(ctx context.Context, userID uuid.UUID, data []byte) error {
	frame, err := events.DecodeFrame(data)
	if err != nil {
		return ErrMalformedFrame
	}

	switch frame.Type {
	case events.FrameTyping:
		var req events.TypingFrame
		if err := frame.Decode(&req); err != nil || req.RecipientID == uuid.Nil || req.RecipientID == userID {
			return ErrMalformedFrame
		}
		if req.IsTyping {
			d.typing.StartTyping(userID, req.RecipientID)
		} else {
			d.typing.StopTyping(userID, req.RecipientID)
		}
		return nil

	case events.FrameReadMessages:
		var req events.ReadMessagesFrame
		if err := frame.Decode(&req); err != nil || req.SenderID == uuid.Nil || req.SenderID == userID {
			return ErrMalformedFrame
		}
		if _, err := d.reads.MarkConversationRead(ctx, userID, req.SenderID); err != nil {
			return fmt.Errorf("mark conversation read: %w", err)
		}
		return nil

	default:
		return fmt.Errorf("%w: %q", ErrUnknownFrame, frame.Type)
	}
}
