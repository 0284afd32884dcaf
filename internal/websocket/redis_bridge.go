package websocket

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"prolink-chat/internal/events"
)

const (
	bridgeMinBackoff = 500 * time.Millisecond
	bridgeMaxBackoff = 30 * time.Second
)

var errSubscriptionClosed = errors.New("subscription closed")

// RedisBridge delivers frames published by other processes to handles on this one.
type RedisBridge struct {
	subscriber events.Subscriber
	hub        *Hub
	logger     *Logger

	minBackoff time.Duration
	maxBackoff time.Duration
	after      func(time.Duration) <-chan time.Time
	now        func() time.Time
}

func NewRedisBridge(subscriber events.Subscriber, hub *Hub, logger *Logger) *RedisBridge {
	return &RedisBridge{
		subscriber: subscriber,
		hub:        hub,
		logger:     logger,
		minBackoff: bridgeMinBackoff,
		maxBackoff: bridgeMaxBackoff,
		after:      time.After,
		now:        time.Now,
	}
}

// Run keeps the subscription alive until ctx is done. A failed subscription is retried
// with exponential backoff; a subscription that stayed up longer than the backoff cap
// starts over from the minimum delay. Frames published while resubscribing are lost.
func (b *RedisBridge) Run(ctx context.Context) {
	delay := b.minBackoff
	for {
		started := b.now()
		err := b.subscriber.Subscribe(ctx, []string{events.UserChannelPattern}, b.deliver)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			err = errSubscriptionClosed
		}
		if b.now().Sub(started) > b.maxBackoff {
			delay = b.minBackoff
		}

		b.logger.Warn("redis subscription lost, resubscribing", uuid.Nil, "",
			zap.Error(err), zap.Duration("retry_in", delay))
		select {
		case <-ctx.Done():
			return
		case <-b.after(delay):
		}
		delay = min(delay*2, b.maxBackoff)
	}
}

func (b *RedisBridge) deliver(channel string, payload []byte) {
	userID, ok := events.UserFromChannel(channel)
	if !ok {
		b.logger.Warn("ignoring frame on unknown channel", uuid.Nil, "", zap.String("channel", channel))
		return
	}
	b.hub.SendRaw(userID, payload)
}
