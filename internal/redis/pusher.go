package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"prolink-chat/internal/events"
	"prolink-chat/internal/metrics"
	"prolink-chat/pkg/logger"
)

const publishTimeout = 2 * time.Second

// LocalSender delivers encoded frames to handles on this process.
type LocalSender interface {
	SendRaw(userID uuid.UUID, data []byte) int
	IsOnline(userID uuid.UUID) bool
}

// ClusterPusher publishes every push to the recipient's user channel. The bridge on
// each process, this one included, hands the frame to its local handles. When the
// publish fails the frame is delivered locally so single-process setups keep working.
type ClusterPusher struct {
	publisher events.Publisher
	local     LocalSender
	metrics   *metrics.Collectors
	logger    *logger.Logger
}

func NewClusterPusher(publisher events.Publisher, local LocalSender, m *metrics.Collectors, log *logger.Logger) *ClusterPusher {
	return &ClusterPusher{publisher: publisher, local: local, metrics: m, logger: log}
}

func (p *ClusterPusher) Send(userID uuid.UUID, event events.Event) {
	data, err := event.Marshal()
	if err != nil {
		p.logger.Logger.Error("failed to encode event", zap.String("type", event.Type), zap.Error(err))
		return
	}
	p.publish(userID, data)
}

func (p *ClusterPusher) BroadcastExcept(excluded uuid.UUID, participants []uuid.UUID, event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Logger.Error("failed to encode event", zap.String("type", event.Type), zap.Error(err))
		return
	}
	seen := make(map[uuid.UUID]struct{}, len(participants))
	for _, id := range participants {
		if id == excluded {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		p.publish(id, data)
	}
}

func (p *ClusterPusher) publish(userID uuid.UUID, data []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := p.publisher.Publish(ctx, events.UserChannel(userID), data); err != nil {
		p.metrics.Push(metrics.PushFailed)
		p.logger.Logger.Warn("publish failed, delivering locally",
			zap.String("user_id", userID.String()), zap.Error(err))
		p.local.SendRaw(userID, data)
		return
	}
	p.metrics.Push(metrics.PushRemote)
}

// OnlineStore answers presence for users connected to any process.
type OnlineStore interface {
	CheckOnline(ctx context.Context, userID uuid.UUID) (bool, error)
}

// ClusterPresence consults local handles first and falls back to the shared store.
type ClusterPresence struct {
	local LocalSender
	store OnlineStore
}

func NewClusterPresence(local LocalSender, store OnlineStore) *ClusterPresence {
	return &ClusterPresence{local: local, store: store}
}

func (p *ClusterPresence) CheckOnline(ctx context.Context, userID uuid.UUID) (bool, error) {
	if p.local.IsOnline(userID) {
		return true, nil
	}
	return p.store.CheckOnline(ctx, userID)
}
