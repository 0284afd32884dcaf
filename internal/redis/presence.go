package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const DefaultPresenceTTL = 2 * time.Minute

// PresenceStore mirrors live connections into Redis so every process can answer
// presence questions. Each user has a hash connections:<user> keyed by client id.
type PresenceStore struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewPresenceStore(client *goredis.Client, ttl time.Duration) *PresenceStore {
	if ttl <= 0 {
		ttl = DefaultPresenceTTL
	}
	return &PresenceStore{client: client, ttl: ttl}
}

func connectionsKey(userID uuid.UUID) string {
	return fmt.Sprintf("connections:%s", userID)
}

func (p *PresenceStore) TrackConnection(ctx context.Context, userID uuid.UUID, clientID string) error {
	key := connectionsKey(userID)
	pipe := p.client.Pipeline()
	pipe.HSet(ctx, key, clientID, time.Now().UTC().Format(time.RFC3339))
	pipe.Expire(ctx, key, p.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// RemoveConnection drops one connection and reports whether the user has none left.
func (p *PresenceStore) RemoveConnection(ctx context.Context, userID uuid.UUID, clientID string) (bool, error) {
	key := connectionsKey(userID)
	pipe := p.client.TxPipeline()
	pipe.HDel(ctx, key, clientID)
	count := pipe.HLen(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return count.Val() == 0, nil
}

func (p *PresenceStore) CheckOnline(ctx context.Context, userID uuid.UUID) (bool, error) {
	n, err := p.client.HLen(ctx, connectionsKey(userID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Refresh extends the TTL of each user's hash. Hashes of crashed processes are left
// to expire.
func (p *PresenceStore) Refresh(ctx context.Context, userIDs []uuid.UUID) error {
	if len(userIDs) == 0 {
		return nil
	}
	pipe := p.client.Pipeline()
	for _, id := range userIDs {
		pipe.Expire(ctx, connectionsKey(id), p.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// RunRefresh calls Refresh for the users returned by online every interval until ctx is done.
func (p *PresenceStore) RunRefresh(ctx context.Context, interval time.Duration, online func() []uuid.UUID, onErr func(error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.Refresh(ctx, online()); err != nil && onErr != nil {
				onErr(err)
			}
		}
	}
}
