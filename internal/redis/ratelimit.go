package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Key patterns:
// - ratelimit:{user_id}:messages
// - ratelimit:{user_id}:connects

type RateLimitConfig struct {
	MessageLimit  int
	MessageWindow time.Duration
	ConnectLimit  int
	ConnectWindow time.Duration
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MessageLimit:  60,
		MessageWindow: time.Minute,
		ConnectLimit:  20,
		ConnectWindow: time.Minute,
	}
}

type RateLimiter struct {
	client *goredis.Client
	config RateLimitConfig
}

type RateLimitResult struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
	Limit     int
}

func NewRateLimiter(client *goredis.Client, config RateLimitConfig) *RateLimiter {
	def := DefaultRateLimitConfig()
	if config.MessageLimit <= 0 {
		config.MessageLimit = def.MessageLimit
	}
	if config.MessageWindow <= 0 {
		config.MessageWindow = def.MessageWindow
	}
	if config.ConnectLimit <= 0 {
		config.ConnectLimit = def.ConnectLimit
	}
	if config.ConnectWindow <= 0 {
		config.ConnectWindow = def.ConnectWindow
	}
	return &RateLimiter{client: client, config: config}
}

// fixed window counter, incremented only while under the limit
var limitScript = goredis.NewScript(`
	local key = KEYS[1]
	local limit = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])

	local current = tonumber(redis.call('GET', key) or '0')
	local ttl = redis.call('TTL', key)
	if ttl < 0 then
		ttl = window
	end

	if current < limit then
		local n = redis.call('INCR', key)
		if n == 1 then
			redis.call('EXPIRE', key, window)
		end
		return {1, limit - current - 1, ttl}
	end
	return {0, 0, ttl}
`)

func (r *RateLimiter) CheckMessage(ctx context.Context, userID uuid.UUID) (RateLimitResult, error) {
	return r.Check(ctx, fmt.Sprintf("ratelimit:%s:messages", userID), r.config.MessageLimit, r.config.MessageWindow)
}

func (r *RateLimiter) AllowMessage(ctx context.Context, userID uuid.UUID) (bool, error) {
	res, err := r.CheckMessage(ctx, userID)
	if err != nil {
		return false, err
	}
	return res.Allowed, nil
}

func (r *RateLimiter) AllowConnect(ctx context.Context, userID uuid.UUID) (bool, error) {
	res, err := r.Check(ctx, fmt.Sprintf("ratelimit:%s:connects", userID), r.config.ConnectLimit, r.config.ConnectWindow)
	if err != nil {
		return false, err
	}
	return res.Allowed, nil
}

func (r *RateLimiter) Check(ctx context.Context, key string, limit int, window time.Duration) (RateLimitResult, error) {
	result, err := limitScript.Run(ctx, r.client, []string{key}, limit, int(window.Seconds())).Result()
	if err != nil {
		return RateLimitResult{}, fmt.Errorf("rate limit check failed: %w", err)
	}

	values, ok := result.([]interface{})
	if !ok || len(values) < 3 {
		return RateLimitResult{}, fmt.Errorf("unexpected rate limit result format")
	}
	allowed, _ := values[0].(int64)
	remaining, _ := values[1].(int64)
	ttl, _ := values[2].(int64)

	return RateLimitResult{
		Allowed:   allowed == 1,
		Remaining: int(remaining),
		ResetIn:   time.Duration(ttl) * time.Second,
		Limit:     limit,
	}, nil
}

func (r *RateLimiter) ResetUser(ctx context.Context, userID uuid.UUID) error {
	return r.client.Del(ctx,
		fmt.Sprintf("ratelimit:%s:messages", userID),
		fmt.Sprintf("ratelimit:%s:connects", userID),
	).Err()
}
