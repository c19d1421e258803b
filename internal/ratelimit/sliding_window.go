// Package ratelimit limits inbox API callers with a Redis sliding window.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

type SlidingWindowConfig struct {
	WindowSize  time.Duration
	MaxRequests int64
	// TTL bounds how long an idle caller's window survives in Redis.
	TTL time.Duration
}

func DefaultSlidingWindowConfig() SlidingWindowConfig {
	return SlidingWindowConfig{
		WindowSize:  time.Minute,
		MaxRequests: 100,
		TTL:         5 * time.Minute,
	}
}

// SlidingWindow counts requests per key over the last WindowSize.
type SlidingWindow struct {
	client redis.Cmdable
	config SlidingWindowConfig
	script *redis.Script
}

type Result struct {
	Allowed      bool          `json:"allowed"`
	CurrentCount int64         `json:"current_count"`
	Limit        int64         `json:"limit"`
	RetryAfter   time.Duration `json:"retry_after,omitempty"`
}

func NewSlidingWindow(client redis.Cmdable, config SlidingWindowConfig) *SlidingWindow {
	defaults := DefaultSlidingWindowConfig()
	if config.WindowSize <= 0 {
		config.WindowSize = defaults.WindowSize
	}
	if config.MaxRequests <= 0 {
		config.MaxRequests = defaults.MaxRequests
	}
	if config.TTL < config.WindowSize {
		config.TTL = config.WindowSize
	}
	return &SlidingWindow{
		client: client,
		config: config,
		script: redis.NewScript(slidingWindowScript),
	}
}

func (sw *SlidingWindow) keyName(key string) string {
	return "talentcloud:ratelimit:" + key
}

// Allow records a request for key if the window has room.
func (sw *SlidingWindow) Allow(ctx context.Context, key string) (*Result, error) {
	now := time.Now()
	windowStart := now.Add(-sw.config.WindowSize)

	raw, err := sw.script.Run(ctx, sw.client, []string{sw.keyName(key)},
		windowStart.UnixMilli(),
		now.UnixMilli(),
		sw.config.MaxRequests,
		int64(sw.config.TTL.Seconds()),
		uuid.NewString(),
	).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to check sliding window: %w", err)
	}

	values, ok := raw.([]interface{})
	if !ok || len(values) != 3 {
		return nil, fmt.Errorf("unexpected sliding window reply %v", raw)
	}

	result := &Result{
		Allowed:      toInt64(values[0]) == 1,
		CurrentCount: toInt64(values[1]),
		Limit:        sw.config.MaxRequests,
	}
	if !result.Allowed {
		result.RetryAfter = time.Duration(toInt64(values[2])) * time.Millisecond
	}
	return result, nil
}

// Clear forgets every request recorded for key.
func (sw *SlidingWindow) Clear(ctx context.Context, key string) error {
	return sw.client.Del(ctx, sw.keyName(key)).Err()
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}

// Members carry a random suffix so that two requests in the same
// millisecond are both counted.
const slidingWindowScript = `
local key = KEYS[1]
local window_start = tonumber(ARGV[1])
local now = tonumber(ARGV[2])
local max_requests = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])
local member = ARGV[2] .. '-' .. ARGV[5]

redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)

local current = redis.call('ZCARD', key)
local allowed = 0
local retry_after = 0

if current < max_requests then
    redis.call('ZADD', key, now, member)
    allowed = 1
    current = current + 1
else
    local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
    if #oldest > 0 then
        retry_after = tonumber(oldest[2]) + (now - window_start) - now
        if retry_after < 0 then
            retry_after = 0
        end
    end
end

redis.call('EXPIRE', key, ttl)

return {allowed, current, retry_after}
`
