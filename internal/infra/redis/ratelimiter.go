package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/raspapremio/prize-notifier/internal/ratelimit"
	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultSendsPerSecond = 5
	rateLimitKeyPrefix    = "prize-notifier:ratelimit"
	minWindowWait         = 5 * time.Millisecond
)

// takeSlot counts one send in the window key and reports whether it fits.
// The key outlives its one-second window by a second to tolerate clock skew
// between notifier processes.
var takeSlot = goredis.NewScript(`
local used = redis.call("INCR", KEYS[1])
if used == 1 then
  redis.call("EXPIRE", KEYS[1], 2)
end
if used > tonumber(ARGV[1]) then
  return 0
end
return 1
`)

var _ ratelimit.RateLimiter = (*GatewayLimiter)(nil)

// GatewayLimiter spreads WhatsApp sends from every notifier process over
// fixed one-second windows so the Evolution instance is never flooded.
type GatewayLimiter struct {
	client    *goredis.Client
	perSecond int
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
}

func NewGatewayLimiter(client *goredis.Client, perSecond int) (*GatewayLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if perSecond <= 0 {
		perSecond = defaultSendsPerSecond
	}

	return &GatewayLimiter{
		client:    client,
		perSecond: perSecond,
		now:       time.Now,
		sleep:     sleepWithContext,
	}, nil
}

// Allow takes a slot in the current window of bucket when one is free.
func (l *GatewayLimiter) Allow(ctx context.Context, bucket string) (bool, error) {
	if l == nil || l.client == nil {
		return false, fmt.Errorf("rate limiter is not initialized")
	}

	key, err := windowKey(bucket, l.now())
	if err != nil {
		return false, err
	}

	taken, err := takeSlot.Run(ctx, l.client, []string{key}, l.perSecond).Int()
	if err != nil {
		return false, fmt.Errorf("failed to take rate limit slot: %w", err)
	}
	return taken == 1, nil
}

// Wait blocks until a slot in bucket is taken or ctx ends. A full window is
// waited out to its boundary rather than polled.
func (l *GatewayLimiter) Wait(ctx context.Context, bucket string) error {
	for {
		taken, err := l.Allow(ctx, bucket)
		if err != nil {
			return err
		}
		if taken {
			return nil
		}

		if err := l.sleep(ctx, untilNextWindow(l.now())); err != nil {
			return err
		}
	}
}

func windowKey(bucket string, now time.Time) (string, error) {
	bucket = strings.ToLower(strings.TrimSpace(bucket))
	if bucket == "" {
		return "", fmt.Errorf("rate limit bucket is required")
	}
	return fmt.Sprintf("%s:%s:%d", rateLimitKeyPrefix, bucket, now.UTC().Unix()), nil
}

func untilNextWindow(now time.Time) time.Duration {
	next := now.Truncate(time.Second).Add(time.Second)
	if wait := next.Sub(now); wait > minWindowWait {
		return wait
	}
	return minWindowWait
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
