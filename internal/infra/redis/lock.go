package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker hands out best-effort mutual exclusion across notifier processes.
// A lock expires after its TTL even if the holder never releases it.
type Locker struct {
	client *goredis.Client
	token  func() string
}

func NewLocker(client *goredis.Client) (*Locker, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &Locker{client: client, token: uuid.NewString}, nil
}

// TryLock acquires key for ttl. It returns ok=false without error when
// another holder owns the key. The returned release func is safe to call
// after the lock expired and was taken by someone else.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, ok bool, err error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, false, fmt.Errorf("lock key is required")
	}
	if ttl <= 0 {
		return nil, false, fmt.Errorf("lock ttl must be positive")
	}

	token := l.token()
	acquired, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !acquired {
		return nil, false, nil
	}

	release = func(ctx context.Context) error {
		err := releaseScript.Run(ctx, l.client, []string{key}, token).Err()
		if err != nil && !errors.Is(err, goredis.Nil) {
			return fmt.Errorf("failed to release lock %s: %w", key, err)
		}
		return nil
	}
	return release, true, nil
}
