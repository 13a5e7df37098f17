package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// Compare-and-delete so a lease that outlived its TTL cannot release a
// lock now held by someone else.
const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// Locker hands out short-lived redis leases. It is advisory: it sheds
// duplicate payment confirmations and overlapping scheduler runs before
// they reach the database, but correctness always comes from the
// conditional updates it fronts.
type Locker struct {
	client *redis.Client
	script *redis.Script
}

// Lease is a held lock. Release is safe to call after the TTL lapsed.
type Lease struct {
	locker *Locker
	key    string
	token  string
}

func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{
		client: client,
		script: redis.NewScript(lockReleaseScript),
	}
}

// TryLock attempts to take the lock without blocking. A nil lease with a
// nil error means another holder has it.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (*Lease, error) {
	if l == nil || l.client == nil {
		return nil, errors.New("lock client not configured")
	}
	if key == "" {
		return nil, errors.New("lock key is empty")
	}
	if ttl <= 0 {
		return nil, errors.New("lock ttl must be positive")
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &Lease{locker: l, key: key, token: token}, nil
}

func (le *Lease) Release(ctx context.Context) error {
	if le == nil || le.locker == nil {
		return nil
	}
	return le.locker.script.Run(ctx, le.locker.client, []string{le.key}, le.token).Err()
}
