package reconciler

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lease only if it is still ours.
var releaseScript = redis.NewScript(`
    if redis.call('GET', KEYS[1]) == ARGV[1] then
        return redis.call('DEL', KEYS[1])
    end
    return 0
`)

// RedisLease is a Locker backed by a single Redis key taken with SET NX.
// The TTL bounds how long a crashed holder can block other replicas.
type RedisLease struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

// NewRedisLease returns nil when rdb is nil so that callers can pass the
// result straight to WithLocker.
func NewRedisLease(rdb *redis.Client, key string, ttl time.Duration) Locker {
	if rdb == nil {
		return nil
	}
	if key == "" {
		key = "bookmyseat:reconciler:lease"
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLease{rdb: rdb, key: key, ttl: ttl}
}

// TryLock implements Locker.
func (l *RedisLease) TryLock(ctx context.Context) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil || !ok {
		return nil, false, err
	}
	unlock := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.rdb, []string{l.key}, token).Err(); err != nil {
			log.Printf("reconciler: release lease: %v", err)
		}
	}
	return unlock, true, nil
}
