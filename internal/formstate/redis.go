package formstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only when it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// refreshScript extends the lock only when it still carries our token.
var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisStore shares form state between site replicas.
type RedisStore struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewRedisStore creates a Redis-backed store. Snapshots expire after ttl (0 keeps them).
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{redis: client, ttl: ttl}
}

func (s *RedisStore) stateKey(id string) string {
	return fmt.Sprintf("leadform:state:%s", id)
}

func (s *RedisStore) lockKey(id string) string {
	return fmt.Sprintf("leadform:lock:%s", id)
}

// Load retrieves a snapshot.
func (s *RedisStore) Load(ctx context.Context, id string) (*Snapshot, error) {
	data, err := s.redis.Get(ctx, s.stateKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("formstate: get: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("formstate: unmarshal: %w", err)
	}
	return &snap, nil
}

// Save stores a snapshot.
func (s *RedisStore) Save(ctx context.Context, id string, snap *Snapshot) error {
	if snap == nil {
		return errors.New("formstate: nil snapshot")
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("formstate: marshal: %w", err)
	}
	if err := s.redis.Set(ctx, s.stateKey(id), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("formstate: set: %w", err)
	}
	return nil
}

// Delete removes a snapshot.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.redis.Del(ctx, s.stateKey(id)).Err(); err != nil {
		return fmt.Errorf("formstate: del: %w", err)
	}
	return nil
}

// Acquire takes the instance lock with SET NX; the lock expires after ttl so a
// crashed holder cannot block the form forever.
func (s *RedisStore) Acquire(ctx context.Context, id string, ttl time.Duration) (Lock, error) {
	token := uuid.NewString()
	key := s.lockKey(id)

	ok, err := s.redis.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("formstate: acquire: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return &redisLock{client: s.redis, key: key, token: token}, nil
}

type redisLock struct {
	client *redis.Client
	key    string
	token  string
}

func (l *redisLock) Refresh(ctx context.Context, ttl time.Duration) error {
	n, err := refreshScript.Run(ctx, l.client, []string{l.key}, l.token, ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("formstate: refresh: %w", err)
	}
	if n == 0 {
		return ErrLockLost
	}
	return nil
}

func (l *redisLock) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("formstate: release: %w", err)
	}
	return nil
}

var _ Store = (*RedisStore)(nil)
