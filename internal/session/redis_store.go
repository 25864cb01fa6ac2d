package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vytor/bizquest/internal/logger"
	"github.com/vytor/bizquest/internal/models"
)

const redisKeyPrefix = "bizquest:session:"

// RedisStore keeps sessions in Redis with a TTL matching their expiry, so
// expired sessions disappear on their own and revocation is a delete.
type RedisStore struct {
	rdb *redis.Client
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(addr string) *RedisStore {
	return &RedisStore{rdb: redis.NewClient(&redis.Options{Addr: addr})}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

func (s *RedisStore) Create(ctx context.Context, session models.Session) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	b, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, redisKeyPrefix+session.ID, b, ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, id string) (*models.Session, error) {
	b, err := s.rdb.Get(ctx, redisKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		logger.FromContext(ctx).WithPrefix("session").Error("redis get failed: %v", err)
		return nil, err
	}
	var out models.Session
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *RedisStore) Revoke(ctx context.Context, id string, _ time.Time) error {
	return s.rdb.Del(ctx, redisKeyPrefix+id).Err()
}

// PurgeExpired is a no-op; Redis expires keys itself.
func (s *RedisStore) PurgeExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}
