package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"alexandria/internal/util"
	"alexandria/pkg/domain"
)

const (
	redisTimeout       = 3 * time.Second
	defaultRedisPrefix = "alexandria:session:"
)

// RedisSessionStore keeps JSON-encoded sessions in Redis with a sliding TTL.
type RedisSessionStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisSessionStore builds a store on an existing client.
func NewRedisSessionStore(client redis.UniversalClient, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{client: client, prefix: defaultRedisPrefix, ttl: ttl}
}

func (s *RedisSessionStore) key(id string) string {
	return s.prefix + id
}

func (s *RedisSessionStore) Create(ctx context.Context, user domain.User) (domain.SessionRecord, error) {
	rec, err := newRecord(util.NewID(), user, time.Now().UTC())
	if err != nil {
		return domain.SessionRecord{}, err
	}
	if err := s.put(ctx, rec); err != nil {
		return domain.SessionRecord{}, err
	}
	return rec, nil
}

func (s *RedisSessionStore) Get(ctx context.Context, id string) (domain.SessionRecord, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.SessionRecord{}, false, nil
	}
	if err != nil {
		return domain.SessionRecord{}, false, err
	}
	rec, err := decodeRecord(data)
	if err != nil {
		util.LoggerFromContext(ctx).Warn("session record cleared", slog.String("reason", err.Error()))
		if delErr := s.client.Del(ctx, s.key(id)).Err(); delErr != nil && !errors.Is(delErr, redis.Nil) {
			return domain.SessionRecord{}, false, delErr
		}
		return domain.SessionRecord{}, false, nil
	}
	return rec, true, nil
}

func (s *RedisSessionStore) Update(ctx context.Context, id string, user domain.User) (domain.SessionRecord, error) {
	rec, ok, err := s.Get(ctx, id)
	if err != nil {
		return domain.SessionRecord{}, err
	}
	if !ok {
		return domain.SessionRecord{}, ErrSessionNotFound
	}
	if user.UserID <= 0 {
		return domain.SessionRecord{}, ErrInvalidUser
	}
	rec.User = user
	rec.UpdatedAt = time.Now().UTC()
	if err := s.put(ctx, rec); err != nil {
		return domain.SessionRecord{}, err
	}
	return rec, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

func (s *RedisSessionStore) put(ctx context.Context, rec domain.SessionRecord) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()
	return s.client.Set(ctx, s.key(rec.ID), data, s.ttl).Err()
}
