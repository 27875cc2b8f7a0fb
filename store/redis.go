package store

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/rustyeddy/pulse/ledger"
)

// Redis keeps the record under a single key with no expiry.
type Redis struct {
	rdb *redis.Client
	key string
}

func NewRedis(rdb *redis.Client, key string) *Redis {
	return &Redis{rdb: rdb, key: key}
}

func (s *Redis) Load(ctx context.Context) ([]byte, error) {
	data, err := s.rdb.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *Redis) Save(ctx context.Context, data []byte) error {
	return s.rdb.Set(ctx, s.key, data, 0).Err()
}
