package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrNotFound = errors.New("media not found")

type Store struct {
	rdb *redis.Client
}

func New(addr, password string, db int) *Store {
	return &Store{rdb: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

func mediaKey(key string) string {
	return "media:" + key
}

// PutMedia stores data under key. ttl <= 0 keeps it forever.
func (s *Store) PutMedia(ctx context.Context, key, contentType string, data []byte, ttl time.Duration) error {
	k := mediaKey(key)
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, k, "content_type", contentType, "data", data)
		if ttl > 0 {
			p.Expire(ctx, k, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("put media %s: %w", key, err)
	}
	return nil
}

func (s *Store) GetMedia(ctx context.Context, key string) (string, []byte, error) {
	vals, err := s.rdb.HGetAll(ctx, mediaKey(key)).Result()
	if err != nil {
		return "", nil, fmt.Errorf("get media %s: %w", key, err)
	}
	data, ok := vals["data"]
	if !ok {
		return "", nil, ErrNotFound
	}
	return vals["content_type"], []byte(data), nil
}
