package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"travel-planner/models"
)

// RedisStore keeps each collection as a JSON string under its own key.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewRedisStore namespaces keys with prefix; an empty prefix uses the bare
// "wantToGo" and "visited" keys.
func NewRedisStore(client *redis.Client, prefix string, logger *zap.Logger) *RedisStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{client: client, prefix: prefix, logger: logger}
}

func (s *RedisStore) key(name string) string {
	return s.prefix + name
}

func (s *RedisStore) LoadCollections(ctx context.Context) ([]models.Place, []models.Place, error) {
	values, err := s.client.MGet(ctx, s.key(KeyWantToGo), s.key(KeyVisited)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, nil, fmt.Errorf("loading collections from redis: %w", err)
	}
	raw := func(i int) []byte {
		if i >= len(values) {
			return nil
		}
		if s, ok := values[i].(string); ok {
			return []byte(s)
		}
		return nil
	}
	return decodeList(s.logger, KeyWantToGo, raw(0)), decodeList(s.logger, KeyVisited, raw(1)), nil
}

func (s *RedisStore) SaveCollections(ctx context.Context, wantToGo, visited []models.Place) error {
	w, err := encodeList(wantToGo)
	if err != nil {
		return err
	}
	v, err := encodeList(visited)
	if err != nil {
		return err
	}
	// Both keys change together so a reader never sees one list updated without the other.
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(KeyWantToGo), w, 0)
		pipe.Set(ctx, s.key(KeyVisited), v, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving collections to redis: %w", err)
	}
	return nil
}
