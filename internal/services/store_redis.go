package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStore is a RemoteStore backed by Redis string keys with native TTL.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects and pings the server.
func NewRedisStore(ctx context.Context, addr, password string, db int, prefix string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}

	log.Printf("[INFO] redis cache connected: %s (db %d)", addr, db)
	return NewRedisStoreWithClient(client, prefix), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(collection, key string) string {
	return s.prefix + collection + ":" + key
}

func (s *RedisStore) Name() string { return "redis" }

// Get reads the value and its remaining TTL in one round trip.
func (s *RedisStore) Get(ctx context.Context, collection, key string) ([]byte, time.Duration, bool, error) {
	k := s.key(collection, key)
	var get *redis.StringCmd
	var pttl *redis.DurationCmd
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		get = pipe.Get(ctx, k)
		pttl = pipe.PTTL(ctx, k)
		return nil
	})
	if errors.Is(err, redis.Nil) {
		return nil, 0, false, nil
	}
	if err != nil {
		return nil, 0, false, err
	}

	data, err := get.Bytes()
	if err != nil {
		return nil, 0, false, err
	}
	ttl := pttl.Val()
	if ttl <= 0 {
		// key without expiry, or expired between the two commands
		return nil, 0, false, nil
	}
	return data, ttl, true, nil
}

func (s *RedisStore) Set(ctx context.Context, collection, key string, data []byte, ttl time.Duration) error {
	return s.client.Set(ctx, s.key(collection, key), data, ttl).Err()
}

// Clear deletes every key of collection using SCAN, so it never blocks the server.
func (s *RedisStore) Clear(ctx context.Context, collection string) error {
	iter := s.client.Scan(ctx, 0, s.prefix+collection+":*", 100).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 100 {
			if err := s.client.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return s.client.Del(ctx, batch...).Err()
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
