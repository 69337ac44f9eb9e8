package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
)

const redisPrefix = "swing:bars:"

// RedisStore keeps cached series in Redis. Keys expire after the retention
// period regardless of the ttl used on reads.
type RedisStore struct {
	client    *redis.Client
	retention time.Duration
	now       func() time.Time
}

// NewRedisStore connects to addr and verifies the connection.
func NewRedisStore(addr, password string, db int, retention time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	log.Info().Str("addr", addr).Msg("redis cache connected")
	return newRedisStore(client, retention), nil
}

func newRedisStore(client *redis.Client, retention time.Duration) *RedisStore {
	return &RedisStore{client: client, retention: retention, now: time.Now}
}

func redisKey(k Key) string {
	return redisPrefix + k.String()
}

// Get returns the entry for key if it is younger than ttl.
func (r *RedisStore) Get(ctx context.Context, key Key, ttl time.Duration) (Entry, bool) {
	if ttl <= 0 {
		return Entry{}, false
	}
	val, err := r.client.Get(ctx, redisKey(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("key", key.String()).Msg("cache read failed")
		}
		return Entry{}, false
	}
	p, err := decode(val)
	if err != nil {
		log.Warn().Err(err).Str("key", key.String()).Msg("corrupt cache entry")
		return Entry{}, false
	}
	if !fresh(p.FetchedAt, r.now(), ttl) {
		return Entry{}, false
	}
	return Entry{Key: key, FetchedAt: p.FetchedAt, Bars: p.Bars}, true
}

// Put writes entry with the store's retention as Redis expiry.
func (r *RedisStore) Put(ctx context.Context, entry Entry) {
	data, err := encode(entry)
	if err != nil {
		log.Warn().Err(err).Str("key", entry.Key.String()).Msg("cache encode failed")
		return
	}
	if err := r.client.Set(ctx, redisKey(entry.Key), data, r.retention).Err(); err != nil {
		log.Warn().Err(err).Str("key", entry.Key.String()).Msg("cache write failed")
	}
}

// Purge deletes cached series fetched more than olderThan ago.
func (r *RedisStore) Purge(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := r.now().Add(-olderThan)
	var removed int64
	iter := r.client.Scan(ctx, 0, redisPrefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		val, err := r.client.Get(ctx, key).Bytes()
		if err != nil {
			continue
		}
		p, err := decode(val)
		if err == nil && !p.FetchedAt.Before(cutoff) {
			continue
		}
		n, err := r.client.Del(ctx, key).Result()
		if err != nil {
			return removed, fmt.Errorf("purge %s: %w", key, err)
		}
		removed += n
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("scan cache keys: %w", err)
	}
	return removed, nil
}

// Close closes the client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

var (
	_ Store  = (*RedisStore)(nil)
	_ Purger = (*RedisStore)(nil)
)
