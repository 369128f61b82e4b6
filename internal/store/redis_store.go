package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/reflectd-dev/reflectd/internal/reflection"
)

// RedisStore implements Store on Redis. It is the production backend,
// suitable for multi-node deployments.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	mu     sync.RWMutex
	closed bool
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	// Addr is the Redis server address (host:port).
	Addr string
	// Password is the Redis password (optional).
	Password string
	// DB is the Redis database number.
	DB int
	// Prefix is the key prefix for all keys (default: "reflectd:").
	Prefix string
	// RecordTTL is the expiry for reflection records (0 = never expire).
	RecordTTL time.Duration
	// PoolSize is the connection pool size (default: 10).
	PoolSize int
}

// NewRedisStore creates a Redis-backed store and verifies the connection.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "reflectd:"
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 10
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: poolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisStore{client: client, prefix: prefix, ttl: cfg.RecordTTL}, nil
}

// NewRedisStoreFromClient creates a store from an existing client.
// This is useful for testing with miniredis.
func NewRedisStoreFromClient(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "reflectd:"
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

// Key helpers
func (s *RedisStore) reflectionKey(userID, date string) string {
	return s.prefix + "reflection:" + userID + ":" + date
}

func (s *RedisStore) datesKey(userID string) string {
	return s.prefix + "dates:" + userID
}

func (s *RedisStore) profileKey(userID string) string {
	return s.prefix + "profile:" + userID
}

func (s *RedisStore) summariesKey(userID string) string {
	return s.prefix + "summaries:" + userID
}

func (s *RedisStore) usersKey() string {
	return s.prefix + "users"
}

func (s *RedisStore) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// SaveReflection replaces the record for (rec.UserID, rec.Date) and updates
// the per-user date index in one pipeline.
func (s *RedisStore) SaveReflection(ctx context.Context, rec *reflection.Record) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	key := s.reflectionKey(rec.UserID, rec.Date)
	data, err := json.Marshal(rec)
	if err != nil {
		return storageErr("marshal", key, err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, key, data, s.ttl)
	pipe.SAdd(ctx, s.datesKey(rec.UserID), rec.Date)
	pipe.SAdd(ctx, s.usersKey(), rec.UserID)

	if _, err := pipe.Exec(ctx); err != nil {
		return storageErr("save", key, err)
	}
	return nil
}

// LoadReflection retrieves the record for (userID, date).
func (s *RedisStore) LoadReflection(ctx context.Context, userID, date string) (*reflection.Record, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	key := s.reflectionKey(userID, date)
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, storageErr("get", key, err)
	}

	var rec reflection.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, storageErr("unmarshal", key, err)
	}
	return &rec, nil
}

// ListReflectionDates returns all dates with a record for the user, ascending.
func (s *RedisStore) ListReflectionDates(ctx context.Context, userID string) ([]string, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	dates, err := s.client.SMembers(ctx, s.datesKey(userID)).Result()
	if err != nil {
		return nil, storageErr("list", s.datesKey(userID), err)
	}

	// Redis sets are unordered; the date layout sorts chronologically.
	sort.Strings(dates)
	return dates, nil
}

// SaveProfile replaces the user's profile.
func (s *RedisStore) SaveProfile(ctx context.Context, profile *reflection.Profile) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	key := s.profileKey(profile.UserID)
	data, err := json.Marshal(profile)
	if err != nil {
		return storageErr("marshal", key, err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, key, data, 0)
	pipe.SAdd(ctx, s.usersKey(), profile.UserID)

	if _, err := pipe.Exec(ctx); err != nil {
		return storageErr("save", key, err)
	}
	return nil
}

// LoadProfile retrieves the user's profile.
func (s *RedisStore) LoadProfile(ctx context.Context, userID string) (*reflection.Profile, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	key := s.profileKey(userID)
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, storageErr("get", key, err)
	}

	var profile reflection.Profile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, storageErr("unmarshal", key, err)
	}
	return &profile, nil
}

// AppendSummary adds a weekly summary to the user's collection.
func (s *RedisStore) AppendSummary(ctx context.Context, summary *reflection.WeeklySummary) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	key := s.summariesKey(summary.UserID)
	data, err := json.Marshal(summary)
	if err != nil {
		return storageErr("marshal", key, err)
	}

	if err := s.client.RPush(ctx, key, data).Err(); err != nil {
		return storageErr("append", key, err)
	}
	return nil
}

// ListSummaries returns the user's weekly summaries in insertion order.
func (s *RedisStore) ListSummaries(ctx context.Context, userID string) ([]*reflection.WeeklySummary, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	key := s.summariesKey(userID)
	data, err := s.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, storageErr("list", key, err)
	}

	summaries := make([]*reflection.WeeklySummary, 0, len(data))
	for _, d := range data {
		var summary reflection.WeeklySummary
		if err := json.Unmarshal([]byte(d), &summary); err != nil {
			return nil, storageErr("unmarshal", key, err)
		}
		summaries = append(summaries, &summary)
	}
	return summaries, nil
}

// ListUsers returns every user id that has stored at least one record.
func (s *RedisStore) ListUsers(ctx context.Context) ([]string, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	users, err := s.client.SMembers(ctx, s.usersKey()).Result()
	if err != nil {
		return nil, storageErr("list", s.usersKey(), err)
	}
	sort.Strings(users)
	return users, nil
}

// Close releases resources held by the store.
func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}

// Ping checks if the Redis connection is alive.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.client.Ping(ctx).Err()
}
