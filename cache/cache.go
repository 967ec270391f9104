package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/EasterCompany/dex-voice-service/config"
)

const (
	keyPrefix = "dex-voice-service:"
	audioKey  = "audio:"

	// LogsKey holds the most recent log lines.
	LogsKey = keyPrefix + "logs"
	// EventsChannel carries turn events for other Dexter services.
	EventsChannel = keyPrefix + "events"

	maxLogs = 100
)

// ErrAudioNotFound is returned for unknown or expired audio keys.
var ErrAudioNotFound = errors.New("audio not found")

// DB is the service's Redis store. Consumers depend on the narrow
// interfaces they need rather than on DB itself.
type DB struct {
	rdb *redis.Client
}

// New connects to Redis. It returns nil, nil when no address is configured,
// which callers treat as "no cache".
func New(ctx context.Context, cfg config.RedisConfig) (*DB, error) {
	if cfg.Addr == "" {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("could not connect to cache at %s: %w", cfg.Addr, err)
	}
	return &DB{rdb: rdb}, nil
}

func (db *DB) Ping(ctx context.Context) error {
	return db.rdb.Ping(ctx).Err()
}

func (db *DB) Close() error {
	return db.rdb.Close()
}

// SaveAudio stores a WAV file under a fresh key and returns that key.
func (db *DB) SaveAudio(ctx context.Context, data []byte, ttl time.Duration) (string, error) {
	key := uuid.NewString()
	if err := db.rdb.Set(ctx, keyPrefix+audioKey+key, data, ttl).Err(); err != nil {
		return "", fmt.Errorf("could not save audio: %w", err)
	}
	return key, nil
}

func (db *DB) LoadAudio(ctx context.Context, key string) ([]byte, error) {
	if _, err := uuid.Parse(key); err != nil {
		return nil, ErrAudioNotFound
	}
	data, err := db.rdb.Get(ctx, keyPrefix+audioKey+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrAudioNotFound
		}
		return nil, fmt.Errorf("could not load audio: %w", err)
	}
	return data, nil
}

// CleanAllAudio finds and deletes all audio entries from the cache.
func (db *DB) CleanAllAudio(ctx context.Context) (int64, error) {
	keys, err := db.scan(ctx, keyPrefix+audioKey+"*")
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	return db.rdb.Del(ctx, keys...).Result()
}

// AddLog pushes a log line and trims the list to the most recent entries.
func (db *DB) AddLog(ctx context.Context, entry string) error {
	pipe := db.rdb.Pipeline()
	pipe.LPush(ctx, LogsKey, entry)
	pipe.LTrim(ctx, LogsKey, 0, maxLogs-1)
	_, err := pipe.Exec(ctx)
	return err
}

// Logs returns up to n of the most recent log lines, newest first.
func (db *DB) Logs(ctx context.Context, n int64) ([]string, error) {
	return db.rdb.LRange(ctx, LogsKey, 0, n-1).Result()
}

// PublishEvent publishes an event to the event stream.
func (db *DB) PublishEvent(ctx context.Context, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("could not marshal event: %w", err)
	}
	return db.rdb.Publish(ctx, EventsChannel, payload).Err()
}

// Keys lists every key owned by this service, sorted.
func (db *DB) Keys(ctx context.Context) ([]string, error) {
	keys, err := db.scan(ctx, keyPrefix+"*")
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

// Inspect describes a key's type, TTL and size for debugging.
func (db *DB) Inspect(ctx context.Context, key string) (string, error) {
	typ, err := db.rdb.Type(ctx, key).Result()
	if err != nil {
		return "", err
	}
	ttl, err := db.rdb.TTL(ctx, key).Result()
	if err != nil {
		return "", err
	}

	var size int64
	switch typ {
	case "string":
		size, err = db.rdb.StrLen(ctx, key).Result()
	case "list":
		size, err = db.rdb.LLen(ctx, key).Result()
	}
	if err != nil {
		return "", err
	}

	expiry := "no expiry"
	if ttl > 0 {
		expiry = "ttl " + ttl.Round(time.Second).String()
	}
	return fmt.Sprintf("%s %s (%s, size %d)", strings.TrimPrefix(key, keyPrefix), typ, expiry, size), nil
}

func (db *DB) scan(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := db.rdb.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}
