package utils

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig controls redis client behavior.
// Keep it config-driven; defaults should be safe and conservative.
type RedisConfig struct {
	Addr string

	// Basic timeouts
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Pool tuning
	PoolSize        int
	MinIdleConns    int
	PoolTimeout     time.Duration
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration

	PingTimeout time.Duration
}

func (c RedisConfig) withDefaults() RedisConfig {
	out := c
	if out.DialTimeout <= 0 {
		out.DialTimeout = 3 * time.Second
	}
	if out.ReadTimeout <= 0 {
		out.ReadTimeout = 2 * time.Second
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = 2 * time.Second
	}
	if out.PoolSize <= 0 {
		out.PoolSize = 20
	}
	if out.MinIdleConns < 0 {
		out.MinIdleConns = 0
	}
	if out.PoolTimeout <= 0 {
		out.PoolTimeout = 4 * time.Second
	}
	if out.ConnMaxIdleTime <= 0 {
		out.ConnMaxIdleTime = 5 * time.Minute
	}
	if out.ConnMaxLifetime <= 0 {
		out.ConnMaxLifetime = 30 * time.Minute
	}
	if out.PingTimeout <= 0 {
		out.PingTimeout = 2 * time.Second
	}
	return out
}

// OpenRedis initializes a Redis client and validates connectivity via PING.
func OpenRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	cfg = cfg.withDefaults()
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:            cfg.Addr,
		DialTimeout:     cfg.DialTimeout,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		PoolSize:        cfg.PoolSize,
		MinIdleConns:    cfg.MinIdleConns,
		PoolTimeout:     cfg.PoolTimeout,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

var versionedSetScript = redis.NewScript(`
-- KEYS[1] = document hash (fields: v, doc)
-- KEYS[2] = index set
-- ARGV[1] = expected version (0 = must not exist)
-- ARGV[2] = new version
-- ARGV[3] = document
-- ARGV[4] = member id for the index set
-- ARGV[5] = pubsub channel ('' = no publish)
--
-- Returns:
--  1 if written
--  0 if the stored version differs from the expected one
local current = tonumber(redis.call('HGET', KEYS[1], 'v') or '0')
if current ~= tonumber(ARGV[1]) then
  return 0
end
redis.call('HSET', KEYS[1], 'v', ARGV[2], 'doc', ARGV[3])
redis.call('SADD', KEYS[2], ARGV[4])
if ARGV[5] ~= '' then
  redis.call('PUBLISH', ARGV[5], ARGV[3])
end
return 1
`)

// VersionedDoc addresses one JSON document guarded by a version counter.
type VersionedDoc struct {
	Key      string
	IndexKey string
	Member   string
	Channel  string
}

// SetIfVersion atomically replaces the document when its stored version equals
// expected, indexes it and publishes it on Channel. Version 0 means "absent".
//
// Safety properties:
// - Check, write and publish run as one Lua script.
// - Subscribers never observe a document that was not stored.
func SetIfVersion(ctx context.Context, rdb redis.Scripter, d VersionedDoc, expected, next int64, doc []byte) (bool, error) {
	if rdb == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	if d.Key == "" || d.IndexKey == "" || d.Member == "" {
		return false, fmt.Errorf("key, index key and member are required")
	}
	if next <= expected {
		return false, fmt.Errorf("next version must be > expected")
	}
	res, err := versionedSetScript.Run(ctx, rdb, []string{d.Key, d.IndexKey}, expected, next, string(doc), d.Member, d.Channel).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}
