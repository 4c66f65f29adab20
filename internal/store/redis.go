package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"fleet-platform/internal/workflow"
	"fleet-platform/pkg/utils"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "fleet:request:"
	redisIndexKey  = "fleet:requests:index"

	// casAttempts bounds retries of blind writes racing on the same key.
	casAttempts = 3
)

// RedisStore keeps each record as a hash {v, doc} and guards writes with a
// version-checked Lua script that also publishes the acknowledged document.
type RedisStore struct {
	rdb     *redis.Client
	feed    *workflow.Feed
	channel string
	log     *slog.Logger
}

func NewRedisStore(rdb *redis.Client, feed *workflow.Feed, channel string, log *slog.Logger) *RedisStore {
	if feed == nil {
		feed = workflow.NewFeed()
	}
	if channel == "" {
		channel = DefaultChannel
	}
	if log == nil {
		log = slog.Default()
	}
	return &RedisStore{rdb: rdb, feed: feed, channel: channel, log: log}
}

func recordKey(id string) string { return redisKeyPrefix + id }

func (s *RedisStore) doc(id string) utils.VersionedDoc {
	return utils.VersionedDoc{Key: recordKey(id), IndexKey: redisIndexKey, Member: id, Channel: s.channel}
}

func (s *RedisStore) Create(ctx context.Context, rec workflow.RequestRecord) (string, error) {
	if rec.ID == "" {
		return "", fmt.Errorf("%w: id required", workflow.ErrInvalidPayload)
	}
	rec.Version = 1
	b, err := json.Marshal(rec)
	if err != nil {
		return "", err
	}
	ok, err := utils.SetIfVersion(ctx, s.rdb, s.doc(rec.ID), 0, rec.Version, b)
	if err != nil {
		return "", unavailable(err)
	}
	if !ok {
		return "", fmt.Errorf("%w: %s already exists", workflow.ErrConflict, rec.ID)
	}
	s.feed.Publish(rec)
	return rec.ID, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (workflow.RequestRecord, error) {
	vals, err := s.rdb.HMGet(ctx, recordKey(id), "v", "doc").Result()
	if err != nil {
		return workflow.RequestRecord{}, unavailable(err)
	}
	return decodeHash(vals)
}

func (s *RedisStore) List(ctx context.Context, f workflow.Filter) ([]workflow.RequestRecord, error) {
	ids, err := s.rdb.SMembers(ctx, redisIndexKey).Result()
	if err != nil {
		return nil, unavailable(err)
	}
	pipe := s.rdb.Pipeline()
	cmds := make([]*redis.SliceCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HMGet(ctx, recordKey(id), "v", "doc")
	}
	if len(ids) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, unavailable(err)
		}
	}

	out := make([]workflow.RequestRecord, 0, len(ids))
	for _, cmd := range cmds {
		rec, err := decodeHash(cmd.Val())
		if errors.Is(err, workflow.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if f.Matches(rec) {
			out = append(out, rec)
		}
	}
	workflow.SortRecords(out)
	return out, nil
}

func (s *RedisStore) Update(ctx context.Context, id string, u workflow.Update) (workflow.RequestRecord, error) {
	for attempt := 0; attempt < casAttempts; attempt++ {
		cur, err := s.Get(ctx, id)
		if err != nil {
			return workflow.RequestRecord{}, err
		}
		next, err := workflow.ApplyUpdate(cur, u)
		if err != nil {
			return workflow.RequestRecord{}, err
		}
		b, err := json.Marshal(next)
		if err != nil {
			return workflow.RequestRecord{}, err
		}
		ok, err := utils.SetIfVersion(ctx, s.rdb, s.doc(id), cur.Version, next.Version, b)
		if err != nil {
			return workflow.RequestRecord{}, unavailable(err)
		}
		if ok {
			s.feed.Publish(next)
			return next, nil
		}
		if u.BaseVersion != workflow.AnyVersion {
			break
		}
	}
	return workflow.RequestRecord{}, fmt.Errorf("%w: %s changed during update", workflow.ErrConflict, id)
}

func (s *RedisStore) Subscribe(ctx context.Context, f workflow.Filter) (workflow.Subscription, error) {
	return subscribe(ctx, s.feed, f, s.List)
}

// decodeHash turns an HMGET v doc reply into a record.
func decodeHash(vals []any) (workflow.RequestRecord, error) {
	if len(vals) != 2 || vals[1] == nil {
		return workflow.RequestRecord{}, workflow.ErrNotFound
	}
	raw, ok := vals[1].(string)
	if !ok {
		return workflow.RequestRecord{}, fmt.Errorf("%w: unexpected doc type %T", workflow.ErrStoreUnavailable, vals[1])
	}
	var rec workflow.RequestRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return workflow.RequestRecord{}, fmt.Errorf("%w: corrupt document: %v", workflow.ErrStoreUnavailable, err)
	}
	if v, ok := vals[0].(string); ok {
		var version int64
		if _, err := fmt.Sscan(v, &version); err == nil {
			rec.Version = version
		}
	}
	return rec, nil
}
