package store

import (
	"context"
	"encoding/json"
	"log/slog"

	"fleet-platform/internal/workflow"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel carries every acknowledged RequestRecord as JSON.
const DefaultChannel = "fleet:requests"

// Publisher broadcasts acknowledged records to other API instances.
type Publisher interface {
	Publish(ctx context.Context, rec workflow.RequestRecord) error
}

type RedisPublisher struct {
	rdb     *redis.Client
	channel string
}

func NewRedisPublisher(rdb *redis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{rdb: rdb, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, rec workflow.RequestRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, p.channel, b).Err()
}

// broadcast hands rec to the local feed and, best-effort, to other instances.
// The write is already acknowledged; a publish failure only delays remote views.
func broadcast(ctx context.Context, feed *workflow.Feed, pub Publisher, log *slog.Logger, rec workflow.RequestRecord) {
	if feed != nil {
		feed.Publish(rec)
	}
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, rec); err != nil {
		log.Warn("record publish failed", "request_id", rec.ID, "version", rec.Version, "err", err)
	}
}

// subscribe registers with the feed before listing so a write acknowledged
// while the listing runs is still delivered.
func subscribe(ctx context.Context, feed *workflow.Feed, f workflow.Filter, list func(context.Context, workflow.Filter) ([]workflow.RequestRecord, error)) (workflow.Subscription, error) {
	w := feed.Watch(f)
	initial, err := list(ctx, f)
	if err != nil {
		w.Close()
		return nil, err
	}
	w.Seed(initial)
	return w, nil
}
