package store

import (
	"context"
	"encoding/json"
	"log/slog"

	"fleet-platform/internal/workflow"

	"github.com/redis/go-redis/v9"
)

// Fanout relays records published by any instance into the local Feed so that
// subscriptions see writes made elsewhere. The Feed drops versions it already has.
type Fanout struct {
	rdb     *redis.Client
	feed    *workflow.Feed
	channel string
	log     *slog.Logger
}

func NewFanout(rdb *redis.Client, feed *workflow.Feed, channel string, log *slog.Logger) *Fanout {
	if channel == "" {
		channel = DefaultChannel
	}
	if log == nil {
		log = slog.Default()
	}
	return &Fanout{rdb: rdb, feed: feed, channel: channel, log: log}
}

// Run blocks until ctx is done.
func (f *Fanout) Run(ctx context.Context) error {
	sub := f.rdb.Subscribe(ctx, f.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	f.log.Info("record fanout listening", "channel", f.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			f.handle(msg.Payload)
		}
	}
}

func (f *Fanout) handle(payload string) {
	var rec workflow.RequestRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		f.log.Warn("record fanout decode failed", "err", err)
		return
	}
	if rec.ID == "" {
		return
	}
	f.feed.Publish(rec)
}
