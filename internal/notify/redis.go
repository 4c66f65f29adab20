package notify

import (
	"context"
	"encoding/json"

	"fleet-platform/internal/workflow"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "fleet:notify:"

// Channel is the pub/sub channel for one recipient (user id or role topic).
func Channel(recipient string) string { return channelPrefix + recipient }

// Redis publishes each notification on one channel per recipient. Delivery is
// fire-and-forget; offline recipients miss it and catch up from the board.
type Redis struct {
	rdb *redis.Client
}

func NewRedis(rdb *redis.Client) *Redis { return &Redis{rdb: rdb} }

func (n *Redis) Notify(ctx context.Context, recipients []string, note workflow.Notification) error {
	if len(recipients) == 0 {
		return nil
	}
	b, err := json.Marshal(note)
	if err != nil {
		return err
	}
	pipe := n.rdb.Pipeline()
	for _, r := range recipients {
		pipe.Publish(ctx, Channel(r), b)
	}
	_, err = pipe.Exec(ctx)
	return err
}
