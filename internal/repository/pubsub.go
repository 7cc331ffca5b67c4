package repo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	gamedom "ular_tangga/internal/domain/game"
	"ular_tangga/internal/errors"
)

// RedisBroadcaster carries the per-room event channel over Redis Pub/Sub.
// Delivery is at-most-once and unordered, which is exactly the contract the
// replicas are built to tolerate.
type RedisBroadcaster struct {
	log    *zap.SugaredLogger
	client *redis.Client
}

func NewRedisBroadcaster(log *zap.SugaredLogger, client *redis.Client) *RedisBroadcaster {
	return &RedisBroadcaster{log: log, client: client}
}

func channelForRoom(roomID string) string {
	return "room:" + roomID
}

func (b *RedisBroadcaster) Publish(ctx context.Context, roomID string, u gamedom.Update) error {
	payload, err := json.Marshal(u)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, channelForRoom(roomID), payload).Err(); err != nil {
		b.log.Errorf("publish to %s failed: %v", channelForRoom(roomID), err)
		return errors.ErrChannelUnavailable
	}
	return nil
}

// Subscribe returns a channel of decoded room updates and a cancel func that
// tears the subscription down. Malformed payloads are dropped with a log
// line rather than killing the stream.
func (b *RedisBroadcaster) Subscribe(ctx context.Context, roomID string) (<-chan gamedom.Update, func(), error) {
	sub := b.client.Subscribe(ctx, channelForRoom(roomID))

	// Force the subscription to be established before returning so callers
	// do not miss events published immediately after.
	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := sub.Receive(waitCtx); err != nil {
		_ = sub.Close()
		return nil, nil, errors.ErrChannelUnavailable
	}

	out := make(chan gamedom.Update, 16)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			var u gamedom.Update
			if err := json.Unmarshal([]byte(msg.Payload), &u); err != nil {
				b.log.Errorf("dropping malformed update on %s: %v", msg.Channel, err)
				continue
			}
			select {
			case out <- u:
			case <-ctx.Done():
				return
			}
		}
	}()

	closeFn := func() {
		if err := sub.Close(); err != nil {
			b.log.Errorf("failed to close subscription for room %s: %v", roomID, err)
		}
	}
	return out, closeFn, nil
}
