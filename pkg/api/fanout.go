package api

import (
	"context"

	"github.com/redis/go-redis/v9"

	"inkwash/pkg/logger"
)

// fanout bridges tile-change notifications across daemon instances through
// Redis pub/sub. With no Redis configured, notify falls through to the
// local hub only.
type fanout struct {
	rdb    *redis.Client
	prefix string
	local  func(tileKey string)
}

// newFanout connects to Redis when addr is non-empty and starts the bridge
// that replays remote notifications into the local hub.
func newFanout(ctx context.Context, addr, prefix string, local func(tileKey string)) (*fanout, error) {
	f := &fanout{prefix: prefix, local: local}
	if addr == "" {
		return f, nil
	}
	f.rdb = redis.NewClient(&redis.Options{Addr: addr})
	if err := f.rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	pubsub := f.rdb.PSubscribe(ctx, prefix+"*")
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-pubsub.Channel():
				if !ok {
					return
				}
				local(msg.Payload)
			}
		}
	}()
	logger.Info("redis_fanout_enabled", "addr", addr, "prefix", prefix)
	return f, nil
}

// notify announces a changed tile. With Redis the notification round-trips
// through pub/sub so every instance (this one included) refreshes its
// subscribers; without it the local hub is poked directly.
func (f *fanout) notify(ctx context.Context, tileKey string) {
	if f.rdb == nil {
		f.local(tileKey)
		return
	}
	if err := f.rdb.Publish(ctx, f.prefix+tileKey, tileKey).Err(); err != nil {
		logger.Warn("fanout_publish_failed", "tile", tileKey, "error", err)
		// degrade to local delivery so this instance's subscribers still see it
		f.local(tileKey)
	}
}
