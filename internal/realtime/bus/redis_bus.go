package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/batchcoord/internal/platform/logger"
)

// RedisBus fans Publish calls out across coordinator replicas: every
// Publish goes to a Redis channel, and every replica (including the
// publisher) re-delivers to its own in-process Hub via a background
// forwarder. Subscribe/DroppedSubscribers/Close all delegate to the local
// Hub, so a caller sees exactly the Bus contract regardless of backend.
type RedisBus struct {
	hub     *Hub
	rdb     *goredis.Client
	channel string
	log     *logger.Logger
	cancel  context.CancelFunc
}

func NewRedisBus(ctx context.Context, addr, channel string, baseLog *logger.Logger) (*RedisBus, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis bus: missing address")
	}
	if channel == "" {
		channel = "batchcoord:events"
	}
	rdb := goredis.NewClient(&goredis.Options{Addr: addr, DialTimeout: 5 * time.Second})

	pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
	defer cancelPing()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	forwardCtx, cancel := context.WithCancel(ctx)
	rb := &RedisBus{
		hub:     NewHub(baseLog),
		rdb:     rdb,
		channel: channel,
		log:     baseLog.With("component", "RedisEventBus"),
		cancel:  cancel,
	}
	if err := rb.startForwarder(forwardCtx); err != nil {
		cancel()
		_ = rdb.Close()
		return nil, err
	}
	return rb, nil
}

func (rb *RedisBus) startForwarder(ctx context.Context) error {
	sub := rb.rdb.Subscribe(ctx, rb.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}
	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var e Event
				if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
					rb.log.Warn("bad redis event payload", "error", err)
					continue
				}
				_ = rb.hub.Publish(ctx, e)
			}
		}
	}()
	return nil
}

func (rb *RedisBus) Publish(ctx context.Context, e Event) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return rb.rdb.Publish(ctx, rb.channel, raw).Err()
}

func (rb *RedisBus) Subscribe(filter Filter) *Subscription { return rb.hub.Subscribe(filter) }

func (rb *RedisBus) DroppedSubscribers() int64 { return rb.hub.DroppedSubscribers() }

func (rb *RedisBus) Close() error {
	rb.cancel()
	_ = rb.hub.Close()
	return rb.rdb.Close()
}
