package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/ideaforge-backend/internal/platform/logger"
	"github.com/yungbote/ideaforge-backend/internal/realtime"
)

const defaultPublishTimeout = 2 * time.Second

type Config struct {
	Addr     string
	Password string
	DB       int
	// Prefix namespaces the Redis channels; a message for SSE channel
	// "idea:<id>" is published on Prefix+"idea:<id>".
	Prefix string
	// PublishTimeout bounds one publish. Progress updates are written from
	// worker goroutines, which must not stall on a slow Redis.
	PublishTimeout time.Duration
}

type redisBus struct {
	log            *logger.Logger
	rdb            *goredis.Client
	prefix         string
	publishTimeout time.Duration
}

func NewRedisBus(ctx context.Context, log *logger.Logger, cfg Config) (Bus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "ideaforge:"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	timeout := cfg.PublishTimeout
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	return &redisBus{
		log:            log.With("service", "ResearchEventBus", "prefix", prefix),
		rdb:            rdb,
		prefix:         prefix,
		publishTimeout: timeout,
	}, nil
}

func (b *redisBus) Publish(ctx context.Context, msg realtime.SSEMessage) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis SSE bus not initialized")
	}
	if msg.Channel == "" {
		return fmt.Errorf("publish %s: empty channel", msg.Event)
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Event, err)
	}
	ctx, cancel := context.WithTimeout(ctx, b.publishTimeout)
	defer cancel()
	return b.rdb.Publish(ctx, b.prefix+msg.Channel, raw).Err()
}

func (b *redisBus) StartForwarder(ctx context.Context, onMsg func(m realtime.SSEMessage)) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis SSE bus not initialized")
	}
	if onMsg == nil {
		return fmt.Errorf("onMsg callback required")
	}

	sub := b.rdb.PSubscribe(ctx, b.prefix+"idea:*")
	// wait for the subscribe confirmation
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
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				msg, err := decode(b.prefix, m.Channel, m.Payload)
				if err != nil {
					b.log.Warn("Dropping research event", "channel", m.Channel, "error", err)
					continue
				}
				onMsg(msg)
			}
		}
	}()
	return nil
}

// decode parses a payload received on redisChannel. The SSE channel falls
// back to the Redis channel minus prefix when the payload omits it.
func decode(prefix, redisChannel, payload string) (realtime.SSEMessage, error) {
	var msg realtime.SSEMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return msg, fmt.Errorf("decode payload: %w", err)
	}
	if msg.Channel == "" {
		msg.Channel = strings.TrimPrefix(redisChannel, prefix)
	}
	if !strings.HasPrefix(msg.Channel, "idea:") {
		return msg, fmt.Errorf("unexpected channel %q", msg.Channel)
	}
	return msg, nil
}

func (b *redisBus) Ping(ctx context.Context) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis SSE bus not initialized")
	}
	return b.rdb.Ping(ctx).Err()
}

func (b *redisBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}
