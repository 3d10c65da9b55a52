package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/feichai0017/docflow/internal/models"
	"github.com/feichai0017/docflow/pkg/logger"
)

// Config defines the notification channels.
type Config struct {
	Addr            string
	DB              int
	DocumentChannel string
	MailboxChannel  string
}

// RedisNotifier publishes notifications on Redis pub/sub channels, one
// per broadcast channel.
type RedisNotifier struct {
	rdb *redis.Client
	cfg Config
	log logger.Logger
}

func NewRedisNotifier(ctx context.Context, cfg Config, log logger.Logger) (*RedisNotifier, error) {
	if cfg.DocumentChannel == "" {
		cfg.DocumentChannel = "docflow:updates:documents"
	}
	if cfg.MailboxChannel == "" {
		cfg.MailboxChannel = "docflow:updates:mailbox"
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("notify redis ping: %w", err)
	}

	return &RedisNotifier{rdb: rdb, cfg: cfg, log: log}, nil
}

func (n *RedisNotifier) DocumentUpdate(ctx context.Context, update models.DocumentUpdate) error {
	return n.publish(ctx, n.cfg.DocumentChannel, update)
}

func (n *RedisNotifier) MailboxStatus(ctx context.Context, status models.MailboxStatus) error {
	return n.publish(ctx, n.cfg.MailboxChannel, status)
}

func (n *RedisNotifier) publish(ctx context.Context, channel string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	if err := n.rdb.Publish(ctx, channel, raw).Err(); err != nil {
		return fmt.Errorf("failed to publish notification on %s: %w", channel, err)
	}
	return nil
}

func (n *RedisNotifier) Close() error {
	return n.rdb.Close()
}

// StartForwarder subscribes to both notification channels and replays
// every message into the matching hub until ctx is cancelled. Payloads
// are forwarded verbatim; the hubs re-encode json.RawMessage unchanged.
func (n *RedisNotifier) StartForwarder(ctx context.Context, hubs Hubs) error {
	sub := n.rdb.Subscribe(ctx, n.cfg.DocumentChannel, n.cfg.MailboxChannel)

	// ensures subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("notify subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					_ = sub.Close()
					return
				}
				raw := json.RawMessage(m.Payload)
				if !json.Valid(raw) {
					n.log.Warn("Dropping malformed notification",
						logger.String("channel", m.Channel),
					)
					continue
				}
				switch m.Channel {
				case n.cfg.DocumentChannel:
					hubs.BroadcastDocument(raw)
				case n.cfg.MailboxChannel:
					hubs.BroadcastMailbox(raw)
				}
			}
		}
	}()

	return nil
}
