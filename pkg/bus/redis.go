package bus

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/feichai0017/docflow/pkg/logger"
)

const payloadField = "payload"

// Config defines the Redis bus connection.
type Config struct {
	Addr string
	DB   int
	// Exchange prefixes every stream key, playing the role of the named
	// topic exchange all stages share.
	Exchange string
	// StreamMaxLen caps each stream with approximate trimming on publish.
	StreamMaxLen int64
	// Block bounds each read so a cancelled context is noticed promptly.
	Block time.Duration
}

// RedisBus implements Bus on Redis Streams: one stream per routing key,
// one ephemeral consumer group per subscription. Groups see every entry
// appended after they are created, which gives topic fan-out across
// subscribers while XACK/PEL give per-subscription ack semantics.
type RedisBus struct {
	rdb    *redis.Client
	cfg    Config
	logger logger.Logger
}

// Connect establishes the single broker connection. A failed ping is a
// TransportError; callers treat it as fatal.
func Connect(ctx context.Context, cfg Config, log logger.Logger) (*RedisBus, error) {
	if cfg.Exchange == "" {
		cfg.Exchange = "document_exchange"
	}
	if cfg.Block == 0 {
		cfg.Block = 5 * time.Second
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
		DB:   cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, &TransportError{Op: "connect", Err: err}
	}

	log.Info("Connected to message bus",
		logger.String("addr", cfg.Addr),
		logger.String("exchange", cfg.Exchange),
	)

	return &RedisBus{rdb: rdb, cfg: cfg, logger: log}, nil
}

func (b *RedisBus) streamKey(topic string) string {
	return b.cfg.Exchange + ":" + topic
}

// Publish appends the payload to the topic's stream. Fire-and-forget:
// there is no delivery feedback beyond broker acceptance.
func (b *RedisBus) Publish(ctx context.Context, topic string, payload []byte) error {
	args := &redis.XAddArgs{
		Stream: b.streamKey(topic),
		Values: map[string]interface{}{payloadField: payload},
	}
	if b.cfg.StreamMaxLen > 0 {
		args.MaxLen = b.cfg.StreamMaxLen
		args.Approx = true
	}

	if err := b.rdb.XAdd(ctx, args).Err(); err != nil {
		return &TransportError{Op: "publish " + topic, Err: err}
	}

	b.logger.Debug("Published message",
		logger.String("topic", topic),
		logger.Int("bytes", len(payload)),
	)
	return nil
}

// TrimStreams hard-caps the named topic streams at maxLen entries. The
// periodic maintenance task calls it; normal publishing only trims
// approximately.
func (b *RedisBus) TrimStreams(ctx context.Context, topics []string, maxLen int64) error {
	for _, topic := range topics {
		if err := b.rdb.XTrimMaxLen(ctx, b.streamKey(topic), maxLen).Err(); err != nil {
			return &TransportError{Op: "trim " + topic, Err: err}
		}
	}
	return nil
}

// Subscribe creates a fresh exclusive consumer group bound to the topic.
// The group starts at the stream tail, so a subscriber only sees messages
// published after it attached.
func (b *RedisBus) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	group := fmt.Sprintf("sub:%s:%s", topic, uuid.New().String()[:8])
	stream := b.streamKey(topic)

	if err := b.rdb.XGroupCreateMkStream(ctx, stream, group, "$").Err(); err != nil {
		return nil, &TransportError{Op: "subscribe " + topic, Err: err}
	}

	b.logger.Info("Subscribed to topic",
		logger.String("topic", topic),
		logger.String("group", group),
	)

	return &redisSubscription{
		bus:      b,
		topic:    topic,
		stream:   stream,
		group:    group,
		consumer: "consumer-" + uuid.New().String()[:8],
	}, nil
}

// Close releases the broker connection. Subscriptions die with it.
func (b *RedisBus) Close() error {
	return b.rdb.Close()
}

type redisSubscription struct {
	bus      *RedisBus
	topic    string
	stream   string
	group    string
	consumer string
}

func (s *redisSubscription) Deliver(ctx context.Context, fn func(d Delivery)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		res, err := s.bus.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    s.group,
			Consumer: s.consumer,
			Streams:  []string{s.stream, ">"},
			Count:    1,
			Block:    s.bus.cfg.Block,
		}).Result()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			return &TransportError{Op: "consume " + s.topic, Err: err}
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				payload := extractPayload(msg)
				id := msg.ID
				fn(Delivery{
					Payload: payload,
					Ack: func() error {
						return s.bus.rdb.XAck(ctx, s.stream, s.group, id).Err()
					},
				})
			}
		}
	}
}

// Close destroys the group; the exclusive queue does not outlive its
// owner.
func (s *redisSubscription) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.bus.rdb.XGroupDestroy(ctx, s.stream, s.group).Err(); err != nil {
		return &TransportError{Op: "unsubscribe " + s.topic, Err: err}
	}
	return nil
}

func extractPayload(msg redis.XMessage) []byte {
	v, ok := msg.Values[payloadField]
	if !ok {
		return nil
	}
	switch p := v.(type) {
	case string:
		return []byte(p)
	case []byte:
		return p
	default:
		return nil
	}
}
