package bus

import (
	"context"
	"sync"
)

// MemoryBus is an in-process Bus used in tests and single-binary dev
// runs; it mirrors the broker contract (topic fan-out, per-subscription
// queue, ack bookkeeping) without Redis.
type MemoryBus struct {
	mu        sync.Mutex
	subs      map[string][]*memorySubscription
	published map[string][][]byte
	closed    bool
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		subs:      make(map[string][]*memorySubscription),
		published: make(map[string][][]byte),
	}
}

func (b *MemoryBus) Publish(ctx context.Context, topic string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return &TransportError{Op: "publish " + topic, Err: context.Canceled}
	}

	buf := make([]byte, len(payload))
	copy(buf, payload)
	b.published[topic] = append(b.published[topic], buf)

	for _, sub := range b.subs[topic] {
		sub.enqueue(buf)
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, &TransportError{Op: "subscribe " + topic, Err: context.Canceled}
	}

	sub := &memorySubscription{
		bus:   b,
		topic: topic,
		ch:    make(chan []byte, 256),
	}
	b.subs[topic] = append(b.subs[topic], sub)
	return sub, nil
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// Published returns a snapshot of every payload published to topic, in
// order. Test helper.
func (b *MemoryBus) Published(topic string) [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([][]byte, len(b.published[topic]))
	copy(out, b.published[topic])
	return out
}

// Subscribers returns how many subscriptions are attached to topic.
// Test helper.
func (b *MemoryBus) Subscribers(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[topic])
}

// Acked returns how many messages the topic's subscribers acknowledged.
// Test helper.
func (b *MemoryBus) Acked(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, sub := range b.subs[topic] {
		n += sub.acked
	}
	return n
}

type memorySubscription struct {
	bus    *MemoryBus
	topic  string
	ch     chan []byte
	acked  int
	closed bool
}

func (s *memorySubscription) enqueue(payload []byte) {
	select {
	case s.ch <- payload:
	default:
		// queue full; broker-side retention is out of scope for the
		// in-memory transport
	}
}

func (s *memorySubscription) Deliver(ctx context.Context, fn func(d Delivery)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case payload, ok := <-s.ch:
			if !ok {
				return nil
			}
			fn(Delivery{
				Payload: payload,
				Ack: func() error {
					s.bus.mu.Lock()
					s.acked++
					s.bus.mu.Unlock()
					return nil
				},
			})
		}
	}
}

func (s *memorySubscription) Close() error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.ch)

	subs := s.bus.subs[s.topic]
	for i, sub := range subs {
		if sub == s {
			s.bus.subs[s.topic] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	return nil
}
