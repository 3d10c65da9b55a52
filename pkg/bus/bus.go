// Package bus provides the topic-exchange publish/subscribe abstraction
// the pipeline stages communicate through. Publishing is fire-and-forget;
// each subscription owns an exclusive queue bound to one routing key and
// must acknowledge every message it has fully processed. Unacknowledged
// messages are retained by the broker, never silently dropped.
package bus

import (
	"context"
	"fmt"
)

// Delivery is one message handed to a subscriber. Ack must be called
// after successful processing; skipping it leaves the message pending
// on the broker.
type Delivery struct {
	Payload []byte
	Ack     func() error
}

// Subscription is an exclusive queue bound to a single topic. It is
// owned by exactly one consumer loop and destroyed on Close.
type Subscription interface {
	// Deliver invokes fn for each message in delivery order. It blocks
	// until ctx is cancelled or the underlying transport fails.
	Deliver(ctx context.Context, fn func(d Delivery)) error
	Close() error
}

// Bus is a single broker connection with one named topic exchange shared
// by all stages.
type Bus interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, topic string) (Subscription, error)
	Close() error
}

// TransportError reports a broken or unreachable broker connection.
// It is fatal at worker startup.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("bus transport error during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
