package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, sub Subscription, n int, ack bool) [][]byte {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var got [][]byte
	err := sub.Deliver(ctx, func(d Delivery) {
		got = append(got, d.Payload)
		if ack {
			require.NoError(t, d.Ack())
		}
		if len(got) == n {
			cancel()
		}
	})
	require.NoError(t, err)
	return got
}

func TestMemoryBusFanOut(t *testing.T) {
	b := NewMemoryBus()
	ctx := context.Background()

	sub1, err := b.Subscribe(ctx, "doc.received")
	require.NoError(t, err)
	sub2, err := b.Subscribe(ctx, "doc.received")
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, "doc.received", []byte(`{"doc_id":"a"}`)))
	require.NoError(t, b.Publish(ctx, "doc.received", []byte(`{"doc_id":"b"}`)))

	got1 := collect(t, sub1, 2, true)
	got2 := collect(t, sub2, 2, false)

	// every subscriber sees every message, in publish order
	require.Len(t, got1, 2)
	require.Len(t, got2, 2)
	assert.Equal(t, got1, got2)
	assert.JSONEq(t, `{"doc_id":"a"}`, string(got1[0]))

	// acks are tracked per subscription
	assert.Equal(t, 2, b.Acked("doc.received"))
}

func TestMemoryBusTopicIsolation(t *testing.T) {
	b := NewMemoryBus()
	ctx := context.Background()

	sub, err := b.Subscribe(ctx, "doc.text")
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, "doc.type", []byte(`{}`)))
	require.NoError(t, b.Publish(ctx, "doc.text", []byte(`{"doc_id":"x"}`)))

	got := collect(t, sub, 1, true)
	require.Len(t, got, 1)
	assert.JSONEq(t, `{"doc_id":"x"}`, string(got[0]))
}

func TestMemoryBusClosed(t *testing.T) {
	b := NewMemoryBus()
	require.NoError(t, b.Close())

	err := b.Publish(context.Background(), "doc.received", []byte(`{}`))
	var transportErr *TransportError
	assert.ErrorAs(t, err, &transportErr)

	_, err = b.Subscribe(context.Background(), "doc.received")
	assert.ErrorAs(t, err, &transportErr)
}
