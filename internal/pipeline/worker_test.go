package pipeline

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/docflow/internal/events"
	"github.com/feichai0017/docflow/pkg/bus"
	"github.com/feichai0017/docflow/pkg/logger"
)

// stubHandler fails on any payload containing "bad" and counts the rest.
type stubHandler struct {
	spec    StageSpec
	handled int64
}

func (h *stubHandler) Spec() StageSpec { return h.spec }

func (h *stubHandler) Handle(ctx context.Context, payload []byte) error {
	if string(payload) == "bad" {
		return &DecodeError{Topic: h.spec.InTopic, Raw: payload, Err: assert.AnError}
	}
	atomic.AddInt64(&h.handled, 1)
	return nil
}

func TestWorkerAcksOnlySuccesses(t *testing.T) {
	b := bus.NewMemoryBus()
	h := &stubHandler{spec: StageSpec{
		Name:    "ingestor",
		InTopic: events.TopicInitialize, OutTopic: events.TopicReceived,
	}}
	w := NewWorker(h, b, logger.NewTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// wait for the worker's subscription before publishing
	require.Eventually(t, func() bool {
		return b.Subscribers(events.TopicInitialize) == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, b.Publish(ctx, events.TopicInitialize, []byte("bad")))
	require.NoError(t, b.Publish(ctx, events.TopicInitialize, []byte(`{"doc_id":"a"}`)))
	require.NoError(t, b.Publish(ctx, events.TopicInitialize, []byte(`{"doc_id":"b"}`)))

	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&h.handled) == 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	// the malformed message was never acknowledged
	assert.Equal(t, 2, b.Acked(events.TopicInitialize))
}

func TestRunnerRejectsBrokenGraph(t *testing.T) {
	b := bus.NewMemoryBus()
	handlers := []Handler{
		&stubHandler{spec: StageSpec{Name: "a", InTopic: events.TopicInitialize, OutTopic: events.TopicReceived}},
		&stubHandler{spec: StageSpec{Name: "b", InTopic: events.TopicType, OutTopic: events.TopicRouted}},
	}
	_, err := NewRunner(handlers, b, logger.NewTestLogger())
	assert.Error(t, err)
}

func TestRunnerRunsAllStages(t *testing.T) {
	b := bus.NewMemoryBus()
	handlers := []Handler{
		&stubHandler{spec: StageSpec{Name: "ingestor", InTopic: events.TopicInitialize, OutTopic: events.TopicReceived}},
		&stubHandler{spec: StageSpec{Name: "extractor", InTopic: events.TopicReceived, OutTopic: events.TopicText}},
	}
	runner, err := NewRunner(handlers, b, logger.NewTestLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()

	require.Eventually(t, func() bool {
		return b.Subscribers(events.TopicInitialize) == 1 &&
			b.Subscribers(events.TopicReceived) == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, b.Publish(ctx, events.TopicInitialize, []byte(`{"doc_id":"a"}`)))
	require.NoError(t, b.Publish(ctx, events.TopicReceived, []byte(`{"doc_id":"a"}`)))

	require.Eventually(t, func() bool {
		total := int64(0)
		for _, h := range handlers {
			total += atomic.LoadInt64(&h.(*stubHandler).handled)
		}
		return total >= 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
