package pipeline

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/feichai0017/docflow/pkg/bus"
	"github.com/feichai0017/docflow/pkg/logger"
)

// Handler is one stage's per-message work: decode, collaborator call,
// store update, publish, notify. The surrounding worker owns the
// subscription and the acknowledgement.
type Handler interface {
	Spec() StageSpec
	Handle(ctx context.Context, payload []byte) error
}

// Worker drives one stage: a long-running consume loop on the stage's
// input topic, processing messages one at a time in delivery order. Any
// error from Handle is caught here, logged, and the message is left
// unacknowledged; the loop continues to the next message.
type Worker struct {
	handler Handler
	bus     bus.Bus
	log     logger.Logger
}

func NewWorker(handler Handler, b bus.Bus, log logger.Logger) *Worker {
	return &Worker{
		handler: handler,
		bus:     b,
		log:     log.With(logger.String("stage", handler.Spec().Name)),
	}
}

// Run blocks until ctx is cancelled or the transport fails. A failed
// subscribe is fatal: the worker never starts on a dead broker.
func (w *Worker) Run(ctx context.Context) error {
	spec := w.handler.Spec()

	sub, err := w.bus.Subscribe(ctx, spec.InTopic)
	if err != nil {
		w.log.Error("Failed to subscribe",
			logger.String("topic", spec.InTopic),
			logger.Error(err),
		)
		return fmt.Errorf("stage %s: %w", spec.Name, err)
	}
	defer sub.Close()

	w.log.Info("Stage worker started",
		logger.String("in", spec.InTopic),
		logger.String("out", spec.OutTopic),
	)

	return sub.Deliver(ctx, func(d bus.Delivery) {
		if err := w.handler.Handle(ctx, d.Payload); err != nil {
			w.logHandleError(err, d.Payload)
			// no ack: the broker retains the message
			return
		}
		if err := d.Ack(); err != nil {
			w.log.Error("Failed to acknowledge message", logger.Error(err))
		}
	})
}

func (w *Worker) logHandleError(err error, payload []byte) {
	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		w.log.Error("Invalid event data, dropping message",
			logger.Error(decodeErr.Err),
			logger.ByteString("payload", decodeErr.Raw),
		)
		return
	}

	var collabErr *CollaboratorError
	if errors.As(err, &collabErr) {
		w.log.Error("Error processing document",
			logger.String("doc_id", collabErr.DocID),
			logger.String("op", collabErr.Op),
			logger.Error(collabErr.Err),
		)
		return
	}

	w.log.Error("Error processing message", logger.Error(err))
}

// Runner supervises one worker per stage. Workers share nothing but the
// bus and the store; a slow collaborator stalls only its own stage.
type Runner struct {
	workers []*Worker
	log     logger.Logger
}

// NewRunner validates the stage graph against the handlers and builds
// their workers.
func NewRunner(handlers []Handler, b bus.Bus, log logger.Logger) (*Runner, error) {
	specs := make([]StageSpec, len(handlers))
	for i, h := range handlers {
		specs[i] = h.Spec()
	}
	if err := ValidateGraph(specs); err != nil {
		return nil, fmt.Errorf("invalid pipeline graph: %w", err)
	}

	workers := make([]*Worker, len(handlers))
	for i, h := range handlers {
		workers[i] = NewWorker(h, b, log)
	}
	return &Runner{workers: workers, log: log}, nil
}

// Run starts every stage worker and blocks until ctx is cancelled or a
// worker fails fatally, at which point the rest are shut down too.
func (r *Runner) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, w := range r.workers {
		w := w
		g.Go(func() error {
			return w.Run(ctx)
		})
	}
	return g.Wait()
}
