// Package maintenance runs the retention policy as periodic background
// tasks: trimming bus streams and purging routed documents with their
// stored files. Document lifecycle ends here and nowhere else.
package maintenance

import (
	"context"
	"time"

	"github.com/hibiken/asynq"

	"github.com/feichai0017/docflow/config"
	"github.com/feichai0017/docflow/internal/events"
	"github.com/feichai0017/docflow/internal/store"
	"github.com/feichai0017/docflow/pkg/bus"
	"github.com/feichai0017/docflow/pkg/logger"
	"github.com/feichai0017/docflow/pkg/storage"
)

const (
	TaskTypeTrimStreams = "maintenance:trim_streams"
	TaskTypePurge       = "maintenance:purge"
)

// Worker schedules and executes the maintenance tasks.
type Worker struct {
	server    *asynq.Server
	scheduler *asynq.Scheduler
	mux       *asynq.ServeMux
	logger    logger.Logger

	bus    *bus.RedisBus
	store  store.Store
	files  storage.Storage
	cfg    config.MaintenanceConfig
	maxLen int64
}

// NewWorker wires the asynq server and scheduler against the same Redis
// instance the bus uses.
func NewWorker(
	busCfg config.BusConfig,
	cfg config.MaintenanceConfig,
	b *bus.RedisBus,
	st store.Store,
	files storage.Storage,
	log logger.Logger,
) *Worker {
	redisOpt := asynq.RedisClientOpt{Addr: busCfg.RedisAddr, DB: busCfg.RedisDB}

	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 1,
		Queues:      map[string]int{"maintenance": 1},
	})
	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{})

	w := &Worker{
		server:    server,
		scheduler: scheduler,
		mux:       asynq.NewServeMux(),
		logger:    log,
		bus:       b,
		store:     st,
		files:     files,
		cfg:       cfg,
		maxLen:    busCfg.StreamMaxLen,
	}
	w.mux.HandleFunc(TaskTypeTrimStreams, w.handleTrimStreams)
	w.mux.HandleFunc(TaskTypePurge, w.handlePurge)
	return w
}

// Start registers the periodic entries and runs the server until the
// context is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	queue := asynq.Queue("maintenance")
	if _, err := w.scheduler.Register(w.cfg.TrimInterval,
		asynq.NewTask(TaskTypeTrimStreams, nil), queue); err != nil {
		return err
	}
	if _, err := w.scheduler.Register(w.cfg.PurgeInterval,
		asynq.NewTask(TaskTypePurge, nil), queue); err != nil {
		return err
	}

	go func() {
		if err := w.scheduler.Run(); err != nil {
			w.logger.Error("Maintenance scheduler stopped", logger.Error(err))
		}
	}()
	go func() {
		if err := w.server.Run(w.mux); err != nil {
			w.logger.Error("Maintenance server stopped", logger.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		w.Stop()
	}()

	w.logger.Info("Maintenance worker started",
		logger.String("trim_interval", w.cfg.TrimInterval),
		logger.String("purge_interval", w.cfg.PurgeInterval),
	)
	return nil
}

func (w *Worker) Stop() {
	w.scheduler.Shutdown()
	w.server.Stop()
	w.server.Shutdown()
}

func (w *Worker) handleTrimStreams(ctx context.Context, _ *asynq.Task) error {
	if err := w.bus.TrimStreams(ctx, events.Topics(), w.maxLen); err != nil {
		w.logger.Error("Failed to trim streams", logger.Error(err))
		return err
	}
	w.logger.Info("Trimmed bus streams", logger.Int64("max_len", w.maxLen))
	return nil
}

func (w *Worker) handlePurge(ctx context.Context, _ *asynq.Task) error {
	threshold := time.Now().UTC().Add(-w.cfg.Retention)

	purged, err := w.store.PurgeRoutedBefore(ctx, threshold)
	if err != nil {
		w.logger.Error("Failed to purge documents", logger.Error(err))
		return err
	}
	if err := w.files.PurgeOlderThan(ctx, threshold); err != nil {
		w.logger.Error("Failed to purge stored files", logger.Error(err))
		return err
	}

	w.logger.Info("Retention purge completed",
		logger.Int64("documents", purged),
		logger.String("threshold", threshold.Format(time.RFC3339)),
	)
	return nil
}
