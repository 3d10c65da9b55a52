package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/feichai0017/docflow/config"
	"github.com/feichai0017/docflow/internal/agent"
	"github.com/feichai0017/docflow/internal/agent/llm"
	"github.com/feichai0017/docflow/internal/maintenance"
	"github.com/feichai0017/docflow/internal/notify"
	"github.com/feichai0017/docflow/internal/pipeline"
	"github.com/feichai0017/docflow/internal/store"
	"github.com/feichai0017/docflow/pkg/bus"
	"github.com/feichai0017/docflow/pkg/logger"
	"github.com/feichai0017/docflow/pkg/storage"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		panic(err)
	}

	// 初始化日志
	log, err := logger.NewLogger(
		logger.WithLevel(cfg.Log.Level),
		logger.WithEncoding(cfg.Log.Encoding),
		logger.WithOutputPaths(cfg.Log.OutputPaths),
	)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info("Shutting down workers...")
		cancel()
	}()

	st, err := store.Open(cfg.Database.DSN, log)
	if err != nil {
		log.Fatal("Failed to open document store", logger.Error(err))
	}

	b, err := bus.Connect(ctx, bus.Config{
		Addr:         cfg.Bus.RedisAddr,
		DB:           cfg.Bus.RedisDB,
		Exchange:     cfg.Bus.Exchange,
		StreamMaxLen: cfg.Bus.StreamMaxLen,
	}, log)
	if err != nil {
		log.Fatal("Failed to connect to message bus", logger.Error(err))
	}
	defer b.Close()

	files, err := storage.New(cfg.Storage, log)
	if err != nil {
		log.Fatal("Failed to initialize storage", logger.Error(err))
	}

	notifier, err := notify.NewRedisNotifier(ctx, notify.Config{
		Addr:            cfg.Notify.RedisAddr,
		DB:              cfg.Notify.RedisDB,
		DocumentChannel: cfg.Notify.DocumentChannel,
		MailboxChannel:  cfg.Notify.MailboxChannel,
	}, log)
	if err != nil {
		log.Fatal("Failed to connect notifier", logger.Error(err))
	}
	defer notifier.Close()

	// 初始化外部协作者
	factory, err := agent.NewProcessorFactory(ctx, cfg.OCR, log)
	if err != nil {
		log.Fatal("Failed to initialize processor factory", logger.Error(err))
	}
	defer factory.Close()

	llmClient := llm.NewClient(llm.Config{
		Endpoint:    cfg.LLM.Endpoint,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	}, log)

	deps := pipeline.Deps{
		Bus:      b,
		Store:    st,
		Notifier: notifier,
		Log:      log,
	}
	handlers := []pipeline.Handler{
		&pipeline.Ingestor{
			Deps:         deps,
			Summarizer:   llmClient,
			AllowSenders: cfg.Ingest.SenderAllowList,
		},
		&pipeline.Extractor{
			Deps:      deps,
			Files:     files,
			Processor: factory,
			Entities:  llmClient,
		},
		&pipeline.Classifier{
			Deps:  deps,
			Agent: llmClient,
		},
		&pipeline.Router{
			Deps:  deps,
			Table: pipeline.NewRouteTable(cfg.Routing.Destinations, cfg.Routing.DefaultDestination),
		},
	}

	runner, err := pipeline.NewRunner(handlers, b, log)
	if err != nil {
		log.Fatal("Invalid stage graph", logger.Error(err))
	}

	maint := maintenance.NewWorker(cfg.Bus, cfg.Maintenance, b, st, files, log)
	if err := maint.Start(ctx); err != nil {
		log.Fatal("Failed to start maintenance worker", logger.Error(err))
	}

	log.Info("Pipeline workers starting")
	if err := runner.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("Pipeline stopped", logger.Error(err))
	}
	log.Info("Pipeline workers stopped")
}
