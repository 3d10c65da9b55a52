package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/docflow/api/handlers"
	"github.com/feichai0017/docflow/api/routes"
	"github.com/feichai0017/docflow/config"
	"github.com/feichai0017/docflow/internal/broadcast"
	"github.com/feichai0017/docflow/internal/notify"
	"github.com/feichai0017/docflow/internal/service/document"
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

	// init logger
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

	// broadcast hubs fed by worker notifications
	documentHub := broadcast.NewHub("documents", log)
	mailboxHub := broadcast.NewHub("mailbox", log)
	if err := notifier.StartForwarder(ctx, notify.NewHubPair(documentHub, mailboxHub)); err != nil {
		log.Fatal("Failed to start notification forwarder", logger.Error(err))
	}

	docService := document.NewService(st, b, files, notifier, log, cfg.Ingest)

	h := handlers.NewHandlers(docService, documentHub, mailboxHub, log)
	r := gin.New()
	r.Use(gin.Recovery())
	routes.SetupRoutes(r, h)

	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: r,
	}

	go func() {
		log.Info("Server starting", logger.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server error", logger.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", logger.Error(err))
	}
}
