package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/jmarlowe/leadpipe/internal/authz"
	"github.com/jmarlowe/leadpipe/internal/config"
	"github.com/jmarlowe/leadpipe/internal/db"
	"github.com/jmarlowe/leadpipe/internal/importer"
	"github.com/jmarlowe/leadpipe/internal/queue"
	"github.com/jmarlowe/leadpipe/internal/repository"
	"github.com/jmarlowe/leadpipe/internal/schema"
	"github.com/jmarlowe/leadpipe/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := logrus.StandardLogger()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load(".")
	if err != nil {
		logger.WithError(err).Fatal("failed to load config")
	}

	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to database")
	}
	defer conn.Close()

	batchRepo := repository.NewBatchRepository(conn)
	segmentRepo := repository.NewSegmentRepository(conn)
	companyRepo := repository.NewCompanyRepository(conn)
	contactRepo := repository.NewContactRepository(conn)

	guard, err := authz.NewService(authz.Config{
		ModelPath:  cfg.Authz.ModelPath,
		PolicyPath: cfg.Authz.PolicyPath,
		Logger:     logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to load authorization policy")
	}

	queueClient := queue.NewClient(cfg.Redis)
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.WithError(err).Warn("failed to close queue client")
		}
	}()

	registry := schema.NewRegistry()
	importSvc := importer.NewService(batchRepo, segmentRepo, companyRepo, contactRepo, registry, queueClient, nil, guard, cfg.Import, logger)
	processor := worker.NewProcessor(importSvc, logger)

	server := asynq.NewServer(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, asynq.Config{
		Concurrency: cfg.Import.WorkerConcurrency,
	})

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()

	logger.WithField("concurrency", cfg.Import.WorkerConcurrency).Info("worker starting")
	if err := server.Run(processor.Handler()); err != nil {
		logger.WithError(err).Fatal("worker stopped")
	}
}
