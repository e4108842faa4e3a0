package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/jmarlowe/leadpipe/internal/api"
	"github.com/jmarlowe/leadpipe/internal/assignment"
	"github.com/jmarlowe/leadpipe/internal/authz"
	"github.com/jmarlowe/leadpipe/internal/config"
	"github.com/jmarlowe/leadpipe/internal/db"
	"github.com/jmarlowe/leadpipe/internal/importer"
	"github.com/jmarlowe/leadpipe/internal/lifecycle"
	"github.com/jmarlowe/leadpipe/internal/middleware"
	"github.com/jmarlowe/leadpipe/internal/queue"
	"github.com/jmarlowe/leadpipe/internal/repository"
	"github.com/jmarlowe/leadpipe/internal/schema"
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

	if err := db.RunMigrations(cfg.Database.URL(), cfg.Import.MigrationsPath); err != nil {
		logger.WithError(err).Fatal("failed to run migrations")
	}

	batchRepo := repository.NewBatchRepository(conn)
	segmentRepo := repository.NewSegmentRepository(conn)
	companyRepo := repository.NewCompanyRepository(conn)
	contactRepo := repository.NewContactRepository(conn)
	assignmentRepo := repository.NewAssignmentRepository(conn)
	auditRepo := repository.NewAuditRepository(conn)
	userRepo := repository.NewUserRepository(conn)

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
	lifecycleSvc := lifecycle.NewService(companyRepo, contactRepo, guard, logger)
	assignmentSvc := assignment.NewService(assignmentRepo, contactRepo, userRepo, guard, logger)

	handler := api.NewHandler(importSvc, lifecycleSvc, assignmentSvc, segmentRepo, auditRepo, userRepo, guard, cfg.Import.MaxFileSize, logger)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      corsHandler.Handler(middleware.Logging(logger)(handler.Routes())),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("server shutdown failed")
		}
	}()

	logger.WithField("addr", cfg.Server.Addr).Info("server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.WithError(err).Fatal("server stopped")
	}
}
