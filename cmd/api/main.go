package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dan9191/loan-control/internal/config"
	"github.com/Dan9191/loan-control/internal/handler"
	"github.com/Dan9191/loan-control/internal/notify"
	"github.com/Dan9191/loan-control/internal/repository"
	"github.com/Dan9191/loan-control/internal/scheduler"
	"github.com/Dan9191/loan-control/internal/service"
	"github.com/Dan9191/loan-control/internal/storage"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	logLevel, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := sqlx.Connect(cfg.DBDriver, cfg.DBConn)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)
	if cfg.DBDriver == "sqlite3" {
		db.SetMaxOpenConns(1)
	}

	repo := repository.NewRepository(db)
	if err := repo.InitSchema(ctx); err != nil {
		logger.Fatalf("Failed to initialize schema: %v", err)
	}

	// Initialize layers
	uploads, err := storage.NewUploads(cfg.UploadDir, logger)
	if err != nil {
		logger.Fatalf("Failed to prepare uploads: %v", err)
	}
	svc := service.NewService(repo, uploads, notify.New(cfg, logger), logger, cfg)
	h, err := handler.NewHandler(svc, cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to load templates: %v", err)
	}

	if cfg.ReminderEnabled {
		sched, err := scheduler.New(cfg.ReminderSchedule, svc, logger)
		if err != nil {
			logger.Fatalf("Failed to schedule reminders: %v", err)
		}
		sched.Start()
		defer sched.Stop()
	}

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      h.Routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("Shutdown failed: %v", err)
		}
	}()

	logger.Infof("Starting server on %s", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("Server failed: %v", err)
	}
	logger.Info("Server stopped")
}
