// The notifier process runs the periodic jobs and delivers queued
// notifications. It publishes to and consumes from the same queue, so a
// single instance is self-contained while extra consumers can be added for
// throughput.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mirai-api/gateway/internal/config"
	"github.com/mirai-api/gateway/internal/database"
	"github.com/mirai-api/gateway/internal/logging"
	"github.com/mirai-api/gateway/internal/metrics"
	"github.com/mirai-api/gateway/internal/notify"
	"github.com/mirai-api/gateway/internal/queue"
	"github.com/mirai-api/gateway/internal/scheduler"
	"github.com/mirai-api/gateway/pkg/models"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	repo := database.NewRepository(db)

	mq, err := queue.New(cfg.Queue)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer mq.Close()

	sender, err := notify.NewTelegramSender(cfg.Telegram, log)
	if err != nil {
		log.Fatalf("Failed to initialize Telegram sender: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dispatcher := notify.NewDispatcher(sender, log, cfg.Telegram.Workers, cfg.Telegram.SendTimeout)
	dispatcher.Start(ctx)

	err = mq.ConsumeNotifications(ctx, cfg.Telegram.Workers, func(n *models.Notification) {
		dispatcher.Dispatch(n)
	})
	if err != nil {
		log.Fatalf("Failed to start queue consumer: %v", err)
	}

	jobs := scheduler.New(repo, mq, log, cfg.Scheduler, cfg.Telegram.AdminChatID)
	if err := jobs.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		// Offset from the API listener so both processes can run on one host.
		metricsServer = metrics.NewServer(cfg.Metrics.Port+1, log)
		go func() {
			if err := metricsServer.Start(); err != nil {
				log.Errorf("Metrics server error: %v", err)
			}
		}()
	}

	log.Info("Notifier started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down...")

	jobs.Stop()
	cancel()
	dispatcher.Stop()

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Errorf("Metrics server shutdown error: %v", err)
		}
	}

	log.Info("Notifier stopped")
}
