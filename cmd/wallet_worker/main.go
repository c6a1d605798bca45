package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shared-event-wallet/internal/config"
	"github.com/shared-event-wallet/internal/data/mongo"
	"github.com/shared-event-wallet/internal/data/postgres"
	"github.com/shared-event-wallet/internal/logger"
	"github.com/shared-event-wallet/internal/platform/messaging/consumers"
	"github.com/shared-event-wallet/internal/platform/messaging/producers"
	"github.com/shared-event-wallet/internal/platform/persistence"
	"github.com/shared-event-wallet/internal/service"
	"github.com/shared-event-wallet/internal/worker/consumer"
	"github.com/shared-event-wallet/internal/worker/outbox_poller"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("wallet_worker")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	log.Info("Starting Wallet Worker",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	repos := service.Repositories{
		Events:       postgres.NewEventRepository(log, postgresDB),
		Categories:   postgres.NewCategoryRepository(log, postgresDB),
		Wallets:      postgres.NewWalletRepository(log, postgresDB),
		Transactions: postgres.NewTransactionRepository(log, postgresDB),
		Expenses:     postgres.NewExpenseRepository(log, postgresDB),
		Settlements:  postgres.NewSettlementRepository(log, postgresDB),
		Outbox:       postgres.NewOutboxRepository(log, postgresDB),
	}

	mirrorRepo := mongo.NewLedgerRepository(log, mongoDB.Database())
	if err := mirrorRepo.EnsureIndexes(appCtx); err != nil {
		log.Error("Failed to create ledger mirror indexes", "error", err)
		os.Exit(1)
	}

	kafkaConsumer := consumers.NewKafkaConsumer(appCtx, log, &cfg.Kafka)

	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}
	// A nil *DLQProducer must not reach the handler as a non-nil interface
	var deadLetters producers.DeadLetterPublisher
	if dlqProducer != nil {
		deadLetters = dlqProducer
	}

	ledgerStore := service.NewLedgerStore(log, postgresDB, repos)
	gatewayEventHandler := consumer.NewGatewayEventHandler(log, ledgerStore, deadLetters)

	mirrorPublisher := outbox_poller.NewMirrorPublisher(repos.Outbox, mirrorRepo, log)
	poller := outbox_poller.NewPoller(&cfg.Outbox, repos.Outbox, mirrorPublisher, log)

	group, groupCtx := errgroup.WithContext(appCtx)

	group.Go(func() error {
		log.Info("Starting Kafka consumer",
			"topic", cfg.Kafka.GatewayTopic,
			"group", cfg.Kafka.ConsumerGroup,
		)
		if err := kafkaConsumer.Subscribe(groupCtx, cfg.Kafka.GatewayTopic, cfg.Kafka.ConsumerGroup, gatewayEventHandler.HandleMessage); err != nil {
			return fmt.Errorf("kafka consumer error: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		log.Info("Starting Outbox Poller",
			"interval", cfg.Outbox.PollingInterval.String(),
			"batch_size", cfg.Outbox.BatchSize,
		)
		poller.Start(groupCtx)
		return nil
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case <-groupCtx.Done():
		log.Warn("A worker component stopped, shutting down")
	}

	cancelAppCtx()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	log.Info("Starting graceful shutdown...")

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- group.Wait()
	}()

	var serviceErr error
	select {
	case serviceErr = <-waitErr:
		log.Info("All worker components stopped")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	if dlqProducer != nil {
		if err = dlqProducer.Close(); err != nil {
			log.Error("Error closing DLQ Kafka producer", "error", err)
		}
	}

	if err = kafkaConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
	}

	postgresDB.Close()

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	if serviceErr != nil {
		log.Error("Wallet Worker shutdown with errors", "error", serviceErr)
	}
	if err != nil || serviceErr != nil {
		log.Error("Wallet Worker shutdown completed with errors")
	} else {
		log.Info("Wallet Worker shutdown completed successfully")
	}
}
