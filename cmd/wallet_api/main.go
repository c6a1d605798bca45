package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/shared-event-wallet/internal/api"
	"github.com/shared-event-wallet/internal/api/handler"
	"github.com/shared-event-wallet/internal/config"
	"github.com/shared-event-wallet/internal/data/mongo"
	"github.com/shared-event-wallet/internal/data/postgres"
	"github.com/shared-event-wallet/internal/domain/settlement"
	"github.com/shared-event-wallet/internal/logger"
	"github.com/shared-event-wallet/internal/platform/gateway"
	"github.com/shared-event-wallet/internal/platform/lock"
	"github.com/shared-event-wallet/internal/platform/messaging/producers"
	"github.com/shared-event-wallet/internal/platform/persistence"
	"github.com/shared-event-wallet/internal/platform/receipt"
	"github.com/shared-event-wallet/internal/service"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("wallet_api")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	log.Info("Starting Wallet API",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

	// Postgres runs pending migrations before opening the pool
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

	redisClient, err := persistence.NewRedisClient(appCtx, log, &cfg.Redis)
	if err != nil {
		log.Error("Failed to initialize Redis", "error", err)
		os.Exit(1)
	}

	gatewayProducer, err := producers.NewGatewayEventProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize gateway event producer", "error", err)
		os.Exit(1)
	}

	policy, err := settlement.ParseResidualPolicy(cfg.Settlement.ResidualPolicy)
	if err != nil {
		log.Error("Invalid settlement residual policy", "error", err)
		os.Exit(1)
	}

	dispatcher, err := service.NewRefundDispatcher(service.RefundDispatcherConfig{Size: cfg.WorkerPool.Size}, log)
	if err != nil {
		log.Error("Failed to initialize refund dispatcher", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	repos := service.Repositories{
		Events:       postgres.NewEventRepository(log, postgresDB),
		Categories:   postgres.NewCategoryRepository(log, postgresDB),
		Wallets:      postgres.NewWalletRepository(log, postgresDB),
		Transactions: postgres.NewTransactionRepository(log, postgresDB),
		Expenses:     postgres.NewExpenseRepository(log, postgresDB),
		Settlements:  postgres.NewSettlementRepository(log, postgresDB),
		Outbox:       postgres.NewOutboxRepository(log, postgresDB),
	}
	directory := postgres.NewUserRepository(log, postgresDB)

	mirrorRepo := mongo.NewLedgerRepository(log, mongoDB.Database())
	if err := mirrorRepo.EnsureIndexes(appCtx); err != nil {
		log.Error("Failed to create ledger mirror indexes", "error", err)
		os.Exit(1)
	}

	paymentGateway := gateway.New(log, cfg)
	locker := lock.NewRedisLocker(log, redisClient, cfg.Lock)
	extractor := receipt.NewTesseractExtractor(log, cfg.Receipt.TesseractPath)

	// Initialize services
	ledgerStore := service.NewLedgerStore(log, postgresDB, repos)
	eventService := service.NewEventService(log, postgresDB, repos, paymentGateway, directory)
	walletService := service.NewWalletService(log, repos, ledgerStore, paymentGateway, mirrorRepo, cfg.Gateway)
	expenseService := service.NewExpenseService(log, postgresDB, repos, ledgerStore, extractor)
	settlementService := service.NewSettlementService(log, postgresDB, repos, ledgerStore,
		settlement.NewCalculator(policy), paymentGateway, locker, dispatcher, directory)

	server := api.NewServer(log, cfg, api.Handlers{
		Events:     handler.NewEventHandler(log, eventService),
		Wallets:    handler.NewWalletHandler(log, walletService),
		Expenses:   handler.NewExpenseHandler(log, expenseService),
		Settlement: handler.NewSettlementHandler(log, settlementService),
		Webhooks:   handler.NewWebhookHandler(log, gatewayProducer, cfg.Gateway.WebhookSecret),
	})
	log.Info("REST server initialized")

	errChan := make(chan error, 1)

	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	cancelAppCtx()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	log.Info("Starting graceful shutdown...")

	// Stop accepting requests before tearing down what they depend on
	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	log.Info("Shutting down refund dispatcher", "running_workers", dispatcher.Running())
	dispatcher.Shutdown()

	if err = gatewayProducer.Close(); err != nil {
		log.Error("Error closing gateway event producer", "error", err)
	}

	if err = redisClient.Close(); err != nil {
		log.Error("Error closing Redis client", "error", err)
	}

	postgresDB.Close()

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	}
	if err != nil {
		log.Error("Server shutdown completed with errors")
	} else {
		log.Info("Server shutdown completed successfully")
	}
}
