package http

import (
	"context"
	"fmt"
	"log"
	stdhttp "net/http"
	"os/signal"
	"syscall"
	"time"

	"nostrpush/internal/config"
	"nostrpush/internal/database"
	"nostrpush/internal/handler"
	"nostrpush/internal/queue"
	"nostrpush/internal/redis"
	"nostrpush/internal/relay"
	"nostrpush/internal/repository"
	"nostrpush/internal/service"
	"nostrpush/internal/worker"
)

// Run wires the whole engine together and blocks until shutdown: Postgres
// ledger and device registry, Redis queue, relay listener, fan-out workers,
// APNs dispatcher, and the device-registration HTTP API.
func Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// 2. Connect to Database and run idempotent schema setup. Queries
	// before setup would silently read as "nobody notified yet", so setup
	// failures are fatal here.
	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	ledger := repository.NewNotificationLedger(db)
	if err := ledger.Setup(ctx); err != nil {
		return fmt.Errorf("failed to set up notification ledger: %w", err)
	}

	tokenRepo := repository.NewDeviceTokenRepository(db)
	if err := tokenRepo.Setup(ctx); err != nil {
		return fmt.Errorf("failed to set up device registry: %w", err)
	}

	// 3. Connect to Redis (event queue)
	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to create redis client: %w", err)
	}
	defer redisClient.Close()

	if err := redisClient.Ping(ctx); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	// 4. Build the fan-out pipeline
	dispatcher, err := service.NewAPNSClient(cfg)
	if err != nil {
		return fmt.Errorf("failed to create apns client: %w", err)
	}

	muter := service.NewRelayMuteProvider(cfg.RelayURL)
	fanout := service.NewFanoutService(ledger, tokenRepo, muter, dispatcher)

	consumer := queue.NewConsumer(redisClient.Client)
	manager := worker.NewManager(consumer, worker.NewHandler(fanout), worker.DefaultManagerConfig())
	if err := manager.Start(ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}
	defer manager.Stop()

	// 5. Subscribe to the upstream relay
	if cfg.RelayURL != "" {
		publisher := queue.NewPublisher(redisClient.Client)
		listener := relay.NewListener(cfg.RelayURL, publisher)
		go listener.Run(ctx)
	} else {
		log.Println("RELAY_URL not set, skipping relay subscription")
	}

	// 6. HTTP API
	deviceHandler := handler.NewDeviceHandler(service.NewDeviceService(tokenRepo))
	router := NewRouter(RouterConfig{DeviceHandler: deviceHandler})

	server := &stdhttp.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("Starting server on :%s", cfg.ServerPort)
	if err := server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
		return err
	}
	return nil
}
