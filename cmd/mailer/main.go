package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/joao-fontenele/storefront/internal/config"
	"github.com/joao-fontenele/storefront/internal/messaging"
	"github.com/joao-fontenele/storefront/internal/notify"
	"github.com/joao-fontenele/storefront/internal/telemetry"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if !cfg.Kafka.Enabled() {
		logger.Error("KAFKA_BROKERS environment variable is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryCfg := telemetry.Config{
		ServiceName:    cfg.Telemetry.ServiceName + "-mailer",
		ServiceVersion: cfg.Telemetry.ServiceVersion,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
	}

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider(telemetryCfg)
	if err != nil {
		logger.Error("failed to init meter provider", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(context.Background()) }()

	if cfg.Telemetry.Enabled {
		shutdownTracer, err := telemetry.InitTracerProvider(ctx, telemetryCfg)
		if err != nil {
			logger.Error("failed to init tracer provider", "error", err)
			os.Exit(1)
		}
		defer func() { _ = shutdownTracer(context.Background()) }()
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() { _ = redisClient.Close() }()

	sender, err := notify.NewSMTPSender(notify.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		SSL:      cfg.SMTP.SSL,
	})
	if err != nil {
		logger.Error("failed to configure smtp", "error", err)
		os.Exit(1)
	}

	service := notify.NewService(
		sender,
		notify.NewRedisDeduper(redisClient, cfg.Checkout.DedupTTL),
		notify.ShopInfo{
			Title:            cfg.Shop.Title,
			Address:          cfg.Shop.Address,
			OperatorEmail:    cfg.Shop.OperatorEmail,
			OrderSenderEmail: cfg.Shop.OrderSenderEmail,
		},
		logger,
	)
	eventHandler := notify.NewEventHandler(service, logger)

	consumer := messaging.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.CompletedTopic, cfg.Kafka.GroupID, logger,
		messaging.WithRetry(cfg.Kafka.MaxAttempts, cfg.Kafka.RetryBackoff),
	)
	defer func() { _ = consumer.Close() }()

	metricsServer := &http.Server{Addr: ":" + cfg.HTTP.Port, Handler: metricsHandler}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
		}
	}()
	defer func() { _ = metricsServer.Close() }()

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		logger.Info("shutting down")
		cancel()
	}()

	logger.Info("starting order mailer", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.CompletedTopic)

	if err := consumer.Consume(ctx, eventHandler.Handle); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("consumer stopped")
			return
		}
		logger.Error("consumer error", "error", err)
		os.Exit(1)
	}
}
