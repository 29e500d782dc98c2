package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/joao-fontenele/storefront/internal/catalog"
	"github.com/joao-fontenele/storefront/internal/checkout"
	"github.com/joao-fontenele/storefront/internal/config"
	"github.com/joao-fontenele/storefront/internal/messaging"
	"github.com/joao-fontenele/storefront/internal/notify"
	"github.com/joao-fontenele/storefront/internal/orders"
	"github.com/joao-fontenele/storefront/internal/payment"
	"github.com/joao-fontenele/storefront/internal/session"
	"github.com/joao-fontenele/storefront/internal/smartpost"
	"github.com/joao-fontenele/storefront/internal/storefront"
	"github.com/joao-fontenele/storefront/internal/telemetry"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryCfg := telemetry.Config{
		ServiceName:    cfg.Telemetry.ServiceName,
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

	db, err := telemetry.OpenPostgres(ctx, cfg.Postgres.URL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() { _ = redisClient.Close() }()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}

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

	mailer := notify.NewService(
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

	// With Kafka configured, completion emails are sent by the mailer
	// process; otherwise they go out from here.
	var notifier checkout.CompletionNotifier = mailer
	if cfg.Kafka.Enabled() {
		producer := messaging.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.CompletedTopic)
		defer func() { _ = producer.Close() }()
		notifier = messaging.NewOrderEvents(producer)
		logger.Info("publishing order events", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.CompletedTopic)
	}

	outbound := &http.Client{
		Timeout:   cfg.Payment.Timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	gateway := payment.NewClient(payment.ClientConfig{
		BaseURL:   cfg.Payment.BaseURL,
		ShopID:    cfg.Payment.ShopID,
		SecretKey: cfg.Payment.SecretKey,
	}, outbound)

	var selector payment.MethodSelector = payment.FirstNonCard{}
	if cfg.Payment.PreferredMethod != "" {
		selector = payment.ByName{Name: cfg.Payment.PreferredMethod, Fallback: payment.FirstNonCard{}}
	}

	orderRepo := orders.NewOrderRepository(db)
	checkoutService := checkout.NewService(orderRepo, gateway, selector, notifier, checkout.Config{
		ShippingFee:           cfg.Shop.ShippingFee,
		Currency:              cfg.Shop.Currency,
		Country:               cfg.Shop.Country,
		Locale:                cfg.Shop.Locale,
		UnselectedDestination: cfg.Shop.UnselectedDestination,
		NotifyTimeout:         cfg.Checkout.NotifyTimeout,
	}, logger)

	sweeper := checkout.NewSweeper(orderRepo, cfg.Checkout.PendingTTL, cfg.Checkout.SweepInterval, logger)
	go sweeper.Run(ctx)

	places := smartpost.NewClient(
		cfg.Smartpost.URL,
		&http.Client{Timeout: cfg.Smartpost.Timeout, Transport: otelhttp.NewTransport(http.DefaultTransport)},
		redisClient,
		cfg.Smartpost.CacheTTL,
		logger,
	)

	views, err := storefront.NewViews()
	if err != nil {
		logger.Error("failed to parse views", "error", err)
		os.Exit(1)
	}

	sessions := session.NewManager(
		session.NewStore(redisClient, cfg.Session.TTL),
		cfg.Session.CookieName,
		cfg.Session.TTL,
		cfg.Session.Secure,
	)

	handler := storefront.NewHandler(
		catalog.NewProductRepository(db),
		sessions,
		checkoutService,
		mailer,
		places,
		views,
		cfg.Shop,
		logger,
	)

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metricsHandler)
	mux.Handle("/", otelhttp.NewHandler(storefront.NewRouter(handler, sessions, cfg.HTTP.StaticDir, logger), "storefront"))

	server := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		logger.Info("starting storefront", "port", cfg.HTTP.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	done := make(chan struct{})
	go func() {
		checkoutService.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(cfg.HTTP.ShutdownTimeout):
		logger.Warn("gave up waiting for order notifications")
	}
}
