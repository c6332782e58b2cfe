package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	domain "github.com/adomherbals/api/internal/domain"
	"github.com/adomherbals/api/internal/events"
	"github.com/adomherbals/api/internal/handlers"
	"github.com/adomherbals/api/internal/payments"
	"github.com/adomherbals/api/internal/platform/config"
	"github.com/adomherbals/api/internal/platform/idempotency"
	"github.com/adomherbals/api/internal/platform/identity"
	"github.com/adomherbals/api/internal/platform/observability"
	"github.com/adomherbals/api/internal/repositories/memory"
	pgrepo "github.com/adomherbals/api/internal/repositories/postgres"
	"github.com/adomherbals/api/internal/services"
)

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	cfg, err := config.Load(ctx)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	if err := pgrepo.Migrate(cfg.Database.DSN); err != nil {
		logger.Fatal("failed to apply database migrations", zap.Error(err))
	}

	pool, err := pgrepo.Connect(ctx, cfg.Database.DSN)
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	orderRepo := pgrepo.NewOrderRepository(pool)
	addressRepo := pgrepo.NewAddressRepository(pool)
	cartRepo := memory.NewCartRepository()
	profileRepo := memory.NewProfileRepository()
	catalog := memory.NewCatalog()
	seedCatalog(catalog)

	var publisher events.Publisher = events.NoopPublisher{}
	var amqpConn *amqp.Connection
	if url := strings.TrimSpace(cfg.Events.AMQPURL); url != "" {
		amqpConn, err = amqp.Dial(url)
		if err != nil {
			logger.Fatal("failed to connect to message broker", zap.Error(err))
		}
		defer amqpConn.Close()

		amqpPublisher, err := events.NewAMQPPublisher(amqpConn)
		if err != nil {
			logger.Fatal("failed to initialise event publisher", zap.Error(err))
		}
		publisher = amqpPublisher
	} else {
		logger.Info("event publishing disabled; no broker configured")
	}

	paymentsLogger := logger.Named("payments")
	paymentsHTTPClient := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   30 * time.Second,
	}
	paystackProvider, err := payments.NewPaystackProvider(payments.PaystackProviderConfig{
		SecretKey:  cfg.Payments.PaystackSecret,
		BaseURL:    cfg.Payments.PaystackBaseURL,
		HTTPClient: paymentsHTTPClient,
		Logger:     svcLogger(paymentsLogger),
	})
	if err != nil {
		logger.Fatal("failed to initialise paystack provider", zap.Error(err))
	}

	providers := map[string]payments.Provider{
		"paystack": paystackProvider,
	}
	managerOpts := []payments.ManagerOption{}
	if cfg.Payments.PayPalClientID != "" && cfg.Payments.PayPalSecret != "" {
		paypalProvider, err := payments.NewPayPalProvider(payments.PayPalProviderConfig{
			ClientID:   cfg.Payments.PayPalClientID,
			Secret:     cfg.Payments.PayPalSecret,
			BaseURL:    cfg.Payments.PayPalBaseURL,
			HTTPClient: paymentsHTTPClient,
		})
		if err != nil {
			logger.Fatal("failed to initialise paypal provider", zap.Error(err))
		}
		providers["paypal"] = paypalProvider
		managerOpts = append(managerOpts, payments.WithMethodRoutes(map[string]string{
			"paypal": "paypal",
		}))
	}
	paymentManager, err := payments.NewManager(providers, managerOpts...)
	if err != nil {
		logger.Fatal("failed to initialise payment manager", zap.Error(err))
	}

	orderService, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:    orderRepo,
		Addresses: addressRepo,
		Catalog:   catalog,
		Publisher: publisher,
		TaxRate:   cfg.Checkout.TaxRate,
		Logger:    svcLogger(logger.Named("orders")),
	})
	if err != nil {
		logger.Fatal("failed to initialise order service", zap.Error(err))
	}

	shippingCalculator := services.NewShippingCalculator(services.ShippingRates{
		BaseRate:  cfg.Shipping.BaseRate,
		PerKmRate: cfg.Shipping.PerKmRate,
		PerKgRate: cfg.Shipping.PerKgRate,
	})

	checkoutService, err := services.NewCheckoutService(services.CheckoutServiceDeps{
		Carts:                     cartRepo,
		Profiles:                  profileRepo,
		Shipping:                  shippingCalculator,
		Orders:                    orderService,
		Payments:                  paymentManager,
		Logger:                    svcLogger(logger.Named("checkout")),
		CallbackURL:               cfg.Payments.CallbackURL,
		UnsupportedRegionFallback: cfg.Checkout.UnsupportedRegionQuotes,
	})
	if err != nil {
		logger.Fatal("failed to initialise checkout service", zap.Error(err))
	}

	verificationService, err := services.NewVerificationService(services.VerificationServiceDeps{
		Orders:   orderService,
		Carts:    cartRepo,
		Payments: paymentManager,
		Logger:   svcLogger(logger.Named("verification")),
	})
	if err != nil {
		logger.Fatal("failed to initialise verification service", zap.Error(err))
	}

	idempotencyStore := idempotency.NewMemoryStore()
	idempotencyMiddleware := idempotency.Middleware(
		idempotencyStore,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
		idempotency.WithLogger(observability.NewPrintfAdapter(logger.Named("idempotency"))),
	)

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	var cleanupWG sync.WaitGroup
	var cleanupTicker *time.Ticker
	if cfg.Idempotency.CleanupInterval > 0 {
		cleanupTicker = time.NewTicker(cfg.Idempotency.CleanupInterval)
		cleanupWG.Add(1)
		go func() {
			defer cleanupWG.Done()
			cleanupLogger := logger.Named("idempotency")
			for {
				select {
				case <-cleanupTicker.C:
					runCtx, cancel := context.WithTimeout(cleanupCtx, time.Minute)
					removed, err := idempotencyStore.CleanupExpired(runCtx, time.Now().UTC(), cfg.Idempotency.CleanupBatchSize)
					cancel()
					if err != nil {
						cleanupLogger.Error("idempotency cleanup error", zap.Error(err))
						continue
					}
					if removed > 0 {
						cleanupLogger.Info("idempotency cleanup removed records", zap.Int("count", removed))
					}
				case <-cleanupCtx.Done():
					return
				}
			}
		}()
	}

	healthOpts := []handlers.HealthOption{
		handlers.WithHealthVersion(buildVersion()),
		handlers.WithReadinessCheck("postgres", func(ctx context.Context) error {
			pingCtx, cancel := context.WithTimeout(ctx, 1500*time.Millisecond)
			defer cancel()
			return pool.Ping(pingCtx)
		}),
	}
	if amqpConn != nil {
		conn := amqpConn
		healthOpts = append(healthOpts, handlers.WithReadinessCheck("rabbitmq", func(context.Context) error {
			if conn.IsClosed() {
				return errors.New("connection closed")
			}
			return nil
		}))
	}
	healthHandlers := handlers.NewHealthHandlers(healthOpts...)

	shippingHandlers := handlers.NewShippingHandlers(shippingCalculator)
	checkoutHandlers := handlers.NewCheckoutHandlers(checkoutService,
		handlers.WithSubmitMiddlewares(idempotencyMiddleware),
	)
	paymentHandlers := handlers.NewPaymentHandlers(verificationService,
		handlers.WithVerifyRateLimit(cfg.RateLimits.VerifyPerWindow, cfg.RateLimits.VerifyWindow),
	)
	orderHandlers := handlers.NewOrderHandlers(orderService)

	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(),
		observability.RecoveryMiddleware(logger.Named("http")),
		identity.Middleware(),
		observability.RequestLoggerMiddleware(),
	}

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithShippingRoutes(shippingHandlers.Routes),
		handlers.WithCheckoutRoutes(checkoutHandlers.Routes),
		handlers.WithPaymentRoutes(paymentHandlers.Routes),
		handlers.WithOrderRoutes(orderHandlers.Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("adom herbals api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	if cleanupTicker != nil {
		cleanupTicker.Stop()
	}
	cleanupCancel()
	cleanupWG.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func buildVersion() string {
	if version := strings.TrimSpace(os.Getenv("API_BUILD_VERSION")); version != "" {
		return version
	}
	return "dev"
}

// svcLogger adapts a zap logger to the map-based logging contract used by
// the service layer.
func svcLogger(logger *zap.Logger) func(ctx context.Context, event string, fields map[string]any) {
	return func(_ context.Context, event string, fields map[string]any) {
		zFields := make([]zap.Field, 0, len(fields)+1)
		zFields = append(zFields, zap.String("event", event))
		for k, v := range fields {
			zFields = append(zFields, zap.Any(k, v))
		}
		logger.Debug("service log", zFields...)
	}
}

// seedCatalog loads the storefront product table. Prices are GHS and weights
// are shipping kilograms per unit.
func seedCatalog(catalog *memory.Catalog) {
	items := []domain.CartItem{
		{ProductID: "prd-moringa-caps", Name: "Moringa Capsules 120ct", UnitPrice: 45.00, UnitWeightKg: 0.25},
		{ProductID: "prd-neem-powder", Name: "Neem Leaf Powder 250g", UnitPrice: 30.00, UnitWeightKg: 0.30},
		{ProductID: "prd-hibiscus-tea", Name: "Hibiscus Tea 40 bags", UnitPrice: 25.00, UnitWeightKg: 0.15},
		{ProductID: "prd-shea-butter", Name: "Raw Shea Butter 500g", UnitPrice: 38.00, UnitWeightKg: 0.55},
		{ProductID: "prd-prekese-syrup", Name: "Prekese Syrup 350ml", UnitPrice: 52.00, UnitWeightKg: 0.65},
		{ProductID: "prd-dandelion-root", Name: "Dandelion Root Blend 200g", UnitPrice: 42.00, UnitWeightKg: 0.25},
		{ProductID: "prd-turmeric-mix", Name: "Turmeric Ginger Mix 300g", UnitPrice: 35.00, UnitWeightKg: 0.35},
	}
	for _, item := range items {
		catalog.Put(item)
	}
}
