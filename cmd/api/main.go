package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/northcart/commerce/internal/di"
	"github.com/northcart/commerce/internal/handlers"
	"github.com/northcart/commerce/internal/notifications"
	"github.com/northcart/commerce/internal/platform/auth"
	"github.com/northcart/commerce/internal/platform/config"
	pfirestore "github.com/northcart/commerce/internal/platform/firestore"
	"github.com/northcart/commerce/internal/platform/idempotency"
	"github.com/northcart/commerce/internal/platform/observability"
	firestoreRepo "github.com/northcart/commerce/internal/repositories/firestore"
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
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	firestoreClient, err := firestoreProvider.Client(ctx)
	if err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := firestoreProvider.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	registry, err := firestoreRepo.NewRegistry(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise repositories", zap.Error(err))
	}

	options := di.Options{
		Logger:         zapEventLogger(logger.Named("commerce")),
		DefaultTaxRate: cfg.Pricing.DefaultTaxRate,
		ShippingMethods: []di.ShippingMethod{
			{SystemName: cfg.Pricing.FlatShippingMethodName, Rate: cfg.Pricing.FlatShippingRate},
		},
	}

	if cfg.PubSub.ProjectID != "" {
		pubsubClient, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			logger.Fatal("failed to initialise pubsub client", zap.Error(err))
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}()

		topic := pubsubClient.Topic(cfg.PubSub.EventsTopic)
		defer topic.Stop()

		publisher, err := notifications.NewPubSubPublisher(topic)
		if err != nil {
			logger.Fatal("failed to initialise order publisher", zap.Error(err))
		}
		options.Notifier = publisher
		options.Events = publisher
	} else {
		logger.Warn("pubsub project not configured; order notifications are disabled")
	}

	container, err := di.NewContainer(ctx, cfg, registry, options)
	if err != nil {
		logger.Fatal("failed to build service container", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := container.Close(closeCtx); err != nil {
			logger.Warn("container close error", zap.Error(err))
		}
	}()

	authenticator := buildAuthenticator(logger.Named("auth"), cfg)
	hmacMiddleware := buildInternalHMACMiddleware(logger.Named("auth"), cfg)

	idempotencyStore := idempotency.NewFirestoreStore(firestoreClient)
	idempotencyMiddleware := idempotency.Middleware(
		idempotencyStore,
		idempotency.WithLogger(observability.NewPrintfAdapter(logger.Named("idempotency"))),
	)

	checkoutHandlers, err := handlers.NewCheckoutHandlers(handlers.CheckoutDeps{
		Checkout:        container.Checkout,
		Carts:           registry.Carts(),
		Customers:       registry.Customers(),
		PlacementLimit:  5,
		PlacementWindow: time.Minute,
	})
	if err != nil {
		logger.Fatal("failed to build checkout handlers", zap.Error(err))
	}
	orderHandlers, err := handlers.NewOrderHandlers(container.Orders)
	if err != nil {
		logger.Fatal("failed to build order handlers", zap.Error(err))
	}
	adminHandlers, err := handlers.NewAdminOrderHandlers(container.Orders)
	if err != nil {
		logger.Fatal("failed to build admin handlers", zap.Error(err))
	}
	internalHandlers, err := handlers.NewInternalHandlers(container.Orders)
	if err != nil {
		logger.Fatal("failed to build internal handlers", zap.Error(err))
	}

	projectID := strings.TrimSpace(cfg.Firestore.ProjectID)
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(projectID),
		idempotencyMiddleware,
	}

	opts := []handlers.Option{
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(handlers.NewHealthHandlers(registry.Health())),
		handlers.WithCheckoutRoutes(checkoutHandlers.Register),
		handlers.WithOrderRoutes(orderHandlers.Register),
		handlers.WithAdminRoutes(adminHandlers.Register),
		handlers.WithInternalRoutes(internalHandlers.Register),
	}
	if authenticator != nil {
		opts = append(opts,
			handlers.WithCheckoutMiddlewares(optionalAuth(authenticator)),
			handlers.WithOrderMiddlewares(authenticator.RequireAuth()),
			handlers.WithAdminMiddlewares(authenticator.RequireAuth(auth.RoleStaff, auth.RoleAdmin)),
		)
	}
	if hmacMiddleware != nil {
		opts = append(opts, handlers.WithInternalMiddlewares(hmacMiddleware))
	}
	if secret := strings.TrimSpace(cfg.Payments.StripeWebhookSecret); secret != "" {
		webhookHandlers, err := handlers.NewStripeWebhookHandlers(container.Orders, secret)
		if err != nil {
			logger.Fatal("failed to build stripe webhook handlers", zap.Error(err))
		}
		opts = append(opts, handlers.WithWebhookRoutes(webhookHandlers.Register))
	} else {
		logger.Warn("stripe webhook secret not configured; webhook callbacks are disabled")
	}

	router := handlers.NewRouter(opts...)
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
		serverLogger.Info("commerce api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// zapEventLogger adapts the zap logger to the event-and-fields hook the
// services accept.
func zapEventLogger(logger *zap.Logger) func(ctx context.Context, event string, fields map[string]any) {
	return func(_ context.Context, event string, fields map[string]any) {
		zFields := make([]zap.Field, 0, len(fields)+1)
		zFields = append(zFields, zap.String("event", event))
		for k, v := range fields {
			zFields = append(zFields, zap.Any(k, v))
		}
		logger.Debug("service event", zFields...)
	}
}

func buildAuthenticator(logger *zap.Logger, cfg config.Config) *auth.Authenticator {
	secret := strings.TrimSpace(cfg.Auth.TokenSecret)
	if secret == "" {
		logger.Warn("auth token secret not configured; authenticated routes will reject requests")
		return nil
	}

	verifier, err := auth.NewJWTVerifier(auth.JWTVerifierConfig{
		Secret: []byte(secret),
		Issuer: cfg.Auth.TokenIssuer,
	})
	if err != nil {
		logger.Fatal("failed to build token verifier", zap.Error(err))
	}
	return auth.NewAuthenticator(verifier)
}

func buildInternalHMACMiddleware(logger *zap.Logger, cfg config.Config) func(http.Handler) http.Handler {
	secret := strings.TrimSpace(cfg.Auth.InternalHMACSecret)
	if secret == "" {
		logger.Warn("internal hmac secret not configured; internal routes will reject requests")
		return nil
	}

	provider := auth.SecretProviderFunc(func(context.Context, string) (string, error) {
		return secret, nil
	})
	validator := auth.NewHMACValidator(provider, auth.NewInMemoryNonceStore(),
		auth.WithHMACLogger(observability.NewPrintfAdapter(logger)),
	)
	return validator.RequireHMAC("internal")
}

// optionalAuth resolves the identity when a bearer token is present but lets
// anonymous requests through, for guest checkout.
func optionalAuth(authenticator *auth.Authenticator) func(http.Handler) http.Handler {
	guarded := authenticator.RequireAuth()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.TrimSpace(r.Header.Get("Authorization")) == "" {
				next.ServeHTTP(w, r)
				return
			}
			guarded(next).ServeHTTP(w, r)
		})
	}
}
