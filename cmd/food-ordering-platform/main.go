package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aryankhatri/food-ordering-platform/internal/api/handlers"
	"github.com/aryankhatri/food-ordering-platform/internal/api/middleware"
	"github.com/aryankhatri/food-ordering-platform/internal/cache"
	"github.com/aryankhatri/food-ordering-platform/internal/config"
	"github.com/aryankhatri/food-ordering-platform/internal/health"
	"github.com/aryankhatri/food-ordering-platform/internal/metrics"
	repository "github.com/aryankhatri/food-ordering-platform/internal/repositories"
	service "github.com/aryankhatri/food-ordering-platform/internal/services"
	"github.com/aryankhatri/food-ordering-platform/pkg/sendgrid"
	"github.com/aryankhatri/food-ordering-platform/pkg/stripe"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func main() {

	// Logger setup
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load config
	cfg := config.MustLoad()

	// Database setup
	repos, err := repository.New(cfg)
	if err != nil {
		slog.Error("Error accessing the database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	defer func() {
		if err := repos.Close(); err != nil {
			slog.Error("Error closing database connection", slog.String("error", err.Error()))
		}
	}()

	// Redis setup
	redisClient, err := repository.NewRedisClient(cfg)
	if err != nil {
		slog.Error("Error accessing the redis instance", slog.String("error", err.Error()))
		os.Exit(1)
	}

	cartCache := cache.NewRedisCache(redisClient, &cfg.CacheConfig)
	defer cartCache.Close()

	// Tracing setup (optional)
	if cfg.Otel.Enabled {

		shutdownTracing, err := initTracing(cfg)
		if err != nil {
			slog.Error("Error initializing tracing", slog.String("error", err.Error()))
			os.Exit(1)
		}

		defer shutdownTracing()
	}

	jwtKey := []byte(cfg.Security.JWTKey)
	stripeClient := stripe.NewStripeClient(cfg.Stripe.APIKey, cfg.Stripe.WebhookSecret)
	emailService := sendgrid.NewEmailService(cfg.SendGrid.APIKey, cfg.SendGrid.FromEmail, cfg.SendGrid.FromName)

	resolver := service.NewCartResolver(repos.Cart, repos.Catalog, cartCache, cfg.Cart.GuestCartTTL)
	cartService := service.NewCartService(repos.Cart, repos.Catalog, cartCache, resolver, cfg.Cart.GuestCartTTL)
	mergeService := service.NewMergeService(repos.Cart, repos.Catalog, cartCache, cartService)
	checkoutService := service.NewCheckoutService(
		repos.Cart, repos.Catalog, repos.Order, repos.Payment, repos.Settlement,
		cartCache, stripeClient, emailService, cartService, cfg.Cart)

	cartHandler := handlers.NewCartHandler(cartService, mergeService)
	checkoutHandler := handlers.NewCheckoutHandler(checkoutService)

	actorMiddleware := middleware.NewActorMiddleware(jwtKey)
	rateLimiter := middleware.NewRateLimitMiddleware(repository.NewRateLimitRepo(redisClient, &cfg.RateConfig))

	healthHandler, err := health.NewHealthHandler(cfg)
	if err != nil {
		slog.Error("Error creating health handler", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("storage initialized", slog.String("env", cfg.Env), slog.String("version", "1.0.0"))

	// Setup router
	routerMux := http.NewServeMux()

	withActor := func(h http.HandlerFunc) http.HandlerFunc {
		return actorMiddleware.Resolve(h)
	}
	authed := func(h http.HandlerFunc) http.HandlerFunc {
		return actorMiddleware.Resolve(actorMiddleware.RequireAuth(h))
	}
	limited := func(h http.HandlerFunc) http.HandlerFunc {
		return rateLimiter.Limit(h)
	}

	routerMux.HandleFunc("GET /api/v1/cart", withActor(cartHandler.GetCart()))
	routerMux.HandleFunc("POST /api/v1/cart/items", limited(withActor(cartHandler.AddItem())))
	routerMux.HandleFunc("PUT /api/v1/cart/items", limited(withActor(cartHandler.UpdateQuantity())))
	routerMux.HandleFunc("DELETE /api/v1/cart", limited(withActor(cartHandler.ClearCart())))
	routerMux.HandleFunc("POST /api/v1/cart/merge", limited(authed(cartHandler.MergeCart())))
	routerMux.HandleFunc("POST /api/v1/checkout/confirm", limited(authed(checkoutHandler.Confirm())))
	routerMux.HandleFunc("POST /api/v1/checkout/webhook", checkoutHandler.Webhook())
	routerMux.Handle("GET /health", healthHandler.Handler())
	routerMux.Handle("GET /metrics", metrics.Handler())

	// Middleware chaining
	var handler http.Handler = routerMux
	handler = metrics.Middleware(handler)
	handler = middleware.Logging(handler)

	if cfg.Otel.Enabled {
		handler = otelhttp.NewHandler(handler, "food-ordering-platform")
	}

	// Setup http server
	server := http.Server{
		Addr:    cfg.Addr,
		Handler: handler,
	}

	slog.Info("Server is starting...", slog.String("address", cfg.Addr))

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("Failed to start server", slog.Any("error", err.Error()))
		}
	}()

	<-done

	slog.Warn("Shutdown signal received. Preparing to stop the server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown encountered an issue", slog.String("error", err.Error()))
	} else {
		slog.Info("Server shut down gracefully. All connections closed.")
	}

}

func initTracing(cfg *config.Config) (func(), error) {

	ctx := context.Background()

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.Otel.Endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(provider)

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := provider.Shutdown(shutdownCtx); err != nil {
			slog.Error("Error shutting down tracer provider", slog.String("error", err.Error()))
		}
	}, nil
}
