package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/thriftx/storefront/internal/domain/auth"
	"github.com/thriftx/storefront/internal/domain/cart"
	"github.com/thriftx/storefront/internal/domain/coupon"
	"github.com/thriftx/storefront/internal/domain/order"
	"github.com/thriftx/storefront/internal/domain/product"
	"github.com/thriftx/storefront/internal/domain/report"
	"github.com/thriftx/storefront/internal/handler"
	"github.com/thriftx/storefront/internal/storage/postgres"
	"github.com/thriftx/storefront/internal/storage/rediscache"
	"github.com/thriftx/storefront/pkg/health"
	"github.com/thriftx/storefront/pkg/httpmiddleware"
)

const serviceName = "thriftx-api"

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	// Optional Redis: coupon cache and a rate limit budget shared by every
	// replica. Without it both fall back to in-process behaviour.
	var (
		couponCache coupon.Cache
		limiter     httpmiddleware.Limiter
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return errors.Wrap(err, "parse redis url")
		}
		rdb := redis.NewClient(opts)
		defer func() { _ = rdb.Close() }()

		if err := redisotel.InstrumentTracing(rdb, redisotel.WithTracerProvider(m.TracerProvider())); err != nil {
			return errors.Wrap(err, "instrument redis tracing")
		}
		if err := redisotel.InstrumentMetrics(rdb, redisotel.WithMeterProvider(m.MeterProvider())); err != nil {
			return errors.Wrap(err, "instrument redis metrics")
		}

		couponCache = rediscache.NewCouponCache(rdb, cfg.CouponCache.TTL)
		limiter = httpmiddleware.NewRedisLimiter(rdb, "thriftx:ratelimit:", cfg.RateLimit.Max, cfg.RateLimit.Window)
		healthSvc.AddReadinessCheck("redis", 2*time.Second, health.RedisCheck(rdb), health.FailureThreshold(5))
		lg.Info("Redis enabled", zap.Duration("coupon_ttl", cfg.CouponCache.TTL))
	} else {
		mem := httpmiddleware.NewMemoryLimiter(cfg.RateLimit.Max, cfg.RateLimit.Window)
		mem.Start(ctx)
		limiter = mem
	}

	healthSvc.Start(ctx, cfg.Health.Interval)
	healthSvc.SetReady(true)

	// Repositories.
	productRepo := postgres.NewProductRepository(pool)
	couponRepo := postgres.NewCouponRepository(pool)
	cartRepo := postgres.NewCartRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	fallbackRepo := postgres.NewFallbackRepository(pool)
	apikeyRepo := postgres.NewAPIKeyRepository(pool)

	// Domain services.
	rules := cfg.Pricing.Rules()
	directory := coupon.NewDirectory(couponRepo, couponCache)
	orderService, err := order.NewService(
		orderRepo, cartRepo, productRepo, directory, fallbackRepo, rules,
		m.MeterProvider().Meter("thriftx"),
	)
	if err != nil {
		return errors.Wrap(err, "create order service")
	}

	h := handler.NewHandler(
		handler.HandlerConfig{ImageBaseURL: cfg.ImageBaseURL},
		handler.Services{
			Products: product.NewService(productRepo),
			Carts:    cart.NewService(cartRepo, productRepo, directory, fallbackRepo, rules),
			Coupons:  coupon.NewService(couponRepo, directory),
			Orders:   orderService,
			Reports:  report.NewService(orderRepo, productRepo),
			Auth:     auth.NewAuthenticator(apikeyRepo, []byte(cfg.APIKeyPepper)),
		},
	)

	// Router: health endpoints + API routes on one server.
	router := chi.NewRouter()
	router.Get("/livez", healthSvc.LiveEndpoint)
	router.Get("/readyz", healthSvc.ReadyEndpoint)
	h.Routes(router)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(router,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.Identify(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.RateLimit(limiter, httpmiddleware.ShopperKey),
			httpmiddleware.RouteContext(),
			httpmiddleware.Instrument(serviceName, m),
			httpmiddleware.LogRequests(),
			httpmiddleware.Labeler(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
