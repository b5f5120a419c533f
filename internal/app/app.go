package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/checkout"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/pricing"
	"github.com/xenking/storefront/internal/domain/session"
	"github.com/xenking/storefront/internal/events/kafka"
	"github.com/xenking/storefront/internal/handler"
	"github.com/xenking/storefront/internal/payment"
	"github.com/xenking/storefront/internal/storage/postgres"
	redisstore "github.com/xenking/storefront/internal/storage/redis"
	"github.com/xenking/storefront/pkg/health"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

// Telemetry provides the OpenTelemetry providers; *app.Telemetry from
// go-faster/sdk satisfies it.
type Telemetry interface {
	TracerProvider() trace.TracerProvider
	MeterProvider() metric.MeterProvider
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("snapshots", cfg.Snapshots.Backend),
	)

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, postgres.PoolConfig{
		MaxConns: cfg.DB.MaxConns,
		MinConns: cfg.DB.MinConns,
	})
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc", time.Second, health.GCMaxPauseCheck(time.Second))

	// Repositories.
	productRepo := postgres.NewProductRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)

	store, closeStore, err := newSnapshotStore(ctx, cfg, pool, healthSvc)
	if err != nil {
		return err
	}
	defer closeStore()

	// Payment provider behind a circuit breaker.
	breaker := payment.NewBreaker(
		payment.NewSimulated(payment.SimulatedConfig{
			Latency:     cfg.Payment.Latency,
			SuccessRate: cfg.Payment.SuccessRate,
		}),
		payment.BreakerConfig{
			ConsecutiveFailures: cfg.Payment.Breaker.ConsecutiveFailures,
			OpenTimeout:         cfg.Payment.Breaker.OpenTimeout,
		},
		lg.Named("payment"),
	)
	healthSvc.Register(health.Readiness, health.Check{
		Name:     "payment-breaker",
		Timeout:  time.Second,
		Fn:       health.BreakerCheck(breaker.State),
		Optional: true,
	})

	// Order confirmation events.
	var publisher order.Publisher = kafka.Nop{}
	if len(cfg.Kafka.Brokers) > 0 {
		p := kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer func() {
			if err := p.Close(); err != nil {
				lg.Warn("Close kafka publisher", zap.Error(err))
			}
		}()
		publisher = p
		lg.Info("Publishing order events",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic),
		)
	}

	// Domain services.
	policy, err := cfg.Checkout.Policy()
	if err != nil {
		return errors.Wrap(err, "checkout policy")
	}
	payments, err := checkout.NewService(breaker, orderRepo, checkout.Options{
		Policy:         policy,
		Publisher:      publisher,
		MeterProvider:  m.MeterProvider(),
		TracerProvider: m.TracerProvider(),
		PaymentTimeout: cfg.Payment.Timeout,
	})
	if err != nil {
		return errors.Wrap(err, "create checkout service")
	}
	sessions := session.NewService(
		productRepo,
		orderRepo,
		pricing.NewEngine(decimal.NewFromInt(cfg.Pricing.UnitsPerAreaUnit)),
		payments,
		store,
		session.Config{MaxQuantity: cfg.Sessions.MaxQuantity},
	)
	sessions.StartJanitor(ctx, cfg.Sessions.Idle, 0)

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Router: health endpoints + JSON API.
	h := handler.NewHandler(
		handler.HandlerConfig{ImageBaseURL: cfg.ImageBaseURL},
		productRepo,
		sessions,
	)

	r := chi.NewRouter()
	r.Get("/livez", healthSvc.LiveEndpoint)
	r.Get("/readyz", healthSvc.ReadyEndpoint)
	r.Group(func(r chi.Router) {
		r.Use(
			middleware.RequestID,
			httpmiddleware.EchoRequestID(),
			middleware.RealIP,
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Session(httpmiddleware.SessionConfig{
				CookieMaxAge: cfg.Sessions.CookieMaxAge,
				Secure:       cfg.Sessions.SecureCookies,
			}),
			httpmiddleware.LogRequests(),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
		)
		h.Routes(r, httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
			Max:     cfg.RateLimit.Pay.Max,
			Window:  cfg.RateLimit.Pay.Window,
			KeyFunc: httpmiddleware.SessionKeyFunc,
		}))
	})

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      cfg.Payment.Timeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(r,
			httpmiddleware.Recovery(),
			cors.New(cors.Options{
				AllowedOrigins:   cfg.CORS.Origins,
				AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
				AllowedHeaders:   []string{"Content-Type", httpmiddleware.SessionHeader},
				ExposedHeaders:   []string{httpmiddleware.SessionHeader, "Location", "Retry-After"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}).Handler,
			httpmiddleware.Instrument("storefront-api", m.TracerProvider(), m.MeterProvider()),
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

// newSnapshotStore builds the configured session snapshot backend and
// registers its readiness check. The returned func releases it.
func newSnapshotStore(ctx context.Context, cfg *Config, pool *pgxpool.Pool, h *health.Health) (session.SnapshotStore, func(), error) {
	lg := zctx.From(ctx)

	switch cfg.Snapshots.Backend {
	case "redis":
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		store := redisstore.NewSnapshotStore(client, cfg.Snapshots.TTL)
		if err := store.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, nil, errors.Wrap(err, "connect redis")
		}
		h.AddReadinessCheck("redis", 2*time.Second, health.PingCheck(store))
		return store, func() {
			if err := client.Close(); err != nil {
				lg.Warn("Close redis client", zap.Error(err))
			}
		}, nil
	default:
		store := postgres.NewSnapshotStore(pool)
		if cfg.Snapshots.PruneAfter > 0 {
			go pruneSnapshots(ctx, store, cfg.Snapshots.PruneAfter)
		}
		return store, func() {}, nil
	}
}

// pruneSnapshots deletes snapshots untouched for maxAge, once an hour until
// ctx is cancelled.
func pruneSnapshots(ctx context.Context, store *postgres.SnapshotStore, maxAge time.Duration) {
	lg := zctx.From(ctx)
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.DeleteOlderThan(ctx, maxAge)
			if err != nil {
				lg.Warn("Prune session snapshots", zap.Error(err))
				continue
			}
			if n > 0 {
				lg.Info("Pruned session snapshots", zap.Int64("count", n))
			}
		}
	}
}
