package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/md-rashed-zaman/apptslots/libs/auth"
	"github.com/md-rashed-zaman/apptslots/libs/db"
	"github.com/md-rashed-zaman/apptslots/libs/httpx"
	"github.com/md-rashed-zaman/apptslots/libs/kafkax"
	otelx "github.com/md-rashed-zaman/apptslots/libs/otel"
	"github.com/md-rashed-zaman/apptslots/libs/runtime"
	"github.com/md-rashed-zaman/apptslots/services/slot-service/internal/cache"
	"github.com/md-rashed-zaman/apptslots/services/slot-service/internal/config"
	"github.com/md-rashed-zaman/apptslots/services/slot-service/internal/gcal"
	"github.com/md-rashed-zaman/apptslots/services/slot-service/internal/handlers"
	"github.com/md-rashed-zaman/apptslots/services/slot-service/internal/slots"
	"github.com/md-rashed-zaman/apptslots/services/slot-service/internal/storage"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger := runtime.NewLogger("slot-service")
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	logger := runtime.NewLogger(cfg.ServiceName)

	ctx, stop := runtime.SignalContext(context.Background())
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(cfg.ServiceName))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	pool, err := db.Open(ctx, cfg.DatabaseURL, db.Options{})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := storage.ApplySchema(ctx, pool); err != nil {
		logger.Error("schema migration failed", "err", err)
		os.Exit(1)
	}

	readyChecks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL", "err", err)
			os.Exit(1)
		}
		rdb = redis.NewClient(opts)
		defer rdb.Close()
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}
	if cfg.Events.Transport == config.TransportKafka {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(cfg.Events.KafkaBrokers)})
	}

	var types slots.AppointmentTypeStore = storage.NewTypeRepository(pool)
	var typeCache *cache.TypeCache
	if cfg.Slots.TypeCacheSize > 0 {
		typeCache = cache.NewTypeCache(types, cfg.Slots.TypeCacheSize, cfg.Slots.TypeCacheTTL)
		types = typeCache
	}

	var calendars slots.WorkingCalendarProvider = storage.NewCalendarRepository(pool)
	var intervalCache *cache.IntervalCache
	if rdb != nil {
		intervalCache = cache.NewIntervalCache(calendars, rdb, cfg.Slots.IntervalCacheTTL, logger)
		calendars = intervalCache
	}

	meetings := slots.MeetingStores{storage.NewMeetingRepository(pool)}
	if cfg.GoogleEnabled() {
		store, err := gcal.New(ctx, gcal.Config{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RefreshToken: cfg.Google.RefreshToken,
		}, storage.NewStaffRepository(pool), logger)
		if err != nil {
			logger.Error("google calendar disabled", "err", err)
		} else {
			meetings = append(meetings, store)
			logger.Info("google calendar meetings enabled")
		}
	}

	engine := slots.NewEngine(logger, types, meetings, calendars, slots.WithTimeout(cfg.Slots.QueryTimeout))

	outboxRepo := storage.NewOutboxRepository()
	adminRepo := storage.NewAdminRepository(pool, outboxRepo)

	startInvalidation(ctx, cfg, logger, typeCache, intervalCache)
	startOutboxPublisher(ctx, cfg, logger, pool, outboxRepo)

	var jwks *auth.JWKSClient
	if cfg.Admin.JWKSURL != "" {
		jwks = auth.NewJWKSClient(cfg.Admin.JWKSURL, 5*time.Minute)
	}
	var evicter handlers.TypeEvicter
	if typeCache != nil {
		evicter = typeCache
	}

	router := runtime.NewBaseRouterWithReady(readyChecks...)
	handlers.Mount(router, handlers.RouterConfig{
		Slots:    handlers.NewSlotsHandler(engine, logger),
		Admin:    handlers.NewAdminHandler(adminRepo, evicter, logger),
		Verifier: auth.NewVerifier(cfg.Admin.JWTSecret, jwks),
		Limiter:  newLimiter(cfg, rdb, logger),
		CORS: httpx.CORSPolicy{
			AllowedOrigins: cfg.HTTP.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPut, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", httpx.RequestIDHeader},
			MaxAge:         10 * time.Minute,
		},
		Logger: logger,
	})
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           otelhttp.NewHandler(router, "slots"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	if err := startGrpcServer(ctx, cfg, logger, engine); err != nil {
		logger.Error("grpc server failed to start", "err", err)
	}

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

// newLimiter prefers a Redis fixed window shared by all replicas and falls back to a
// per-process window when Redis is unset or failing. A non-positive limit disables it.
func newLimiter(cfg config.Config, rdb *redis.Client, logger *slog.Logger) httpx.Limiter {
	limit := cfg.HTTP.RateLimitPerMinute
	if limit <= 0 {
		return nil
	}
	memory := httpx.NewMemoryRateLimiter(limit, time.Minute)
	if rdb == nil {
		return memory
	}
	return httpx.FallbackLimiter{
		Primary:   httpx.NewRedisRateLimiter(rdb, limit, time.Minute, "slot-service:ratelimit:"),
		Secondary: memory,
		Logger:    logger,
	}
}
