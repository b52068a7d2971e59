package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"geotourist/internal/audit"
	"geotourist/internal/auth"
	"geotourist/internal/config"
	"geotourist/internal/datastore"
	"geotourist/internal/datastore/retry"
	"geotourist/internal/observability/logging"
	"geotourist/internal/observability/metrics"
	"geotourist/internal/points/application"
	pointsrepo "geotourist/internal/points/infrastructure/postgres"
	pointshttp "geotourist/internal/points/interfaces/http"
	"geotourist/internal/points/query"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		logger.Fatal().Err(err).Msg("config error")
	}
	if cfg.JWTSecret == "" {
		logger.Fatal().Msg("AUTH_JWT_SECRET is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pools, err := datastore.OpenPools(ctx, datastore.PoolConfig{
		DatabaseURL:     cfg.DatabaseURL,
		ReadSize:        cfg.ReadPoolSize,
		WriteSize:       cfg.WritePoolSize,
		FollowerReads:   cfg.FollowerReads,
		ConnectTimeout:  cfg.ConnectTimeout,
		ApplicationName: "geotourist",
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("db open error")
	}
	defer pools.Close()

	metrics.Init(map[string]*pgxpool.Pool{"read": pools.Read, "write": pools.Write}, logger)

	exec, err := datastore.NewPoolExecutor(pools,
		datastore.WithPolicy(retry.NewPolicy(cfg.MaxRetries, nil)),
		datastore.WithStatementTimeout(cfg.StatementTimeout),
		datastore.WithLogger(logger),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("executor error")
	}

	strategy, err := query.ParseStrategy(cfg.Strategy)
	if err != nil {
		logger.Fatal().Err(err).Msg("strategy error")
	}
	builder, err := query.NewBuilder(strategy,
		query.WithCategoryPrefix(cfg.CategoryPrefix),
		query.WithRadius(cfg.RadiusMeters),
		query.WithLimit(cfg.ResultLimit),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("query builder error")
	}

	pointRepo, err := pointsrepo.NewPointRepository(exec, builder)
	if err != nil {
		logger.Fatal().Err(err).Msg("point repository error")
	}
	locationRepo, err := pointsrepo.NewLocationRepository(exec)
	if err != nil {
		logger.Fatal().Err(err).Msg("location repository error")
	}
	featureService, err := application.NewFeatureService(pointRepo, locationRepo, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("feature service error")
	}
	auditRepo, err := audit.NewRepository(exec)
	if err != nil {
		logger.Fatal().Err(err).Msg("audit repository error")
	}
	if err := auditRepo.Ensure(ctx); err != nil {
		logger.Fatal().Err(err).Msg("audit schema error")
	}
	pointsHandler, err := pointshttp.NewHandler(featureService, auditRepo, logger,
		pointshttp.WithRatingRateLimit(cfg.RatingRateLimit, time.Minute),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("points handler error")
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(logging.AccessLog(logger))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := pools.Ping(r.Context()); err != nil {
			http.Error(w, "db unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Group(func(r chi.Router) {
		r.Use(middleware.Throttle(cfg.Workers))
		r.Use(authMiddleware.Wrap)
		pointsHandler.Routes(r)
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("http shutdown error")
		}
	}()

	logger.Info().
		Str("addr", cfg.HTTPAddr).
		Str("strategy", string(strategy)).
		Int("workers", cfg.Workers).
		Msg("http listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("http server error")
	}
}
