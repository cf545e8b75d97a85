package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/promoteros/admission/internal/admission"
	"github.com/promoteros/admission/internal/config"
	"github.com/promoteros/admission/internal/handlers"
	"github.com/promoteros/admission/internal/logger"
	"github.com/promoteros/admission/internal/middleware"
	"github.com/promoteros/admission/internal/telemetry"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = logger.Sync(zapLogger)
	}()

	zapLogger.Info("starting_gateway",
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.Bool("redis_store", cfg.RedisURL != ""),
		zap.String("policy_file", cfg.PolicyFile),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	// OpenTelemetry tracing, when configured
	if cfg.OTELEnabled {
		if cfg.OTELEndpoint == "" {
			zapLogger.Warn("otel_enabled_but_endpoint_not_configured")
		} else {
			tp, err := telemetry.InitTracer(context.Background(), "admission-gateway", cfg.OTELEndpoint)
			if err != nil {
				zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
			} else {
				zapLogger.Info("otel_tracer_initialized",
					zap.String("endpoint", cfg.OTELEndpoint),
				)
				defer func() {
					shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer shutdownCancel()
					if err := telemetry.Shutdown(shutdownCtx, tp); err != nil {
						zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
					}
				}()
			}
		}
	}

	// Quota store: Redis when configured for horizontal scaling, otherwise
	// the in-process sharded store with its background sweep.
	backgroundCtx, backgroundCancel := context.WithCancel(context.Background())
	defer backgroundCancel()

	var store admission.Store
	if cfg.RedisURL != "" {
		redisStore, err := admission.NewRedisStore(cfg.RedisURL)
		if err != nil {
			zapLogger.Fatal("failed_to_connect_to_redis", zap.Error(err))
		}
		defer func() {
			if err := redisStore.Close(); err != nil {
				zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
			}
		}()
		zapLogger.Info("connected_to_redis")
		store = redisStore
	} else {
		memStore := admission.NewMemoryStore(cfg.SweepInterval, zapLogger)
		go memStore.Start(backgroundCtx)
		zapLogger.Info("using_memory_quota_store",
			zap.Duration("sweep_interval", cfg.SweepInterval),
		)
		store = memStore
	}

	// Policy tiers: any problem here is a configuration error and the
	// process must not start.
	policies, err := config.LoadPolicies(cfg.PolicyFile)
	if err != nil {
		zapLogger.Fatal("failed_to_load_policies", zap.Error(err))
	}
	limiter, err := admission.NewRateLimiter(store, policies)
	if err != nil {
		zapLogger.Fatal("invalid_policy_configuration", zap.Error(err))
	}
	zapLogger.Info("policies_loaded", zap.Int("count", len(policies)))

	blocker := admission.NewIPBlocker()
	throttle := admission.NewThrottle()
	pipeline := middleware.NewPipeline(blocker, limiter, throttle, zapLogger)

	defaultLimit := mustLimit(pipeline, "default", zapLogger)
	authLimit := mustLimit(pipeline, "auth", zapLogger)
	authenticatedLimit := mustLimit(pipeline, "authenticated", zapLogger)

	// Router and middleware chain. Outermost first.
	r := mux.NewRouter()

	if cfg.OTELEnabled {
		r.Use(otelmux.Middleware("admission-gateway"))
	}
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))

	corsMW := cors.New(cors.Options{
		AllowedOrigins:   []string{cfg.FrontendURL},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           86400,
	})
	r.Use(corsMW.Handler)

	r.Use(middleware.GlobalBackstop(cfg.GlobalRate))
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize))
	r.Use(middleware.ContentType)
	r.Use(middleware.Timeout(middleware.DefaultRequestTimeout))
	r.Use(middleware.ErrorHandler(zapLogger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(zapLogger))

	// Operational routes, outside the admission pipeline
	healthChecker := handlers.NewHealthChecker(store)
	r.HandleFunc("/healthz", healthChecker.HealthCheck).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Admin API for the trust-and-safety process
	adminHandler := handlers.NewAdminHandler(blocker, limiter, cfg.AdminToken, zapLogger)
	adminRouter := r.PathPrefix("/admin").Subrouter()
	adminHandler.RegisterRoutes(adminRouter)

	// Business surface behind the admission pipeline
	apiRouter := r.PathPrefix("/api/v1").Subrouter()

	authHandler := handlers.NewAuthHandler(zapLogger)
	authRouter := apiRouter.PathPrefix("/auth").Subrouter()
	authRouter.Use(authLimit)
	authRouter.HandleFunc("/login", authHandler.Login).Methods("POST")

	artistHandler := handlers.NewArtistHandler(zapLogger)
	artistsRouter := apiRouter.PathPrefix("/artists").Subrouter()
	artistsRouter.Use(middleware.Auth(cfg.JWTSecret, zapLogger))
	artistsRouter.Use(authenticatedLimit)
	artistHandler.RegisterRoutes(artistsRouter)

	// Analysis is expensive: on top of the account quota, one run per
	// client per cooldown.
	analyzeThrottle := pipeline.ThrottleOperation("artist_analyze", 30*time.Second)
	artistsRouter.Handle("/{id}/analyze",
		analyzeThrottle(http.HandlerFunc(artistHandler.Analyze))).Methods("POST")

	// Everything else public gets the default tier
	publicRouter := apiRouter.PathPrefix("").Subrouter()
	publicRouter.Use(defaultLimit)
	publicRouter.HandleFunc("/status", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	srv := &http.Server{
		Addr:           ":" + cfg.ServerPort,
		Handler:        r,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		zapLogger.Info("server_starting",
			zap.String("port", cfg.ServerPort),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")
	backgroundCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Fatal("server_forced_to_shutdown", zap.Error(err))
	}

	zapLogger.Info("server_exited")
}

// mustLimit resolves a policy-bound middleware or stops the process. Policy
// names referenced here are part of the deployment contract.
func mustLimit(p *middleware.Pipeline, policyName string, zapLogger *zap.Logger) func(http.Handler) http.Handler {
	mw, err := p.Limit(policyName)
	if err != nil {
		zapLogger.Fatal("unknown_policy_in_route_configuration",
			zap.String("policy", policyName),
			zap.Error(err),
		)
	}
	return mw
}
