package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"treadline/cart"
	"treadline/cartapi"
	"treadline/checkout"
	"treadline/config"
	"treadline/db"
	"treadline/globals"
	"treadline/mq"
	"treadline/orderapi"
	"treadline/orders"
	"treadline/pay"
	"treadline/ratelim"
	"treadline/rdx"
	"treadline/reviewapi"
	"treadline/reviews"
	"treadline/routes"
	"treadline/selection"
)

// securityHeaders applies a set of recommended HTTP security headers.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// XSS, content sniffing, framing
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "frame-ancestors 'none'")
		// HSTS (must be on HTTPS)
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		// cart and checkout responses are per user
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// loggingMiddleware logs each request method, path, remote address, status and duration.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		zap.L().Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote", r.RemoteAddr),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// Index is a simple health check handler.
func Index(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	fmt.Fprint(w, "200")
}

func newLogger(cfg config.Config) *zap.Logger {
	build := zap.NewProduction
	if cfg.IsDevelopment() {
		build = zap.NewDevelopment
	}
	logger, err := build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	return logger
}

func main() {
	cfg := config.Load()

	logger := newLogger(cfg)
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	globals.JwtSecret = cfg.JWTSecret

	startCtx, cancelStart := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelStart()

	mongo, err := db.Connect(startCtx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		logger.Fatal("mongo unavailable", zap.Error(err))
	}
	records := pay.NewMongoRecords(mongo.IdempotencyCollection)
	if err := records.EnsureIndexes(startCtx); err != nil {
		logger.Fatal("idempotency indexes", zap.Error(err))
	}

	rdb, err := rdx.Connect(startCtx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Fatal("redis unavailable", zap.Error(err))
	}
	selections := selection.NewRepository(selection.NewRedisStore(rdb, cfg.SelectionTTL))

	submitter := checkout.NewSubmitter(checkout.NewHTTPGateway(cfg.PaymentAPIURL, cfg.HTTPTimeout), cfg.CancelURL())
	cartHandler := cart.NewHandler(cartapi.New(cfg.CartAPIURL, cfg.HTTPTimeout), selections, submitter)
	orderHandler := orders.NewHandler(orderapi.New(cfg.OrderAPIURL, cfg.HTTPTimeout))
	reviewHandler := reviews.NewHandler(reviewapi.New(cfg.ReviewAPIURL, cfg.HTTPTimeout))

	events := mq.NewRedisEmitter(rdb)
	cartHandler.Events = events
	reviewHandler.Events = events

	rateLimiter := ratelim.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	stopJanitor := make(chan struct{})
	go rateLimiter.Janitor(time.Minute, stopJanitor)

	router := httprouter.New()
	router.GET("/health", Index)
	routes.AddCartRoutes(router, cartHandler, rateLimiter)
	routes.AddCheckoutRoutes(router, cartHandler, records, rateLimiter)
	routes.AddOrderRoutes(router, orderHandler, rateLimiter)
	routes.AddReviewRoutes(router, reviewHandler, rateLimiter)

	// apply middleware: CORS → security headers → logging → router
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "Idempotency-Key"},
		ExposedHeaders:   []string{"Content-Disposition", "Idempotent-Replayed"},
		AllowCredentials: true,
	}).Handler(router)

	handler := loggingMiddleware(securityHeaders(corsHandler))

	server := &http.Server{
		Addr:              cfg.Port,
		Handler:           handler,
		ReadTimeout:       7 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
	}

	server.RegisterOnShutdown(func() {
		close(stopJanitor)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mongo.Close(ctx); err != nil {
			zap.L().Warn("mongo disconnect", zap.Error(err))
		}
		if err := rdb.Close(); err != nil {
			zap.L().Warn("redis close", zap.Error(err))
		}
	})

	go func() {
		logger.Info("server listening", zap.String("addr", cfg.Port), zap.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("ListenAndServe", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutdown signal received; shutting down gracefully")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
		return
	}
	logger.Info("server stopped cleanly")
}
