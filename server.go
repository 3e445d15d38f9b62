package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/ledger_engine/config"
	"github.com/mmdatafocus/ledger_engine/handlers"
	"github.com/mmdatafocus/ledger_engine/middlewares"
	"github.com/mmdatafocus/ledger_engine/models"
	"github.com/mmdatafocus/ledger_engine/workflow"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

func corsConfig() cors.Config {
	c := cors.DefaultConfig()
	// Production requires an explicit allowlist via CORS_ALLOWED_ORIGINS (comma-separated).
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			c.AllowOriginFunc = func(string) bool { return false }
		} else {
			c.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		c.AllowAllOrigins = true
	}
	c.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	c.AddAllowHeaders("Origin", "Content-Type", "Authorization", middlewares.CorrelationHeader)
	c.AddExposeHeaders("Content-Length", middlewares.CorrelationHeader)
	c.AllowCredentials = !c.AllowAllOrigins
	return c
}

// rateLimiter is enabled with RATE_LIMIT_ENABLED=true and needs redis.
// RATE_LIMIT_WINDOW_SECONDS (default 60), RATE_LIMIT_MAX_REQUESTS (default 600).
func rateLimiter() gin.HandlerFunc {
	limit := int64(600)
	if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_MAX_REQUESTS")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			limit = n
		}
	}
	windowSec := int64(60)
	if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_WINDOW_SECONDS")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			windowSec = n
		}
	}
	return middlewares.NewRateLimiter(config.GetRedisDB, limit, time.Duration(windowSec)*time.Second).RateLimitMiddleware
}

// newRouter builds the engine. limiter may be nil.
func newRouter(logger *logrus.Logger, limiter gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middlewares.CorrelationMiddleware())
	// The port opens before the database is up; until then the api answers 503.
	r.Use(middlewares.ReadinessMiddleware("/health"))
	r.Use(cors.New(corsConfig()))
	if limiter != nil {
		r.Use(limiter)
	}
	r.Use(middlewares.AuthMiddleware())
	r.Use(middlewares.ErrorLogger(logger))
	handlers.RegisterRoutes(r)
	return r
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Cloud Run sends SIGTERM on revision shutdown.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		gin.SetMode(gin.ReleaseMode)
	}

	var limiter gin.HandlerFunc
	if strings.EqualFold(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")), "true") {
		limiter = rateLimiter()
	}
	r := newRouter(logger, limiter)

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can block tables; SKIP_MIGRATIONS=true leaves it to `ledgerctl migrate`.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		if err := models.MigrateTable(); err != nil {
			logger.WithFields(logrus.Fields{"field": "migrations"}).Fatal(err)
		}
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	// Outbox events are published after commit, never inside the request.
	dispatcherCtx, cancelDispatcher := context.WithCancel(context.Background())
	defer cancelDispatcher()
	if config.OutboxDispatchEnabled() {
		go workflow.NewOutboxDispatcher(db, logger, workflow.PubSubPublisher{}).Run(dispatcherCtx)
	}

	logger.WithFields(logrus.Fields{
		"field": "http",
		"port":  port,
	}).Info("ledger engine ready")

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Stop background workers before draining requests.
	cancelDispatcher()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
