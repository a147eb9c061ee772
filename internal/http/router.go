package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/leafscan/leafscan-api/internal/auth"
	"github.com/leafscan/leafscan-api/internal/config"
	"github.com/leafscan/leafscan-api/internal/http/handlers"
	"github.com/leafscan/leafscan-api/internal/http/middlewares"
	"github.com/leafscan/leafscan-api/internal/observability"
	"github.com/leafscan/leafscan-api/internal/redisclient"
	"github.com/leafscan/leafscan-api/internal/repo/postgres"
	"github.com/leafscan/leafscan-api/internal/security"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

func NewRouter(log *slog.Logger, pool *pgxpool.Pool, rdb *redisclient.Client, reg *prometheus.Registry, cfg config.Config) *gin.Engine {
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	prom := observability.NewProm(reg)

	// middleware

	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(RequestLogger(log))
	r.Use(otelgin.Middleware("leafscan-api"))
	r.Use(prom.GinHandleMiddleware())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(cfg.CORSAllowedOrigins))
	r.Use(middlewares.MaxBodyBytes(cfg.MaxBodyBytes))

	// health
	ping := func() error {
		if pool == nil {
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		return pool.Ping(ctx)
	}

	h := handlers.NewHealthHandler(ping)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// wire up the credential store and the auth handler

	usersRepo := postgres.NewUsersRepo(pool, prom)
	hasher := security.NewHasher(cfg.BcryptCost)
	jwtManager := auth.NewManager(cfg.JWTSecret, time.Duration(cfg.JWTTTLHours)*time.Hour)

	authHandler := handlers.NewAuthHandler(usersRepo, usersRepo, hasher, jwtManager, prom, log)

	// the two auth endpoints take JSON only and are throttled per IP

	api := r.Group("/api", middlewares.RequireJSON(), authLimiter(rdb, cfg))

	api.POST("/register", authHandler.Register)
	api.POST("/login", authHandler.Login)

	return r
}

// authLimiter prefers the redis fixed-window limiter and falls back to
// the in-process one when redis is not configured.
func authLimiter(rdb *redisclient.Client, cfg config.Config) gin.HandlerFunc {
	if rdb != nil {
		return middlewares.NewRedisRateLimiter(rdb, cfg.AuthRateLimit, cfg.AuthRateWindow).Middleware(middlewares.KeyByIP)
	}

	return middlewares.NewRateLimiter(cfg.AuthRateLimit, cfg.AuthRateWindow).Middleware(middlewares.KeyByIP)
}
