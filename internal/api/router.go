package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/greyfinance/limitguard/internal/api/handler"
	"github.com/greyfinance/limitguard/internal/api/middleware"
	"github.com/greyfinance/limitguard/internal/config"
	"github.com/greyfinance/limitguard/internal/engine"
	"github.com/greyfinance/limitguard/internal/limits"
	"github.com/greyfinance/limitguard/internal/notify"
)

// Router assembles the HTTP surface of the limits engine.
type Router struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *pgxpool.Pool
	redis  redis.Cmdable
	engine *engine.Engine
	ctrl   engine.Controller
	notify *notify.Router
	cache  *limits.Cache
}

func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	db *pgxpool.Pool,
	redisClient redis.Cmdable,
	eng *engine.Engine,
	ctrl engine.Controller,
	notifyRouter *notify.Router,
	cache *limits.Cache,
) *Router {
	return &Router{
		cfg:    cfg,
		logger: logger,
		db:     db,
		redis:  redisClient,
		engine: eng,
		ctrl:   ctrl,
		notify: notifyRouter,
		cache:  cache,
	}
}

func (api *Router) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.TraceMiddleware)
	r.Use(middleware.LoggingMiddleware(api.logger))
	r.Use(middleware.MetricsMiddleware)
	r.Use(middleware.RecoverMiddleware(api.logger))

	healthHandler := handler.NewHealthHandler(api.db, api.redis)
	evaluateHandler := handler.NewEvaluateHandler(api.engine, api.ctrl, api.notify)
	limitsHandler := handler.NewLimitsHandler(api.cache)

	// Operational endpoints.
	r.Get("/healthz", healthHandler.Live)
	r.Get("/readyz", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	// Service-to-service API.
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware)
		r.Use(middleware.EvaluateRateLimiter(api.cfg.EvaluateRateLimitRPS))

		r.Post("/v1/evaluate", evaluateHandler.Evaluate)
		r.Post("/v1/limits/refresh", limitsHandler.Refresh)
		r.Post("/v1/limits/invalidate", limitsHandler.Invalidate)
	})

	return r
}
