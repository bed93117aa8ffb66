// Package router assembles the gin engine of the report server.
package router

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/posreports/backend/internal/infrastructure/logger"
	"github.com/posreports/backend/internal/interfaces/http/middleware"
)

// APIPrefix is the root of the versioned report API
const APIPrefix = "/api/v1"

// DefaultHealthPath is where load balancers probe the server
const DefaultHealthPath = "/health"

// RouteRegistrar mounts a handler's routes under APIPrefix
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Config configures New
type Config struct {
	Mode           string // gin mode; empty keeps the current one
	ServiceName    string
	TracingEnabled bool
	Meter          metric.Meter // nil disables HTTP metrics
	TrustedProxies []string
	// HealthPath is served outside APIPrefix, untraced, and logged at
	// debug when it succeeds. Defaults to DefaultHealthPath.
	HealthPath string
}

// New builds the server engine. Middleware runs outermost first: panic
// recovery, tracing, access log, span tags, then metrics. health is served
// at cfg.HealthPath when non-nil; registrars are mounted under APIPrefix.
func New(cfg Config, log *zap.Logger, health gin.HandlerFunc, registrars ...RouteRegistrar) (*gin.Engine, error) {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.HealthPath == "" {
		cfg.HealthPath = DefaultHealthPath
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}
	engine.Use(
		logger.Recovery(log),
		middleware.Tracing(cfg.ServiceName, cfg.TracingEnabled, cfg.HealthPath),
		logger.AccessLog(log, cfg.HealthPath),
		middleware.SpanTags(),
		middleware.HTTPMetrics(cfg.Meter),
	)

	if health != nil {
		engine.GET(cfg.HealthPath, health)
	}
	api := engine.Group(APIPrefix)
	for _, r := range registrars {
		r.RegisterRoutes(api)
	}
	return engine, nil
}
