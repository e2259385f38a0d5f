package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"arise/internal/auth"
	"arise/internal/httpmiddleware"
)

// RouterConfig holds what the routes need besides the handler.
type RouterConfig struct {
	SigningKey      string
	Issuer          string
	RateLimitPerMin int
	AllowOrigins    []string
	// Checks report dependency health on /healthz, by name.
	Checks map[string]func(ctx context.Context) bool
	Logger *zap.Logger
}

// NewRouter wires the middleware chain and every route.
func NewRouter(h *Handler, cfg RouterConfig) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestID())
	r.Use(httpmiddleware.AccessLog(log))
	r.Use(cors.New(cors.Config{
		AllowOrigins:  origins,
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", httpmiddleware.RequestIDHeader},
		ExposeHeaders: []string{"Content-Disposition", httpmiddleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}))
	r.Use(httpmiddleware.SecurityHeaders())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", healthz(cfg.Checks))

	teacher := r.Group("/api/teacher", auth.Require(cfg.SigningKey, cfg.Issuer, auth.RoleTeacher))
	{
		teacher.GET("/courses", h.Courses)
		teacher.POST("/start-session", h.StartSession)
		teacher.GET("/session/:id/status", h.SessionStatus)
		teacher.POST("/session/:id/extend", h.ExtendSession)
		teacher.POST("/session/:id/end", h.EndSession)
		teacher.POST("/manual-override", h.ManualOverride)
		teacher.GET("/device-status", h.DeviceStatus)
		teacher.GET("/report/:id", h.Report)
		teacher.GET("/report/export/:id", h.ExportReport)
	}

	limiter := httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
	device := r.Group("/api", auth.Require(cfg.SigningKey, cfg.Issuer, auth.RoleDevice), limiter.Middleware())
	{
		device.POST("/device/heartbeat", h.Heartbeat)
		device.GET("/session-status", h.ActiveSessionStatus)
		device.POST("/mark-attendance-by-roll-id", h.MarkByRollID)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "message": "not found"})
	})
	return r
}

func healthz(checks map[string]func(ctx context.Context) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := gin.H{"status": "ok"}
		status := http.StatusOK
		for name, check := range checks {
			ok := check(c.Request.Context())
			body[name] = ok
			if !ok {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
			}
		}
		c.JSON(status, body)
	}
}
