// Package httpapi wires the Gin transport: the VK Callback API webhook, the
// token-guarded admin API, health, metrics and the optional Swagger UI.
//
// Middleware order:
//  1. OpenTelemetry spans
//  2. RequestID
//  3. RedactingLogger (admin token and VK secret masked)
//  4. Recovery
//  5. body size limit
//  6. Prometheus metrics
//  7. CORS
//  8. security headers
//
// The admin group adds AdminAuth, the rate limiter and gzip. The webhook is
// not rate limited; VK redelivers every callback not answered with "ok".
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tbourn/payroll-approval-bot/internal/config"
	"github.com/tbourn/payroll-approval-bot/internal/http/handlers"
	"github.com/tbourn/payroll-approval-bot/internal/http/middleware"
)

// CallbackPath is where VK posts Callback API events.
const CallbackPath = "/vk/callback"

// maxBodyBytes caps request bodies. Batch imports by rows are the largest.
const maxBodyBytes = 8 << 20

// Deps are the handlers mounted by RegisterRoutes. Admin may be nil, in which
// case the admin API is not mounted.
type Deps struct {
	Callback *handlers.Callback
	Admin    *handlers.Admin
}

// RegisterRoutes attaches middleware and routes to r.
func RegisterRoutes(r *gin.Engine, d Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{middleware.HeaderAdminToken},
	}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(maxBodyBytes))
	r.Use(middleware.Metrics())
	r.Use(corsFor(cfg.CORS))
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	if d.Callback != nil {
		r.POST(CallbackPath, d.Callback.Handle)
	}
	if d.Admin == nil {
		return
	}

	api := groupWithPrefix(r, cfg.APIBasePath)
	api.Use(middleware.AdminAuth(cfg.AdminToken))
	api.Use(middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByTokenOrIP()).Handler())
	api.Use(middleware.SecurityHeaders(middleware.SecurityOptions{NoStore: true}))
	api.Use(gzip.Gzip(gzip.DefaultCompression))
	{
		api.GET("/recipients/:id/payments", d.Admin.RecipientPayments)
		api.GET("/batches/:batch/stats", d.Admin.BatchStats)
		api.POST("/batches", d.Admin.ImportBatch)
		api.POST("/sweeps", d.Admin.RunSweep)
		api.POST("/reconcile", d.Admin.Reconcile)
	}
}

// corsFor allows every origin when none are configured; otherwise only the
// listed ones. Credentials are never allowed since auth is a header token.
func corsFor(c config.CORSConfig) gin.HandlerFunc {
	cc := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", middleware.HeaderAdminToken},
		ExposeHeaders: []string{"X-Request-ID", "Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(c.AllowedOrigins) == 0 {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = c.AllowedOrigins
	}
	return cors.New(cc)
}

func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
