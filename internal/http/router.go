// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, tenancy resolution, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
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
	"gorm.io/gorm"

	"github.com/storechat/widget-backend/internal/config"
	"github.com/storechat/widget-backend/internal/http/handlers"
	"github.com/storechat/widget-backend/internal/http/middleware"
	"github.com/storechat/widget-backend/internal/services"
	"github.com/storechat/widget-backend/internal/shopify"
)

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), tenancy resolution
// and rate limiting, CORS and security headers, health and metrics endpoints,
// and then mounts the versioned public API under /api/v*.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Shop tenancy resolution (before logging so logs carry the shop)
//  4. RedactingLogger: structured logs with PII scrubbing
//  5. Recovery: capture panics after logger
//  6. Body size limiter
//  7. Gzip (embed script and config documents compress well)
//  8. Metrics
//  9. Rate limiter (per shop/IP)
//  10. CORS and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Resolve the tenant shop (query, admin header, or Referer)
	r.Use(middleware.ShopContext(middleware.ShopResolverOptions{
		DomainSuffix: cfg.ShopDomainSuffix,
	}))

	// 4) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{
			middleware.HeaderShopDomain,
		},
	}))

	// 5) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 6) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 7) Compress responses; the loader script shrinks ~4x
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// 8) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 9) Token-bucket rate limiter per shop/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByShopOrIP())
	r.Use(rl.Handler())

	// 10) CORS posture. The widget runs on arbitrary storefront domains, so
	// the default is allow-all; a configured allowlist narrows it.
	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderShopDomain},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "ETag"},
		AllowCredentials: false, // must remain false with AllowAllOrigins
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.CORS.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// API docs (disabled by default)
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db/upstream client
	quotaSvc := services.NewQuotaService(db)
	cfgSvc := services.NewWidgetConfigService(db)
	convoSvc := services.NewConversationService(db, quotaSvc)
	replySvc := services.NewReplyService(db, convoSvc)
	client := shopify.New(cfg.Upstream.APIVersion, cfg.Upstream.Timeout, cfg.Upstream.Retries)
	ingestSvc := services.NewIngestionService(db, client, cfg.Upstream.PageSize)

	h := handlers.New(cfgSvc, convoSvc, replySvc, ingestSvc, quotaSvc, db,
		cfg.AppURL, cfg.APIBasePath, cfg.EmbedPoll)

	// Public API
	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	api := groupWithPrefix(r, apiBase)
	{
		// Storefront widget surface
		api.GET("/widget-config", h.GetWidgetConfig)
		api.POST("/widget-config", h.WidgetAction)
		api.GET("/embed.js", h.EmbedScript)
		api.POST("/chat", h.Chat)

		// Merchant admin surface
		merchant := api.Group("/merchant")
		merchant.Use(middleware.RequireShop())
		{
			merchant.GET("/widget-config", h.AdminWidgetConfig)
			merchant.PUT("/widget-config", h.SaveWidgetConfig)
			merchant.GET("/usage", h.Usage)
			merchant.GET("/conversations", h.ListConversations)
			merchant.POST("/ingest", h.StartIngest)
			merchant.GET("/ingest/:id", h.IngestStatus)
			merchant.GET("/plans", h.ListPlans)
			merchant.PUT("/plan", h.BindPlan)
		}
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
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
