// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// compression, CORS, security headers, idempotency, and rate limiting.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/config"
	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/http/handlers"
	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/http/middleware"
	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/repo"
	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/services"
	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/storage"
)

// Deps carries what RegisterRoutes needs beyond configuration.
type Deps struct {
	// DB backs the idempotency lookup.
	DB       *gorm.DB
	Services handlers.Services
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and mounts the public API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: correlation id plus request-scoped logger
//  3. RedactingLogger: access logs with PII and payment tokens scrubbed
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Idempotency validator (before rate limiter to allow bypass on replay)
//  8. Rate limiter (per IP, bypass on replay, webhooks exempt)
//  9. Compression, CORS and security headers
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true
	apiBase := strings.TrimRight(cfg.APIBasePath, "/")

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics(storage.DownloadsPrefix, storage.AssetsPrefix))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
			Scopes: map[string]string{apiBase + "/payments/direct": services.IdempotencyScopeDirect},
		},
		idempotencyLookup(deps.DB),
	))

	// 8) Token-bucket rate limiter per IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByIP()).
		Exempt(apiBase+"/webhooks/", "/health", storage.DownloadsPrefix, storage.AssetsPrefix)
	r.Use(rl.Handler())

	// 9) Compress JSON; PDFs are already compressed
	r.Use(gzip.Gzip(gzip.DefaultCompression,
		gzip.WithExcludedPaths([]string{"/metrics", strings.TrimSuffix(storage.DownloadsPrefix, "/"), strings.TrimSuffix(storage.AssetsPrefix, "/")}),
	))

	r.Use(corsHandlers(cfg.CORS.AllowedOrigins)...)

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:       cfg.Security.EnableHSTS,
		HSTSMaxAge:       cfg.Security.HSTSMaxAge,
		EnablePolicy:     true,
		NoStorePrefixes:  []string{apiBase + "/checkout", apiBase + "/payments/"},
		DownloadPrefixes: []string{storage.DownloadsPrefix},
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

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Generated guides and pre-built products
	if cfg.DownloadsDir != "" {
		r.Static(strings.TrimSuffix(storage.DownloadsPrefix, "/"), cfg.DownloadsDir)
	}
	if cfg.StaticAssetsDir != "" {
		r.Static(strings.TrimSuffix(storage.AssetsPrefix, "/"), cfg.StaticAssetsDir)
	}

	deps.Services.BasePath = apiBase
	h := handlers.New(deps.Services)

	// Public API
	api := groupWithPrefix(r, apiBase)
	{
		// Catalog and previews
		api.GET("/destinations", h.ListDestinations)
		api.GET("/destinations/:id", h.GetDestination)
		api.GET("/destinations/:id/days/:day", h.GetDayContent)

		// Checkout and payments
		api.POST("/checkout", h.CreateCheckout)
		api.POST("/payments/direct", h.DirectPayment)
		api.POST("/webhooks/stripe", h.StripeWebhook)

		// Purchases
		api.GET("/purchases", h.ListPurchases)
		api.GET("/purchases/:session/status", h.PurchaseStatus)

		// Background work
		api.POST("/generation", h.EnqueueGeneration)
		api.GET("/jobs/:id", h.GetJob)
		api.DELETE("/cache", h.ClearCache)
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

// corsHandlers answers preflights and sets Access-Control-Allow-Origin on
// every response, not only on requests that carry an Origin header. With no
// allow-list every origin is accepted without credentials; otherwise only
// listed origins are echoed back.
func corsHandlers(origins []string) []gin.HandlerFunc {
	conf := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderIdempotencyKey},
		ExposeHeaders: []string{"X-Request-ID", "Content-Length", "ETag", "Location", "Idempotent-Replay"},
		MaxAge:        12 * time.Hour,
	}

	if len(origins) == 0 {
		conf.AllowAllOrigins = true
		return []gin.HandlerFunc{
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(conf),
		}
	}

	conf.AllowOrigins = origins
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); allowed[origin] {
				c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
				c.Writer.Header().Add("Vary", "Origin")
			}
			c.Next()
		},
		cors.New(conf),
	}
}

// idempotencyLookup reports whether a live key is already stored. Without a
// database every key is new.
func idempotencyLookup(db *gorm.DB) middleware.IdempotencyLookup {
	return func(ctx context.Context, scope, key string, now time.Time) (bool, error) {
		if db == nil {
			return false, nil
		}
		_, err := repo.GetIdempotency(ctx, db, scope, key, now)
		if errors.Is(err, repo.ErrNotFound) {
			return false, nil
		}
		return err == nil, err
	}
}
