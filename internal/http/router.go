// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, redacted access logs, panic recovery, metrics,
// CORS, security headers, authentication, idempotent replay and rate limiting.
package httpapi

import (
	"context"
	"errors"
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

	"github.com/tbourn/go-game-watchlist/internal/cache"
	"github.com/tbourn/go-game-watchlist/internal/catalog"
	"github.com/tbourn/go-game-watchlist/internal/config"
	"github.com/tbourn/go-game-watchlist/internal/http/handlers"
	"github.com/tbourn/go-game-watchlist/internal/http/middleware"
	"github.com/tbourn/go-game-watchlist/internal/repo"
	"github.com/tbourn/go-game-watchlist/internal/search"
	"github.com/tbourn/go-game-watchlist/internal/services"
)

// Deps are the long-lived collaborators the routes are built on.
type Deps struct {
	DB      *gorm.DB
	Catalog catalog.Gateway
	Locks   cache.Locker   // import serialization; nil disables it
	Index   *search.Memory // offline title index; nil disables the fallback
}

// idempotencyStore adapts the repository free functions to
// middleware.IdempotencyStore.
type idempotencyStore struct {
	db  *gorm.DB
	ttl time.Duration
}

func (s idempotencyStore) Lookup(ctx context.Context, userID, scope, key string, now time.Time) (*middleware.StoredResponse, error) {
	rec, err := repo.GetIdempotency(ctx, s.db, userID, scope, key, now)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, middleware.ErrNoStoredResponse
	}
	if err != nil {
		return nil, err
	}
	return &middleware.StoredResponse{Status: rec.StatusCode, Body: rec.Body}, nil
}

func (s idempotencyStore) Save(ctx context.Context, userID, scope, key string, status int, body []byte) error {
	_, err := repo.SaveIdempotency(ctx, s.db, userID, scope, key, status, body, s.ttl)
	return err
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and mounts the public API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. AccessLog: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter and gzip
//  6. Metrics
//  7. CORS and security headers
//
// and, on the API group only:
//  8. Authentication (JWT, or the X-User-ID header in development)
//  9. Idempotent replay (before the limiter so replays are never throttled)
//  10. Rate limiter (per user/IP)
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.AccessLog(middleware.AccessLogOptions{
		MaskHeaders: []string{"X-API-Key", middleware.HeaderIdempotencyKey},
		SkipPaths:   []string{"/health", "/metrics"},
	}))
	r.Use(middleware.Recovery())

	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	r.Use(limitBody(maxBody))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(cors.New(corsConfig(cfg.CORS)))
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

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(newServices(deps))

	api := groupWithPrefix(r, cfg.APIBasePath)
	api.Use(middleware.Authenticate(middleware.AuthOptions{
		Secret: []byte(cfg.Auth.JWTSecret),
		Issuer: cfg.Auth.Issuer,
		Leeway: cfg.Auth.Leeway,
	}))
	api.Use(middleware.Idempotency(
		idempotencyStore{db: deps.DB, ttl: cfg.IdempotencyTTL},
		middleware.IdempotencyOptions{MaxLen: 200},
	))
	api.Use(middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP()).Handler())
	{
		// Catalog
		api.GET("/catalog/games", h.SearchGames)
		api.GET("/catalog/games/:id", h.GetCatalogGame)
		api.GET("/catalog/genres/:genre/games", h.GamesByGenre)
		api.GET("/catalog/popular", h.PopularGames)

		// Watchlists
		api.GET("/watchlists", h.ListWatchlists)
		api.POST("/watchlists", h.CreateWatchlist)
		api.GET("/watchlists/:id", h.GetWatchlist)
		api.DELETE("/watchlists/:id", h.DeleteWatchlist)
		api.POST("/watchlists/:id/games", h.AddWatchlistGame)
		api.DELETE("/watchlists/:id/games/:gameId", h.RemoveWatchlistGame)
		api.PATCH("/watchlists/:id/games/:gameId/status", h.UpdateWatchlistGameStatus)

		// Favorites
		api.POST("/favorites/games", h.AddFavorite)
		api.DELETE("/favorites/games/:gameId", h.RemoveFavorite)

		// Reviews and rankings
		api.POST("/games/:id/reviews", h.SubmitReview)
		api.GET("/games/:id/reviews", h.ListGameReviews)
		api.DELETE("/reviews/:id", h.DeleteReview)
		api.GET("/me/reviews", h.ListMyReviews)
		api.GET("/rankings/top-rated", h.TopRated)
	}
}

// newServices builds the application services over deps.
func newServices(deps Deps) (*services.CatalogService, *services.WatchlistService, *services.RatingService) {
	resolver := services.NewResolver(deps.DB, deps.Catalog, deps.Locks, deps.Index)

	cat := &services.CatalogService{DB: deps.DB, Catalog: deps.Catalog}
	if deps.Index != nil {
		cat.Index = deps.Index
	}
	return cat,
		services.NewWatchlistService(deps.DB, resolver),
		&services.RatingService{DB: deps.DB, Resolver: resolver}
}

// corsConfig allows every origin when no allowlist is configured. Credentials
// stay off in both modes; the API authenticates with bearer tokens.
func corsConfig(c config.CORSConfig) cors.Config {
	cc := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match",
			middleware.HeaderUserID, middleware.HeaderIdempotencyKey,
		},
		ExposeHeaders:    []string{"X-Request-ID", "ETag", middleware.HeaderIdempotentReplayed, "Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(c.AllowedOrigins) == 0 {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = c.AllowedOrigins
	}
	return cc
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
