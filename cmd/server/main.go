// Command server runs the game watchlist HTTP API.
//
// @title                      Game Watchlist API
// @version                    1.0
// @description                Watchlists, reviews and rankings over the IGDB game catalog.
// @BasePath                   /api/v1
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
// @description                Bearer JWT. Without JWT_SECRET the X-User-ID header is trusted instead.
package main

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-game-watchlist/docs"
	"github.com/tbourn/go-game-watchlist/internal/cache"
	"github.com/tbourn/go-game-watchlist/internal/catalog"
	"github.com/tbourn/go-game-watchlist/internal/config"
	httpapi "github.com/tbourn/go-game-watchlist/internal/http"
	"github.com/tbourn/go-game-watchlist/internal/observability"
	"github.com/tbourn/go-game-watchlist/internal/repo"
	"github.com/tbourn/go-game-watchlist/internal/services"
	"github.com/tbourn/go-game-watchlist/internal/sysutil"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// A missing .env is normal outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Msg("load .env")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	ver := sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version)
	sysutil.SetupLogger(os.Stdout, sysutil.LoggerOptions{
		Level:   cfg.LogLevel,
		Pretty:  cfg.LogPretty,
		Service: cfg.OTEL.ServiceName,
		Version: ver,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, ver); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(ctx context.Context, cfg config.Config, ver string) error {
	shutdownTracing, err := observability.SetupOTel(ctx, cfg.OTEL, ver)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn().Err(err).Msg("tracing shutdown")
		}
	}()

	db, err := repo.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	if cfg.OTEL.Enabled {
		if err := observability.TraceDB(db); err != nil {
			return err
		}
	}
	if err := repo.AutoMigrate(db); err != nil {
		return err
	}
	log.Info().Str("driver", cfg.Database.Driver).Msg("database ready")

	store, locks, closeCache, err := openCache(ctx, cfg.Cache)
	if err != nil {
		return err
	}
	defer closeCache()

	var gw catalog.Gateway = catalog.Unconfigured{}
	if cfg.CatalogEnabled() {
		gw = catalog.NewClient(catalog.Config{
			ClientID:     cfg.Catalog.ClientID,
			ClientSecret: cfg.Catalog.ClientSecret,
			BaseURL:      cfg.Catalog.BaseURL,
			AuthURL:      cfg.Catalog.AuthURL,
			Timeout:      cfg.Catalog.Timeout,
			RPS:          cfg.Catalog.RPS,
			MaxRetries:   cfg.Catalog.MaxRetries,
		})
	} else {
		log.Warn().Msg("IGDB credentials not set; catalog endpoints will answer 503")
	}
	gw = catalog.NewCached(gw, store, cfg.Catalog.RecordTTL, cfg.Catalog.ListTTL)

	idx, err := services.BuildIndex(ctx, db)
	if err != nil {
		return err
	}
	log.Info().Int("docs", idx.Len()).Msg("search index built")

	docs.SwaggerInfo.BasePath = cfg.APIBasePath
	docs.SwaggerInfo.Version = ver

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{DB: db, Catalog: gw, Locks: locks, Index: idx}, cfg)

	go purgeIdempotency(ctx, db, cfg.IdempotencyPurge)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("base_path", cfg.APIBasePath).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Dur("timeout", cfg.ShutdownTimeout).Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(sctx)
}

// openCache connects to redis when configured, otherwise keeps the catalog
// cache and import locks in process.
func openCache(ctx context.Context, cfg config.CacheConfig) (cache.Cache, cache.Locker, func(), error) {
	client, err := cache.NewRedisClient(ctx, cache.RedisOptions{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	if client != nil {
		log.Info().Str("addr", cfg.RedisAddr).Msg("using redis cache")
		return cache.NewRedisCache(client, cfg.Prefix),
			cache.NewRedisLocker(client, cfg.Prefix),
			func() { _ = client.Close() },
			nil
	}
	mem := cache.NewMemCache(time.Minute)
	return mem, cache.NewLocalLocker(), mem.Close, nil
}

// purgeIdempotency deletes expired idempotency records every interval until
// ctx is cancelled.
func purgeIdempotency(ctx context.Context, db *gorm.DB, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := repo.PurgeExpiredIdempotency(ctx, db, now.UTC())
			if err != nil {
				log.Warn().Err(err).Msg("purge idempotency")
				continue
			}
			if n > 0 {
				log.Debug().Int64("removed", n).Msg("purged idempotency records")
			}
		}
	}
}
