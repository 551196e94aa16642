// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server timeouts,
// logging, database, catalog credentials, cache, auth, rate limiting and
// observability settings.
package config

import (
	"errors"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

var (
	logLevels = []string{"debug", "info", "warn", "error", "fatal", "panic"}
	dbDrivers = []string{"sqlite", "postgres"}
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-game-watchlist")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// DatabaseConfig selects the relational store.
type DatabaseConfig struct {
	Driver string // DB_DRIVER: sqlite|postgres
	DSN    string // DB_DSN; for sqlite a file path (DB_PATH is accepted too)
}

// CatalogConfig holds the IGDB credentials and client tuning.
type CatalogConfig struct {
	ClientID     string        // IGDB_CLIENT_ID
	ClientSecret string        // IGDB_CLIENT_SECRET
	BaseURL      string        // IGDB_BASE_URL
	AuthURL      string        // IGDB_AUTH_URL
	Timeout      time.Duration // IGDB_TIMEOUT
	RPS          float64       // IGDB_RPS, the API allows 4
	MaxRetries   int           // IGDB_MAX_RETRIES
	RecordTTL    time.Duration // CATALOG_RECORD_TTL, cache lifetime of single games
	ListTTL      time.Duration // CATALOG_LIST_TTL, cache lifetime of search pages
}

// CacheConfig selects the shared cache. An empty RedisAddr keeps everything
// in process.
type CacheConfig struct {
	RedisAddr     string // REDIS_ADDR
	RedisPassword string // REDIS_PASSWORD
	RedisDB       int    // REDIS_DB
	Prefix        string // CACHE_PREFIX
}

// AuthConfig configures bearer token verification. An empty JWTSecret trusts
// the X-User-ID development header.
type AuthConfig struct {
	JWTSecret string        // JWT_SECRET
	Issuer    string        // JWT_ISSUER
	Leeway    time.Duration // JWT_LEEWAY
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	ShutdownTimeout   time.Duration // graceful drain on SIGTERM
	MaxHeaderBytes    int           // bytes
	MaxBodyBytes      int64         // request body cap
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	Database DatabaseConfig
	Catalog  CatalogConfig
	Cache    CacheConfig
	Auth     AuthConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL   time.Duration // how long a given Idempotency-Key is replayed
	IdempotencyPurge time.Duration // interval of the expired-record sweep

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:   getdur("SHUTDOWN_TIMEOUT", 10*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		MaxBodyBytes:      int64(getint("MAX_BODY_BYTES", 1<<20)),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		Database: DatabaseConfig{
			Driver: strings.ToLower(getenv("DB_DRIVER", "sqlite")),
			DSN:    getenv("DB_DSN", getenv("DB_PATH", "app.db")),
		},
		Catalog: CatalogConfig{
			ClientID:     getenv("IGDB_CLIENT_ID", ""),
			ClientSecret: getenv("IGDB_CLIENT_SECRET", ""),
			BaseURL:      getenv("IGDB_BASE_URL", "https://api.igdb.com/v4"),
			AuthURL:      getenv("IGDB_AUTH_URL", "https://id.twitch.tv/oauth2/token"),
			Timeout:      getdur("IGDB_TIMEOUT", 10*time.Second),
			RPS:          getfloat("IGDB_RPS", 4),
			MaxRetries:   getint("IGDB_MAX_RETRIES", 2),
			RecordTTL:    getdur("CATALOG_RECORD_TTL", time.Hour),
			ListTTL:      getdur("CATALOG_LIST_TTL", 5*time.Minute),
		},
		Cache: CacheConfig{
			RedisAddr:     getenv("REDIS_ADDR", ""),
			RedisPassword: getenv("REDIS_PASSWORD", ""),
			RedisDB:       getint("REDIS_DB", 0),
			Prefix:        getenv("CACHE_PREFIX", "watchlist:"),
		},
		Auth: AuthConfig{
			JWTSecret: getenv("JWT_SECRET", ""),
			Issuer:    getenv("JWT_ISSUER", ""),
			Leeway:    getdur("JWT_LEEWAY", 30*time.Second),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Idempotency
		IdempotencyTTL:   getdur("IDEMPOTENCY_TTL", 24*time.Hour),
		IdempotencyPurge: getdur("IDEMPOTENCY_PURGE_INTERVAL", time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-game-watchlist"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	cfg.normalize()
	return cfg, cfg.validate()
}

// normalize folds accepted aliases onto their canonical values.
func (c *Config) normalize() {
	if c.LogLevel == "warning" {
		c.LogLevel = "warn"
	}
	switch c.GinMode {
	case "debug", "release", "test":
	default:
		c.GinMode = "release"
	}
	if c.Database.Driver == "postgresql" {
		c.Database.Driver = "postgres"
	}
}

// validate reports the first rule the configuration breaks.
func (c Config) validate() error {
	rules := []struct {
		broken bool
		msg    string
	}{
		{!slices.Contains(logLevels, c.LogLevel),
			"LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic"},
		{strings.TrimSpace(c.Port) == "", "PORT must not be empty"},
		{c.ReadTimeout <= 0 || c.ReadHeaderTimeout <= 0 || c.WriteTimeout <= 0 || c.IdleTimeout <= 0 || c.ShutdownTimeout <= 0,
			"timeouts must be positive durations"},
		{c.MaxHeaderBytes <= 0 || c.MaxBodyBytes <= 0, "MAX_HEADER_BYTES and MAX_BODY_BYTES must be > 0"},
		{!slices.Contains(dbDrivers, c.Database.Driver), "DB_DRIVER must be sqlite or postgres"},
		{strings.TrimSpace(c.Database.DSN) == "", "DB_DSN must not be empty"},
		{(c.Catalog.ClientID == "") != (c.Catalog.ClientSecret == ""),
			"IGDB_CLIENT_ID and IGDB_CLIENT_SECRET must be set together"},
		{c.Catalog.Timeout <= 0 || c.Catalog.RPS <= 0, "IGDB_TIMEOUT and IGDB_RPS must be > 0"},
		{c.Catalog.RecordTTL <= 0 || c.Catalog.ListTTL <= 0, "catalog cache TTLs must be > 0"},
		{c.Cache.RedisDB < 0, "REDIS_DB must be >= 0"},
		{c.Auth.Leeway < 0, "JWT_LEEWAY must be >= 0"},
		{c.RateRPS < 0, "RATE_RPS must be >= 0"},
		{c.RateBurst < 1, "RATE_BURST must be >= 1"},
		{c.Security.HSTSMaxAge < 0, "HSTS_MAX_AGE must be >= 0"},
		{c.IdempotencyTTL <= 0 || c.IdempotencyPurge <= 0,
			"IDEMPOTENCY_TTL and IDEMPOTENCY_PURGE_INTERVAL must be > 0"},
		{c.OTEL.SampleRatio < 0 || c.OTEL.SampleRatio > 1, "OTEL_TRACES_SAMPLER_ARG must be in [0,1]"},
	}
	for _, r := range rules {
		if r.broken {
			return errors.New(r.msg)
		}
	}
	return nil
}

// CatalogEnabled reports whether IGDB credentials are configured.
func (c Config) CatalogEnabled() bool { return c.Catalog.ClientID != "" }

// ---- helpers ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
