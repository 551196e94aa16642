package config

import (
	"os"
	"reflect"
	"strings"
	"testing"
	"time"
)

// Tests must not inherit the caller's deployment settings.
func TestMain(m *testing.M) {
	for _, k := range []string{
		"PORT", "LOG_LEVEL", "GIN_MODE", "DB_DRIVER", "DB_DSN", "DB_PATH",
		"IGDB_CLIENT_ID", "IGDB_CLIENT_SECRET", "REDIS_ADDR", "JWT_SECRET",
		"CORS_ALLOWED_ORIGINS", "OTEL_ENABLED",
	} {
		os.Unsetenv(k)
	}
	os.Exit(m.Run())
}

func TestLoad_LocalDevelopmentDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" || cfg.APIBasePath != "/api/v1" || cfg.GinMode != "release" {
		t.Fatalf("server defaults: %+v", cfg)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.DSN != "app.db" {
		t.Fatalf("database defaults: %+v", cfg.Database)
	}
	// No credentials: catalog answers 503, auth trusts X-User-ID, cache is in process.
	if cfg.CatalogEnabled() || cfg.Auth.JWTSecret != "" || cfg.Cache.RedisAddr != "" {
		t.Fatalf("expected unconfigured integrations: %+v", cfg)
	}
	if cfg.Catalog.RPS != 4 || cfg.Catalog.RecordTTL != time.Hour || cfg.Catalog.ListTTL != 5*time.Minute {
		t.Fatalf("catalog defaults: %+v", cfg.Catalog)
	}
	if cfg.IdempotencyTTL != 24*time.Hour || cfg.IdempotencyPurge != time.Hour {
		t.Fatalf("idempotency defaults: %v / %v", cfg.IdempotencyTTL, cfg.IdempotencyPurge)
	}
	if cfg.CORS.AllowedOrigins != nil {
		t.Fatalf("origins = %#v; want allow-all (nil)", cfg.CORS.AllowedOrigins)
	}
}

func TestLoad_ProductionOverrides(t *testing.T) {
	env := map[string]string{
		"PORT":                        "9000",
		"WRITE_TIMEOUT":               "45s",
		"GIN_MODE":                    "chatty",
		"LOG_LEVEL":                   "warning",
		"LOG_PRETTY":                  "yes",
		"SWAGGER_ENABLED":             "on",
		"API_BASE_PATH":               "games/v2/",
		"DB_DRIVER":                   "PostgreSQL",
		"DB_DSN":                      "postgres://u:p@db:5432/watchlist",
		"IGDB_CLIENT_ID":              "cid",
		"IGDB_CLIENT_SECRET":          "secret",
		"IGDB_RPS":                    "2.5",
		"CATALOG_LIST_TTL":            "30s",
		"REDIS_ADDR":                  "redis:6379",
		"REDIS_DB":                    "3",
		"JWT_SECRET":                  "s3cret",
		"JWT_ISSUER":                  "auth",
		"RATE_RPS":                    "fast", // unparsable falls back to the default
		"CORS_ALLOWED_ORIGINS":        " https://games.example , , http://localhost:5173 ",
		"ENABLE_HSTS":                 "TRUE",
		"HSTS_MAX_AGE":                "24h",
		"IDEMPOTENCY_TTL":             "48h",
		"OTEL_ENABLED":                "1",
		"OTEL_EXPORTER_OTLP_INSECURE": "0",
		"OTEL_TRACES_SAMPLER_ARG":     "0.25",
	}
	for k, v := range env {
		t.Setenv(k, v)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	checks := []struct {
		name string
		ok   bool
	}{
		{"port", cfg.Port == "9000"},
		{"write timeout", cfg.WriteTimeout == 45*time.Second},
		{"gin mode normalized", cfg.GinMode == "release"},
		{"log level alias", cfg.LogLevel == "warn"},
		{"pretty logs", cfg.LogPretty},
		{"swagger", cfg.SwaggerEnabled},
		{"base path", cfg.APIBasePath == "/games/v2"},
		{"driver alias", cfg.Database.Driver == "postgres"},
		{"catalog enabled", cfg.CatalogEnabled()},
		{"catalog rps", cfg.Catalog.RPS == 2.5},
		{"list ttl", cfg.Catalog.ListTTL == 30*time.Second},
		{"record ttl default", cfg.Catalog.RecordTTL == time.Hour},
		{"redis", cfg.Cache.RedisAddr == "redis:6379" && cfg.Cache.RedisDB == 3},
		{"cache prefix default", cfg.Cache.Prefix == "watchlist:"},
		{"jwt", cfg.Auth.JWTSecret == "s3cret" && cfg.Auth.Issuer == "auth"},
		{"rate fallback", cfg.RateRPS == 5},
		{"hsts", cfg.Security.EnableHSTS && cfg.Security.HSTSMaxAge == 24*time.Hour},
		{"idempotency ttl", cfg.IdempotencyTTL == 48*time.Hour},
		{"otel", cfg.OTEL.Enabled && !cfg.OTEL.Insecure && cfg.OTEL.SampleRatio == 0.25},
	}
	for _, c := range checks {
		if !c.ok {
			t.Errorf("%s: unexpected config %+v", c.name, cfg)
		}
	}
	want := []string{"https://games.example", "http://localhost:5173"}
	if !reflect.DeepEqual(cfg.CORS.AllowedOrigins, want) {
		t.Errorf("origins = %#v; want %#v", cfg.CORS.AllowedOrigins, want)
	}
}

func TestLoad_DBPathFeedsSQLiteDSN(t *testing.T) {
	t.Setenv("DB_PATH", "/var/lib/watchlist/games.db")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.DSN != "/var/lib/watchlist/games.db" {
		t.Fatalf("DSN = %q", cfg.Database.DSN)
	}

	// DB_DSN wins when both are set.
	t.Setenv("DB_DSN", "other.db")
	if cfg, _ = Load(); cfg.Database.DSN != "other.db" {
		t.Fatalf("DSN = %q; want other.db", cfg.Database.DSN)
	}
}

func TestLoad_Rejects(t *testing.T) {
	cases := []struct {
		env  map[string]string
		want string
	}{
		{map[string]string{"LOG_LEVEL": "verbose"}, "LOG_LEVEL"},
		{map[string]string{"PORT": "   "}, "PORT must not be empty"},
		{map[string]string{"READ_TIMEOUT": "0s"}, "timeouts must be positive"},
		{map[string]string{"SHUTDOWN_TIMEOUT": "-1s"}, "timeouts must be positive"},
		{map[string]string{"MAX_BODY_BYTES": "0"}, "MAX_BODY_BYTES"},
		{map[string]string{"DB_DRIVER": "mysql"}, "DB_DRIVER"},
		{map[string]string{"DB_DSN": "  "}, "DB_DSN must not be empty"},
		{map[string]string{"IGDB_CLIENT_ID": "only-id"}, "set together"},
		{map[string]string{"IGDB_CLIENT_SECRET": "only-secret"}, "set together"},
		{map[string]string{"IGDB_RPS": "0"}, "IGDB_RPS"},
		{map[string]string{"CATALOG_RECORD_TTL": "0s"}, "catalog cache TTLs"},
		{map[string]string{"REDIS_DB": "-1"}, "REDIS_DB"},
		{map[string]string{"JWT_LEEWAY": "-5s"}, "JWT_LEEWAY"},
		{map[string]string{"RATE_RPS": "-1"}, "RATE_RPS"},
		{map[string]string{"RATE_BURST": "0"}, "RATE_BURST"},
		{map[string]string{"HSTS_MAX_AGE": "-1s"}, "HSTS_MAX_AGE"},
		{map[string]string{"IDEMPOTENCY_PURGE_INTERVAL": "0s"}, "IDEMPOTENCY_PURGE_INTERVAL"},
		{map[string]string{"OTEL_TRACES_SAMPLER_ARG": "1.5"}, "OTEL_TRACES_SAMPLER_ARG"},
	}
	for _, tc := range cases {
		t.Run(tc.want, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("Load() err = %v; want it to mention %q", err, tc.want)
			}
		})
	}
}

func TestMustLoad(t *testing.T) {
	if cfg := MustLoad(); cfg.Port == "" {
		t.Fatal("MustLoad returned an empty config")
	}

	t.Setenv("RATE_BURST", "0")
	defer func() {
		if recover() == nil {
			t.Fatal("MustLoad did not panic on invalid config")
		}
	}()
	MustLoad()
}

func TestEnvParsers(t *testing.T) {
	t.Setenv("P_FLOAT", "3.5")
	t.Setenv("P_INT", "42")
	t.Setenv("P_DUR", "150ms")
	t.Setenv("P_BAD", "zzz")
	t.Setenv("P_EMPTY", "")

	if getenv("P_EMPTY", "d") != "d" || getenv("P_INT", "d") != "42" {
		t.Error("getenv")
	}
	if getfloat("P_FLOAT", 0) != 3.5 || getfloat("P_BAD", 1.25) != 1.25 {
		t.Error("getfloat")
	}
	if getint("P_INT", 0) != 42 || getint("P_BAD", 7) != 7 {
		t.Error("getint")
	}
	if getdur("P_DUR", 0) != 150*time.Millisecond || getdur("P_BAD", time.Second) != time.Second {
		t.Error("getdur")
	}

	for v, want := range map[string]bool{
		"1": true, "TRUE": true, " yes ": true, "Y": true, "On": true,
		"0": false, "false": false, " no ": false, "N": false, "OFF": false,
	} {
		t.Setenv("P_BOOL", v)
		if got := getbool("P_BOOL", !want); got != want {
			t.Errorf("getbool(%q) = %v; want %v", v, got, want)
		}
	}
	t.Setenv("P_BOOL", "maybe")
	if !getbool("P_BOOL", true) {
		t.Error("getbool should keep the default on unknown values")
	}
}

func TestNormalizeBasePath(t *testing.T) {
	for in, want := range map[string]string{
		"":          "/",
		" / ":       "/",
		"v1":        "/v1",
		"/api/v1/":  "/api/v1",
		"/api/v1//": "/api/v1",
	} {
		if got := normalizeBasePath(in); got != want {
			t.Errorf("normalizeBasePath(%q) = %q; want %q", in, got, want)
		}
	}
	if got := splitCSV(" a, ,b ,"); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("splitCSV = %#v", got)
	}
	if splitCSV("") != nil {
		t.Error("splitCSV(\"\") should be nil")
	}
}
