package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-game-watchlist/internal/cache"
	"github.com/tbourn/go-game-watchlist/internal/catalog"
	"github.com/tbourn/go-game-watchlist/internal/config"
	"github.com/tbourn/go-game-watchlist/internal/http/middleware"
	"github.com/tbourn/go-game-watchlist/internal/repo"
	"github.com/tbourn/go-game-watchlist/internal/search"
)

// --- in-memory catalog ---
type fakeCatalog struct {
	games map[int64]catalog.Record
}

func (f fakeCatalog) Search(_ context.Context, _ string, _, _ int) ([]catalog.Record, error) {
	return nil, nil
}

func (f fakeCatalog) GetByID(_ context.Context, id int64) (*catalog.Record, error) {
	rec, ok := f.games[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return &rec, nil
}

func (f fakeCatalog) SearchByGenre(_ context.Context, _ string, _, _ int) ([]catalog.Record, error) {
	return nil, nil
}

func (f fakeCatalog) ListPopular(_ context.Context, _, _ int) ([]catalog.Record, error) {
	return nil, nil
}

// --- test DB helper (pure-Go sqlite, no CGO) ---
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:router_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func testConfig() config.Config {
	return config.Config{
		APIBasePath:    "/api/v1",
		MaxBodyBytes:   1 << 20,
		RateRPS:        100,
		RateBurst:      50,
		IdempotencyTTL: time.Hour,
		OTEL:           config.OTELConfig{ServiceName: "test-svc"},
	}
}

func newTestRouter(t *testing.T, cfg config.Config) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	r := gin.New()
	RegisterRoutes(r, Deps{
		DB: db,
		Catalog: fakeCatalog{games: map[int64]catalog.Record{
			1942: {ID: 1942, Name: "Hades", Summary: "Roguelike"},
		}},
		Locks: cache.NewLocalLocker(),
		Index: search.NewIndex(nil),
	}, cfg)
	return r, db
}

func send(r http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterRoutes_Health_Metrics_Fallbacks(t *testing.T) {
	r, _ := newTestRouter(t, testConfig())

	w := send(r, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if rid := w.Header().Get("X-Request-ID"); rid == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("security headers missing, X-Content-Type-Options=%q", got)
	}

	w = send(r, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "http_requests_total") {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}

	w = send(r, http.MethodGet, "/nope", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}

	w = send(r, http.MethodPost, "/health", "")
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}

	w = send(r, http.MethodGet, "/swagger/index.html", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("swagger should be off by default, got %d", w.Code)
	}
}

func TestRegisterRoutes_CORS(t *testing.T) {
	t.Run("allow all", func(t *testing.T) {
		r, _ := newTestRouter(t, testConfig())
		w := send(r, http.MethodGet, "/health", "", "Origin", "http://anywhere.test")
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
			t.Fatalf("AllowAllOrigins expected '*', got %q", got)
		}
	})

	t.Run("allowlist", func(t *testing.T) {
		cfg := testConfig()
		// httptest requests carry Host example.com, so the allowed origin must
		// differ from it or cors treats the call as same-origin.
		cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"http://app.test"}}
		r, _ := newTestRouter(t, cfg)

		w := send(r, http.MethodGet, "/health", "", "Origin", "http://app.test")
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://app.test" {
			t.Fatalf("expected ACAO echo, got %q", got)
		}
		w = send(r, http.MethodGet, "/health", "", "Origin", "http://evil.test")
		if w.Code != http.StatusForbidden {
			t.Fatalf("disallowed origin expected 403, got %d", w.Code)
		}
	})
}

func TestRegisterRoutes_SwaggerEnabled(t *testing.T) {
	cfg := testConfig()
	cfg.SwaggerEnabled = true
	r, _ := newTestRouter(t, cfg)

	w := send(r, http.MethodGet, "/swagger/index.html", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /swagger/index.html = %d", w.Code)
	}
}

func TestRegisterRoutes_WatchlistFlow_WithIdempotentReplay(t *testing.T) {
	r, db := newTestRouter(t, testConfig())
	user := []string{middleware.HeaderUserID, "alice"}

	create := func() *httptest.ResponseRecorder {
		return send(r, http.MethodPost, "/api/v1/watchlists", `{"name":"Backlog"}`,
			append(user, middleware.HeaderIdempotencyKey, "create-backlog-1")...)
	}
	w1 := create()
	if w1.Code != http.StatusCreated {
		t.Fatalf("create = %d body=%s", w1.Code, w1.Body.String())
	}
	w2 := create()
	if w2.Code != http.StatusCreated || w2.Header().Get(middleware.HeaderIdempotentReplayed) != "true" {
		t.Fatalf("replay = %d replayed=%q", w2.Code, w2.Header().Get(middleware.HeaderIdempotentReplayed))
	}
	if w1.Body.String() != w2.Body.String() {
		t.Fatalf("replayed body differs:\n%s\n%s", w1.Body.String(), w2.Body.String())
	}
	if n, _, err := repo.WatchlistsStats(context.Background(), db, "alice"); err != nil || n != 1 {
		t.Fatalf("expected exactly one watchlist, got %d (%v)", n, err)
	}

	var created struct {
		ID uint `json:"id"`
	}
	if err := json.Unmarshal(w1.Body.Bytes(), &created); err != nil || created.ID == 0 {
		t.Fatalf("decode create: %v (%s)", err, w1.Body.String())
	}
	base := fmt.Sprintf("/api/v1/watchlists/%d", created.ID)

	w := send(r, http.MethodPost, base+"/games", `{"game_id":1942}`, user...)
	if w.Code != http.StatusCreated {
		t.Fatalf("add game = %d body=%s", w.Code, w.Body.String())
	}
	w = send(r, http.MethodPost, base+"/games", `{"game_id":1942}`, user...)
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate add = %d body=%s", w.Code, w.Body.String())
	}
	w = send(r, http.MethodPost, base+"/games", `{"game_id":7}`, user...)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown catalog game = %d body=%s", w.Code, w.Body.String())
	}

	w = send(r, http.MethodPost, "/api/v1/games/1942/reviews", `{"score":8.5}`, user...)
	if w.Code != http.StatusCreated {
		t.Fatalf("review = %d body=%s", w.Code, w.Body.String())
	}

	w = send(r, http.MethodGet, base, "", user...)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Hades") {
		t.Fatalf("detail = %d body=%s", w.Code, w.Body.String())
	}

	w = send(r, http.MethodGet, "/api/v1/rankings/top-rated", "", user...)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Hades") {
		t.Fatalf("top rated = %d body=%s", w.Code, w.Body.String())
	}

	// Another user may read but not delete.
	w = send(r, http.MethodDelete, base, "", middleware.HeaderUserID, "bob")
	if w.Code != http.StatusForbidden {
		t.Fatalf("foreign delete = %d body=%s", w.Code, w.Body.String())
	}
	w = send(r, http.MethodDelete, base, "", user...)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d body=%s", w.Code, w.Body.String())
	}
}

func TestRegisterRoutes_JWTMode(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = config.AuthConfig{JWTSecret: "sekret", Leeway: time.Second}
	r, _ := newTestRouter(t, cfg)

	w := send(r, http.MethodGet, "/api/v1/watchlists", "", middleware.HeaderUserID, "alice")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("dev header in JWT mode = %d", w.Code)
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "alice",
		"exp": time.Now().Add(time.Minute).Unix(),
	})
	raw, err := tok.SignedString([]byte("sekret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	w = send(r, http.MethodGet, "/api/v1/watchlists", "", "Authorization", "Bearer "+raw)
	if w.Code != http.StatusOK {
		t.Fatalf("authorized list = %d body=%s", w.Code, w.Body.String())
	}

	// Health stays public.
	if w := send(r, http.MethodGet, "/health", ""); w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
}

func TestIdempotencyStore_LookupMissAndHit(t *testing.T) {
	db := newTestDB(t)
	s := idempotencyStore{db: db, ttl: time.Hour}
	ctx := context.Background()

	if _, err := s.Lookup(ctx, "u1", "POST /x", "k", time.Now()); err != middleware.ErrNoStoredResponse {
		t.Fatalf("miss err = %v", err)
	}
	if err := s.Save(ctx, "u1", "POST /x", "k", http.StatusCreated, []byte(`{"ok":true}`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.Lookup(ctx, "u1", "POST /x", "k", time.Now())
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.Status != http.StatusCreated || string(got.Body) != `{"ok":true}` {
		t.Fatalf("stored = %+v", got)
	}
	if _, err := s.Lookup(ctx, "u1", "POST /x", "k", time.Now().Add(2*time.Hour)); err != middleware.ErrNoStoredResponse {
		t.Fatalf("expired lookup err = %v", err)
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	// tiny cap to trigger MaxBytesReader
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		_, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := send(r, http.MethodPost, "/echo", "0123456789AB") // 12 bytes
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	// "/" and "" should mount at root
	groupWithPrefix(r, "/").GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	groupWithPrefix(r, "").GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })
	groupWithPrefix(r, "/api").GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, want := range map[string]string{"/one": "one", "/two": "two", "/api/ping": "pong"} {
		w := send(r, http.MethodGet, path, "")
		if w.Code != http.StatusOK || w.Body.String() != want {
			t.Fatalf("GET %s got %d %q", path, w.Code, w.Body.String())
		}
	}
}
