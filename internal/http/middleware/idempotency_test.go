package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

type memStore struct {
	mu      sync.Mutex
	entries map[string]StoredResponse
	saves   int
	failGet bool
}

func newMemStore() *memStore { return &memStore{entries: map[string]StoredResponse{}} }

func (m *memStore) Lookup(_ context.Context, userID, scope, key string, _ time.Time) (*StoredResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet {
		return nil, errors.New("db down")
	}
	r, ok := m.entries[userID+"|"+scope+"|"+key]
	if !ok {
		return nil, ErrNoStoredResponse
	}
	return &r, nil
}

func (m *memStore) Save(_ context.Context, userID, scope, key string, status int, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.entries[userID+"|"+scope+"|"+key] = StoredResponse{Status: status, Body: append([]byte(nil), body...)}
	return nil
}

func idemRouter(store IdempotencyStore, calls *int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Authenticate(AuthOptions{}), Idempotency(store, IdempotencyOptions{}))
	r.POST("/watchlists", func(c *gin.Context) {
		*calls++
		c.JSON(http.StatusCreated, gin.H{"n": *calls})
	})
	r.POST("/fail", func(c *gin.Context) {
		*calls++
		c.JSON(http.StatusConflict, gin.H{"code": "conflict"})
	})
	r.GET("/watchlists", func(c *gin.Context) {
		*calls++
		c.Status(http.StatusOK)
	})
	return r
}

func post(r http.Handler, path, key, user string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{}`))
	if key != "" {
		req.Header.Set(HeaderIdempotencyKey, key)
	}
	if user != "" {
		req.Header.Set(HeaderUserID, user)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestIdempotency_ReplaysStoredResponse(t *testing.T) {
	store := newMemStore()
	calls := 0
	r := idemRouter(store, &calls)

	first := post(r, "/watchlists", "k-1", "u1")
	if first.Code != http.StatusCreated || first.Header().Get(HeaderIdempotentReplayed) != "" {
		t.Fatalf("first: code=%d replayed=%q", first.Code, first.Header().Get(HeaderIdempotentReplayed))
	}
	second := post(r, "/watchlists", "k-1", "u1")
	if second.Code != http.StatusCreated || second.Header().Get(HeaderIdempotentReplayed) != "true" {
		t.Fatalf("second: code=%d replayed=%q", second.Code, second.Header().Get(HeaderIdempotentReplayed))
	}
	if second.Body.String() != first.Body.String() {
		t.Fatalf("replayed body = %q; want %q", second.Body.String(), first.Body.String())
	}
	if calls != 1 {
		t.Fatalf("handler calls = %d; want 1", calls)
	}

	// Same key for another user is a fresh request.
	if w := post(r, "/watchlists", "k-1", "u2"); w.Header().Get(HeaderIdempotentReplayed) != "" || calls != 2 {
		t.Fatalf("other user replayed: calls=%d", calls)
	}
}

func TestIdempotency_NoKeyAndSafeMethodsPassThrough(t *testing.T) {
	store := newMemStore()
	calls := 0
	r := idemRouter(store, &calls)

	post(r, "/watchlists", "", "u1")
	post(r, "/watchlists", "", "u1")
	if calls != 2 || store.saves != 0 {
		t.Fatalf("calls=%d saves=%d; want 2 and 0", calls, store.saves)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/watchlists", nil)
	req.Header.Set(HeaderIdempotencyKey, "k")
	r.ServeHTTP(w, req)
	if store.saves != 0 {
		t.Fatal("GET must not be recorded")
	}
}

func TestIdempotency_InvalidKey(t *testing.T) {
	calls := 0
	r := idemRouter(newMemStore(), &calls)
	for _, key := range []string{"has space", strings.Repeat("a", 201), "bad/char"} {
		if w := post(r, "/watchlists", key, "u1"); w.Code != http.StatusBadRequest {
			t.Fatalf("key %q: status = %d; want 400", key, w.Code)
		}
	}
	if calls != 0 {
		t.Fatalf("handler ran for invalid keys: %d", calls)
	}
}

func TestIdempotency_FailuresNotRecorded(t *testing.T) {
	store := newMemStore()
	calls := 0
	r := idemRouter(store, &calls)

	post(r, "/fail", "k-2", "u1")
	post(r, "/fail", "k-2", "u1")
	if calls != 2 || store.saves != 0 {
		t.Fatalf("calls=%d saves=%d; want 2 and 0", calls, store.saves)
	}
}

func TestIdempotency_LookupErrorRunsHandler(t *testing.T) {
	store := newMemStore()
	store.failGet = true
	calls := 0
	r := idemRouter(store, &calls)

	if w := post(r, "/watchlists", "k-3", "u1"); w.Code != http.StatusCreated || calls != 1 {
		t.Fatalf("code=%d calls=%d", w.Code, calls)
	}
}

func TestGetIdempotencyKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Idempotency(nil, IdempotencyOptions{}))
	var got string
	r.POST("/x", func(c *gin.Context) {
		got, _ = GetIdempotencyKey(c)
		c.Status(http.StatusNoContent)
	})
	post(r, "/x", "  abc  ", "")
	if got != "abc" {
		t.Fatalf("key = %q; want abc", got)
	}
}
