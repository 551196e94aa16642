// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements response replay for unsafe HTTP methods. A request
// carrying an Idempotency-Key header is answered from the store when the same
// user already completed it on the same method and path; otherwise the
// handler runs and a successful response is recorded for later retries.
package middleware

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey is the request header carrying the client's key.
const HeaderIdempotencyKey = "Idempotency-Key"

// HeaderIdempotentReplayed is set to "true" on replayed responses.
const HeaderIdempotentReplayed = "Idempotent-Replayed"

const ctxKeyIdemKey = "idem.key"

// ErrNoStoredResponse is returned by IdempotencyStore.Lookup on a miss.
var ErrNoStoredResponse = errors.New("no stored response")

// StoredResponse is a previously recorded response.
type StoredResponse struct {
	Status int
	Body   []byte
}

// IdempotencyStore persists completed responses by (user, scope, key).
type IdempotencyStore interface {
	Lookup(ctx context.Context, userID, scope, key string, now time.Time) (*StoredResponse, error)
	Save(ctx context.Context, userID, scope, key string, status int, body []byte) error
}

// IdempotencyOptions configures Idempotency.
type IdempotencyOptions struct {
	// MaxLen caps the accepted key length. Values <= 0 default to 200.
	MaxLen int
	// Pattern restricts allowed characters. Defaults to ^[A-Za-z0-9._~\-:]+$.
	Pattern *regexp.Regexp
}

var defaultIdemPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// GetIdempotencyKey returns the validated key stored by Idempotency.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// idemWriter tees the response body so it can be stored after the handler.
type idemWriter struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *idemWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *idemWriter) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotency replays stored responses for POST, PUT, PATCH and DELETE
// requests that carry a valid key. Requests without the header pass through.
// A malformed key is rejected with 400. Store failures never fail the request.
// Only 2xx responses are recorded.
func Idempotency(store IdempotencyStore, opts IdempotencyOptions) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = defaultIdemPattern
	}

	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		default:
			c.Next()
			return
		}
		raw, present := c.Request.Header[HeaderIdempotencyKey]
		if !present {
			c.Next()
			return
		}
		key := ""
		if len(raw) > 0 {
			key = strings.TrimSpace(raw[0])
		}
		if key == "" || len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "bad_request",
				"message":    "invalid " + HeaderIdempotencyKey + " (max " + strconv.Itoa(maxLen) + " chars, allowed [A-Za-z0-9._~-:])",
			})
			return
		}
		c.Set(ctxKeyIdemKey, key)
		if store == nil {
			c.Next()
			return
		}

		uid := UserID(c)
		scope := c.Request.Method + " " + c.Request.URL.Path
		ctx := c.Request.Context()

		rec, err := store.Lookup(ctx, uid, scope, key, time.Now().UTC())
		switch {
		case err == nil && rec != nil:
			c.Header(HeaderIdempotentReplayed, "true")
			if len(rec.Body) == 0 {
				c.AbortWithStatus(rec.Status)
				return
			}
			c.Data(rec.Status, "application/json; charset=utf-8", rec.Body)
			c.Abort()
			return
		case err != nil && !errors.Is(err, ErrNoStoredResponse):
			LoggerFrom(c).Warn().Err(err).Msg("idempotency lookup failed")
		}

		w := &idemWriter{ResponseWriter: c.Writer}
		c.Writer = w
		c.Next()

		status := w.Status()
		if status < 200 || status >= 300 {
			return
		}
		if err := store.Save(ctx, uid, scope, key, status, w.buf.Bytes()); err != nil {
			LoggerFrom(c).Warn().Err(err).Msg("idempotency save failed")
		}
	}
}
