// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file resolves the caller identity. Tokens are issued by the external
// auth service; this process only verifies them. With a configured secret a
// Bearer token is verified as an HS256 JWT and its subject becomes the user
// id. Without one, the X-User-ID development header is trusted and requests
// without it act as "demo-user".
package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// UserIDKey is the Gin context key holding the resolved user id.
	UserIDKey = "userID"
	// HeaderUserID is the development identity header.
	HeaderUserID = "X-User-ID"
	// DemoUser is the identity of anonymous requests in development mode.
	DemoUser = "demo-user"
)

// AuthOptions configures Authenticate.
type AuthOptions struct {
	// Secret is the shared HS256 key. Empty selects development mode.
	Secret []byte
	// Issuer, when set, must match the token's iss claim.
	Issuer string
	// Leeway tolerates clock skew on exp/nbf.
	Leeway time.Duration
}

// ErrMissingToken is returned by VerifyToken for an empty token.
var ErrMissingToken = errors.New("missing bearer token")

// Authenticate stores the caller's user id under UserIDKey.
//
// In JWT mode a missing or invalid token is answered with 401. In development
// mode the X-User-ID header is used, falling back to DemoUser.
func Authenticate(opts AuthOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(opts.Secret) == 0 {
			uid := strings.TrimSpace(c.GetHeader(HeaderUserID))
			if uid == "" {
				uid = DemoUser
			}
			c.Set(UserIDKey, uid)
			c.Next()
			return
		}

		raw, ok := bearer(c.GetHeader("Authorization"))
		if !ok {
			unauthorized(c, "missing or malformed Authorization header")
			return
		}
		sub, err := VerifyToken(raw, opts)
		if err != nil {
			unauthorized(c, "invalid token")
			return
		}
		c.Set(UserIDKey, sub)
		c.Next()
	}
}

// VerifyToken checks an HS256 token and returns its subject.
func VerifyToken(raw string, opts AuthOptions) (string, error) {
	if raw == "" {
		return "", ErrMissingToken
	}
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(opts.Leeway),
	}
	if opts.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(opts.Issuer))
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return opts.Secret, nil
	}, parserOpts...)
	if err != nil {
		return "", err
	}
	sub := strings.TrimSpace(claims.Subject)
	if sub == "" {
		return "", errors.New("token has no subject")
	}
	return sub, nil
}

// UserID returns the identity stored by Authenticate, or DemoUser when the
// middleware did not run.
func UserID(c *gin.Context) string {
	if v, ok := c.Get(UserIDKey); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return DemoUser
}

func bearer(h string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(h), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", `Bearer realm="api"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       "unauthorized",
		"message":    msg,
	})
}
