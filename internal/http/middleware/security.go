package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// SecurityOptions selects the optional header groups sent by SecurityHeaders.
// HSTS is only ever sent on HTTPS requests, whether terminated here or at a
// proxy that sets X-Forwarded-Proto.
type SecurityOptions struct {
	EnableHSTS   bool
	HSTSMaxAge   time.Duration // defaults to 180 days
	NoStore      bool          // Cache-Control: no-store plus legacy Pragma/Expires
	EnablePolicy bool          // Permissions-Policy and X-Permitted-Cross-Domain-Policies
}

type headerPair struct{ name, value string }

// SecurityHeaders hardens every response of the API. The watchlist API only
// serves JSON, so no Content-Security-Policy is set here; the swagger UI
// brings its own.
//
// When the request carries a correlation id, the id, the list ETag and the
// idempotent replay marker are appended to Access-Control-Expose-Headers
// without dropping what CORS already exposed.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	static := []headerPair{
		{"X-Content-Type-Options", "nosniff"},
		{"X-Frame-Options", "DENY"},
		{"Referrer-Policy", "no-referrer"},
	}
	if opt.EnablePolicy {
		static = append(static,
			headerPair{"Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()"},
			headerPair{"X-Permitted-Cross-Domain-Policies", "none"},
		)
	}
	if opt.NoStore {
		static = append(static,
			headerPair{"Cache-Control", "no-store"},
			headerPair{"Pragma", "no-cache"},
			headerPair{"Expires", "0"},
		)
	}

	age := opt.HSTSMaxAge
	if age <= 0 {
		age = 180 * 24 * time.Hour
	}
	hsts := "max-age=" + strconv.FormatInt(int64(age/time.Second), 10) + "; includeSubDomains; preload"

	return func(c *gin.Context) {
		h := c.Writer.Header()
		for _, p := range static {
			h.Set(p.name, p.value)
		}
		if opt.EnableHSTS && viaTLS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}
		if h.Get(requestIDHeader) != "" {
			exposeHeaders(h, requestIDHeader, "ETag", HeaderIdempotentReplayed)
		}
		c.Next()
	}
}

func viaTLS(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// exposeHeaders appends the names not yet listed in
// Access-Control-Expose-Headers, keeping the existing order.
func exposeHeaders(h http.Header, names ...string) {
	const hdr = "Access-Control-Expose-Headers"
	var list []string
	seen := map[string]bool{}
	for _, part := range strings.Split(h.Get(hdr), ",") {
		if part = strings.TrimSpace(part); part != "" {
			list = append(list, part)
			seen[strings.ToLower(part)] = true
		}
	}
	for _, n := range names {
		if !seen[strings.ToLower(n)] {
			list = append(list, n)
			seen[strings.ToLower(n)] = true
		}
	}
	h.Set(hdr, strings.Join(list, ", "))
}
