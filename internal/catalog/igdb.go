package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// Defaults for Config fields left zero.
const (
	DefaultBaseURL = "https://api.igdb.com/v4"
	DefaultAuthURL = "https://id.twitch.tv/oauth2/token"

	defaultTimeout    = 10 * time.Second
	defaultRPS        = 4 // IGDB allows four requests per second
	defaultMaxRetries = 3
	defaultRetryDelay = 500 * time.Millisecond
	maxRetryDelay     = 8 * time.Second

	// tokenSkew is subtracted from expires_in so a token is never used at
	// the edge of its lifetime.
	tokenSkew = 60 * time.Second

	// minTokenLifetime keeps short-lived tokens cached for a while instead
	// of fetching one per request.
	minTokenLifetime = 30 * time.Second
)

// Config configures Client.
type Config struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
	AuthURL      string
	Timeout      time.Duration
	RPS          float64
	// MaxRetries bounds retries of one request; negative disables them.
	MaxRetries int
	RetryDelay time.Duration

	// HTTPClient overrides the transport; Timeout is ignored when set.
	HTTPClient *http.Client
}

// Client is a Gateway backed by the IGDB v4 API. It authenticates with the
// Twitch client-credentials flow, throttles itself client-side, and retries
// rate-limited and server-side failures. It is safe for concurrent use.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter

	tokens   singleflight.Group
	mu       sync.Mutex
	token    string
	tokenExp time.Time
	now      func() time.Time
}

// NewClient returns a Client with zero Config fields defaulted.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = DefaultAuthURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RPS <= 0 {
		cfg.RPS = defaultRPS
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	} else if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	burst := int(cfg.RPS)
	if burst < 1 {
		burst = 1
	}
	return &Client{
		cfg:     cfg,
		http:    hc,
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), burst),
		now:     time.Now,
	}
}

// Search implements Gateway.
func (c *Client) Search(ctx context.Context, query string, limit, offset int) ([]Record, error) {
	var out []Record
	if err := c.post(ctx, "games", searchQuery(query, limit, offset), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetByID implements Gateway.
func (c *Client) GetByID(ctx context.Context, id int64) (*Record, error) {
	var out []Record
	if err := c.post(ctx, "games", byIDQuery(id), &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return &out[0], nil
}

// SearchByGenre implements Gateway. Unknown genres yield an empty list.
func (c *Client) SearchByGenre(ctx context.Context, genre string, limit, offset int) ([]Record, error) {
	id, ok := GenreID(genre)
	if !ok {
		var found []Named
		if err := c.post(ctx, "genres", genreLookupQuery(genre), &found); err != nil {
			return nil, err
		}
		if len(found) == 0 || found[0].ID == 0 {
			return []Record{}, nil
		}
		id = found[0].ID
	}
	var out []Record
	if err := c.post(ctx, "games", byGenreQuery(id, limit, offset), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListPopular implements Gateway.
func (c *Client) ListPopular(ctx context.Context, limit, offset int) ([]Record, error) {
	var out []Record
	if err := c.post(ctx, "games", popularQuery(limit, offset), &out); err != nil {
		return nil, err
	}
	return out, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// accessToken returns the cached token or fetches a new one. Concurrent
// callers share one fetch, and a caller whose context ends stops waiting
// without cancelling the fetch for the others.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	if tok, ok := c.cachedToken(); ok {
		return tok, nil
	}
	ch := c.tokens.DoChan("token", func() (any, error) {
		if tok, ok := c.cachedToken(); ok {
			return tok, nil
		}
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.Timeout)
		defer cancel()
		return c.fetchToken(fctx)
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (c *Client) cachedToken() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && c.now().Before(c.tokenExp) {
		return c.token, true
	}
	return "", false
}

// fetchToken runs the client-credentials grant and caches the result.
func (c *Client) fetchToken(ctx context.Context) (string, error) {
	q := url.Values{}
	q.Set("client_id", c.cfg.ClientID)
	q.Set("client_secret", c.cfg.ClientSecret)
	q.Set("grant_type", "client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.AuthURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		observeUpstream("token", "error", started)
		return "", &UpstreamError{Status: http.StatusServiceUnavailable, Message: "catalog authentication failed: " + err.Error()}
	}
	defer resp.Body.Close()
	observeUpstream("token", strconv.Itoa(resp.StatusCode), started)

	if resp.StatusCode != http.StatusOK {
		return "", &UpstreamError{Status: http.StatusServiceUnavailable, Message: "catalog authentication failed, check client id and secret"}
	}
	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil || tr.AccessToken == "" {
		return "", &UpstreamError{Status: http.StatusServiceUnavailable, Message: "catalog authentication returned no token"}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = tr.AccessToken
	c.tokenExp = c.now().Add(tokenLifetime(tr.ExpiresIn))
	return c.token, nil
}

// tokenLifetime is expires_in minus tokenSkew, never below minTokenLifetime.
func tokenLifetime(expiresIn int64) time.Duration {
	d := time.Duration(expiresIn)*time.Second - tokenSkew
	if d < minTokenLifetime {
		d = minTokenLifetime
	}
	return d
}

// dropToken forgets token if it is still the cached one.
func (c *Client) dropToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == token {
		c.token = ""
	}
}

// post sends an Apicalypse body to endpoint and decodes the JSON answer into
// out. 429 and 5xx answers are retried with exponential backoff, honoring
// Retry-After; a 401 refreshes the token once.
func (c *Client) post(ctx context.Context, endpoint, body string, out any) error {
	delay := c.cfg.RetryDelay
	refreshed := false
	var lastErr error

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
		token, err := c.accessToken(ctx)
		if err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/"+endpoint, strings.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Client-ID", c.cfg.ClientID)
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Content-Type", "text/plain")

		started := time.Now()
		resp, err := c.http.Do(req)
		if err != nil {
			observeUpstream(endpoint, "error", started)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = &UpstreamError{Status: http.StatusBadGateway, Message: err.Error()}
			if attempt < c.cfg.MaxRetries {
				if err := sleep(ctx, delay); err != nil {
					return err
				}
				delay = nextDelay(delay)
				continue
			}
			return lastErr
		}
		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
		resp.Body.Close()
		observeUpstream(endpoint, strconv.Itoa(resp.StatusCode), started)
		if readErr != nil {
			return &UpstreamError{Status: http.StatusBadGateway, Message: "failed to read response: " + readErr.Error()}
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			if err := json.Unmarshal(respBody, out); err != nil {
				return &UpstreamError{Status: http.StatusBadGateway, Message: "invalid catalog response: " + err.Error()}
			}
			return nil

		case resp.StatusCode == http.StatusUnauthorized && !refreshed:
			// Token revoked or expired early; fetch a new one and retry at once.
			refreshed = true
			c.dropToken(token)
			attempt--
			continue

		case shouldRetry(resp.StatusCode) && attempt < c.cfg.MaxRetries:
			lastErr = upstreamStatus(resp.StatusCode, respBody)
			wait := delay
			if ra, ok := retryAfter(resp.Header.Get("Retry-After")); ok {
				wait = ra
			}
			if err := sleep(ctx, wait); err != nil {
				return err
			}
			delay = nextDelay(delay)
			continue

		default:
			return upstreamStatus(resp.StatusCode, respBody)
		}
	}
	if lastErr == nil {
		lastErr = &UpstreamError{Status: http.StatusBadGateway, Message: "catalog request failed"}
	}
	return lastErr
}

func upstreamStatus(code int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	var detail string
	switch code {
	case http.StatusUnauthorized:
		detail = "authentication rejected (401)"
	case http.StatusTooManyRequests:
		detail = "rate limit exceeded (429)"
	default:
		detail = fmt.Sprintf("status %d", code)
	}
	if msg != "" {
		detail += ": " + msg
	}
	return &UpstreamError{Status: http.StatusBadGateway, Message: detail}
}

func shouldRetry(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// retryAfter parses a Retry-After header given in seconds, capped at
// maxRetryDelay.
func retryAfter(v string) (time.Duration, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 0 {
		return 0, false
	}
	d := time.Duration(n) * time.Second
	if d > maxRetryDelay {
		d = maxRetryDelay
	}
	return d, true
}

func nextDelay(d time.Duration) time.Duration {
	d *= 2
	if d > maxRetryDelay {
		return maxRetryDelay
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IsAuthFailure reports whether err is an upstream error caused by failed
// authentication with the catalog.
func IsAuthFailure(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.Status == http.StatusServiceUnavailable
}
