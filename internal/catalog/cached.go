package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tbourn/go-game-watchlist/internal/cache"
	"github.com/tbourn/go-game-watchlist/internal/utils"
)

// Cached decorates a Gateway with a response cache. Detailed records and
// listing pages have separate TTLs; a zero TTL disables caching of that kind.
// Cache failures never fail a request.
type Cached struct {
	Next      Gateway
	Cache     cache.Cache
	RecordTTL time.Duration
	ListTTL   time.Duration
}

// NewCached wraps next.
func NewCached(next Gateway, c cache.Cache, recordTTL, listTTL time.Duration) *Cached {
	return &Cached{Next: next, Cache: c, RecordTTL: recordTTL, ListTTL: listTTL}
}

// Search implements Gateway.
func (g *Cached) Search(ctx context.Context, query string, limit, offset int) ([]Record, error) {
	key := fmt.Sprintf("catalog:search:%s:%d:%d", utils.Fold(query), limit, offset)
	return g.list(ctx, key, func() ([]Record, error) { return g.Next.Search(ctx, query, limit, offset) })
}

// SearchByGenre implements Gateway.
func (g *Cached) SearchByGenre(ctx context.Context, genre string, limit, offset int) ([]Record, error) {
	key := fmt.Sprintf("catalog:genre:%s:%d:%d", utils.Fold(genre), limit, offset)
	return g.list(ctx, key, func() ([]Record, error) { return g.Next.SearchByGenre(ctx, genre, limit, offset) })
}

// ListPopular implements Gateway.
func (g *Cached) ListPopular(ctx context.Context, limit, offset int) ([]Record, error) {
	key := fmt.Sprintf("catalog:popular:%d:%d", limit, offset)
	return g.list(ctx, key, func() ([]Record, error) { return g.Next.ListPopular(ctx, limit, offset) })
}

// GetByID implements Gateway. Misses are not cached.
func (g *Cached) GetByID(ctx context.Context, id int64) (*Record, error) {
	key := fmt.Sprintf("catalog:game:%d", id)
	var rec Record
	if g.load(ctx, key, g.RecordTTL, &rec) {
		return &rec, nil
	}
	r, err := g.Next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	g.store(ctx, key, g.RecordTTL, r)
	return r, nil
}

func (g *Cached) list(ctx context.Context, key string, fetch func() ([]Record, error)) ([]Record, error) {
	var out []Record
	if g.load(ctx, key, g.ListTTL, &out) {
		return out, nil
	}
	out, err := fetch()
	if err != nil {
		return nil, err
	}
	g.store(ctx, key, g.ListTTL, out)
	return out, nil
}

func (g *Cached) load(ctx context.Context, key string, ttl time.Duration, dst any) bool {
	if g.Cache == nil || ttl <= 0 {
		return false
	}
	b, ok, err := g.Cache.Get(ctx, key)
	if err != nil || !ok {
		return false
	}
	return json.Unmarshal(b, dst) == nil
}

func (g *Cached) store(ctx context.Context, key string, ttl time.Duration, v any) {
	if g.Cache == nil || ttl <= 0 {
		return
	}
	if b, err := json.Marshal(v); err == nil {
		_ = g.Cache.Set(ctx, key, b, ttl)
	}
}
