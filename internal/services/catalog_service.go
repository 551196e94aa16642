// Package services – CatalogService
//
// This file implements catalog browsing: search, genre listing, popular games
// and single-game lookup. Results are catalog summaries annotated with the
// local average rating of games that have been imported. When the catalog is
// unavailable, search answers from the in-memory index of local games.
package services

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-game-watchlist/internal/catalog"
	"github.com/tbourn/go-game-watchlist/internal/domain"
	"github.com/tbourn/go-game-watchlist/internal/repo"
	"github.com/tbourn/go-game-watchlist/internal/search"
	"github.com/tbourn/go-game-watchlist/internal/utils"
)

// Catalog page sizes.
const (
	DefaultPageSize = 20
	MaxPageSize     = 50
)

// CatalogPage is one page of catalog summaries. Fallback is set when the
// items come from the local index because the catalog could not be reached.
type CatalogPage struct {
	Items    []catalog.GameSummary `json:"items"`
	Page     int                   `json:"page"`
	Limit    int                   `json:"limit"`
	Fallback bool                  `json:"fallback"`
}

// CatalogService reads the external catalog.
type CatalogService struct {
	DB      *gorm.DB
	Catalog catalog.Gateway
	Index   search.Index
}

// Search returns the catalog games matching query.
func (s *CatalogService) Search(ctx context.Context, query string, page, limit int) (*CatalogPage, error) {
	tr := otel.Tracer("services/CatalogService")
	ctx, span := tr.Start(ctx, "Search",
		trace.WithAttributes(
			attribute.String("query", query),
			attribute.Int("page", page),
		),
	)
	defer span.End()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	offset, size := utils.PageWindow(page, limit, DefaultPageSize, MaxPageSize)

	recs, err := s.Catalog.Search(ctx, query, size, offset)
	if err != nil {
		if errors.Is(err, catalog.ErrUpstream) && s.Index != nil {
			log.Warn().Err(err).Str("query", query).Msg("catalog unavailable, searching local index")
			span.SetAttributes(attribute.Bool("search.fallback", true))
			return s.fallback(ctx, query, offset, size)
		}
		return nil, upstream(err, ErrCatalogNotFound)
	}
	return s.page(ctx, recs, offset, size)
}

// CatalogGame returns a single catalog game.
func (s *CatalogService) CatalogGame(ctx context.Context, id int64) (*catalog.GameSummary, error) {
	rec, err := s.Catalog.GetByID(ctx, id)
	if err != nil {
		return nil, upstream(err, ErrCatalogNotFound)
	}
	items, err := s.annotate(ctx, []catalog.Record{*rec})
	if err != nil {
		return nil, err
	}
	return &items[0], nil
}

// GamesByGenre lists the catalog games of a genre. An empty first page means
// the genre is unknown or has no games and yields ErrGenreEmpty.
func (s *CatalogService) GamesByGenre(ctx context.Context, genre string, page, limit int) (*CatalogPage, error) {
	tr := otel.Tracer("services/CatalogService")
	ctx, span := tr.Start(ctx, "GamesByGenre", trace.WithAttributes(attribute.String("genre", genre)))
	defer span.End()

	offset, size := utils.PageWindow(page, limit, DefaultPageSize, MaxPageSize)
	recs, err := s.Catalog.SearchByGenre(ctx, strings.TrimSpace(genre), size, offset)
	if err != nil {
		return nil, upstream(err, ErrGenreEmpty)
	}
	if len(recs) == 0 && offset == 0 {
		return nil, ErrGenreEmpty
	}
	return s.page(ctx, recs, offset, size)
}

// Popular lists the most rated catalog games.
func (s *CatalogService) Popular(ctx context.Context, page, limit int) (*CatalogPage, error) {
	offset, size := utils.PageWindow(page, limit, DefaultPageSize, MaxPageSize)
	recs, err := s.Catalog.ListPopular(ctx, size, offset)
	if err != nil {
		return nil, upstream(err, ErrCatalogNotFound)
	}
	return s.page(ctx, recs, offset, size)
}

func (s *CatalogService) page(ctx context.Context, recs []catalog.Record, offset, size int) (*CatalogPage, error) {
	items, err := s.annotate(ctx, recs)
	if err != nil {
		return nil, err
	}
	return &CatalogPage{Items: items, Page: offset/size + 1, Limit: size}, nil
}

// annotate summarizes recs and fills SystemAverage for imported games.
func (s *CatalogService) annotate(ctx context.Context, recs []catalog.Record) ([]catalog.GameSummary, error) {
	ids := make([]int64, 0, len(recs))
	for _, r := range recs {
		ids = append(ids, r.ID)
	}
	local, err := repo.LocalRatings(ctx, s.DB, ids)
	if err != nil {
		return nil, err
	}

	out := make([]catalog.GameSummary, 0, len(recs))
	for _, r := range recs {
		sum := catalog.Summarize(r)
		if avg, ok := local[r.ID]; ok {
			v := avg
			sum.SystemAverage = &v
		}
		out = append(out, sum)
	}
	return out, nil
}

// fallback answers a search from the local index.
func (s *CatalogService) fallback(ctx context.Context, query string, offset, size int) (*CatalogPage, error) {
	hits := s.Index.TopK(query, offset+size)
	if offset >= len(hits) {
		hits = nil
	} else {
		hits = hits[offset:]
	}

	ids := make([]uint, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.ID)
	}
	games, err := repo.GamesByIDs(ctx, s.DB, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]domain.Game, len(games))
	for _, g := range games {
		byID[g.ID] = g
	}

	items := make([]catalog.GameSummary, 0, len(hits))
	for _, h := range hits {
		g, ok := byID[h.ID]
		if !ok {
			continue
		}
		items = append(items, localSummary(g))
	}
	return &CatalogPage{Items: items, Page: offset/size + 1, Limit: size, Fallback: true}, nil
}

// localSummary renders an imported game in the catalog summary shape. The id
// is the catalog id when known.
func localSummary(g domain.Game) catalog.GameSummary {
	v := NewGameView(g)
	sum := catalog.GameSummary{
		ID:          int64(g.ID),
		Name:        g.Title,
		Summary:     g.Description,
		Screenshots: []string{},
		Videos:      []string{},
		Genres:      v.Genres,
		CriticScore: g.CriticScore,
	}
	if g.ExternalID != nil {
		sum.ID = *g.ExternalID
	}
	if g.CoverURL != nil {
		sum.CoverURL = *g.CoverURL
	}
	if v.Developer != nil {
		sum.Developer = &v.Developer.Name
	}
	if v.Publisher != nil {
		sum.Publisher = &v.Publisher.Name
	}
	avg := g.AverageRating
	sum.SystemAverage = &avg
	return sum
}

// BuildIndex loads every local game into a fresh search index.
func BuildIndex(ctx context.Context, db *gorm.DB, opts ...search.Option) (*search.Memory, error) {
	games, err := repo.ListGamesForIndex(ctx, db)
	if err != nil {
		return nil, err
	}
	docs := make([]search.Doc, 0, len(games))
	for _, g := range games {
		docs = append(docs, indexDoc(g))
	}
	return search.NewIndex(docs, opts...), nil
}
