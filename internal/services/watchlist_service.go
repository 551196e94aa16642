// Package services – WatchlistService
//
// This file implements the ownership layer over WatchlistStore. Every mutation
// first checks that the target watchlist exists and belongs to the caller.
// Catalog games are imported through the Resolver before they are listed.
package services

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-game-watchlist/internal/domain"
	"github.com/tbourn/go-game-watchlist/internal/repo"
)

// MaxWatchlistName caps watchlist names by rune length.
const MaxWatchlistName = 100

// GameResolver imports catalog games on demand.
type GameResolver interface {
	EnsureGameLocal(ctx context.Context, catalogID int64) (uint, error)
}

// WatchlistService provides user-facing watchlist operations.
type WatchlistService struct {
	DB       *gorm.DB
	Store    *WatchlistStore
	Resolver GameResolver
	Query    *QueryService
}

// NewWatchlistService wires a WatchlistService over db.
func NewWatchlistService(db *gorm.DB, r GameResolver) *WatchlistService {
	return &WatchlistService{
		DB:       db,
		Store:    &WatchlistStore{DB: db},
		Resolver: r,
		Query:    &QueryService{DB: db},
	}
}

// List returns the caller's watchlists, oldest first.
func (s *WatchlistService) List(ctx context.Context, userID string) ([]domain.Watchlist, error) {
	return repo.ListWatchlists(ctx, s.DB, userID)
}

// Stats returns the number of watchlists of userID and their latest update
// time, used to build list ETags.
func (s *WatchlistService) Stats(ctx context.Context, userID string) (int64, *time.Time, error) {
	return repo.WatchlistsStats(ctx, s.DB, userID)
}

// Create validates name and creates a watchlist owned by userID.
func (s *WatchlistService) Create(ctx context.Context, userID, name string) (*domain.Watchlist, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > MaxWatchlistName {
		return nil, ErrInvalidName
	}
	return s.Store.CreateWatchlist(ctx, userID, name)
}

// Detail returns the full view of a watchlist as seen by viewerID.
func (s *WatchlistService) Detail(ctx context.Context, viewerID string, watchlistID uint) (*WatchlistView, error) {
	return s.Query.WatchlistDetail(ctx, viewerID, watchlistID)
}

// Delete removes a watchlist owned by userID together with its memberships.
func (s *WatchlistService) Delete(ctx context.Context, userID string, watchlistID uint) error {
	if _, err := s.owned(ctx, userID, watchlistID); err != nil {
		return err
	}
	if err := repo.DeleteWatchlist(ctx, s.DB, watchlistID); err != nil {
		if isNotFound(err) {
			return ErrWatchlistNotFound
		}
		return err
	}
	return nil
}

// AddCatalogGame imports the catalog game if needed and lists it in the
// caller's watchlist.
func (s *WatchlistService) AddCatalogGame(ctx context.Context, userID string, watchlistID uint, catalogID int64) (*domain.WatchlistGame, error) {
	tr := otel.Tracer("services/WatchlistService")
	ctx, span := tr.Start(ctx, "AddCatalogGame",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int64("watchlist.id", int64(watchlistID)),
			attribute.Int64("catalog.id", catalogID),
		),
	)
	defer span.End()

	if _, err := s.owned(ctx, userID, watchlistID); err != nil {
		return nil, err
	}
	gameID, err := s.Resolver.EnsureGameLocal(ctx, catalogID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return s.Store.AddGame(ctx, watchlistID, gameID)
}

// RemoveGame removes a game from the caller's watchlist. gameRef is a catalog
// id or a local game id.
func (s *WatchlistService) RemoveGame(ctx context.Context, userID string, watchlistID uint, gameRef int64) error {
	if _, err := s.owned(ctx, userID, watchlistID); err != nil {
		return err
	}
	gameID, err := s.gameID(ctx, gameRef)
	if err != nil {
		return err
	}
	return s.Store.RemoveGame(ctx, watchlistID, gameID)
}

// UpdateStatus changes the play status of a listed game and returns the
// refreshed watchlist view. status accepts the API code or the stored label.
func (s *WatchlistService) UpdateStatus(ctx context.Context, userID string, watchlistID uint, gameRef int64, status string) (*WatchlistView, error) {
	tr := otel.Tracer("services/WatchlistService")
	ctx, span := tr.Start(ctx, "UpdateStatus",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int64("watchlist.id", int64(watchlistID)),
			attribute.String("status", status),
		),
	)
	defer span.End()

	st, ok := domain.ParseStatus(status)
	if !ok {
		return nil, ErrInvalidStatus
	}
	if _, err := s.owned(ctx, userID, watchlistID); err != nil {
		return nil, err
	}
	gameID, err := s.gameID(ctx, gameRef)
	if err != nil {
		return nil, err
	}
	if _, err := s.Store.UpdateStatus(ctx, watchlistID, gameID, st); err != nil {
		return nil, err
	}
	return s.Query.WatchlistDetail(ctx, userID, watchlistID)
}

// AddFavorite lists a catalog game in the caller's favorites list, creating
// the list on first use.
func (s *WatchlistService) AddFavorite(ctx context.Context, userID string, catalogID int64) (*domain.Watchlist, *domain.WatchlistGame, error) {
	tr := otel.Tracer("services/WatchlistService")
	ctx, span := tr.Start(ctx, "AddFavorite",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int64("catalog.id", catalogID),
		),
	)
	defer span.End()

	gameID, err := s.Resolver.EnsureGameLocal(ctx, catalogID)
	if err != nil {
		span.RecordError(err)
		return nil, nil, err
	}
	fav, err := s.Store.GetOrCreateFavorites(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	m, err := s.Store.AddGame(ctx, fav.ID, gameID)
	if err != nil {
		return nil, nil, err
	}
	return fav, m, nil
}

// RemoveFavorite removes a game from the caller's favorites list. A user
// without a favorites list gets ErrFavoritesNotFound.
func (s *WatchlistService) RemoveFavorite(ctx context.Context, userID string, gameRef int64) error {
	fav, err := repo.FindWatchlistByName(ctx, s.DB, userID, domain.FavoritesName)
	if err != nil {
		if isNotFound(err) {
			return ErrFavoritesNotFound
		}
		return err
	}
	gameID, err := s.gameID(ctx, gameRef)
	if err != nil {
		return err
	}
	return s.Store.RemoveGame(ctx, fav.ID, gameID)
}

// owned loads a watchlist and checks that userID owns it.
func (s *WatchlistService) owned(ctx context.Context, userID string, watchlistID uint) (*domain.Watchlist, error) {
	w, err := repo.GetWatchlist(ctx, s.DB, watchlistID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrWatchlistNotFound
		}
		return nil, err
	}
	if w.UserID != userID {
		return nil, ErrNotWatchlistOwner
	}
	return w, nil
}

// gameID resolves a catalog or local reference. Unknown games cannot be
// members, so they surface as ErrNotInWatchlist.
func (s *WatchlistService) gameID(ctx context.Context, ref int64) (uint, error) {
	id, ok, err := repo.ResolveGameRef(ctx, s.DB, ref)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrNotInWatchlist
	}
	return id, nil
}
