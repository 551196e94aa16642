// Package services – WatchlistStore
//
// This file implements the watchlist store: watchlist lifecycle, membership
// and per-membership play status. The store trusts its caller; ownership is
// checked by WatchlistService.
package services

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-game-watchlist/internal/domain"
	"github.com/tbourn/go-game-watchlist/internal/repo"
)

// WatchlistStore persists watchlists and memberships.
type WatchlistStore struct {
	DB *gorm.DB
}

// CreateWatchlist creates a list named name for userID. Names are not unique,
// except for the favorites list, which is returned when it already exists.
func (s *WatchlistStore) CreateWatchlist(ctx context.Context, userID, name string) (*domain.Watchlist, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrMissingUser
	}
	if name == domain.FavoritesName {
		return s.GetOrCreateFavorites(ctx, userID)
	}

	var w *domain.Watchlist
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.EnsureUser(ctx, tx, userID); err != nil {
			return err
		}
		var err error
		w, err = repo.CreateWatchlist(ctx, tx, userID, name)
		return err
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

// AddGame lists gameID in watchlistID with the default status. A second add
// of the same game fails with ErrAlreadyInWatchlist and leaves one row.
func (s *WatchlistStore) AddGame(ctx context.Context, watchlistID, gameID uint) (*domain.WatchlistGame, error) {
	tr := otel.Tracer("services/WatchlistStore")
	ctx, span := tr.Start(ctx, "AddGame",
		trace.WithAttributes(
			attribute.Int64("watchlist.id", int64(watchlistID)),
			attribute.Int64("game.id", int64(gameID)),
		),
	)
	defer span.End()

	var m *domain.WatchlistGame
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repo.GetWatchlist(ctx, tx, watchlistID); err != nil {
			if isNotFound(err) {
				return ErrWatchlistNotFound
			}
			return err
		}
		if _, err := repo.GetGame(ctx, tx, gameID); err != nil {
			if isNotFound(err) {
				return ErrGameNotFound
			}
			return err
		}

		exists, err := repo.MembershipExists(ctx, tx, watchlistID, gameID)
		if err != nil {
			return err
		}
		if exists {
			return ErrAlreadyInWatchlist
		}
		m, err = repo.AddMembership(ctx, tx, watchlistID, gameID)
		if err != nil {
			if isDuplicate(err) {
				return ErrAlreadyInWatchlist
			}
			return err
		}
		return repo.TouchWatchlist(ctx, tx, watchlistID)
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// RemoveGame deletes the membership, or fails with ErrNotInWatchlist.
func (s *WatchlistStore) RemoveGame(ctx context.Context, watchlistID, gameID uint) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.RemoveMembership(ctx, tx, watchlistID, gameID); err != nil {
			if isNotFound(err) {
				return ErrNotInWatchlist
			}
			return err
		}
		return repo.TouchWatchlist(ctx, tx, watchlistID)
	})
}

// UpdateStatus sets the play status of a membership and returns it.
func (s *WatchlistStore) UpdateStatus(ctx context.Context, watchlistID, gameID uint, status domain.Status) (*domain.WatchlistGame, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	var m *domain.WatchlistGame
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		m, err = repo.UpdateMembershipStatus(ctx, tx, watchlistID, gameID, status)
		if err != nil {
			if isNotFound(err) {
				return ErrNotInWatchlist
			}
			return err
		}
		return repo.TouchWatchlist(ctx, tx, watchlistID)
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// GetOrCreateFavorites returns the favorites list of userID, creating it on
// first use. Concurrent first calls converge on one row through the partial
// unique index on (user_id) for the reserved name.
func (s *WatchlistStore) GetOrCreateFavorites(ctx context.Context, userID string) (*domain.Watchlist, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrMissingUser
	}

	w, err := repo.FindWatchlistByName(ctx, s.DB, userID, domain.FavoritesName)
	if err == nil {
		return w, nil
	}
	if !isNotFound(err) {
		return nil, err
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.EnsureUser(ctx, tx, userID); err != nil {
			return err
		}
		var err error
		w, err = repo.CreateWatchlist(ctx, tx, userID, domain.FavoritesName)
		return err
	})
	if isDuplicate(err) {
		return repo.FindWatchlistByName(ctx, s.DB, userID, domain.FavoritesName)
	}
	if err != nil {
		return nil, err
	}
	return w, nil
}
