// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file contains watchlist and membership helpers. None
// of them check ownership; callers are expected to do that.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-game-watchlist/internal/domain"
)

// CreateWatchlist inserts a new watchlist for userID. The favorites list is
// unique per user, so a second one yields ErrDuplicate.
func CreateWatchlist(ctx context.Context, db *gorm.DB, userID, name string) (*domain.Watchlist, error) {
	now := time.Now().UTC()
	w := &domain.Watchlist{UserID: userID, Name: name, CreatedAt: now, UpdatedAt: now}
	if err := db.WithContext(ctx).Omit("User", "Games").Create(w).Error; err != nil {
		return nil, duplicate(err)
	}
	return w, nil
}

// GetWatchlist returns a watchlist by id regardless of owner.
func GetWatchlist(ctx context.Context, db *gorm.DB, id uint) (*domain.Watchlist, error) {
	var w domain.Watchlist
	if err := db.WithContext(ctx).First(&w, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

// FindWatchlistByName returns the oldest watchlist of userID with the given name.
func FindWatchlistByName(ctx context.Context, db *gorm.DB, userID, name string) (*domain.Watchlist, error) {
	var w domain.Watchlist
	err := db.WithContext(ctx).
		Where("user_id = ? AND name = ?", userID, name).
		Order("id ASC").
		First(&w).Error
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// ListWatchlists returns all watchlists owned by userID, oldest first.
func ListWatchlists(ctx context.Context, db *gorm.DB, userID string) ([]domain.Watchlist, error) {
	var out []domain.Watchlist
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// DeleteWatchlist removes a watchlist and its memberships.
func DeleteWatchlist(ctx context.Context, db *gorm.DB, id uint) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Explicit so the cascade holds even where foreign keys are off.
		if err := tx.Where("watchlist_id = ?", id).Delete(&domain.WatchlistGame{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&domain.Watchlist{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// TouchWatchlist bumps updated_at so list ETags change after membership edits.
func TouchWatchlist(ctx context.Context, db *gorm.DB, id uint) error {
	return db.WithContext(ctx).Model(&domain.Watchlist{}).
		Where("id = ?", id).
		UpdateColumn("updated_at", time.Now().UTC()).Error
}

// MembershipExists reports whether gameID is listed in watchlistID.
func MembershipExists(ctx context.Context, db *gorm.DB, watchlistID, gameID uint) (bool, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.WatchlistGame{}).
		Where("watchlist_id = ? AND game_id = ?", watchlistID, gameID).
		Count(&n).Error
	return n > 0, err
}

// AddMembership lists gameID in watchlistID with the default status. A pair
// that already exists yields ErrDuplicate.
func AddMembership(ctx context.Context, db *gorm.DB, watchlistID, gameID uint) (*domain.WatchlistGame, error) {
	m := &domain.WatchlistGame{
		WatchlistID: watchlistID,
		GameID:      gameID,
		Status:      domain.DefaultStatus,
		AddedAt:     time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Omit("Game").Create(m).Error; err != nil {
		return nil, duplicate(err)
	}
	return m, nil
}

// GetMembership returns the membership of gameID in watchlistID.
func GetMembership(ctx context.Context, db *gorm.DB, watchlistID, gameID uint) (*domain.WatchlistGame, error) {
	var m domain.WatchlistGame
	err := db.WithContext(ctx).
		Where("watchlist_id = ? AND game_id = ?", watchlistID, gameID).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// RemoveMembership deletes the pair, or returns ErrNotFound if it is absent.
func RemoveMembership(ctx context.Context, db *gorm.DB, watchlistID, gameID uint) error {
	res := db.WithContext(ctx).
		Where("watchlist_id = ? AND game_id = ?", watchlistID, gameID).
		Delete(&domain.WatchlistGame{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateMembershipStatus sets the status of the pair and returns the updated
// row, or ErrNotFound if the pair is absent.
func UpdateMembershipStatus(ctx context.Context, db *gorm.DB, watchlistID, gameID uint, status domain.Status) (*domain.WatchlistGame, error) {
	res := db.WithContext(ctx).Model(&domain.WatchlistGame{}).
		Where("watchlist_id = ? AND game_id = ?", watchlistID, gameID).
		Update("status", status)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return GetMembership(ctx, db, watchlistID, gameID)
}

// GetWatchlistWithGames returns a watchlist with its memberships in insertion
// order and each member game fully detailed.
func GetWatchlistWithGames(ctx context.Context, db *gorm.DB, id uint) (*domain.Watchlist, error) {
	var w domain.Watchlist
	q := db.WithContext(ctx).
		Preload("Games", func(db *gorm.DB) *gorm.DB { return db.Order("added_at ASC, game_id ASC") }).
		Preload("Games.Game")
	if err := withGameDetail(q, "Games.Game.").First(&w, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &w, nil
}
