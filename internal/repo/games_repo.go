// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file holds the queries over the local game mirror:
// dedup lookups used by the entity resolver, the game row lock used by review
// writes, and the detail/bulk reads consumed by the query views.
package repo

import (
	"context"
	"errors"
	"math"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-game-watchlist/internal/domain"
)

// FindGameByExternalID returns the game imported from the given catalog id.
func FindGameByExternalID(ctx context.Context, db *gorm.DB, externalID int64) (*domain.Game, error) {
	var g domain.Game
	if err := db.WithContext(ctx).Where("external_id = ?", externalID).First(&g).Error; err != nil {
		return nil, err
	}
	return &g, nil
}

// FindUnlinkedGameByTitle returns the oldest game with exactly this title that
// has no catalog id recorded yet.
func FindUnlinkedGameByTitle(ctx context.Context, db *gorm.DB, title string) (*domain.Game, error) {
	var g domain.Game
	err := db.WithContext(ctx).
		Where("title = ? AND external_id IS NULL", title).
		Order("id ASC").
		First(&g).Error
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// SetGameExternalID records the catalog id on a game imported without one.
// A conflicting id already owned by another row yields ErrDuplicate.
func SetGameExternalID(ctx context.Context, db *gorm.DB, gameID uint, externalID int64) error {
	res := db.WithContext(ctx).Model(&domain.Game{}).
		Where("id = ?", gameID).
		Update("external_id", externalID)
	if res.Error != nil {
		return duplicate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateGame inserts g without touching its associations. A unique violation on
// the catalog id yields ErrDuplicate.
func CreateGame(ctx context.Context, db *gorm.DB, g *domain.Game) error {
	err := db.WithContext(ctx).Omit(
		"Developer", "Publisher", "GameGenres", "GamePlatforms", "DLCs",
	).Create(g).Error
	return duplicate(err)
}

// GetGame returns a game row without associations.
func GetGame(ctx context.Context, db *gorm.DB, id uint) (*domain.Game, error) {
	var g domain.Game
	if err := db.WithContext(ctx).First(&g, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &g, nil
}

// withGameDetail preloads every association rendered in a game view.
func withGameDetail(q *gorm.DB, prefix string) *gorm.DB {
	return q.
		Preload(prefix + "Developer").
		Preload(prefix + "Publisher").
		Preload(prefix+"GameGenres", func(db *gorm.DB) *gorm.DB { return db.Order("genre_id ASC") }).
		Preload(prefix + "GameGenres.Genre").
		Preload(prefix+"GamePlatforms", func(db *gorm.DB) *gorm.DB { return db.Order("platform_id ASC") }).
		Preload(prefix + "GamePlatforms.Platform").
		Preload(prefix+"DLCs", func(db *gorm.DB) *gorm.DB { return db.Order("name ASC") })
}

// GetGameDetail returns a game with companies, genres, platforms and DLCs.
func GetGameDetail(ctx context.Context, db *gorm.DB, id uint) (*domain.Game, error) {
	var g domain.Game
	if err := withGameDetail(db.WithContext(ctx), "").First(&g, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &g, nil
}

// GamesByIDs returns the detailed games for ids, ordered by id. Unknown ids are
// skipped.
func GamesByIDs(ctx context.Context, db *gorm.DB, ids []uint) ([]domain.Game, error) {
	if len(ids) == 0 {
		return []domain.Game{}, nil
	}
	var out []domain.Game
	err := withGameDetail(db.WithContext(ctx), "").
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&out).Error
	return out, err
}

// LockGame takes the row lock of a game for the rest of the transaction by
// issuing a no-op write. It returns ErrNotFound when the game does not exist.
// The write form is used instead of SELECT ... FOR UPDATE so the same code
// serializes on both SQLite and Postgres.
func LockGame(ctx context.Context, tx *gorm.DB, id uint) error {
	res := tx.WithContext(ctx).Model(&domain.Game{}).
		Where("id = ?", id).
		UpdateColumn("updated_at", time.Now().UTC())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetAverageRating stores the derived average of a game.
func SetAverageRating(ctx context.Context, tx *gorm.DB, id uint, avg float64) error {
	res := tx.WithContext(ctx).Model(&domain.Game{}).
		Where("id = ?", id).
		UpdateColumn("average_rating", avg)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// LocalRatings maps catalog ids of imported games to their stored average.
// Catalog ids that were never imported are absent from the result.
func LocalRatings(ctx context.Context, db *gorm.DB, externalIDs []int64) (map[int64]float64, error) {
	out := make(map[int64]float64, len(externalIDs))
	if len(externalIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		ExternalID    int64
		AverageRating float64
	}
	err := db.WithContext(ctx).Model(&domain.Game{}).
		Select("external_id, average_rating").
		Where("external_id IN ?", externalIDs).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.ExternalID] = r.AverageRating
	}
	return out, nil
}

// ResolveGameRef translates ref into a local game id. A catalog id of an
// imported game wins over a local id with the same value. The boolean is false
// when ref names no local game.
func ResolveGameRef(ctx context.Context, db *gorm.DB, ref int64) (uint, bool, error) {
	g, err := FindGameByExternalID(ctx, db, ref)
	switch {
	case err == nil:
		return g.ID, true, nil
	case !errors.Is(err, ErrNotFound):
		return 0, false, err
	}
	if ref <= 0 || ref > math.MaxUint32 {
		return 0, false, nil
	}
	g, err = GetGame(ctx, db, uint(ref))
	switch {
	case err == nil:
		return g.ID, true, nil
	case errors.Is(err, ErrNotFound):
		return 0, false, nil
	default:
		return 0, false, err
	}
}

// ListGamesForIndex returns id, title and description of every local game,
// used to build the offline search index.
func ListGamesForIndex(ctx context.Context, db *gorm.DB) ([]domain.Game, error) {
	var out []domain.Game
	err := db.WithContext(ctx).
		Select("id", "external_id", "title", "description", "cover_url", "critic_score", "average_rating").
		Order("id ASC").
		Find(&out).Error
	return out, err
}
