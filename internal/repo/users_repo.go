package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-game-watchlist/internal/domain"
)

// EnsureUser creates the anchor row for userID if it does not exist yet.
func EnsureUser(ctx context.Context, db *gorm.DB, userID string) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&domain.User{ID: userID}).Error
}
