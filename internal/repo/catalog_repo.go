package repo

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-game-watchlist/internal/domain"
)

// GetOrCreateCompany returns the company named c.Name, inserting c when the
// name is new. An existing row keeps its original role and metadata.
func GetOrCreateCompany(ctx context.Context, db *gorm.DB, c *domain.Company) (*domain.Company, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Market == "" {
		c.Market = "Global"
	}
	return firstOrInsert(db.WithContext(ctx), c, "name", c.Name)
}

// GetOrCreateGenre returns the genre with the given name, inserting it if new.
func GetOrCreateGenre(ctx context.Context, db *gorm.DB, name string) (*domain.Genre, error) {
	name = strings.TrimSpace(name)
	return firstOrInsert(db.WithContext(ctx), &domain.Genre{Name: name}, "name", name)
}

// GetOrCreatePlatform returns the platform with the given name, inserting it if new.
func GetOrCreatePlatform(ctx context.Context, db *gorm.DB, name string) (*domain.Platform, error) {
	name = strings.TrimSpace(name)
	return firstOrInsert(db.WithContext(ctx), &domain.Platform{Name: name}, "name", name)
}

// LinkGameGenre links a genre to a game. Linking an existing pair is a no-op.
func LinkGameGenre(ctx context.Context, db *gorm.DB, gameID, genreID uint) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Omit(clause.Associations).
		Create(&domain.GameGenre{GameID: gameID, GenreID: genreID}).Error
}

// LinkGamePlatform links a platform to a game with its release date. Linking
// an existing pair is a no-op and keeps the first release date.
func LinkGamePlatform(ctx context.Context, db *gorm.DB, gameID, platformID uint, released *time.Time) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Omit(clause.Associations).
		Create(&domain.GamePlatform{GameID: gameID, PlatformID: platformID, ReleaseDate: released}).Error
}

// CreateDLC adds a DLC under a game. A DLC with the same name is kept as is.
func CreateDLC(ctx context.Context, db *gorm.DB, gameID uint, name string, summary *string) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&domain.DLC{GameID: gameID, Name: strings.TrimSpace(name), Summary: summary}).Error
}

// CountRows returns the number of rows of model. It is a small helper for
// import bookkeeping and tests.
func CountRows(ctx context.Context, db *gorm.DB, model any) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(model).Count(&n).Error
	return n, err
}
