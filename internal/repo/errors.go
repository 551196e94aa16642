package repo

import (
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate indicates that an insert hit a unique constraint.
var ErrDuplicate = errors.New("duplicate")

// IsDuplicate reports whether err is a unique-constraint violation. Drivers
// that do not translate errors to gorm.ErrDuplicatedKey are matched by text.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDuplicate) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// SQLite: "UNIQUE constraint failed" / "constraint failed: UNIQUE"
	// Postgres: "duplicate key value violates unique constraint"
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key")
}

// duplicate converts unique violations to ErrDuplicate and passes anything
// else through.
func duplicate(err error) error {
	if IsDuplicate(err) {
		return ErrDuplicate
	}
	return err
}

// firstOrInsert returns the row of T whose column equals value, inserting row
// when none exists. The insert ignores conflicts and the row is read back, so
// two callers racing on the same natural key both end up with the same row.
func firstOrInsert[T any](db *gorm.DB, row *T, column string, value any) (*T, error) {
	var found T
	err := db.Where(column+" = ?", value).First(&found).Error
	if err == nil {
		return &found, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: column}},
		DoNothing: true,
	}).Create(row).Error; err != nil {
		return nil, err
	}

	var stored T
	if err := db.Where(column+" = ?", value).First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}
