package repo

import (
	"context"
	"fmt"
	"testing"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-game-watchlist/internal/domain"
)

// newTestDB opens a unique in-memory database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:repo_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db.Exec("PRAGMA foreign_keys=ON;")
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, id string) {
	t.Helper()
	if err := EnsureUser(context.Background(), db, id); err != nil {
		t.Fatalf("EnsureUser(%q): %v", id, err)
	}
}

func seedGame(t *testing.T, db *gorm.DB, title string, externalID *int64) *domain.Game {
	t.Helper()
	g := &domain.Game{Title: title, ExternalID: externalID}
	if err := CreateGame(context.Background(), db, g); err != nil {
		t.Fatalf("CreateGame(%q): %v", title, err)
	}
	return g
}

func ptr[T any](v T) *T { return &v }
