package domain

import (
	"fmt"
	"testing"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:domain_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// One connection so the foreign_keys PRAGMA holds for every statement.
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := db.AutoMigrate(
		&User{}, &Company{}, &Genre{}, &Platform{}, &Game{},
		&GameGenre{}, &GamePlatform{}, &DLC{},
		&Watchlist{}, &WatchlistGame{}, &Review{}, &Idempotency{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestTableNames(t *testing.T) {
	cases := map[string]string{
		User{}.TableName():          "users",
		Company{}.TableName():       "companies",
		Genre{}.TableName():         "genres",
		Platform{}.TableName():      "platforms",
		Game{}.TableName():          "games",
		GameGenre{}.TableName():     "game_genres",
		GamePlatform{}.TableName():  "game_platforms",
		DLC{}.TableName():           "dlcs",
		Watchlist{}.TableName():     "watchlists",
		WatchlistGame{}.TableName(): "watchlist_games",
		Review{}.TableName():        "reviews",
		Idempotency{}.TableName():   "idempotency",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("TableName() = %q; want %q", got, want)
		}
	}
}

func TestMigrations_Indexes(t *testing.T) {
	db := newDomainDB(t)
	m := db.Migrator()

	checks := []struct {
		model any
		index string
	}{
		{&Game{}, "ux_games_external_id"},
		{&Game{}, "idx_games_title"},
		{&Company{}, "ux_companies_name"},
		{&Genre{}, "ux_genres_name"},
		{&Platform{}, "ux_platforms_name"},
		{&Watchlist{}, "ux_watchlists_favorites"},
		{&Review{}, "ux_reviews_user_game"},
		{&Idempotency{}, "ux_idem_user_scope_key"},
	}
	for _, c := range checks {
		if !m.HasIndex(c.model, c.index) {
			t.Fatalf("expected index %s on %T", c.index, c.model)
		}
	}
}

func TestGame_ExternalIDUniqueButNullable(t *testing.T) {
	db := newDomainDB(t)

	ext := int64(500)
	if err := db.Create(&Game{Title: "Nova", ExternalID: &ext}).Error; err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := db.Create(&Game{Title: "Nova II", ExternalID: &ext}).Error; err == nil {
		t.Fatalf("expected unique violation on duplicate external id")
	}
	// Several games without an external id are fine.
	if err := db.Create(&Game{Title: "A"}).Error; err != nil {
		t.Fatalf("insert null ext 1: %v", err)
	}
	if err := db.Create(&Game{Title: "B"}).Error; err != nil {
		t.Fatalf("insert null ext 2: %v", err)
	}
}

func TestWatchlist_FavoritesUniquePerUser(t *testing.T) {
	db := newDomainDB(t)
	if err := db.Create(&User{ID: "u1"}).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}

	if err := db.Create(&Watchlist{UserID: "u1", Name: FavoritesName}).Error; err != nil {
		t.Fatalf("first favorites: %v", err)
	}
	if err := db.Create(&Watchlist{UserID: "u1", Name: FavoritesName}).Error; err == nil {
		t.Fatalf("expected unique violation for second favorites list")
	}
	// Ordinary names may repeat.
	for i := 0; i < 2; i++ {
		if err := db.Create(&Watchlist{UserID: "u1", Name: "Backlog"}).Error; err != nil {
			t.Fatalf("plain list %d: %v", i, err)
		}
	}
}

func TestCascades_WatchlistAndUser(t *testing.T) {
	db := newDomainDB(t)

	u := &User{ID: "u1"}
	g := &Game{Title: "Nova"}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	if err := db.Create(g).Error; err != nil {
		t.Fatalf("seed game: %v", err)
	}
	wl := &Watchlist{UserID: u.ID, Name: "Backlog"}
	if err := db.Create(wl).Error; err != nil {
		t.Fatalf("seed watchlist: %v", err)
	}
	if err := db.Create(&WatchlistGame{WatchlistID: wl.ID, GameID: g.ID}).Error; err != nil {
		t.Fatalf("seed membership: %v", err)
	}
	if err := db.Create(&Review{UserID: u.ID, GameID: g.ID, Score: 7}).Error; err != nil {
		t.Fatalf("seed review: %v", err)
	}

	var mem WatchlistGame
	if err := db.First(&mem, "watchlist_id = ? AND game_id = ?", wl.ID, g.ID).Error; err != nil {
		t.Fatalf("load membership: %v", err)
	}
	if mem.Status != DefaultStatus {
		t.Fatalf("default status = %q; want %q", mem.Status, DefaultStatus)
	}

	// Deleting the list removes memberships, not the game.
	if err := db.Delete(&Watchlist{}, wl.ID).Error; err != nil {
		t.Fatalf("delete watchlist: %v", err)
	}
	var cnt int64
	db.Model(&WatchlistGame{}).Where("watchlist_id = ?", wl.ID).Count(&cnt)
	if cnt != 0 {
		t.Fatalf("memberships should cascade, got %d", cnt)
	}
	db.Model(&Game{}).Where("id = ?", g.ID).Count(&cnt)
	if cnt != 1 {
		t.Fatalf("game must outlive the list, got %d", cnt)
	}

	// Deleting the user removes their reviews.
	if err := db.Delete(&User{}, "id = ?", u.ID).Error; err != nil {
		t.Fatalf("delete user: %v", err)
	}
	db.Model(&Review{}).Where("user_id = ?", u.ID).Count(&cnt)
	if cnt != 0 {
		t.Fatalf("reviews should cascade with the user, got %d", cnt)
	}
}

func TestReview_ScoreBounds(t *testing.T) {
	db := newDomainDB(t)
	db.Create(&User{ID: "u1"})
	g := &Game{Title: "Nova"}
	db.Create(g)

	if err := db.Create(&Review{UserID: "u1", GameID: g.ID, Score: 11}).Error; err == nil {
		t.Fatalf("expected check constraint failure for score 11")
	}
	if err := db.Create(&Review{UserID: "u1", GameID: g.ID, Score: 10}).Error; err != nil {
		t.Fatalf("score 10 should be accepted: %v", err)
	}
	if err := db.Create(&Review{UserID: "u1", GameID: g.ID, Score: 3}).Error; err == nil {
		t.Fatalf("expected unique violation for a second review by the same user")
	}
}
