// Package domain defines the persistence models for the game catalog mirror,
// watchlists, and reviews. These types are mapped with GORM and form the core
// data layer of the watchlist backend.
package domain

import (
	"time"
)

// Company roles. A company keeps the role it was first seen with.
const (
	RoleDeveloper = "developer"
	RolePublisher = "publisher"
)

// FavoritesName is the reserved name of the per-user default watchlist.
const FavoritesName = "Favoritos"

// User is the local anchor row for an authenticated identity. Watchlists and
// reviews reference it so ownership cascades are enforced by the store.
type User struct {
	ID        string    `json:"id"         gorm:"type:varchar(64);primaryKey"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Company is a developer or publisher. Both roles share the table and the name
// is unique across roles.
//
// Fields:
//   - ID: surrogate key.
//   - Name: natural key used for dedup (unique).
//   - Role: "developer" or "publisher", fixed at creation.
//   - Country / Market: best-effort origin metadata from the catalog.
//   - FoundedAt: company start date when known.
type Company struct {
	ID        uint       `json:"id"                   gorm:"primaryKey"`
	Name      string     `json:"name"                 gorm:"type:varchar(255);not null;uniqueIndex:ux_companies_name"`
	Role      string     `json:"role"                 gorm:"type:varchar(16);not null;check:role IN ('developer','publisher')"`
	Country   *string    `json:"country,omitempty"    gorm:"type:varchar(100)"`
	Market    string     `json:"market"               gorm:"type:varchar(100);not null;default:'Global'"`
	FoundedAt *time.Time `json:"founded_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// TableName returns the database table name for Company.
func (Company) TableName() string { return "companies" }

// Genre is a catalog genre, deduplicated by name.
type Genre struct {
	ID   uint   `json:"id"   gorm:"primaryKey"`
	Name string `json:"name" gorm:"type:varchar(100);not null;uniqueIndex:ux_genres_name"`
}

// TableName returns the database table name for Genre.
func (Genre) TableName() string { return "genres" }

// Platform is a catalog platform, deduplicated by name.
type Platform struct {
	ID   uint   `json:"id"   gorm:"primaryKey"`
	Name string `json:"name" gorm:"type:varchar(100);not null;uniqueIndex:ux_platforms_name"`
}

// TableName returns the database table name for Platform.
func (Platform) TableName() string { return "platforms" }

// Game is a locally materialized catalog game.
//
// Fields:
//   - ExternalID: catalog id, unique when present.
//   - Title: exact-match secondary dedup key (not unique).
//   - CriticScore: catalog aggregated rating on a 0-10 scale.
//   - AverageRating: mean of all review scores rounded to one decimal,
//     0 when the game has no reviews. Maintained by review writes.
//   - DeveloperID / PublisherID: optional company references.
type Game struct {
	ID            uint      `json:"id"                     gorm:"primaryKey"`
	ExternalID    *int64    `json:"external_id,omitempty"  gorm:"uniqueIndex:ux_games_external_id"`
	Title         string    `json:"title"                  gorm:"type:varchar(255);not null;index:idx_games_title"`
	Description   *string   `json:"description,omitempty"  gorm:"type:text"`
	CriticScore   *float64  `json:"critic_score,omitempty"`
	CoverURL      *string   `json:"cover_url,omitempty"    gorm:"type:varchar(512)"`
	AverageRating float64   `json:"average_rating"         gorm:"not null;default:0;index:idx_games_average"`
	DeveloperID   *uint     `json:"developer_id,omitempty" gorm:"index"`
	PublisherID   *uint     `json:"publisher_id,omitempty" gorm:"index"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	Developer     *Company       `json:"developer,omitempty" gorm:"foreignKey:DeveloperID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
	Publisher     *Company       `json:"publisher,omitempty" gorm:"foreignKey:PublisherID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
	GameGenres    []GameGenre    `json:"-"                   gorm:"foreignKey:GameID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	GamePlatforms []GamePlatform `json:"-"                   gorm:"foreignKey:GameID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	DLCs          []DLC          `json:"-"                   gorm:"foreignKey:GameID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Game.
func (Game) TableName() string { return "games" }

// GameGenre links a game to a genre at most once.
type GameGenre struct {
	GameID  uint `gorm:"primaryKey;autoIncrement:false"`
	GenreID uint `gorm:"primaryKey;autoIncrement:false;index"`

	Genre Genre `gorm:"foreignKey:GenreID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for GameGenre.
func (GameGenre) TableName() string { return "game_genres" }

// GamePlatform links a game to a platform at most once and carries the
// release date of the game on that platform.
type GamePlatform struct {
	GameID      uint       `gorm:"primaryKey;autoIncrement:false"`
	PlatformID  uint       `gorm:"primaryKey;autoIncrement:false;index"`
	ReleaseDate *time.Time

	Platform Platform `gorm:"foreignKey:PlatformID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for GamePlatform.
func (GamePlatform) TableName() string { return "game_platforms" }

// DLC is downloadable content of a game, identified by (game, name).
type DLC struct {
	GameID  uint    `json:"game_id"           gorm:"primaryKey;autoIncrement:false"`
	Name    string  `json:"name"              gorm:"type:varchar(255);primaryKey"`
	Summary *string `json:"summary,omitempty" gorm:"type:text"`
}

// TableName returns the database table name for DLC.
func (DLC) TableName() string { return "dlcs" }

// Watchlist is a named list of games owned by one user. At most one list per
// user may carry the reserved FavoritesName (partial unique index).
type Watchlist struct {
	ID        uint      `json:"id"         gorm:"primaryKey"`
	UserID    string    `json:"user_id"    gorm:"type:varchar(64);not null;index:idx_user_watchlists;uniqueIndex:ux_watchlists_favorites,where:name = 'Favoritos'"`
	Name      string    `json:"name"       gorm:"type:varchar(100);not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Games are the memberships of this list. They are removed with the list.
	Games []WatchlistGame `json:"games,omitempty" gorm:"foreignKey:WatchlistID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`

	User User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Watchlist.
func (Watchlist) TableName() string { return "watchlists" }

// WatchlistGame is the membership of a game in a watchlist. The composite key
// keeps a game at most once per list. Deleting a game is restricted while it
// is still listed.
type WatchlistGame struct {
	WatchlistID uint      `json:"watchlist_id" gorm:"primaryKey;autoIncrement:false"`
	GameID      uint      `json:"game_id"      gorm:"primaryKey;autoIncrement:false;index"`
	Status      Status    `json:"status"       gorm:"type:varchar(32);not null;default:'AINDA NAO JOGADO';check:status IN ('JOGADO','AINDA NAO JOGADO','DROPADO')"`
	AddedAt     time.Time `json:"added_at"     gorm:"not null;autoCreateTime"`

	Game Game `json:"-" gorm:"foreignKey:GameID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// TableName returns the database table name for WatchlistGame.
func (WatchlistGame) TableName() string { return "watchlist_games" }

// Review is a user's score for a game. One review per (user, game); a
// resubmission updates the existing row.
type Review struct {
	ID        uint      `json:"id"                gorm:"primaryKey"`
	UserID    string    `json:"user_id"           gorm:"type:varchar(64);not null;uniqueIndex:ux_reviews_user_game,priority:1"`
	GameID    uint      `json:"game_id"           gorm:"not null;index;uniqueIndex:ux_reviews_user_game,priority:2"`
	Score     float64   `json:"score"             gorm:"not null;check:score >= 0 AND score <= 10"`
	Comment   *string   `json:"comment,omitempty" gorm:"type:varchar(1000)"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	User User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Game Game `json:"-" gorm:"foreignKey:GameID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// TableName returns the database table name for Review.
func (Review) TableName() string { return "reviews" }
