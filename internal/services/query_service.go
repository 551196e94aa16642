// Package services – QueryService
//
// This file implements the read-only views: watchlist detail with per-request
// computed fields and the game projection shared by rankings and reviews.
package services

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-game-watchlist/internal/domain"
	"github.com/tbourn/go-game-watchlist/internal/repo"
	"github.com/tbourn/go-game-watchlist/internal/utils"
)

// CompanyView is a developer or publisher as rendered in game views.
type CompanyView struct {
	ID        uint       `json:"id"`
	Name      string     `json:"name"`
	Role      string     `json:"role"`
	Country   *string    `json:"country,omitempty"`
	Market    string     `json:"market"`
	FoundedAt *time.Time `json:"founded_at,omitempty"`
}

// PlatformView is a platform with the game's release date on it.
type PlatformView struct {
	Name        string     `json:"name"`
	ReleaseDate *time.Time `json:"release_date,omitempty"`
}

// DLCView is one DLC of a game.
type DLCView struct {
	Name    string  `json:"name"`
	Summary *string `json:"summary,omitempty"`
}

// GameView is the detailed projection of a local game.
type GameView struct {
	ID            uint           `json:"id"`
	ExternalID    *int64         `json:"external_id,omitempty"`
	Title         string         `json:"title"`
	Description   *string        `json:"description,omitempty"`
	CriticScore   *float64       `json:"critic_score,omitempty"`
	CoverURL      *string        `json:"cover_url,omitempty"`
	AverageRating float64        `json:"average_rating"`
	Developer     *CompanyView   `json:"developer,omitempty"`
	Publisher     *CompanyView   `json:"publisher,omitempty"`
	Genres        []string       `json:"genres"`
	Platforms     []PlatformView `json:"platforms"`
	DLCs          []DLCView      `json:"dlcs"`
}

// WatchlistEntry is a member game with its status and computed scores.
// OverallAverage is nil when the game has no reviews; ViewerScore is nil when
// the viewer has not reviewed it.
type WatchlistEntry struct {
	GameView
	Status         string    `json:"status"`
	AddedAt        time.Time `json:"added_at"`
	OverallAverage *float64  `json:"overall_average"`
	ViewerScore    *float64  `json:"viewer_score"`
}

// WatchlistView is a watchlist with all member games.
type WatchlistView struct {
	ID        uint             `json:"id"`
	UserID    string           `json:"user_id"`
	Name      string           `json:"name"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
	Games     []WatchlistEntry `json:"games"`
}

// QueryService composes read-only views over the store.
type QueryService struct {
	DB *gorm.DB
}

// WatchlistDetail returns the watchlist with every member game fully detailed.
// The overall average and viewer score of each game are computed on every
// call from the current review set. Unknown ids yield ErrWatchlistNotFound.
func (s *QueryService) WatchlistDetail(ctx context.Context, viewerID string, watchlistID uint) (*WatchlistView, error) {
	tr := otel.Tracer("services/QueryService")
	ctx, span := tr.Start(ctx, "WatchlistDetail",
		trace.WithAttributes(
			attribute.String("user.id", viewerID),
			attribute.Int64("watchlist.id", int64(watchlistID)),
		),
	)
	defer span.End()

	w, err := repo.GetWatchlistWithGames(ctx, s.DB, watchlistID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrWatchlistNotFound
		}
		return nil, err
	}

	ids := make([]uint, 0, len(w.Games))
	for _, m := range w.Games {
		ids = append(ids, m.GameID)
	}
	summaries, err := repo.ScoreSummaries(ctx, s.DB, ids)
	if err != nil {
		return nil, err
	}
	mine, err := repo.UserScores(ctx, s.DB, viewerID, ids)
	if err != nil {
		return nil, err
	}

	view := &WatchlistView{
		ID:        w.ID,
		UserID:    w.UserID,
		Name:      w.Name,
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
		Games:     make([]WatchlistEntry, 0, len(w.Games)),
	}
	for _, m := range w.Games {
		e := WatchlistEntry{
			GameView: NewGameView(m.Game),
			Status:   m.Status.Code(),
			AddedAt:  m.AddedAt,
		}
		if sum, ok := summaries[m.GameID]; ok && sum.Count > 0 {
			avg := utils.Round(sum.Average, 1)
			e.OverallAverage = &avg
		}
		if score, ok := mine[m.GameID]; ok {
			v := score
			e.ViewerScore = &v
		}
		view.Games = append(view.Games, e)
	}
	span.SetAttributes(attribute.Int("watchlist.games", len(view.Games)))
	return view, nil
}

// NewGameView projects a game loaded with its detail associations.
func NewGameView(g domain.Game) GameView {
	v := GameView{
		ID:            g.ID,
		ExternalID:    g.ExternalID,
		Title:         g.Title,
		Description:   g.Description,
		CriticScore:   g.CriticScore,
		CoverURL:      g.CoverURL,
		AverageRating: g.AverageRating,
		Developer:     companyView(g.Developer),
		Publisher:     companyView(g.Publisher),
		Genres:        make([]string, 0, len(g.GameGenres)),
		Platforms:     make([]PlatformView, 0, len(g.GamePlatforms)),
		DLCs:          make([]DLCView, 0, len(g.DLCs)),
	}
	for _, gg := range g.GameGenres {
		v.Genres = append(v.Genres, gg.Genre.Name)
	}
	for _, gp := range g.GamePlatforms {
		v.Platforms = append(v.Platforms, PlatformView{Name: gp.Platform.Name, ReleaseDate: gp.ReleaseDate})
	}
	for _, d := range g.DLCs {
		v.DLCs = append(v.DLCs, DLCView{Name: d.Name, Summary: d.Summary})
	}
	return v
}

func companyView(c *domain.Company) *CompanyView {
	if c == nil {
		return nil
	}
	return &CompanyView{
		ID:        c.ID,
		Name:      c.Name,
		Role:      c.Role,
		Country:   c.Country,
		Market:    c.Market,
		FoundedAt: c.FoundedAt,
	}
}
