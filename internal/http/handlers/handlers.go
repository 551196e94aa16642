// Package handlers exposes the REST endpoints of the game watchlist API.
//
// Handlers are transport-thin: they validate input, call application services
// through the interfaces below, and translate results and errors into HTTP
// responses.
package handlers

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-game-watchlist/internal/catalog"
	"github.com/tbourn/go-game-watchlist/internal/domain"
	"github.com/tbourn/go-game-watchlist/internal/http/middleware"
	"github.com/tbourn/go-game-watchlist/internal/services"
	"github.com/tbourn/go-game-watchlist/internal/utils"
)

//
// Service contracts (context-aware)
//

// CatalogService reads the external game catalog.
type CatalogService interface {
	Search(ctx context.Context, query string, page, limit int) (*services.CatalogPage, error)
	CatalogGame(ctx context.Context, id int64) (*catalog.GameSummary, error)
	GamesByGenre(ctx context.Context, genre string, page, limit int) (*services.CatalogPage, error)
	Popular(ctx context.Context, page, limit int) (*services.CatalogPage, error)
}

// WatchlistService manages watchlists, their members and the favorites list.
type WatchlistService interface {
	List(ctx context.Context, userID string) ([]domain.Watchlist, error)
	// Stats returns the count and latest update of the user's watchlists.
	Stats(ctx context.Context, userID string) (int64, *time.Time, error)
	Create(ctx context.Context, userID, name string) (*domain.Watchlist, error)
	Detail(ctx context.Context, viewerID string, watchlistID uint) (*services.WatchlistView, error)
	Delete(ctx context.Context, userID string, watchlistID uint) error
	AddCatalogGame(ctx context.Context, userID string, watchlistID uint, catalogID int64) (*domain.WatchlistGame, error)
	RemoveGame(ctx context.Context, userID string, watchlistID uint, gameRef int64) error
	UpdateStatus(ctx context.Context, userID string, watchlistID uint, gameRef int64, status string) (*services.WatchlistView, error)
	AddFavorite(ctx context.Context, userID string, catalogID int64) (*domain.Watchlist, *domain.WatchlistGame, error)
	RemoveFavorite(ctx context.Context, userID string, gameRef int64) error
}

// RatingService manages reviews and the rankings derived from them.
type RatingService interface {
	SubmitCatalogReview(ctx context.Context, userID string, catalogID int64, score float64, comment *string) (*domain.Review, error)
	DeleteReview(ctx context.Context, userID string, reviewID uint) error
	ListReviewsByRef(ctx context.Context, ref int64) (*services.ReviewList, error)
	ListUserReviews(ctx context.Context, userID string) ([]services.UserReview, error)
	TopRated(ctx context.Context, limit int) ([]services.RankedGame, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints.
type Handlers struct {
	catalogSvc   CatalogService
	watchlistSvc WatchlistService
	ratingSvc    RatingService
}

// New constructs a Handlers bound to the given services.
func New(catalogSvc CatalogService, watchlistSvc WatchlistService, ratingSvc RatingService) *Handlers {
	return &Handlers{catalogSvc: catalogSvc, watchlistSvc: watchlistSvc, ratingSvc: ratingSvc}
}

func userID(c *gin.Context) string { return middleware.UserID(c) }

// pathID parses a positive integer path parameter.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// pathUint parses a positive path parameter that names a local row.
func pathUint(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// pagination reads page and limit; the services clamp them.
func pagination(c *gin.Context) (page, limit int) {
	return utils.AtoiDefault(c.Query("page"), 1), utils.AtoiDefault(c.Query("limit"), 0)
}
