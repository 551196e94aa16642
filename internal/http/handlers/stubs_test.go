package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-game-watchlist/internal/catalog"
	"github.com/tbourn/go-game-watchlist/internal/domain"
	"github.com/tbourn/go-game-watchlist/internal/http/middleware"
	"github.com/tbourn/go-game-watchlist/internal/services"
)

// ---------- flexible service stubs ----------

type stubCatalog struct {
	search  func(context.Context, string, int, int) (*services.CatalogPage, error)
	game    func(context.Context, int64) (*catalog.GameSummary, error)
	genre   func(context.Context, string, int, int) (*services.CatalogPage, error)
	popular func(context.Context, int, int) (*services.CatalogPage, error)
}

func (s stubCatalog) Search(ctx context.Context, q string, p, l int) (*services.CatalogPage, error) {
	if s.search != nil {
		return s.search(ctx, q, p, l)
	}
	return &services.CatalogPage{Items: []catalog.GameSummary{}}, nil
}

func (s stubCatalog) CatalogGame(ctx context.Context, id int64) (*catalog.GameSummary, error) {
	if s.game != nil {
		return s.game(ctx, id)
	}
	return &catalog.GameSummary{ID: id}, nil
}

func (s stubCatalog) GamesByGenre(ctx context.Context, g string, p, l int) (*services.CatalogPage, error) {
	if s.genre != nil {
		return s.genre(ctx, g, p, l)
	}
	return &services.CatalogPage{Items: []catalog.GameSummary{}}, nil
}

func (s stubCatalog) Popular(ctx context.Context, p, l int) (*services.CatalogPage, error) {
	if s.popular != nil {
		return s.popular(ctx, p, l)
	}
	return &services.CatalogPage{Items: []catalog.GameSummary{}}, nil
}

type stubWatchlists struct {
	list      func(context.Context, string) ([]domain.Watchlist, error)
	stats     func(context.Context, string) (int64, *time.Time, error)
	create    func(context.Context, string, string) (*domain.Watchlist, error)
	detail    func(context.Context, string, uint) (*services.WatchlistView, error)
	del       func(context.Context, string, uint) error
	add       func(context.Context, string, uint, int64) (*domain.WatchlistGame, error)
	remove    func(context.Context, string, uint, int64) error
	status    func(context.Context, string, uint, int64, string) (*services.WatchlistView, error)
	addFav    func(context.Context, string, int64) (*domain.Watchlist, *domain.WatchlistGame, error)
	removeFav func(context.Context, string, int64) error
}

func (s stubWatchlists) List(ctx context.Context, u string) ([]domain.Watchlist, error) {
	if s.list != nil {
		return s.list(ctx, u)
	}
	return nil, nil
}

func (s stubWatchlists) Stats(ctx context.Context, u string) (int64, *time.Time, error) {
	if s.stats != nil {
		return s.stats(ctx, u)
	}
	return 0, nil, nil
}

func (s stubWatchlists) Create(ctx context.Context, u, n string) (*domain.Watchlist, error) {
	if s.create != nil {
		return s.create(ctx, u, n)
	}
	return &domain.Watchlist{ID: 1, UserID: u, Name: n}, nil
}

func (s stubWatchlists) Detail(ctx context.Context, u string, id uint) (*services.WatchlistView, error) {
	if s.detail != nil {
		return s.detail(ctx, u, id)
	}
	return &services.WatchlistView{ID: id, Games: []services.WatchlistEntry{}}, nil
}

func (s stubWatchlists) Delete(ctx context.Context, u string, id uint) error {
	if s.del != nil {
		return s.del(ctx, u, id)
	}
	return nil
}

func (s stubWatchlists) AddCatalogGame(ctx context.Context, u string, id uint, g int64) (*domain.WatchlistGame, error) {
	if s.add != nil {
		return s.add(ctx, u, id, g)
	}
	return &domain.WatchlistGame{WatchlistID: id, GameID: 1, Status: domain.DefaultStatus}, nil
}

func (s stubWatchlists) RemoveGame(ctx context.Context, u string, id uint, g int64) error {
	if s.remove != nil {
		return s.remove(ctx, u, id, g)
	}
	return nil
}

func (s stubWatchlists) UpdateStatus(ctx context.Context, u string, id uint, g int64, st string) (*services.WatchlistView, error) {
	if s.status != nil {
		return s.status(ctx, u, id, g, st)
	}
	return &services.WatchlistView{ID: id}, nil
}

func (s stubWatchlists) AddFavorite(ctx context.Context, u string, g int64) (*domain.Watchlist, *domain.WatchlistGame, error) {
	if s.addFav != nil {
		return s.addFav(ctx, u, g)
	}
	return &domain.Watchlist{ID: 9, Name: domain.FavoritesName}, &domain.WatchlistGame{WatchlistID: 9, GameID: 1, Status: domain.DefaultStatus}, nil
}

func (s stubWatchlists) RemoveFavorite(ctx context.Context, u string, g int64) error {
	if s.removeFav != nil {
		return s.removeFav(ctx, u, g)
	}
	return nil
}

type stubRatings struct {
	submit   func(context.Context, string, int64, float64, *string) (*domain.Review, error)
	del      func(context.Context, string, uint) error
	byRef    func(context.Context, int64) (*services.ReviewList, error)
	mine     func(context.Context, string) ([]services.UserReview, error)
	topRated func(context.Context, int) ([]services.RankedGame, error)
}

func (s stubRatings) SubmitCatalogReview(ctx context.Context, u string, id int64, score float64, c *string) (*domain.Review, error) {
	if s.submit != nil {
		return s.submit(ctx, u, id, score, c)
	}
	return &domain.Review{ID: 1, UserID: u, GameID: 1, Score: score, Comment: c}, nil
}

func (s stubRatings) DeleteReview(ctx context.Context, u string, id uint) error {
	if s.del != nil {
		return s.del(ctx, u, id)
	}
	return nil
}

func (s stubRatings) ListReviewsByRef(ctx context.Context, ref int64) (*services.ReviewList, error) {
	if s.byRef != nil {
		return s.byRef(ctx, ref)
	}
	return &services.ReviewList{Items: []domain.Review{}}, nil
}

func (s stubRatings) ListUserReviews(ctx context.Context, u string) ([]services.UserReview, error) {
	if s.mine != nil {
		return s.mine(ctx, u)
	}
	return nil, nil
}

func (s stubRatings) TopRated(ctx context.Context, limit int) ([]services.RankedGame, error) {
	if s.topRated != nil {
		return s.topRated(ctx, limit)
	}
	return nil, nil
}

// ---------- router helper ----------

// newTestRouter mounts every handler the way the real router does, with the
// development identity header.
func newTestRouter(cat CatalogService, wl WatchlistService, rt RatingService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := New(cat, wl, rt)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("X-Request-ID", "rid-test")
		c.Next()
	})
	r.Use(middleware.Authenticate(middleware.AuthOptions{}))

	r.GET("/catalog/games", h.SearchGames)
	r.GET("/catalog/games/:id", h.GetCatalogGame)
	r.GET("/catalog/genres/:genre/games", h.GamesByGenre)
	r.GET("/catalog/popular", h.PopularGames)

	r.GET("/watchlists", h.ListWatchlists)
	r.POST("/watchlists", h.CreateWatchlist)
	r.GET("/watchlists/:id", h.GetWatchlist)
	r.DELETE("/watchlists/:id", h.DeleteWatchlist)
	r.POST("/watchlists/:id/games", h.AddWatchlistGame)
	r.DELETE("/watchlists/:id/games/:gameId", h.RemoveWatchlistGame)
	r.PATCH("/watchlists/:id/games/:gameId/status", h.UpdateWatchlistGameStatus)
	r.POST("/favorites/games", h.AddFavorite)
	r.DELETE("/favorites/games/:gameId", h.RemoveFavorite)

	r.POST("/games/:id/reviews", h.SubmitReview)
	r.GET("/games/:id/reviews", h.ListGameReviews)
	r.DELETE("/reviews/:id", h.DeleteReview)
	r.GET("/me/reviews", h.ListMyReviews)
	r.GET("/rankings/top-rated", h.TopRated)
	return r
}

func do(r http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
