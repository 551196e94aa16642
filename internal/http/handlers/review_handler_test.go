package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/tbourn/go-game-watchlist/internal/domain"
	"github.com/tbourn/go-game-watchlist/internal/http/middleware"
	"github.com/tbourn/go-game-watchlist/internal/services"
)

func TestSubmitReview(t *testing.T) {
	var gotScore float64
	var gotComment *string
	rt := stubRatings{
		submit: func(_ context.Context, u string, id int64, score float64, c *string) (*domain.Review, error) {
			if score > services.MaxScore {
				return nil, services.ErrInvalidScore
			}
			gotScore, gotComment = score, c
			return &domain.Review{ID: 1, UserID: u, GameID: 3, Score: score, Comment: c}, nil
		},
	}
	r := newTestRouter(stubCatalog{}, stubWatchlists{}, rt)

	w := do(r, http.MethodPost, "/games/500/reviews", `{"score":0}`)
	if w.Code != http.StatusCreated || gotScore != 0 || gotComment != nil {
		t.Fatalf("zero score: status=%d score=%v comment=%v", w.Code, gotScore, gotComment)
	}
	w = do(r, http.MethodPost, "/games/500/reviews", `{"score":8.5,"comment":"good"}`)
	if w.Code != http.StatusCreated || gotComment == nil || *gotComment != "good" {
		t.Fatalf("with comment: status=%d", w.Code)
	}
	if w := do(r, http.MethodPost, "/games/500/reviews", `{"comment":"no score"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("missing score status = %d; want 400", w.Code)
	}
	if w := do(r, http.MethodPost, "/games/500/reviews", `{"score":11}`); w.Code != http.StatusBadRequest {
		t.Fatalf("out of range status = %d; want 400", w.Code)
	}
}

func TestListGameReviewsAndMine(t *testing.T) {
	rt := stubRatings{
		byRef: func(_ context.Context, ref int64) (*services.ReviewList, error) {
			return &services.ReviewList{Items: []domain.Review{{ID: 1, Score: 7}, {ID: 2, Score: 8.6}}, Average: 7.8}, nil
		},
		mine: func(_ context.Context, u string) ([]services.UserReview, error) {
			if u != "ana" {
				return nil, nil
			}
			return []services.UserReview{{ID: 1, GameTitle: "Nova", Score: 7}}, nil
		},
	}
	r := newTestRouter(stubCatalog{}, stubWatchlists{}, rt)

	w := do(r, http.MethodGet, "/games/500/reviews", "")
	var list services.ReviewList
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil || list.Average != 7.8 || len(list.Items) != 2 {
		t.Fatalf("list = %+v (%v)", list, err)
	}

	w = do(r, http.MethodGet, "/me/reviews", "", middleware.HeaderUserID, "ana")
	var mine ListUserReviewsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &mine); err != nil || len(mine.Reviews) != 1 {
		t.Fatalf("mine = %s", w.Body.String())
	}
	w = do(r, http.MethodGet, "/me/reviews", "", middleware.HeaderUserID, "bob")
	if w.Body.String() != `{"reviews":[]}` {
		t.Fatalf("empty mine = %s", w.Body.String())
	}
}

func TestDeleteReview(t *testing.T) {
	rt := stubRatings{
		del: func(_ context.Context, u string, id uint) error {
			switch {
			case id == 404:
				return services.ErrReviewNotFound
			case u != "ana":
				return services.ErrNotReviewAuthor
			}
			return nil
		},
	}
	r := newTestRouter(stubCatalog{}, stubWatchlists{}, rt)

	if w := do(r, http.MethodDelete, "/reviews/1", "", middleware.HeaderUserID, "ana"); w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
	if w := do(r, http.MethodDelete, "/reviews/1", "", middleware.HeaderUserID, "bob"); w.Code != http.StatusForbidden {
		t.Fatalf("foreign delete = %d; want 403", w.Code)
	}
	if w := do(r, http.MethodDelete, "/reviews/404", ""); w.Code != http.StatusNotFound {
		t.Fatalf("missing delete = %d; want 404", w.Code)
	}
}

func TestTopRated(t *testing.T) {
	var gotLimit int
	rt := stubRatings{
		topRated: func(_ context.Context, limit int) ([]services.RankedGame, error) {
			gotLimit = limit
			return []services.RankedGame{{Rank: 1, GameView: services.GameView{ID: 2, Title: "G2", AverageRating: 9}, ReviewCount: 3}}, nil
		},
	}
	r := newTestRouter(stubCatalog{}, stubWatchlists{}, rt)

	w := do(r, http.MethodGet, "/rankings/top-rated", "")
	if w.Code != http.StatusOK || gotLimit != services.DefaultTopRated {
		t.Fatalf("status=%d limit=%d", w.Code, gotLimit)
	}
	var resp TopRatedResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || len(resp.Games) != 1 || resp.Games[0].Title != "G2" {
		t.Fatalf("resp = %s", w.Body.String())
	}
	do(r, http.MethodGet, "/rankings/top-rated?limit=3", "")
	if gotLimit != 3 {
		t.Fatalf("limit = %d; want 3", gotLimit)
	}
}
