package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/tbourn/go-game-watchlist/internal/catalog"
	"github.com/tbourn/go-game-watchlist/internal/services"
)

func TestSearchGames(t *testing.T) {
	var gotQuery string
	var gotPage, gotLimit int
	cat := stubCatalog{
		search: func(_ context.Context, q string, p, l int) (*services.CatalogPage, error) {
			gotQuery, gotPage, gotLimit = q, p, l
			return &services.CatalogPage{
				Items: []catalog.GameSummary{{ID: 7, Name: "Nova"}},
				Page:  p,
				Limit: 5,
			}, nil
		},
	}
	r := newTestRouter(cat, stubWatchlists{}, stubRatings{})

	w := do(r, http.MethodGet, "/catalog/games?query=%20nova%20&page=2&limit=5", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body=%s", w.Code, w.Body.String())
	}
	if gotQuery != "nova" || gotPage != 2 || gotLimit != 5 {
		t.Fatalf("service args = %q %d %d", gotQuery, gotPage, gotLimit)
	}
	var page services.CatalogPage
	if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].Name != "Nova" {
		t.Fatalf("unexpected page: %+v", page)
	}

	if w := do(r, http.MethodGet, "/catalog/games?query=%20", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("blank query status = %d; want 400", w.Code)
	}
}

func TestSearchGames_UpstreamStatuses(t *testing.T) {
	for _, status := range []int{http.StatusBadGateway, http.StatusServiceUnavailable} {
		cat := stubCatalog{
			search: func(context.Context, string, int, int) (*services.CatalogPage, error) {
				return nil, fmt.Errorf("%w: %w", services.ErrUpstreamUnavailable, &catalog.UpstreamError{Status: status})
			},
		}
		r := newTestRouter(cat, stubWatchlists{}, stubRatings{})
		if w := do(r, http.MethodGet, "/catalog/games?query=x", ""); w.Code != status {
			t.Fatalf("status = %d; want %d", w.Code, status)
		}
	}
}

func TestGetCatalogGame(t *testing.T) {
	cat := stubCatalog{
		game: func(_ context.Context, id int64) (*catalog.GameSummary, error) {
			if id == 404 {
				return nil, services.ErrCatalogNotFound
			}
			return &catalog.GameSummary{ID: id, Name: "Found"}, nil
		},
	}
	r := newTestRouter(cat, stubWatchlists{}, stubRatings{})

	if w := do(r, http.MethodGet, "/catalog/games/12", ""); w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/catalog/games/404", ""); w.Code != http.StatusNotFound {
		t.Fatalf("missing status = %d; want 404", w.Code)
	}
	for _, bad := range []string{"abc", "0", "-3"} {
		if w := do(r, http.MethodGet, "/catalog/games/"+bad, ""); w.Code != http.StatusBadRequest {
			t.Fatalf("id %q status = %d; want 400", bad, w.Code)
		}
	}
}

func TestGamesByGenreAndPopular(t *testing.T) {
	var genre string
	cat := stubCatalog{
		genre: func(_ context.Context, g string, _, _ int) (*services.CatalogPage, error) {
			genre = g
			if g == "nothing" {
				return nil, services.ErrGenreEmpty
			}
			return &services.CatalogPage{Items: []catalog.GameSummary{}}, nil
		},
	}
	r := newTestRouter(cat, stubWatchlists{}, stubRatings{})

	if w := do(r, http.MethodGet, "/catalog/genres/rpg/games", ""); w.Code != http.StatusOK || genre != "rpg" {
		t.Fatalf("status = %d genre = %q", w.Code, genre)
	}
	if w := do(r, http.MethodGet, "/catalog/genres/nothing/games", ""); w.Code != http.StatusNotFound {
		t.Fatalf("empty genre status = %d; want 404", w.Code)
	}
	if w := do(r, http.MethodGet, "/catalog/popular?page=3", ""); w.Code != http.StatusOK {
		t.Fatalf("popular status = %d", w.Code)
	}
}
