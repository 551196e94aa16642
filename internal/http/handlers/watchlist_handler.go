// Watchlist HTTP handlers.
//
// This file exposes REST endpoints for watchlists and the favorites list:
//   - GET    /watchlists                                (list, ETag support)
//   - POST   /watchlists                                (create)
//   - GET    /watchlists/{id}                           (detail)
//   - DELETE /watchlists/{id}                           (delete)
//   - POST   /watchlists/{id}/games                     (add catalog game)
//   - DELETE /watchlists/{id}/games/{gameId}            (remove)
//   - PATCH  /watchlists/{id}/games/{gameId}/status     (set play status)
//   - POST   /favorites/games                           (add to favorites)
//   - DELETE /favorites/games/{gameId}                  (remove from favorites)
//
// Game references in paths accept a catalog id or a local id; request bodies
// always carry catalog ids.
package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-game-watchlist/internal/domain"
)

//
// DTOs
//

// CreateWatchlistRequest is the JSON payload for creating a watchlist.
type CreateWatchlistRequest struct {
	// Name is 1-100 characters. "Favoritos" returns the favorites list.
	Name string `json:"name" binding:"required" example:"Backlog 2024"`
}

// AddGameRequest names a catalog game to list.
type AddGameRequest struct {
	GameID int64 `json:"game_id" binding:"required,gt=0" example:"1942"`
}

// UpdateStatusRequest sets the play status of a member game.
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required" enums:"PLAYED,NOT_PLAYED,DROPPED" example:"PLAYED"`
}

// MembershipResponse is a game's membership in a watchlist.
type MembershipResponse struct {
	WatchlistID uint      `json:"watchlist_id"`
	GameID      uint      `json:"game_id"`
	Status      string    `json:"status" example:"NOT_PLAYED"`
	AddedAt     time.Time `json:"added_at"`
}

// ListWatchlistsResponse wraps the caller's watchlists.
type ListWatchlistsResponse struct {
	Watchlists []domain.Watchlist `json:"watchlists"`
}

func membership(m *domain.WatchlistGame) MembershipResponse {
	return MembershipResponse{
		WatchlistID: m.WatchlistID,
		GameID:      m.GameID,
		Status:      m.Status.Code(),
		AddedAt:     m.AddedAt,
	}
}

//
// Handlers
//

// ListWatchlists godoc
// @ID          listWatchlists
// @Summary     List my watchlists
// @Description Returns the caller's watchlists, oldest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Watchlists
// @Produce     json
//
// @Param       X-User-ID      header  string  false  "User ID (dev header)"        example(user123)
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
//
// @Success     200  {object}  handlers.ListWatchlistsResponse
// @Header      200  {string}  ETag  "Weak ETag for current result"
// @Success     304  {string}  string  "Not Modified"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Security    BearerAuth
// @Router      /watchlists [get]
func (h *Handlers) ListWatchlists(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)

	// ETag pre-check (best effort).
	if count, maxTS, err := h.watchlistSvc.Stats(ctx, uid); err == nil {
		var ts int64
		if maxTS != nil {
			ts = maxTS.UnixNano()
		}
		etag := fmt.Sprintf(`W/"watchlists:%s:%d:%d"`, uid, count, ts)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	items, err := h.watchlistSvc.List(ctx, uid)
	if err != nil {
		serviceError(c, err)
		return
	}
	if items == nil {
		items = []domain.Watchlist{}
	}
	ok(c, http.StatusOK, ListWatchlistsResponse{Watchlists: items})
}

// CreateWatchlist godoc
// @ID          createWatchlist
// @Summary     Create a watchlist
// @Tags        Watchlists
// @Accept      json
// @Produce     json
//
// @Param       Idempotency-Key  header  string  false  "Replay key for retries"
// @Param       body             body    handlers.CreateWatchlistRequest  true  "Watchlist"
//
// @Success     201  {object}  domain.Watchlist
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid name"
// @Security    BearerAuth
// @Router      /watchlists [post]
func (h *Handlers) CreateWatchlist(c *gin.Context) {
	var req CreateWatchlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name required")
		return
	}
	w, err := h.watchlistSvc.Create(c.Request.Context(), userID(c), req.Name)
	if err != nil {
		serviceError(c, err)
		return
	}
	ok(c, http.StatusCreated, w)
}

// GetWatchlist godoc
// @ID          getWatchlist
// @Summary     Get a watchlist with its games
// @Description Any user may read a watchlist; viewer_score is the caller's own review score.
// @Tags        Watchlists
// @Produce     json
//
// @Param       id  path  int  true  "Watchlist id"  minimum(1)
//
// @Success     200  {object}  services.WatchlistView
// @Failure     404  {object}  handlers.ErrorResponse  "Watchlist not found"
// @Security    BearerAuth
// @Router      /watchlists/{id} [get]
func (h *Handlers) GetWatchlist(c *gin.Context) {
	id, good := pathUint(c, "id")
	if !good {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "id must be a positive integer")
		return
	}
	v, err := h.watchlistSvc.Detail(c.Request.Context(), userID(c), id)
	if err != nil {
		serviceError(c, err)
		return
	}
	ok(c, http.StatusOK, v)
}

// DeleteWatchlist godoc
// @ID          deleteWatchlist
// @Summary     Delete a watchlist
// @Tags        Watchlists
//
// @Param       id  path  int  true  "Watchlist id"  minimum(1)
//
// @Success     204  {string}  string  "No Content"
// @Failure     403  {object}  handlers.ErrorResponse  "Not the owner"
// @Failure     404  {object}  handlers.ErrorResponse  "Watchlist not found"
// @Security    BearerAuth
// @Router      /watchlists/{id} [delete]
func (h *Handlers) DeleteWatchlist(c *gin.Context) {
	id, good := pathUint(c, "id")
	if !good {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "id must be a positive integer")
		return
	}
	if err := h.watchlistSvc.Delete(c.Request.Context(), userID(c), id); err != nil {
		serviceError(c, err)
		return
	}
	noContent(c)
}

// AddWatchlistGame godoc
// @ID          addWatchlistGame
// @Summary     Add a catalog game to a watchlist
// @Description Imports the game from the catalog on first use and lists it with status NOT_PLAYED.
// @Tags        Watchlists
// @Accept      json
// @Produce     json
//
// @Param       id               path    int     true   "Watchlist id"  minimum(1)
// @Param       Idempotency-Key  header  string  false  "Replay key for retries"
// @Param       body             body    handlers.AddGameRequest  true  "Catalog game"
//
// @Success     201  {object}  handlers.MembershipResponse
// @Failure     403  {object}  handlers.ErrorResponse  "Not the owner"
// @Failure     404  {object}  handlers.ErrorResponse  "Watchlist or catalog game not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Already in watchlist"
// @Failure     502  {object}  handlers.ErrorResponse  "Catalog unavailable"
// @Security    BearerAuth
// @Router      /watchlists/{id}/games [post]
func (h *Handlers) AddWatchlistGame(c *gin.Context) {
	id, good := pathUint(c, "id")
	if !good {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "id must be a positive integer")
		return
	}
	var req AddGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "game_id must be a positive integer")
		return
	}
	m, err := h.watchlistSvc.AddCatalogGame(c.Request.Context(), userID(c), id, req.GameID)
	if err != nil {
		serviceError(c, err)
		return
	}
	ok(c, http.StatusCreated, membership(m))
}

// RemoveWatchlistGame godoc
// @ID          removeWatchlistGame
// @Summary     Remove a game from a watchlist
// @Tags        Watchlists
//
// @Param       id      path  int  true  "Watchlist id"             minimum(1)
// @Param       gameId  path  int  true  "Catalog or local game id"  minimum(1)
//
// @Success     204  {string}  string  "No Content"
// @Failure     403  {object}  handlers.ErrorResponse  "Not the owner"
// @Failure     404  {object}  handlers.ErrorResponse  "Not in watchlist"
// @Security    BearerAuth
// @Router      /watchlists/{id}/games/{gameId} [delete]
func (h *Handlers) RemoveWatchlistGame(c *gin.Context) {
	id, good := pathUint(c, "id")
	ref, goodRef := pathID(c, "gameId")
	if !good || !goodRef {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "ids must be positive integers")
		return
	}
	if err := h.watchlistSvc.RemoveGame(c.Request.Context(), userID(c), id, ref); err != nil {
		serviceError(c, err)
		return
	}
	noContent(c)
}

// UpdateWatchlistGameStatus godoc
// @ID          updateWatchlistGameStatus
// @Summary     Set the play status of a listed game
// @Tags        Watchlists
// @Accept      json
// @Produce     json
//
// @Param       id      path  int  true  "Watchlist id"             minimum(1)
// @Param       gameId  path  int  true  "Catalog or local game id"  minimum(1)
// @Param       body    body  handlers.UpdateStatusRequest  true  "Status"
//
// @Success     200  {object}  services.WatchlistView
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid status"
// @Failure     403  {object}  handlers.ErrorResponse  "Not the owner"
// @Failure     404  {object}  handlers.ErrorResponse  "Not in watchlist"
// @Security    BearerAuth
// @Router      /watchlists/{id}/games/{gameId}/status [patch]
func (h *Handlers) UpdateWatchlistGameStatus(c *gin.Context) {
	id, good := pathUint(c, "id")
	ref, goodRef := pathID(c, "gameId")
	if !good || !goodRef {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "ids must be positive integers")
		return
	}
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "status required")
		return
	}
	v, err := h.watchlistSvc.UpdateStatus(c.Request.Context(), userID(c), id, ref, req.Status)
	if err != nil {
		serviceError(c, err)
		return
	}
	ok(c, http.StatusOK, v)
}

// AddFavorite godoc
// @ID          addFavorite
// @Summary     Add a catalog game to my favorites
// @Description Creates the favorites list on first use.
// @Tags        Favorites
// @Accept      json
// @Produce     json
//
// @Param       Idempotency-Key  header  string  false  "Replay key for retries"
// @Param       body             body    handlers.AddGameRequest  true  "Catalog game"
//
// @Success     201  {object}  handlers.MembershipResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Catalog game not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Already a favorite"
// @Failure     502  {object}  handlers.ErrorResponse  "Catalog unavailable"
// @Security    BearerAuth
// @Router      /favorites/games [post]
func (h *Handlers) AddFavorite(c *gin.Context) {
	var req AddGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "game_id must be a positive integer")
		return
	}
	_, m, err := h.watchlistSvc.AddFavorite(c.Request.Context(), userID(c), req.GameID)
	if err != nil {
		serviceError(c, err)
		return
	}
	ok(c, http.StatusCreated, membership(m))
}

// RemoveFavorite godoc
// @ID          removeFavorite
// @Summary     Remove a game from my favorites
// @Tags        Favorites
//
// @Param       gameId  path  int  true  "Catalog or local game id"  minimum(1)
//
// @Success     204  {string}  string  "No Content"
// @Failure     404  {object}  handlers.ErrorResponse  "No favorites list or not a favorite"
// @Security    BearerAuth
// @Router      /favorites/games/{gameId} [delete]
func (h *Handlers) RemoveFavorite(c *gin.Context) {
	ref, good := pathID(c, "gameId")
	if !good {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "gameId must be a positive integer")
		return
	}
	if err := h.watchlistSvc.RemoveFavorite(c.Request.Context(), userID(c), ref); err != nil {
		serviceError(c, err)
		return
	}
	noContent(c)
}
