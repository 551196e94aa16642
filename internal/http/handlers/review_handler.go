// Review and ranking HTTP handlers.
//
//   - POST   /games/{id}/reviews      (create or overwrite my review)
//   - GET    /games/{id}/reviews      (all reviews of a game with their mean)
//   - DELETE /reviews/{id}            (delete my review)
//   - GET    /me/reviews              (my reviews)
//   - GET    /rankings/top-rated      (games by average rating)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-game-watchlist/internal/services"
	"github.com/tbourn/go-game-watchlist/internal/utils"
)

// SubmitReviewRequest is the JSON payload of a review. Score is required so
// that an explicit 0 is distinguishable from a missing field.
type SubmitReviewRequest struct {
	Score   *float64 `json:"score" binding:"required" minimum:"0" maximum:"10" example:"8.5"`
	Comment *string  `json:"comment,omitempty" maxLength:"1000" example:"Great pacing"`
}

// ListUserReviewsResponse wraps the caller's reviews.
type ListUserReviewsResponse struct {
	Reviews []services.UserReview `json:"reviews"`
}

// TopRatedResponse wraps the ranking.
type TopRatedResponse struct {
	Games []services.RankedGame `json:"games"`
}

// SubmitReview godoc
// @ID          submitReview
// @Summary     Review a game
// @Description Creates the caller's review of a catalog game, or overwrites it. The game is imported on first use and its average rating is recomputed.
// @Tags        Reviews
// @Accept      json
// @Produce     json
//
// @Param       id               path    int     true   "Catalog game id"  minimum(1)
// @Param       Idempotency-Key  header  string  false  "Replay key for retries"
// @Param       body             body    handlers.SubmitReviewRequest  true  "Review"
//
// @Success     201  {object}  domain.Review
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid score or comment"
// @Failure     404  {object}  handlers.ErrorResponse  "Catalog game not found"
// @Failure     502  {object}  handlers.ErrorResponse  "Catalog unavailable"
// @Security    BearerAuth
// @Router      /games/{id}/reviews [post]
func (h *Handlers) SubmitReview(c *gin.Context) {
	id, good := pathID(c, "id")
	if !good {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "id must be a positive integer")
		return
	}
	var req SubmitReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Score == nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "score required")
		return
	}
	r, err := h.ratingSvc.SubmitCatalogReview(c.Request.Context(), userID(c), id, *req.Score, req.Comment)
	if err != nil {
		serviceError(c, err)
		return
	}
	ok(c, http.StatusCreated, r)
}

// ListGameReviews godoc
// @ID          listGameReviews
// @Summary     List the reviews of a game
// @Description Accepts a catalog id or a local id. A game nobody reviewed yields an empty list with average 0.
// @Tags        Reviews
// @Produce     json
//
// @Param       id  path  int  true  "Catalog or local game id"  minimum(1)
//
// @Success     200  {object}  services.ReviewList
// @Router      /games/{id}/reviews [get]
func (h *Handlers) ListGameReviews(c *gin.Context) {
	id, good := pathID(c, "id")
	if !good {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "id must be a positive integer")
		return
	}
	list, err := h.ratingSvc.ListReviewsByRef(c.Request.Context(), id)
	if err != nil {
		serviceError(c, err)
		return
	}
	ok(c, http.StatusOK, list)
}

// DeleteReview godoc
// @ID          deleteReview
// @Summary     Delete my review
// @Tags        Reviews
//
// @Param       id  path  int  true  "Review id"  minimum(1)
//
// @Success     204  {string}  string  "No Content"
// @Failure     403  {object}  handlers.ErrorResponse  "Not the author"
// @Failure     404  {object}  handlers.ErrorResponse  "Review not found"
// @Security    BearerAuth
// @Router      /reviews/{id} [delete]
func (h *Handlers) DeleteReview(c *gin.Context) {
	id, good := pathUint(c, "id")
	if !good {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "id must be a positive integer")
		return
	}
	if err := h.ratingSvc.DeleteReview(c.Request.Context(), userID(c), id); err != nil {
		serviceError(c, err)
		return
	}
	noContent(c)
}

// ListMyReviews godoc
// @ID          listMyReviews
// @Summary     List my reviews
// @Tags        Reviews
// @Produce     json
//
// @Success     200  {object}  handlers.ListUserReviewsResponse
// @Security    BearerAuth
// @Router      /me/reviews [get]
func (h *Handlers) ListMyReviews(c *gin.Context) {
	items, err := h.ratingSvc.ListUserReviews(c.Request.Context(), userID(c))
	if err != nil {
		serviceError(c, err)
		return
	}
	if items == nil {
		items = []services.UserReview{}
	}
	ok(c, http.StatusOK, ListUserReviewsResponse{Reviews: items})
}

// TopRated godoc
// @ID          topRated
// @Summary     Top rated games
// @Description Ranks reviewed games by average rating, ties broken by id.
// @Tags        Rankings
// @Produce     json
//
// @Param       limit  query  int  false  "Ranking size"  minimum(1) maximum(100) default(10)
//
// @Success     200  {object}  handlers.TopRatedResponse
// @Router      /rankings/top-rated [get]
func (h *Handlers) TopRated(c *gin.Context) {
	limit := utils.AtoiDefault(c.Query("limit"), services.DefaultTopRated)
	games, err := h.ratingSvc.TopRated(c.Request.Context(), limit)
	if err != nil {
		serviceError(c, err)
		return
	}
	if games == nil {
		games = []services.RankedGame{}
	}
	ok(c, http.StatusOK, TopRatedResponse{Games: games})
}
