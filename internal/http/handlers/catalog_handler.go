// Catalog HTTP handlers.
//
// This file exposes read-only endpoints over the external game catalog:
//   - GET /catalog/games                 (search)
//   - GET /catalog/games/{id}            (single game)
//   - GET /catalog/genres/{genre}/games  (by genre)
//   - GET /catalog/popular               (most rated)
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// SearchGames godoc
// @ID          searchGames
// @Summary     Search the catalog
// @Description Searches the external catalog by name. When the catalog is unavailable the local library is searched instead and the page is flagged as a fallback.
// @Tags        Catalog
// @Produce     json
//
// @Param       query  query   string  true   "Search text"     example(zelda)
// @Param       page   query   int     false  "Page number"     minimum(1) default(1)
// @Param       limit  query   int     false  "Items per page"  minimum(1) maximum(50) default(20)
//
// @Success     200  {object}  services.CatalogPage
// @Failure     400  {object}  handlers.ErrorResponse  "Missing query"
// @Failure     502  {object}  handlers.ErrorResponse  "Catalog unavailable"
// @Failure     503  {object}  handlers.ErrorResponse  "Catalog authentication failed"
// @Router      /catalog/games [get]
func (h *Handlers) SearchGames(c *gin.Context) {
	q := strings.TrimSpace(c.Query("query"))
	if q == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "query parameter required")
		return
	}
	page, limit := pagination(c)
	res, err := h.catalogSvc.Search(c.Request.Context(), q, page, limit)
	if err != nil {
		serviceError(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// GetCatalogGame godoc
// @ID          getCatalogGame
// @Summary     Get a catalog game
// @Tags        Catalog
// @Produce     json
//
// @Param       id  path  int  true  "Catalog game id"  minimum(1)
//
// @Success     200  {object}  catalog.GameSummary
// @Failure     400  {object}  handlers.ErrorResponse  "Bad id"
// @Failure     404  {object}  handlers.ErrorResponse  "Not in catalog"
// @Failure     502  {object}  handlers.ErrorResponse  "Catalog unavailable"
// @Router      /catalog/games/{id} [get]
func (h *Handlers) GetCatalogGame(c *gin.Context) {
	id, good := pathID(c, "id")
	if !good {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "id must be a positive integer")
		return
	}
	g, err := h.catalogSvc.CatalogGame(c.Request.Context(), id)
	if err != nil {
		serviceError(c, err)
		return
	}
	ok(c, http.StatusOK, g)
}

// GamesByGenre godoc
// @ID          gamesByGenre
// @Summary     List catalog games of a genre
// @Tags        Catalog
// @Produce     json
//
// @Param       genre  path   string  true   "Genre name or slug"  example(rpg)
// @Param       page   query  int     false  "Page number"         minimum(1) default(1)
// @Param       limit  query  int     false  "Items per page"      minimum(1) maximum(50) default(20)
//
// @Success     200  {object}  services.CatalogPage
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown or empty genre"
// @Failure     502  {object}  handlers.ErrorResponse  "Catalog unavailable"
// @Router      /catalog/genres/{genre}/games [get]
func (h *Handlers) GamesByGenre(c *gin.Context) {
	page, limit := pagination(c)
	res, err := h.catalogSvc.GamesByGenre(c.Request.Context(), c.Param("genre"), page, limit)
	if err != nil {
		serviceError(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// PopularGames godoc
// @ID          popularGames
// @Summary     List popular catalog games
// @Tags        Catalog
// @Produce     json
//
// @Param       page   query  int  false  "Page number"     minimum(1) default(1)
// @Param       limit  query  int  false  "Items per page"  minimum(1) maximum(50) default(20)
//
// @Success     200  {object}  services.CatalogPage
// @Failure     502  {object}  handlers.ErrorResponse  "Catalog unavailable"
// @Router      /catalog/popular [get]
func (h *Handlers) PopularGames(c *gin.Context) {
	page, limit := pagination(c)
	res, err := h.catalogSvc.Popular(c.Request.Context(), page, limit)
	if err != nil {
		serviceError(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}
