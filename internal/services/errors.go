// Package services defines the business logic for the game watchlist: the
// entity resolver that mirrors catalog games locally, the watchlist store and
// its ownership layer, the rating aggregator, and the read-only query views.
// This file centralizes the service-level error values so that callers and
// handlers can classify failures consistently.
//
// Every specific error wraps exactly one taxonomy kind, so callers match with
// errors.Is(err, ErrNotFound) and friends. Translation into HTTP status codes
// is performed at the handler layer.
package services

import (
	"errors"
	"fmt"

	"github.com/tbourn/go-game-watchlist/internal/catalog"
	"github.com/tbourn/go-game-watchlist/internal/repo"
)

// Taxonomy kinds.
var (
	// ErrNotFound indicates a referenced entity (catalog record, game,
	// watchlist, membership, review) does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates the operation would violate a uniqueness invariant.
	ErrConflict = errors.New("conflict")

	// ErrForbidden indicates the caller may not perform the mutation.
	ErrForbidden = errors.New("forbidden")

	// ErrUpstreamUnavailable indicates the catalog failed authentication or
	// answered with a non-success status.
	ErrUpstreamUnavailable = errors.New("catalog unavailable")

	// ErrInvalidInput indicates a request value failed validation.
	ErrInvalidInput = errors.New("invalid input")
)

// Specific errors.
var (
	ErrGameNotFound       = fmt.Errorf("game %w", ErrNotFound)
	ErrCatalogNotFound    = fmt.Errorf("catalog game %w", ErrNotFound)
	ErrWatchlistNotFound  = fmt.Errorf("watchlist %w", ErrNotFound)
	ErrNotInWatchlist     = fmt.Errorf("game not in watchlist: %w", ErrNotFound)
	ErrFavoritesNotFound  = fmt.Errorf("favorites list %w", ErrNotFound)
	ErrReviewNotFound     = fmt.Errorf("review %w", ErrNotFound)
	ErrGenreEmpty         = fmt.Errorf("no games for genre: %w", ErrNotFound)
	ErrAlreadyInWatchlist = fmt.Errorf("game already in watchlist: %w", ErrConflict)
	ErrNotWatchlistOwner  = fmt.Errorf("watchlist belongs to another user: %w", ErrForbidden)
	ErrNotReviewAuthor    = fmt.Errorf("review belongs to another user: %w", ErrForbidden)
	ErrInvalidScore       = fmt.Errorf("score must be between 0 and 10: %w", ErrInvalidInput)
	ErrCommentTooLong     = fmt.Errorf("comment too long: %w", ErrInvalidInput)
	ErrInvalidName        = fmt.Errorf("watchlist name must be 1-100 characters: %w", ErrInvalidInput)
	ErrInvalidStatus      = fmt.Errorf("status must be PLAYED, NOT_PLAYED or DROPPED: %w", ErrInvalidInput)
	ErrMissingUser        = fmt.Errorf("user id required: %w", ErrInvalidInput)
	ErrEmptyQuery         = fmt.Errorf("search query required: %w", ErrInvalidInput)
)

// upstream classifies a catalog error. Upstream failures are wrapped so both
// ErrUpstreamUnavailable and the original *catalog.UpstreamError match.
func upstream(err error, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, catalog.ErrNotFound):
		return notFound
	case errors.Is(err, catalog.ErrUpstream):
		return fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	default:
		return err
	}
}

// isNotFound treats repo-level not found sentinels as "not found".
func isNotFound(err error) bool {
	return errors.Is(err, repo.ErrNotFound)
}

// isDuplicate reports unique-constraint violations from any driver.
func isDuplicate(err error) bool {
	return repo.IsDuplicate(err)
}
