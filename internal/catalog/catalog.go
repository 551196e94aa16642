// Package catalog is the client side of the external game catalog (IGDB).
// It exposes the Gateway interface consumed by the services, an HTTP client
// implementing it, a caching decorator, and the presentation helpers that
// turn catalog records into API summaries.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Gateway is the read-only view of the external catalog.
type Gateway interface {
	Search(ctx context.Context, query string, limit, offset int) ([]Record, error)
	GetByID(ctx context.Context, id int64) (*Record, error)
	SearchByGenre(ctx context.Context, genre string, limit, offset int) ([]Record, error)
	ListPopular(ctx context.Context, limit, offset int) ([]Record, error)
}

var (
	// ErrNotFound is returned by GetByID when the catalog has no such game.
	ErrNotFound = errors.New("catalog: game not found")

	// ErrUpstream is wrapped by every *UpstreamError.
	ErrUpstream = errors.New("catalog: upstream failure")
)

// UpstreamError reports a failed exchange with the catalog or its token
// endpoint. Status is the HTTP status the API layer should answer with:
// 503 when authentication failed, 502 otherwise.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("catalog upstream (%d): %s", e.Status, e.Message)
}

// Unwrap lets callers match any upstream failure with errors.Is(err, ErrUpstream).
func (e *UpstreamError) Unwrap() error { return ErrUpstream }

// Record is a game as returned by the catalog. Only consumed fields are
// decoded; pointer fields are absent when the catalog omits them.
type Record struct {
	ID                int64             `json:"id"`
	Name              string            `json:"name"`
	Summary           string            `json:"summary,omitempty"`
	Cover             *Image            `json:"cover,omitempty"`
	Screenshots       []Image           `json:"screenshots,omitempty"`
	Artworks          []Image           `json:"artworks,omitempty"`
	Videos            []Video           `json:"videos,omitempty"`
	Genres            []Named           `json:"genres,omitempty"`
	Platforms         []Named           `json:"platforms,omitempty"`
	InvolvedCompanies []InvolvedCompany `json:"involved_companies,omitempty"`
	DLCs              []DLC             `json:"dlcs,omitempty"`
	FirstReleaseDate  *int64            `json:"first_release_date,omitempty"`
	AggregatedRating  *float64          `json:"aggregated_rating,omitempty"`
	TotalRatingCount  *int64            `json:"total_rating_count,omitempty"`
	RatingCount       *int64            `json:"rating_count,omitempty"`
}

// Image is a catalog image reference. URL is protocol-relative.
type Image struct {
	URL string `json:"url"`
}

// Video is a YouTube video reference.
type Video struct {
	VideoID string `json:"video_id"`
}

// Named is a genre or platform entry.
type Named struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// InvolvedCompany is a company credited on a game with its role flags.
type InvolvedCompany struct {
	Company   Company `json:"company"`
	Developer bool    `json:"developer"`
	Publisher bool    `json:"publisher"`
}

// Company is the catalog's company entry. Country is an ISO 3166-1 numeric
// code and StartDate a unix timestamp.
type Company struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Country   *int   `json:"country,omitempty"`
	StartDate *int64 `json:"start_date,omitempty"`
}

// DLC is downloadable content listed on a game.
type DLC struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Summary string `json:"summary,omitempty"`
}

// Unconfigured is the Gateway used when no catalog credentials are set.
// Every call fails with a 503 UpstreamError without touching the network.
type Unconfigured struct{}

func (Unconfigured) err() error {
	return &UpstreamError{Status: http.StatusServiceUnavailable, Message: "catalog credentials are not configured"}
}

func (u Unconfigured) Search(context.Context, string, int, int) ([]Record, error) {
	return nil, u.err()
}

func (u Unconfigured) GetByID(context.Context, int64) (*Record, error) { return nil, u.err() }

func (u Unconfigured) SearchByGenre(context.Context, string, int, int) ([]Record, error) {
	return nil, u.err()
}

func (u Unconfigured) ListPopular(context.Context, int, int) ([]Record, error) {
	return nil, u.err()
}
