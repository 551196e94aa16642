// Package services – RatingService
//
// This file implements the rating aggregator. It owns reviews and keeps the
// stored Game.AverageRating equal to the rounded mean of the game's review
// set. Each review write locks the game row, writes the review, recomputes
// the average and stores it in the same transaction.
package services

import (
	"context"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-game-watchlist/internal/domain"
	"github.com/tbourn/go-game-watchlist/internal/repo"
	"github.com/tbourn/go-game-watchlist/internal/utils"
)

const (
	// MaxScore is the upper bound of a review score. The lower bound is 0.
	MaxScore = 10.0
	// MaxCommentRunes caps review comments.
	MaxCommentRunes = 1000
	// DefaultTopRated is the ranking size when no limit is given.
	DefaultTopRated = 10
	maxTopRated     = 100
)

// ReviewList is the review set of one game with its mean computed at read time.
type ReviewList struct {
	Items   []domain.Review `json:"items"`
	Average float64         `json:"average"`
}

// UserReview is a review of the caller together with the reviewed game.
type UserReview struct {
	ID         uint      `json:"id"`
	GameID     uint      `json:"game_id"`
	ExternalID *int64    `json:"external_id,omitempty"`
	GameTitle  string    `json:"game_title"`
	Score      float64   `json:"score"`
	Comment    *string   `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// RankedGame is one row of the top-rated ranking.
type RankedGame struct {
	Rank int `json:"rank"`
	GameView
	ReviewCount int64 `json:"review_count"`
}

// RatingService manages reviews and the derived average rating.
type RatingService struct {
	DB       *gorm.DB
	Resolver GameResolver
}

// SubmitReview creates or overwrites the review of userID for gameID and
// recomputes the game's average in the same transaction.
func (s *RatingService) SubmitReview(ctx context.Context, userID string, gameID uint, score float64, comment *string) (*domain.Review, error) {
	tr := otel.Tracer("services/RatingService")
	ctx, span := tr.Start(ctx, "SubmitReview",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int64("game.id", int64(gameID)),
			attribute.Float64("review.score", score),
		),
	)
	defer span.End()

	if strings.TrimSpace(userID) == "" {
		return nil, ErrMissingUser
	}
	if err := validateScore(score); err != nil {
		return nil, err
	}
	comment, err := normalizeComment(comment)
	if err != nil {
		return nil, err
	}

	var out *domain.Review
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.LockGame(ctx, tx, gameID); err != nil {
			if isNotFound(err) {
				return ErrGameNotFound
			}
			return err
		}
		if err := repo.EnsureUser(ctx, tx, userID); err != nil {
			return err
		}

		r, err := repo.FindReviewByUserGame(ctx, tx, userID, gameID)
		switch {
		case err == nil:
			if err := repo.UpdateReview(ctx, tx, r, score, comment); err != nil {
				return err
			}
		case isNotFound(err):
			r = &domain.Review{UserID: userID, GameID: gameID, Score: score, Comment: comment}
			if err := repo.CreateReview(ctx, tx, r); err != nil {
				return err
			}
		default:
			return err
		}
		out = r

		avg, err := recomputeAverage(ctx, tx, gameID)
		if err != nil {
			return err
		}
		span.SetAttributes(attribute.Float64("game.average", avg))
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return out, nil
}

// SubmitCatalogReview imports the catalog game if needed, then submits the
// review against its local row.
func (s *RatingService) SubmitCatalogReview(ctx context.Context, userID string, catalogID int64, score float64, comment *string) (*domain.Review, error) {
	if err := validateScore(score); err != nil {
		return nil, err
	}
	if _, err := normalizeComment(comment); err != nil {
		return nil, err
	}
	gameID, err := s.Resolver.EnsureGameLocal(ctx, catalogID)
	if err != nil {
		return nil, err
	}
	return s.SubmitReview(ctx, userID, gameID, score, comment)
}

// DeleteReview deletes a review written by userID and recomputes the game's
// average. Unknown reviews yield ErrReviewNotFound; reviews of other users
// ErrNotReviewAuthor.
func (s *RatingService) DeleteReview(ctx context.Context, userID string, reviewID uint) error {
	tr := otel.Tracer("services/RatingService")
	ctx, span := tr.Start(ctx, "DeleteReview",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int64("review.id", int64(reviewID)),
		),
	)
	defer span.End()

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := repo.GetReview(ctx, tx, reviewID)
		if err != nil {
			if isNotFound(err) {
				return ErrReviewNotFound
			}
			return err
		}
		if r.UserID != userID {
			return ErrNotReviewAuthor
		}
		if err := repo.LockGame(ctx, tx, r.GameID); err != nil {
			return err
		}
		if err := repo.DeleteReview(ctx, tx, r.ID); err != nil {
			if isNotFound(err) {
				return ErrReviewNotFound
			}
			return err
		}
		_, err = recomputeAverage(ctx, tx, r.GameID)
		return err
	})
}

// ListReviewsForGame returns every review of gameID and their mean rounded to
// one decimal, recomputed from the rows rather than read from the game. A game
// without reviews has an empty list and a 0 average.
func (s *RatingService) ListReviewsForGame(ctx context.Context, gameID uint) (*ReviewList, error) {
	items, err := repo.ListReviewsByGame(ctx, s.DB, gameID)
	if err != nil {
		return nil, err
	}
	out := &ReviewList{Items: items, Average: 0}
	if len(items) == 0 {
		out.Items = []domain.Review{}
		return out, nil
	}
	var sum float64
	for _, r := range items {
		sum += r.Score
	}
	out.Average = utils.Round(sum/float64(len(items)), 1)
	return out, nil
}

// ListReviewsByRef is ListReviewsForGame for a catalog id of an imported game
// or a local game id. A reference to no local game yields an empty list.
func (s *RatingService) ListReviewsByRef(ctx context.Context, ref int64) (*ReviewList, error) {
	id, ok, err := repo.ResolveGameRef(ctx, s.DB, ref)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &ReviewList{Items: []domain.Review{}}, nil
	}
	return s.ListReviewsForGame(ctx, id)
}

// ListUserReviews returns the reviews written by userID, newest first.
func (s *RatingService) ListUserReviews(ctx context.Context, userID string) ([]UserReview, error) {
	rows, err := repo.ListReviewsByUser(ctx, s.DB, userID)
	if err != nil {
		return nil, err
	}
	out := make([]UserReview, 0, len(rows))
	for _, r := range rows {
		out = append(out, UserReview{
			ID:         r.ID,
			GameID:     r.GameID,
			ExternalID: r.Game.ExternalID,
			GameTitle:  r.Game.Title,
			Score:      r.Score,
			Comment:    r.Comment,
			CreatedAt:  r.CreatedAt,
			UpdatedAt:  r.UpdatedAt,
		})
	}
	return out, nil
}

// TopRated ranks reviewed games by stored average rating descending, ties by
// game id ascending. Games without reviews are not ranked.
func (s *RatingService) TopRated(ctx context.Context, limit int) ([]RankedGame, error) {
	tr := otel.Tracer("services/RatingService")
	ctx, span := tr.Start(ctx, "TopRated", trace.WithAttributes(attribute.Int("limit", limit)))
	defer span.End()

	if limit <= 0 {
		limit = DefaultTopRated
	}
	if limit > maxTopRated {
		limit = maxTopRated
	}

	ranked, err := repo.TopRated(ctx, s.DB, limit)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(ranked))
	for _, r := range ranked {
		ids = append(ids, r.GameID)
	}
	games, err := repo.GamesByIDs(ctx, s.DB, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]domain.Game, len(games))
	for _, g := range games {
		byID[g.ID] = g
	}

	out := make([]RankedGame, 0, len(ranked))
	for _, r := range ranked {
		g, ok := byID[r.GameID]
		if !ok {
			continue
		}
		out = append(out, RankedGame{Rank: len(out) + 1, GameView: NewGameView(g), ReviewCount: r.ReviewCount})
	}
	return out, nil
}

// recomputeAverage stores the rounded mean of the game's reviews, or 0 when
// none are left, and returns it. tx must hold the game row lock.
func recomputeAverage(ctx context.Context, tx *gorm.DB, gameID uint) (float64, error) {
	sum, err := repo.AverageScore(ctx, tx, gameID)
	if err != nil {
		return 0, err
	}
	avg := 0.0
	if sum.Count > 0 {
		avg = utils.Round(sum.Average, 1)
	}
	if err := repo.SetAverageRating(ctx, tx, gameID, avg); err != nil {
		return 0, err
	}
	return avg, nil
}

func validateScore(score float64) error {
	if math.IsNaN(score) || score < 0 || score > MaxScore {
		return ErrInvalidScore
	}
	return nil
}

// normalizeComment trims the comment; blank comments are dropped.
func normalizeComment(c *string) (*string, error) {
	if c == nil {
		return nil, nil
	}
	v := strings.TrimSpace(*c)
	if v == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(v) > MaxCommentRunes {
		return nil, ErrCommentTooLong
	}
	return &v, nil
}
