// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides review persistence and the aggregate
// queries behind average ratings and the top-rated ranking.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-game-watchlist/internal/domain"
)

// FindReviewByUserGame returns the review userID wrote for gameID.
func FindReviewByUserGame(ctx context.Context, db *gorm.DB, userID string, gameID uint) (*domain.Review, error) {
	var r domain.Review
	err := db.WithContext(ctx).
		Where("user_id = ? AND game_id = ?", userID, gameID).
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetReview returns a review by id.
func GetReview(ctx context.Context, db *gorm.DB, id uint) (*domain.Review, error) {
	var r domain.Review
	if err := db.WithContext(ctx).First(&r, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateReview inserts r. A second review for the same (user, game) pair
// yields ErrDuplicate.
func CreateReview(ctx context.Context, db *gorm.DB, r *domain.Review) error {
	err := db.WithContext(ctx).Omit("User", "Game").Create(r).Error
	return duplicate(err)
}

// UpdateReview overwrites score and comment of r in place.
func UpdateReview(ctx context.Context, db *gorm.DB, r *domain.Review, score float64, comment *string) error {
	now := time.Now().UTC()
	err := db.WithContext(ctx).Model(&domain.Review{}).
		Where("id = ?", r.ID).
		Updates(map[string]any{"score": score, "comment": comment, "updated_at": now}).Error
	if err != nil {
		return err
	}
	r.Score, r.Comment, r.UpdatedAt = score, comment, now
	return nil
}

// DeleteReview removes a review by id.
func DeleteReview(ctx context.Context, db *gorm.DB, id uint) error {
	res := db.WithContext(ctx).Delete(&domain.Review{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ScoreSummary is the unrounded mean and size of a game's review set.
type ScoreSummary struct {
	Average float64
	Count   int64
}

// AverageScore computes the mean score and count of all reviews of gameID.
// Average is 0 when the game has no reviews.
func AverageScore(ctx context.Context, db *gorm.DB, gameID uint) (ScoreSummary, error) {
	var s ScoreSummary
	err := db.WithContext(ctx).Model(&domain.Review{}).
		Select("COALESCE(AVG(score), 0) AS average, COUNT(*) AS count").
		Where("game_id = ?", gameID).
		Scan(&s).Error
	return s, err
}

// ScoreSummaries computes AverageScore for several games at once. Games
// without reviews are absent from the result.
func ScoreSummaries(ctx context.Context, db *gorm.DB, gameIDs []uint) (map[uint]ScoreSummary, error) {
	out := make(map[uint]ScoreSummary, len(gameIDs))
	if len(gameIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		GameID  uint
		Average float64
		Count   int64
	}
	err := db.WithContext(ctx).Model(&domain.Review{}).
		Select("game_id, AVG(score) AS average, COUNT(*) AS count").
		Where("game_id IN ?", gameIDs).
		Group("game_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.GameID] = ScoreSummary{Average: r.Average, Count: r.Count}
	}
	return out, nil
}

// UserScores maps each of gameIDs that userID reviewed to the user's score.
func UserScores(ctx context.Context, db *gorm.DB, userID string, gameIDs []uint) (map[uint]float64, error) {
	out := make(map[uint]float64, len(gameIDs))
	if userID == "" || len(gameIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		GameID uint
		Score  float64
	}
	err := db.WithContext(ctx).Model(&domain.Review{}).
		Select("game_id, score").
		Where("user_id = ? AND game_id IN ?", userID, gameIDs).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.GameID] = r.Score
	}
	return out, nil
}

// ListReviewsByGame returns every review of gameID, oldest first.
func ListReviewsByGame(ctx context.Context, db *gorm.DB, gameID uint) ([]domain.Review, error) {
	var out []domain.Review
	err := db.WithContext(ctx).
		Where("game_id = ?", gameID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// ListReviewsByUser returns the reviews written by userID with their game,
// newest first.
func ListReviewsByUser(ctx context.Context, db *gorm.DB, userID string) ([]domain.Review, error) {
	var out []domain.Review
	err := db.WithContext(ctx).
		Preload("Game").
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&out).Error
	return out, err
}

// RankedGame is one entry of the top-rated ranking.
type RankedGame struct {
	GameID        uint
	AverageRating float64
	ReviewCount   int64
}

// TopRated ranks games that have at least one review by stored average rating
// descending, breaking ties by game id ascending.
func TopRated(ctx context.Context, db *gorm.DB, limit int) ([]RankedGame, error) {
	var out []RankedGame
	err := db.WithContext(ctx).
		Table("games").
		Select("games.id AS game_id, games.average_rating AS average_rating, COUNT(reviews.id) AS review_count").
		Joins("JOIN reviews ON reviews.game_id = games.id").
		Group("games.id, games.average_rating").
		Order("games.average_rating DESC, games.id ASC").
		Limit(limit).
		Scan(&out).Error
	return out, err
}
