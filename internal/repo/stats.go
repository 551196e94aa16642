package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-game-watchlist/internal/domain"
)

// WatchlistsStats reports how many watchlists userID owns and the most recent
// updated_at among them. Membership edits touch their watchlist, so the pair
// changes whenever the list response would. latest is nil when the user has
// no watchlists.
func WatchlistsStats(ctx context.Context, db *gorm.DB, userID string) (count int64, latest *time.Time, err error) {
	// A user owns a handful of lists; plucking the column sidesteps MAX()
	// returning TEXT on SQLite.
	var stamps []time.Time
	err = db.WithContext(ctx).Model(&domain.Watchlist{}).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Pluck("updated_at", &stamps).Error
	if err != nil || len(stamps) == 0 {
		return 0, nil, err
	}
	ts := stamps[0]
	return int64(len(stamps)), &ts, nil
}
