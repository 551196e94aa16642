package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-game-watchlist/internal/catalog"
	"github.com/tbourn/go-game-watchlist/internal/domain"
	"github.com/tbourn/go-game-watchlist/internal/repo"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db.Exec("PRAGMA foreign_keys=ON;")
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// stubGateway serves records from memory and counts lookups.
type stubGateway struct {
	mu      sync.Mutex
	records map[int64]catalog.Record
	lists   []catalog.Record
	err     error
	delay   time.Duration
	byID    atomic.Int32
}

func newStubGateway(recs ...catalog.Record) *stubGateway {
	g := &stubGateway{records: map[int64]catalog.Record{}}
	for _, r := range recs {
		g.records[r.ID] = r
		g.lists = append(g.lists, r)
	}
	return g
}

func (g *stubGateway) Search(_ context.Context, _ string, limit, offset int) ([]catalog.Record, error) {
	return g.page(limit, offset)
}

func (g *stubGateway) SearchByGenre(_ context.Context, _ string, limit, offset int) ([]catalog.Record, error) {
	return g.page(limit, offset)
}

func (g *stubGateway) ListPopular(_ context.Context, limit, offset int) ([]catalog.Record, error) {
	return g.page(limit, offset)
}

func (g *stubGateway) GetByID(_ context.Context, id int64) (*catalog.Record, error) {
	g.byID.Add(1)
	if g.delay > 0 {
		time.Sleep(g.delay)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	r, ok := g.records[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return &r, nil
}

func (g *stubGateway) page(limit, offset int) ([]catalog.Record, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	if offset >= len(g.lists) {
		return []catalog.Record{}, nil
	}
	end := offset + limit
	if end > len(g.lists) {
		end = len(g.lists)
	}
	return append([]catalog.Record(nil), g.lists[offset:end]...), nil
}

func record(id int64, name string, genres, platforms []string) catalog.Record {
	r := catalog.Record{ID: id, Name: name}
	for i, n := range genres {
		r.Genres = append(r.Genres, catalog.Named{ID: int64(i + 1), Name: n})
	}
	for i, n := range platforms {
		r.Platforms = append(r.Platforms, catalog.Named{ID: int64(i + 1), Name: n})
	}
	return r
}

func novaRecord() catalog.Record {
	r := record(500, "Nova", []string{"RPG"}, []string{"PC"})
	r.Summary = "Space RPG"
	r.Cover = &catalog.Image{URL: "//images.igdb.com/igdb/image/upload/t_thumb/co1.jpg"}
	country := 76
	founded := int64(946684800)
	released := int64(1588291200)
	rating := 87.6543
	r.InvolvedCompanies = []catalog.InvolvedCompany{
		{Company: catalog.Company{ID: 1, Name: "Nova Studio", Country: &country, StartDate: &founded}, Developer: true},
		{Company: catalog.Company{ID: 2, Name: "Big Pub"}, Publisher: true},
	}
	r.DLCs = []catalog.DLC{{ID: 9, Name: "Nova: Depths", Summary: "More"}, {ID: 10, Name: "  "}}
	r.FirstReleaseDate = &released
	r.AggregatedRating = &rating
	return r
}

func count(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	n, err := repo.CountRows(context.Background(), db, model)
	if err != nil {
		t.Fatalf("count %T: %v", model, err)
	}
	return n
}

func seedGame(t *testing.T, db *gorm.DB, title string) *domain.Game {
	t.Helper()
	g := &domain.Game{Title: title}
	if err := repo.CreateGame(context.Background(), db, g); err != nil {
		t.Fatalf("CreateGame(%q): %v", title, err)
	}
	return g
}

func seedWatchlist(t *testing.T, db *gorm.DB, userID, name string) *domain.Watchlist {
	t.Helper()
	if err := repo.EnsureUser(context.Background(), db, userID); err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}
	w, err := repo.CreateWatchlist(context.Background(), db, userID, name)
	if err != nil {
		t.Fatalf("CreateWatchlist: %v", err)
	}
	return w
}

func ptr[T any](v T) *T { return &v }
