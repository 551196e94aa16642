// Package services – Resolver
//
// This file implements the entity resolver. It makes a catalog record locally
// durable: the game row, its developer and publisher, genres, platforms and
// DLCs. Every natural key is unique in the store, so a repeated import reuses
// the existing rows instead of duplicating them.
package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-game-watchlist/internal/cache"
	"github.com/tbourn/go-game-watchlist/internal/catalog"
	"github.com/tbourn/go-game-watchlist/internal/domain"
	"github.com/tbourn/go-game-watchlist/internal/repo"
	"github.com/tbourn/go-game-watchlist/internal/search"
)

// DefaultImportLockTTL bounds how long an import may hold its catalog id lock.
const DefaultImportLockTTL = 30 * time.Second

// Resolver mirrors catalog games into the local store.
type Resolver struct {
	DB      *gorm.DB
	Catalog catalog.Gateway

	// Locks serializes imports of the same catalog id. Nil disables locking;
	// the unique external id then turns a lost race into a re-fetch.
	Locks   cache.Locker
	LockTTL time.Duration

	// Index, when set, receives every newly imported game.
	Index *search.Memory
}

// NewResolver constructs a Resolver with the default lock TTL.
func NewResolver(db *gorm.DB, gw catalog.Gateway, locks cache.Locker, idx *search.Memory) *Resolver {
	return &Resolver{DB: db, Catalog: gw, Locks: locks, LockTTL: DefaultImportLockTTL, Index: idx}
}

// EnsureGameLocal returns the local id of the game with the given catalog id,
// importing it first when it has never been seen.
//
// The fast path answers from the store without calling the catalog. A miss
// takes the per-id lock, checks again, fetches the record and writes all rows
// in one transaction. Errors are ErrCatalogNotFound when the catalog has no
// such game, ErrUpstreamUnavailable when the catalog failed, or the store
// error.
func (r *Resolver) EnsureGameLocal(ctx context.Context, catalogID int64) (uint, error) {
	tr := otel.Tracer("services/Resolver")
	ctx, span := tr.Start(ctx, "EnsureGameLocal",
		trace.WithAttributes(attribute.Int64("catalog.id", catalogID)),
	)
	defer span.End()

	if id, ok, err := r.known(ctx, catalogID); err != nil || ok {
		return id, err
	}

	if r.Locks != nil {
		unlock, err := r.Locks.Lock(ctx, "import:"+strconv.FormatInt(catalogID, 10), r.lockTTL())
		if err != nil {
			return 0, err
		}
		defer unlock()

		// Another importer may have finished while we waited.
		if id, ok, err := r.known(ctx, catalogID); err != nil || ok {
			return id, err
		}
	}

	rec, err := r.Catalog.GetByID(ctx, catalogID)
	if err != nil {
		span.RecordError(err)
		return 0, upstream(err, ErrCatalogNotFound)
	}

	var (
		game    *domain.Game
		created bool
	)
	err = r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		game, created, err = importRecord(ctx, tx, rec)
		return err
	})
	if errors.Is(err, repo.ErrDuplicate) {
		// Lost the race to an importer outside this lock domain.
		if id, ok, ferr := r.known(ctx, catalogID); ferr == nil && ok {
			return id, nil
		}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "import failed")
		return 0, err
	}

	span.SetAttributes(attribute.Int64("game.id", int64(game.ID)), attribute.Bool("game.created", created))
	if created {
		log.Info().Int64("catalog_id", catalogID).Uint("game_id", game.ID).Str("title", game.Title).Msg("catalog game imported")
	}
	if r.Index != nil {
		r.Index.Add(indexDoc(*game))
	}
	return game.ID, nil
}

func (r *Resolver) known(ctx context.Context, catalogID int64) (uint, bool, error) {
	g, err := repo.FindGameByExternalID(ctx, r.DB, catalogID)
	switch {
	case err == nil:
		return g.ID, true, nil
	case isNotFound(err):
		return 0, false, nil
	default:
		return 0, false, err
	}
}

func (r *Resolver) lockTTL() time.Duration {
	if r.LockTTL <= 0 {
		return DefaultImportLockTTL
	}
	return r.LockTTL
}

// importRecord writes rec and its associations through tx. A game with the
// same title and no catalog id is adopted instead of creating a new row; the
// boolean reports whether a new game row was inserted.
func importRecord(ctx context.Context, tx *gorm.DB, rec *catalog.Record) (*domain.Game, bool, error) {
	title := strings.TrimSpace(rec.Name)

	g, err := repo.FindUnlinkedGameByTitle(ctx, tx, title)
	switch {
	case err == nil:
		if err := repo.SetGameExternalID(ctx, tx, g.ID, rec.ID); err != nil {
			return nil, false, err
		}
		ext := rec.ID
		g.ExternalID = &ext
		return g, false, nil
	case !isNotFound(err):
		return nil, false, err
	}

	dev, pub, err := resolveCompanies(ctx, tx, rec.InvolvedCompanies)
	if err != nil {
		return nil, false, err
	}

	ext := rec.ID
	g = &domain.Game{
		ExternalID:  &ext,
		Title:       title,
		Description: optional(rec.Summary),
		CriticScore: catalog.CriticScore(rec.AggregatedRating, 1),
	}
	if rec.Cover != nil && rec.Cover.URL != "" {
		cover := catalog.CoverURL(rec.Cover.URL)
		g.CoverURL = &cover
	}
	if dev != nil {
		g.DeveloperID = &dev.ID
	}
	if pub != nil {
		g.PublisherID = &pub.ID
	}
	if err := repo.CreateGame(ctx, tx, g); err != nil {
		return nil, false, err
	}

	for _, n := range rec.Genres {
		if strings.TrimSpace(n.Name) == "" {
			continue
		}
		genre, err := repo.GetOrCreateGenre(ctx, tx, n.Name)
		if err != nil {
			return nil, false, err
		}
		if err := repo.LinkGameGenre(ctx, tx, g.ID, genre.ID); err != nil {
			return nil, false, err
		}
	}

	released := catalog.ReleaseTime(rec.FirstReleaseDate)
	for _, n := range rec.Platforms {
		if strings.TrimSpace(n.Name) == "" {
			continue
		}
		p, err := repo.GetOrCreatePlatform(ctx, tx, n.Name)
		if err != nil {
			return nil, false, err
		}
		if err := repo.LinkGamePlatform(ctx, tx, g.ID, p.ID, released); err != nil {
			return nil, false, err
		}
	}

	for _, d := range rec.DLCs {
		if strings.TrimSpace(d.Name) == "" {
			continue
		}
		if err := repo.CreateDLC(ctx, tx, g.ID, d.Name, optional(d.Summary)); err != nil {
			return nil, false, err
		}
	}
	return g, true, nil
}

// resolveCompanies keeps the first developer and the first publisher listed.
// A company flagged as both fills the developer slot when it is still empty
// and otherwise the publisher slot.
func resolveCompanies(ctx context.Context, tx *gorm.DB, involved []catalog.InvolvedCompany) (dev, pub *domain.Company, err error) {
	for _, ic := range involved {
		var role string
		switch {
		case ic.Developer && dev == nil:
			role = domain.RoleDeveloper
		case ic.Publisher && pub == nil:
			role = domain.RolePublisher
		default:
			continue
		}
		if strings.TrimSpace(ic.Company.Name) == "" {
			continue
		}

		country, market := catalog.ResolveCountry(ic.Company.Country)
		c, err := repo.GetOrCreateCompany(ctx, tx, &domain.Company{
			Name:      ic.Company.Name,
			Role:      role,
			Country:   country,
			Market:    market,
			FoundedAt: catalog.ReleaseTime(ic.Company.StartDate),
		})
		if err != nil {
			return nil, nil, err
		}
		if role == domain.RoleDeveloper {
			dev = c
		} else {
			pub = c
		}
		if dev != nil && pub != nil {
			break
		}
	}
	return dev, pub, nil
}

func indexDoc(g domain.Game) search.Doc {
	d := search.Doc{ID: g.ID, Title: g.Title}
	if g.Description != nil {
		d.Text = *g.Description
	}
	return d
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
