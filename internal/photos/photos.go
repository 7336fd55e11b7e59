// Package photos attaches reference images to selected plants and drops
// the ones nobody has ever photographed.
package photos

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/herbia/internal/cache"
	"github.com/ppiankov/herbia/internal/logger"
	"github.com/ppiankov/herbia/internal/model"
	"github.com/ppiankov/herbia/internal/wikipedia"
)

const photoCacheTTL = 24 * time.Hour

// LeadImager returns one curated image URL for a species, or ""
type LeadImager interface {
	LeadImage(ctx context.Context, scientificName string) string
}

// FieldPhotoSource returns up to n crowd-sourced photo URLs for a species
type FieldPhotoSource interface {
	ObservationPhotos(ctx context.Context, scientificName string, n int) []string
}

// Enricher merges the curated and field photo sources
type Enricher struct {
	curated     LeadImager
	field       FieldPhotoSource
	perSpecies  int
	concurrency int
	cache       cache.Cache
	log         *logger.Logger
}

// NewEnricher creates a new photo enricher; c and log may be nil
func NewEnricher(curated LeadImager, field FieldPhotoSource, perSpecies, concurrency int, c cache.Cache, log *logger.Logger) *Enricher {
	if perSpecies <= 0 {
		perSpecies = 5
	}
	if concurrency <= 0 {
		concurrency = 5
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Enricher{
		curated:     curated,
		field:       field,
		perSpecies:  perSpecies,
		concurrency: concurrency,
		cache:       c,
		log:         log.With("component", "photos"),
	}
}

// PhotosFor fetches both sources concurrently and merges them:
// the curated photo first, then field photos, skipping exact URL duplicates.
func (e *Enricher) PhotosFor(ctx context.Context, scientificName string) []model.Photo {
	key := cache.Key("photos", wikipedia.CleanScientificName(scientificName))
	var cached []model.Photo
	if cache.GetJSON(e.cache, key, &cached) {
		return cached
	}

	var curated string
	var field []string

	// Sources degrade to empty results, so the group never fails
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		curated = e.curated.LeadImage(gctx, scientificName)
		return nil
	})
	g.Go(func() error {
		field = e.field.ObservationPhotos(gctx, scientificName, e.perSpecies)
		return nil
	})
	_ = g.Wait()

	photos := Merge(curated, field)

	// Empty results are not cached so a transient outage is retried next time
	if len(photos) > 0 {
		_ = cache.SetJSON(e.cache, key, photos, photoCacheTTL)
	}
	return photos
}

// Merge builds the ordered photo list for one species
func Merge(curated string, field []string) []model.Photo {
	photos := make([]model.Photo, 0, len(field)+1)
	seen := make(map[string]bool, len(field)+1)

	if curated != "" {
		photos = append(photos, model.Photo{URL: curated, Source: model.PhotoSourceWikipedia})
		seen[curated] = true
	}
	for _, u := range field {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		photos = append(photos, model.Photo{URL: u, Source: model.PhotoSourceINaturalist})
	}
	return photos
}

// Enrich attaches photos to every plant concurrently and drops plants with none.
// Input order is preserved.
func (e *Enricher) Enrich(ctx context.Context, plants []model.SelectedPlant) ([]model.SelectedPlant, error) {
	results := make([][]model.Photo, len(plants))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i := range plants {
		g.Go(func() error {
			results[i] = e.PhotosFor(gctx, plants[i].ScientificName)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]model.SelectedPlant, 0, len(plants))
	for i, p := range plants {
		if len(results[i]) == 0 {
			e.log.Warn("dropping plant without photos", "species", p.ScientificName)
			continue
		}
		p.Photos = results[i]
		out = append(out, p)
	}
	return out, nil
}
