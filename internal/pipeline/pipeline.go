package pipeline

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/herbia/internal/geo"
	"github.com/ppiankov/herbia/internal/i18n"
	"github.com/ppiankov/herbia/internal/llm"
	"github.com/ppiankov/herbia/internal/logger"
	"github.com/ppiankov/herbia/internal/model"
)

// SpeciesDiscoverer finds species observed around a point
type SpeciesDiscoverer interface {
	Discover(ctx context.Context, lat, lng, radiusKm float64, month int, locale string) []model.CandidateSpecies
}

// TaxonomyEnricher fills Family on candidates in place
type TaxonomyEnricher interface {
	EnrichFamilies(ctx context.Context, candidates []model.CandidateSpecies)
}

// Narrator writes the prose and, on the fallback path, the species list
type Narrator interface {
	DescribeKnown(ctx context.Context, req llm.DescribeRequest) (*llm.DescribeKnownResponse, error)
	SuggestFull(ctx context.Context, req llm.FullRequest) (*llm.FullSuggestionResponse, error)
}

// PhotoEnricher attaches photos and drops plants that have none
type PhotoEnricher interface {
	Enrich(ctx context.Context, plants []model.SelectedPlant) ([]model.SelectedPlant, error)
}

// Selector picks the presented species from discovery candidates
type Selector interface {
	Select(candidates []model.CandidateSpecies, exclude map[string]struct{}) []model.SelectedPlant
}

// QuotaGate counts one request against the daily budget
type QuotaGate interface {
	Allow(ctx context.Context) (bool, error)
}

// Deps is the set of collaborators a Pipeline runs against.
// Quota may be nil (no budget). A nil Narrator makes Suggest fail with NarratorErr.
type Deps struct {
	Discovery   SpeciesDiscoverer
	Taxonomy    TaxonomyEnricher
	Narrator    Narrator
	NarratorErr error
	Photos      PhotoEnricher
	Selector    Selector
	Quota       QuotaGate
	Log         *logger.Logger
}

// Options tunes the orchestration
type Options struct {
	MaxDistanceKm float64
	ZoneRadiusKm  float64
	MinCandidates int
	Target        int
}

// DefaultOptions returns the production thresholds
func DefaultOptions() Options {
	return Options{
		MaxDistanceKm: 100,
		ZoneRadiusKm:  10,
		MinCandidates: 3,
		Target:        5,
	}
}

// Pipeline orchestrates one suggestion request end to end
type Pipeline struct {
	deps Deps
	opts Options
	log  *logger.Logger
	now  func() time.Time
}

// New creates a pipeline; Discovery, Photos and Selector are required
func New(opts Options, deps Deps) (*Pipeline, error) {
	if deps.Discovery == nil || deps.Photos == nil || deps.Selector == nil {
		return nil, fmt.Errorf("pipeline requires discovery, photo and selection components")
	}
	if deps.Narrator == nil && deps.NarratorErr == nil {
		deps.NarratorErr = fmt.Errorf("no LLM provider configured: %w", model.ErrMissingCredentials)
	}

	def := DefaultOptions()
	if opts.MaxDistanceKm <= 0 {
		opts.MaxDistanceKm = def.MaxDistanceKm
	}
	if opts.ZoneRadiusKm <= 0 {
		opts.ZoneRadiusKm = def.ZoneRadiusKm
	}
	if opts.MinCandidates <= 0 {
		opts.MinCandidates = def.MinCandidates
	}
	if opts.Target <= 0 {
		opts.Target = def.Target
	}

	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}

	return &Pipeline{
		deps: deps,
		opts: opts,
		log:  log.With("component", "pipeline"),
		now:  time.Now,
	}, nil
}

// route is a validated request with its resolved geometry
type route struct {
	req       model.SuggestRequest
	lang      string
	exclude   map[string]struct{}
	hasCoords bool
	zone      bool
	origin    geo.Point
	dest      geo.Point
	distance  float64
}

// Suggest runs the full suggestion flow for one request
func (p *Pipeline) Suggest(ctx context.Context, req model.SuggestRequest) (*model.SuggestResult, error) {
	r, err := p.prepare(req)
	if err != nil {
		return nil, err
	}

	if p.deps.Quota != nil {
		ok, err := p.deps.Quota.Allow(ctx)
		if err != nil {
			return nil, fmt.Errorf("check quota: %w", err)
		}
		if !ok {
			p.log.Info("quota exhausted", "origin", r.req.Origin)
			return nil, model.ErrQuotaExhausted
		}
	}

	if r.hasCoords && !r.zone && !geo.SamePoint(r.origin, r.dest) && !withinDistance(r.distance, p.opts.MaxDistanceKm) {
		p.log.Info("route too far", "origin", r.req.Origin, "destination", r.req.Destination, "km", math.Round(r.distance))
		return &model.SuggestResult{
			TooFar:      true,
			Description: i18n.Message(r.lang, i18n.TooFar),
			Plants:      []model.SelectedPlant{},
		}, nil
	}

	if !r.hasCoords {
		return p.fallback(ctx, r)
	}

	center := r.origin
	if !r.zone {
		center = geo.Midpoint(r.origin, r.dest)
	}
	radius := geo.DiscoveryRadius(r.distance, p.opts.ZoneRadiusKm)

	candidates := p.deps.Discovery.Discover(ctx, center.Lat, center.Lng, radius, r.req.Month, r.lang)
	if len(candidates) < p.opts.MinCandidates {
		p.log.Info("too few discovery candidates, using fallback", "candidates", len(candidates),
			"lat", center.Lat, "lng", center.Lng, "radius_km", radius)
		return p.fallback(ctx, r)
	}

	selected := p.deps.Selector.Select(candidates, r.exclude)
	if len(selected) == 0 {
		p.log.Info("every candidate excluded, using fallback", "candidates", len(candidates))
		return p.fallback(ctx, r)
	}

	return p.discovery(ctx, r, selected)
}

// prepare validates the request and resolves its geometry
func (p *Pipeline) prepare(req model.SuggestRequest) (*route, error) {
	req.Origin = strings.TrimSpace(req.Origin)
	req.Destination = strings.TrimSpace(req.Destination)
	if req.Origin == "" {
		return nil, fmt.Errorf("origin is required: %w", model.ErrInvalidInput)
	}
	if req.Month < 1 || req.Month > 12 {
		req.Month = int(p.now().UTC().Month())
	}

	r := &route{
		req:     req,
		lang:    i18n.Normalize(req.Language),
		exclude: model.ExcludeSet(req.Exclude),
		zone:    req.IsZone(),
	}
	r.req.Language = r.lang

	if !req.HasCoords() {
		return r, nil
	}
	r.origin = geo.Point{Lat: *req.OriginLat, Lng: *req.OriginLng}
	if !validPoint(r.origin) {
		return nil, fmt.Errorf("origin coordinates out of range: %w", model.ErrInvalidInput)
	}
	r.hasCoords = true
	r.dest = r.origin

	if req.DestLat != nil && req.DestLng != nil {
		r.dest = geo.Point{Lat: *req.DestLat, Lng: *req.DestLng}
		if !validPoint(r.dest) {
			return nil, fmt.Errorf("destination coordinates out of range: %w", model.ErrInvalidInput)
		}
	} else {
		r.zone = true
	}

	if !r.zone {
		r.distance = geo.Distance(r.origin, r.dest)
	}
	return r, nil
}

// withinDistance is false for a non-finite distance
func withinDistance(km, maxKm float64) bool {
	return !math.IsNaN(km) && !math.IsInf(km, 0) && km <= maxKm
}

func validPoint(pt geo.Point) bool {
	return pt.Lat >= -90 && pt.Lat <= 90 && pt.Lng >= -180 && pt.Lng <= 180 &&
		!math.IsNaN(pt.Lat) && !math.IsNaN(pt.Lng)
}

// discovery describes, annotates and illustrates species chosen from observation data
func (p *Pipeline) discovery(ctx context.Context, r *route, selected []model.SelectedPlant) (*model.SuggestResult, error) {
	if p.deps.Narrator == nil {
		return nil, p.deps.NarratorErr
	}

	refs := make([]llm.SpeciesRef, len(selected))
	taxa := make([]model.CandidateSpecies, len(selected))
	for i, s := range selected {
		refs[i] = llm.SpeciesRef{ScientificName: s.ScientificName, CommonName: s.CommonName}
		taxa[i] = model.CandidateSpecies{ScientificName: s.ScientificName, TaxonID: s.TaxonID, Family: s.Family}
	}

	// Taxonomy and narrative are independent; run them together
	var described *llm.DescribeKnownResponse
	g, gctx := errgroup.WithContext(ctx)
	if p.deps.Taxonomy != nil {
		g.Go(func() error {
			p.deps.Taxonomy.EnrichFamilies(gctx, taxa)
			return nil
		})
	}
	g.Go(func() error {
		resp, err := p.deps.Narrator.DescribeKnown(gctx, llm.DescribeRequest{
			Origin:      r.req.Origin,
			Destination: r.req.DestinationOrSelf(),
			Month:       r.req.Month,
			Language:    r.lang,
			Gender:      r.req.Gender,
			Species:     refs,
		})
		if err != nil {
			return fmt.Errorf("describe species: %w", err)
		}
		described = resp
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i := range selected {
		if taxa[i].Family != "" {
			selected[i].Family = taxa[i].Family
		}
	}
	plants := described.Apply(selected)

	return p.finish(ctx, r, described.Description, plants, model.SourceDiscovery)
}

// fallback asks the model for the whole list when observation data is missing or thin
func (p *Pipeline) fallback(ctx context.Context, r *route) (*model.SuggestResult, error) {
	if p.deps.Narrator == nil {
		return nil, p.deps.NarratorErr
	}

	resp, err := p.deps.Narrator.SuggestFull(ctx, llm.FullRequest{
		Origin:      r.req.Origin,
		Destination: r.req.DestinationOrSelf(),
		Month:       r.req.Month,
		Language:    r.lang,
		Gender:      r.req.Gender,
		Exclude:     r.req.Exclude,
		Count:       p.opts.Target,
	})
	if err != nil {
		return nil, fmt.Errorf("full suggestion: %w", err)
	}

	if resp.TooFar {
		desc := resp.Description
		if desc == "" {
			desc = i18n.Message(r.lang, i18n.TooFar)
		}
		return &model.SuggestResult{
			TooFar:      true,
			Description: desc,
			Plants:      []model.SelectedPlant{},
			Source:      model.SourceLLM,
		}, nil
	}

	// The model may ignore the exclusion list or repeat itself; filter before paying for photos
	plants := dedupe(model.FilterExcluded(resp.ToSelected(), r.exclude))
	if len(plants) > p.opts.Target {
		plants = plants[:p.opts.Target]
	}

	return p.finish(ctx, r, resp.Description, plants, model.SourceLLM)
}

// finish attaches photos, applies the hard exclusion filter and orders by rarity
func (p *Pipeline) finish(ctx context.Context, r *route, description string, plants []model.SelectedPlant, source model.SuggestSource) (*model.SuggestResult, error) {
	withPhotos, err := p.deps.Photos.Enrich(ctx, plants)
	if err != nil {
		return nil, fmt.Errorf("enrich photos: %w", err)
	}

	final := model.FilterExcluded(withPhotos, r.exclude)
	model.SortByRarity(final)

	p.log.Info("suggestion ready", "origin", r.req.Origin, "destination", r.req.Destination,
		"source", string(source), "plants", len(final))

	return &model.SuggestResult{
		Description: description,
		Plants:      final,
		Source:      source,
	}, nil
}

func dedupe(plants []model.SelectedPlant) []model.SelectedPlant {
	seen := make(map[string]bool, len(plants))
	out := plants[:0]
	for _, pl := range plants {
		key := model.NameKey(pl.ScientificName)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, pl)
	}
	return out
}
