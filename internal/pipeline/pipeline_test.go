package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/ppiankov/herbia/internal/llm"
	"github.com/ppiankov/herbia/internal/model"
	"github.com/ppiankov/herbia/internal/selection"
)

type mockDiscovery struct {
	candidates []model.CandidateSpecies
	calls      int
	lastRadius float64
	lastLat    float64
}

func (m *mockDiscovery) Discover(ctx context.Context, lat, lng, radiusKm float64, month int, locale string) []model.CandidateSpecies {
	m.calls++
	m.lastRadius = radiusKm
	m.lastLat = lat
	return m.candidates
}

type mockTaxonomy struct {
	families map[int]string
	mu       sync.Mutex
	calls    int
}

func (m *mockTaxonomy) EnrichFamilies(ctx context.Context, candidates []model.CandidateSpecies) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	for i := range candidates {
		candidates[i].Family = m.families[candidates[i].TaxonID]
	}
}

type mockNarrator struct {
	describe      *llm.DescribeKnownResponse
	describeErr   error
	full          *llm.FullSuggestionResponse
	fullErr       error
	describeCalls int
	fullCalls     int
	lastFull      llm.FullRequest
}

func (m *mockNarrator) DescribeKnown(ctx context.Context, req llm.DescribeRequest) (*llm.DescribeKnownResponse, error) {
	m.describeCalls++
	if m.describeErr != nil {
		return nil, m.describeErr
	}
	if m.describe != nil {
		return m.describe, nil
	}
	resp := &llm.DescribeKnownResponse{Description: "Observed flora."}
	for _, s := range req.Species {
		resp.Species = append(resp.Species, llm.DescribedSpecies{
			ScientificName: s.ScientificName,
			Description:    "fact about " + s.ScientificName,
			Hint:           "look for " + s.ScientificName,
		})
	}
	return resp, nil
}

func (m *mockNarrator) SuggestFull(ctx context.Context, req llm.FullRequest) (*llm.FullSuggestionResponse, error) {
	m.fullCalls++
	m.lastFull = req
	if m.fullErr != nil {
		return nil, m.fullErr
	}
	return m.full, nil
}

// mockPhotos gives every plant one photo except those listed in none
type mockPhotos struct {
	none  map[string]bool
	calls int
	seen  []string
}

func (m *mockPhotos) Enrich(ctx context.Context, plants []model.SelectedPlant) ([]model.SelectedPlant, error) {
	m.calls++
	out := make([]model.SelectedPlant, 0, len(plants))
	for _, p := range plants {
		m.seen = append(m.seen, p.ScientificName)
		if m.none[p.ScientificName] {
			continue
		}
		p.Photos = []model.Photo{{URL: "https://img/" + p.ScientificName, Source: model.PhotoSourceWikipedia}}
		out = append(out, p)
	}
	return out, nil
}

type mockQuota struct {
	allow bool
	err   error
	calls int
}

func (m *mockQuota) Allow(ctx context.Context) (bool, error) {
	m.calls++
	return m.allow, m.err
}

type fixture struct {
	discovery *mockDiscovery
	taxonomy  *mockTaxonomy
	narrator  *mockNarrator
	photos    *mockPhotos
	quota     *mockQuota
	pipeline  *Pipeline
}

func newFixture(t *testing.T, candidates []model.CandidateSpecies) *fixture {
	t.Helper()
	f := &fixture{
		discovery: &mockDiscovery{candidates: candidates},
		taxonomy:  &mockTaxonomy{families: map[int]string{}},
		narrator:  &mockNarrator{},
		photos:    &mockPhotos{none: map[string]bool{}},
		quota:     &mockQuota{allow: true},
	}
	p, err := New(DefaultOptions(), Deps{
		Discovery: f.discovery,
		Taxonomy:  f.taxonomy,
		Narrator:  f.narrator,
		Photos:    f.photos,
		Selector:  selection.NewSelector(selection.DefaultConfig()),
		Quota:     f.quota,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	p.now = func() time.Time { return time.Date(2026, 4, 10, 8, 0, 0, 0, time.UTC) }
	f.pipeline = p
	return f
}

func candidates(n int) []model.CandidateSpecies {
	out := make([]model.CandidateSpecies, n)
	for i := range out {
		out[i] = model.CandidateSpecies{
			ScientificName: fmt.Sprintf("Genus%d species%d", i, i),
			CommonName:     fmt.Sprintf("Plant %d", i),
			Count:          1000 / (i + 1),
			TaxonID:        i + 1,
		}
	}
	return out
}

func ptr(f float64) *float64 { return &f }

// Pamplona -> Puente la Reina, about 20 km
func nearRoute() model.SuggestRequest {
	return model.SuggestRequest{
		Origin:      "Pamplona",
		Destination: "Puente la Reina",
		Language:    "es",
		OriginLat:   ptr(42.8125),
		OriginLng:   ptr(-1.6458),
		DestLat:     ptr(42.6719),
		DestLng:     ptr(-1.8139),
	}
}

func TestSuggest_DiscoveryPath(t *testing.T) {
	f := newFixture(t, candidates(20))
	f.taxonomy.families[1] = "Fagaceae"

	res, err := f.pipeline.Suggest(context.Background(), nearRoute())
	if err != nil {
		t.Fatalf("Suggest failed: %v", err)
	}

	if res.Source != model.SourceDiscovery {
		t.Errorf("Expected discovery source, got %q", res.Source)
	}
	if res.TooFar {
		t.Error("Expected tooFar=false")
	}
	if len(res.Plants) != 5 {
		t.Fatalf("Expected 5 plants, got %d", len(res.Plants))
	}
	if f.narrator.fullCalls != 0 || f.narrator.describeCalls != 1 {
		t.Errorf("Expected one describe call and no fallback, got describe=%d full=%d", f.narrator.describeCalls, f.narrator.fullCalls)
	}
	if res.Plants[0].Family != "Fagaceae" {
		t.Errorf("Expected family from taxonomy, got %q", res.Plants[0].Family)
	}
	if res.Plants[0].Hint == "" || res.Plants[0].Description == "" {
		t.Error("Expected narrative text applied to plants")
	}
	for i := 1; i < len(res.Plants); i++ {
		if res.Plants[i-1].Rarity.Rank() > res.Plants[i].Rarity.Rank() {
			t.Errorf("Plants not sorted by rarity: %v before %v", res.Plants[i-1].Rarity, res.Plants[i].Rarity)
		}
	}
	if f.discovery.lastRadius < 10 || f.discovery.lastRadius > 100 {
		t.Errorf("Unexpected discovery radius %.1f", f.discovery.lastRadius)
	}
	if f.discovery.lastLat >= 42.8125 || f.discovery.lastLat <= 42.6719 {
		t.Errorf("Expected discovery centered between endpoints, got lat %.4f", f.discovery.lastLat)
	}
}

func TestSuggest_TooFarMakesNoCalls(t *testing.T) {
	f := newFixture(t, candidates(20))

	// Madrid -> Barcelona, about 500 km
	req := model.SuggestRequest{
		Origin:      "Madrid",
		Destination: "Barcelona",
		Language:    "en",
		OriginLat:   ptr(40.4168),
		OriginLng:   ptr(-3.7038),
		DestLat:     ptr(41.3874),
		DestLng:     ptr(2.1686),
	}

	res, err := f.pipeline.Suggest(context.Background(), req)
	if err != nil {
		t.Fatalf("Suggest failed: %v", err)
	}
	if !res.TooFar {
		t.Error("Expected tooFar=true")
	}
	if res.Plants == nil || len(res.Plants) != 0 {
		t.Errorf("Expected empty non-nil plants, got %v", res.Plants)
	}
	if res.Description == "" {
		t.Error("Expected localized explanation")
	}
	if f.discovery.calls != 0 || f.narrator.describeCalls != 0 || f.narrator.fullCalls != 0 || f.photos.calls != 0 {
		t.Errorf("Expected no downstream calls, got discovery=%d describe=%d full=%d photos=%d",
			f.discovery.calls, f.narrator.describeCalls, f.narrator.fullCalls, f.photos.calls)
	}
}

func TestSuggest_AntipodalRouteIsTooFar(t *testing.T) {
	f := newFixture(t, candidates(20))

	req := model.SuggestRequest{
		Origin:      "South",
		Destination: "North",
		OriginLat:   ptr(-86.77999999999997),
		OriginLng:   ptr(-179),
		DestLat:     ptr(86.77999999999997),
		DestLng:     ptr(1),
	}

	res, err := f.pipeline.Suggest(context.Background(), req)
	if err != nil {
		t.Fatalf("Suggest failed: %v", err)
	}
	if !res.TooFar {
		t.Error("Expected tooFar=true for antipodal endpoints")
	}
	if f.discovery.calls != 0 {
		t.Errorf("Expected no discovery calls, got %d", f.discovery.calls)
	}
}

func TestWithinDistance(t *testing.T) {
	tests := []struct {
		km   float64
		want bool
	}{
		{20, true},
		{100, true},
		{100.5, false},
		{math.NaN(), false},
		{math.Inf(1), false},
	}
	for _, tt := range tests {
		if got := withinDistance(tt.km, 100); got != tt.want {
			t.Errorf("withinDistance(%v, 100): expected %v, got %v", tt.km, tt.want, got)
		}
	}
}

func TestSuggest_ZoneModeSkipsDistanceGate(t *testing.T) {
	f := newFixture(t, candidates(10))

	req := model.SuggestRequest{
		Origin:    "Burgos",
		OriginLat: ptr(42.3439),
		OriginLng: ptr(-3.6969),
	}

	res, err := f.pipeline.Suggest(context.Background(), req)
	if err != nil {
		t.Fatalf("Suggest failed: %v", err)
	}
	if res.TooFar {
		t.Error("Zone requests are never too far")
	}
	if f.discovery.lastRadius != 10 {
		t.Errorf("Expected zone radius 10, got %.1f", f.discovery.lastRadius)
	}
}

func TestSuggest_FewCandidatesFallsBack(t *testing.T) {
	f := newFixture(t, candidates(2))
	f.narrator.full = &llm.FullSuggestionResponse{
		Description: "Model flora.",
		Plants: []llm.SuggestedSpecies{
			{CommonName: "Tomillo", ScientificName: "Thymus vulgaris", Rarity: model.RarityCommon, Description: "d"},
			{CommonName: "Orquídea", ScientificName: "Ophrys apifera", Rarity: model.RarityVeryRare, Description: "d"},
			{CommonName: "Romero", ScientificName: "Salvia rosmarinus", Rarity: model.RarityRare, Description: "d"},
		},
	}

	res, err := f.pipeline.Suggest(context.Background(), nearRoute())
	if err != nil {
		t.Fatalf("Suggest failed: %v", err)
	}
	if f.narrator.fullCalls != 1 || f.narrator.describeCalls != 0 {
		t.Errorf("Expected fallback only, got describe=%d full=%d", f.narrator.describeCalls, f.narrator.fullCalls)
	}
	if res.Source != model.SourceLLM {
		t.Errorf("Expected llm source, got %q", res.Source)
	}
	if f.narrator.lastFull.Count != 5 || f.narrator.lastFull.Month != 4 {
		t.Errorf("Expected count 5 and current month 4, got %+v", f.narrator.lastFull)
	}
	want := []model.Rarity{model.RarityCommon, model.RarityRare, model.RarityVeryRare}
	for i, r := range want {
		if res.Plants[i].Rarity != r {
			t.Errorf("Plant %d: expected %s, got %s", i, r, res.Plants[i].Rarity)
		}
	}
}

func TestSuggest_NoCoordsFallsBack(t *testing.T) {
	f := newFixture(t, candidates(20))
	f.narrator.full = &llm.FullSuggestionResponse{Description: "d", Plants: []llm.SuggestedSpecies{}}

	res, err := f.pipeline.Suggest(context.Background(), model.SuggestRequest{Origin: "Sarria", Destination: "Portomarín"})
	if err != nil {
		t.Fatalf("Suggest failed: %v", err)
	}
	if f.discovery.calls != 0 {
		t.Errorf("Expected no discovery without coordinates, got %d", f.discovery.calls)
	}
	if f.narrator.fullCalls != 1 {
		t.Errorf("Expected one fallback call, got %d", f.narrator.fullCalls)
	}
	if res.Plants == nil {
		t.Error("Expected non-nil plants")
	}
}

func TestSuggest_ExclusionIsAbsolute(t *testing.T) {
	excluded := []string{"Thymus vulgaris", "genus0 SPECIES0"}

	t.Run("fallback ignores exclusion", func(t *testing.T) {
		f := newFixture(t, nil)
		f.narrator.full = &llm.FullSuggestionResponse{
			Description: "d",
			Plants: []llm.SuggestedSpecies{
				{CommonName: "Tomillo", ScientificName: "Thymus vulgaris", Rarity: model.RarityCommon, Description: "d"},
				{CommonName: "Tomillo", ScientificName: " thymus VULGARIS ", Rarity: model.RarityCommon, Description: "d"},
				{CommonName: "Jara", ScientificName: "Cistus ladanifer", Rarity: model.RarityCommon, Description: "d"},
			},
		}
		req := nearRoute()
		req.Exclude = excluded

		res, err := f.pipeline.Suggest(context.Background(), req)
		if err != nil {
			t.Fatalf("Suggest failed: %v", err)
		}
		assertExcluded(t, res.Plants, excluded)
		if len(res.Plants) != 1 {
			t.Errorf("Expected 1 plant after exclusion, got %d", len(res.Plants))
		}
		for _, name := range f.photos.seen {
			if model.NameKey(name) == "thymus vulgaris" {
				t.Error("Excluded species should not reach photo enrichment")
			}
		}
	})

	t.Run("discovery", func(t *testing.T) {
		f := newFixture(t, candidates(10))
		req := nearRoute()
		req.Exclude = excluded

		res, err := f.pipeline.Suggest(context.Background(), req)
		if err != nil {
			t.Fatalf("Suggest failed: %v", err)
		}
		assertExcluded(t, res.Plants, excluded)
	})
}

func assertExcluded(t *testing.T, plants []model.SelectedPlant, excluded []string) {
	t.Helper()
	set := model.ExcludeSet(excluded)
	for _, p := range plants {
		if _, bad := set[model.NameKey(p.ScientificName)]; bad {
			t.Errorf("Excluded species %q in result", p.ScientificName)
		}
	}
}

func TestSuggest_DropsPlantsWithoutPhotos(t *testing.T) {
	f := newFixture(t, candidates(10))
	f.photos.none["Genus0 species0"] = true

	res, err := f.pipeline.Suggest(context.Background(), nearRoute())
	if err != nil {
		t.Fatalf("Suggest failed: %v", err)
	}
	for _, p := range res.Plants {
		if p.ScientificName == "Genus0 species0" {
			t.Error("Plant without photos should be dropped")
		}
		if len(p.Photos) == 0 {
			t.Errorf("Plant %s has no photos", p.ScientificName)
		}
	}
	if len(res.Plants) != 4 {
		t.Errorf("Expected 4 plants, got %d", len(res.Plants))
	}
}

func TestSuggest_QuotaExhausted(t *testing.T) {
	f := newFixture(t, candidates(10))
	f.quota.allow = false

	res, err := f.pipeline.Suggest(context.Background(), nearRoute())
	if !errors.Is(err, model.ErrQuotaExhausted) {
		t.Fatalf("Expected ErrQuotaExhausted, got %v", err)
	}
	if res != nil {
		t.Error("Expected no result")
	}
	if f.discovery.calls != 0 || f.narrator.fullCalls != 0 {
		t.Error("Expected no downstream calls when quota is exhausted")
	}
}

func TestSuggest_QuotaCheckedBeforeDistance(t *testing.T) {
	f := newFixture(t, nil)
	f.quota.allow = false

	req := nearRoute()
	req.DestLat, req.DestLng = ptr(41.3874), ptr(2.1686)

	if _, err := f.pipeline.Suggest(context.Background(), req); !errors.Is(err, model.ErrQuotaExhausted) {
		t.Errorf("Expected quota outcome before the distance gate, got %v", err)
	}
}

func TestSuggest_QuotaBackendError(t *testing.T) {
	f := newFixture(t, candidates(10))
	f.quota.err = errors.New("redis down")

	if _, err := f.pipeline.Suggest(context.Background(), nearRoute()); err == nil {
		t.Error("Expected quota backend failure to fail the request")
	}
	if f.discovery.calls != 0 {
		t.Error("Expected no discovery after quota failure")
	}
}

func TestSuggest_ModelSaysTooFar(t *testing.T) {
	f := newFixture(t, nil)
	f.narrator.full = &llm.FullSuggestionResponse{TooFar: true, Description: "Different climates."}

	res, err := f.pipeline.Suggest(context.Background(), model.SuggestRequest{Origin: "Lisboa", Destination: "Oslo"})
	if err != nil {
		t.Fatalf("Suggest failed: %v", err)
	}
	if !res.TooFar || res.Description != "Different climates." || len(res.Plants) != 0 {
		t.Errorf("Unexpected result: %+v", res)
	}
	if f.photos.calls != 0 {
		t.Error("Expected no photo enrichment for tooFar")
	}
}

func TestSuggest_InvalidInput(t *testing.T) {
	f := newFixture(t, candidates(10))

	tests := map[string]model.SuggestRequest{
		"missing origin": {Origin: "   "},
		"bad latitude":   {Origin: "X", OriginLat: ptr(123), OriginLng: ptr(0)},
		"bad dest lng":   {Origin: "X", Destination: "Y", OriginLat: ptr(1), OriginLng: ptr(1), DestLat: ptr(1), DestLng: ptr(200)},
	}
	for name, req := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := f.pipeline.Suggest(context.Background(), req); !errors.Is(err, model.ErrInvalidInput) {
				t.Errorf("Expected ErrInvalidInput, got %v", err)
			}
		})
	}
	if f.quota.calls != 0 {
		t.Error("Invalid input must not consume quota")
	}
}

func TestSuggest_DescribeContractViolationIsHardError(t *testing.T) {
	f := newFixture(t, candidates(10))
	f.narrator.describeErr = fmt.Errorf("decode: %w", model.ErrContractViolation)

	_, err := f.pipeline.Suggest(context.Background(), nearRoute())
	if !errors.Is(err, model.ErrContractViolation) {
		t.Errorf("Expected ErrContractViolation, got %v", err)
	}
	if f.photos.calls != 0 {
		t.Error("Expected no photo enrichment after a contract violation")
	}
}

func TestSuggest_MissingNarrator(t *testing.T) {
	p, err := New(DefaultOptions(), Deps{
		Discovery: &mockDiscovery{},
		Photos:    &mockPhotos{},
		Selector:  selection.NewSelector(selection.DefaultConfig()),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if _, err := p.Suggest(context.Background(), model.SuggestRequest{Origin: "León"}); !errors.Is(err, model.ErrMissingCredentials) {
		t.Errorf("Expected ErrMissingCredentials, got %v", err)
	}
}

func TestNew_RequiresComponents(t *testing.T) {
	if _, err := New(DefaultOptions(), Deps{}); err == nil {
		t.Error("Expected error for empty deps")
	}
}
