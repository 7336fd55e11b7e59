package inaturalist

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"

	"github.com/ppiankov/herbia/internal/cache"
	"github.com/ppiankov/herbia/internal/model"
)

type speciesCountsResponse struct {
	TotalResults int `json:"total_results"`
	Results      []struct {
		Count int   `json:"count"`
		Taxon taxon `json:"taxon"`
	} `json:"results"`
}

// Discover returns research-grade plant species observed within radiusKm of (lat, lng)
// in the given month (any year), most observed first. Only species-rank taxa are kept.
// Successful lookups are cached per query; failures are not. Returns nil on any failure.
func (c *Client) Discover(ctx context.Context, lat, lng, radiusKm float64, month int, locale string) []model.CandidateSpecies {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	q.Set("lng", strconv.FormatFloat(lng, 'f', 6, 64))
	q.Set("radius", strconv.FormatFloat(radiusKm, 'f', 1, 64))
	if month >= 1 && month <= 12 {
		q.Set("month", strconv.Itoa(month))
	}
	q.Set("iconic_taxa", "Plantae")
	q.Set("quality_grade", "research")
	q.Set("per_page", strconv.Itoa(c.perPage))
	if locale != "" {
		q.Set("locale", locale)
	}

	endpoint := fmt.Sprintf("%s/observations/species_counts?%s", c.baseURL, q.Encode())

	key := cache.Key("discover", endpoint)
	var cached []model.CandidateSpecies
	if cache.GetJSON(c.cache, key, &cached) {
		return cached
	}

	var resp speciesCountsResponse
	if status, err := c.fetcher.GetJSON(ctx, endpoint, &resp); err != nil {
		c.log.Warn("species discovery failed", "lat", lat, "lng", lng, "radius_km", radiusKm, "status", status, "error", err)
		return nil
	}

	candidates := make([]model.CandidateSpecies, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.Taxon.Rank != "species" || r.Taxon.Name == "" {
			continue
		}

		common := r.Taxon.PreferredCommonName
		if common == "" {
			common = r.Taxon.Name
		}

		candidates = append(candidates, model.CandidateSpecies{
			ScientificName: r.Taxon.Name,
			CommonName:     common,
			Count:          r.Count,
			PhotoURL:       referencePhoto(r.Taxon.DefaultPhoto),
			TaxonID:        r.Taxon.ID,
			Genus:          model.GenusOf(r.Taxon.Name),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Count > candidates[j].Count
	})

	_ = cache.SetJSON(c.cache, key, candidates, discoverTTL)
	c.log.Debug("species discovered", "lat", lat, "lng", lng, "count", len(candidates))
	return candidates
}

func referencePhoto(p *taxonPhoto) string {
	if p == nil {
		return ""
	}
	if p.MediumURL != "" {
		return p.MediumURL
	}
	if p.URL != "" {
		return resize(p.URL, "medium")
	}
	return ""
}
