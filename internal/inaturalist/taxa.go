package inaturalist

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ppiankov/herbia/internal/cache"
	"github.com/ppiankov/herbia/internal/model"
)

type taxaResponse struct {
	Results []taxon `json:"results"`
}

// EnrichFamilies fills the Family field of each candidate from its taxon ancestry.
// Uncached taxa are fetched in one batched request. Failures leave Family empty.
func (c *Client) EnrichFamilies(ctx context.Context, candidates []model.CandidateSpecies) {
	families := make(map[int]string)
	var missing []string

	for _, cand := range candidates {
		if cand.TaxonID == 0 {
			continue
		}
		if _, done := families[cand.TaxonID]; done {
			continue
		}
		var family string
		if cache.GetJSON(c.cache, familyKey(cand.TaxonID), &family) {
			families[cand.TaxonID] = family
			continue
		}
		families[cand.TaxonID] = ""
		missing = append(missing, strconv.Itoa(cand.TaxonID))
	}

	if len(missing) > 0 {
		fetched, err := c.fetchFamilies(ctx, missing)
		if err != nil {
			c.log.Warn("taxonomy enrichment failed", "taxa", len(missing), "error", err)
		}
		for id, family := range fetched {
			families[id] = family
			_ = cache.SetJSON(c.cache, familyKey(id), family, taxaCacheTTL)
		}
	}

	for i := range candidates {
		if family := families[candidates[i].TaxonID]; family != "" {
			candidates[i].Family = family
		}
	}
}

func (c *Client) fetchFamilies(ctx context.Context, ids []string) (map[int]string, error) {
	endpoint := fmt.Sprintf("%s/taxa/%s?per_page=%d", c.baseURL, strings.Join(ids, ","), len(ids))

	var resp taxaResponse
	if _, err := c.fetcher.GetJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}

	out := make(map[int]string, len(resp.Results))
	for _, t := range resp.Results {
		if family := familyOf(t); family != "" {
			out[t.ID] = family
		}
	}
	return out, nil
}

// familyOf walks the ancestor chain for the family-rank ancestor
func familyOf(t taxon) string {
	if t.Rank == "family" {
		return t.Name
	}
	for _, a := range t.Ancestors {
		if a.Rank == "family" {
			return a.Name
		}
	}
	return ""
}

func familyKey(taxonID int) string {
	return cache.Key("family", strconv.Itoa(taxonID))
}
