package inaturalist

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/ppiankov/herbia/internal/cache"
)

type observationsResponse struct {
	Results []struct {
		ID     int          `json:"id"`
		Photos []taxonPhoto `json:"photos"`
	} `json:"results"`
}

// ObservationPhotos returns up to n large-size field photos for a species,
// one per research-grade observation, most voted first. Returns nil on failure.
func (c *Client) ObservationPhotos(ctx context.Context, scientificName string, n int) []string {
	if n <= 0 {
		n = c.photosPerTaxon
	}

	key := cache.Key("inat-photos", scientificName, strconv.Itoa(n))
	var cached []string
	if cache.GetJSON(c.cache, key, &cached) {
		return cached
	}

	q := url.Values{}
	q.Set("taxon_name", scientificName)
	q.Set("photos", "true")
	q.Set("per_page", strconv.Itoa(n))
	q.Set("quality_grade", "research")
	q.Set("order_by", "votes")

	endpoint := fmt.Sprintf("%s/observations?%s", c.baseURL, q.Encode())

	var resp observationsResponse
	if status, err := c.fetcher.GetJSON(ctx, endpoint, &resp); err != nil {
		c.log.Warn("observation photos failed", "species", scientificName, "status", status, "error", err)
		return nil
	}

	seen := make(map[string]bool)
	urls := make([]string, 0, len(resp.Results))
	for _, obs := range resp.Results {
		if len(obs.Photos) == 0 || obs.Photos[0].URL == "" {
			continue
		}
		u := resize(obs.Photos[0].URL, "large")
		if seen[u] {
			continue
		}
		seen[u] = true
		urls = append(urls, u)
		if len(urls) == n {
			break
		}
	}

	_ = cache.SetJSON(c.cache, key, urls, photoCacheTTL)
	return urls
}
