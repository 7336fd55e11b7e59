// Package selection picks a diversity-balanced set of species from one discovery batch.
//
// Rarity is relative to the batch: a species' tier comes from its observation
// count divided by the batch maximum, not from any ecological rarity data.
package selection

import (
	"sort"

	"github.com/ppiankov/herbia/internal/model"
)

// Config holds the tier thresholds and per-tier quotas
type Config struct {
	CommonRatio   float64 // count/max above this is common
	RareRatio     float64 // count/max above this (and not common) is rare
	CommonQuota   int
	RareQuota     int
	VeryRareQuota int
	Target        int
}

// DefaultConfig returns the standard 3 common / 1 rare / 1 very rare mix
func DefaultConfig() Config {
	return Config{
		CommonRatio:   0.30,
		RareRatio:     0.05,
		CommonQuota:   3,
		RareQuota:     1,
		VeryRareQuota: 1,
		Target:        5,
	}
}

// ConfigFromModel converts model.SelectionConfig, keeping defaults for unset fields
func ConfigFromModel(c model.SelectionConfig) Config {
	cfg := DefaultConfig()
	if c.CommonRatio > 0 {
		cfg.CommonRatio = c.CommonRatio
	}
	if c.RareRatio > 0 {
		cfg.RareRatio = c.RareRatio
	}
	if c.CommonQuota > 0 {
		cfg.CommonQuota = c.CommonQuota
	}
	if c.RareQuota > 0 {
		cfg.RareQuota = c.RareQuota
	}
	if c.VeryRareQuota > 0 {
		cfg.VeryRareQuota = c.VeryRareQuota
	}
	if c.Target > 0 {
		cfg.Target = c.Target
	}
	return cfg
}

// Selector applies a Config to discovery batches
type Selector struct {
	config Config
}

// NewSelector creates a new selector
func NewSelector(config Config) *Selector {
	return &Selector{config: config}
}

// Classify returns the tier for count relative to maxCount
func (s *Selector) Classify(count, maxCount int) model.Rarity {
	if maxCount <= 0 {
		return model.RarityVeryRare
	}
	ratio := float64(count) / float64(maxCount)
	switch {
	case ratio > s.config.CommonRatio:
		return model.RarityCommon
	case ratio > s.config.RareRatio:
		return model.RarityRare
	default:
		return model.RarityVeryRare
	}
}

// Select drops excluded species, classifies the rest and assembles up to Target plants:
// commons first, then rare, then very rare, then backfill in count-descending order.
// Narrative and photos are left empty.
func (s *Selector) Select(candidates []model.CandidateSpecies, exclude map[string]struct{}) []model.SelectedPlant {
	// 1. Exclusion, also collapsing duplicate names
	pool := make([]model.CandidateSpecies, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		key := model.NameKey(c.ScientificName)
		if key == "" || seen[key] {
			continue
		}
		if _, skip := exclude[key]; skip {
			continue
		}
		seen[key] = true
		pool = append(pool, c)
	}

	if len(pool) == 0 {
		return []model.SelectedPlant{}
	}

	// 2. Batch maximum, then count-descending order for quota filling and backfill
	sortByCount(pool)
	maxCount := pool[0].Count

	tiers := make([]model.Rarity, len(pool))
	for i, c := range pool {
		tiers[i] = s.Classify(c.Count, maxCount)
	}

	// 3. Quotas
	picked := make([]bool, len(pool))
	selected := make([]model.SelectedPlant, 0, s.config.Target)

	take := func(tier model.Rarity, quota int) {
		for i := range pool {
			if quota == 0 || len(selected) >= s.config.Target {
				return
			}
			if picked[i] || tiers[i] != tier {
				continue
			}
			picked[i] = true
			selected = append(selected, toSelected(pool[i], tiers[i]))
			quota--
		}
	}
	take(model.RarityCommon, s.config.CommonQuota)
	take(model.RarityRare, s.config.RareQuota)
	take(model.RarityVeryRare, s.config.VeryRareQuota)

	// 4. Backfill
	for i := range pool {
		if len(selected) >= s.config.Target {
			break
		}
		if picked[i] {
			continue
		}
		picked[i] = true
		selected = append(selected, toSelected(pool[i], tiers[i]))
	}

	return selected
}

func toSelected(c model.CandidateSpecies, tier model.Rarity) model.SelectedPlant {
	genus := c.Genus
	if genus == "" {
		genus = model.GenusOf(c.ScientificName)
	}
	return model.SelectedPlant{
		CommonName:     c.CommonName,
		ScientificName: c.ScientificName,
		Rarity:         tier,
		Genus:          genus,
		Family:         c.Family,
		Photos:         []model.Photo{},
		Count:          c.Count,
		TaxonID:        c.TaxonID,
	}
}

// sortByCount orders by count descending, stable for equal counts
func sortByCount(pool []model.CandidateSpecies) {
	sort.SliceStable(pool, func(i, j int) bool {
		return pool[i].Count > pool[j].Count
	})
}
