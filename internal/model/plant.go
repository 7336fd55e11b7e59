package model

import (
	"sort"
	"strings"
	"time"
)

// Rarity is the relative rarity tier of a species within one discovery batch
type Rarity string

const (
	RarityCommon   Rarity = "common"
	RarityRare     Rarity = "rare"
	RarityVeryRare Rarity = "veryRare"
)

// Valid reports whether r is one of the known tiers
func (r Rarity) Valid() bool {
	switch r {
	case RarityCommon, RarityRare, RarityVeryRare:
		return true
	}
	return false
}

// Rank orders tiers for display: common first, veryRare last
func (r Rarity) Rank() int {
	switch r {
	case RarityRare:
		return 1
	case RarityVeryRare:
		return 2
	default:
		return 0
	}
}

// PhotoSource tags where a photo came from
type PhotoSource string

const (
	PhotoSourceWikipedia   PhotoSource = "wikipedia"
	PhotoSourceINaturalist PhotoSource = "inaturalist"
	PhotoSourceUser        PhotoSource = "user"
)

// MaxUserPhotosPerSpecies caps user-sourced photos per species across a user's whole history.
// Enforced by the persistence layer, keyed on PhotoSourceUser.
const MaxUserPhotosPerSpecies = 4

// Photo is a single image attached to a plant
type Photo struct {
	URL    string      `json:"url"`
	Source PhotoSource `json:"source"`
}

// CandidateSpecies is a species surfaced by discovery, not yet selected
type CandidateSpecies struct {
	ScientificName string `json:"scientificName"`
	CommonName     string `json:"commonName"`
	Count          int    `json:"count"`              // Research-grade observations in the batch
	PhotoURL       string `json:"photoUrl,omitempty"` // Reference photo from the observation service
	TaxonID        int    `json:"taxonId"`
	Genus          string `json:"genus,omitempty"`
	Family         string `json:"family,omitempty"` // Filled by taxonomy enrichment
}

// SelectedPlant is a species chosen for presentation
type SelectedPlant struct {
	CommonName     string  `json:"commonName"`
	ScientificName string  `json:"scientificName"`
	Rarity         Rarity  `json:"rarity"`
	Description    string  `json:"description"`
	Hint           string  `json:"hint"`
	Genus          string  `json:"genus,omitempty"`
	Family         string  `json:"family,omitempty"`
	Photos         []Photo `json:"photos"`

	// Set by the persistence layer once a user finds the plant
	Found            bool       `json:"found,omitempty"`
	FoundAt          *time.Time `json:"foundAt,omitempty"`
	FoundInMissionID *int64     `json:"foundInMissionId,omitempty"`

	// Observation count the rarity tier was derived from (0 on the fallback path)
	Count   int `json:"-"`
	TaxonID int `json:"-"`
}

// GenusOf derives the genus from a scientific name (its first token)
func GenusOf(scientificName string) string {
	fields := strings.Fields(scientificName)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// NameKey is the identity key used to compare scientific names
func NameKey(scientificName string) string {
	return strings.ToLower(strings.TrimSpace(scientificName))
}

// ExcludeSet builds a lookup set of scientific names (case-insensitive)
func ExcludeSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		if key := NameKey(name); key != "" {
			set[key] = struct{}{}
		}
	}
	return set
}

// FilterExcluded drops plants whose scientific name is in the exclusion set
func FilterExcluded(plants []SelectedPlant, exclude map[string]struct{}) []SelectedPlant {
	out := make([]SelectedPlant, 0, len(plants))
	for _, p := range plants {
		if _, skip := exclude[NameKey(p.ScientificName)]; skip {
			continue
		}
		out = append(out, p)
	}
	return out
}

// SortByRarity orders plants common -> rare -> veryRare, keeping input order within a tier
func SortByRarity(plants []SelectedPlant) {
	sort.SliceStable(plants, func(i, j int) bool {
		return plants[i].Rarity.Rank() < plants[j].Rarity.Rank()
	})
}
