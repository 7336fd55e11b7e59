// Package inaturalist queries the iNaturalist public API for species
// occurrence counts, taxon ancestry and research-grade field photos.
//
// Every method degrades to an empty result on failure; callers treat
// "nothing came back" as "not enough data" rather than as an error.
package inaturalist

import (
	"strings"
	"time"

	"github.com/ppiankov/herbia/internal/cache"
	"github.com/ppiankov/herbia/internal/logger"
	"github.com/ppiankov/herbia/internal/model"
	"github.com/ppiankov/herbia/internal/util"
)

const (
	defaultBaseURL = "https://api.inaturalist.org/v1"
	taxaCacheTTL   = 7 * 24 * time.Hour
	discoverTTL    = 6 * time.Hour
	photoCacheTTL  = 24 * time.Hour
)

// Client talks to the iNaturalist v1 API
type Client struct {
	baseURL        string
	perPage        int
	photosPerTaxon int
	fetcher        *util.Fetcher
	cache          cache.Cache
	log            *logger.Logger
}

// NewClient creates a new iNaturalist client; c and log may be nil
func NewClient(config model.INaturalistConfig, fetcher *util.Fetcher, c cache.Cache, log *logger.Logger) *Client {
	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	perPage := config.PerPage
	if perPage <= 0 || perPage > 200 {
		perPage = 50
	}

	photos := config.PhotosPerTaxon
	if photos <= 0 {
		photos = 5
	}

	if log == nil {
		log = logger.Nop()
	}

	return &Client{
		baseURL:        baseURL,
		perPage:        perPage,
		photosPerTaxon: photos,
		fetcher:        fetcher,
		cache:          c,
		log:            log.With("component", "inaturalist"),
	}
}

// taxonPhoto is the photo object embedded in taxa and observations
type taxonPhoto struct {
	URL       string `json:"url"`
	MediumURL string `json:"medium_url"`
}

type taxon struct {
	ID                  int         `json:"id"`
	Name                string      `json:"name"`
	Rank                string      `json:"rank"`
	PreferredCommonName string      `json:"preferred_common_name"`
	DefaultPhoto        *taxonPhoto `json:"default_photo"`
	Ancestors           []ancestor  `json:"ancestors"`
}

type ancestor struct {
	ID   int    `json:"id"`
	Rank string `json:"rank"`
	Name string `json:"name"`
}

// resize swaps the size segment of an iNaturalist photo URL ("square" -> size)
func resize(photoURL, size string) string {
	return strings.Replace(photoURL, "square", size, 1)
}
