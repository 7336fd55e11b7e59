// Package wikipedia looks up the curated lead image for a species.
package wikipedia

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/herbia/internal/logger"
	"github.com/ppiankov/herbia/internal/model"
	"github.com/ppiankov/herbia/internal/util"
)

const defaultBaseURL = "https://en.wikipedia.org"

// CrawlWaiter honors a robots.txt crawl delay before a page fetch
type CrawlWaiter interface {
	WaitWithDelay(ctx context.Context, rawURL string, delay time.Duration) error
}

// Client resolves species names to Wikipedia images
type Client struct {
	baseURL      string
	fetcher      *util.Fetcher
	robots       *util.RobotsChecker
	crawl        CrawlWaiter
	htmlFallback bool
	log          *logger.Logger
}

// NewClient creates a new Wikipedia client. robots and crawl may be nil;
// without robots the HTML fallback is never attempted when RespectRobots is set.
func NewClient(config model.WikipediaConfig, fetcher *util.Fetcher, robots *util.RobotsChecker, crawl CrawlWaiter, log *logger.Logger) *Client {
	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if log == nil {
		log = logger.Nop()
	}
	if !config.RespectRobots {
		robots = nil
	}

	return &Client{
		baseURL:      baseURL,
		fetcher:      fetcher,
		robots:       robots,
		crawl:        crawl,
		htmlFallback: config.HTMLFallback && (robots != nil || !config.RespectRobots),
		log:          log.With("component", "wikipedia"),
	}
}

type summaryResponse struct {
	Type          string `json:"type"`
	Title         string `json:"title"`
	OriginalImage *image `json:"originalimage"`
	Thumbnail     *image `json:"thumbnail"`
}

type image struct {
	Source string `json:"source"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// LeadImage returns the full-resolution lead image URL for a species, or "" when none is found
func (c *Client) LeadImage(ctx context.Context, scientificName string) string {
	clean := CleanScientificName(scientificName)
	if clean == "" {
		return ""
	}
	title := pageTitle(clean)

	// 1. REST summary
	if src := c.summaryImage(ctx, title); src != "" {
		return src
	}

	if !c.htmlFallback {
		return ""
	}

	// 2. Infobox image from the rendered page
	return c.infoboxImage(ctx, title)
}

func (c *Client) summaryImage(ctx context.Context, title string) string {
	endpoint := fmt.Sprintf("%s/api/rest_v1/page/summary/%s", c.baseURL, title)

	var resp summaryResponse
	status, err := c.fetcher.GetJSON(ctx, endpoint, &resp)
	if err != nil {
		// 404 just means no article under this title
		if status != 404 {
			c.log.Warn("summary lookup failed", "title", title, "status", status, "error", err)
		}
		return ""
	}

	if resp.Type == "disambiguation" {
		return ""
	}
	if resp.OriginalImage != nil && resp.OriginalImage.Source != "" {
		return resp.OriginalImage.Source
	}
	if resp.Thumbnail != nil && resp.Thumbnail.Source != "" {
		return resp.Thumbnail.Source
	}
	return ""
}

func (c *Client) infoboxImage(ctx context.Context, title string) string {
	pageURL := fmt.Sprintf("%s/api/rest_v1/page/html/%s", c.baseURL, title)

	if c.robots != nil {
		allowed, delay, err := c.robots.CanFetch(ctx, pageURL)
		if err != nil || !allowed {
			c.log.Debug("page fetch disallowed by robots.txt", "title", title)
			return ""
		}
		if delay > 0 && c.crawl != nil {
			if err := c.crawl.WaitWithDelay(ctx, pageURL, delay); err != nil {
				return ""
			}
		}
	}

	page, err := c.fetcher.GetHTML(ctx, pageURL)
	if err != nil {
		c.log.Debug("page fetch failed", "title", title, "error", err)
		return ""
	}

	src, err := InfoboxImage(page)
	if err != nil {
		c.log.Debug("page parse failed", "title", title, "error", err)
		return ""
	}
	return src
}
