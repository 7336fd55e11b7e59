package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/ppiankov/herbia/internal/cache"
	"github.com/ppiankov/herbia/internal/inaturalist"
	"github.com/ppiankov/herbia/internal/llm"
	"github.com/ppiankov/herbia/internal/logger"
	"github.com/ppiankov/herbia/internal/model"
	"github.com/ppiankov/herbia/internal/photos"
	"github.com/ppiankov/herbia/internal/plantid"
	"github.com/ppiankov/herbia/internal/quota"
	"github.com/ppiankov/herbia/internal/selection"
	"github.com/ppiankov/herbia/internal/util"
	"github.com/ppiankov/herbia/internal/wikipedia"
	"github.com/ppiankov/herbia/internal/worker"
)

// Services is the immutable client bundle built once from configuration
type Services struct {
	Pipeline   *Pipeline
	Identifier *plantid.Client
	Gate       *quota.Gate
	Provider   llm.Provider

	counter quota.Counter
}

// Close releases backend connections
func (s *Services) Close() error {
	if s.counter == nil {
		return nil
	}
	return s.counter.Close()
}

// NewServices wires every client from cfg. A missing LLM key does not fail the build;
// requests that need the narrator report it instead.
func NewServices(ctx context.Context, cfg *model.Config, log *logger.Logger) (*Services, error) {
	if log == nil {
		log = logger.Nop()
	}

	limiter := worker.NewLimiter(cfg.HTTP.RatePerHost, cfg.HTTP.BurstPerHost)
	// Pl@ntNet's free tier is rate limited per key
	if u, err := url.Parse(cfg.PlantNet.BaseURL); err == nil && u.Host != "" {
		limiter.SetHostRate(u.Host, 1, 2)
	}

	fetcher := util.NewFetcher(cfg.HTTP.Timeout, cfg.HTTP.UserAgent, cfg.HTTP.MaxBodyBytes,
		cfg.HTTP.HTTPProxy, cfg.HTTP.HTTPSProxy, cfg.HTTP.NoProxy).WithLimiter(limiter)
	responses := cache.New(cfg.Cache)

	var robots *util.RobotsChecker
	if cfg.Wikipedia.RespectRobots {
		robots = util.NewRobotsChecker(cfg.HTTP.UserAgent, cfg.HTTP.Timeout, 24*time.Hour)
	}

	inat := inaturalist.NewClient(cfg.INaturalist, fetcher, responses, log)
	wiki := wikipedia.NewClient(cfg.Wikipedia, fetcher, robots, limiter, log)
	enricher := photos.NewEnricher(wiki, inat, cfg.INaturalist.PhotosPerTaxon, cfg.Server.Concurrency, responses, log)
	selector := selection.NewSelector(selection.ConfigFromModel(cfg.Selection))

	deps := Deps{
		Discovery: inat,
		Taxonomy:  inat,
		Photos:    enricher,
		Selector:  selector,
		Log:       log,
	}

	provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM, cfg.HTTP))
	switch {
	case err != nil && !errors.Is(err, model.ErrMissingCredentials):
		return nil, fmt.Errorf("create LLM provider: %w", err)
	case err != nil:
		log.Warn("LLM provider not configured", "provider", cfg.LLM.Provider, "error", err)
		deps.NarratorErr = err
	case provider != nil:
		narrator, err := llm.NewNarrator(provider, cfg.LLM.Attempts, log)
		if err != nil {
			return nil, err
		}
		deps.Narrator = narrator
	}

	counter, err := quota.NewCounter(ctx, cfg.Quota, log)
	if err != nil {
		return nil, fmt.Errorf("create quota counter: %w", err)
	}
	gate := quota.NewGate(counter, cfg.Quota.DailyLimit)
	deps.Quota = gate

	p, err := New(Options{
		MaxDistanceKm: cfg.Route.MaxDistanceKm,
		ZoneRadiusKm:  cfg.INaturalist.ZoneRadiusKm,
		MinCandidates: cfg.Selection.MinCandidates,
		Target:        cfg.Selection.Target,
	}, deps)
	if err != nil {
		_ = counter.Close()
		return nil, err
	}

	return &Services{
		Pipeline:   p,
		Identifier: plantid.NewClient(cfg.PlantNet, fetcher, limiter, log),
		Gate:       gate,
		Provider:   provider,
		counter:    counter,
	}, nil
}
