package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ppiankov/herbia/internal/logger"
	"github.com/ppiankov/herbia/internal/model"
)

// narrativeSleepFunc is replaced in tests to skip backoff waits
var narrativeSleepFunc = time.Sleep

// DefaultAttempts is the number of tries per narrative call
const DefaultAttempts = 2

// DescribeRequest asks for prose about species already chosen from discovery data
type DescribeRequest struct {
	Origin      string
	Destination string
	Month       int
	Language    string
	Gender      string
	Species     []SpeciesRef
}

// DescribedSpecies is one entry of the describe-known-species contract
type DescribedSpecies struct {
	ScientificName string
	Description    string
	Hint           string
}

// DescribeKnownResponse is the parsed describe-known-species contract
type DescribeKnownResponse struct {
	Description string
	Species     []DescribedSpecies
}

// Apply copies descriptions and hints onto plants by exact scientific name.
// Plants the model skipped keep empty text.
func (r *DescribeKnownResponse) Apply(plants []model.SelectedPlant) []model.SelectedPlant {
	byName := make(map[string]DescribedSpecies, len(r.Species))
	for _, s := range r.Species {
		if _, dup := byName[s.ScientificName]; !dup {
			byName[s.ScientificName] = s
		}
	}

	out := make([]model.SelectedPlant, len(plants))
	for i, p := range plants {
		if s, ok := byName[p.ScientificName]; ok {
			p.Description = s.Description
			p.Hint = s.Hint
		} else {
			p.Description = ""
			p.Hint = ""
		}
		out[i] = p
	}
	return out
}

// FullRequest asks the model for the whole suggestion list
type FullRequest struct {
	Origin      string
	Destination string
	Month       int
	Language    string
	Gender      string
	Exclude     []string
	Count       int
}

// SuggestedSpecies is one entry of the full-suggestion contract
type SuggestedSpecies struct {
	CommonName     string
	ScientificName string
	Rarity         model.Rarity
	Description    string
	Hint           string
}

// FullSuggestionResponse is the parsed full-suggestion contract
type FullSuggestionResponse struct {
	TooFar      bool
	Description string
	Plants      []SuggestedSpecies
}

// ToSelected converts suggested species to selected plants (no photos yet)
func (r *FullSuggestionResponse) ToSelected() []model.SelectedPlant {
	out := make([]model.SelectedPlant, 0, len(r.Plants))
	for _, p := range r.Plants {
		out = append(out, model.SelectedPlant{
			CommonName:     p.CommonName,
			ScientificName: p.ScientificName,
			Rarity:         p.Rarity,
			Description:    p.Description,
			Hint:           p.Hint,
			Genus:          model.GenusOf(p.ScientificName),
		})
	}
	return out
}

// Narrator turns route context into structured prose through a Provider
type Narrator struct {
	provider Provider
	attempts int
	log      *logger.Logger
}

// NewNarrator creates a narrator; attempts below 1 fall back to DefaultAttempts
func NewNarrator(provider Provider, attempts int, log *logger.Logger) (*Narrator, error) {
	if provider == nil {
		return nil, fmt.Errorf("narrator requires an LLM provider: %w", model.ErrMissingCredentials)
	}
	if attempts < 1 {
		attempts = DefaultAttempts
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Narrator{
		provider: provider,
		attempts: attempts,
		log:      log.With("component", "narrator", "provider", provider.Name()),
	}, nil
}

// DescribeKnown writes the overview and per-species text for chosen species
func (n *Narrator) DescribeKnown(ctx context.Context, req DescribeRequest) (*DescribeKnownResponse, error) {
	var out *DescribeKnownResponse
	err := n.generate(ctx, "describe", BuildDescribePrompt(req), func(text string) error {
		parsed, err := ParseDescribeKnown(text)
		if err != nil {
			return err
		}
		out = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SuggestFull asks the model to propose the species list itself.
// The exclusion list is only advisory here; callers filter the result.
func (n *Narrator) SuggestFull(ctx context.Context, req FullRequest) (*FullSuggestionResponse, error) {
	if req.Count <= 0 {
		req.Count = 5
	}
	var out *FullSuggestionResponse
	err := n.generate(ctx, "full", BuildFullPrompt(req), func(text string) error {
		parsed, err := ParseFullSuggestion(text)
		if err != nil {
			return err
		}
		out = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// generate calls the provider with bounded retry; parse decides whether a response is usable
func (n *Narrator) generate(ctx context.Context, mode, prompt string, parse func(string) error) error {
	var lastErr error
	for attempt := 0; attempt < n.attempts; attempt++ {
		if attempt > 0 {
			// Exponential backoff: 2s, 4s, ...
			narrativeSleepFunc(time.Duration(1<<attempt) * time.Second)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		resp, err := n.provider.Generate(ctx, GenerateRequest{
			System: SystemPrompt,
			Prompt: prompt,
			JSON:   true,
		})
		if err != nil {
			lastErr = fmt.Errorf("generate %s narrative: %w", mode, err)
			n.log.Warn("narrative call failed", "mode", mode, "attempt", attempt+1, "error", err)
			continue
		}

		if err := parse(resp.Text); err != nil {
			lastErr = err
			n.log.Warn("narrative contract violation", "mode", mode, "attempt", attempt+1, "error", err)
			continue
		}

		n.log.Debug("narrative generated", "mode", mode, "model", resp.Model, "tokens", resp.TokensUsed)
		return nil
	}

	if errors.Is(lastErr, model.ErrContractViolation) {
		return lastErr
	}
	return fmt.Errorf("after %d attempts: %w", n.attempts, lastErr)
}
