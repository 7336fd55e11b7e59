package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/ppiankov/herbia/internal/model"
)

// openingFence matches the opening backticks, an optional info string ("json") and the whitespace after it
var openingFence = regexp.MustCompile("^```[\\w+-]*\\s*")

// StripCodeFence removes a markdown code fence wrapping the whole text
func StripCodeFence(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}
	s = strings.TrimSuffix(s, "```")
	s = openingFence.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

func violation(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), model.ErrContractViolation)
}

// decodeStrict decodes exactly one JSON object and rejects anything after it
func decodeStrict(text string, out interface{}) error {
	s := StripCodeFence(text)
	if !strings.HasPrefix(s, "{") {
		return violation("response is not a JSON object")
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	if err := dec.Decode(out); err != nil {
		return violation("decode response: %v", err)
	}
	var extra json.RawMessage
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return violation("unexpected content after JSON object")
	}
	return nil
}

type rawDescribe struct {
	Description *string `json:"description"`
	Plants      *[]struct {
		ScientificName *string `json:"scientificName"`
		Description    *string `json:"description"`
		Hint           *string `json:"hint"`
	} `json:"plants"`
}

// ParseDescribeKnown parses the describe-known-species contract
func ParseDescribeKnown(text string) (*DescribeKnownResponse, error) {
	var raw rawDescribe
	if err := decodeStrict(text, &raw); err != nil {
		return nil, err
	}
	if raw.Description == nil {
		return nil, violation("missing description")
	}
	if raw.Plants == nil {
		return nil, violation("missing plants")
	}

	out := &DescribeKnownResponse{
		Description: strings.TrimSpace(*raw.Description),
		Species:     make([]DescribedSpecies, 0, len(*raw.Plants)),
	}
	for i, p := range *raw.Plants {
		if p.ScientificName == nil || strings.TrimSpace(*p.ScientificName) == "" {
			return nil, violation("plants[%d]: missing scientificName", i)
		}
		if p.Description == nil {
			return nil, violation("plants[%d]: missing description", i)
		}
		entry := DescribedSpecies{
			ScientificName: strings.TrimSpace(*p.ScientificName),
			Description:    strings.TrimSpace(*p.Description),
		}
		if p.Hint != nil {
			entry.Hint = strings.TrimSpace(*p.Hint)
		}
		out.Species = append(out.Species, entry)
	}
	return out, nil
}

type rawFull struct {
	TooFar      *bool   `json:"tooFar"`
	Description *string `json:"description"`
	Plants      *[]struct {
		CommonName     *string `json:"commonName"`
		ScientificName *string `json:"scientificName"`
		Rarity         *string `json:"rarity"`
		Description    *string `json:"description"`
		Hint           *string `json:"hint"`
	} `json:"plants"`
}

// ParseFullSuggestion parses the full-suggestion contract
func ParseFullSuggestion(text string) (*FullSuggestionResponse, error) {
	var raw rawFull
	if err := decodeStrict(text, &raw); err != nil {
		return nil, err
	}
	if raw.Description == nil {
		return nil, violation("missing description")
	}
	if raw.Plants == nil {
		return nil, violation("missing plants")
	}

	out := &FullSuggestionResponse{
		Description: strings.TrimSpace(*raw.Description),
		Plants:      make([]SuggestedSpecies, 0, len(*raw.Plants)),
	}
	if raw.TooFar != nil {
		out.TooFar = *raw.TooFar
	}
	if out.TooFar && len(*raw.Plants) > 0 {
		return nil, violation("tooFar response carries %d plants", len(*raw.Plants))
	}

	for i, p := range *raw.Plants {
		switch {
		case p.CommonName == nil:
			return nil, violation("plants[%d]: missing commonName", i)
		case p.ScientificName == nil || strings.TrimSpace(*p.ScientificName) == "":
			return nil, violation("plants[%d]: missing scientificName", i)
		case p.Rarity == nil || !model.Rarity(*p.Rarity).Valid():
			return nil, violation("plants[%d]: invalid rarity", i)
		case p.Description == nil:
			return nil, violation("plants[%d]: missing description", i)
		}
		entry := SuggestedSpecies{
			CommonName:     strings.TrimSpace(*p.CommonName),
			ScientificName: strings.TrimSpace(*p.ScientificName),
			Rarity:         model.Rarity(*p.Rarity),
			Description:    strings.TrimSpace(*p.Description),
		}
		if p.Hint != nil {
			entry.Hint = strings.TrimSpace(*p.Hint)
		}
		out.Plants = append(out.Plants, entry)
	}
	return out, nil
}
