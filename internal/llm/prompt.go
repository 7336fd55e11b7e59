package llm

import (
	"fmt"
	"strings"

	"github.com/ppiankov/herbia/internal/i18n"
)

// SystemPrompt frames every narrative call
const SystemPrompt = `You are a field botanist who writes for walkers and hikers in Europe.
You answer with exactly one JSON object that matches the requested format.
No markdown, no code fences, no text before or after the object.`

// SpeciesRef names one already-chosen species
type SpeciesRef struct {
	ScientificName string
	CommonName     string
}

// routeLine describes the walk, or the zone when origin and destination coincide
func routeLine(origin, destination string) string {
	if destination == "" || strings.EqualFold(strings.TrimSpace(origin), strings.TrimSpace(destination)) {
		return fmt.Sprintf("A walker is exploring the area around %s.", origin)
	}
	return fmt.Sprintf("A walker is travelling on foot from %s to %s.", origin, destination)
}

func genderLine(gender string) string {
	switch strings.ToLower(gender) {
	case "female":
		return "Address the reader in the second person using feminine grammatical forms."
	case "male":
		return "Address the reader in the second person using masculine grammatical forms."
	default:
		return "Address the reader in the second person using gender-neutral phrasing."
	}
}

// BuildDescribePrompt asks for prose about species chosen from observation data
func BuildDescribePrompt(req DescribeRequest) string {
	lang := i18n.LanguageName(req.Language)
	month := i18n.MonthName(req.Month)

	var species strings.Builder
	for _, s := range req.Species {
		fmt.Fprintf(&species, "- %s (%s)\n", s.ScientificName, s.CommonName)
	}

	return fmt.Sprintf(`%s
The month is %s.
These plants were recently observed nearby:
%s
Write in %s. %s

For each plant give:
- "description": one surprising fact about it (1-2 sentences). No generic filler such as "a beautiful plant".
- "hint": how to recognize it in the field: shape, colour, height, where it grows, and what it can be confused with.

Also write "description" at the top level: 2-3 sentences on the landscape and vegetation to expect in %s.

Copy every scientificName exactly as given. Respond with this exact format:
{
  "description": "...",
  "plants": [
    {"scientificName": "...", "description": "...", "hint": "..."}
  ]
}`, routeLine(req.Origin, req.Destination), month, species.String(), lang, genderLine(req.Gender), month)
}

// BuildFullPrompt asks the model to propose the whole species list itself
func BuildFullPrompt(req FullRequest) string {
	lang := i18n.LanguageName(req.Language)
	month := i18n.MonthName(req.Month)

	exclude := "none"
	if len(req.Exclude) > 0 {
		exclude = strings.Join(req.Exclude, ", ")
	}

	return fmt.Sprintf(`%s
The month is %s. Only suggest plants that are visible, blooming or identifiable at this time of year.

Suggest exactly %d wild plants the walker can find there in %s.
Mix them: mostly "common" plants, one "rare" and one "veryRare".
Never suggest any of these species: %s.

Write in %s. %s

If the two places are too far apart or too different in climate to share vegetation on foot,
set "tooFar" to true, explain why in "description" and return an empty "plants" array.

For each plant give "commonName" in %s, the Latin "scientificName", "rarity" (common, rare or veryRare),
a "description" with one surprising fact and a "hint" on how to recognize it in the field.

Respond with this exact format:
{
  "tooFar": false,
  "description": "2-3 sentences on the landscape and vegetation",
  "plants": [
    {"commonName": "...", "scientificName": "...", "rarity": "common", "description": "...", "hint": "..."}
  ]
}`, routeLine(req.Origin, req.Destination), month, req.Count, month, exclude, lang, genderLine(req.Gender), lang)
}
