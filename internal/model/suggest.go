package model

// SuggestRequest is the input of one suggestion run
type SuggestRequest struct {
	Origin      string   `json:"origin"`
	Destination string   `json:"destination,omitempty"` // Empty means zone mode (same as origin)
	Language    string   `json:"lang,omitempty"`
	Month       int      `json:"month,omitempty"` // 1-12, 0 means current UTC month
	Exclude     []string `json:"excludeScientificNames,omitempty"`
	Gender      string   `json:"gender,omitempty"` // Grammatical gender for second-person prose

	OriginLat *float64 `json:"originLat,omitempty"`
	OriginLng *float64 `json:"originLng,omitempty"`
	DestLat   *float64 `json:"destLat,omitempty"`
	DestLng   *float64 `json:"destLng,omitempty"`

	Region string `json:"region,omitempty"`
}

// DestinationOrSelf returns the destination, or the origin in zone mode
func (r SuggestRequest) DestinationOrSelf() string {
	if r.Destination == "" {
		return r.Origin
	}
	return r.Destination
}

// IsZone reports whether the request describes a single zone rather than a route
func (r SuggestRequest) IsZone() bool {
	return r.Destination == "" || NameKey(r.Destination) == NameKey(r.Origin)
}

// HasCoords reports whether origin coordinates are present
func (r SuggestRequest) HasCoords() bool {
	return r.OriginLat != nil && r.OriginLng != nil
}

// SuggestSource records which pipeline path produced a result
type SuggestSource string

const (
	SourceDiscovery SuggestSource = "discovery"
	SourceLLM       SuggestSource = "llm"
	SourceNone      SuggestSource = ""
)

// SuggestResult is the output of one suggestion run
type SuggestResult struct {
	TooFar      bool            `json:"tooFar"`
	Description string          `json:"description"`
	Plants      []SelectedPlant `json:"plants"`
	Source      SuggestSource   `json:"source,omitempty"`
}
