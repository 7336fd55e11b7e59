package model

// Similarity scores for identification results
const (
	SimilarityExact  = 100
	SimilarityGenus  = 75
	SimilarityFamily = 40
	SimilarityNone   = 0
)

// IdentificationResult compares a user photo against an expected species.
// Similarity is 100 iff Match is true; otherwise 75 (same genus), 40 (same family) or 0.
type IdentificationResult struct {
	Match        bool   `json:"match"`
	Score        int    `json:"score"`        // Confidence 0-100
	IdentifiedAs string `json:"identifiedAs"` // Scientific name without authority
	CommonName   string `json:"commonName"`
	Similarity   int    `json:"similarity"`
	Genus        string `json:"genus"`
	Family       string `json:"family"`
}

// Identified reports whether the service recognized any plant
func (r IdentificationResult) Identified() bool {
	return r.IdentifiedAs != ""
}

// IdentifyRequest carries one photo and the species it should show
type IdentifyRequest struct {
	Image                  []byte
	MimeType               string
	ExpectedScientificName string
	ExpectedGenus          string
	ExpectedFamily         string
}
