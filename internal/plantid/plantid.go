// Package plantid checks a user's photo against the species they expect it to show.
package plantid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/ppiankov/herbia/internal/logger"
	"github.com/ppiankov/herbia/internal/model"
	"github.com/ppiankov/herbia/internal/util"
)

// topCandidates is how many ranked results are checked for an exact match
const topCandidates = 3

var allowedMIME = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
}

type plantNetResponse struct {
	Results []plantNetResult `json:"results"`
}

type plantNetResult struct {
	Score   float64 `json:"score"`
	Species struct {
		ScientificNameWithoutAuthor string   `json:"scientificNameWithoutAuthor"`
		CommonNames                 []string `json:"commonNames"`
		Genus                       struct {
			ScientificNameWithoutAuthor string `json:"scientificNameWithoutAuthor"`
		} `json:"genus"`
		Family struct {
			ScientificNameWithoutAuthor string `json:"scientificNameWithoutAuthor"`
		} `json:"family"`
	} `json:"species"`
}

type plantNetError struct {
	StatusCode int    `json:"statusCode"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}

// Client talks to the Pl@ntNet identify API
type Client struct {
	baseURL    string
	apiKey     string
	maxBytes   int64
	httpClient *http.Client
	userAgent  string
	limiter    util.RateWaiter
	log        *logger.Logger
}

// NewClient creates a Pl@ntNet client. A missing API key is reported by Identify.
func NewClient(cfg model.PlantNetConfig, fetcher *util.Fetcher, limiter util.RateWaiter, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	maxBytes := cfg.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = 5 * 1024 * 1024
	}
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		maxBytes:   maxBytes,
		httpClient: fetcher.HTTPClient(),
		userAgent:  fetcher.UserAgent(),
		limiter:    limiter,
		log:        log.With("component", "plantid"),
	}
}

// Configured reports whether an API key is present
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// MaxUploadBytes is the largest image Identify accepts
func (c *Client) MaxUploadBytes() int64 {
	return c.maxBytes
}

// ValidateImage rejects unsupported or oversized uploads and returns the canonical MIME type
func ValidateImage(image []byte, mimeType string, maxBytes int64) (string, error) {
	if len(image) == 0 {
		return "", fmt.Errorf("empty image: %w", model.ErrInvalidInput)
	}
	if maxBytes > 0 && int64(len(image)) > maxBytes {
		return "", fmt.Errorf("image is %d bytes, limit %d: %w", len(image), maxBytes, model.ErrPayloadTooLarge)
	}

	mt := strings.TrimSpace(mimeType)
	if mt == "" || mt == "application/octet-stream" {
		mt = http.DetectContentType(image)
	}
	if parsed, _, err := mime.ParseMediaType(mt); err == nil {
		mt = parsed
	}
	mt = strings.ToLower(mt)
	if mt == "image/jpg" || mt == "image/pjpeg" {
		mt = "image/jpeg"
	}
	if _, ok := allowedMIME[mt]; !ok {
		return "", fmt.Errorf("%q: %w", mt, model.ErrUnsupportedMedia)
	}
	return mt, nil
}

// Identify submits the photo and compares the ranked candidates with the expected species.
// Without an expected name it reports the best candidate unmatched, for recording unknown plants.
func (c *Client) Identify(ctx context.Context, req model.IdentifyRequest) (model.IdentificationResult, error) {
	if c.apiKey == "" {
		return model.IdentificationResult{}, fmt.Errorf("plantnet API key (PLANTNET_API_KEY): %w", model.ErrMissingCredentials)
	}
	mt, err := ValidateImage(req.Image, req.MimeType, c.maxBytes)
	if err != nil {
		return model.IdentificationResult{}, err
	}

	resp, found, err := c.submit(ctx, req.Image, mt)
	if err != nil {
		return model.IdentificationResult{}, err
	}
	if !found {
		c.log.Info("no plant detected", "expected", req.ExpectedScientificName)
		return model.IdentificationResult{}, nil
	}

	return compare(resp, req.ExpectedScientificName, req.ExpectedGenus, req.ExpectedFamily), nil
}

// submit posts the multipart upload; found is false when the service detects no plant
func (c *Client) submit(ctx context.Context, image []byte, mimeType string) (*plantNetResponse, bool, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="images"; filename="photo.%s"`, allowedMIME[mimeType]))
	header.Set("Content-Type", mimeType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, false, fmt.Errorf("create image part: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, false, fmt.Errorf("write image part: %w", err)
	}
	if err := writer.WriteField("organs", "auto"); err != nil {
		return nil, false, fmt.Errorf("write organs field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, false, fmt.Errorf("close multipart body: %w", err)
	}

	endpoint := fmt.Sprintf("%s/identify/all?api-key=%s", c.baseURL, url.QueryEscape(c.apiKey))

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, endpoint); err != nil {
			return nil, false, fmt.Errorf("rate limiter: %w", err)
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	httpReq.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// The URL carries the API key; report only the host
		return nil, false, fmt.Errorf("plantnet request to %s failed: %w", hostOf(c.baseURL), unwrapURLError(err))
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, 2*1024*1024))
	if err != nil {
		return nil, false, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if httpResp.StatusCode != http.StatusOK {
		var apiErr plantNetError
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Message != "" {
			return nil, false, fmt.Errorf("plantnet API error (%d): %s", httpResp.StatusCode, apiErr.Message)
		}
		return nil, false, fmt.Errorf("plantnet API error (%d)", httpResp.StatusCode)
	}

	var resp plantNetResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, false, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(resp.Results) == 0 {
		return nil, false, nil
	}
	return &resp, true, nil
}

// compare scores ranked candidates against the expected species
func compare(resp *plantNetResponse, expectedName, expectedGenus, expectedFamily string) model.IdentificationResult {
	if resp == nil || len(resp.Results) == 0 {
		return model.IdentificationResult{}
	}

	expected := NormalizeName(expectedName)
	n := len(resp.Results)
	if n > topCandidates {
		n = topCandidates
	}
	if expected == "" {
		n = 0
	}
	for _, r := range resp.Results[:n] {
		if NormalizeName(r.Species.ScientificNameWithoutAuthor) != expected {
			continue
		}
		return model.IdentificationResult{
			Match:        true,
			Score:        percent(r.Score),
			IdentifiedAs: r.Species.ScientificNameWithoutAuthor,
			CommonName:   first(r.Species.CommonNames),
			Similarity:   model.SimilarityExact,
			Genus:        r.Species.Genus.ScientificNameWithoutAuthor,
			Family:       r.Species.Family.ScientificNameWithoutAuthor,
		}
	}

	best := resp.Results[0]
	genus := best.Species.Genus.ScientificNameWithoutAuthor
	family := best.Species.Family.ScientificNameWithoutAuthor

	similarity := model.SimilarityNone
	switch {
	case expectedGenus != "" && genus != "" && strings.EqualFold(genus, expectedGenus):
		similarity = model.SimilarityGenus
	case expectedFamily != "" && family != "" && strings.EqualFold(family, expectedFamily):
		similarity = model.SimilarityFamily
	}

	return model.IdentificationResult{
		Match:        false,
		Score:        percent(best.Score),
		IdentifiedAs: best.Species.ScientificNameWithoutAuthor,
		CommonName:   first(best.Species.CommonNames),
		Similarity:   similarity,
		Genus:        genus,
		Family:       family,
	}
}

// NormalizeName keeps the lowercased genus and species epithet
func NormalizeName(name string) string {
	fields := strings.Fields(strings.ToLower(name))
	if len(fields) > 2 {
		fields = fields[:2]
	}
	return strings.Join(fields, " ")
}

func percent(score float64) int {
	switch {
	case score <= 0:
		return 0
	case score >= 1:
		return 100
	}
	return int(score*100 + 0.5)
}

func first(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "plantnet"
	}
	return u.Host
}

func unwrapURLError(err error) error {
	if ue, ok := err.(*url.Error); ok {
		return ue.Err
	}
	return err
}
