package worker

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ppiankov/herbia/internal/model"
)

// Suggester produces plant suggestions for one request
type Suggester interface {
	Suggest(ctx context.Context, req model.SuggestRequest) (*model.SuggestResult, error)
}

// SuggestJob runs one suggestion request
type SuggestJob struct {
	Line      int
	Request   model.SuggestRequest
	Suggester Suggester
}

// Execute executes the suggestion job
func (j *SuggestJob) Execute(ctx context.Context) Result {
	result, err := j.Suggester.Suggest(ctx, j.Request)
	return &SuggestResult{
		Line:    j.Line,
		Request: j.Request,
		Result:  result,
		Error:   err,
	}
}

// SuggestResult is the outcome of one batch line
type SuggestResult struct {
	Line    int
	Request model.SuggestRequest
	Result  *model.SuggestResult
	Error   error
}

// GetError returns the error from the suggestion
func (r *SuggestResult) GetError() error {
	return r.Error
}

// BatchProcessor runs many suggestion requests concurrently
type BatchProcessor struct {
	suggester   Suggester
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(suggester Suggester, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		suggester:   suggester,
		concurrency: concurrency,
	}
}

// BatchLine is one parsed request together with its source line number
type BatchLine struct {
	Line    int
	Request model.SuggestRequest
}

// Process runs every line and returns results in input order
func (b *BatchProcessor) Process(ctx context.Context, lines []BatchLine) []*SuggestResult {
	if len(lines) == 0 {
		return []*SuggestResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for _, l := range lines {
		pool.Submit(&SuggestJob{
			Line:      l.Line,
			Request:   l.Request,
			Suggester: b.suggester,
		})
	}

	results := pool.Wait()

	out := make([]*SuggestResult, len(results))
	for i, r := range results {
		out[i] = r.(*SuggestResult)
	}
	return out
}

// ProcessFile reads requests from a file and processes them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string, defaults model.SuggestRequest) ([]*SuggestResult, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	lines, err := ReadRequests(file, defaults)
	if err != nil {
		return nil, fmt.Errorf("read requests: %w", err)
	}

	return b.Process(ctx, lines), nil
}

// ReadRequests parses one request per line:
//
//	origin|destination|lat,lng|lat,lng
//
// Destination and both coordinate pairs are optional. Blank lines and
// lines starting with '#' are skipped; duplicate lines are run once.
// Language, month, gender and exclusions are taken from defaults.
func ReadRequests(r io.Reader, defaults model.SuggestRequest) ([]BatchLine, error) {
	var lines []BatchLine
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if seen[line] {
			continue
		}
		seen[line] = true

		req, err := parseRequestLine(line, defaults)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		lines = append(lines, BatchLine{Line: lineNo, Request: req})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return lines, nil
}

func parseRequestLine(line string, defaults model.SuggestRequest) (model.SuggestRequest, error) {
	fields := strings.Split(line, "|")
	if len(fields) > 4 {
		return model.SuggestRequest{}, fmt.Errorf("too many fields (%d)", len(fields))
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	req := defaults
	req.Exclude = append([]string(nil), defaults.Exclude...)
	req.Origin = fields[0]
	req.Destination = ""
	req.OriginLat, req.OriginLng, req.DestLat, req.DestLng = nil, nil, nil, nil

	if req.Origin == "" {
		return model.SuggestRequest{}, fmt.Errorf("origin is empty")
	}
	if len(fields) > 1 {
		req.Destination = fields[1]
	}
	if len(fields) > 2 && fields[2] != "" {
		lat, lng, err := parseLatLng(fields[2])
		if err != nil {
			return model.SuggestRequest{}, fmt.Errorf("origin coordinates: %w", err)
		}
		req.OriginLat, req.OriginLng = &lat, &lng
	}
	if len(fields) > 3 && fields[3] != "" {
		lat, lng, err := parseLatLng(fields[3])
		if err != nil {
			return model.SuggestRequest{}, fmt.Errorf("destination coordinates: %w", err)
		}
		req.DestLat, req.DestLng = &lat, &lng
	}

	return req, nil
}

// parseLatLng parses "lat,lng" in decimal degrees
func parseLatLng(s string) (float64, float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected lat,lng, got %q", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("latitude: %w", err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("longitude: %w", err)
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return 0, 0, fmt.Errorf("coordinates out of range: %q", s)
	}
	return lat, lng, nil
}
