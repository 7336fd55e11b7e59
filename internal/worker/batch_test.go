package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/herbia/internal/model"
)

type mockSuggester struct {
	failOrigin string
	calls      atomic.Int32
}

func (m *mockSuggester) Suggest(ctx context.Context, req model.SuggestRequest) (*model.SuggestResult, error) {
	m.calls.Add(1)
	time.Sleep(5 * time.Millisecond)
	if req.Origin == m.failOrigin {
		return nil, errors.New("suggest error")
	}
	return &model.SuggestResult{
		Description: "route " + req.Origin,
		Plants:      []model.SelectedPlant{{ScientificName: "Bellis perennis"}},
		Source:      model.SourceDiscovery,
	}, nil
}

func TestBatchProcessor_Process(t *testing.T) {
	suggester := &mockSuggester{failOrigin: "Burgos"}
	processor := NewBatchProcessor(suggester, 2)

	lines := []BatchLine{
		{Line: 1, Request: model.SuggestRequest{Origin: "Pamplona", Destination: "Estella"}},
		{Line: 2, Request: model.SuggestRequest{Origin: "Burgos"}},
		{Line: 3, Request: model.SuggestRequest{Origin: "León", Destination: "Astorga"}},
	}

	results := processor.Process(context.Background(), lines)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	for i, res := range results {
		if res.Line != lines[i].Line {
			t.Errorf("expected line %d at index %d, got %d", lines[i].Line, i, res.Line)
		}
	}
	if results[0].Error != nil || results[0].Result == nil {
		t.Errorf("expected success for line 1, got %v", results[0].Error)
	}
	if results[1].Error == nil {
		t.Error("expected error for line 2")
	}
	if results[1].Result != nil {
		t.Error("expected nil result on error")
	}
	if suggester.calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", suggester.calls.Load())
	}
}

func TestBatchProcessor_ProcessEmpty(t *testing.T) {
	processor := NewBatchProcessor(&mockSuggester{}, 2)
	if results := processor.Process(context.Background(), nil); len(results) != 0 {
		t.Errorf("expected 0 results, got %d", len(results))
	}
}

func TestReadRequests(t *testing.T) {
	content := `# Camino Francés
Pamplona|Puente la Reina|42.8125,-1.6458|42.6720,-1.8140

Burgos
Burgos
León | Astorga`

	defaults := model.SuggestRequest{Language: "fr", Month: 5, Exclude: []string{"Bellis perennis"}}
	lines, err := ReadRequests(strings.NewReader(content), defaults)
	if err != nil {
		t.Fatalf("ReadRequests failed: %v", err)
	}

	if len(lines) != 3 {
		t.Fatalf("expected 3 requests after dedup, got %d", len(lines))
	}

	first := lines[0]
	if first.Line != 2 {
		t.Errorf("expected line number 2, got %d", first.Line)
	}
	if first.Request.Destination != "Puente la Reina" {
		t.Errorf("unexpected destination %q", first.Request.Destination)
	}
	if first.Request.OriginLat == nil || *first.Request.OriginLat != 42.8125 {
		t.Error("expected origin latitude 42.8125")
	}
	if first.Request.DestLng == nil || *first.Request.DestLng != -1.8140 {
		t.Error("expected destination longitude -1.8140")
	}
	if first.Request.Language != "fr" || first.Request.Month != 5 {
		t.Error("expected defaults to be applied")
	}

	zone := lines[1].Request
	if zone.Destination != "" || zone.HasCoords() {
		t.Errorf("expected bare zone request, got %+v", zone)
	}

	if lines[2].Request.Origin != "León" || lines[2].Request.Destination != "Astorga" {
		t.Errorf("expected trimmed fields, got %+v", lines[2].Request)
	}

	lines[0].Request.Exclude[0] = "changed"
	if lines[1].Request.Exclude[0] != "Bellis perennis" {
		t.Error("expected each request to own its exclusion slice")
	}
}

func TestReadRequests_Errors(t *testing.T) {
	bad := []string{
		"|Estella",
		"Pamplona|Estella|north,east",
		"Pamplona|Estella|42.8",
		"Pamplona|Estella|95,0",
		"a|b|1,1|2,2|extra",
	}
	for _, line := range bad {
		if _, err := ReadRequests(strings.NewReader(line), model.SuggestRequest{}); err == nil {
			t.Errorf("expected error for %q", line)
		}
	}
}

func TestBatchProcessor_ProcessFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routes.txt")
	if err := os.WriteFile(path, []byte("Pamplona|Estella\n# skip\n\nLogroño\n"), 0644); err != nil {
		t.Fatal(err)
	}

	processor := NewBatchProcessor(&mockSuggester{}, 2)
	results, err := processor.ProcessFile(context.Background(), path, model.SuggestRequest{})
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected 2 results, got %d", len(results))
	}
}

func TestBatchProcessor_ProcessFile_NonExistent(t *testing.T) {
	processor := NewBatchProcessor(&mockSuggester{}, 2)
	if _, err := processor.ProcessFile(context.Background(), "no_such_file.txt", model.SuggestRequest{}); err == nil {
		t.Error("expected error for non-existent file, got nil")
	}
}

func TestBatchProcessor_ProcessManyLinesSingleWorker(t *testing.T) {
	suggester := &mockSuggester{}
	processor := NewBatchProcessor(suggester, 1)

	lines := make([]BatchLine, 20)
	for i := range lines {
		lines[i] = BatchLine{Line: i + 1, Request: model.SuggestRequest{Origin: "Pamplona"}}
	}

	done := make(chan []*SuggestResult)
	go func() { done <- processor.Process(context.Background(), lines) }()

	select {
	case results := <-done:
		if len(results) != 20 {
			t.Fatalf("expected 20 results, got %d", len(results))
		}
		if results[19].Line != 20 {
			t.Errorf("expected last result for line 20, got %d", results[19].Line)
		}
		if got := suggester.calls.Load(); got != 20 {
			t.Errorf("expected 20 suggest calls, got %d", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Process with concurrency 1 and 20 lines did not finish")
	}
}
