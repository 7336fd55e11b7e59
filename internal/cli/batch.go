package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/herbia/internal/model"
	"github.com/ppiankov/herbia/internal/worker"
)

var (
	concurrency  int
	batchOutput  string
	batchTimeout time.Duration
	batchLang    string
	batchMonth   int
	batchExclude []string
	batchGender  string
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Run suggestions for many routes from a file in parallel",
	Long: `Batch runs one suggestion per line of the input file:

  origin|destination|lat,lng|lat,lng

Destination and coordinates are optional. Blank lines and lines starting
with '#' are skipped. Results are written as JSON lines, in input order.
Every line counts against the daily quota.

Example:
  herbia batch routes.txt
  herbia batch routes.txt --concurrency 4 --output results.jsonl --lang en --month 5`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", runtime.NumCPU(), "number of concurrent workers")
	batchCmd.Flags().StringVar(&batchOutput, "output", "-", "JSON lines output path (- for stdout)")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 10*time.Minute, "total timeout for batch processing")

	// Applied to every line
	batchCmd.Flags().StringVar(&batchLang, "lang", "", "response language (es, en, fr)")
	batchCmd.Flags().IntVar(&batchMonth, "month", 0, "month 1-12 (default: current UTC month)")
	batchCmd.Flags().StringSliceVar(&batchExclude, "exclude", nil, "scientific names to leave out")
	batchCmd.Flags().StringVar(&batchGender, "gender", "", "grammatical gender for second-person prose")
}

// batchRecord is one JSON line of batch output
type batchRecord struct {
	Line        int                  `json:"line"`
	Origin      string               `json:"origin"`
	Destination string               `json:"destination,omitempty"`
	Result      *model.SuggestResult `json:"result,omitempty"`
	Error       string               `json:"error,omitempty"`
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", concurrency)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	_, log, services, err := setup(ctx)
	if err != nil {
		return err
	}
	defer log.Sync()
	defer func() { _ = services.Close() }()

	defaults := model.SuggestRequest{
		Language: batchLang,
		Month:    batchMonth,
		Exclude:  batchExclude,
		Gender:   batchGender,
	}

	processor := worker.NewBatchProcessor(services.Pipeline, concurrency)
	results, err := processor.ProcessFile(ctx, file, defaults)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	out := io.Writer(os.Stdout)
	if batchOutput != "-" {
		f, err := os.Create(batchOutput)
		if err != nil {
			return fmt.Errorf("create %s: %w", batchOutput, err)
		}
		defer func() { _ = f.Close() }()
		out = f
	}

	successCount, failureCount, err := writeBatchResults(out, results)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d routes\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "\n")

	return nil
}

// writeBatchResults writes one JSON line per result and reports failures on stderr
func writeBatchResults(w io.Writer, results []*worker.SuggestResult) (int, int, error) {
	enc := json.NewEncoder(w)
	successCount, failureCount := 0, 0

	for _, r := range results {
		rec := batchRecord{
			Line:        r.Line,
			Origin:      r.Request.Origin,
			Destination: r.Request.Destination,
			Result:      r.Result,
		}
		if r.Error != nil {
			failureCount++
			rec.Error = r.Error.Error()
			rec.Result = nil
			fmt.Fprintf(os.Stderr, "✗ line %d (%s): %v\n", r.Line, r.Request.Origin, r.Error)
		} else {
			successCount++
		}
		if err := enc.Encode(rec); err != nil {
			return successCount, failureCount, fmt.Errorf("write line %d: %w", r.Line, err)
		}
	}
	return successCount, failureCount, nil
}
