package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ppiankov/herbia/internal/model"
)

// suggestOptions holds the request flags of `herbia suggest`
type suggestOptions struct {
	destination string
	lang        string
	month       int
	exclude     []string
	gender      string
	region      string
	originLat   float64
	originLng   float64
	destLat     float64
	destLng     float64
	outJSON     string
	timeout     time.Duration
}

var suggestOpts suggestOptions

// suggestCmd represents the suggest command
var suggestCmd = &cobra.Command{
	Use:   "suggest <origin>",
	Short: "Suggest plants to look for along a route or around a place",
	Long: `Suggest picks a balanced set of plants to look for: a few common species,
one rare and one very rare, each with a short description and a field hint.

With coordinates, candidates come from research-grade observations near the
route. Without them, or when observations are sparse, the language model
suggests the list directly.

Example:
  herbia suggest Pamplona --dest "Puente la Reina" \
    --origin-lat 42.8125 --origin-lng -1.6458 --dest-lat 42.6719 --dest-lng -1.8146
  herbia suggest Sevilla --month 4 --lang en
  herbia suggest Granada --exclude "Quercus ilex" --json result.json`,
	Args: cobra.ExactArgs(1),
	RunE: runSuggest,
}

func init() {
	rootCmd.AddCommand(suggestCmd)

	f := suggestCmd.Flags()
	f.StringVar(&suggestOpts.destination, "dest", "", "destination name (empty means zone mode around the origin)")
	f.StringVar(&suggestOpts.lang, "lang", "", "response language (es, en, fr)")
	f.IntVar(&suggestOpts.month, "month", 0, "month 1-12 (default: current UTC month)")
	f.StringSliceVar(&suggestOpts.exclude, "exclude", nil, "scientific names to leave out (repeatable or comma-separated)")
	f.StringVar(&suggestOpts.gender, "gender", "", "grammatical gender for second-person prose (female, male; default neutral)")
	f.StringVar(&suggestOpts.region, "region", "", "region hint for the language model")
	f.Float64Var(&suggestOpts.originLat, "origin-lat", 0, "origin latitude")
	f.Float64Var(&suggestOpts.originLng, "origin-lng", 0, "origin longitude")
	f.Float64Var(&suggestOpts.destLat, "dest-lat", 0, "destination latitude")
	f.Float64Var(&suggestOpts.destLng, "dest-lng", 0, "destination longitude")
	f.StringVar(&suggestOpts.outJSON, "json", "", "write the JSON result to this path (- for stdout)")
	f.DurationVar(&suggestOpts.timeout, "timeout", 2*time.Minute, "overall timeout")
}

func runSuggest(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), suggestOpts.timeout)
	defer cancel()

	req := buildSuggestRequest(args[0], suggestOpts, cmd.Flags())

	_, log, services, err := setup(ctx)
	if err != nil {
		return err
	}
	defer log.Sync()
	defer func() { _ = services.Close() }()

	if verbose {
		fmt.Fprintf(os.Stderr, "Suggesting plants for %s -> %s (month %d)\n", req.Origin, req.DestinationOrSelf(), req.Month)
	}

	result, err := services.Pipeline.Suggest(ctx, req)
	if err != nil {
		return fmt.Errorf("suggest failed: %w", err)
	}

	switch suggestOpts.outJSON {
	case "":
		renderSuggestion(os.Stdout, req, result)
		return nil
	case "-":
		return writeJSON(os.Stdout, result)
	default:
		return writeJSONFile(suggestOpts.outJSON, result)
	}
}

// buildSuggestRequest maps flags to a request; coordinates are set only when given
func buildSuggestRequest(origin string, opts suggestOptions, flags *pflag.FlagSet) model.SuggestRequest {
	req := model.SuggestRequest{
		Origin:      strings.TrimSpace(origin),
		Destination: strings.TrimSpace(opts.destination),
		Language:    opts.lang,
		Month:       opts.month,
		Exclude:     opts.exclude,
		Gender:      opts.gender,
		Region:      opts.region,
	}

	if flags.Changed("origin-lat") && flags.Changed("origin-lng") {
		lat, lng := opts.originLat, opts.originLng
		req.OriginLat, req.OriginLng = &lat, &lng
	}
	if flags.Changed("dest-lat") && flags.Changed("dest-lng") {
		lat, lng := opts.destLat, opts.destLng
		req.DestLat, req.DestLng = &lat, &lng
	}
	return req
}

func renderSuggestion(w io.Writer, req model.SuggestRequest, res *model.SuggestResult) {
	title := req.Origin
	if !req.IsZone() {
		title = req.Origin + " → " + req.Destination
	}
	fmt.Fprintf(w, "%s\n%s\n\n", title, strings.Repeat("─", len([]rune(title))))

	if res.Description != "" {
		fmt.Fprintf(w, "%s\n\n", res.Description)
	}
	if res.TooFar {
		return
	}

	for i, p := range res.Plants {
		fmt.Fprintf(w, "%d. %s (%s) [%s]\n", i+1, p.CommonName, p.ScientificName, p.Rarity)
		if p.Family != "" {
			fmt.Fprintf(w, "   Family: %s\n", p.Family)
		}
		if p.Description != "" {
			fmt.Fprintf(w, "   %s\n", p.Description)
		}
		if p.Hint != "" {
			fmt.Fprintf(w, "   Hint: %s\n", p.Hint)
		}
		if len(p.Photos) > 0 {
			fmt.Fprintf(w, "   Photo: %s\n", p.Photos[0].URL)
		}
		fmt.Fprintln(w)
	}

	if res.Source != model.SourceNone {
		fmt.Fprintf(w, "Source: %s\n", res.Source)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	return nil
}

func writeJSONFile(path string, v interface{}) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, closeErr)
		}
	}()
	return writeJSON(f, v)
}
