package cli

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/herbia/internal/model"
)

var (
	identifyName    string
	identifyGenus   string
	identifyFamily  string
	identifyJSON    bool
	identifyTimeout time.Duration
)

// identifyCmd represents the identify command
var identifyCmd = &cobra.Command{
	Use:   "identify <photo>",
	Short: "Check a plant photo against the species you expected",
	Long: `Identify sends a JPEG or PNG photo to Pl@ntNet and compares its best
candidates with the expected species. Without an exact match, the result
reports whether the photo shows the same genus (75) or family (40).
Without --name it reports the best candidate, for recording unknown plants.

Requires PLANTNET_API_KEY.

Example:
  herbia identify leaf.jpg --name "Quercus ilex"
  herbia identify unknown.jpg
  herbia identify flower.png --name "Cistus albidus" --genus Cistus --family Cistaceae --json`,
	Args: cobra.ExactArgs(1),
	RunE: runIdentify,
}

func init() {
	rootCmd.AddCommand(identifyCmd)

	identifyCmd.Flags().StringVar(&identifyName, "name", "", "expected scientific name (empty: report the best candidate)")
	identifyCmd.Flags().StringVar(&identifyGenus, "genus", "", "expected genus (default: first word of --name)")
	identifyCmd.Flags().StringVar(&identifyFamily, "family", "", "expected family")
	identifyCmd.Flags().BoolVar(&identifyJSON, "json", false, "print the result as JSON")
	identifyCmd.Flags().DurationVar(&identifyTimeout, "timeout", time.Minute, "overall timeout")
}

func runIdentify(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), identifyTimeout)
	defer cancel()

	_, log, services, err := setup(ctx)
	if err != nil {
		return err
	}
	defer log.Sync()
	defer func() { _ = services.Close() }()

	req, err := readPhoto(args[0], services.Identifier.MaxUploadBytes())
	if err != nil {
		return err
	}
	req.ExpectedScientificName = identifyName
	req.ExpectedGenus = identifyGenus
	req.ExpectedFamily = identifyFamily

	result, err := services.Identifier.Identify(ctx, req)
	if err != nil {
		return fmt.Errorf("identify failed: %w", err)
	}

	if identifyJSON {
		return writeJSON(os.Stdout, result)
	}
	renderIdentification(os.Stdout, identifyName, result)
	return nil
}

// readPhoto reads at most maxBytes+1 so oversized files are rejected without loading them whole
func readPhoto(path string, maxBytes int64) (model.IdentifyRequest, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.IdentifyRequest{}, fmt.Errorf("open photo: %w", err)
	}
	defer func() { _ = f.Close() }()

	image, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		return model.IdentifyRequest{}, fmt.Errorf("read photo: %w", err)
	}

	return model.IdentifyRequest{
		Image:    image,
		MimeType: mime.TypeByExtension(filepath.Ext(path)),
	}, nil
}

func renderIdentification(w io.Writer, expected string, res model.IdentificationResult) {
	if !res.Identified() {
		fmt.Fprintf(w, "✗ No plant recognized in the photo\n")
		return
	}

	switch {
	case expected == "":
		fmt.Fprintf(w, "Identified as %s (confidence %d%%)\n", res.IdentifiedAs, res.Score)
	case res.Match:
		fmt.Fprintf(w, "✓ Match: %s (confidence %d%%)\n", res.IdentifiedAs, res.Score)
	default:
		fmt.Fprintf(w, "✗ Expected %s, photo looks like %s (confidence %d%%)\n", expected, res.IdentifiedAs, res.Score)
		switch res.Similarity {
		case model.SimilarityGenus:
			fmt.Fprintf(w, "  Same genus (%s)\n", res.Genus)
		case model.SimilarityFamily:
			fmt.Fprintf(w, "  Same family (%s)\n", res.Family)
		}
	}
	if res.CommonName != "" {
		fmt.Fprintf(w, "  Common name: %s\n", res.CommonName)
	}
	fmt.Fprintf(w, "  Similarity: %d/100\n", res.Similarity)
}
