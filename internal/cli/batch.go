package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/veritas/internal/model"
	"github.com/ppiankov/veritas/internal/pipeline"
	"github.com/ppiankov/veritas/internal/worker"
)

var (
	concurrency  int
	outputFile   string
	batchTimeout time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Verify many claims from a file in parallel",
	Long: `Batch verifies claims read from a file (one per line, # for comments)
with a bounded worker pool. Every claim is verified independently; a failed
claim yields a fallback result and does not stop the batch.

Example:
  veritas batch claims.txt
  veritas batch claims.txt --concurrency 8 --output results.json
  veritas batch claims.txt --timeout 30m --no-scrape`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", runtime.NumCPU(), "number of concurrent workers")
	batchCmd.Flags().StringVar(&outputFile, "output", "", "write all results as JSON to this file")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 10*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().StringVar(&category, "category", "", "category applied to every claim")
	batchCmd.Flags().BoolVar(&noPersist, "no-persist", false, "do not store verified claims")
	batchCmd.Flags().BoolVar(&noScrape, "no-scrape", false, "do not search fact-checking sites")
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]
	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Veritas Batch Verification\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", concurrency)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	a, err := newApp(appOptions{noScrape: noScrape})
	if err != nil {
		return err
	}
	defer a.Close()

	opts := pipeline.Options{Category: category, NoPersist: noPersist}
	processor := worker.NewBatchProcessor(func(ctx context.Context, text string) (*model.Result, error) {
		return a.pipeline.Verify(ctx, text, opts)
	}, concurrency)

	results, err := processor.ProcessFile(ctx, file)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	summary := summarizeBatch(results)
	for _, r := range results {
		switch {
		case r.Error != nil:
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", r.Claim, r.Error)
		case r.Result != nil:
			fmt.Fprintf(os.Stderr, "%s %s (%d%%) %s\n", r.Result.Emoji, r.Result.Label, r.Result.ConfidencePercent, r.Claim)
		}
	}

	if outputFile != "" {
		if err := os.MkdirAll(filepath.Dir(outputFile), 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
		if err := writeJSONFile(outputFile, batchOutput(results)); err != nil {
			return err
		}
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:       %d claims\n", summary.Total)
	fmt.Fprintf(os.Stderr, "  Supported:   %d\n", summary.Supported)
	fmt.Fprintf(os.Stderr, "  Refuted:     %d\n", summary.Refuted)
	fmt.Fprintf(os.Stderr, "  Unverified:  %d\n", summary.Unverified)
	fmt.Fprintf(os.Stderr, "  Failures:    %d\n", summary.Failures)
	if outputFile != "" {
		fmt.Fprintf(os.Stderr, "  Output:      %s\n", outputFile)
	}
	fmt.Fprintf(os.Stderr, "\n")

	return nil
}

type batchSummary struct {
	Total      int
	Supported  int
	Refuted    int
	Unverified int
	Failures   int // errors and fallback results
}

func summarizeBatch(results []*worker.VerifyResult) batchSummary {
	s := batchSummary{Total: len(results)}
	for _, r := range results {
		if r.Error != nil || r.Result == nil || r.Result.Error != "" {
			s.Failures++
			continue
		}
		switch r.Result.Assessment {
		case model.Supported:
			s.Supported++
		case model.Refuted:
			s.Refuted++
		default:
			s.Unverified++
		}
	}
	return s
}

type batchItem struct {
	Claim  string        `json:"claim"`
	Result *model.Result `json:"result,omitempty"`
	Error  string        `json:"error,omitempty"`
}

func batchOutput(results []*worker.VerifyResult) []batchItem {
	out := make([]batchItem, len(results))
	for i, r := range results {
		out[i] = batchItem{Claim: r.Claim, Result: r.Result}
		if r.Error != nil {
			out[i].Error = r.Error.Error()
		}
	}
	return out
}
