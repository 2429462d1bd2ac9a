package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/veritas/internal/inference"
	"github.com/ppiankov/veritas/internal/model"
	"github.com/ppiankov/veritas/internal/pipeline"
)

var (
	category      string
	language      string
	aiOnly        bool
	noPersist     bool
	noScrape      bool
	jsonOutput    bool
	views         int
	shares        int
	verifyTimeout time.Duration

	evidenceFile string
	tiers        []string
)

// verifyCmd represents the verify command
var verifyCmd = &cobra.Command{
	Use:   "verify <claim>",
	Short: "Verify a single claim",
	Long: `Verify collects evidence for a claim from fact-checking sites and stored
verdicts, runs the verdict tiers and prints the result.

Example:
  veritas verify "Vaccines cause autism"
  veritas verify "The Earth is flat" --category science --json
  veritas verify "5G spreads viruses" --ai-only`,
	Args: cobra.MinimumNArgs(1),
	RunE: runVerify,
}

// classifyCmd represents the classify command
var classifyCmd = &cobra.Command{
	Use:   "classify <claim>",
	Short: "Run the verdict tiers on a claim without collecting evidence",
	Long: `Classify runs the inference tiers directly, optionally against evidence read
from a YAML file (a list of {source, title, snippet, url, stance}).

Example:
  veritas classify "Vaccines cause autism"
  veritas classify "Water boils at 100C" --tier training-data-exact --tier pattern-matching
  veritas classify "Drinking bleach cures covid" --evidence evidence.yaml`,
	Args: cobra.MinimumNArgs(1),
	RunE: runClassify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(classifyCmd)

	verifyCmd.Flags().StringVar(&category, "category", "", "claim category (e.g. health, science, politics)")
	verifyCmd.Flags().StringVar(&language, "language", "", "claim language code")
	verifyCmd.Flags().BoolVar(&aiOnly, "ai-only", false, "skip evidence collection and ask the language model only")
	verifyCmd.Flags().BoolVar(&noPersist, "no-persist", false, "do not store the verified claim")
	verifyCmd.Flags().BoolVar(&noScrape, "no-scrape", false, "do not search fact-checking sites")
	verifyCmd.Flags().BoolVar(&jsonOutput, "json", false, "print the result as JSON")
	verifyCmd.Flags().IntVar(&views, "views", 0, "view count of the claim")
	verifyCmd.Flags().IntVar(&shares, "shares", 0, "share count of the claim")
	verifyCmd.Flags().DurationVar(&verifyTimeout, "timeout", 2*time.Minute, "overall verification timeout")

	classifyCmd.Flags().StringVar(&category, "category", "", "claim category")
	classifyCmd.Flags().StringVar(&evidenceFile, "evidence", "", "YAML file with evidence items")
	classifyCmd.Flags().StringSliceVar(&tiers, "tier", nil, "restrict to these tiers (repeatable)")
	classifyCmd.Flags().BoolVar(&jsonOutput, "json", false, "print the outcome as JSON")
}

func runVerify(cmd *cobra.Command, args []string) error {
	claim := strings.Join(args, " ")
	ctx, cancel := context.WithTimeout(cmd.Context(), verifyTimeout)
	defer cancel()

	a, err := newApp(appOptions{noScrape: noScrape})
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.pipeline.Verify(ctx, claim, pipeline.Options{
		Category:  category,
		Language:  language,
		AIOnly:    aiOnly,
		NoPersist: noPersist,
		Metrics:   model.Metrics{Views: views, Shares: shares},
	})
	if err != nil {
		return err
	}

	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), result)
	}
	printResult(cmd.OutOrStdout(), result)
	return nil
}

// classification is the printable outcome of the classify command
type classification struct {
	Claim       string            `json:"claim"`
	Category    model.Category    `json:"category"`
	Label       string            `json:"label"`
	Verdict     model.Verdict     `json:"verdict"`
	Confidence  float64           `json:"confidence"`
	Source      string            `json:"source"`
	Reasoning   string            `json:"reasoning"`
	Explanation model.Explanation `json:"explanation"`
	Tiers       []string          `json:"tiers"`
}

func runClassify(cmd *cobra.Command, args []string) error {
	claim := strings.Join(args, " ")

	var evidence []model.Evidence
	if evidenceFile != "" {
		loaded, err := readEvidenceFile(evidenceFile)
		if err != nil {
			return err
		}
		evidence = loaded
	}

	a, err := newApp(appOptions{noScrape: true, noStore: true})
	if err != nil {
		return err
	}
	defer a.Close()

	engine := a.engine
	if len(tiers) > 0 {
		engine = engine.Only(tiers...)
	}

	cat := model.NormalizeCategory(category)
	out := engine.Classify(cmd.Context(), inference.Request{Claim: claim, Category: cat, Evidence: evidence})
	c := classification{
		Claim:       claim,
		Category:    cat,
		Label:       out.Assessment.Label(),
		Verdict:     out.Assessment.ToVerdict(),
		Confidence:  out.Confidence,
		Source:      out.Source,
		Reasoning:   out.Reasoning,
		Explanation: out.Explanation,
		Tiers:       engine.Tiers(),
	}

	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), c)
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s %s (Confidence: %.0f%%)\n", out.Assessment.Emoji(), c.Label, c.Confidence*100)
	fmt.Fprintf(w, "Method: %s\n", c.Source)
	if c.Reasoning != "" {
		fmt.Fprintf(w, "Reasoning: %s\n", c.Reasoning)
	}
	return nil
}

func readEvidenceFile(path string) ([]model.Evidence, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read evidence file: %w", err)
	}
	var evidence []model.Evidence
	if err := yaml.Unmarshal(data, &evidence); err != nil {
		return nil, fmt.Errorf("parse evidence file: %w", err)
	}
	return evidence, nil
}
