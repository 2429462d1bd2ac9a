package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ppiankov/veritas/internal/model"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// writeJSONFile writes v as indented JSON to path
func writeJSONFile(path string, v any) (err error) {
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

// printResult renders a verification result for a terminal
func printResult(w io.Writer, r *model.Result) {
	fmt.Fprintf(w, "\n%s\n", r.Claim)
	fmt.Fprintf(w, "%s\n\n", r.Classification)

	if r.Explanation.Short != "" {
		fmt.Fprintf(w, "  %s\n", r.Explanation.Short)
	}
	if r.Reasoning != "" {
		fmt.Fprintf(w, "\n  Reasoning:\n")
		for _, line := range strings.Split(r.Reasoning, "\n") {
			fmt.Fprintf(w, "    %s\n", line)
		}
	}

	if len(r.Evidence) > 0 {
		fmt.Fprintf(w, "\n  Evidence:\n")
		for i, e := range r.Evidence {
			title := e.Title
			if title == "" {
				title = e.Snippet
			}
			fmt.Fprintf(w, "    %d. [%s] %s", i+1, e.Source, title)
			if e.Stance != "" {
				fmt.Fprintf(w, " (%s)", e.Stance)
			}
			fmt.Fprintln(w)
			if e.URL != "" {
				fmt.Fprintf(w, "       %s\n", e.URL)
			}
		}
	}

	p := r.Pipeline
	fmt.Fprintf(w, "\n  Method: %s · %d ms · steps %d", p.VerificationMethod, p.TotalTimeMs, p.StepsCompleted)
	if len(p.EvidenceSources) > 0 {
		fmt.Fprintf(w, " · sources %s", strings.Join(p.EvidenceSources, ", "))
	}
	fmt.Fprintln(w)
	if r.ClaimID != "" {
		fmt.Fprintf(w, "  Claim ID: %s\n", r.ClaimID)
	}
	if r.Error != "" {
		fmt.Fprintf(w, "  Error: %s\n", r.Error)
	}
}
