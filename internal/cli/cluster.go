package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/veritas/internal/model"
)

var (
	clusterStatus string
	clusterLimit  int
)

// clusterCmd runs one clustering pass
var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Group stored, unclustered claims into narratives",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(appOptions{noScrape: true})
		if err != nil {
			return err
		}
		defer a.Close()

		summary, err := a.clusterer.Run(cmd.Context())
		if err != nil {
			return fmt.Errorf("clustering failed: %w", err)
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "✓ Processed %d claims in %v\n", summary.ClaimsProcessed, summary.Elapsed.Round(time.Millisecond))
		fmt.Fprintf(w, "  New clusters:    %d\n", summary.ClustersCreated)
		fmt.Fprintf(w, "  Grown clusters:  %d\n", summary.ClustersGrown)
		fmt.Fprintf(w, "  Claims assigned: %d\n", summary.ClaimsAssigned)
		return nil
	},
}

// clustersCmd lists stored clusters
var clustersCmd = &cobra.Command{
	Use:   "clusters",
	Short: "List narrative clusters",
	Long: `List narrative clusters, most recently seen first.

Example:
  veritas clusters
  veritas clusters --status active --limit 5 --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(appOptions{noScrape: true})
		if err != nil {
			return err
		}
		defer a.Close()

		clusters, err := a.store.ListClusters(cmd.Context(), model.ClusterFilter{
			Status: model.ClusterStatus(clusterStatus),
			Limit:  clusterLimit,
		})
		if err != nil {
			return err
		}

		if jsonOutput {
			views := make([]model.ClusterView, len(clusters))
			for i, c := range clusters {
				views[i] = c.View()
			}
			return writeJSON(cmd.OutOrStdout(), views)
		}

		w := cmd.OutOrStdout()
		if len(clusters) == 0 {
			fmt.Fprintln(w, "No clusters yet. Run 'veritas cluster' after verifying some claims.")
			return nil
		}
		for _, c := range clusters {
			fmt.Fprintf(w, "\n%s  [%s, risk %s]\n", c.Name, c.Status, c.RiskLevel)
			fmt.Fprintf(w, "  %s\n", c.Description)
			fmt.Fprintf(w, "  Claims: %d (true %d, false %d) · reach %d\n",
				c.Metrics.TotalClaims, c.Metrics.VerifiedTrue, c.Metrics.VerifiedFalse, c.Metrics.TotalReach)
			if len(c.Keywords) > 0 {
				fmt.Fprintf(w, "  Keywords: %s\n", strings.Join(c.Keywords, ", "))
			}
			fmt.Fprintf(w, "  Seen: %s → %s\n", c.FirstSeen.Format("2006-01-02"), c.LastSeen.Format("2006-01-02"))
			fmt.Fprintf(w, "  ID: %s\n", c.ID)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(clusterCmd)
	rootCmd.AddCommand(clustersCmd)

	clustersCmd.Flags().StringVar(&clusterStatus, "status", "", "filter by status (active, monitoring, resolved)")
	clustersCmd.Flags().IntVar(&clusterLimit, "limit", 20, "maximum clusters to list")
	clustersCmd.Flags().BoolVar(&jsonOutput, "json", false, "print clusters as JSON")
}
