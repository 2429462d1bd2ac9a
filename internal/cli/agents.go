package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var (
	runOnce  string
	logLimit int
)

// agentsCmd groups the background agent commands
var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "Run and inspect background agents (clustering, re-verification)",
}

var agentsRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the agent scheduler in the foreground until interrupted",
	Long: `Run starts the clustering, re-verification and priority re-verification
agents on their cron schedules (see the schedule section of the config).

Example:
  veritas agents run
  veritas agents run --once cluster
  veritas agents run --once priority-reverify`,
	RunE: runAgents,
}

var agentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scheduled agents and their next run",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(appOptions{noScrape: true})
		if err != nil {
			return err
		}
		defer a.Close()

		s, err := a.scheduler()
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		for _, ag := range s.Agents() {
			fmt.Fprintf(w, "%-20s next run %s\n", ag.Name(), s.Next(ag.Name()).Format(time.RFC3339))
		}
		return nil
	},
}

var agentsLogCmd = &cobra.Command{
	Use:   "log",
	Short: "Show recent audited agent actions",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(appOptions{noScrape: true})
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.store.RecentActions(cmd.Context(), logLimit)
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), entries)
		}
		w := cmd.OutOrStdout()
		for _, e := range entries {
			fmt.Fprintf(w, "%s  %-8s %-20s %v\n", e.CreatedAt.Format(time.RFC3339), e.Action, e.Target, e.Details)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(agentsCmd)
	agentsCmd.AddCommand(agentsRunCmd)
	agentsCmd.AddCommand(agentsListCmd)
	agentsCmd.AddCommand(agentsLogCmd)

	agentsRunCmd.Flags().StringVar(&runOnce, "once", "", "run the named agent once and exit")
	agentsLogCmd.Flags().IntVar(&logLimit, "limit", 50, "number of entries to show")
	agentsLogCmd.Flags().BoolVar(&jsonOutput, "json", false, "print entries as JSON")
}

func runAgents(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := a.scheduler()
	if err != nil {
		return err
	}

	if runOnce != "" {
		ag, ok := s.Agent(runOnce)
		if !ok {
			return fmt.Errorf("unknown agent %q", runOnce)
		}
		ag.Start(ctx)
		n, err := s.RunNow(ctx, runOnce)
		ag.Stop(ctx)
		if err != nil {
			return fmt.Errorf("agent %s: %w", runOnce, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %s processed %d items\n", runOnce, n)
		return nil
	}

	s.Start(ctx)
	for _, ag := range s.Agents() {
		fmt.Fprintf(cmd.ErrOrStderr(), "  %-20s next run %s\n", ag.Name(), s.Next(ag.Name()).Format(time.RFC3339))
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "Agents running. Press Ctrl+C to stop.")

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s.Stop(shutdownCtx)

	for _, ag := range s.Agents() {
		st := ag.Status()
		fmt.Fprintf(cmd.ErrOrStderr(), "  %-20s processed %d, errors %d\n", st.Name, st.ProcessedCount, st.ErrorCount)
	}
	return nil
}
