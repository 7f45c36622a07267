package main

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/varmapfit/internal/store"
)

var (
	runsDataDir   string
	keepLast      int
	olderThanDays int
	forceClean    bool
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Manage stored fitting runs",
	Long:  `List, inspect and clean the fitting runs stored under the data directory.`,
}

var listRunsCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored runs",
	Long:  `Display all runs with run ID, timestamp, strategy, structure count, cost and disk usage.`,
	RunE:  runListRuns,
}

var showRunCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the fitted model of a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runShowRun,
}

var cleanRunsCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete old runs",
	Long: `Delete runs based on a retention policy.
You can keep only the most recent N runs or delete runs older than N days.`,
	RunE: runCleanRuns,
}

func init() {
	rootCmd.AddCommand(runsCmd)

	runsCmd.AddCommand(listRunsCmd)
	runsCmd.AddCommand(showRunCmd)
	runsCmd.AddCommand(cleanRunsCmd)

	runsCmd.PersistentFlags().StringVar(&runsDataDir, "data-dir", "./data", "Base directory of the run store")

	cleanRunsCmd.Flags().IntVar(&keepLast, "keep-last", 0, "Keep only the last N runs (0 = keep all)")
	cleanRunsCmd.Flags().IntVar(&olderThanDays, "older-than", 0, "Delete runs older than N days (0 = no age limit)")
	cleanRunsCmd.Flags().BoolVarP(&forceClean, "force", "f", false, "Skip confirmation prompt")
}

func runListRuns(cmd *cobra.Command, args []string) error {
	fsStore, err := store.NewFSStore(runsDataDir)
	if err != nil {
		return fmt.Errorf("failed to open run store: %w", err)
	}

	infos, err := fsStore.ListRuns()
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(infos) == 0 {
		fmt.Fprintln(out, "No runs found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tTIMESTAMP\tSTRATEGY\tSTRUCTURES\tCOST\tSIZE")
	fmt.Fprintln(w, "------\t---------\t--------\t----------\t----\t----")

	for _, info := range infos {
		size, err := getDirSize(fsStore.RunDir(info.RunID))
		sizeStr := "unknown"
		if err == nil {
			sizeStr = formatBytes(size)
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.6g\t%s\n",
			shortID(info.RunID),
			info.Timestamp.Format("2006-01-02 15:04:05"),
			info.Strategy,
			info.Structures,
			info.Cost,
			sizeStr,
		)
	}
	w.Flush()

	fmt.Fprintf(out, "\nTotal runs: %d\n", len(infos))
	return nil
}

func runShowRun(cmd *cobra.Command, args []string) error {
	fsStore, err := store.NewFSStore(runsDataDir)
	if err != nil {
		return fmt.Errorf("failed to open run store: %w", err)
	}

	report, err := fsStore.LoadReport(args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	printReport(out, report)

	entries, err := store.ReadTrace(runsDataDir, report.RunID)
	if err != nil {
		slog.Warn("Trace unavailable", "run_id", report.RunID, "error", err)
		return nil
	}
	fmt.Fprintf(out, "\n%s\n", traceSummary(entries))
	return nil
}

// traceSummary describes where in the trace the best cost was first reached
func traceSummary(entries []store.TraceEntry) string {
	if len(entries) == 0 {
		return "Trace: empty"
	}
	last := entries[len(entries)-1]
	first := last.Step
	for _, e := range entries {
		if e.Best == last.Best {
			first = e.Step
			break
		}
	}
	return fmt.Sprintf("Trace: %d entries, best %.6g first reached at step %d", len(entries), last.Best, first)
}

func printReport(out io.Writer, report *store.Report) {
	cfg := report.Config
	fmt.Fprintf(out, "Run:        %s\n", report.RunID)
	fmt.Fprintf(out, "Timestamp:  %s\n", report.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(out, "Data:       %s (%s)\n", cfg.DataPath, cfg.Variable)
	fmt.Fprintf(out, "Strategy:   %s, objective %s, seed %d\n", cfg.Strategy, cfg.Objective, cfg.Seed)
	fmt.Fprintf(out, "Cost:       %.6g (initial %.6g)\n", report.Cost, report.InitialCost)
	fmt.Fprintf(out, "Evaluated:  %d times in %s\n\n", report.Evaluations, report.Duration.Round(time.Millisecond))

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tCONTRIBUTION\tRANGE\tRANGE RATIO\tAZIMUTH")
	for i, st := range report.Structures {
		fmt.Fprintf(w, "%d\t%.6g\t%.6g\t%.4f\t%.2f\n", i+1, st.Contribution, st.Range, st.RangeRatio, st.Azimuth)
	}
	w.Flush()

	if len(report.Surfaces) > 0 {
		fmt.Fprintln(out)
		w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SURFACE\tMIN\tMAX\tSUM")
		for _, s := range report.Surfaces {
			fmt.Fprintf(w, "%s\t%.6g\t%.6g\t%.6g\n", s.Name, s.Min, s.Max, s.Sum)
		}
		w.Flush()
	}
}

func runCleanRuns(cmd *cobra.Command, args []string) error {
	if keepLast == 0 && olderThanDays == 0 {
		return fmt.Errorf("must specify either --keep-last or --older-than")
	}

	fsStore, err := store.NewFSStore(runsDataDir)
	if err != nil {
		return fmt.Errorf("failed to open run store: %w", err)
	}

	infos, err := fsStore.ListRuns()
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	out := cmd.OutOrStdout()
	toDelete := selectRunsForDeletion(infos, keepLast, olderThanDays, time.Now())
	if len(toDelete) == 0 {
		fmt.Fprintln(out, "No runs match deletion criteria.")
		return nil
	}

	fmt.Fprintf(out, "Found %d run(s) to delete:\n", len(toDelete))
	for _, info := range toDelete {
		fmt.Fprintf(out, "  - %s (%s, cost %.6g)\n",
			shortID(info.RunID),
			info.Timestamp.Format("2006-01-02 15:04:05"),
			info.Cost,
		)
	}

	if !forceClean {
		fmt.Fprint(out, "\nProceed with deletion? [y/N]: ")
		response, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		response = strings.TrimSpace(response)
		if response != "y" && response != "Y" {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	deleted, failed := 0, 0
	for _, info := range toDelete {
		if err := fsStore.DeleteRun(info.RunID); err != nil {
			slog.Error("Failed to delete run", "run_id", info.RunID, "error", err)
			failed++
			continue
		}
		slog.Info("Deleted run", "run_id", info.RunID)
		deleted++
	}

	fmt.Fprintf(out, "\nDeleted %d run(s), %d failed.\n", deleted, failed)
	return nil
}

// selectRunsForDeletion applies the retention policy. A run is selected when
// it is older than olderThanDays or falls outside the keepLast most recent.
func selectRunsForDeletion(infos []store.RunInfo, keepLast, olderThanDays int, now time.Time) []store.RunInfo {
	selected := make(map[string]bool)
	var toDelete []store.RunInfo

	if olderThanDays > 0 {
		cutoff := now.AddDate(0, 0, -olderThanDays)
		for _, info := range infos {
			if info.Timestamp.Before(cutoff) {
				selected[info.RunID] = true
				toDelete = append(toDelete, info)
			}
		}
	}

	if keepLast > 0 && len(infos) > keepLast {
		sorted := make([]store.RunInfo, len(infos))
		copy(sorted, infos)
		sort.Slice(sorted, func(a, b int) bool {
			return sorted[a].Timestamp.Before(sorted[b].Timestamp)
		})

		for _, info := range sorted[:len(sorted)-keepLast] {
			if !selected[info.RunID] {
				selected[info.RunID] = true
				toDelete = append(toDelete, info)
			}
		}
	}

	return toDelete
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12] + "..."
	}
	return id
}

// getDirSize calculates the total size of a directory
func getDirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}

// formatBytes formats bytes as human-readable string
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
