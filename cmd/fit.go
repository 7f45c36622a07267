package main

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cwbudde/varmapfit/internal/config"
	"github.com/cwbudde/varmapfit/internal/fit"
	"github.com/cwbudde/varmapfit/internal/opt"
	"github.com/cwbudde/varmapfit/internal/runner"
)

var (
	configPath    string
	fitSeed       int64
	fitThreads    int
	fitOut        string
	fitStrategy   string
	progressEvery time.Duration
)

var fitCmd = &cobra.Command{
	Use:   "fit",
	Short: "Fit nested variogram structures to a gridded variable",
	Long: `Reads the session file, fits the requested number of structures to the
variable's experimental variogram map and stores the trace, the report and the
result surfaces under <out>/runs/<run-id>/.`,
	RunE: runFit,
}

func init() {
	fitCmd.Flags().StringVar(&configPath, "config", "", "Session file (required)")
	fitCmd.Flags().Int64Var(&fitSeed, "seed", 0, "Random seed (overrides the session file)")
	fitCmd.Flags().IntVar(&fitThreads, "threads", 0, "Worker threads, 0 for one per CPU (overrides the session file)")
	fitCmd.Flags().StringVar(&fitOut, "out", "", "Output directory (overrides the session file)")
	fitCmd.Flags().StringVar(&fitStrategy, "strategy", "", "Optimization strategy (overrides the session file)")
	fitCmd.Flags().DurationVar(&progressEvery, "progress", 5*time.Second, "Interval between progress log lines, 0 to disable")

	fitCmd.MarkFlagRequired("config")
	rootCmd.AddCommand(fitCmd)
}

func runFit(cmd *cobra.Command, args []string) error {
	session, err := config.Load(configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("seed") {
		session.Seed = fitSeed
	}
	if flags.Changed("threads") {
		session.Threads = fitThreads
	}
	if flags.Changed("out") {
		session.Output = fitOut
	}
	if flags.Changed("strategy") {
		session.Strategy = fitStrategy
	}
	if err := session.Validate(); err != nil {
		return err
	}

	_, err = executeFit(session, cmd.OutOrStdout())
	return err
}

// executeFit runs one fitting session end to end and returns the run ID
func executeFit(session *config.Session, out io.Writer) (string, error) {
	runID := uuid.New().String()

	progress := &opt.Progress{}
	stop := watchProgress(progress, progressEvery)
	outcome, err := runner.Fit(session, runID, progress)
	stop()
	if err != nil {
		return "", err
	}

	result := outcome.Result
	fmt.Fprint(out, fit.FormatModel(result.Structures))
	fmt.Fprintf(out, "Run %s: cost %.6g -> %.6g (%d evaluations, %s), results in %s\n",
		runID, result.InitialCost, result.Cost, result.Evaluations, outcome.Duration.Round(time.Millisecond), outcome.RunDir)

	return runID, nil
}

// watchProgress logs the progress counter periodically until stop is called
func watchProgress(progress *opt.Progress, every time.Duration) (stop func()) {
	if every <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				slog.Info("Fit progress", "steps", progress.Value())
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		wg.Wait()
	}
}
