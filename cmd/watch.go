package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tunekit/tunekit/pkg/orchestrator"
	"github.com/tunekit/tunekit/pkg/watch"
)

var (
	watchFile   string
	watchStrict bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-check a run config on every change",
	Long: `Watch a run config file and re-run validation whenever writes to it
settle, until interrupted`,
	Run: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchFile, "file", "f", "", "run config file to watch")
	watchCmd.Flags().BoolVar(&watchStrict, "strict", false, "treat warnings as errors")
}

func runWatch(cmd *cobra.Command, args []string) {
	if watchFile == "" && len(args) == 1 {
		watchFile = args[0]
	}

	if watchFile == "" {
		color.Red("Error: a run config file is required (-f run.yaml)")
		cmd.Help()
		os.Exit(1)
	}

	Verbose = verbose
	if verbose {
		setDebugLogFunctions()
	}

	orch, err := orchestrator.NewOrchestrator(configFile)
	if err != nil {
		color.Red("Failed to initialize orchestrator: %v", err)
		os.Exit(1)
	}
	defer orch.Close()

	checkOnce(orch, watchFile)

	w, err := watch.New(watchFile, func(path string) {
		checkOnce(orch, path)
	})
	if err != nil {
		color.Red("Failed to create watcher: %v", err)
		os.Exit(1)
	}

	if err := w.Start(context.Background()); err != nil {
		color.Red("Failed to start watcher: %v", err)
		os.Exit(1)
	}

	if !silent {
		color.Cyan("\n[INF] Watching %s for changes (ctrl-c to stop)", w.Path())
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	w.Stop()
	if !silent {
		color.Green("\n[INF] Watcher stopped")
	}
}

func checkOnce(orch *orchestrator.Orchestrator, path string) {
	result, err := orch.RunCheck(orchestrator.CheckOptions{
		File:   path,
		Strict: watchStrict,
	})
	stamp := time.Now().Format("15:04:05")
	if err != nil {
		color.Red("[ERR] %s %s: %v", stamp, path, err)
		return
	}

	displayIssues(result.Issues)
	if result.Success {
		color.Green("[INF] %s %s: OK (fingerprint %s)", stamp, path, result.Fingerprint)
	} else {
		report := result.Report
		color.Red("[ERR] %s %s: %d error(s), %d warning(s)",
			stamp, path, len(report.Errors()), len(report.Warnings()))
	}
}
