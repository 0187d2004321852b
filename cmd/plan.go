package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tunekit/tunekit/pkg/orchestrator"
)

var (
	planFile   string
	planGPUs   int
	planParams float64
	planJSON   bool
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Derive the batching and duration plan",
	Long: `Derive accumulation steps, tokens per step, checkpoint counts and a
training-state memory estimate from a run config`,
	Run: runPlan,
}

func init() {
	planCmd.Flags().StringVarP(&planFile, "file", "f", "", "run config file to plan")
	planCmd.Flags().IntVar(&planGPUs, "gpus", 0, "GPU count for per-device arithmetic")
	planCmd.Flags().Float64Var(&planParams, "params", 0, "model parameter count in billions (default: hub lookup)")
	planCmd.Flags().BoolVarP(&planJSON, "json", "j", false, "write the plan as JSON")
}

func runPlan(cmd *cobra.Command, args []string) {
	if planFile == "" && len(args) == 1 {
		planFile = args[0]
	}

	if planFile == "" {
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

	p, report, err := orch.RunPlan(orchestrator.PlanOptions{
		File:    planFile,
		GPUs:    planGPUs,
		ParamsB: planParams,
	})
	if err != nil {
		color.Red("Plan failed: %v", err)
		os.Exit(1)
	}

	if p == nil {
		displayIssues(report.Issues)
		color.Red("\n%s: %d error(s), %d warning(s)",
			planFile, len(report.Errors()), len(report.Warnings()))
		os.Exit(1)
	}

	if planJSON {
		data, err := json.MarshalIndent(p, "", "  ")
		if err != nil {
			color.Red("Failed to marshal JSON: %v", err)
			os.Exit(1)
		}
		fmt.Println(string(data))
		return
	}

	if err := p.WriteTable(os.Stdout); err != nil {
		color.Red("Failed to write plan: %v", err)
		os.Exit(1)
	}
}
