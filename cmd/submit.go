package cmd

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tunekit/tunekit/pkg/orchestrator"
)

var submitFile string

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Record a run and hand it to the harness",
	Long: `Validate a run config strictly, record it in the registry as SUBMITTED,
then post the rendered document to the harness endpoint and index the run
into Elasticsearch when those are configured`,
	Run: runSubmit,
}

func init() {
	submitCmd.Flags().StringVarP(&submitFile, "file", "f", "", "run config file to submit")
}

func runSubmit(cmd *cobra.Command, args []string) {
	if submitFile == "" && len(args) == 1 {
		submitFile = args[0]
	}

	if submitFile == "" {
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

	result, err := orch.RunSubmit(orchestrator.SubmitOptions{File: submitFile})
	if err != nil {
		color.Red("Submit failed: %v", err)
		os.Exit(1)
	}

	if !result.Success {
		displayIssues(result.Issues)
		color.Red("\nSubmission aborted: %s failed strict validation", submitFile)
		os.Exit(1)
	}

	color.Green("Run %s recorded as SUBMITTED (id %s, fingerprint %s)",
		result.RunName, result.RunID, result.Fingerprint)
	if result.Submitted {
		color.Cyan("Posted rendered document to the harness")
	}
	if result.Indexed {
		color.Cyan("Indexed run record into Elasticsearch")
	}
	if !silent {
		color.Green("Done in %v", result.Duration)
	}
}
