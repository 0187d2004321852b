package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tunekit/tunekit/pkg/orchestrator"
)

var diffJSON bool

var diffCmd = &cobra.Command{
	Use:   "diff <file-a> <file-b>",
	Short: "Compare two run configs semantically",
	Long: `Compare two run configs after substitution and defaults, so key order
and comment changes disappear and only semantic drift remains`,
	Run: runDiff,
}

func init() {
	diffCmd.Flags().BoolVarP(&diffJSON, "json", "j", false, "write the comparison as JSON")
}

func runDiff(cmd *cobra.Command, args []string) {
	if len(args) != 2 {
		color.Red("Error: diff takes exactly two run config files")
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

	result, err := orch.RunDiff(orchestrator.DiffOptions{FileA: args[0], FileB: args[1]})
	if err != nil {
		color.Red("Diff failed: %v", err)
		os.Exit(1)
	}

	if diffJSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			color.Red("Failed to marshal JSON: %v", err)
			os.Exit(1)
		}
		fmt.Println(string(data))
	} else if result.Equal {
		color.Green("Documents are semantically identical (fingerprint %s)", result.FingerprintA)
	} else {
		color.Cyan("--- %s (%s)", result.FileA, result.FingerprintA)
		color.Cyan("+++ %s (%s)", result.FileB, result.FingerprintB)
		fmt.Println()
		fmt.Print(result.Diff)
	}

	if result.Equal {
		os.Exit(0)
	}
	os.Exit(1)
}
