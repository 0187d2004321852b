package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tunekit/tunekit/pkg/orchestrator"
)

var (
	renderFile   string
	renderOutput string
	renderJSON   bool
	renderStrict bool
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render the harness-ready document",
	Long: `Render a run config with substitutions resolved and defaults filled,
exactly as the training harness will receive it`,
	Run: runRender,
}

func init() {
	renderCmd.Flags().StringVarP(&renderFile, "file", "f", "", "run config file to render")
	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", "", "file to write the rendered document to")
	renderCmd.Flags().BoolVarP(&renderJSON, "json", "j", false, "render as JSON instead of YAML")
	renderCmd.Flags().BoolVar(&renderStrict, "strict", false, "treat warnings as errors")
}

func runRender(cmd *cobra.Command, args []string) {
	if renderFile == "" && len(args) == 1 {
		renderFile = args[0]
	}

	if renderFile == "" {
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

	rendered, report, err := orch.RunRender(orchestrator.RenderOptions{
		File:   renderFile,
		Strict: renderStrict,
		JSON:   renderJSON,
	})
	if err != nil {
		color.Red("Render failed: %v", err)
		os.Exit(1)
	}

	if rendered == nil {
		displayIssues(report.Issues)
		color.Red("\n%s: %d error(s), %d warning(s)",
			renderFile, len(report.Errors()), len(report.Warnings()))
		os.Exit(1)
	}

	if renderOutput != "" {
		if err := os.WriteFile(renderOutput, rendered, 0644); err != nil {
			color.Red("Failed to write output: %v", err)
			os.Exit(1)
		}
		if !silent {
			color.Green("Rendered document written to %s", renderOutput)
		}
		return
	}

	fmt.Print(string(rendered))
}
