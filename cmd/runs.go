package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tunekit/tunekit/pkg/orchestrator"
	"github.com/tunekit/tunekit/pkg/registry"
)

var (
	runsName   string
	runsStatus string
	runsLimit  int
	runsJSON   bool
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Query the run registry",
	Long:  `Query the run registry for recorded runs, filtered by name or status`,
	Run:   runRuns,
}

func init() {
	runsCmd.Flags().StringVar(&runsName, "name", "", "filter by run name")
	runsCmd.Flags().StringVar(&runsStatus, "status", "", "filter by status (validated, submitted, superseded)")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 50, "maximum number of runs to list")
	runsCmd.Flags().BoolVarP(&runsJSON, "json", "j", false, "write runs as JSON")
}

func runRuns(cmd *cobra.Command, args []string) {
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

	if runsStatus != "" {
		runsStatus = strings.ToUpper(runsStatus)
	}

	records, err := orch.RunList(orchestrator.ListOptions{
		Name:   runsName,
		Status: runsStatus,
		Limit:  runsLimit,
	})
	if err != nil {
		color.Red("Failed to query registry: %v", err)
		os.Exit(1)
	}

	if len(records) == 0 {
		color.Yellow("[INF] No runs found.")
		return
	}

	if runsJSON {
		data, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			color.Red("Failed to marshal JSON: %v", err)
			os.Exit(1)
		}
		fmt.Println(string(data))
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, color.CyanString("NAME\tFINGERPRINT\tSTATUS\tMODEL\tMAX_DURATION\tUPDATED"))
	fmt.Fprintln(w, strings.Repeat("-", 100))

	for _, r := range records {
		statusColor := color.GreenString
		switch r.Status {
		case registry.StatusSubmitted:
			statusColor = color.CyanString
		case registry.StatusSuperseded:
			statusColor = color.RedString
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Name,
			r.Fingerprint,
			statusColor(r.Status),
			r.Model,
			r.MaxDuration,
			r.UpdatedAt.Format("2006-01-02 15:04:05"),
		)
	}
	w.Flush()

	color.Green("\nTotal runs: %d", len(records))
}
