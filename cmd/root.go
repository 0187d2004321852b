package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tunekit/tunekit/pkg/config"
	"github.com/tunekit/tunekit/pkg/elastic"
	"github.com/tunekit/tunekit/pkg/hub"
	"github.com/tunekit/tunekit/pkg/orchestrator"
	"github.com/tunekit/tunekit/pkg/registry"
	"github.com/tunekit/tunekit/pkg/runspec"
	"github.com/tunekit/tunekit/pkg/session"
	"github.com/tunekit/tunekit/pkg/watch"
)

var (
	configFile  string
	runFile     string
	outputFile  string
	jsonFormat  bool
	silent      bool
	verbose     bool
	strict      bool
	checkRemote bool
	record      bool
)

var Verbose bool

var rootCmd = &cobra.Command{
	Use:   "tunekit",
	Short: "fine-tuning run config checker and planner",
	Long:  `validate, render, plan and submit fine-tuning run configs before the training harness sees them`,
	Run:   runCheck,
}

func Execute() {
	hasSilentFlag := false
	for i, arg := range os.Args {
		if arg == "-file" {
			os.Args[i] = "--file"
		}
		if arg == "-strict" {
			os.Args[i] = "--strict"
		}
		if arg == "-silent" {
			os.Args[i] = "--silent"
			hasSilentFlag = true
		}
		if arg == "--silent" {
			hasSilentFlag = true
		}
		if arg == "-json" {
			os.Args[i] = "--json"
		}
		if arg == "-record" {
			os.Args[i] = "--record"
		}
		if arg == "-check-remote" {
			os.Args[i] = "--check-remote"
		}
		if arg == "-gpus" {
			os.Args[i] = "--gpus"
		}
		if arg == "-params" {
			os.Args[i] = "--params"
		}
		if arg == "-status" {
			os.Args[i] = "--status"
		}
		if arg == "-limit" {
			os.Args[i] = "--limit"
		}
		if arg == "-name" {
			os.Args[i] = "--name"
		}
		if arg == "-force" {
			os.Args[i] = "--force"
		}
		if arg == "-list" {
			os.Args[i] = "--list"
		}
	}

	if !hasSilentFlag {
		printBanner()
	}

	if err := rootCmd.Execute(); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func DebugLog(format string, args ...interface{}) {
	if Verbose {
		fmt.Printf("[DBG] "+format+"\n", args...)
	}
}

func setDebugLogFunctions() {
	config.DebugLog = DebugLog
	orchestrator.DebugLog = DebugLog
	session.DebugLog = DebugLog
	registry.DebugLog = DebugLog
	runspec.DebugLog = DebugLog
	hub.DebugLog = DebugLog
	elastic.DebugLog = DebugLog
	watch.DebugLog = DebugLog
}

func init() {
	rootCmd.SetHelpTemplate(`Usage:
  {{.UseLine}}{{if .HasAvailableSubCommands}}
  {{.CommandPath}} [command]{{end}}

{{if .HasAvailableSubCommands}}Commands:{{range .Commands}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}

{{end}}Flags:
INPUT:
   -f, -file string        run config file to check

VALIDATION:
   -strict                 treat warnings as errors
   -check-remote           resolve model and tokenizer repos against the hub
   -record                 record a passing config in the registry as VALIDATED

OUTPUT:
   -o, -output string      file to write results to
   -j, -json               write results as JSON
   -silent                 silent mode - no banner or extra output

CONFIGURATION:
   -c, -config string      config file path (default: ~/.config/tunekit/config.yaml)

DEBUG:
   -v, -verbose            enable verbose/debug output
{{if .HasAvailableSubCommands}}
Use "{{.CommandPath}} [command] --help" for more information about a command.{{end}}
`)

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (default: ~/.config/tunekit/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose/debug output")
	rootCmd.PersistentFlags().BoolVar(&silent, "silent", false, "silent mode - no banner or extra output")

	rootCmd.Flags().StringVarP(&runFile, "file", "f", "", "run config file to check")
	rootCmd.Flags().StringVarP(&outputFile, "output", "o", "", "file to write results to")
	rootCmd.Flags().BoolVarP(&jsonFormat, "json", "j", false, "write results as JSON")
	rootCmd.Flags().BoolVar(&strict, "strict", false, "treat warnings as errors")
	rootCmd.Flags().BoolVar(&checkRemote, "check-remote", false, "resolve model and tokenizer repos against the hub")
	rootCmd.Flags().BoolVar(&record, "record", false, "record a passing config in the registry as VALIDATED")

	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(newCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(updateCmd)
}

func runCheck(cmd *cobra.Command, args []string) {
	if runFile == "" && len(args) == 1 {
		runFile = args[0]
	}

	if runFile == "" {
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

	result, err := orch.RunCheck(orchestrator.CheckOptions{
		File:        runFile,
		Strict:      strict,
		CheckRemote: checkRemote,
		Record:      record,
	})
	if err != nil {
		color.Red("Check failed: %v", err)
		os.Exit(1)
	}

	if err := handleCheckOutput(result); err != nil {
		color.Red("Output error: %v", err)
		os.Exit(1)
	}

	if result.Success {
		os.Exit(0)
	}
	os.Exit(1)
}

func handleCheckOutput(result *orchestrator.CheckResult) error {
	if jsonFormat {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		if outputFile != "" {
			return os.WriteFile(outputFile, append(data, '\n'), 0644)
		}
		fmt.Println(string(data))
		return nil
	}

	displayIssues(result.Issues)
	displayRemoteChecks(result.Remote)

	if !silent {
		if result.Success {
			color.Green("\n%s: OK (run %s, fingerprint %s) in %v",
				result.File, result.RunName, result.Fingerprint, result.Duration)
			if result.RunID != "" {
				color.Cyan("Recorded as VALIDATED (id %s)", result.RunID)
			}
		} else {
			report := result.Report
			color.Red("\n%s: %d error(s), %d warning(s)",
				result.File, len(report.Errors()), len(report.Warnings()))
		}
	}

	if outputFile != "" {
		return writeIssuesFile(result, outputFile)
	}
	return nil
}

func displayIssues(issues []runspec.Issue) {
	for _, issue := range issues {
		switch issue.Severity {
		case runspec.SeverityError:
			fmt.Printf("%s %s\n", color.RedString("[ERR]"), issue.String())
		case runspec.SeverityWarning:
			fmt.Printf("%s %s\n", color.YellowString("[WARN]"), issue.String())
		default:
			fmt.Printf("      %s\n", issue.String())
		}
	}
}

func displayRemoteChecks(checks []orchestrator.RemoteCheck) {
	for _, check := range checks {
		if check.OK {
			fmt.Printf("%s hub: %s resolved\n", color.GreenString("[INF]"), check.Repo)
		} else {
			fmt.Printf("%s hub: %s: %s\n", color.RedString("[ERR]"), check.Repo, check.Error)
		}
	}
}

func writeIssuesFile(result *orchestrator.CheckResult, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	for _, issue := range result.Issues {
		if _, err := fmt.Fprintf(file, "%s: %s\n", issue.Severity, issue.String()); err != nil {
			return fmt.Errorf("failed to write to file: %w", err)
		}
	}
	return nil
}

func printBanner() {
	banner := color.CyanString(`
┌┬┐┬ ┬┌┐┌┌─┐┬┌─┬┌┬┐
 │ │ ││││├┤ ├┴┐│ │
 ┴ └─┘┘└┘└─┘┴ ┴┴ ┴
`)
	info := color.HiBlackString("run config checker, planner & registry for LLM fine-tuning")
	fmt.Println(banner)
	fmt.Println(info)
	fmt.Println()
}
