package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tunekit/tunekit/pkg/config"
	"github.com/tunekit/tunekit/pkg/presets"
)

var (
	newOutput      string
	newForce       bool
	newList        bool
	newWriteConfig bool
)

var newCmd = &cobra.Command{
	Use:   "new [preset]",
	Short: "Create a run config from a starter preset",
	Long:  `Create a run config from an embedded starter preset, ready to edit and check`,
	Example: `  tunekit new sft-small
  tunekit new sft-7b -o my-run.yaml
  tunekit new --list`,
	Run: runNew,
}

func init() {
	newCmd.Flags().StringVarP(&newOutput, "output", "o", "", "file to write the run config to (default: <preset>.yaml)")
	newCmd.Flags().BoolVar(&newForce, "force", false, "overwrite the output file if it exists")
	newCmd.Flags().BoolVar(&newList, "list", false, "list available presets")
	newCmd.Flags().BoolVar(&newWriteConfig, "write-config", false, "write a default tool config file")
}

func runNew(cmd *cobra.Command, args []string) {
	Verbose = verbose
	if verbose {
		setDebugLogFunctions()
	}

	if newWriteConfig {
		if err := writeDefaultConfig(); err != nil {
			color.Red("Failed to write config: %v", err)
			os.Exit(1)
		}
		if len(args) == 0 {
			return
		}
	}

	if newList || len(args) == 0 {
		listPresets()
		return
	}

	name := args[0]
	data, err := presets.Get(name)
	if err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}

	outPath := newOutput
	if outPath == "" {
		outPath = name + ".yaml"
	}

	if _, err := os.Stat(outPath); err == nil && !newForce {
		color.Red("Error: %s already exists (use --force to overwrite)", outPath)
		os.Exit(1)
	}

	if err := os.WriteFile(outPath, data, 0644); err != nil {
		color.Red("Failed to write file: %v", err)
		os.Exit(1)
	}

	color.Green("Created %s from the %s preset", outPath, name)
	if !silent {
		fmt.Printf("Check it with: tunekit -f %s\n", outPath)
	}
}

func listPresets() {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, color.CyanString("PRESET\tDESCRIPTION"))
	fmt.Fprintln(w, strings.Repeat("-", 70))
	for _, p := range presets.List() {
		fmt.Fprintf(w, "%s\t%s\n", p.Name, p.Description)
	}
	w.Flush()
	fmt.Println()
	fmt.Println("Create one with: tunekit new <preset>")
}

func writeDefaultConfig() error {
	manager := config.NewManager(configFile)
	if err := manager.LoadConfig(); err != nil {
		return err
	}
	if err := manager.Save(); err != nil {
		return err
	}
	color.Green("Wrote config to %s", manager.ConfigPath())
	return nil
}
