package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tunekit/tunekit/pkg/update"
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update tunekit to the latest version",
	Long: `Update tunekit to the latest version from GitHub releases.
This command will:
  - Check for the latest release on GitHub
  - Download the appropriate binary for your platform
  - Replace the current binary with the new version`,
	Example: `  tunekit update
  tunekit update -v`,
	Run: runUpdate,
}

func runUpdate(cmd *cobra.Command, args []string) {
	fmt.Println()

	if err := update.CheckAndUpdate("v"+Version, verbose); err != nil {
		color.Red("Update failed: %v", err)
		os.Exit(1)
	}
}
