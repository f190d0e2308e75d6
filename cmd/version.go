package cmd

import (
	"fmt"

	"github.com/charukad/traceiq/internal/recognition"
	"github.com/spf13/cobra"
)

// Build metadata variables, set by -ldflags at compile time.
var (
	Version   = "dev"
	CommitSHA = "unknown"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("traceiq %s\n", Version)
		fmt.Printf("  Commit:      %s\n", CommitSHA)
		fmt.Printf("  Built:       %s\n", BuildDate)
		fmt.Printf("  Calibration: %s\n", recognition.CalibrationVersion)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
