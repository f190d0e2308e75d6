package cmd

import (
	"fmt"
	"os"

	"github.com/charukad/traceiq/internal/config"
	"github.com/charukad/traceiq/internal/event"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var actorFlag string

var rootCmd = &cobra.Command{
	Use:   "traceiq",
	Short: "Face enrollment and identification for criminal records",
	Long: `TraceIQ enrolls reference face images for known individuals and identifies
probe images against them. Faces are embedded by an external inference service
and matched by L2 distance with calibrated confidence and ambiguity rejection.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&actorFlag, "actor", "", "Investigator id recorded in the audit log")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()

	cfg := config.Load()
	event.Configure(cfg.Log.Level, cfg.Log.Format)
}
