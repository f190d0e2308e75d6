package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/charukad/traceiq/internal/config"
	"github.com/charukad/traceiq/internal/recognition"
	"github.com/spf13/cobra"
)

var identifyCmd = &cobra.Command{
	Use:   "identify <image>",
	Short: "Identify the faces in a probe image",
	Long: `Match the faces of a probe image against all enrolled faces.
By default only the largest face is matched.

Examples:
  traceiq identify cctv-frame.jpg
  traceiq identify group.jpg --all-faces --threshold 0.5 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runIdentify,
}

func init() {
	rootCmd.AddCommand(identifyCmd)

	identifyCmd.Flags().Float64("threshold", 0, "Maximum L2 distance for a match (0 = configured default)")
	identifyCmd.Flags().Float64("margin", 0, "Minimum distance gap to the next identity (0 = configured default)")
	identifyCmd.Flags().Bool("all-faces", false, "Match every detected face instead of the largest")
	identifyCmd.Flags().Bool("json", false, "Print results as JSON")
}

func runIdentify(cmd *cobra.Command, args []string) error {
	actor, err := actorID()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	ctx := cmd.Context()
	a, err := openApp(ctx, config.Load())
	if err != nil {
		return err
	}
	defer a.Close()

	req := recognition.IdentifyRequest{
		Image:           data,
		Threshold:       mustGetFloat64(cmd, "threshold"),
		AmbiguityMargin: mustGetFloat64(cmd, "margin"),
		ActorID:         actor,
	}
	if mustGetBool(cmd, "all-faces") {
		single := false
		req.SingleFaceOnly = &single
	}

	results, err := a.matching().Identify(ctx, req)
	if err != nil {
		return fmt.Errorf("identification failed: %w", err)
	}

	if mustGetBool(cmd, "json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		fmt.Println("No usable face found in the image")
		return nil
	}
	for i, r := range results {
		fmt.Printf("Face %d at %s: ", i+1, r.Box)
		if r.Status != recognition.StatusMatch {
			if r.Distance != nil {
				fmt.Printf("unknown (best distance %.3f)\n", *r.Distance)
			} else {
				fmt.Println("unknown (no enrolled faces)")
			}
			continue
		}
		fmt.Printf("%s [%s] confidence %.1f%% (distance %.3f, %s)\n",
			r.Identity.Name, r.Identity.ThreatLevel, r.Confidence, *r.Distance, r.CalibrationVersion)
		if r.Identity.NIC != "" {
			fmt.Printf("  NIC: %s\n", r.Identity.NIC)
		}
		fmt.Printf("  ID:  %s\n", r.Identity.ID)
	}
	return nil
}
