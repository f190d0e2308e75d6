package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/charukad/traceiq/internal/config"
	"github.com/spf13/cobra"
)

var facesCmd = &cobra.Command{
	Use:   "faces",
	Short: "Manage the enrolled faces of an identity",
}

var facesListCmd = &cobra.Command{
	Use:   "list <identity-id>",
	Short: "List enrolled faces, primary first",
	Args:  cobra.ExactArgs(1),
	RunE:  runFacesList,
}

var facesDeleteCmd = &cobra.Command{
	Use:   "delete <identity-id> <face-id>",
	Short: "Delete an enrolled face",
	Long: `Delete an enrolled face and its image. When the primary face is deleted the
newest remaining face becomes primary.`,
	Args: cobra.ExactArgs(2),
	RunE: runFacesDelete,
}

var facesSetPrimaryCmd = &cobra.Command{
	Use:   "set-primary <identity-id> <face-id>",
	Short: "Make a face the identity's primary face",
	Args:  cobra.ExactArgs(2),
	RunE:  runFacesSetPrimary,
}

func init() {
	rootCmd.AddCommand(facesCmd)
	facesCmd.AddCommand(facesListCmd, facesDeleteCmd, facesSetPrimaryCmd)
}

func runFacesList(cmd *cobra.Command, args []string) error {
	identityID, err := parseUUIDArg("identity id", args[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := openApp(ctx, config.Load())
	if err != nil {
		return err
	}
	defer a.Close()

	faces, err := a.enrollment().ListFaces(ctx, identityID)
	if err != nil {
		return err
	}
	if len(faces) == 0 {
		fmt.Println("No faces enrolled")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FACE\tPRIMARY\tBOX\tVERSION\tCREATED\tIMAGE")
	for _, f := range faces {
		box := "-"
		if f.Box != nil {
			box = f.Box.String()
		}
		primary := ""
		if f.IsPrimary {
			primary = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			f.ID, primary, box, f.EmbeddingVersion, f.CreatedAt.Format("2006-01-02 15:04"), f.ImageURL)
	}
	return w.Flush()
}

func runFacesDelete(cmd *cobra.Command, args []string) error {
	identityID, err := parseUUIDArg("identity id", args[0])
	if err != nil {
		return err
	}
	faceID, err := parseUUIDArg("face id", args[1])
	if err != nil {
		return err
	}
	actor, err := actorID()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := openApp(ctx, config.Load())
	if err != nil {
		return err
	}
	defer a.Close()

	outcome, err := a.enrollment().Delete(ctx, identityID, faceID, actor)
	if err != nil {
		return err
	}

	fmt.Printf("Deleted face %s\n", outcome.FaceID)
	if outcome.PromotedFaceID != nil {
		fmt.Printf("Face %s is now primary\n", *outcome.PromotedFaceID)
	}
	return nil
}

func runFacesSetPrimary(cmd *cobra.Command, args []string) error {
	identityID, err := parseUUIDArg("identity id", args[0])
	if err != nil {
		return err
	}
	faceID, err := parseUUIDArg("face id", args[1])
	if err != nil {
		return err
	}
	actor, err := actorID()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := openApp(ctx, config.Load())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.enrollment().SetPrimary(ctx, identityID, faceID, actor); err != nil {
		return err
	}
	fmt.Printf("Face %s is now primary\n", faceID)
	return nil
}
