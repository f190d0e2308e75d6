package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/charukad/traceiq/internal/config"
	"github.com/charukad/traceiq/internal/constants"
	"github.com/charukad/traceiq/internal/recognition"
	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <identity-id> [image...]",
	Short: "Enroll reference face images for an identity",
	Long: `Enroll one or more reference images for an identity. Every image must
contain exactly one face. The first face of an identity always becomes primary.

Examples:
  # Enroll a single mugshot and make it the primary face
  traceiq enroll 6f1c... front.jpg --primary

  # Enroll every image in a directory (4 concurrent workers)
  traceiq enroll 6f1c... --dir ./mugshots --concurrency 4`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().Bool("primary", false, "Make the first image the primary face")
	enrollCmd.Flags().String("dir", "", "Enroll every image in this directory")
	enrollCmd.Flags().Int("concurrency", constants.DefaultConcurrency, "Number of parallel workers")
}

var enrollExtensions = []string{".jpg", ".jpeg", ".png", ".webp", ".bmp"}

// collectImages returns the explicit paths followed by the images found in dir, sorted by name.
func collectImages(paths []string, dir string) ([]string, error) {
	files := slices.Clone(paths)
	if dir == "" {
		return files, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !slices.Contains(enrollExtensions, strings.ToLower(filepath.Ext(e.Name()))) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	return files, nil
}

type enrollFailure struct {
	path string
	err  error
}

func runEnroll(cmd *cobra.Command, args []string) error {
	identityID, err := parseUUIDArg("identity id", args[0])
	if err != nil {
		return err
	}
	actor, err := actorID()
	if err != nil {
		return err
	}
	primary := mustGetBool(cmd, "primary")
	concurrency := max(1, mustGetInt(cmd, "concurrency"))

	files, err := collectImages(args[1:], mustGetString(cmd, "dir"))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return errors.New("no images given, pass image paths or --dir")
	}

	ctx := cmd.Context()
	a, err := openApp(ctx, config.Load())
	if err != nil {
		return err
	}
	defer a.Close()

	svc := a.enrollment()
	enrollOne := func(ctx context.Context, path string, isPrimary bool) (*uuid.UUID, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		face, err := svc.Enroll(ctx, recognition.EnrollRequest{
			IdentityID: identityID,
			Image:      data,
			Filename:   filepath.Base(path),
			IsPrimary:  isPrimary,
			ActorID:    actor,
		})
		if err != nil {
			return nil, err
		}
		return &face.ID, nil
	}

	if len(files) == 1 {
		id, err := enrollOne(ctx, files[0], primary)
		if err != nil {
			return fmt.Errorf("failed to enroll %s: %w", files[0], err)
		}
		fmt.Printf("Enrolled %s as face %s\n", files[0], id)
		return nil
	}

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetDescription("Enrolling faces"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	var (
		mu       sync.Mutex
		failures []enrollFailure
		enrolled int
	)
	record := func(path string, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			failures = append(failures, enrollFailure{path: path, err: err})
		} else {
			enrolled++
		}
		bar.Add(1)
	}

	// The primary image goes first so later images cannot take the forced-primary slot.
	rest := files
	if primary {
		_, err := enrollOne(ctx, files[0], true)
		record(files[0], err)
		rest = files[1:]
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, path := range rest {
		g.Go(func() error {
			_, err := enrollOne(gctx, path, false)
			record(path, err)
			// Backend or database failures stop the batch, bad images do not.
			if errors.Is(err, recognition.ErrInfrastructure) {
				return err
			}
			return nil
		})
	}
	groupErr := g.Wait()
	bar.Finish()

	fmt.Printf("\nEnrolled %d of %d images\n", enrolled, len(files))
	for _, f := range failures {
		fmt.Printf("  %s: %v\n", f.path, f.err)
	}
	if groupErr != nil {
		return fmt.Errorf("enrollment aborted: %w", groupErr)
	}
	if len(failures) > 0 {
		return fmt.Errorf("%d image(s) could not be enrolled", len(failures))
	}
	return nil
}
