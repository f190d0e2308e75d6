package cmd

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/charukad/traceiq/internal/config"
	"github.com/charukad/traceiq/internal/database"
	"github.com/charukad/traceiq/internal/database/postgres"
	"github.com/spf13/cobra"
)

var identityCmd = &cobra.Command{
	Use:   "identity",
	Short: "Manage identities stored in PostgreSQL",
	Long: `Manage identities kept in the local PostgreSQL database. When
RECORDS_DATABASE_URL is set identities are owned by the records system and
these commands are refused.`,
}

var identityCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an identity",
	Long: `Create an identity in PostgreSQL for deployments without a records database.

Example:
  traceiq identity create --first Kasun --last Silva --nic 901234567V --threat high`,
	RunE: runIdentityCreate,
}

var identityShowCmd = &cobra.Command{
	Use:   "show <identity-id>",
	Short: "Show an identity",
	Args:  cobra.ExactArgs(1),
	RunE:  runIdentityShow,
}

var threatLevels = []database.ThreatLevel{
	database.ThreatLow, database.ThreatMedium, database.ThreatHigh, database.ThreatCritical,
}

func init() {
	rootCmd.AddCommand(identityCmd)
	identityCmd.AddCommand(identityCreateCmd, identityShowCmd)

	identityCreateCmd.Flags().String("first", "", "First name")
	identityCreateCmd.Flags().String("last", "", "Last name")
	identityCreateCmd.Flags().String("nic", "", "National identity card number")
	identityCreateCmd.Flags().String("threat", string(database.ThreatLow), "Threat level: low, medium, high, critical")
}

func runIdentityCreate(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if cfg.Records.URL != "" {
		return errors.New("identities are managed by the records database (RECORDS_DATABASE_URL is set)")
	}

	identity := &database.Identity{
		FirstName:   strings.TrimSpace(mustGetString(cmd, "first")),
		LastName:    strings.TrimSpace(mustGetString(cmd, "last")),
		NIC:         strings.TrimSpace(mustGetString(cmd, "nic")),
		ThreatLevel: database.ThreatLevel(strings.ToLower(mustGetString(cmd, "threat"))),
	}
	if identity.Name() == "" {
		return errors.New("--first or --last is required")
	}
	if !slices.Contains(threatLevels, identity.ThreatLevel) {
		return fmt.Errorf("invalid threat level %q", identity.ThreatLevel)
	}

	ctx := cmd.Context()
	pool, err := postgres.Initialize(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	defer pool.Close()

	if err := postgres.NewIdentityRepository(pool).Create(ctx, identity); err != nil {
		return err
	}
	fmt.Printf("Created identity %s (%s)\n", identity.ID, identity.Name())
	return nil
}

func runIdentityShow(cmd *cobra.Command, args []string) error {
	id, err := parseUUIDArg("identity id", args[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := openApp(ctx, config.Load())
	if err != nil {
		return err
	}
	defer a.Close()

	identity, err := a.identities.Get(ctx, id)
	if err != nil {
		return err
	}
	if identity == nil {
		return fmt.Errorf("identity %s not found", id)
	}

	faces, err := a.faces.ListByIdentity(ctx, id)
	if err != nil {
		return err
	}

	fmt.Printf("Identity: %s\n", identity.ID)
	fmt.Printf("Name:     %s\n", identity.Name())
	if identity.NIC != "" {
		fmt.Printf("NIC:      %s\n", identity.NIC)
	}
	fmt.Printf("Threat:   %s\n", identity.ThreatLevel)
	fmt.Printf("Faces:    %d\n", len(faces))
	return nil
}
