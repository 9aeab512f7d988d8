package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/lensly/catalog-service/internal/catalog"
	"github.com/lensly/catalog-service/internal/database"
	"github.com/lensly/catalog-service/internal/fetcher"
	"github.com/lensly/catalog-service/internal/types"
	"github.com/lensly/catalog-service/internal/vendors"
)

var (
	vendorDisplayName string
	credScraperPath   string
	credAPIBaseURL    string
	credAPIAuthType   string
	credAPIKey        string
	purgeOlderThan    time.Duration
)

// vendorsCmd groups vendor management commands.
var vendorsCmd = &cobra.Command{
	Use:   "vendors",
	Short: "Manage vendors and their integrations",
}

var vendorsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List vendors with their integration status",
	RunE:  runVendorsList,
}

var vendorsAddCmd = &cobra.Command{
	Use:   "add <slug>",
	Short: "Register a draft vendor",
	Example: `  catalog-service vendors add moscot --display-name "MOSCOT"
  catalog-service vendors add silhouette`,
	Args: cobra.ExactArgs(1),
	RunE: runVendorsAdd,
}

var vendorsCredentialsCmd = &cobra.Command{
	Use:   "credentials <slug>",
	Short: "Create or replace a vendor's integration credentials",
	Long: `Create or replace a vendor's integration. Passing --api-base-url makes
it an API integration, --scraper-path a scraper one. An existing API key is
kept when --api-key is omitted.`,
	Example: `  catalog-service vendors credentials silhouette --api-base-url https://api.silhouette.com/v2/catalog --api-auth-type bearer --api-key s3cret
  catalog-service vendors credentials moscot --scraper-path scrapers/moscot.py`,
	Args: cobra.ExactArgs(1),
	RunE: runVendorsCredentials,
}

var vendorsTestCmd = &cobra.Command{
	Use:   "test <slug>",
	Short: "Probe a vendor's integration and record the result",
	Args:  cobra.ExactArgs(1),
	RunE:  runVendorsTest,
}

var purgeTombstonesCmd = &cobra.Command{
	Use:   "purge-tombstones",
	Short: "Delete catalog items tombstoned longer than the retention window",
	RunE:  runPurgeTombstones,
}

func init() {
	rootCmd.AddCommand(vendorsCmd)
	vendorsCmd.AddCommand(vendorsListCmd)
	vendorsCmd.AddCommand(vendorsAddCmd)
	vendorsCmd.AddCommand(vendorsCredentialsCmd)
	vendorsCmd.AddCommand(vendorsTestCmd)
	vendorsCmd.AddCommand(purgeTombstonesCmd)

	vendorsAddCmd.Flags().StringVar(&vendorDisplayName, "display-name", "", "Human-readable vendor name (defaults to the slug)")

	vendorsCredentialsCmd.Flags().StringVar(&credScraperPath, "scraper-path", "", "Path to the scraper script")
	vendorsCredentialsCmd.Flags().StringVar(&credAPIBaseURL, "api-base-url", "", "Catalog endpoint of the vendor API")
	vendorsCredentialsCmd.Flags().StringVar(&credAPIAuthType, "api-auth-type", "", "API auth shape: none, bearer, basic or custom-header")
	vendorsCredentialsCmd.Flags().StringVar(&credAPIKey, "api-key", "", "API key (kept from the previous integration when omitted)")

	purgeTombstonesCmd.Flags().DurationVar(&purgeOlderThan, "older-than", 90*24*time.Hour, "Minimum tombstone age before deletion")
}

func runVendorsList(cmd *cobra.Command, args []string) error {
	store := vendors.NewStore(database.Pool())
	list, err := store.List(context.Background())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SLUG\tNAME\tTYPE\tHAS KEY\tLAST TEST")
	for _, v := range list {
		integType, hasKey, lastTest := "-", "-", "-"
		if v.Integration != nil {
			integType = string(v.Integration.Type)
			hasKey = fmt.Sprintf("%t", v.Integration.HasKey)
			if v.Integration.LastTestAt != nil {
				ok := "failed"
				if v.Integration.LastTestOK != nil && *v.Integration.LastTestOK {
					ok = "ok"
				}
				lastTest = fmt.Sprintf("%s (%s)", v.Integration.LastTestAt.Format(time.RFC3339), ok)
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", v.Slug, v.DisplayName, integType, hasKey, lastTest)
	}
	return w.Flush()
}

func runVendorsAdd(cmd *cobra.Command, args []string) error {
	store := vendors.NewStore(database.Pool())
	vendor, err := store.Create(context.Background(), args[0], vendorDisplayName)
	if err != nil {
		return err
	}

	logger.Info().Str("vendor", vendor.Slug).Str("id", vendor.ID).Msg("Vendor registered")
	return nil
}

func runVendorsCredentials(cmd *cobra.Command, args []string) error {
	store := vendors.NewStore(database.Pool())
	integ, err := store.UpsertCredentials(context.Background(), args[0], vendors.CredentialsPayload{
		ScraperPath: credScraperPath,
		APIBaseURL:  credAPIBaseURL,
		APIAuthType: types.APIAuthType(credAPIAuthType),
		APIKey:      credAPIKey,
	})
	if err != nil {
		return err
	}

	logger.Info().
		Str("vendor", args[0]).
		Str("type", string(integ.Type)).
		Bool("has_key", integ.HasKey).
		Msg("Credentials saved")
	return nil
}

func runVendorsTest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	store := vendors.NewStore(database.Pool())

	vendor, err := store.GetWithSecrets(ctx, args[0])
	if err != nil {
		return err
	}
	if vendor.Integration == nil {
		return fmt.Errorf("vendor %s has no integration configured", args[0])
	}

	probeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	f := fetcher.New(fetcher.ExecInvoker{}, cfg.Sync.ScraperWorkDir, *logger)
	_, probeErr := f.Fetch(probeCtx, vendor.Integration)

	if err := store.RecordTestResult(ctx, args[0], probeErr == nil, time.Now().UTC()); err != nil {
		return err
	}

	if probeErr != nil {
		logger.Error().Err(probeErr).Str("vendor", args[0]).Msg("Integration test failed")
		return probeErr
	}
	logger.Info().Str("vendor", args[0]).Msg("Integration test passed")
	return nil
}

func runPurgeTombstones(cmd *cobra.Command, args []string) error {
	store := catalog.NewStore(database.Pool())
	cutoff := time.Now().UTC().Add(-purgeOlderThan)

	purged, err := store.PurgeTombstones(context.Background(), cutoff)
	if err != nil {
		return err
	}

	logger.Info().Int64("purged", purged).Time("cutoff", cutoff).Msg("Tombstones purged")
	return nil
}
