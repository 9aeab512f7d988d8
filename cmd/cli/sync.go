package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lensly/catalog-service/internal/adapters/sdk"
	_ "github.com/lensly/catalog-service/internal/adapters/vendoradapters"
	"github.com/lensly/catalog-service/internal/alerts"
	"github.com/lensly/catalog-service/internal/catalog"
	"github.com/lensly/catalog-service/internal/database"
	"github.com/lensly/catalog-service/internal/engine"
	"github.com/lensly/catalog-service/internal/fetcher"
	"github.com/lensly/catalog-service/internal/metrics"
	"github.com/lensly/catalog-service/internal/runs"
	"github.com/lensly/catalog-service/internal/types"
	"github.com/lensly/catalog-service/internal/vendors"
)

var (
	syncAll   bool
	syncRunBy string
)

// syncCmd represents the sync command
var syncCmd = &cobra.Command{
	Use:   "sync <vendor>",
	Short: "Run the sync pipeline for a vendor",
	Long: `Run the complete sync pipeline (fetch, transform, normalize, diff/apply)
for a vendor. The run is recorded with its item counts and, on failure, its
classified error.

Use --all to sync every vendor with a configured integration.`,
	Example: `  catalog-service sync moscot
  catalog-service sync silhouette --run-by jane
  catalog-service sync --all`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().BoolVar(&syncAll, "all", false, "Sync all configured vendors")
	syncCmd.Flags().StringVar(&syncRunBy, "run-by", "cli", "Recorded initiator of the run")
}

// newEngine wires the sync pipeline against the connected database.
func newEngine() *engine.Engine {
	pool := database.Pool()
	return engine.New(
		pool,
		vendors.NewStore(pool),
		fetcher.New(fetcher.ExecInvoker{}, cfg.Sync.ScraperWorkDir, *logger),
		sdk.Default,
		catalog.NewStore(pool),
		runs.NewRecorder(pool, *logger),
		alerts.NewIngress(pool, *logger),
		metrics.NewRecorder(),
		cfg.Sync,
		*logger,
	)
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	eng := newEngine()

	var outcomes []types.RunOutcome

	if syncAll {
		all, err := eng.RunAll(ctx, types.SourceManual, syncRunBy)
		if err != nil {
			return fmt.Errorf("sync all failed: %w", err)
		}
		outcomes = all
	} else {
		if len(args) == 0 {
			return fmt.Errorf("either specify <vendor> or use --all flag")
		}
		outcome, err := eng.RunOne(ctx, args[0], types.SourceManual, syncRunBy)
		if outcome == nil {
			return fmt.Errorf("sync failed: %w", err)
		}
		outcomes = []types.RunOutcome{*outcome}
	}

	printOutcomes(outcomes)

	for _, o := range outcomes {
		if o.Status != types.RunStatusSuccess {
			return fmt.Errorf("%d of %d vendors failed", countFailed(outcomes), len(outcomes))
		}
	}
	return nil
}

func countFailed(outcomes []types.RunOutcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Status != types.RunStatusSuccess {
			n++
		}
	}
	return n
}

func printOutcomes(outcomes []types.RunOutcome) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VENDOR\tSTATUS\tITEMS\tCREATED\tUPDATED\tTOMBSTONED\tDROPPED\tDURATION\tERROR")
	for _, o := range outcomes {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%dms\t%s\n",
			o.Vendor, o.Status, o.TotalItems, o.CreatedCount, o.UpdatedCount,
			o.TombstonedCount, o.DroppedCount, o.DurationMillis, o.Error)
	}
	w.Flush()
}
