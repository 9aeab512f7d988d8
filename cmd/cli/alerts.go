package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lensly/catalog-service/internal/alerts"
	"github.com/lensly/catalog-service/internal/database"
)

var (
	alertLevel   string
	alertVendors []string
)

// alertsCmd groups alert commands.
var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Send operator alerts",
}

var alertsSendCmd = &cobra.Command{
	Use:   "send <message>",
	Short: "Record an operator alert event",
	Example: `  catalog-service alerts send "silhouette API key rotated" --level info --vendor silhouette
  catalog-service alerts send "upstream maintenance window" --level warn --vendor moscot --vendor silhouette`,
	Args: cobra.ExactArgs(1),
	RunE: runAlertsSend,
}

func init() {
	rootCmd.AddCommand(alertsCmd)
	alertsCmd.AddCommand(alertsSendCmd)

	alertsSendCmd.Flags().StringVar(&alertLevel, "level", "info", "Alert level: info, warn or error")
	alertsSendCmd.Flags().StringArrayVar(&alertVendors, "vendor", nil, "Vendor slug to attach the alert to (repeatable)")
}

func runAlertsSend(cmd *cobra.Command, args []string) error {
	ingress := alerts.NewIngress(database.Pool(), *logger)

	receipt, err := ingress.Ingest(context.Background(), alerts.IngestRequest{
		Level:   alertLevel,
		Message: args[0],
		Vendors: alertVendors,
	})
	if err != nil {
		return err
	}

	fmt.Printf("%s: %s (%d event(s) recorded)\n", receipt.Toast.Title, receipt.Toast.Description, receipt.Received)
	return nil
}
