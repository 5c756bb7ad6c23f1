package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wastemaster/wastemaster/app"
	"github.com/wastemaster/wastemaster/config"
	corebilling "github.com/wastemaster/wastemaster/core/billing"
	infrabilling "github.com/wastemaster/wastemaster/infra/billing"
	"github.com/wastemaster/wastemaster/infra/logger"
	"github.com/wastemaster/wastemaster/internal/eventbus"
)

var (
	billingOut    string
	billingFormat string
)

var billingCmd = &cobra.Command{
	Use:   "billing",
	Short: "Billing related commands",
}

var billingExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Render the line-item batch to a JSONL or CSV document",
	RunE:  runBillingExport,
}

func init() {
	billingExportCmd.Flags().StringVarP(&billingOut, "out", "o", "invoices.jsonl", "output file")
	billingExportCmd.Flags().StringVarP(&billingFormat, "format", "f", "jsonl", "output format: jsonl or csv")
	billingCmd.AddCommand(billingExportCmd)
	rootCmd.AddCommand(billingCmd)
}

func runBillingExport(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	st, err := app.OpenStore(cfg.Store)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	feed, err := corebilling.NewFeed(st, eventbus.New(), logger.New("billing-command"))
	if err != nil {
		return fmt.Errorf("billing feed: %w", err)
	}
	var renderer corebilling.DocumentRenderer
	switch billingFormat {
	case "csv":
		renderer, err = infrabilling.NewCSVRenderer(billingOut)
	case "jsonl":
		renderer, err = infrabilling.NewJSONLRenderer(billingOut)
	default:
		return fmt.Errorf("unknown format %q", billingFormat)
	}
	if err != nil {
		return err
	}
	n, err := feed.Export(ctx, renderer)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "rendered %d line items to %s\n", n, billingOut)
	return nil
}
