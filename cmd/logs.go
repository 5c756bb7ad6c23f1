package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wastemaster/wastemaster/app"
	"github.com/wastemaster/wastemaster/config"
	"github.com/wastemaster/wastemaster/core/dispatch/logging"
)

var (
	logsSince   string
	logsService string
	logsVehicle string
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Query recorded scheduling passes",
	RunE:  runLogs,
}

func init() {
	logsCmd.Flags().StringVar(&logsSince, "since", "", "only passes after this RFC3339 timestamp")
	logsCmd.Flags().StringVar(&logsService, "service", "", "only passes touching this service")
	logsCmd.Flags().StringVar(&logsVehicle, "vehicle", "", "only passes assigning this vehicle")
	rootCmd.AddCommand(logsCmd)
}

func runLogs(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	store, err := app.OpenPassLog(cfg.PassLog)
	if err != nil {
		return fmt.Errorf("pass log: %w", err)
	}
	defer store.Close()

	q := logging.LogQuery{ServiceID: logsService, VehicleID: logsVehicle}
	if logsSince != "" {
		t, err := time.Parse(time.RFC3339, logsSince)
		if err != nil {
			return fmt.Errorf("parse --since: %w", err)
		}
		q.Start = t
	}
	records, err := store.Query(context.Background(), q)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
	return nil
}
